package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/musicatlas/api/internal/model"
)

// ClusterRepository reads the clustering tables the offline pipeline
// maintains: per-user cluster weights, cluster display labels, and the
// primary cluster of each artist.
type ClusterRepository struct {
	pool *pgxpool.Pool
}

func NewClusterRepository(pool *pgxpool.Pool) *ClusterRepository {
	return &ClusterRepository{pool: pool}
}

const userClusterWeightsSQL = `
SELECT cluster_id, weight
FROM public.user_taste_clusters
WHERE user_id = $1
ORDER BY weight DESC, cluster_id`

// UserClusterWeights returns a user's cluster weights, heaviest first.
// topN <= 0 returns all rows.
func (r *ClusterRepository) UserClusterWeights(ctx context.Context, userID string, topN int) ([]model.ClusterWeight, error) {
	sql := userClusterWeightsSQL
	args := []any{userID}
	if topN > 0 {
		sql += " LIMIT $2"
		args = append(args, topN)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("load cluster weights for %s: %w", userID, err)
	}
	defer rows.Close()

	var weights []model.ClusterWeight
	for rows.Next() {
		var w model.ClusterWeight
		if err := rows.Scan(&w.ClusterID, &w.Weight); err != nil {
			return nil, fmt.Errorf("scan cluster weight: %w", err)
		}
		weights = append(weights, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read cluster weights: %w", err)
	}
	return weights, nil
}

const clusterLabelsSQL = `
SELECT cluster_id, label_primary, COALESCE(label_secondary, ''), COALESCE(top_spotify_genres, '{}')
FROM public.taste_cluster_labels
WHERE cluster_id = ANY($1)`

// ClusterLabels returns display metadata keyed by cluster id. Clusters
// without a label row are simply absent from the map.
func (r *ClusterRepository) ClusterLabels(ctx context.Context, ids []int) (map[int]model.ClusterLabel, error) {
	labels := make(map[int]model.ClusterLabel, len(ids))
	if len(ids) == 0 {
		return labels, nil
	}

	rows, err := r.pool.Query(ctx, clusterLabelsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("load cluster labels: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var label model.ClusterLabel
		if err := rows.Scan(&label.ClusterID, &label.LabelPrimary, &label.LabelSecondary, &label.TopSpotifyGenres); err != nil {
			return nil, fmt.Errorf("scan cluster label: %w", err)
		}
		labels[label.ClusterID] = label
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read cluster labels: %w", err)
	}
	return labels, nil
}

const artistPrimaryClustersSQL = `
SELECT DISTINCT ON (artist_id) artist_id, cluster_id
FROM public.artist_taste_clusters
WHERE artist_id = ANY($1)
ORDER BY artist_id, score DESC, cluster_id`

// ArtistPrimaryClusters maps each artist to its highest-scoring cluster.
// Artists with no cluster assignment are absent from the map.
func (r *ClusterRepository) ArtistPrimaryClusters(ctx context.Context, artistIDs []int) (map[int]int, error) {
	primary := make(map[int]int, len(artistIDs))
	if len(artistIDs) == 0 {
		return primary, nil
	}

	rows, err := r.pool.Query(ctx, artistPrimaryClustersSQL, artistIDs)
	if err != nil {
		return nil, fmt.Errorf("load artist clusters: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var artistID, clusterID int
		if err := rows.Scan(&artistID, &clusterID); err != nil {
			return nil, fmt.Errorf("scan artist cluster: %w", err)
		}
		primary[artistID] = clusterID
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read artist clusters: %w", err)
	}
	return primary, nil
}

package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/musicatlas/api/internal/model"
)

// RecsRepository calls the pre-aggregated ranking function. The function owns
// all scoring; this layer only shapes its rows.
type RecsRepository struct {
	pool *pgxpool.Pool
}

func NewRecsRepository(pool *pgxpool.Pool) *RecsRepository {
	return &RecsRepository{pool: pool}
}

const albumRecsSQL = `
SELECT * FROM public.get_album_recs_v1(
    p_seed_artist_ids => $1,
    p_k               => $2,
    p_window_years    => $3,
    p_min_tracks      => $4,
    p_max_per_tag     => $5
)`

// AlbumRecs runs the ranking function for a seed set. The function's column
// set is allowed to evolve: the three core columns are scanned into typed
// fields and anything else rides along in Extra.
func (r *RecsRepository) AlbumRecs(ctx context.Context, seeds []int, params model.RecsParams) ([]model.Album, error) {
	seedIDs := make([]int32, len(seeds))
	for i, s := range seeds {
		seedIDs[i] = int32(s)
	}

	rows, err := r.pool.Query(ctx, albumRecsSQL,
		seedIDs, params.K, params.WindowYears, params.MinTracks, params.MaxPerTag)
	if err != nil {
		return nil, fmt.Errorf("get_album_recs_v1: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	albums := make([]model.Album, 0, params.K)

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read recs row: %w", err)
		}

		var album model.Album
		for i, fd := range fields {
			name := string(fd.Name)
			value := values[i]
			switch name {
			case "artist_id":
				album.ArtistID = toInt(value)
			case "artist_name":
				album.ArtistName = toString(value)
			case "release_group_name":
				album.ReleaseGroupName = toString(value)
			default:
				if album.Extra == nil {
					album.Extra = make(map[string]any)
				}
				album.Extra[name] = value
			}
		}
		albums = append(albums, album)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read recs rows: %w", err)
	}

	return albums, nil
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int16:
		return int(n)
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

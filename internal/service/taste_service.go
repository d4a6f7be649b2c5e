package service

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/musicatlas/api/internal/model"
)

// Bucketing thresholds. A cluster must hold at least MinClusterShare of the
// user's total listening weight to be considered, and clusters are included
// in weight order until their cumulative share reaches CumShareTarget.
const (
	MinClusterShare = 0.03
	CumShareTarget  = 0.85
)

// Strength cutoffs on a bucket's album count.
const (
	strongAlbumsMin   = 20
	moderateAlbumsMin = 10
)

// TasteService builds the bucketed taste profile: the user's cached
// recommendation rows grouped under their dominant listening clusters.
type TasteService struct {
	clusters   ClusterStore
	sessions   SessionStore
	topArtists TopArtistSource
	recs       *RecsService
	enrichment *EnrichmentService

	topArtistLimit int
	enrichMaxItems int
	minFreshRows   int
}

func NewTasteService(
	clusters ClusterStore,
	sessions SessionStore,
	topArtists TopArtistSource,
	recs *RecsService,
	enrichment *EnrichmentService,
	enrichMaxItems int,
	minFreshRows int,
) *TasteService {
	return &TasteService{
		clusters:       clusters,
		sessions:       sessions,
		topArtists:     topArtists,
		recs:           recs,
		enrichment:     enrichment,
		topArtistLimit: 50,
		enrichMaxItems: enrichMaxItems,
		minFreshRows:   minFreshRows,
	}
}

// Profile assembles the taste profile for a user. Cached session rows are
// reused when there are enough of them; otherwise the recommendation set is
// refreshed from the user's current Spotify top artists.
func (s *TasteService) Profile(ctx context.Context, userID string, withValidation bool) (*model.TasteProfile, error) {
	session, err := s.sessions.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var rows []model.Album
	if session != nil {
		rows = session.AlbumRecs
	}

	if len(rows) < s.minFreshRows {
		if session == nil || session.SpotifyAccessToken == "" {
			if len(rows) == 0 {
				return nil, ErrNoSpotifySession
			}
			// Stale but usable cache and no credential to refresh with.
		} else {
			fresh, err := s.refreshRows(ctx, userID, session.SpotifyAccessToken)
			if err != nil {
				if len(rows) == 0 {
					return nil, err
				}
				log.Printf("[taste] refresh failed for %s, using %d cached rows: %v", userID, len(rows), err)
			} else {
				rows = fresh
			}
		}
	}

	weights, err := s.clusters.UserClusterWeights(ctx, userID, 0)
	if err != nil {
		return nil, fmt.Errorf("load cluster weights: %w", err)
	}
	if len(weights) == 0 {
		return nil, ErrNoTasteClusters
	}

	included, cumShare := selectClusters(weights)
	if len(included) == 0 {
		return nil, ErrNoIncludedClusters
	}

	includedIDs := make([]int, len(included))
	for i, w := range included {
		includedIDs[i] = w.ClusterID
	}

	labels, err := s.clusters.ClusterLabels(ctx, includedIDs)
	if err != nil {
		return nil, fmt.Errorf("load cluster labels: %w", err)
	}

	artistIDs := make([]int, 0, len(rows))
	seen := make(map[int]bool, len(rows))
	for _, row := range rows {
		if !seen[row.ArtistID] {
			seen[row.ArtistID] = true
			artistIDs = append(artistIDs, row.ArtistID)
		}
	}
	artistClusters, err := s.clusters.ArtistPrimaryClusters(ctx, artistIDs)
	if err != nil {
		return nil, fmt.Errorf("load artist clusters: %w", err)
	}

	buckets, validation := BuildTasteBuckets(rows, included, labels, artistClusters, cumShare, withValidation)

	profile := &model.TasteProfile{
		UserID:      userID,
		Buckets:     buckets,
		TopClusters: included,
		TotalAlbums: len(rows),
		Validation:  validation,
	}
	return profile, nil
}

// refreshRows rebuilds the recommendation set from the user's top artists
// and persists it on the session.
func (s *TasteService) refreshRows(ctx context.Context, userID, accessToken string) ([]model.Album, error) {
	artists, err := s.topArtists.TopArtists(ctx, accessToken, s.topArtistLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSeedIngestion, err)
	}

	seeds, _, missed := s.recs.resolver.Resolve(ctx, artists)
	if len(seeds) == 0 {
		return nil, ErrNoSeedsResolved
	}
	if len(missed) > 0 {
		log.Printf("[taste] %d/%d top artists unresolved for %s", len(missed), len(artists), userID)
	}

	rows, err := s.recs.RunAlbumRecsQuery(ctx, DedupSeeds(seeds), model.DefaultRecsParams())
	if err != nil {
		return nil, err
	}
	rows = s.enrichment.EnrichAlbums(ctx, rows, true, s.enrichMaxItems)

	if err := s.sessions.SaveAlbumRecs(ctx, userID, rows); err != nil {
		log.Printf("[taste] failed to cache refreshed rows for %s: %v", userID, err)
	}
	return rows, nil
}

// selectClusters sorts cluster weights (weight desc, cluster id asc on ties),
// drops clusters under the minimum share, and includes the rest in order
// until the cumulative share reaches the target. The cluster that crosses
// the target is included. Returns the included clusters with their shares
// filled in and the final cumulative share.
func selectClusters(weights []model.ClusterWeight) ([]model.ClusterWeight, float64) {
	var total float64
	for _, w := range weights {
		total += w.Weight
	}
	if total <= 0 {
		return nil, 0
	}

	sorted := make([]model.ClusterWeight, len(weights))
	copy(sorted, weights)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Weight != sorted[j].Weight {
			return sorted[i].Weight > sorted[j].Weight
		}
		return sorted[i].ClusterID < sorted[j].ClusterID
	})

	var included []model.ClusterWeight
	var cum float64
	for _, w := range sorted {
		share := w.Weight / total
		if share < MinClusterShare {
			continue
		}
		if cum >= CumShareTarget {
			break
		}
		w.WeightShare = share
		included = append(included, w)
		cum += share
	}
	return included, cum
}

// BuildTasteBuckets assigns rows to the included clusters by their artist's
// primary cluster. Rows whose artist maps to no included cluster land in the
// trailing "Other" bucket. Included clusters that end up with zero rows are
// hidden from the result but counted in the validation report.
func BuildTasteBuckets(
	rows []model.Album,
	included []model.ClusterWeight,
	labels map[int]model.ClusterLabel,
	artistClusters map[int]int,
	cumShare float64,
	withValidation bool,
) ([]model.TasteBucket, *model.TasteValidation) {
	includedSet := make(map[int]int, len(included)) // cluster id -> bucket index
	buckets := make([]model.TasteBucket, 0, len(included)+1)

	for _, w := range included {
		id := w.ClusterID
		label, ok := labels[id]
		if !ok {
			label = model.ClusterLabel{ClusterID: id, LabelPrimary: fmt.Sprintf("Cluster %d", id)}
		}
		includedSet[id] = len(buckets)
		cw := id
		buckets = append(buckets, model.TasteBucket{
			ClusterID:        &cw,
			LabelPrimary:     label.LabelPrimary,
			LabelSecondary:   label.LabelSecondary,
			TopSpotifyGenres: label.TopSpotifyGenres,
			Weight:           w.Weight,
			WeightShare:      w.WeightShare,
			Albums:           []model.Album{},
		})
	}

	other := model.TasteBucket{
		LabelPrimary: "Other",
		Albums:       []model.Album{},
	}

	for _, row := range rows {
		clusterID, known := artistClusters[row.ArtistID]
		if idx, ok := includedSet[clusterID]; known && ok {
			buckets[idx].Albums = append(buckets[idx].Albums, row)
		} else {
			other.Albums = append(other.Albums, row)
		}
	}

	displayed := make([]model.TasteBucket, 0, len(buckets)+1)
	hidden := 0
	for i := range buckets {
		buckets[i].AlbumCount = len(buckets[i].Albums)
		if buckets[i].AlbumCount == 0 {
			hidden++
			continue
		}
		buckets[i].Strength = strengthFor(buckets[i].AlbumCount)
		displayed = append(displayed, buckets[i])
	}

	hasOther := len(other.Albums) > 0
	if hasOther {
		other.AlbumCount = len(other.Albums)
		displayed = append(displayed, other)
	}

	if !withValidation {
		return displayed, nil
	}

	albumTotal := 0
	for _, b := range displayed {
		albumTotal += b.AlbumCount
	}

	var totalWeight float64
	var minIncluded *float64
	for _, w := range included {
		totalWeight += w.Weight
		if minIncluded == nil || w.WeightShare < *minIncluded {
			share := w.WeightShare
			minIncluded = &share
		}
	}

	validation := &model.TasteValidation{
		BucketCount:                len(displayed),
		AlbumTotal:                 albumTotal,
		HasOther:                   hasOther,
		OK:                         albumTotal == len(rows),
		IncludedClusterCount:       len(included),
		DisplayedBucketCount:       len(displayed),
		HiddenZeroAlbumBucketCount: hidden,
		CumShareFinal:              cumShare,
		MinWeightShareIncluded:     minIncluded,
		TotalWeight:                totalWeight,
	}
	return displayed, validation
}

// strengthFor labels a non-Other bucket by how many albums landed in it.
func strengthFor(albumCount int) string {
	switch {
	case albumCount >= strongAlbumsMin:
		return model.StrengthStrong
	case albumCount >= moderateAlbumsMin:
		return model.StrengthModerate
	default:
		return model.StrengthWeak
	}
}

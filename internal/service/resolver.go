package service

import (
	"context"
	"log"
	"strings"

	"github.com/musicatlas/api/internal/model"
)

// ResolverService maps Spotify artist descriptors to internal MusicBrainz
// catalog ids, persisting the artists' Spotify genres along the way.
type ResolverService struct {
	catalog ArtistCatalog
}

func NewResolverService(catalog ArtistCatalog) *ResolverService {
	return &ResolverService{catalog: catalog}
}

// Resolve looks up every input artist by name. A failed or unmatched lookup
// records the artist as missed and moves on; nothing aborts the batch.
// Blank names are skipped entirely. Output order mirrors input order and
// duplicates are kept — seed dedup is the caller's job.
func (s *ResolverService) Resolve(ctx context.Context, artists []model.SimpleArtist) (ids []int, resolved []string, missed []string) {
	for _, artist := range artists {
		name := strings.TrimSpace(artist.Name)
		if name == "" {
			continue
		}

		full, err := s.catalog.LookupFullArtist(ctx, name)
		if err != nil {
			log.Printf("[recs] artist lookup failed for %q: %v", name, err)
			missed = append(missed, artist.Name)
			continue
		}
		if full == nil || full.InternalID == nil {
			missed = append(missed, artist.Name)
			continue
		}

		ids = append(ids, *full.InternalID)
		resolved = append(resolved, artist.Name)

		// Genre persistence is best-effort and never fails resolution.
		if err := s.catalog.UpsertSpotifyGenres(ctx, *full.InternalID, artist.Genres); err != nil {
			log.Printf("[recs] failed to upsert Spotify genres for %q (%d): %v", artist.Name, *full.InternalID, err)
		}
	}

	return ids, resolved, missed
}

// DedupSeeds removes duplicate seed ids preserving first-occurrence order.
func DedupSeeds(ids []int) []int {
	seen := make(map[int]bool, len(ids))
	ordered := make([]int, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		ordered = append(ordered, id)
	}
	return ordered
}

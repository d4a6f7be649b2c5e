package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/musicatlas/api/internal/model"
)

// EnrichmentService decorates recommendation rows with Spotify album links.
// Every lookup is best-effort: a miss or upstream failure leaves the row
// untouched and is remembered so the same (artist, album) pair is not
// searched twice in the process lifetime.
type EnrichmentService struct {
	searcher AlbumSearcher

	mu    sync.Mutex
	cache map[enrichKey]*model.SpotifyEnrichment // nil value = known miss
}

type enrichKey struct {
	artist string
	album  string
}

func NewEnrichmentService(searcher AlbumSearcher) *EnrichmentService {
	return &EnrichmentService{
		searcher: searcher,
		cache:    make(map[enrichKey]*model.SpotifyEnrichment),
	}
}

// EnrichAlbums annotates up to maxItems rows in place and returns the same
// slice. Row order never changes and no row is ever dropped. When enabled is
// false, or the searcher is nil, the rows pass through untouched.
func (s *EnrichmentService) EnrichAlbums(ctx context.Context, rows []model.Album, enabled bool, maxItems int) []model.Album {
	if !enabled || s == nil || s.searcher == nil || len(rows) == 0 {
		return rows
	}

	limit := len(rows)
	if maxItems > 0 && maxItems < limit {
		limit = maxItems
	}

	for i := 0; i < limit; i++ {
		if ctx.Err() != nil {
			break
		}
		if enrichment := s.enrichAlbum(ctx, rows[i].ArtistName, rows[i].ReleaseGroupName); enrichment != nil {
			enrichment.Apply(&rows[i])
		}
	}
	return rows
}

// enrichAlbum resolves one (artist, album) pair through the cache.
func (s *EnrichmentService) enrichAlbum(ctx context.Context, artistName, albumName string) *model.SpotifyEnrichment {
	if strings.TrimSpace(artistName) == "" || strings.TrimSpace(albumName) == "" {
		return nil
	}

	key := enrichKey{
		artist: strings.ToLower(strings.TrimSpace(artistName)),
		album:  strings.ToLower(strings.TrimSpace(albumName)),
	}

	s.mu.Lock()
	cached, hit := s.cache[key]
	s.mu.Unlock()
	if hit {
		return cached
	}

	// Search happens outside the lock so slow upstream calls do not
	// serialize unrelated lookups.
	candidates := s.searcher.SearchAlbums(ctx, albumName, artistName)
	enrichment := chooseLatestAlbum(candidates)

	s.mu.Lock()
	s.cache[key] = enrichment
	s.mu.Unlock()

	return enrichment
}

// chooseLatestAlbum picks the candidate with the latest parseable release
// date. Candidates without a parseable date only win when nothing parses, in
// which case the first candidate is taken.
func chooseLatestAlbum(candidates []model.SpotifyAlbumCandidate) *model.SpotifyEnrichment {
	if len(candidates) == 0 {
		return nil
	}

	best := -1
	var bestDate time.Time
	for i, c := range candidates {
		date, ok := parseReleaseDate(c.ReleaseDate, c.ReleaseDatePrecision)
		if !ok {
			continue
		}
		if best == -1 || date.After(bestDate) {
			best = i
			bestDate = date
		}
	}
	if best == -1 {
		best = 0
	}

	chosen := candidates[best]
	return &model.SpotifyEnrichment{
		AlbumID:              chosen.ID,
		URL:                  chosen.URL,
		ImageURL:             chosen.ImageURL,
		AlbumName:            chosen.Name,
		ReleaseDate:          chosen.ReleaseDate,
		ReleaseDatePrecision: chosen.ReleaseDatePrecision,
	}
}

// parseReleaseDate handles Spotify's precision-dependent date formats by
// padding year and month values to full dates before parsing.
func parseReleaseDate(value, precision string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	switch precision {
	case "year":
		value += "-01-01"
	case "month":
		value += "-01"
	}

	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

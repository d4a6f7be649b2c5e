package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/musicatlas/api/internal/model"
)

// RecsService owns the recommendation pipeline: job lifecycle, seed
// resolution, the ranking oracle call and Spotify enrichment. The synchronous
// album endpoints and the background worker both run through it.
type RecsService struct {
	registry   *JobRegistry
	resolver   *ResolverService
	oracle     RecsOracle
	enrichment *EnrichmentService
	dispatcher Dispatcher
	sessions   SessionStore

	enrichMaxItems int
}

func NewRecsService(
	registry *JobRegistry,
	resolver *ResolverService,
	oracle RecsOracle,
	enrichment *EnrichmentService,
	dispatcher Dispatcher,
	sessions SessionStore,
	enrichMaxItems int,
) *RecsService {
	return &RecsService{
		registry:       registry,
		resolver:       resolver,
		oracle:         oracle,
		enrichment:     enrichment,
		dispatcher:     dispatcher,
		sessions:       sessions,
		enrichMaxItems: enrichMaxItems,
	}
}

// CreateJob registers a queued job and hands its payload to the dispatcher.
// Input validation happens before any record exists, and a dispatch failure
// removes the record again so callers never poll a job that will not run.
func (s *RecsService) CreateJob(ctx context.Context, payload model.RecsJobPayload) (model.Job, error) {
	if len(payload.Artists) == 0 {
		return model.Job{}, ErrEmptyArtists
	}

	job := s.registry.Create()
	if err := s.dispatcher.Dispatch(ctx, job.ID, payload); err != nil {
		s.registry.Delete(job.ID)
		return model.Job{}, fmt.Errorf("dispatch recs job: %w", err)
	}
	return job, nil
}

// Job returns the current state of a job for status polling.
func (s *RecsService) Job(id string) (model.Job, error) {
	job, ok := s.registry.Get(id)
	if !ok {
		return model.Job{}, ErrJobNotFound
	}
	return job, nil
}

// RunAlbumRecsQuery calls the ranking oracle once for the given seed set.
// Any oracle failure is terminal and surfaces as ErrOracleFailure.
func (s *RecsService) RunAlbumRecsQuery(ctx context.Context, seeds []int, params model.RecsParams) ([]model.Album, error) {
	rows, err := s.oracle.AlbumRecs(ctx, seeds, params)
	if err != nil {
		log.Printf("[recs] album recs query failed for %d seeds: %v", len(seeds), err)
		return nil, fmt.Errorf("%w: %v", ErrOracleFailure, err)
	}
	return rows, nil
}

// EnrichRows applies Spotify enrichment with the configured item cap.
func (s *RecsService) EnrichRows(ctx context.Context, rows []model.Album, enabled bool) []model.Album {
	return s.enrichment.EnrichAlbums(ctx, rows, enabled, s.enrichMaxItems)
}

// AlbumsForSeeds is the synchronous path for callers that already hold
// internal artist ids. Seeds are deduplicated preserving order.
func (s *RecsService) AlbumsForSeeds(ctx context.Context, seeds []int, params model.RecsParams) ([]model.Album, error) {
	seeds = DedupSeeds(seeds)
	if len(seeds) == 0 {
		return nil, ErrInvalidSeeds
	}

	rows, err := s.RunAlbumRecsQuery(ctx, seeds, params)
	if err != nil {
		return nil, err
	}
	return s.EnrichRows(ctx, rows, params.EnrichSpotify), nil
}

// AlbumsForArtists resolves the artists to seeds and runs the full
// synchronous pipeline. The resolved and missed name lists come back so
// callers can report partial resolution.
func (s *RecsService) AlbumsForArtists(ctx context.Context, artists []model.SimpleArtist, params model.RecsParams) (rows []model.Album, resolved, missed []string, err error) {
	if len(artists) == 0 {
		return nil, nil, nil, ErrEmptyArtists
	}

	seeds, resolved, missed := s.resolver.Resolve(ctx, artists)
	if len(seeds) == 0 {
		return nil, resolved, missed, ErrNoSeedsResolved
	}

	rows, err = s.RunAlbumRecsQuery(ctx, DedupSeeds(seeds), params)
	if err != nil {
		return nil, resolved, missed, err
	}
	return s.EnrichRows(ctx, rows, params.EnrichSpotify), resolved, missed, nil
}

// AlbumsForArtistName fetches recommendations seeded by a single artist name.
func (s *RecsService) AlbumsForArtistName(ctx context.Context, name string, params model.RecsParams) ([]model.Album, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyName
	}

	seeds, _, _ := s.resolver.Resolve(ctx, []model.SimpleArtist{{Name: name}})
	if len(seeds) == 0 {
		return nil, ErrArtistNotFound
	}

	rows, err := s.RunAlbumRecsQuery(ctx, seeds, params)
	if err != nil {
		return nil, err
	}
	return s.EnrichRows(ctx, rows, params.EnrichSpotify), nil
}

// PersistSessionRecs stores the enriched rows on the user's session so the
// taste profile can reuse them. Persistence failures only log.
func (s *RecsService) PersistSessionRecs(ctx context.Context, userID string, rows []model.Album) {
	if s.sessions == nil || userID == "" {
		return
	}
	if err := s.sessions.SaveAlbumRecs(ctx, userID, rows); err != nil {
		log.Printf("[recs] failed to persist album recs for session %s: %v", userID, err)
	}
}

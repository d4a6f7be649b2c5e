package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/musicatlas/api/internal/model"
)

// fakeDispatcher records dispatched jobs or fails on demand.
type fakeDispatcher struct {
	jobIDs []string
	err    error
}

func (d *fakeDispatcher) Dispatch(_ context.Context, jobID string, _ model.RecsJobPayload) error {
	if d.err != nil {
		return d.err
	}
	d.jobIDs = append(d.jobIDs, jobID)
	return nil
}

// fakeOracle serves a canned result or error and records the seeds it saw.
type fakeOracle struct {
	rows  []model.Album
	err   error
	seeds []int
}

func (o *fakeOracle) AlbumRecs(_ context.Context, seeds []int, _ model.RecsParams) ([]model.Album, error) {
	o.seeds = seeds
	if o.err != nil {
		return nil, o.err
	}
	return o.rows, nil
}

func newTestRecsService(registry *JobRegistry, catalog ArtistCatalog, oracle RecsOracle, dispatcher Dispatcher) *RecsService {
	if registry == nil {
		registry = NewJobRegistry(time.Hour)
	}
	if catalog == nil {
		catalog = newFakeCatalog()
	}
	return NewRecsService(
		registry,
		NewResolverService(catalog),
		oracle,
		NewEnrichmentService(&fakeSearcher{}),
		dispatcher,
		nil,
		50,
	)
}

func TestCreateJobRejectsEmptyArtists(t *testing.T) {
	registry := NewJobRegistry(time.Hour)
	s := newTestRecsService(registry, nil, &fakeOracle{}, &fakeDispatcher{})

	_, err := s.CreateJob(context.Background(), model.RecsJobPayload{})
	if !errors.Is(err, ErrEmptyArtists) {
		t.Fatalf("expected ErrEmptyArtists, got %v", err)
	}
	if registry.Len() != 0 {
		t.Fatalf("rejected input must not create a record, got %d", registry.Len())
	}
}

func TestCreateJobDispatches(t *testing.T) {
	registry := NewJobRegistry(time.Hour)
	dispatcher := &fakeDispatcher{}
	s := newTestRecsService(registry, nil, &fakeOracle{}, dispatcher)

	job, err := s.CreateJob(context.Background(), model.RecsJobPayload{
		Artists: []model.SimpleArtist{{Name: "Low"}},
		Params:  model.DefaultRecsParams(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Status != model.JobStatusQueued {
		t.Fatalf("expected queued job, got %s", job.Status)
	}
	if len(dispatcher.jobIDs) != 1 || dispatcher.jobIDs[0] != job.ID {
		t.Fatalf("expected job %s dispatched, got %v", job.ID, dispatcher.jobIDs)
	}
}

func TestCreateJobDispatchFailureRemovesRecord(t *testing.T) {
	registry := NewJobRegistry(time.Hour)
	dispatcher := &fakeDispatcher{err: errors.New("redis down")}
	s := newTestRecsService(registry, nil, &fakeOracle{}, dispatcher)

	_, err := s.CreateJob(context.Background(), model.RecsJobPayload{
		Artists: []model.SimpleArtist{{Name: "Low"}},
	})
	if err == nil {
		t.Fatal("expected dispatch error")
	}
	if registry.Len() != 0 {
		t.Fatalf("failed dispatch must remove the record, got %d", registry.Len())
	}
}

func TestJobNotFound(t *testing.T) {
	s := newTestRecsService(nil, nil, &fakeOracle{}, &fakeDispatcher{})
	if _, err := s.Job("missing"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestAlbumsForSeedsDedups(t *testing.T) {
	oracle := &fakeOracle{rows: []model.Album{{ArtistID: 3}}}
	s := newTestRecsService(nil, nil, oracle, &fakeDispatcher{})

	rows, err := s.AlbumsForSeeds(context.Background(), []int{3, 1, 3, 2, 1}, model.DefaultRecsParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	want := []int{3, 1, 2}
	if len(oracle.seeds) != len(want) {
		t.Fatalf("expected seeds %v, got %v", want, oracle.seeds)
	}
	for i := range want {
		if oracle.seeds[i] != want[i] {
			t.Fatalf("expected seeds %v, got %v", want, oracle.seeds)
		}
	}
}

func TestAlbumsForSeedsRejectsEmpty(t *testing.T) {
	s := newTestRecsService(nil, nil, &fakeOracle{}, &fakeDispatcher{})
	if _, err := s.AlbumsForSeeds(context.Background(), nil, model.DefaultRecsParams()); !errors.Is(err, ErrInvalidSeeds) {
		t.Fatalf("expected ErrInvalidSeeds, got %v", err)
	}
}

func TestRunAlbumRecsQueryWrapsOracleFailure(t *testing.T) {
	oracle := &fakeOracle{err: errors.New("function does not exist")}
	s := newTestRecsService(nil, nil, oracle, &fakeDispatcher{})

	_, err := s.RunAlbumRecsQuery(context.Background(), []int{1}, model.DefaultRecsParams())
	if !errors.Is(err, ErrOracleFailure) {
		t.Fatalf("expected ErrOracleFailure, got %v", err)
	}
}

func TestAlbumsForArtistsNoSeedsResolved(t *testing.T) {
	catalog := newFakeCatalog() // knows no artists
	s := newTestRecsService(nil, catalog, &fakeOracle{}, &fakeDispatcher{})

	_, resolved, missed, err := s.AlbumsForArtists(context.Background(),
		[]model.SimpleArtist{{Name: "Nobody"}}, model.DefaultRecsParams())
	if !errors.Is(err, ErrNoSeedsResolved) {
		t.Fatalf("expected ErrNoSeedsResolved, got %v", err)
	}
	if len(resolved) != 0 || len(missed) != 1 {
		t.Fatalf("expected 0 resolved / 1 missed, got %d/%d", len(resolved), len(missed))
	}
}

func TestAlbumsForArtistName(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.ids["Low"] = 7
	oracle := &fakeOracle{rows: []model.Album{{ArtistID: 9, ArtistName: "Duster"}}}
	s := newTestRecsService(nil, catalog, oracle, &fakeDispatcher{})

	rows, err := s.AlbumsForArtistName(context.Background(), "Low", model.DefaultRecsParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}

	if _, err := s.AlbumsForArtistName(context.Background(), "  ", model.DefaultRecsParams()); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
	if _, err := s.AlbumsForArtistName(context.Background(), "Nobody", model.DefaultRecsParams()); !errors.Is(err, ErrArtistNotFound) {
		t.Fatalf("expected ErrArtistNotFound, got %v", err)
	}
}

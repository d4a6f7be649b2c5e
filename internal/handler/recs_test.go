package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/musicatlas/api/internal/model"
	"github.com/musicatlas/api/internal/service"
)

type stubCatalog struct {
	ids map[string]int
}

func (c *stubCatalog) LookupFullArtist(_ context.Context, name string) (*model.FullArtist, error) {
	id, ok := c.ids[name]
	if !ok {
		return nil, nil
	}
	return &model.FullArtist{InternalID: &id, Name: name}, nil
}

func (c *stubCatalog) UpsertSpotifyGenres(context.Context, int, []string) error {
	return nil
}

type stubOracle struct {
	rows  []model.Album
	seeds []int
}

func (o *stubOracle) AlbumRecs(_ context.Context, seeds []int, _ model.RecsParams) ([]model.Album, error) {
	o.seeds = seeds
	return o.rows, nil
}

type stubSearcher struct{}

func (stubSearcher) SearchAlbums(context.Context, string, string) []model.SpotifyAlbumCandidate {
	return nil
}

type recordingDispatcher struct {
	payloads []model.RecsJobPayload
}

func (d *recordingDispatcher) Dispatch(_ context.Context, _ string, payload model.RecsJobPayload) error {
	d.payloads = append(d.payloads, payload)
	return nil
}

type stubSessionStore struct {
	sessions map[string]*model.Session
	saved    map[string][]model.Album
}

func newStubSessionStore() *stubSessionStore {
	return &stubSessionStore{
		sessions: make(map[string]*model.Session),
		saved:    make(map[string][]model.Album),
	}
}

func (s *stubSessionStore) Get(_ context.Context, userID string) (*model.Session, error) {
	return s.sessions[userID], nil
}

func (s *stubSessionStore) SaveAlbumRecs(_ context.Context, userID string, rows []model.Album) error {
	s.saved[userID] = rows
	return nil
}

type stubTopArtists struct {
	artists []model.SimpleArtist
}

func (f *stubTopArtists) TopArtists(context.Context, string, int) ([]model.SimpleArtist, error) {
	return f.artists, nil
}

type recsFixture struct {
	app        *fiber.App
	registry   *service.JobRegistry
	oracle     *stubOracle
	dispatcher *recordingDispatcher
	sessions   *stubSessionStore
	topArtists *stubTopArtists
}

func newRecsFixture() *recsFixture {
	registry := service.NewJobRegistry(time.Hour)
	catalog := &stubCatalog{ids: map[string]int{"Low": 7, "Duster": 8}}
	oracle := &stubOracle{rows: []model.Album{
		{ArtistID: 9, ArtistName: "Bedhead", ReleaseGroupName: "WhatFunLifeWas"},
	}}
	dispatcher := &recordingDispatcher{}
	sessions := newStubSessionStore()
	topArtists := &stubTopArtists{artists: []model.SimpleArtist{{Name: "Low"}}}

	recs := service.NewRecsService(
		registry,
		service.NewResolverService(catalog),
		oracle,
		service.NewEnrichmentService(stubSearcher{}),
		dispatcher,
		sessions,
		50,
	)
	h := NewRecsHandler(recs, sessions, topArtists, validator.New())

	app := fiber.New()
	// Stand-in for the auth middleware.
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userId", "user-1")
		return c.Next()
	})
	api := app.Group("/api/recs")
	api.Post("/jobs", h.CreateJob)
	api.Get("/jobs/:jobId", h.Status)
	api.Get("/jobs/:jobId/result", h.Result)
	api.Get("/albums", h.Albums)
	api.Post("/albums/from-spotify", h.FromSpotify)
	api.Post("/albums/add-artist", h.AddArtist)

	return &recsFixture{
		app:        app,
		registry:   registry,
		oracle:     oracle,
		dispatcher: dispatcher,
		sessions:   sessions,
		topArtists: topArtists,
	}
}

func doJSON(t *testing.T, app *fiber.App, method, target string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestCreateJobEndpoint(t *testing.T) {
	f := newRecsFixture()

	resp := doJSON(t, f.app, http.MethodPost, "/api/recs/jobs", fiber.Map{
		"artists": []fiber.Map{{"name": "Low"}, {"name": "Duster"}},
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	var created model.JobCreatedResponse
	decodeBody(t, resp, &created)
	if created.JobID == "" {
		t.Fatal("expected a job id")
	}
	if created.Status != model.JobStatusQueued {
		t.Fatalf("expected queued, got %s", created.Status)
	}
	if created.StatusURL != "/api/recs/jobs/"+created.JobID {
		t.Fatalf("unexpected status url %q", created.StatusURL)
	}
	if created.ResultURL != "/api/recs/jobs/"+created.JobID+"/result" {
		t.Fatalf("unexpected result url %q", created.ResultURL)
	}

	if len(f.dispatcher.payloads) != 1 {
		t.Fatalf("expected 1 dispatched payload, got %d", len(f.dispatcher.payloads))
	}
	if f.dispatcher.payloads[0].SessionID != "user-1" {
		t.Fatalf("expected session id on payload, got %q", f.dispatcher.payloads[0].SessionID)
	}
}

func TestCreateJobValidation(t *testing.T) {
	f := newRecsFixture()

	resp := doJSON(t, f.app, http.MethodPost, "/api/recs/jobs", fiber.Map{"artists": []fiber.Map{}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty artists, got %d", resp.StatusCode)
	}
	if f.registry.Len() != 0 {
		t.Fatalf("rejected request must not create a job, got %d", f.registry.Len())
	}
}

func TestJobStatusEndpoint(t *testing.T) {
	f := newRecsFixture()
	job := f.registry.Create()

	resp := doJSON(t, f.app, http.MethodGet, "/api/recs/jobs/"+job.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var status model.JobStatusResponse
	decodeBody(t, resp, &status)
	if status.JobID != job.ID || status.Status != model.JobStatusQueued {
		t.Fatalf("unexpected status response: %+v", status)
	}

	resp = doJSON(t, f.app, http.MethodGet, "/api/recs/jobs/unknown", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown job, got %d", resp.StatusCode)
	}
}

func TestJobResultEndpoint(t *testing.T) {
	f := newRecsFixture()
	job := f.registry.Create()

	// Still queued: result is pending.
	resp := doJSON(t, f.app, http.MethodGet, "/api/recs/jobs/"+job.ID+"/result", nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202 for pending job, got %d", resp.StatusCode)
	}

	f.registry.Complete(job.ID, []model.Album{{ArtistID: 9, ArtistName: "Bedhead"}})
	resp = doJSON(t, f.app, http.MethodGet, "/api/recs/jobs/"+job.ID+"/result", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for done job, got %d", resp.StatusCode)
	}
	var result struct {
		JobID  string        `json:"job_id"`
		Albums []model.Album `json:"albums"`
		Count  int           `json:"count"`
	}
	decodeBody(t, resp, &result)
	if result.Count != 1 || len(result.Albums) != 1 {
		t.Fatalf("unexpected result payload: %+v", result)
	}

	failed := f.registry.Create()
	f.registry.Fail(failed.ID, "database error during album recommendation")
	resp = doJSON(t, f.app, http.MethodGet, "/api/recs/jobs/"+failed.ID+"/result", nil)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500 for failed job, got %d", resp.StatusCode)
	}
}

func TestAlbumsEndpointLenientSeeds(t *testing.T) {
	f := newRecsFixture()

	resp := doJSON(t, f.app, http.MethodGet, "/api/recs/albums?seeds=3,%20junk,1,3,", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	want := []int{3, 1}
	if len(f.oracle.seeds) != len(want) {
		t.Fatalf("expected seeds %v, got %v", want, f.oracle.seeds)
	}
	for i := range want {
		if f.oracle.seeds[i] != want[i] {
			t.Fatalf("expected seeds %v, got %v", want, f.oracle.seeds)
		}
	}

	// Rows end up cached on the caller's session.
	if len(f.sessions.saved["user-1"]) != 1 {
		t.Fatal("expected rows persisted to the session")
	}
}

func TestAlbumsEndpointNoSeeds(t *testing.T) {
	f := newRecsFixture()

	resp := doJSON(t, f.app, http.MethodGet, "/api/recs/albums?seeds=junk", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 when no seed parses, got %d", resp.StatusCode)
	}
}

func TestFromSpotifyRequiresSession(t *testing.T) {
	f := newRecsFixture()

	resp := doJSON(t, f.app, http.MethodPost, "/api/recs/albums/from-spotify", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a Spotify session, got %d", resp.StatusCode)
	}
}

func TestFromSpotifyEndpoint(t *testing.T) {
	f := newRecsFixture()
	f.sessions.sessions["user-1"] = &model.Session{SpotifyAccessToken: "tok"}

	resp := doJSON(t, f.app, http.MethodPost, "/api/recs/albums/from-spotify", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Count    int      `json:"count"`
		Resolved []string `json:"resolved"`
		Missed   []string `json:"missed"`
	}
	decodeBody(t, resp, &result)
	if result.Count != 1 {
		t.Fatalf("expected 1 album, got %d", result.Count)
	}
	if len(result.Resolved) != 1 || result.Resolved[0] != "Low" {
		t.Fatalf("unexpected resolved list: %v", result.Resolved)
	}
}

func TestAddArtistEndpoint(t *testing.T) {
	f := newRecsFixture()

	resp := doJSON(t, f.app, http.MethodPost, "/api/recs/albums/add-artist", fiber.Map{"name": "Low"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	resp = doJSON(t, f.app, http.MethodPost, "/api/recs/albums/add-artist", fiber.Map{"name": "Nobody"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown artist, got %d", resp.StatusCode)
	}

	resp = doJSON(t, f.app, http.MethodPost, "/api/recs/albums/add-artist", fiber.Map{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing name, got %d", resp.StatusCode)
	}
}

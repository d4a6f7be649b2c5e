package service

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/musicatlas/api/internal/model"
)

func TestSelectClustersCumulativeTarget(t *testing.T) {
	weights := []model.ClusterWeight{
		{ClusterID: 1, Weight: 60},
		{ClusterID: 2, Weight: 25},
		{ClusterID: 3, Weight: 10},
		{ClusterID: 4, Weight: 5},
	}

	included, cum := selectClusters(weights)

	// 0.60 + 0.25 = 0.85 hits the target; clusters 3 and 4 stay out.
	if len(included) != 2 {
		t.Fatalf("expected 2 included clusters, got %d", len(included))
	}
	if included[0].ClusterID != 1 || included[1].ClusterID != 2 {
		t.Fatalf("expected clusters [1 2], got %+v", included)
	}
	if math.Abs(cum-0.85) > 1e-9 {
		t.Fatalf("expected cumulative share 0.85, got %f", cum)
	}
	if math.Abs(included[0].WeightShare-0.60) > 1e-9 {
		t.Fatalf("expected share 0.60 for cluster 1, got %f", included[0].WeightShare)
	}
}

func TestSelectClustersIncludesCrossingCluster(t *testing.T) {
	weights := []model.ClusterWeight{
		{ClusterID: 1, Weight: 50},
		{ClusterID: 2, Weight: 40},
		{ClusterID: 3, Weight: 10},
	}

	included, cum := selectClusters(weights)

	// 0.50 alone is under target; cluster 2 crosses it and is included.
	if len(included) != 2 {
		t.Fatalf("expected 2 included clusters, got %d", len(included))
	}
	if math.Abs(cum-0.90) > 1e-9 {
		t.Fatalf("expected cumulative share 0.90, got %f", cum)
	}
}

func TestSelectClustersMinShareFilter(t *testing.T) {
	weights := []model.ClusterWeight{
		{ClusterID: 1, Weight: 98},
		{ClusterID: 2, Weight: 2}, // 2% < MinClusterShare
	}

	included, _ := selectClusters(weights)
	if len(included) != 1 || included[0].ClusterID != 1 {
		t.Fatalf("expected only cluster 1, got %+v", included)
	}
}

func TestSelectClustersTieBreakByClusterID(t *testing.T) {
	weights := []model.ClusterWeight{
		{ClusterID: 9, Weight: 40},
		{ClusterID: 2, Weight: 40},
		{ClusterID: 5, Weight: 20},
	}

	included, _ := selectClusters(weights)
	if included[0].ClusterID != 2 || included[1].ClusterID != 9 {
		t.Fatalf("equal weights must order by cluster id, got %+v", included)
	}
}

func TestSelectClustersZeroTotal(t *testing.T) {
	included, cum := selectClusters([]model.ClusterWeight{{ClusterID: 1, Weight: 0}})
	if included != nil || cum != 0 {
		t.Fatalf("expected nothing included for zero total weight, got %+v", included)
	}
}

func TestStrengthFor(t *testing.T) {
	cases := []struct {
		albums int
		want   string
	}{
		{20, model.StrengthStrong},
		{19, model.StrengthModerate},
		{10, model.StrengthModerate},
		{9, model.StrengthWeak},
	}
	for _, tc := range cases {
		if got := strengthFor(tc.albums); got != tc.want {
			t.Errorf("strengthFor(%d) = %s, want %s", tc.albums, got, tc.want)
		}
	}
}

func TestBuildTasteBuckets(t *testing.T) {
	rows := []model.Album{
		{ArtistID: 100, ArtistName: "Low"},
		{ArtistID: 101, ArtistName: "Duster"},
		{ArtistID: 102, ArtistName: "Bedhead"},
		{ArtistID: 103, ArtistName: "Unmapped"},
	}
	included := []model.ClusterWeight{
		{ClusterID: 1, Weight: 60, WeightShare: 0.60},
		{ClusterID: 2, Weight: 25, WeightShare: 0.25},
	}
	labels := map[int]model.ClusterLabel{
		1: {ClusterID: 1, LabelPrimary: "Slowcore", TopSpotifyGenres: []string{"slowcore"}},
	}
	artistClusters := map[int]int{
		100: 1,
		101: 1,
		102: 2,
		// 103 unmapped -> Other
	}

	buckets, validation := BuildTasteBuckets(rows, included, labels, artistClusters, 0.85, true)

	if len(buckets) != 3 {
		t.Fatalf("expected 3 displayed buckets, got %d", len(buckets))
	}

	if buckets[0].LabelPrimary != "Slowcore" || buckets[0].AlbumCount != 2 {
		t.Fatalf("unexpected first bucket: %+v", buckets[0])
	}
	if buckets[0].Strength != model.StrengthWeak {
		t.Fatalf("expected Weak for 2 albums, got %s", buckets[0].Strength)
	}

	// Cluster 2 has no label row and falls back to a generated one.
	if buckets[1].LabelPrimary != "Cluster 2" {
		t.Fatalf("expected fallback label, got %q", buckets[1].LabelPrimary)
	}
	if buckets[1].Strength != model.StrengthWeak {
		t.Fatalf("expected Weak for 1 album, got %s", buckets[1].Strength)
	}

	other := buckets[len(buckets)-1]
	if other.ClusterID != nil {
		t.Fatal("expected the Other bucket to carry no cluster id")
	}
	if other.LabelPrimary != "Other" || other.AlbumCount != 1 {
		t.Fatalf("unexpected Other bucket: %+v", other)
	}
	if other.Strength != "" || other.Weight != 0 {
		t.Fatalf("Other bucket must carry no weight or strength: %+v", other)
	}

	if validation == nil {
		t.Fatal("expected a validation report")
	}
	if !validation.OK {
		t.Fatalf("expected OK report, got %+v", validation)
	}
	if validation.AlbumTotal != len(rows) {
		t.Fatalf("expected album total %d, got %d", len(rows), validation.AlbumTotal)
	}
	if !validation.HasOther {
		t.Fatal("expected has_other")
	}
	if validation.IncludedClusterCount != 2 || validation.DisplayedBucketCount != 3 {
		t.Fatalf("unexpected counts: %+v", validation)
	}
	if validation.MinWeightShareIncluded == nil || math.Abs(*validation.MinWeightShareIncluded-0.25) > 1e-9 {
		t.Fatalf("expected min included share 0.25, got %v", validation.MinWeightShareIncluded)
	}
}

func TestBuildTasteBucketsHidesEmptyClusters(t *testing.T) {
	rows := []model.Album{{ArtistID: 100}}
	included := []model.ClusterWeight{
		{ClusterID: 1, Weight: 60, WeightShare: 0.6},
		{ClusterID: 2, Weight: 25, WeightShare: 0.25},
	}
	artistClusters := map[int]int{100: 1}

	buckets, validation := BuildTasteBuckets(rows, included, nil, artistClusters, 0.85, true)

	if len(buckets) != 1 {
		t.Fatalf("expected the empty cluster hidden, got %d buckets", len(buckets))
	}
	if validation.HiddenZeroAlbumBucketCount != 1 {
		t.Fatalf("expected 1 hidden bucket, got %d", validation.HiddenZeroAlbumBucketCount)
	}
	if validation.HasOther {
		t.Fatal("expected no Other bucket when every row maps to a cluster")
	}
}

func TestBuildTasteBucketsNoValidation(t *testing.T) {
	buckets, validation := BuildTasteBuckets(nil, []model.ClusterWeight{{ClusterID: 1, Weight: 10}}, nil, nil, 1, false)
	if validation != nil {
		t.Fatal("expected no validation report")
	}
	if len(buckets) != 0 {
		t.Fatalf("expected no displayed buckets for no rows, got %d", len(buckets))
	}
}

// fakeClusterStore serves canned cluster data.
type fakeClusterStore struct {
	weights        []model.ClusterWeight
	labels         map[int]model.ClusterLabel
	artistClusters map[int]int
}

func (s *fakeClusterStore) UserClusterWeights(_ context.Context, _ string, _ int) ([]model.ClusterWeight, error) {
	return s.weights, nil
}

func (s *fakeClusterStore) ClusterLabels(_ context.Context, _ []int) (map[int]model.ClusterLabel, error) {
	if s.labels == nil {
		return map[int]model.ClusterLabel{}, nil
	}
	return s.labels, nil
}

func (s *fakeClusterStore) ArtistPrimaryClusters(_ context.Context, _ []int) (map[int]int, error) {
	if s.artistClusters == nil {
		return map[int]int{}, nil
	}
	return s.artistClusters, nil
}

// fakeSessionStore is an in-memory SessionStore.
type fakeSessionStore struct {
	sessions map[string]*model.Session
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]*model.Session)}
}

func (s *fakeSessionStore) Get(_ context.Context, userID string) (*model.Session, error) {
	return s.sessions[userID], nil
}

func (s *fakeSessionStore) SaveAlbumRecs(_ context.Context, userID string, rows []model.Album) error {
	session := s.sessions[userID]
	if session == nil {
		session = &model.Session{}
		s.sessions[userID] = session
	}
	session.AlbumRecs = rows
	return nil
}

type fakeTopArtists struct {
	artists []model.SimpleArtist
	err     error
}

func (f *fakeTopArtists) TopArtists(_ context.Context, _ string, _ int) ([]model.SimpleArtist, error) {
	return f.artists, f.err
}

func newTestTasteService(clusters ClusterStore, sessions SessionStore, top TopArtistSource, catalog ArtistCatalog, oracle RecsOracle) *TasteService {
	recs := newTestRecsService(nil, catalog, oracle, &fakeDispatcher{})
	return NewTasteService(clusters, sessions, top, recs, NewEnrichmentService(&fakeSearcher{}), 25, 50)
}

func TestProfileRequiresSpotifySession(t *testing.T) {
	s := newTestTasteService(&fakeClusterStore{}, newFakeSessionStore(), &fakeTopArtists{}, nil, &fakeOracle{})

	_, err := s.Profile(context.Background(), "user-1", false)
	if !errors.Is(err, ErrNoSpotifySession) {
		t.Fatalf("expected ErrNoSpotifySession, got %v", err)
	}
}

func TestProfileUsesCachedRows(t *testing.T) {
	rows := make([]model.Album, 50)
	for i := range rows {
		rows[i] = model.Album{ArtistID: 100}
	}
	sessions := newFakeSessionStore()
	sessions.sessions["user-1"] = &model.Session{AlbumRecs: rows}

	clusters := &fakeClusterStore{
		weights:        []model.ClusterWeight{{ClusterID: 1, Weight: 100}},
		artistClusters: map[int]int{100: 1},
	}
	top := &fakeTopArtists{err: errors.New("must not be called")}
	s := newTestTasteService(clusters, sessions, top, nil, &fakeOracle{err: errors.New("must not be called")})

	profile, err := s.Profile(context.Background(), "user-1", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if profile.TotalAlbums != 50 {
		t.Fatalf("expected 50 albums from cache, got %d", profile.TotalAlbums)
	}
	if len(profile.Buckets) != 1 {
		t.Fatalf("expected 1 bucket, got %d", len(profile.Buckets))
	}
}

func TestProfileRefreshesSparseCache(t *testing.T) {
	sessions := newFakeSessionStore()
	sessions.sessions["user-1"] = &model.Session{SpotifyAccessToken: "tok"}

	catalog := newFakeCatalog()
	catalog.ids["Low"] = 100
	oracle := &fakeOracle{rows: []model.Album{{ArtistID: 100, ArtistName: "Low"}}}
	clusters := &fakeClusterStore{
		weights:        []model.ClusterWeight{{ClusterID: 1, Weight: 100}},
		artistClusters: map[int]int{100: 1},
	}
	top := &fakeTopArtists{artists: []model.SimpleArtist{{Name: "Low"}}}
	s := newTestTasteService(clusters, sessions, top, catalog, oracle)

	profile, err := s.Profile(context.Background(), "user-1", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if profile.TotalAlbums != 1 {
		t.Fatalf("expected 1 refreshed album, got %d", profile.TotalAlbums)
	}
	if len(sessions.sessions["user-1"].AlbumRecs) != 1 {
		t.Fatal("expected refreshed rows persisted to the session")
	}
}

func TestProfileNoClusters(t *testing.T) {
	rows := make([]model.Album, 50)
	sessions := newFakeSessionStore()
	sessions.sessions["user-1"] = &model.Session{AlbumRecs: rows}

	s := newTestTasteService(&fakeClusterStore{}, sessions, &fakeTopArtists{}, nil, &fakeOracle{})
	if _, err := s.Profile(context.Background(), "user-1", false); !errors.Is(err, ErrNoTasteClusters) {
		t.Fatalf("expected ErrNoTasteClusters, got %v", err)
	}
}

package service

import (
	"context"

	"github.com/musicatlas/api/internal/model"
)

// ArtistCatalog is the external catalog the resolver consults. LookupFullArtist
// returns (nil, nil) when no candidate matches.
type ArtistCatalog interface {
	LookupFullArtist(ctx context.Context, name string) (*model.FullArtist, error)
	UpsertSpotifyGenres(ctx context.Context, internalID int, genres []string) error
}

// RecsOracle is the pre-aggregated ranking function. One call, fully
// materialized result; any failure is fatal for the invoking pipeline stage.
type RecsOracle interface {
	AlbumRecs(ctx context.Context, seeds []int, params model.RecsParams) ([]model.Album, error)
}

// AlbumSearcher is the best-effort album catalog search. Implementations
// must swallow transport and rate-limit failures and return an empty slice.
type AlbumSearcher interface {
	SearchAlbums(ctx context.Context, albumName, artistName string) []model.SpotifyAlbumCandidate
}

// ClusterStore provides read-only lookups against the clustering tables.
type ClusterStore interface {
	UserClusterWeights(ctx context.Context, userID string, topN int) ([]model.ClusterWeight, error)
	ClusterLabels(ctx context.Context, ids []int) (map[int]model.ClusterLabel, error)
	ArtistPrimaryClusters(ctx context.Context, artistIDs []int) (map[int]int, error)
}

// TopArtistSource fetches the caller's current top artists with their bearer
// credential.
type TopArtistSource interface {
	TopArtists(ctx context.Context, accessToken string, limit int) ([]model.SimpleArtist, error)
}

// SessionStore persists per-user state between requests. Get returns
// (nil, nil) when no session exists.
type SessionStore interface {
	Get(ctx context.Context, userID string) (*model.Session, error)
	SaveAlbumRecs(ctx context.Context, userID string, rows []model.Album) error
}

// Dispatcher hands a job payload to the background execution layer.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID string, payload model.RecsJobPayload) error
}

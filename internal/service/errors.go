package service

import "errors"

// Sentinel errors classify failures per caller-visible category. Handlers map
// them onto response codes with errors.Is; anything unmatched is a plain
// internal error.
var (
	// Input errors — the caller's fault, never retried.
	ErrEmptyArtists    = errors.New("artists list cannot be empty")
	ErrEmptyName       = errors.New("artist name cannot be empty")
	ErrInvalidSeeds    = errors.New("seeds must contain at least one integer")
	ErrNoSeedsResolved = errors.New("no MusicBrainz artist IDs resolved from input artists")

	// Not-found errors.
	ErrJobNotFound        = errors.New("job not found")
	ErrArtistNotFound     = errors.New("artist not found in catalog")
	ErrNoTasteClusters    = errors.New("no taste clusters found for user")
	ErrNoIncludedClusters = errors.New("no taste clusters met inclusion thresholds")

	// Auth precondition for taste refresh.
	ErrNoSpotifySession = errors.New("not logged in with Spotify")

	// External dependency failures.
	ErrOracleFailure = errors.New("database error during album recommendation")
	ErrSeedIngestion = errors.New("Spotify seed ingestion failed")
)

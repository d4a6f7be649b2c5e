package model

import "time"

// Job status
type JobStatus string

const (
	JobStatusQueued  JobStatus = "queued"
	JobStatusRunning JobStatus = "running"
	JobStatusDone    JobStatus = "done"
	JobStatusError   JobStatus = "error"
)

// Pipeline stages reported through JobProgress.Stage.
const (
	StageQueued           = "queued"
	StageResolvingSeeds   = "resolving_seeds"
	StageResolved         = "resolved"
	StageFetchingRecs     = "fetching_recs"
	StageEnrichingSpotify = "enriching_spotify"
	StageDone             = "done"
	StageError            = "error"
)

// JobProgress is replaced wholesale on every stage transition.
type JobProgress struct {
	Stage  string         `json:"stage"`
	Counts map[string]int `json:"counts"`
}

// Job is a unit of asynchronous recommendation work. Jobs live only in the
// in-memory registry and are evicted once ExpiresAt passes.
type Job struct {
	ID        string      `json:"id"`
	Status    JobStatus   `json:"status"`
	Progress  JobProgress `json:"progress"`
	Result    []Album     `json:"-"`
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

// RecsParams are the tunables forwarded to the ranking oracle.
type RecsParams struct {
	K             int  `json:"k"`
	WindowYears   int  `json:"windowYears"`
	MinTracks     int  `json:"minTracks"`
	MaxPerTag     int  `json:"maxPerTag"`
	EnrichSpotify bool `json:"enrichSpotify"`
}

// DefaultRecsParams mirrors the query defaults of the albums endpoints.
func DefaultRecsParams() RecsParams {
	return RecsParams{
		K:             50,
		WindowYears:   1,
		MinTracks:     3,
		MaxPerTag:     2,
		EnrichSpotify: true,
	}
}

// RecsJobPayload is the task payload handed to the background worker.
type RecsJobPayload struct {
	Artists   []SimpleArtist `json:"artists"`
	Params    RecsParams     `json:"params"`
	SessionID string         `json:"sessionId,omitempty"`
}

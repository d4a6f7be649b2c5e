package model

import "time"

// RecsJobRequest creates a background recommendation job.
type RecsJobRequest struct {
	Artists       []SimpleArtist `json:"artists" validate:"required,min=1,dive"`
	K             int            `json:"k"`
	WindowYears   int            `json:"windowYears"`
	MinTracks     int            `json:"minTracks"`
	MaxPerTag     int            `json:"maxPerTag"`
	EnrichSpotify *bool          `json:"enrichSpotify"`
}

// Params folds the request overrides onto the defaults. Zero values keep the
// default; EnrichSpotify is a tri-state so an explicit false survives.
func (r *RecsJobRequest) Params() RecsParams {
	p := DefaultRecsParams()
	if r.K > 0 {
		p.K = r.K
	}
	if r.WindowYears > 0 {
		p.WindowYears = r.WindowYears
	}
	if r.MinTracks > 0 {
		p.MinTracks = r.MinTracks
	}
	if r.MaxPerTag > 0 {
		p.MaxPerTag = r.MaxPerTag
	}
	if r.EnrichSpotify != nil {
		p.EnrichSpotify = *r.EnrichSpotify
	}
	return p
}

// AddArtistRequest resolves a single artist name and fetches recs for it.
type AddArtistRequest struct {
	Name string `json:"name" validate:"required"`
}

// JobCreatedResponse is returned from job creation with polling URLs.
type JobCreatedResponse struct {
	JobID     string      `json:"job_id"`
	Status    JobStatus   `json:"status"`
	Progress  JobProgress `json:"progress"`
	StatusURL string      `json:"status_url"`
	ResultURL string      `json:"result_url"`
}

// JobStatusResponse is the polling view of a job.
type JobStatusResponse struct {
	JobID     string      `json:"job_id"`
	Status    JobStatus   `json:"status"`
	Progress  JobProgress `json:"progress"`
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// JobPendingResponse signals a result request against an unfinished job.
type JobPendingResponse struct {
	JobID    string      `json:"job_id"`
	Status   JobStatus   `json:"status"`
	Progress JobProgress `json:"progress"`
	Detail   string      `json:"detail"`
}

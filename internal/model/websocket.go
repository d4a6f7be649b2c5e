package model

// WebSocket message types
const (
	WSMessageTypeProgress = "progress"
	WSMessageTypeComplete = "complete"
	WSMessageTypeError    = "error"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSProgressMessage is pushed to job subscribers on each stage transition.
type WSProgressMessage struct {
	Type   string         `json:"type"`
	JobID  string         `json:"jobId"`
	Status JobStatus      `json:"status"`
	Stage  string         `json:"stage"`
	Counts map[string]int `json:"counts,omitempty"`
}

// WSCompleteMessage announces a finished job with its album count.
type WSCompleteMessage struct {
	Type       string `json:"type"`
	JobID      string `json:"jobId"`
	AlbumCount int    `json:"albumCount"`
}

// WSErrorMessage announces a failed job.
type WSErrorMessage struct {
	Type    string `json:"type"`
	JobID   string `json:"jobId"`
	Message string `json:"message"`
}

package api

import (
	"github.com/clipforge/clipforge-server/internal/jobs"
	"github.com/clipforge/clipforge-server/internal/twitch"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type JobsResponse struct {
	Jobs []*jobs.Job `json:"jobs"`
}

// ClipsResponse mirrors the legacy clips feed contract: failures degrade to
// an empty list plus an error string, always with HTTP 200.
type ClipsResponse struct {
	Clips []twitch.Clip `json:"clips"`
	Error string        `json:"error,omitempty"`
}

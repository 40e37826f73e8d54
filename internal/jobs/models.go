// Package jobs stores the run history of the clip pipeline so the admin
// dashboard can show recent cuts and failures.
package jobs

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

type Job struct {
	ID         string    `json:"id"`
	VODID      string    `json:"vod_id"`
	ClipCount  int       `json:"clip_count"`
	ClipLength int       `json:"clip_length"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// New returns a pending job for one clip run.
func New(vodID string, clipCount, clipLength int) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:         uuid.NewString(),
		VODID:      vodID,
		ClipCount:  clipCount,
		ClipLength: clipLength,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

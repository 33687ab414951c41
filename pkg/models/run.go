package models

import "time"

// RunStatus represents the current state of a check-in run
type RunStatus string

const (
	StatusRunning   RunStatus = "RUNNING"
	StatusSucceeded RunStatus = "SUCCEEDED"
	StatusFailed    RunStatus = "FAILED"
	StatusError     RunStatus = "ERROR"
	StatusTimedOut  RunStatus = "TIMED_OUT"
)

// Run represents one pass through the check-in flow
type Run struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Status      RunStatus  `json:"status"`
	StartedAt   time.Time  `json:"startedAt"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty"`
	Timeout     int        `json:"timeout"`
	Message     string     `json:"message,omitempty"`
	Screenshots []string   `json:"screenshots,omitempty"`
	ConnectURL  string     `json:"-"`
	ContainerID string     `json:"-"`
}

// Done reports whether the run has reached a terminal state
func (r *Run) Done() bool {
	return r.Status != StatusRunning
}

// LastScreenshot returns the most recently saved screenshot path, if any
func (r *Run) LastScreenshot() string {
	if len(r.Screenshots) == 0 {
		return ""
	}
	return r.Screenshots[len(r.Screenshots)-1]
}

// CreateRunRequest is the payload for triggering a run. Empty credentials
// fall back to the configured account.
type CreateRunRequest struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Timeout  int    `json:"timeout,omitempty"`
}

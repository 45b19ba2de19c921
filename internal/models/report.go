package models

import "time"

// CycleReport summarizes a single poll cycle for the status endpoint and logs.
type CycleReport struct {
	CycleID    string    `json:"cycle_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Searched   int       `json:"searched"`
	Matched    int       `json:"matched"`
	Notified   int       `json:"notified"`
	Skipped    int       `json:"skipped"`
	Cursor     uint32    `json:"cursor"`
	Error      string    `json:"error,omitempty"`
}

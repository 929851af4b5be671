package storage

import "time"

// RunRow is a lightweight listing row for /runs and `history list`.
type RunRow struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	Scope      string    `json:"scope,omitempty"`
	Branch     string    `json:"branch,omitempty"`
	Project    string    `json:"project,omitempty"`
	Violations int       `json:"violations"`
	Critical   int       `json:"critical"`
}

package models

import "time"

// SessionRecord is a stored progress session
type SessionRecord struct {
	SessionID     string
	UserID        string
	Mode          string
	ListName      string
	ListSize      *int
	AssignmentRun string
	Summary       map[string]any
	StartedAt     time.Time
	EndedAt       *time.Time
}

// IsEnded reports whether a session_end was recorded
func (s *SessionRecord) IsEnded() bool {
	return s.EndedAt != nil
}

// AttemptRecord is a stored per-word attempt row
type AttemptRecord struct {
	ID        int64
	UserID    string
	Attempt   Attempt
	Points    int
	CreatedAt time.Time
}

// PointsCount is the lightweight total returned by the count endpoint
type PointsCount struct {
	Correct int `json:"correct"`
	Points  int `json:"points"`
}

// Overview is the richer progress summary
type Overview struct {
	Points   int     `json:"points"`
	Sessions int     `json:"sessions"`
	Attempts int     `json:"attempts"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
}

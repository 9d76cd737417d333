package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventType discriminates requests sent to the logging endpoint
type EventType string

const (
	EventSessionStart  EventType = "session_start"
	EventSessionEnd    EventType = "session_end"
	EventAttempt       EventType = "attempt"
	EventAttemptsBatch EventType = "attempts_batch"
)

// UnknownMode is used when a caller does not name the lesson type
const UnknownMode = "unknown"

// ExtraAssignmentRun is the metadata key carrying the assignment run token
const ExtraAssignmentRun = "assignment_run"

// Session represents one play-through of a lesson mode
type Session struct {
	ID            string
	Mode          string
	ListName      string
	ListSize      *int
	AssignmentRun string
	Meta          map[string]any
	StartedAt     time.Time
}

// NewSessionID generates a client-side session identifier
func NewSessionID() string {
	return "session-" + uuid.New().String()
}

// StartEvent builds the session_start envelope for this session
func (s *Session) StartEvent(userID string) Event {
	extra := cloneExtra(s.Meta)
	if s.AssignmentRun != "" {
		extra[ExtraAssignmentRun] = s.AssignmentRun
	}
	return Event{
		Type:      EventSessionStart,
		SessionID: s.ID,
		Mode:      modeOrUnknown(s.Mode),
		UserID:    userID,
		ListName:  s.ListName,
		ListSize:  s.ListSize,
		Extra:     extra,
	}
}

// Attempt is one answer within a session
type Attempt struct {
	SessionID     string         `json:"session_id,omitempty"`
	Mode          string         `json:"mode,omitempty"`
	Word          string         `json:"word"`
	IsCorrect     bool           `json:"is_correct"`
	Answer        string         `json:"answer,omitempty"`
	CorrectAnswer string         `json:"correct_answer,omitempty"`
	Points        *int           `json:"points,omitempty"`
	AttemptIndex  *int           `json:"attempt_index,omitempty"`
	DurationMs    *int64         `json:"duration_ms,omitempty"`
	Round         *int           `json:"round,omitempty"`
	Extra         map[string]any `json:"extra,omitempty"`
}

// Valid reports whether the attempt carries the required prompt identifier
func (a *Attempt) Valid() bool {
	return strings.TrimSpace(a.Word) != ""
}

// OptimisticDelta is the local point increment shown for a correct attempt
func (a *Attempt) OptimisticDelta() int {
	if a.Points != nil && *a.Points > 0 {
		return *a.Points
	}
	return 1
}

// SafePoints mirrors the server rule: a missing or zero override scores 1 when correct, else 0
func (a *Attempt) SafePoints() int {
	if a.Points == nil || *a.Points == 0 {
		if a.IsCorrect {
			return 1
		}
		return 0
	}
	return *a.Points
}

// Event is the JSON envelope posted to the logging endpoint.
// The embedded attempt carries the flattened fields of a single "attempt" event.
type Event struct {
	Type      EventType      `json:"event_type"`
	SessionID string         `json:"session_id,omitempty"`
	Mode      string         `json:"mode,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
	ListName  string         `json:"list_name,omitempty"`
	ListSize  *int           `json:"list_size,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
	Attempts  []Attempt      `json:"attempts,omitempty"`

	*Attempt
}

// SetExtra sets a metadata key, allocating the map if needed
func (e *Event) SetExtra(key string, value any) {
	if e.Extra == nil {
		e.Extra = make(map[string]any)
	}
	e.Extra[key] = value
}

// BatchGroup is a set of attempts from one session sent in a single request
type BatchGroup struct {
	SessionID string
	Mode      string
	Attempts  []Attempt
}

// Event builds the attempts_batch envelope for the group
func (g BatchGroup) Event(userID string) Event {
	return Event{
		Type:      EventAttemptsBatch,
		SessionID: g.SessionID,
		Mode:      modeOrUnknown(g.Mode),
		UserID:    userID,
		Attempts:  g.Attempts,
	}
}

// GroupBySession partitions attempts by session, preserving first-seen order
func GroupBySession(attempts []Attempt) []BatchGroup {
	index := make(map[string]int)
	var groups []BatchGroup
	for _, a := range attempts {
		i, ok := index[a.SessionID]
		if !ok {
			i = len(groups)
			index[a.SessionID] = i
			groups = append(groups, BatchGroup{SessionID: a.SessionID, Mode: a.Mode})
		}
		if groups[i].Mode == "" {
			groups[i].Mode = a.Mode
		}
		groups[i].Attempts = append(groups[i].Attempts, a)
	}
	return groups
}

// LogResponse is the optional body returned by the logging endpoint
type LogResponse struct {
	OK          bool   `json:"ok"`
	Inserted    int    `json:"inserted,omitempty"`
	PointsTotal *int   `json:"points_total,omitempty"`
	Error       string `json:"error,omitempty"`
}

func modeOrUnknown(mode string) string {
	if mode == "" {
		return UnknownMode
	}
	return mode
}

func cloneExtra(src map[string]any) map[string]any {
	out := make(map[string]any, len(src)+1)
	for k, v := range src {
		out[k] = v
	}
	return out
}

// WithExtra returns a copy of the attempt whose metadata includes key=value unless already set
func (a Attempt) WithExtra(key string, value any) Attempt {
	if _, ok := a.Extra[key]; ok {
		return a
	}
	a.Extra = cloneExtra(a.Extra)
	a.Extra[key] = value
	return a
}

package service

import (
	"fmt"
	"log"
	"strings"
	"time"

	"wordrecords/internal/database"
	"wordrecords/internal/models"
	"wordrecords/internal/repository"
)

// EventResult is what the logging endpoint reports back for one event
type EventResult struct {
	Inserted    int
	PointsTotal *int
}

// ActivityService records sessions and attempts sent by the game client
type ActivityService struct {
	db       *database.DB
	activity *repository.ActivityRepository
	now      func() time.Time
}

// NewActivityService creates a new activity service
func NewActivityService(db *database.DB) *ActivityService {
	return &ActivityService{
		db:       db,
		activity: repository.NewActivityRepository(db),
		now:      time.Now,
	}
}

// HandleEvent validates one logging event and stores it for userID.
// Session rows are created or filled in within the same transaction as attempt rows.
func (s *ActivityService) HandleEvent(userID string, ev models.Event) (*EventResult, error) {
	if ev.Type == "" {
		return nil, ErrMissingEventType
	}
	switch ev.Type {
	case models.EventSessionStart, models.EventSessionEnd, models.EventAttempt, models.EventAttemptsBatch:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, ev.Type)
	}
	if userID == "" {
		return nil, ErrNotSignedIn
	}

	switch ev.Type {
	case models.EventSessionStart:
		return &EventResult{}, s.startSession(userID, ev)
	case models.EventSessionEnd:
		return &EventResult{}, s.endSession(userID, ev)
	case models.EventAttempt:
		if ev.Attempt == nil || !ev.Attempt.Valid() {
			return nil, ErrMissingWord
		}
		a := *ev.Attempt
		a.SessionID = ev.SessionID
		a.Mode = ev.Mode
		a.Extra = ev.Extra
		return s.recordAttempts(userID, ev, []models.Attempt{a})
	}

	rows := batchRows(ev)
	if len(rows) == 0 {
		return nil, ErrEmptyBatch
	}
	return s.recordAttempts(userID, ev, rows)
}

// batchRows applies the envelope's session and mode to each attempt and drops rows without a word
func batchRows(ev models.Event) []models.Attempt {
	rows := make([]models.Attempt, 0, len(ev.Attempts))
	for _, a := range ev.Attempts {
		if !a.Valid() {
			continue
		}
		if ev.SessionID != "" {
			a.SessionID = ev.SessionID
		}
		if ev.Mode != "" && ev.Mode != models.UnknownMode {
			a.Mode = ev.Mode
		}
		rows = append(rows, a)
	}
	return rows
}

func (s *ActivityService) startSession(userID string, ev models.Event) error {
	if ev.SessionID == "" {
		return ErrMissingSessionID
	}
	err := s.activity.UpsertSession(sessionUpsert(userID, ev))
	if err != nil {
		return fmt.Errorf("failed to record session start: %w", err)
	}
	return nil
}

func (s *ActivityService) endSession(userID string, ev models.Event) error {
	if ev.SessionID == "" {
		return ErrMissingSessionID
	}
	return s.db.WithTx(func(tx *database.Tx) error {
		repo := repository.NewActivityRepository(tx)
		if err := repo.UpsertSession(sessionUpsert(userID, ev)); err != nil {
			return fmt.Errorf("failed to record session end: %w", err)
		}
		if err := repo.EndSession(ev.SessionID, userID, ev.Extra, s.now()); err != nil {
			return fmt.Errorf("failed to record session end: %w", err)
		}
		return nil
	})
}

func (s *ActivityService) recordAttempts(userID string, ev models.Event, attempts []models.Attempt) (*EventResult, error) {
	result := &EventResult{}
	err := s.db.WithTx(func(tx *database.Tx) error {
		repo := repository.NewActivityRepository(tx)
		if ev.SessionID != "" {
			if err := repo.UpsertSession(repository.SessionUpsert{SessionID: ev.SessionID, UserID: userID, Mode: ev.Mode}); err != nil {
				return err
			}
		}
		n, err := repo.InsertAttempts(userID, attempts)
		result.Inserted = n
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record attempts: %w", err)
	}

	pc, err := s.activity.PointsCount(userID)
	if err != nil {
		log.Printf("points total unavailable for %s: %v", userID, err)
		return result, nil
	}
	result.PointsTotal = &pc.Points
	return result, nil
}

func sessionUpsert(userID string, ev models.Event) repository.SessionUpsert {
	up := repository.SessionUpsert{
		SessionID: ev.SessionID,
		UserID:    userID,
		Mode:      ev.Mode,
		ListName:  ev.ListName,
		ListSize:  ev.ListSize,
	}
	if run, ok := ev.Extra[models.ExtraAssignmentRun].(string); ok {
		up.AssignmentRun = strings.TrimSpace(run)
	}
	return up
}

// PointsCount returns the lightweight points total for a student
func (s *ActivityService) PointsCount(userID string) (models.PointsCount, error) {
	if userID == "" {
		return models.PointsCount{}, ErrNotSignedIn
	}
	return s.activity.PointsCount(userID)
}

// Overview returns the progress summary for a student
func (s *ActivityService) Overview(userID string) (models.Overview, error) {
	if userID == "" {
		return models.Overview{}, ErrNotSignedIn
	}
	return s.activity.Overview(userID)
}

// Session returns a stored session, or nil when unknown
func (s *ActivityService) Session(sessionID string) (*models.SessionRecord, error) {
	return s.activity.GetSession(sessionID)
}

// Attempts returns the stored attempts of a session
func (s *ActivityService) Attempts(sessionID string) ([]models.AttemptRecord, error) {
	return s.activity.ListAttempts(sessionID)
}

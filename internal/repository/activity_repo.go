package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"wordrecords/internal/database"
	"wordrecords/internal/models"
)

// ErrSessionOwner is returned when a session id is already recorded for another student
var ErrSessionOwner = errors.New("session belongs to another student")

// ActivityRepository stores progress sessions and attempts
type ActivityRepository struct {
	db database.DBTX
}

// NewActivityRepository creates a new activity repository. db may be a transaction.
func NewActivityRepository(db database.DBTX) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// SessionUpsert carries the session columns an event may set. Empty values never overwrite stored ones.
type SessionUpsert struct {
	SessionID     string
	UserID        string
	Mode          string
	ListName      string
	ListSize      *int
	AssignmentRun string
}

// UpsertSession inserts the session row or fills in columns it is missing.
// Only the student who created a session may change it.
func (r *ActivityRepository) UpsertSession(s SessionUpsert) error {
	var owner string
	err := r.db.QueryRow("SELECT user_id FROM progress_sessions WHERE session_id = ?", s.SessionID).Scan(&owner)
	exists := true
	if err == sql.ErrNoRows {
		exists = false
	} else if err != nil {
		return fmt.Errorf("failed to look up session: %w", err)
	}
	if exists && owner != s.UserID {
		return ErrSessionOwner
	}

	mode := s.Mode
	if mode == "" {
		mode = models.UnknownMode
	}

	if !exists {
		query := `
			INSERT INTO progress_sessions (session_id, user_id, mode, list_name, list_size, assignment_run, started_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`
		_, err = r.db.Exec(query, s.SessionID, s.UserID, mode, nullString(s.ListName), nullInt(s.ListSize), nullString(s.AssignmentRun), time.Now().UTC())
		if err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}
		return nil
	}

	sets := "list_name = COALESCE(?, list_name), list_size = COALESCE(?, list_size), assignment_run = COALESCE(?, assignment_run)"
	args := []interface{}{nullString(s.ListName), nullInt(s.ListSize), nullString(s.AssignmentRun)}
	if mode != models.UnknownMode {
		sets = "mode = ?, " + sets
		args = append([]interface{}{mode}, args...)
	}
	args = append(args, s.SessionID, s.UserID)

	if _, err := r.db.Exec("UPDATE progress_sessions SET "+sets+" WHERE session_id = ? AND user_id = ?", args...); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

// EndSession records the end time and summary of a session owned by userID
func (r *ActivityRepository) EndSession(sessionID, userID string, summary map[string]any, endedAt time.Time) error {
	var summaryJSON sql.NullString
	if len(summary) > 0 {
		data, err := json.Marshal(summary)
		if err != nil {
			return fmt.Errorf("failed to encode summary: %w", err)
		}
		summaryJSON = sql.NullString{String: string(data), Valid: true}
	}

	var owner string
	err := r.db.QueryRow("SELECT user_id FROM progress_sessions WHERE session_id = ?", sessionID).Scan(&owner)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up session: %w", err)
	}
	if owner != userID {
		return ErrSessionOwner
	}

	query := "UPDATE progress_sessions SET ended_at = ?, summary = COALESCE(?, summary) WHERE session_id = ? AND user_id = ?"
	if _, err := r.db.Exec(query, endedAt.UTC(), summaryJSON, sessionID, userID); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	return nil
}

// GetSession retrieves a session, or nil when it does not exist
func (r *ActivityRepository) GetSession(sessionID string) (*models.SessionRecord, error) {
	query := `
		SELECT session_id, user_id, mode, list_name, list_size, assignment_run, summary, started_at, ended_at
		FROM progress_sessions
		WHERE session_id = ?
	`
	var (
		rec           models.SessionRecord
		listName      sql.NullString
		listSize      sql.NullInt64
		assignmentRun sql.NullString
		summary       sql.NullString
		endedAt       sql.NullTime
	)
	err := r.db.QueryRow(query, sessionID).Scan(
		&rec.SessionID,
		&rec.UserID,
		&rec.Mode,
		&listName,
		&listSize,
		&assignmentRun,
		&summary,
		&rec.StartedAt,
		&endedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	rec.ListName = listName.String
	rec.AssignmentRun = assignmentRun.String
	if listSize.Valid {
		n := int(listSize.Int64)
		rec.ListSize = &n
	}
	if summary.Valid && summary.String != "" {
		if err := json.Unmarshal([]byte(summary.String), &rec.Summary); err != nil {
			return nil, fmt.Errorf("failed to decode session summary: %w", err)
		}
	}
	if endedAt.Valid {
		rec.EndedAt = &endedAt.Time
	}
	return &rec, nil
}

// InsertAttempts stores attempt rows for a user and returns how many were written.
// Points follow the safe-points rule.
func (r *ActivityRepository) InsertAttempts(userID string, attempts []models.Attempt) (int, error) {
	query := `
		INSERT INTO progress_attempts
			(user_id, session_id, mode, word, is_correct, answer, correct_answer, points,
			 attempt_index, duration_ms, round, extra, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	inserted := 0
	for _, a := range attempts {
		extra, err := encodeExtra(a.Extra)
		if err != nil {
			return inserted, err
		}
		mode := a.Mode
		if mode == "" {
			mode = models.UnknownMode
		}
		_, err = r.db.Exec(query,
			userID,
			a.SessionID,
			mode,
			a.Word,
			a.IsCorrect,
			nullString(a.Answer),
			nullString(a.CorrectAnswer),
			a.SafePoints(),
			nullInt(a.AttemptIndex),
			nullInt64(a.DurationMs),
			nullInt(a.Round),
			extra,
			time.Now().UTC(),
		)
		if err != nil {
			return inserted, fmt.Errorf("failed to insert attempt: %w", err)
		}
		inserted++
	}
	return inserted, nil
}

// ListAttempts retrieves the attempts of a session in insertion order
func (r *ActivityRepository) ListAttempts(sessionID string) ([]models.AttemptRecord, error) {
	query := `
		SELECT id, user_id, session_id, mode, word, is_correct, answer, correct_answer, points,
		       attempt_index, duration_ms, round, extra, created_at
		FROM progress_attempts
		WHERE session_id = ?
		ORDER BY id ASC
	`
	rows, err := r.db.Query(query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempts: %w", err)
	}
	defer rows.Close()

	var records []models.AttemptRecord
	for rows.Next() {
		var (
			rec           models.AttemptRecord
			answer        sql.NullString
			correctAnswer sql.NullString
			attemptIndex  sql.NullInt64
			durationMs    sql.NullInt64
			round         sql.NullInt64
			extra         sql.NullString
		)
		err := rows.Scan(
			&rec.ID,
			&rec.UserID,
			&rec.Attempt.SessionID,
			&rec.Attempt.Mode,
			&rec.Attempt.Word,
			&rec.Attempt.IsCorrect,
			&answer,
			&correctAnswer,
			&rec.Points,
			&attemptIndex,
			&durationMs,
			&round,
			&extra,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		rec.Attempt.Answer = answer.String
		rec.Attempt.CorrectAnswer = correctAnswer.String
		points := rec.Points
		rec.Attempt.Points = &points
		rec.Attempt.AttemptIndex = intPtr(attemptIndex)
		rec.Attempt.Round = intPtr(round)
		if durationMs.Valid {
			d := durationMs.Int64
			rec.Attempt.DurationMs = &d
		}
		if extra.Valid && extra.String != "" {
			if err := json.Unmarshal([]byte(extra.String), &rec.Attempt.Extra); err != nil {
				return nil, fmt.Errorf("failed to decode attempt extra: %w", err)
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// PointsCount totals a user's correct answers and points
func (r *ActivityRepository) PointsCount(userID string) (models.PointsCount, error) {
	query := `
		SELECT COALESCE(SUM(CASE WHEN is_correct THEN 1 ELSE 0 END), 0), COALESCE(SUM(points), 0)
		FROM progress_attempts
		WHERE user_id = ?
	`
	var pc models.PointsCount
	if err := r.db.QueryRow(query, userID).Scan(&pc.Correct, &pc.Points); err != nil {
		return pc, fmt.Errorf("failed to count points: %w", err)
	}
	return pc, nil
}

// Overview summarises a user's progress
func (r *ActivityRepository) Overview(userID string) (models.Overview, error) {
	var ov models.Overview
	query := `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN is_correct THEN 1 ELSE 0 END), 0), COALESCE(SUM(points), 0)
		FROM progress_attempts
		WHERE user_id = ?
	`
	if err := r.db.QueryRow(query, userID).Scan(&ov.Attempts, &ov.Correct, &ov.Points); err != nil {
		return ov, fmt.Errorf("failed to summarise attempts: %w", err)
	}
	if err := r.db.QueryRow("SELECT COUNT(*) FROM progress_sessions WHERE user_id = ?", userID).Scan(&ov.Sessions); err != nil {
		return ov, fmt.Errorf("failed to count sessions: %w", err)
	}
	if ov.Attempts > 0 {
		ov.Accuracy = float64(ov.Correct) / float64(ov.Attempts)
	}
	return ov, nil
}

func encodeExtra(extra map[string]any) (sql.NullString, error) {
	if len(extra) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(extra)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode attempt extra: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

package repository

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"wordrecords/internal/database"
	"wordrecords/internal/models"
)

// AssignmentRepository handles homework assignment runs
type AssignmentRepository struct {
	db database.DBTX
}

// NewAssignmentRepository creates a new assignment repository
func NewAssignmentRepository(db database.DBTX) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// CreateAssignment issues a new run token for a class and word list
func (r *AssignmentRepository) CreateAssignment(class, listKey string) (*models.Assignment, error) {
	a := &models.Assignment{
		Class:     class,
		ListKey:   listKey,
		RunToken:  uuid.New().String(),
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}

	query := "INSERT INTO homework_assignments (class, list_key, run_token, active, created_at) VALUES (?, ?, ?, ?, ?)"
	id, err := r.db.ExecReturningID(query, a.Class, a.ListKey, a.RunToken, true, a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create assignment: %w", err)
	}
	a.ID = id
	return a, nil
}

// ListActive returns the active assignments for a class and list, oldest first
func (r *AssignmentRepository) ListActive(class, listKey string) ([]models.Assignment, error) {
	query := `
		SELECT id, class, list_key, run_token, active, created_at
		FROM homework_assignments
		WHERE class = ? AND list_key = ? AND active = ` + r.db.GetDialect().BoolValue(true) + `
		ORDER BY id ASC
	`
	rows, err := r.db.Query(query, class, listKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	var out []models.Assignment
	for rows.Next() {
		var a models.Assignment
		if err := rows.Scan(&a.ID, &a.Class, &a.ListKey, &a.RunToken, &a.Active, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Deactivate retires a run token; it reports whether a row changed
func (r *AssignmentRepository) Deactivate(runToken string) (bool, error) {
	query := "UPDATE homework_assignments SET active = " + r.db.GetDialect().BoolValue(false) + " WHERE run_token = ?"
	res, err := r.db.Exec(query, runToken)
	if err != nil {
		return false, fmt.Errorf("failed to deactivate assignment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to deactivate assignment: %w", err)
	}
	return n > 0, nil
}

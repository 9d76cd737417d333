package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"wordrecords/internal/database"
	"wordrecords/internal/models"
)

// StudentRepository handles database operations for student accounts
type StudentRepository struct {
	db database.DBTX
}

// NewStudentRepository creates a new student repository
func NewStudentRepository(db database.DBTX) *StudentRepository {
	return &StudentRepository{db: db}
}

// CreateStudent stores a new student with an already hashed password
func (r *StudentRepository) CreateStudent(username, displayName, passwordHash, class string) (*models.Student, error) {
	student := &models.Student{
		ID:           uuid.New().String(),
		Username:     strings.ToLower(strings.TrimSpace(username)),
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		Class:        class,
		CreatedAt:    time.Now().UTC(),
	}

	query := `
		INSERT INTO students (id, username, display_name, password_hash, class, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query, student.ID, student.Username, student.DisplayName, student.PasswordHash, student.Class, student.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create student: %w", err)
	}
	return student, nil
}

// GetStudentByUsername retrieves a student by username, or nil when none exists
func (r *StudentRepository) GetStudentByUsername(username string) (*models.Student, error) {
	return r.getOne("username = ?", strings.ToLower(strings.TrimSpace(username)))
}

// GetStudentByID retrieves a student by ID, or nil when none exists
func (r *StudentRepository) GetStudentByID(id string) (*models.Student, error) {
	return r.getOne("id = ?", id)
}

// UsernameExists reports whether a username is taken
func (r *StudentRepository) UsernameExists(username string) (bool, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM students WHERE username = ?", strings.ToLower(strings.TrimSpace(username))).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return count > 0, nil
}

// ListStudents returns the students of a class, or all students when class is empty
func (r *StudentRepository) ListStudents(class string) ([]models.Student, error) {
	query := "SELECT id, username, display_name, password_hash, class, created_at FROM students"
	var args []interface{}
	if class != "" {
		query += " WHERE class = ?"
		args = append(args, class)
	}
	query += " ORDER BY username ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query students: %w", err)
	}
	defer rows.Close()

	var students []models.Student
	for rows.Next() {
		var s models.Student
		if err := rows.Scan(&s.ID, &s.Username, &s.DisplayName, &s.PasswordHash, &s.Class, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		students = append(students, s)
	}
	return students, rows.Err()
}

func (r *StudentRepository) getOne(where string, arg interface{}) (*models.Student, error) {
	query := "SELECT id, username, display_name, password_hash, class, created_at FROM students WHERE " + where
	s := &models.Student{}
	err := r.db.QueryRow(query, arg).Scan(
		&s.ID,
		&s.Username,
		&s.DisplayName,
		&s.PasswordHash,
		&s.Class,
		&s.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	return s, nil
}

package service

import (
	"fmt"
	"strings"

	"wordrecords/internal/models"
	"wordrecords/internal/repository"
	"wordrecords/internal/validation"
)

// AssignmentService issues and looks up homework assignment run tokens
type AssignmentService struct {
	assignments *repository.AssignmentRepository
	students    *repository.StudentRepository
}

// NewAssignmentService creates a new assignment service
func NewAssignmentService(assignments *repository.AssignmentRepository, students *repository.StudentRepository) *AssignmentService {
	return &AssignmentService{
		assignments: assignments,
		students:    students,
	}
}

// RunTokens returns the active run tokens for the student's class and a word list, oldest first
func (s *AssignmentService) RunTokens(userID, listName string) ([]string, error) {
	if userID == "" {
		return nil, ErrNotSignedIn
	}
	listName = strings.TrimSpace(listName)
	if listName == "" {
		return []string{}, nil
	}

	student, err := s.students.GetStudentByID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	if student == nil {
		return nil, ErrStudentNotFound
	}
	if student.Class == "" {
		return []string{}, nil
	}

	active, err := s.assignments.ListActive(student.Class, listName)
	if err != nil {
		return nil, err
	}
	tokens := make([]string, 0, len(active))
	for _, a := range active {
		tokens = append(tokens, a.RunToken)
	}
	return tokens, nil
}

// CreateAssignment issues a new run token for a class and word list
func (s *AssignmentService) CreateAssignment(class, listKey string) (*models.Assignment, error) {
	class = strings.TrimSpace(class)
	listKey = strings.TrimSpace(listKey)
	if err := validation.ValidateClass(class, true); err != nil {
		return nil, err
	}
	if err := validation.ValidateListKey(listKey); err != nil {
		return nil, err
	}
	return s.assignments.CreateAssignment(class, listKey)
}

// Deactivate retires a run token
func (s *AssignmentService) Deactivate(runToken string) (bool, error) {
	return s.assignments.Deactivate(strings.TrimSpace(runToken))
}

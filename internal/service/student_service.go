package service

import (
	"fmt"
	"strings"

	"wordrecords/internal/credentials"
	"wordrecords/internal/models"
	"wordrecords/internal/repository"
	"wordrecords/internal/security"
	"wordrecords/internal/validation"
)

// StudentService manages student accounts
type StudentService struct {
	students *repository.StudentRepository
}

// NewStudentService creates a new student service
func NewStudentService(students *repository.StudentRepository) *StudentService {
	return &StudentService{students: students}
}

// AddStudent creates a student with generated credentials. The plain password is only returned here.
func (s *StudentService) AddStudent(displayName, class string) (*models.Student, credentials.Credentials, error) {
	displayName = strings.TrimSpace(displayName)
	if err := validation.ValidateName(displayName); err != nil {
		return nil, credentials.Credentials{}, err
	}
	if err := validation.ValidateClass(class, false); err != nil {
		return nil, credentials.Credentials{}, err
	}

	creds, err := credentials.Generate(s.students.UsernameExists)
	if err != nil {
		return nil, credentials.Credentials{}, fmt.Errorf("failed to generate credentials: %w", err)
	}

	hash, err := security.HashPassword(creds.Password)
	if err != nil {
		return nil, credentials.Credentials{}, fmt.Errorf("failed to hash password: %w", err)
	}

	student, err := s.students.CreateStudent(creds.Username, displayName, hash, strings.TrimSpace(class))
	if err != nil {
		return nil, credentials.Credentials{}, err
	}
	return student, creds, nil
}

// ListStudents returns the students of a class, or everyone when class is empty
func (s *StudentService) ListStudents(class string) ([]models.Student, error) {
	return s.students.ListStudents(class)
}

package service

import (
	"fmt"
	"time"

	"wordrecords/internal/models"
	"wordrecords/internal/repository"
	"wordrecords/internal/security"
)

// IssuedToken is a signed cookie token and its expiry
type IssuedToken struct {
	Value   string
	Expires time.Time
}

// AuthService handles student sign-in and cookie tokens
type AuthService struct {
	students *repository.StudentRepository
	tokens   *security.TokenIssuer
}

// NewAuthService creates a new auth service
func NewAuthService(students *repository.StudentRepository, tokens *security.TokenIssuer) *AuthService {
	return &AuthService{
		students: students,
		tokens:   tokens,
	}
}

// Login checks student credentials and issues an access and a refresh token
func (s *AuthService) Login(username, password string) (*models.Student, IssuedToken, IssuedToken, error) {
	student, err := s.students.GetStudentByUsername(username)
	if err != nil {
		return nil, IssuedToken{}, IssuedToken{}, fmt.Errorf("failed to get student: %w", err)
	}
	if student == nil || !security.CheckPassword(password, student.PasswordHash) {
		return nil, IssuedToken{}, IssuedToken{}, ErrInvalidCredentials
	}

	access, err := s.issue(student.ID, security.AccessToken)
	if err != nil {
		return nil, IssuedToken{}, IssuedToken{}, err
	}
	refresh, err := s.issue(student.ID, security.RefreshToken)
	if err != nil {
		return nil, IssuedToken{}, IssuedToken{}, err
	}
	return student, access, refresh, nil
}

// Authenticate resolves an access token to its student id.
// Tokens for students that no longer exist are rejected.
func (s *AuthService) Authenticate(accessToken string) (string, error) {
	if accessToken == "" {
		return "", ErrNotSignedIn
	}
	id, err := s.tokens.Parse(accessToken, security.AccessToken)
	if err != nil {
		return "", ErrNotSignedIn
	}
	student, err := s.students.GetStudentByID(id)
	if err != nil {
		return "", fmt.Errorf("failed to get student: %w", err)
	}
	if student == nil {
		return "", ErrNotSignedIn
	}
	return student.ID, nil
}

// Refresh exchanges a refresh token for a new access token
func (s *AuthService) Refresh(refreshToken string) (IssuedToken, error) {
	if refreshToken == "" {
		return IssuedToken{}, ErrNotSignedIn
	}
	id, err := s.tokens.Parse(refreshToken, security.RefreshToken)
	if err != nil {
		return IssuedToken{}, ErrNotSignedIn
	}
	student, err := s.students.GetStudentByID(id)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("failed to get student: %w", err)
	}
	if student == nil {
		return IssuedToken{}, ErrNotSignedIn
	}
	return s.issue(student.ID, security.AccessToken)
}

func (s *AuthService) issue(studentID string, kind security.TokenKind) (IssuedToken, error) {
	value, expires, err := s.tokens.Issue(studentID, kind)
	if err != nil {
		return IssuedToken{}, err
	}
	return IssuedToken{Value: value, Expires: expires}, nil
}

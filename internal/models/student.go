package models

import "time"

// Student represents a learner account that activity is recorded against
type Student struct {
	ID           string
	Username     string
	DisplayName  string
	PasswordHash string
	Class        string
	CreatedAt    time.Time
}

// Assignment links a class and word list to the run tokens issued for it
type Assignment struct {
	ID        int64
	Class     string
	ListKey   string
	RunToken  string
	Active    bool
	CreatedAt time.Time
}

// Package validation checks the values teachers enter for students and assignments.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	classRegex   = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 _-]{0,31}$`)
	listKeyRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._/-]{0,127}$`)
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateName checks a student display name
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ValidationError{Field: "name", Message: "name is required"}
	}
	if utf8.RuneCountInString(name) < 2 {
		return ValidationError{Field: "name", Message: "name must be at least 2 characters"}
	}
	if utf8.RuneCountInString(name) > 64 {
		return ValidationError{Field: "name", Message: "name must be at most 64 characters"}
	}
	return nil
}

// ValidateClass checks a class label. An empty class is allowed for students.
func ValidateClass(class string, required bool) error {
	class = strings.TrimSpace(class)
	if class == "" {
		if required {
			return ValidationError{Field: "class", Message: "class is required"}
		}
		return nil
	}
	if !classRegex.MatchString(class) {
		return ValidationError{Field: "class", Message: "class may only contain letters, digits, spaces, - and _"}
	}
	return nil
}

// ValidateListKey checks a word list key as sent in list_name
func ValidateListKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ValidationError{Field: "list", Message: "list is required"}
	}
	if !listKeyRegex.MatchString(key) {
		return ValidationError{Field: "list", Message: "invalid list key"}
	}
	return nil
}

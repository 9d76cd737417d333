package credentials

import (
	"errors"
	"regexp"
	"strings"
	"testing"
)

func TestGeneratePassword(t *testing.T) {
	for i := 0; i < 100; i++ {
		password, err := GeneratePassword()
		if err != nil {
			t.Fatalf("GeneratePassword() error = %v", err)
		}
		if len(password) != PasswordLength {
			t.Fatalf("password length %d, want %d", len(password), PasswordLength)
		}
		if strings.ContainsAny(password, "0O1lI") {
			t.Fatalf("password %q contains an ambiguous character", password)
		}
	}
}

func TestGenerateUsername(t *testing.T) {
	pattern := regexp.MustCompile(`^[a-z]+-[a-z]+$`)
	for i := 0; i < 50; i++ {
		username, err := GenerateUsername()
		if err != nil {
			t.Fatalf("GenerateUsername() error = %v", err)
		}
		if !pattern.MatchString(username) {
			t.Fatalf("username %q does not match adjective-noun", username)
		}
	}
}

func TestGenerate(t *testing.T) {
	tests := []struct {
		name      string
		taken     UsernameTaken
		wantErr   error
		wantMatch string
	}{
		{
			name:      "free on first try",
			taken:     func(string) (bool, error) { return false, nil },
			wantMatch: `^[a-z]+-[a-z]+$`,
		},
		{
			name: "suffix after collisions",
			taken: func(u string) (bool, error) {
				return !regexp.MustCompile(`\d$`).MatchString(u), nil
			},
			wantMatch: `^[a-z]+-[a-z]+\d\d$`,
		},
		{
			name:    "everything taken",
			taken:   func(string) (bool, error) { return true, nil },
			wantErr: ErrNoUsername,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creds, err := Generate(tt.taken)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Generate() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			if !regexp.MustCompile(tt.wantMatch).MatchString(creds.Username) {
				t.Errorf("username %q does not match %s", creds.Username, tt.wantMatch)
			}
			if len(creds.Password) != PasswordLength {
				t.Errorf("password length %d, want %d", len(creds.Password), PasswordLength)
			}
		})
	}
}

func TestGenerateLookupError(t *testing.T) {
	boom := errors.New("db down")
	_, err := Generate(func(string) (bool, error) { return false, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("Generate() error = %v, want wrapped %v", err, boom)
	}
}

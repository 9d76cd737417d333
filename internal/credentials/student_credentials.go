// Package credentials generates sign-in details young students can type.
package credentials

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

// PasswordLength is the length of generated student passwords
const PasswordLength = 4

// maxUsernameTries bounds collision retries before a numeric suffix is added
const maxUsernameTries = 8

// Unambiguous characters only: no 0/O, 1/l/I.
const passwordChars = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

var adjectives = []string{
	"happy", "sunny", "brave", "bright", "cool", "swift", "clever", "jolly",
	"mighty", "super", "wild", "funny", "lucky", "magic", "bouncy", "cheerful",
	"daring", "eager", "flying", "gentle", "jazzy", "kindly", "lively", "merry",
	"noble", "perky", "quick", "royal", "snappy", "turbo", "zippy", "cosmic",
}

var nouns = []string{
	"dragon", "tiger", "eagle", "dolphin", "panda", "lion", "wolf", "bear",
	"fox", "hawk", "shark", "phoenix", "unicorn", "rocket", "ninja", "wizard",
	"knight", "pirate", "robot", "astronaut", "hero", "explorer", "ranger", "captain",
	"comet", "thunder", "tornado", "storm", "koala", "otter", "penguin", "falcon",
}

// ErrNoUsername is returned when every candidate username is taken
var ErrNoUsername = errors.New("could not find a free username")

// Credentials are the generated sign-in details for a new student
type Credentials struct {
	Username string
	Password string
}

// UsernameTaken reports whether a username is already in use
type UsernameTaken func(username string) (bool, error)

// Generate picks a free "adjective-noun" username and a short password.
// After repeated collisions a two-digit suffix is appended.
func Generate(taken UsernameTaken) (Credentials, error) {
	for i := 0; i < maxUsernameTries*2; i++ {
		username, err := GenerateUsername()
		if err != nil {
			return Credentials{}, err
		}
		if i >= maxUsernameTries {
			n, err := rand.Int(rand.Reader, big.NewInt(90))
			if err != nil {
				return Credentials{}, err
			}
			username = fmt.Sprintf("%s%d", username, n.Int64()+10)
		}

		exists, err := taken(username)
		if err != nil {
			return Credentials{}, fmt.Errorf("failed to check username: %w", err)
		}
		if exists {
			continue
		}

		password, err := GeneratePassword()
		if err != nil {
			return Credentials{}, err
		}
		return Credentials{Username: username, Password: password}, nil
	}
	return Credentials{}, ErrNoUsername
}

// GenerateUsername generates a random username in the format "adjective-noun"
func GenerateUsername() (string, error) {
	adjective, err := randomElement(adjectives)
	if err != nil {
		return "", err
	}
	noun, err := randomElement(nouns)
	if err != nil {
		return "", err
	}
	return adjective + "-" + noun, nil
}

// GeneratePassword generates a random PasswordLength-character password
func GeneratePassword() (string, error) {
	password := make([]byte, PasswordLength)
	for i := range password {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(passwordChars))))
		if err != nil {
			return "", err
		}
		password[i] = passwordChars[num.Int64()]
	}
	return string(password), nil
}

func randomElement(slice []string) (string, error) {
	if len(slice) == 0 {
		return "", nil
	}
	num, err := rand.Int(rand.Reader, big.NewInt(int64(len(slice))))
	if err != nil {
		return "", err
	}
	return slice[num.Int64()], nil
}

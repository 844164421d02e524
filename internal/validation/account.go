// Package validation provides input validation utilities
package validation

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// MaxEmailLength is the RFC 5321 path limit.
const MaxEmailLength = 254

const (
	MinPasswordLength = 6
	// bcrypt ignores input past 72 bytes.
	MaxPasswordBytes = 72
)

// ValidatePassword checks length bounds only; complexity rules are left to the client.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters long", MinPasswordLength)
	}
	if len(password) > MaxPasswordBytes {
		return fmt.Errorf("password must not exceed %d bytes", MaxPasswordBytes)
	}
	return nil
}

// ValidateUsername checks if a username meets requirements
func ValidateUsername(username string) error {
	if len(username) < 3 {
		return errors.New("username must be at least 3 characters long")
	}
	if len(username) > 30 {
		return errors.New("username must not exceed 30 characters")
	}
	if !usernamePattern.MatchString(username) {
		return errors.New("username can only contain letters, numbers, underscores, and hyphens")
	}

	first, last := username[0], username[len(username)-1]
	if first == '_' || first == '-' || last == '_' || last == '-' {
		return errors.New("username cannot start or end with underscore or hyphen")
	}

	return nil
}

// ValidateEmail checks length and address syntax.
func ValidateEmail(email string) error {
	err := instance().Var(email, fmt.Sprintf("required,max=%d,email", MaxEmailLength))
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 && fieldErrs[0].Tag() == "max" {
		return fmt.Errorf("email must not exceed %d characters", MaxEmailLength)
	}
	return errors.New("invalid email format")
}

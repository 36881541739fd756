// Package validate holds input validation rules shared by the
// identity and inventory services. Failures carry the offending field
// so handlers can return precise bad-request messages.
package validate

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Error is a field-level validation failure.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return e.Field + ": " + e.Message
}

// Failf builds a field error.
func Failf(field, format string, args ...any) *Error {
	return &Error{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Username requires 3-50 characters from [a-zA-Z0-9_-].
func Username(s string) error {
	if len(s) < 3 || len(s) > 50 {
		return Failf("username", "must be 3-50 characters")
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-':
		default:
			return Failf("username", "may only contain letters, digits, underscore and hyphen")
		}
	}
	return nil
}

// Email requires a plausible address. This is deliberately loose;
// deliverability is not checked anywhere.
func Email(s string) error {
	if len(s) < 3 || len(s) > 254 {
		return Failf("email", "must be 3-254 characters")
	}
	at := strings.Index(s, "@")
	if at <= 0 || at == len(s)-1 {
		return Failf("email", "must contain a local part and a domain")
	}
	if strings.ContainsAny(s, " \t\n") {
		return Failf("email", "must not contain whitespace")
	}
	return nil
}

// Password requires 8-72 bytes. The upper bound is the bcrypt input
// limit.
func Password(s string) error {
	if len(s) < 8 {
		return Failf("password", "must be at least 8 characters")
	}
	if len(s) > 72 {
		return Failf("password", "must be at most 72 bytes")
	}
	return nil
}

// Required requires a non-empty string of at most max characters.
func Required(field, s string, max int) error {
	if strings.TrimSpace(s) == "" {
		return Failf(field, "is required")
	}
	return Optional(field, s, max)
}

// Optional bounds a string's length when it is set.
func Optional(field, s string, max int) error {
	if utf8.RuneCountInString(s) > max {
		return Failf(field, "must be at most %d characters", max)
	}
	return nil
}

// IntRange bounds an integer inclusively.
func IntRange(field string, v, min, max int) error {
	if v < min || v > max {
		return Failf(field, "must be between %d and %d", min, max)
	}
	return nil
}

// Positive requires a value greater than zero.
func Positive(field string, v int) error {
	if v <= 0 {
		return Failf(field, "must be positive")
	}
	return nil
}

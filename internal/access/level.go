// Package access implements the permission model and the authorization
// resolver for humidors. Access is either ownership, an explicit share
// grant, or nothing; levels order strictly as view < edit < full.
package access

import "fmt"

// Level is a permission level on a humidor.
type Level int

const (
	// LevelView allows reading the humidor and its cigars.
	LevelView Level = iota + 1
	// LevelEdit additionally allows creating and updating cigars.
	LevelEdit
	// LevelFull additionally allows deleting cigars, editing the
	// humidor, and managing its shares and public links.
	LevelFull
)

// ParseLevel parses a stored or submitted level string.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "view":
		return LevelView, nil
	case "edit":
		return LevelEdit, nil
	case "full":
		return LevelFull, nil
	default:
		return 0, fmt.Errorf("invalid permission level %q", s)
	}
}

// String returns the wire form of the level.
func (l Level) String() string {
	switch l {
	case LevelView:
		return "view"
	case LevelEdit:
		return "edit"
	case LevelFull:
		return "full"
	default:
		return "unknown"
	}
}

// Valid reports whether the level is one of the three defined levels.
func (l Level) Valid() bool {
	return l >= LevelView && l <= LevelFull
}

// AtLeast reports whether the level grants everything min grants.
func (l Level) AtLeast(min Level) bool {
	return l >= min
}

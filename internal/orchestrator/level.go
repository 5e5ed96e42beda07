package orchestrator

import (
	"fmt"
	"strings"
)

// Level is the user-selected compute level. It decides how much
// decomposition work runs before the answer is produced.
type Level int

const (
	// LevelLow answers directly.
	LevelLow Level = iota

	// LevelMedium decomposes once, solves each subtask and synthesizes.
	LevelMedium

	// LevelHigh decomposes into stages, each stage into steps, and
	// synthesizes per stage and then across stages.
	LevelHigh
)

// LevelUnknown is returned by ParseLevel for unrecognized input.
const LevelUnknown Level = -1

func (l Level) String() string {
	switch l {
	case LevelLow:
		return "low"
	case LevelMedium:
		return "medium"
	case LevelHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Valid reports whether l is one of the defined levels.
func (l Level) Valid() bool {
	return l >= LevelLow && l <= LevelHigh
}

// ParseLevel converts "low", "medium" or "high" (any case) to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return LevelLow, nil
	case "medium":
		return LevelMedium, nil
	case "high":
		return LevelHigh, nil
	default:
		return LevelUnknown, fmt.Errorf("unknown compute level %q", s)
	}
}

// MarshalText encodes the level by name.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText decodes a level name.
func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

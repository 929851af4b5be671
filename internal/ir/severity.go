package ir

import (
	"fmt"
	"strings"
)

// Severity is totally ordered: Critical > Major > Warning.
type Severity int

const (
	SeverityUnknown Severity = iota
	SeverityWarning
	SeverityMajor
	SeverityCritical
)

func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical":
		return SeverityCritical, nil
	case "major":
		return SeverityMajor, nil
	case "warning", "warn":
		return SeverityWarning, nil
	}
	return SeverityUnknown, fmt.Errorf("unknown severity %q", s)
}

func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "critical"
	case SeverityMajor:
		return "major"
	case SeverityWarning:
		return "warning"
	}
	return "unknown"
}

// AtLeast reports whether s is at or above min.
func (s Severity) AtLeast(min Severity) bool { return s >= min }

func (s Severity) MarshalText() ([]byte, error) {
	if s == SeverityUnknown {
		return nil, fmt.Errorf("cannot marshal unknown severity")
	}
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(b []byte) error {
	v, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

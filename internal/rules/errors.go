package rules

import (
	"errors"
	"fmt"
)

var (
	ErrRuleNotFound  = errors.New("rule not found")
	ErrEmptyRegistry = errors.New("no usable rules loaded")
)

// RuleLoadError marks a rule whose definition could not be used as written.
type RuleLoadError struct {
	RuleID string
	Origin string
	Reason string
	Err    error
}

func (e *RuleLoadError) Error() string {
	msg := e.Reason
	if e.Err != nil {
		if msg != "" {
			msg += ": "
		}
		msg += e.Err.Error()
	}
	switch {
	case e.RuleID != "" && e.Origin != "":
		return fmt.Sprintf("rule %s (%s): %s", e.RuleID, e.Origin, msg)
	case e.RuleID != "":
		return fmt.Sprintf("rule %s: %s", e.RuleID, msg)
	case e.Origin != "":
		return fmt.Sprintf("rules %s: %s", e.Origin, msg)
	}
	return "rule: " + msg
}

func (e *RuleLoadError) Unwrap() error { return e.Err }

type RegexCompileError struct {
	RuleID  string
	Pattern string
	Err     error
}

func (e *RegexCompileError) Error() string {
	if e.RuleID == "" {
		return fmt.Sprintf("compile pattern %q: %v", e.Pattern, e.Err)
	}
	return fmt.Sprintf("rule %s: compile pattern %q: %v", e.RuleID, e.Pattern, e.Err)
}

func (e *RegexCompileError) Unwrap() error { return e.Err }

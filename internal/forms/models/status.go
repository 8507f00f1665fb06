package models

import (
	"strings"

	dErrors "dynforms/pkg/domain-errors"
)

// InstanceStatus is the lifecycle state of a form instance.
type InstanceStatus string

const (
	StatusInProgress InstanceStatus = "in_progress"
	StatusSubmitted  InstanceStatus = "submitted"
	StatusApproved   InstanceStatus = "approved"
	StatusRejected   InstanceStatus = "rejected"
	StatusAbandoned  InstanceStatus = "abandoned"
)

// transitions lists the states reachable from each non-terminal state.
var transitions = map[InstanceStatus][]InstanceStatus{
	StatusInProgress: {StatusSubmitted, StatusAbandoned},
	StatusSubmitted:  {StatusApproved, StatusRejected, StatusAbandoned},
}

func (s InstanceStatus) IsValid() bool {
	switch s {
	case StatusInProgress, StatusSubmitted, StatusApproved, StatusRejected, StatusAbandoned:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s InstanceStatus) IsTerminal() bool {
	_, open := transitions[s]
	return s.IsValid() && !open
}

// CanTransitionTo reports whether moving from s to next is allowed. Staying
// in the same state is always allowed.
func (s InstanceStatus) CanTransitionTo(next InstanceStatus) bool {
	if s == next {
		return true
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s InstanceStatus) String() string {
	return string(s)
}

// ParseInstanceStatus accepts the closed set case-insensitively.
func ParseInstanceStatus(raw string) (InstanceStatus, error) {
	s := InstanceStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput,
			"status must be one of in_progress, submitted, approved, rejected, abandoned")
	}
	return s, nil
}

package wall_nav

import (
	"errors"
	"fmt"
)

// GoalStatus is a rotation goal lifecycle state.
type GoalStatus string

const (
	GoalRequested GoalStatus = "requested"
	GoalRejected  GoalStatus = "rejected"
	GoalAccepted  GoalStatus = "accepted"
	GoalExecuting GoalStatus = "executing"
	GoalCanceling GoalStatus = "canceling"
	GoalCanceled  GoalStatus = "canceled"
	GoalSucceeded GoalStatus = "succeeded"
)

// ErrInvalidTransition is returned when a goal is moved along an edge the lifecycle does not allow.
var ErrInvalidTransition = errors.New("invalid goal transition")

var goalTransitions = map[GoalStatus]map[GoalStatus]bool{
	GoalRequested: {
		GoalAccepted: true,
		GoalRejected: true,
	},
	GoalAccepted: {
		GoalExecuting: true,
		GoalCanceling: true,
	},
	GoalExecuting: {
		GoalCanceling: true,
		GoalSucceeded: true,
	},
	GoalCanceling: {
		GoalCanceled: true,
	},
	GoalRejected:  {},
	GoalCanceled:  {},
	GoalSucceeded: {},
}

// ValidateGoalTransition checks a lifecycle edge.
func ValidateGoalTransition(from, to GoalStatus) error {
	allowed, ok := goalTransitions[from]
	if !ok {
		return fmt.Errorf("%w: unknown source status %q", ErrInvalidTransition, from)
	}
	if !allowed[to] {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// IsTerminal reports whether no further transitions are possible.
func (s GoalStatus) IsTerminal() bool {
	switch s {
	case GoalRejected, GoalCanceled, GoalSucceeded:
		return true
	default:
		return false
	}
}

// IsLive reports whether the goal currently owns the executor.
func (s GoalStatus) IsLive() bool {
	switch s {
	case GoalAccepted, GoalExecuting, GoalCanceling:
		return true
	default:
		return false
	}
}

// ParseGoalStatus converts a wire string into a GoalStatus.
func ParseGoalStatus(value string) (GoalStatus, error) {
	s := GoalStatus(value)
	if _, ok := goalTransitions[s]; !ok {
		return "", fmt.Errorf("unknown goal status %q", value)
	}
	return s, nil
}

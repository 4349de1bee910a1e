package wall_nav

import (
	"fmt"
	"time"
)

// RangingFrame is a single sweep of distance samples in meters.
//
// Conventions:
//   - Ranges are ordered by angle across the sensor's field of view.
//   - +Inf means no return (nothing within range) and counts as a far reading.
//   - NaN and negative values are invalid samples and are ignored.
type RangingFrame struct {
	Stamp  time.Time
	Ranges []float64
}

// VelocityCommand is the body-frame velocity sent to the drive base.
type VelocityCommand struct {
	LinearX  float64 `json:"linear_x"`  // m/s
	AngularZ float64 `json:"angular_z"` // rad/s, positive is counter-clockwise
}

// IsZero reports whether the command is a full stop.
func (c VelocityCommand) IsZero() bool {
	return c.LinearX == 0 && c.AngularZ == 0
}

// VelocityPublisher accepts velocity commands with latest-value semantics.
type VelocityPublisher interface {
	Publish(cmd VelocityCommand)
}

// NavigationState is the controller's behavior gate.
//
// Rotating implies Navigating.
type NavigationState struct {
	Navigating bool `json:"navigating"`
	Rotating   bool `json:"rotating"`
}

func (s NavigationState) String() string {
	switch {
	case s.Rotating:
		return "ROTATING"
	case s.Navigating:
		return "DRIVING"
	default:
		return "IDLE"
	}
}

// RotationGoal requests an in-place turn. The sign of Angle selects the direction.
type RotationGoal struct {
	Angle float64 `json:"angle"` // degrees
}

// RotationFeedback reports progress of the goal being executed.
type RotationFeedback struct {
	RemainingDegrees float64 `json:"remaining_degrees"`
}

// RotationResult is the terminal payload of a goal.
type RotationResult struct {
	Success bool `json:"success"`
}

// GoalOutcome bundles the terminal status and result of one goal.
type GoalOutcome struct {
	GoalID string         `json:"goal_id"`
	Status GoalStatus     `json:"status"`
	Result RotationResult `json:"result"`
}

func (o GoalOutcome) String() string {
	return fmt.Sprintf("goal=%s status=%s success=%t", o.GoalID, o.Status, o.Result.Success)
}

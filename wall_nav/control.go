package wall_nav

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Decision is what the controller did with one ranging frame.
type Decision int

const (
	DecisionIgnored Decision = iota + 1
	DecisionSkipped
	DecisionForward
	DecisionRotate
	DecisionHold
)

func (d Decision) String() string {
	switch d {
	case DecisionIgnored:
		return "IGNORED"
	case DecisionSkipped:
		return "SKIPPED"
	case DecisionForward:
		return "FORWARD"
	case DecisionRotate:
		return "ROTATE"
	case DecisionHold:
		return "HOLD"
	default:
		return fmt.Sprintf("Decision(%d)", int(d))
	}
}

const cancelGrace = 2 * time.Second

// ControllerOption customizes a NavigationController.
type ControllerOption func(*NavigationController)

// WithControllerEvents attaches the structured event log.
func WithControllerEvents(l *EventLog) ControllerOption {
	return func(c *NavigationController) { c.events = l }
}

// WithControllerMetrics attaches the metrics registry.
func WithControllerMetrics(m *Metrics) ControllerOption {
	return func(c *NavigationController) { c.metrics = m }
}

// NavigationController turns ranging frames into drive, stop, and rotate decisions.
//
// Frames are handled one at a time under frameMu. Rotation continuations run on their
// own goroutines and only touch state under mu.
type NavigationController struct {
	Cfg     NavigationConfig
	vel     VelocityPublisher
	rot     RotationClient
	events  *EventLog
	metrics *Metrics

	frameMu sync.Mutex

	mu    sync.Mutex
	state NavigationState

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewNavigationController validates cfg and wires the velocity and rotation collaborators.
func NewNavigationController(cfg NavigationConfig, vel VelocityPublisher, rot RotationClient, opts ...ControllerOption) (*NavigationController, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if vel == nil || rot == nil {
		return nil, fmt.Errorf("%w: velocity publisher and rotation client are required", ErrInvalidConfig)
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &NavigationController{Cfg: cfg, vel: vel, rot: rot, ctx: ctx, cancel: cancel}
	for _, opt := range opts {
		opt(c)
	}
	c.metrics.UpdateState(c.state)
	return c, nil
}

// State returns a copy of the behavior gate.
func (c *NavigationController) State() NavigationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsNavigating reports whether navigation has been started.
func (c *NavigationController) IsNavigating() bool { return c.State().Navigating }

// IsRotating reports whether a rotation goal is in flight.
func (c *NavigationController) IsRotating() bool { return c.State().Rotating }

// StartNavigation enables frame handling. It is idempotent; started reports
// whether this call performed the transition.
func (c *NavigationController) StartNavigation() (started bool) {
	c.mu.Lock()
	if c.state.Navigating {
		c.mu.Unlock()
		c.events.Info("navigation_already_active")
		return false
	}
	c.state.Navigating = true
	st := c.state
	c.mu.Unlock()

	c.metrics.UpdateState(st)
	c.events.Info("navigation_started", F("threshold", c.Cfg.WallDistanceThreshold), F("forward_speed", c.Cfg.ForwardSpeed))
	return true
}

// OnRangingFrame applies the wall-detection policy to one frame.
func (c *NavigationController) OnRangingFrame(frame RangingFrame) Decision {
	c.frameMu.Lock()
	defer c.frameMu.Unlock()

	st := c.State()
	if !st.Navigating {
		c.metrics.ObserveFrame("ignored")
		return DecisionIgnored
	}

	reading, ok := ReadFrontSector(frame)
	if !ok {
		c.metrics.ObserveFrame("skipped")
		c.events.Info("frame_skipped",
			F("samples", len(frame.Ranges)),
			F("sector_len", reading.Sector.Len()),
			F("invalid", reading.Invalid))
		return DecisionSkipped
	}
	c.metrics.ObserveFrame("processed")
	c.metrics.ObserveFrontSector(reading)

	if st.Rotating {
		return DecisionHold
	}

	if reading.MinDistance < c.Cfg.WallDistanceThreshold {
		c.events.Info("wall_detected", F("min_distance", reading.MinDistance), F("threshold", c.Cfg.WallDistanceThreshold))
		c.metrics.WallDetected()
		c.publish(VelocityCommand{})
		c.sendRotationGoal()
		return DecisionRotate
	}

	c.publish(VelocityCommand{LinearX: c.Cfg.ForwardSpeed})
	return DecisionForward
}

// Run handles frames in arrival order until frames closes or ctx is done.
func (c *NavigationController) Run(ctx context.Context, frames <-chan RangingFrame) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			c.OnRangingFrame(frame)
		}
	}
}

// Close cancels any in-flight goal and waits for continuations to finish.
func (c *NavigationController) Close() error {
	c.cancel()
	c.wg.Wait()
	return nil
}

func (c *NavigationController) publish(cmd VelocityCommand) {
	c.vel.Publish(cmd)
	c.events.Debug("velocity_command", F("linear_x", cmd.LinearX), F("angular_z", cmd.AngularZ))
}

// sendRotationGoal marks the controller rotating and submits the goal. Called with frameMu held.
func (c *NavigationController) sendRotationGoal() {
	c.setRotating(true)
	goal := RotationGoal{Angle: c.Cfg.RotationAngle}

	ctx, cancel := c.goalContext()
	future, err := c.rot.SendGoal(ctx, goal)
	cancel()
	if err != nil {
		c.onGoalRejected(goal, err)
		return
	}

	c.events.Info("rotation_goal_accepted", F("goal_id", future.ID()), F("angle", goal.Angle))
	c.wg.Add(1)
	go c.awaitRotation(future)
}

// awaitRotation relays feedback and resolves the goal's single continuation.
func (c *NavigationController) awaitRotation(future GoalFuture) {
	defer c.wg.Done()

	ctx, cancel := c.goalContext()
	defer cancel()

	feedback := future.Feedback()
	for feedback != nil {
		select {
		case fb, ok := <-feedback:
			if !ok {
				feedback = nil
				continue
			}
			c.events.Info("rotation_feedback", F("goal_id", future.ID()), F("remaining_degrees", fb.RemainingDegrees))
		case <-ctx.Done():
			c.abandonRotation(future, ctx.Err())
			return
		}
	}

	outcome, err := future.Result(ctx)
	if err != nil {
		c.abandonRotation(future, err)
		return
	}
	c.onRotationResult(outcome)
}

// onRotationResult clears the gate for every terminal outcome.
func (c *NavigationController) onRotationResult(outcome GoalOutcome) {
	c.setRotating(false)
	if outcome.Status == GoalSucceeded && outcome.Result.Success {
		c.events.Info("rotation_completed", F("goal_id", outcome.GoalID))
		return
	}
	c.events.Error("rotation_failed", F("goal_id", outcome.GoalID), F("status", outcome.Status))
}

// onGoalRejected clears the gate; the rotation is not retried.
func (c *NavigationController) onGoalRejected(goal RotationGoal, err error) {
	c.setRotating(false)
	c.events.Error("rotation_rejected", F("angle", goal.Angle), F("error", err))
}

// abandonRotation gives up on a goal whose result did not arrive and asks the executor to stop it.
func (c *NavigationController) abandonRotation(future GoalFuture, cause error) {
	cancelCtx, cancel := context.WithTimeout(context.Background(), cancelGrace)
	defer cancel()
	cancelErr := future.Cancel(cancelCtx)

	c.setRotating(false)
	switch {
	case errors.Is(cause, context.DeadlineExceeded):
		cause = fmt.Errorf("%w after %s", ErrResultTimeout, c.Cfg.GoalResultTimeout)
		c.events.Error("rotation_timeout", F("goal_id", future.ID()), F("error", cause), F("cancel_error", errString(cancelErr)))
	case errors.Is(cause, context.Canceled):
		c.events.Info("rotation_abandoned", F("goal_id", future.ID()), F("cancel_error", errString(cancelErr)))
	default:
		c.events.Error("rotation_lost", F("goal_id", future.ID()), F("error", cause), F("cancel_error", errString(cancelErr)))
	}
}

func (c *NavigationController) setRotating(rotating bool) {
	c.mu.Lock()
	c.state.Rotating = rotating && c.state.Navigating
	st := c.state
	c.mu.Unlock()
	c.metrics.UpdateState(st)
}

// goalContext bounds goal waits by goal_result_timeout; zero means unbounded.
func (c *NavigationController) goalContext() (context.Context, context.CancelFunc) {
	if c.Cfg.GoalResultTimeout > 0 {
		return context.WithTimeout(c.ctx, c.Cfg.GoalResultTimeout)
	}
	return context.WithCancel(c.ctx)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

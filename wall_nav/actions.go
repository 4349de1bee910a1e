package wall_nav

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrGoalRejected is returned by SendGoal when the executor refuses the goal.
	ErrGoalRejected = errors.New("rotation goal rejected")
	// ErrResultTimeout is returned when a goal result does not arrive in time.
	ErrResultTimeout = errors.New("rotation result timeout")
)

// GoalFuture is the pending continuation of one accepted goal.
type GoalFuture interface {
	ID() string
	// Feedback streams progress and is closed when the goal terminates.
	Feedback() <-chan RotationFeedback
	// Result blocks until the terminal outcome or ctx is done.
	Result(ctx context.Context) (GoalOutcome, error)
	Cancel(ctx context.Context) error
}

// RotationClient submits rotation goals to an executor.
type RotationClient interface {
	SendGoal(ctx context.Context, goal RotationGoal) (GoalFuture, error)
}

// LocalRotationClient talks to an executor in the same process.
type LocalRotationClient struct {
	exec *RotationExecutor
}

// NewLocalRotationClient wraps exec.
func NewLocalRotationClient(exec *RotationExecutor) *LocalRotationClient {
	return &LocalRotationClient{exec: exec}
}

// SendGoal submits goal and returns its future, or ErrGoalRejected.
func (c *LocalRotationClient) SendGoal(ctx context.Context, goal RotationGoal) (GoalFuture, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h, err := c.exec.Submit(goal)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGoalRejected, err)
	}
	return &localGoal{exec: c.exec, handle: h, feedback: h.Subscribe()}, nil
}

type localGoal struct {
	exec     *RotationExecutor
	handle   *GoalHandle
	feedback <-chan RotationFeedback
}

func (g *localGoal) ID() string { return g.handle.ID() }

func (g *localGoal) Feedback() <-chan RotationFeedback { return g.feedback }

func (g *localGoal) Result(ctx context.Context) (GoalOutcome, error) {
	return g.exec.Wait(ctx, g.handle)
}

func (g *localGoal) Cancel(ctx context.Context) error {
	_, err := g.exec.Cancel(g.handle.ID())
	return err
}

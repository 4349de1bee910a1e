package wall_nav

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalRotationClient(t *testing.T) {
	t.Parallel()

	exec, _, clock := newTestExecutor(t)
	client := NewLocalRotationClient(exec)

	future, err := client.SendGoal(context.Background(), RotationGoal{Angle: 45})
	require.NoError(t, err)
	assert.Equal(t, "goal-1", future.ID())

	_, err = client.SendGoal(context.Background(), RotationGoal{Angle: 45})
	assert.ErrorIs(t, err, ErrGoalRejected)
	assert.ErrorIs(t, err, ErrExecutorBusy)

	done := make(chan []RotationFeedback)
	go func() {
		var fbs []RotationFeedback
		for fb := range future.Feedback() {
			fbs = append(fbs, fb)
		}
		done <- fbs
	}()

	h, ok := exec.Goal(future.ID())
	require.True(t, ok)
	driveUntilDone(t, clock, h, 100*time.Millisecond)

	out, err := future.Result(context.Background())
	require.NoError(t, err)
	assert.Equal(t, GoalSucceeded, out.Status)

	fbs := <-done
	require.NotEmpty(t, fbs)
	assert.Equal(t, 0.0, fbs[len(fbs)-1].RemainingDegrees)
}

func TestLocalRotationClient_Cancel(t *testing.T) {
	t.Parallel()

	exec, _, _ := newTestExecutor(t)
	future, err := NewLocalRotationClient(exec).SendGoal(context.Background(), RotationGoal{Angle: 90})
	require.NoError(t, err)

	require.NoError(t, future.Cancel(context.Background()))
	out, err := future.Result(context.Background())
	require.NoError(t, err)
	assert.Equal(t, GoalCanceled, out.Status)
	assert.False(t, out.Result.Success)
}

func TestLocalRotationClient_CanceledContext(t *testing.T) {
	t.Parallel()

	exec, _, _ := newTestExecutor(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLocalRotationClient(exec).SendGoal(ctx, RotationGoal{Angle: 90})
	assert.ErrorIs(t, err, context.Canceled)
	_, busy := exec.Active()
	assert.False(t, busy)
}

package wall_nav

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestHistory(t *testing.T) *History {
	t.Helper()
	h, err := OpenHistory(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestHistory_RecordAndQuery(t *testing.T) {
	t.Parallel()

	h := openTestHistory(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	steps := []struct {
		from, to GoalStatus
	}{
		{GoalRequested, GoalAccepted},
		{GoalAccepted, GoalExecuting},
		{GoalExecuting, GoalSucceeded},
	}
	for i, s := range steps {
		rec := GoalRecord{
			GoalID:    "g1",
			Angle:     90,
			Status:    s.to,
			Success:   s.to == GoalSucceeded,
			CreatedAt: base,
			UpdatedAt: base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, h.RecordTransition(ctx, rec, s.from))
	}
	require.NoError(t, h.RecordTransition(ctx, GoalRecord{
		GoalID: "g2", Angle: -45, Status: GoalRejected, CreatedAt: base.Add(time.Minute),
	}, GoalRequested))

	goals, err := h.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, goals, 2)
	assert.Equal(t, "g2", goals[0].GoalID)
	assert.Equal(t, GoalRejected, goals[0].Status)
	assert.Equal(t, "g1", goals[1].GoalID)
	assert.Equal(t, GoalSucceeded, goals[1].Status)
	assert.True(t, goals[1].Success)
	assert.True(t, goals[1].CreatedAt.Equal(base))
	assert.True(t, goals[1].UpdatedAt.Equal(base.Add(2*time.Second)))

	limited, err := h.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	transitions, err := h.Transitions(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, transitions, 3)
	for i, s := range steps {
		assert.Equal(t, s.from, transitions[i].From)
		assert.Equal(t, s.to, transitions[i].To)
	}

	none, err := h.Transitions(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestHistory_CanceledGoalEdges(t *testing.T) {
	t.Parallel()

	history := openTestHistory(t)
	exec, _, clock := newTestExecutor(t, WithHistory(history))
	h, err := exec.Submit(RotationGoal{Angle: 90})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		clock.Advance(100 * time.Millisecond)
		return len(h.Feedback()) >= 2
	}, 2*time.Second, time.Millisecond)
	_, err = exec.Cancel(h.ID())
	require.NoError(t, err)
	<-h.Done()

	transitions, err := history.Transitions(context.Background(), h.ID())
	require.NoError(t, err)
	var edges []string
	for _, tr := range transitions {
		edges = append(edges, string(tr.From)+"->"+string(tr.To))
	}
	assert.Equal(t, []string{
		"requested->accepted",
		"accepted->executing",
		"executing->canceling",
		"canceling->canceled",
	}, edges)
}

func TestHistory_NilSafe(t *testing.T) {
	t.Parallel()

	var h *History
	ctx := context.Background()
	assert.NoError(t, h.RecordTransition(ctx, GoalRecord{GoalID: "x"}, GoalRequested))
	goals, err := h.Recent(ctx, 5)
	assert.NoError(t, err)
	assert.Nil(t, goals)
	transitions, err := h.Transitions(ctx, "x")
	assert.NoError(t, err)
	assert.Nil(t, transitions)
	assert.NoError(t, h.Close())
}

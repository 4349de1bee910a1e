package wall_nav

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newRealExecutor runs fast goals on the real clock.
func newRealExecutor(t *testing.T) *RotationExecutor {
	t.Helper()
	exec, err := NewRotationExecutor(RotationConfig{RotationSpeed: 10, TickPeriod: 5 * time.Millisecond}, &recordingPublisher{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = exec.Close() })
	return exec
}

func newTestServer(t *testing.T, exec *RotationExecutor, ctrl *NavigationController) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewRouter(exec, ctrl, NewMetrics()))
	t.Cleanup(srv.Close)
	// Runs before srv.Close so open feedback streams end first.
	if exec != nil {
		t.Cleanup(func() { _ = exec.Close() })
	}
	return srv
}

func postJSON(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestHTTPRotationClient_RoundTrip(t *testing.T) {
	t.Parallel()

	exec := newRealExecutor(t)
	srv := newTestServer(t, exec, nil)
	client := NewHTTPRotationClient(srv.URL + "/")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	future, err := client.SendGoal(ctx, RotationGoal{Angle: 90})
	require.NoError(t, err)
	require.NotEmpty(t, future.ID())

	var feedback []RotationFeedback
	for fb := range future.Feedback() {
		feedback = append(feedback, fb)
	}
	require.NotEmpty(t, feedback)
	assert.Equal(t, 0.0, feedback[len(feedback)-1].RemainingDegrees)

	out, err := future.Result(ctx)
	require.NoError(t, err)
	assert.Equal(t, future.ID(), out.GoalID)
	assert.Equal(t, GoalSucceeded, out.Status)
	assert.True(t, out.Result.Success)
}

func TestHTTPRotationClient_Cancel(t *testing.T) {
	t.Parallel()

	exec, _, _ := newTestExecutor(t)
	srv := newTestServer(t, exec, nil)
	client := NewHTTPRotationClient(srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	future, err := client.SendGoal(ctx, RotationGoal{Angle: 90})
	require.NoError(t, err)

	require.NoError(t, future.Cancel(ctx))
	out, err := future.Result(ctx)
	require.NoError(t, err)
	assert.Equal(t, GoalCanceled, out.Status)
	assert.False(t, out.Result.Success)

	_, err = client.Cancel(ctx, "missing")
	assert.ErrorIs(t, err, ErrGoalNotFound)
}

func TestRotationHandler_RejectsWhileBusy(t *testing.T) {
	t.Parallel()

	exec, _, _ := newTestExecutor(t)
	srv := newTestServer(t, exec, nil)

	resp, body := postJSON(t, srv.URL+"/rotate/goals", `{"angle": 90}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, true, body["accepted"])
	firstID, _ := body["goal_id"].(string)
	require.NotEmpty(t, firstID)

	resp, body = postJSON(t, srv.URL+"/rotate/goals", `{"angle": 45}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, false, body["accepted"])
	assert.Contains(t, body["error"], "busy")

	_, err := NewHTTPRotationClient(srv.URL).SendGoal(context.Background(), RotationGoal{Angle: 10})
	assert.ErrorIs(t, err, ErrGoalRejected)

	resp, err = http.Get(srv.URL + "/rotate/goals/" + firstID)
	require.NoError(t, err)
	defer resp.Body.Close()
	var snap GoalSnapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, firstID, snap.GoalID)
	assert.True(t, snap.Status.IsLive())
	assert.False(t, snap.Done)
}

func TestRotationHandler_BadRequests(t *testing.T) {
	t.Parallel()

	exec, _, _ := newTestExecutor(t)
	srv := newTestServer(t, exec, nil)

	resp, _ := postJSON(t, srv.URL+"/rotate/goals", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	r, err := http.Post(srv.URL+"/rotate/goals", "application/json", strings.NewReader(`not json`))
	require.NoError(t, err)
	r.Body.Close()
	assert.Equal(t, http.StatusBadRequest, r.StatusCode)

	for _, path := range []string{"/rotate/goals/nope", "/rotate/goals/nope/feedback"} {
		r, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		r.Body.Close()
		assert.Equal(t, http.StatusNotFound, r.StatusCode, path)
	}
	r, err = http.Post(srv.URL+"/rotate/goals/nope/cancel", "application/json", nil)
	require.NoError(t, err)
	r.Body.Close()
	assert.Equal(t, http.StatusNotFound, r.StatusCode)
}

func TestRotationHandler_ClosedExecutor(t *testing.T) {
	t.Parallel()

	exec, _, _ := newTestExecutor(t)
	srv := newTestServer(t, exec, nil)
	require.NoError(t, exec.Close())

	resp, _ := postJSON(t, srv.URL+"/rotate/goals", `{"angle": 90}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRotationHandler_StreamEndsWithOneResult(t *testing.T) {
	t.Parallel()

	exec := newRealExecutor(t)
	srv := newTestServer(t, exec, nil)
	h, err := exec.Submit(RotationGoal{Angle: 0})
	require.NoError(t, err)
	<-h.Done()

	resp, err := http.Get(srv.URL + "/rotate/goals/" + h.ID() + "/feedback")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var events []string
	scanner := bufio.NewScanner(strings.NewReader(string(body)))
	for scanner.Scan() {
		if line := scanner.Text(); strings.HasPrefix(line, "event: ") {
			events = append(events, strings.TrimPrefix(line, "event: "))
		}
	}
	assert.Equal(t, []string{"feedback", "result"}, events)
	assert.Contains(t, string(body), `"status":"succeeded"`)
}

func TestNavigationHandler(t *testing.T) {
	t.Parallel()

	ctrl, _, _ := newTestController(t, testNavConfig(), &fakeRotationClient{})
	srv := newTestServer(t, nil, ctrl)

	resp, body := postJSON(t, srv.URL+"/start_navigation", ``)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["navigating"])
	assert.Equal(t, true, body["started"])

	_, body = postJSON(t, srv.URL+"/start_navigation", ``)
	assert.Equal(t, true, body["navigating"])
	assert.Equal(t, false, body["started"])

	r, err := http.Get(srv.URL + "/state")
	require.NoError(t, err)
	defer r.Body.Close()
	var st NavigationState
	require.NoError(t, json.NewDecoder(r.Body).Decode(&st))
	assert.Equal(t, NavigationState{Navigating: true}, st)

	// Executor routes are absent when no executor is wired.
	r2, err := http.Get(srv.URL + "/rotate/goals/x")
	require.NoError(t, err)
	r2.Body.Close()
	assert.Equal(t, http.StatusNotFound, r2.StatusCode)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, nil, nil)

	r, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	r.Body.Close()
	assert.Equal(t, http.StatusOK, r.StatusCode)

	r, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "wallnav_walls_detected_total")
}

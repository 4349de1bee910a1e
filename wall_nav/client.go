package wall_nav

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// HTTPRotationClient talks to a remote executor through its goal protocol routes.
type HTTPRotationClient struct {
	baseURL string
	http    *http.Client
	stream  *http.Client
}

// NewHTTPRotationClient creates a client for the executor at baseURL.
func NewHTTPRotationClient(baseURL string) *HTTPRotationClient {
	return &HTTPRotationClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		// Feedback streams live as long as the goal.
		stream: &http.Client{},
	}
}

// SendGoal submits goal and opens its feedback stream.
func (c *HTTPRotationClient) SendGoal(ctx context.Context, goal RotationGoal) (GoalFuture, error) {
	payload, err := json.Marshal(map[string]float64{"angle": goal.Angle})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rotate/goals", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build goal request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit goal: %w", err)
	}
	defer resp.Body.Close()

	var out goalResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode goal response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusAccepted || !out.Accepted {
		return nil, fmt.Errorf("%w: %s", ErrGoalRejected, out.Error)
	}

	streamCtx, stop := context.WithCancel(context.Background())
	g := &remoteGoal{
		client:   c,
		id:       out.GoalID,
		feedback: make(chan RotationFeedback, feedbackChanSlack),
		done:     make(chan struct{}),
		stop:     stop,
	}
	go g.run(streamCtx)
	return g, nil
}

// Cancel requests cancellation of the goal with the given ID.
func (c *HTTPRotationClient) Cancel(ctx context.Context, id string) (GoalSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rotate/goals/"+id+"/cancel", nil)
	if err != nil {
		return GoalSnapshot{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return GoalSnapshot{}, fmt.Errorf("cancel goal %s: %w", id, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return GoalSnapshot{}, fmt.Errorf("%w: %s", ErrGoalNotFound, id)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return GoalSnapshot{}, fmt.Errorf("cancel goal %s (status %d): %s", id, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var snap GoalSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return GoalSnapshot{}, fmt.Errorf("decode cancel response: %w", err)
	}
	return snap, nil
}

type remoteGoal struct {
	client   *HTTPRotationClient
	id       string
	feedback chan RotationFeedback
	done     chan struct{}
	stop     context.CancelFunc

	mu      sync.Mutex
	outcome GoalOutcome
	err     error
}

func (g *remoteGoal) ID() string { return g.id }

func (g *remoteGoal) Feedback() <-chan RotationFeedback { return g.feedback }

func (g *remoteGoal) Result(ctx context.Context) (GoalOutcome, error) {
	select {
	case <-g.done:
		g.mu.Lock()
		defer g.mu.Unlock()
		return g.outcome, g.err
	case <-ctx.Done():
		g.stop()
		return GoalOutcome{GoalID: g.id}, ctx.Err()
	}
}

func (g *remoteGoal) Cancel(ctx context.Context) error {
	_, err := g.client.Cancel(ctx, g.id)
	return err
}

// run reads the SSE feedback stream until the result event arrives.
func (g *remoteGoal) run(ctx context.Context) {
	defer g.stop()
	err := g.readStream(ctx)
	g.mu.Lock()
	if err != nil && g.err == nil && g.outcome.Status == "" {
		g.err = err
	}
	g.mu.Unlock()
	close(g.feedback)
	close(g.done)
}

func (g *remoteGoal) readStream(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.client.baseURL+"/rotate/goals/"+g.id+"/feedback", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := g.client.stream.Do(req)
	if err != nil {
		return fmt.Errorf("open feedback stream: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("open feedback stream: status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	var event string
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if event != "" {
				finished, err := g.dispatch(event, data.String())
				if err != nil || finished {
					return err
				}
			}
			event = ""
			data.Reset()
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read feedback stream: %w", err)
	}
	return errors.New("feedback stream ended without a result")
}

// dispatch handles one SSE event and reports whether the stream is finished.
func (g *remoteGoal) dispatch(event, data string) (bool, error) {
	switch event {
	case "feedback":
		var fb RotationFeedback
		if err := json.Unmarshal([]byte(data), &fb); err != nil {
			return false, fmt.Errorf("decode feedback: %w", err)
		}
		select {
		case g.feedback <- fb:
		default:
		}
		return false, nil
	case "result":
		var res resultEvent
		if err := json.Unmarshal([]byte(data), &res); err != nil {
			return true, fmt.Errorf("decode result: %w", err)
		}
		g.mu.Lock()
		g.outcome = GoalOutcome{GoalID: res.GoalID, Status: res.Status, Result: RotationResult{Success: res.Success}}
		g.mu.Unlock()
		return true, nil
	default:
		return false, nil
	}
}

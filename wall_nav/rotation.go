package wall_nav

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrExecutorBusy rejects a goal submitted while another goal owns the executor.
	ErrExecutorBusy = errors.New("rotation executor busy")
	// ErrInvalidGoal rejects a goal whose angle is not a finite number or whose
	// rotation would outlast the longest time.Duration.
	ErrInvalidGoal = errors.New("invalid rotation goal")
	// ErrGoalNotFound is returned for an unknown goal ID.
	ErrGoalNotFound = errors.New("rotation goal not found")
	// ErrExecutorClosed rejects goals after Close.
	ErrExecutorClosed = errors.New("rotation executor closed")
)

const (
	feedbackHistoryCap = 1024
	feedbackChanSlack  = 64
	retainedGoals      = 128
)

// RotationPlan is the open-loop kinematics of one goal.
type RotationPlan struct {
	Angle     float64 // signed degrees
	Direction float64 // +1, -1, or 0 for a no-op goal
	Speed     float64 // rad/s, positive
	Duration  time.Duration
}

// PlanRotation computes direction and duration for a turn of angle degrees at speed rad/s.
func PlanRotation(angle, speed float64) RotationPlan {
	p := RotationPlan{Angle: angle, Speed: speed}
	switch {
	case angle > 0:
		p.Direction = 1
	case angle < 0:
		p.Direction = -1
	default:
		return p
	}
	nanos := rotationNanos(angle, speed)
	if nanos >= math.MaxInt64 {
		p.Duration = math.MaxInt64
		return p
	}
	p.Duration = time.Duration(nanos)
	return p
}

func rotationNanos(angle, speed float64) float64 {
	radians := math.Abs(angle) * math.Pi / 180
	return radians / speed * float64(time.Second)
}

// CheckGoalAngle reports whether a turn of angle degrees at speed rad/s can be executed.
func CheckGoalAngle(angle, speed float64) error {
	if math.IsNaN(angle) || math.IsInf(angle, 0) {
		return fmt.Errorf("%w: angle %v", ErrInvalidGoal, angle)
	}
	if rotationNanos(angle, speed) >= math.MaxInt64 {
		return fmt.Errorf("%w: angle %v at %v rad/s is too long to time", ErrInvalidGoal, angle, speed)
	}
	return nil
}

// Command is the constant angular velocity held while the goal executes.
func (p RotationPlan) Command() VelocityCommand {
	return VelocityCommand{AngularZ: p.Direction * p.Speed}
}

// Remaining returns the degrees left after elapsed time.
func (p RotationPlan) Remaining(elapsed time.Duration) float64 {
	if p.Duration <= 0 {
		return 0
	}
	progress := math.Min(1, elapsed.Seconds()/p.Duration.Seconds())
	return math.Abs(p.Angle) * (1 - progress)
}

// GoalSnapshot is a point-in-time view of a goal.
type GoalSnapshot struct {
	GoalID           string     `json:"goal_id"`
	Angle            float64    `json:"angle"`
	Status           GoalStatus `json:"status"`
	RemainingDegrees float64    `json:"remaining_degrees"`
	Success          bool       `json:"success"`
	Done             bool       `json:"done"`
}

// GoalHandle tracks one submitted goal and fans its feedback out to subscribers.
type GoalHandle struct {
	id      string
	goal    RotationGoal
	plan    RotationPlan
	created time.Time

	mu       sync.Mutex
	status   GoalStatus
	result   RotationResult
	feedback []RotationFeedback
	subs     []chan RotationFeedback

	cancelFrom GoalStatus
	cancelOnce sync.Once
	cancelReq  chan struct{}
	done       chan struct{}
}

func newGoalHandle(id string, goal RotationGoal, plan RotationPlan, now time.Time) *GoalHandle {
	return &GoalHandle{
		id:        id,
		goal:      goal,
		plan:      plan,
		created:   now,
		status:    GoalRequested,
		cancelReq: make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// ID returns the goal identifier.
func (h *GoalHandle) ID() string { return h.id }

// Goal returns the submitted request.
func (h *GoalHandle) Goal() RotationGoal { return h.goal }

// Plan returns the kinematics computed at acceptance.
func (h *GoalHandle) Plan() RotationPlan { return h.plan }

// Done is closed once the goal reaches a terminal status.
func (h *GoalHandle) Done() <-chan struct{} { return h.done }

// Status returns the current lifecycle status.
func (h *GoalHandle) Status() GoalStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// Outcome returns the terminal status and result. Before Done it reports the live status.
func (h *GoalHandle) Outcome() GoalOutcome {
	h.mu.Lock()
	defer h.mu.Unlock()
	return GoalOutcome{GoalID: h.id, Status: h.status, Result: h.result}
}

// Snapshot returns the goal state for status queries.
func (h *GoalHandle) Snapshot() GoalSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	snap := GoalSnapshot{
		GoalID:           h.id,
		Angle:            h.goal.Angle,
		Status:           h.status,
		RemainingDegrees: math.Abs(h.goal.Angle),
		Success:          h.result.Success,
		Done:             h.status.IsTerminal(),
	}
	if n := len(h.feedback); n > 0 {
		snap.RemainingDegrees = h.feedback[n-1].RemainingDegrees
	}
	return snap
}

// Feedback returns every feedback message emitted so far.
func (h *GoalHandle) Feedback() []RotationFeedback {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]RotationFeedback(nil), h.feedback...)
}

// Subscribe replays the feedback emitted so far and then streams live feedback.
// The channel is closed when the goal terminates. Slow readers miss live messages
// instead of stalling the executor.
func (h *GoalHandle) Subscribe() <-chan RotationFeedback {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan RotationFeedback, len(h.feedback)+feedbackChanSlack)
	for _, fb := range h.feedback {
		ch <- fb
	}
	if h.status.IsTerminal() {
		close(ch)
		return ch
	}
	h.subs = append(h.subs, ch)
	return ch
}

func (h *GoalHandle) publish(fb RotationFeedback) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.feedback) == feedbackHistoryCap {
		h.feedback = append(h.feedback[:0], h.feedback[1:]...)
	}
	h.feedback = append(h.feedback, fb)
	for _, ch := range h.subs {
		select {
		case ch <- fb:
		default:
		}
	}
}

// transition moves the goal along a lifecycle edge and returns the previous status.
func (h *GoalHandle) transition(to GoalStatus) (GoalStatus, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	from := h.status
	if err := ValidateGoalTransition(from, to); err != nil {
		return from, err
	}
	h.status = to
	if to.IsTerminal() {
		h.result = RotationResult{Success: to == GoalSucceeded}
		for _, ch := range h.subs {
			close(ch)
		}
		h.subs = nil
		close(h.done)
	}
	return from, nil
}

// requestCancel moves a live goal to canceling. It returns the resulting status and whether it changed.
func (h *GoalHandle) requestCancel() (GoalStatus, GoalStatus, bool) {
	h.mu.Lock()
	from := h.status
	if !from.IsLive() || from == GoalCanceling {
		h.mu.Unlock()
		return from, from, false
	}
	h.status = GoalCanceling
	h.cancelFrom = from
	h.mu.Unlock()
	h.cancelOnce.Do(func() { close(h.cancelReq) })
	return from, GoalCanceling, true
}

func (h *GoalHandle) cancelOrigin() GoalStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancelFrom
}

func (h *GoalHandle) record() GoalRecord {
	snap := h.Snapshot()
	return GoalRecord{
		GoalID:           h.id,
		Angle:            h.goal.Angle,
		Status:           snap.Status,
		Success:          snap.Success,
		RemainingDegrees: snap.RemainingDegrees,
		CreatedAt:        h.created,
	}
}

// ExecutorOption customizes a RotationExecutor.
type ExecutorOption func(*RotationExecutor)

// WithClock replaces the real clock, mainly for tests.
func WithClock(c Clock) ExecutorOption {
	return func(e *RotationExecutor) { e.clock = c }
}

// WithEventLog attaches the structured event log.
func WithEventLog(l *EventLog) ExecutorOption {
	return func(e *RotationExecutor) { e.events = l }
}

// WithMetrics attaches the metrics registry.
func WithMetrics(m *Metrics) ExecutorOption {
	return func(e *RotationExecutor) { e.metrics = m }
}

// WithHistory persists every goal transition.
func WithHistory(h *History) ExecutorOption {
	return func(e *RotationExecutor) { e.history = h }
}

// WithGoalIDs replaces the UUID goal ID generator.
func WithGoalIDs(next func() string) ExecutorOption {
	return func(e *RotationExecutor) { e.newID = next }
}

// RotationExecutor runs one timed, cancellable in-place rotation at a time.
//
// A goal submitted while another is accepted or executing is rejected with ErrExecutorBusy.
// Intake is serialized by mu; each accepted goal runs its tick loop on its own goroutine.
type RotationExecutor struct {
	cfg     RotationConfig
	vel     VelocityPublisher
	clock   Clock
	events  *EventLog
	metrics *Metrics
	history *History
	newID   func() string

	mu     sync.Mutex
	active *GoalHandle
	goals  map[string]*GoalHandle
	order  []string
	closed bool
	wg     sync.WaitGroup
}

// NewRotationExecutor validates cfg and builds an executor publishing to vel.
func NewRotationExecutor(cfg RotationConfig, vel VelocityPublisher, opts ...ExecutorOption) (*RotationExecutor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if vel == nil {
		return nil, fmt.Errorf("%w: velocity publisher is required", ErrInvalidConfig)
	}
	e := &RotationExecutor{
		cfg:   cfg,
		vel:   vel,
		clock: RealClock{},
		newID: uuid.NewString,
		goals: make(map[string]*GoalHandle),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the executor settings.
func (e *RotationExecutor) Config() RotationConfig { return e.cfg }

// Submit runs the accept policy for goal and, if accepted, starts executing it.
// A rejected goal returns a non-nil error; the handle is still returned for inspection.
func (e *RotationExecutor) Submit(goal RotationGoal) (*GoalHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrExecutorClosed
	}

	h := newGoalHandle(e.newID(), goal, PlanRotation(goal.Angle, e.cfg.RotationSpeed), e.clock.Now())
	e.remember(h)
	e.events.Info("goal_requested", F("goal_id", h.id), F("angle", goal.Angle))

	reason := CheckGoalAngle(goal.Angle, e.cfg.RotationSpeed)
	if reason == nil && e.active != nil {
		reason = fmt.Errorf("%w: goal %s is %s", ErrExecutorBusy, e.active.id, e.active.Status())
	}
	if reason != nil {
		e.transition(h, GoalRejected)
		e.metrics.GoalFinished(GoalRejected, 0)
		e.events.Error("goal_rejected", F("goal_id", h.id), F("reason", reason))
		return h, reason
	}

	e.transition(h, GoalAccepted)
	e.events.Info("goal_accepted", F("goal_id", h.id), F("duration", h.plan.Duration))
	e.active = h
	e.wg.Add(1)
	go e.execute(h)
	return h, nil
}

// Cancel requests cancellation of a live goal. Every request for a live goal is accepted;
// a goal that already finished reports its terminal status unchanged.
func (e *RotationExecutor) Cancel(id string) (GoalStatus, error) {
	h, ok := e.Goal(id)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrGoalNotFound, id)
	}
	from, to, changed := h.requestCancel()
	if !changed {
		e.events.Info("goal_cancel_ignored", F("goal_id", id), F("status", to))
		return to, nil
	}
	e.events.Info("goal_cancel_requested", F("goal_id", id), F("from", from))
	return to, nil
}

// Goal looks up a retained goal by ID.
func (e *RotationExecutor) Goal(id string) (*GoalHandle, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.goals[id]
	return h, ok
}

// Active returns the goal currently owning the executor, if any.
func (e *RotationExecutor) Active() (*GoalHandle, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active, e.active != nil
}

// Close rejects further goals, cancels the active one, and waits for its loop to exit.
func (e *RotationExecutor) Close() error {
	e.mu.Lock()
	e.closed = true
	active := e.active
	e.mu.Unlock()

	if active != nil {
		_, _ = e.Cancel(active.id)
	}
	e.wg.Wait()
	return nil
}

// Wait blocks until the goal terminates or ctx is done.
func (e *RotationExecutor) Wait(ctx context.Context, h *GoalHandle) (GoalOutcome, error) {
	select {
	case <-h.Done():
		return h.Outcome(), nil
	case <-ctx.Done():
		return h.Outcome(), ctx.Err()
	}
}

func (e *RotationExecutor) execute(h *GoalHandle) {
	defer e.wg.Done()
	defer e.release(h)

	plan := h.plan
	start := e.clock.Now()

	if !e.transition(h, GoalExecuting) {
		// Canceled between acceptance and start.
		e.stop()
		e.finish(h, false, 0)
		return
	}
	e.events.Info("goal_executing", F("goal_id", h.id), F("angle", plan.Angle), F("angular_z", plan.Command().AngularZ))

	if plan.Direction == 0 {
		h.publish(RotationFeedback{RemainingDegrees: 0})
		e.finish(h, true, 0)
		return
	}

	ticker := e.clock.NewTicker(e.cfg.TickPeriod)
	defer ticker.Stop()
	cmd := plan.Command()

	for {
		elapsed := e.clock.Since(start)
		select {
		case <-h.cancelReq:
			e.stop()
			e.finish(h, false, elapsed)
			return
		default:
		}

		if elapsed >= plan.Duration {
			e.stop()
			h.publish(RotationFeedback{RemainingDegrees: 0})
			e.finish(h, true, elapsed)
			return
		}

		e.vel.Publish(cmd)
		fb := RotationFeedback{RemainingDegrees: plan.Remaining(elapsed)}
		h.publish(fb)
		e.metrics.UpdateFeedback(fb)
		e.events.Debug("rotation_feedback", F("goal_id", h.id), F("elapsed", elapsed), F("remaining_degrees", fb.RemainingDegrees))

		select {
		case <-ticker.C():
		case <-h.cancelReq:
		}
	}
}

// finish moves the goal to its terminal status. A pending cancel wins over success.
// The executor is freed before the terminal edge closes Done, so a goal submitted
// by a waiter that just woke up is never rejected as busy.
func (e *RotationExecutor) finish(h *GoalHandle, success bool, elapsed time.Duration) {
	e.release(h)
	if !success || !e.transition(h, GoalSucceeded) {
		// The edge into canceling is persisted here so history stays in order.
		e.recordHistory(h, h.cancelOrigin())
		e.transition(h, GoalCanceled)
	}

	outcome := h.Outcome()
	e.metrics.GoalFinished(outcome.Status, elapsed.Seconds())
	e.metrics.UpdateFeedback(RotationFeedback{})
	e.events.Info("goal_"+string(outcome.Status), F("goal_id", h.id), F("elapsed", elapsed), F("success", outcome.Result.Success))
}

func (e *RotationExecutor) stop() {
	e.vel.Publish(VelocityCommand{})
}

// transition applies a lifecycle edge and persists it. It reports whether the edge was taken.
func (e *RotationExecutor) transition(h *GoalHandle, to GoalStatus) bool {
	from, err := h.transition(to)
	if err != nil {
		return false
	}
	e.recordHistory(h, from)
	return true
}

func (e *RotationExecutor) recordHistory(h *GoalHandle, from GoalStatus) {
	if e.history == nil {
		return
	}
	if err := e.history.RecordTransition(context.Background(), h.record(), from); err != nil {
		e.events.Error("history_write_failed", F("goal_id", h.id), F("error", err))
	}
}

func (e *RotationExecutor) release(h *GoalHandle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == h {
		e.active = nil
	}
}

// remember retains h for lookups, evicting the oldest terminal goals. Caller holds mu.
func (e *RotationExecutor) remember(h *GoalHandle) {
	e.goals[h.id] = h
	e.order = append(e.order, h.id)
	for len(e.order) > retainedGoals {
		oldest := e.goals[e.order[0]]
		if oldest != nil && !oldest.Status().IsTerminal() {
			break
		}
		delete(e.goals, e.order[0])
		e.order = e.order[1:]
	}
}

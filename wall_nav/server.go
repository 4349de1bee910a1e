package wall_nav

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
)

type goalRequest struct {
	Angle *float64 `json:"angle"`
}

type goalResponse struct {
	GoalID   string `json:"goal_id,omitempty"`
	Accepted bool   `json:"accepted"`
	Error    string `json:"error,omitempty"`
}

type resultEvent struct {
	GoalID  string     `json:"goal_id"`
	Status  GoalStatus `json:"status"`
	Success bool       `json:"success"`
}

type startResponse struct {
	Navigating bool `json:"navigating"`
	Started    bool `json:"started"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// RotationHandler exposes the goal protocol of an executor over HTTP.
type RotationHandler struct {
	exec *RotationExecutor
}

// NewRotationHandler wraps exec.
func NewRotationHandler(exec *RotationExecutor) *RotationHandler {
	return &RotationHandler{exec: exec}
}

// RegisterRoutes registers the goal protocol routes.
func (h *RotationHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/rotate/goals", h.SubmitGoal).Methods("POST")
	r.HandleFunc("/rotate/goals/{id}", h.GetGoal).Methods("GET")
	r.HandleFunc("/rotate/goals/{id}/cancel", h.CancelGoal).Methods("POST")
	r.HandleFunc("/rotate/goals/{id}/feedback", h.StreamFeedback).Methods("GET")
}

// SubmitGoal accepts or rejects a rotation goal.
func (h *RotationHandler) SubmitGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid request body: %v", err)})
		return
	}
	if req.Angle == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "angle is required"})
		return
	}

	goal, err := h.exec.Submit(RotationGoal{Angle: *req.Angle})
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, goalResponse{GoalID: goal.ID(), Accepted: true})
	case errors.Is(err, ErrExecutorClosed):
		writeJSON(w, http.StatusServiceUnavailable, goalResponse{Error: err.Error()})
	case errors.Is(err, ErrInvalidGoal):
		writeJSON(w, http.StatusBadRequest, goalResponse{GoalID: goal.ID(), Error: err.Error()})
	default:
		writeJSON(w, http.StatusConflict, goalResponse{GoalID: goal.ID(), Error: err.Error()})
	}
}

// GetGoal returns a goal snapshot.
func (h *RotationHandler) GetGoal(w http.ResponseWriter, r *http.Request) {
	goal, ok := h.exec.Goal(mux.Vars(r)["id"])
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: ErrGoalNotFound.Error()})
		return
	}
	writeJSON(w, http.StatusOK, goal.Snapshot())
}

// CancelGoal requests cancellation of a goal.
func (h *RotationHandler) CancelGoal(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := h.exec.Cancel(id); err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	goal, _ := h.exec.Goal(id)
	writeJSON(w, http.StatusOK, goal.Snapshot())
}

// StreamFeedback streams feedback as server-sent events, ending with exactly one result event.
func (h *RotationHandler) StreamFeedback(w http.ResponseWriter, r *http.Request) {
	goal, ok := h.exec.Goal(mux.Vars(r)["id"])
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: ErrGoalNotFound.Error()})
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	feedback := goal.Subscribe()
	for {
		select {
		case <-r.Context().Done():
			return
		case fb, ok := <-feedback:
			if !ok {
				out := goal.Outcome()
				_ = writeSSE(w, "result", resultEvent{GoalID: out.GoalID, Status: out.Status, Success: out.Result.Success})
				flusher.Flush()
				return
			}
			if err := writeSSE(w, "feedback", fb); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// NavigationHandler exposes the controller's start request and state over HTTP.
type NavigationHandler struct {
	ctrl *NavigationController
}

// NewNavigationHandler wraps ctrl.
func NewNavigationHandler(ctrl *NavigationController) *NavigationHandler {
	return &NavigationHandler{ctrl: ctrl}
}

// RegisterRoutes registers the navigation routes.
func (h *NavigationHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/start_navigation", h.StartNavigation).Methods("POST")
	r.HandleFunc("/state", h.GetState).Methods("GET")
}

// StartNavigation always acknowledges; started is false when navigation was already running.
func (h *NavigationHandler) StartNavigation(w http.ResponseWriter, r *http.Request) {
	started := h.ctrl.StartNavigation()
	writeJSON(w, http.StatusOK, startResponse{Navigating: true, Started: started})
}

// GetState returns the controller's behavior gate.
func (h *NavigationHandler) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.State())
}

// NewRouter assembles the HTTP surface. Nil components are left unrouted.
func NewRouter(exec *RotationExecutor, ctrl *NavigationController, metrics *Metrics) *mux.Router {
	r := mux.NewRouter()
	if exec != nil {
		NewRotationHandler(exec).RegisterRoutes(r)
	}
	if ctrl != nil {
		NewNavigationHandler(ctrl).RegisterRoutes(r)
	}
	if metrics != nil {
		r.Handle("/metrics", metrics.Handler()).Methods("GET")
	}
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSSE(w http.ResponseWriter, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

package loop

import "autoloop/envelope"

// Status is the lifecycle state of a run. Transitions only move forward:
// idle -> running -> one terminal status.
type Status string

const (
	StatusIdle          Status = "idle"
	StatusRunning       Status = "running"
	StatusGoalReached   Status = "stopped_goal_reached"
	StatusMaxIterations Status = "stopped_max_iterations"
	StatusCancelled     Status = "stopped_user_cancelled"
	StatusFailed        Status = "failed"
)

// Terminal reports whether s is a final status.
func (s Status) Terminal() bool {
	switch s {
	case StatusGoalReached, StatusMaxIterations, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

// Exchange records one completed round-trip: the prompt sent, the raw
// response, and the commands extracted and executed for it.
type Exchange struct {
	Prompt   string                    `json:"prompt"`
	Response string                    `json:"response"`
	Requests []envelope.CommandRequest `json:"requests,omitempty"`
	Results  []envelope.CommandResult  `json:"results,omitempty"`
}

// State is a snapshot of a run. History is append-only while the run is
// active and owned exclusively by the controller; snapshots returned to
// callers are copies.
type State struct {
	RunID         string     `json:"run_id"`
	Iteration     int        `json:"iteration"`
	MaxIterations int        `json:"max_iterations"`
	Status        Status     `json:"status"`
	History       []Exchange `json:"history"`
}

// LastResponse returns the response text of the most recent exchange, or ""
// for an empty history.
func (s State) LastResponse() string {
	if len(s.History) == 0 {
		return ""
	}
	return s.History[len(s.History)-1].Response
}

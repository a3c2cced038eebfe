package domain

import "time"

// OutcomeStatus describes how an agent's slot in a run was filled.
type OutcomeStatus string

const (
	OutcomeOK        OutcomeStatus = "ok"
	OutcomeError     OutcomeStatus = "error"     // agent returned an ERROR finding
	OutcomeTimedOut  OutcomeStatus = "timed_out" // per-agent timeout fired
	OutcomeFaulted   OutcomeStatus = "faulted"   // panic recovered by the pipeline
	OutcomeCancelled OutcomeStatus = "cancelled" // run context was cancelled first
)

// AgentOutcome records execution metadata for one agent in a run.
type AgentOutcome struct {
	Name     string        `json:"name"`
	Status   OutcomeStatus `json:"status"`
	Duration time.Duration `json:"duration_ns"`
}

// ReviewRun is one end-to-end execution of all configured roles against a
// single code submission.
type ReviewRun struct {
	ID        string         `json:"id"`
	Input     string         `json:"input"`
	Results   Results        `json:"findings"`
	Outcomes  []AgentOutcome `json:"outcomes"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration_ns"`
	Cached    bool           `json:"cached,omitempty"`
}

// ReviewStats holds statistics about a review run.
type ReviewStats struct {
	TotalAgents       int
	SuccessfulAgents  int
	ErroredAgents     []string
	TimedOutAgents    []string
	FaultedAgents     []string
	CancelledAgents   []string
	AgentDurations    map[string]time.Duration
	WallClockDuration time.Duration
	Cached            bool
}

// AllFailed returns true if no agent produced a usable review.
func (s *ReviewStats) AllFailed() bool {
	return s.TotalAgents > 0 && s.SuccessfulAgents == 0
}

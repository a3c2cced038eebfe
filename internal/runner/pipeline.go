// Package runner executes review pipelines and renders their results.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/richhaase/code-review-crew/internal/agent"
	"github.com/richhaase/code-review-crew/internal/domain"
	"github.com/richhaase/code-review-crew/internal/llm"
	"github.com/richhaase/code-review-crew/internal/source"
	"github.com/richhaase/code-review-crew/internal/terminal"
)

// DefaultAgentTimeout bounds a single agent's review.
const DefaultAgentTimeout = 2 * time.Minute

// Config holds the pipeline configuration.
type Config struct {
	AgentTimeout time.Duration
	Verbose      bool
	// Progress shows a spinner on stderr while agents run.
	Progress bool
}

// Reviewer is one stage of the pipeline. *agent.Agent implements it.
type Reviewer interface {
	Name() string
	Review(ctx context.Context, code string, prior domain.Results) domain.Finding
}

// Pipeline runs reviewers one after another over the same code, handing each
// the findings of those before it.
type Pipeline struct {
	config Config
	roles  []agent.Role
	logger *terminal.Logger

	// newReviewer builds the reviewer for a role.
	newReviewer func(agent.Role) Reviewer
}

// New creates a pipeline over roles, in order, backed by gen.
func New(config Config, roles []agent.Role, gen llm.Generator, logger *terminal.Logger) (*Pipeline, error) {
	if len(roles) == 0 {
		return nil, fmt.Errorf("at least one agent role is required")
	}
	if gen == nil {
		return nil, fmt.Errorf("a generator is required")
	}
	if config.AgentTimeout <= 0 {
		config.AgentTimeout = DefaultAgentTimeout
	}
	return &Pipeline{
		config: config,
		roles:  roles,
		logger: logger,
		newReviewer: func(role agent.Role) Reviewer {
			return agent.New(role, gen, logger)
		},
	}, nil
}

// RoleNames returns the configured role names in run order.
func (p *Pipeline) RoleNames() []string {
	names := make([]string, len(p.roles))
	for i, r := range p.roles {
		names[i] = r.Name
	}
	return names
}

// ReviewAll sanitizes code and runs every configured role over it.
func (p *Pipeline) ReviewAll(ctx context.Context, code string) domain.ReviewRun {
	return p.Run(ctx, source.Sanitize(code), p.roles)
}

// Run executes roles in order. It always returns exactly one finding per
// role; agent faults, timeouts and cancellation become ERROR findings.
func (p *Pipeline) Run(ctx context.Context, code string, roles []agent.Role) domain.ReviewRun {
	start := time.Now()
	run := domain.ReviewRun{
		Input:     code,
		StartedAt: start,
		Outcomes:  make([]domain.AgentOutcome, 0, len(roles)),
	}

	var spinner *terminal.Spinner
	if p.config.Progress {
		spinner = terminal.NewSpinner(len(roles))
		spinnerCtx, spinnerCancel := context.WithCancel(context.Background())
		spinnerDone := make(chan struct{})
		go func() {
			spinner.Run(spinnerCtx)
			close(spinnerDone)
		}()
		defer func() {
			spinnerCancel()
			<-spinnerDone
		}()
	}

	for _, role := range roles {
		if spinner != nil {
			spinner.Start(role.Name)
		}

		agentStart := time.Now()
		finding, status := p.runAgent(ctx, p.newReviewer(role), code, run.Results.Snapshot())
		elapsed := time.Since(agentStart)

		run.Results.Set(role.Name, finding)
		run.Outcomes = append(run.Outcomes, domain.AgentOutcome{
			Name:     role.Name,
			Status:   status,
			Duration: elapsed,
		})
		p.logOutcome(role.Name, finding, status, elapsed)

		if spinner != nil {
			spinner.Done()
		}
	}

	run.Duration = time.Since(start)
	return run
}

type agentReply struct {
	finding domain.Finding
	fault   any
}

// runAgent runs one reviewer in its own goroutine so that a per-agent
// timeout can be enforced, and converts panics into ERROR findings.
func (p *Pipeline) runAgent(ctx context.Context, r Reviewer, code string, prior domain.Results) (domain.Finding, domain.OutcomeStatus) {
	if err := ctx.Err(); err != nil {
		return domain.ErrorFinding("Agent cancelled: " + err.Error()), domain.OutcomeCancelled
	}

	agentCtx, cancel := context.WithTimeout(ctx, p.config.AgentTimeout)
	defer cancel()

	replies := make(chan agentReply, 1)
	go func() {
		defer func() {
			if fault := recover(); fault != nil {
				replies <- agentReply{fault: fault}
			}
		}()
		replies <- agentReply{finding: r.Review(agentCtx, code, prior)}
	}()

	select {
	case reply := <-replies:
		if reply.fault != nil {
			p.logger.Logf(terminal.StyleError, "Error in %s: %v", r.Name(), reply.fault)
			return domain.ErrorFinding(fmt.Sprintf("Agent error: %v", reply.fault)), domain.OutcomeFaulted
		}
		if err := agentCtx.Err(); err != nil {
			// The reviewer gave up because its context ended; report why.
			return p.interrupted(ctx, err)
		}
		if reply.finding.IsError() {
			return reply.finding, domain.OutcomeError
		}
		return reply.finding, domain.OutcomeOK

	case <-agentCtx.Done():
		return p.interrupted(ctx, agentCtx.Err())
	}
}

func (p *Pipeline) interrupted(parent context.Context, err error) (domain.Finding, domain.OutcomeStatus) {
	if parentErr := parent.Err(); parentErr != nil {
		return domain.ErrorFinding("Agent cancelled: " + parentErr.Error()), domain.OutcomeCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrorFinding(fmt.Sprintf("Agent timed out after %s", p.config.AgentTimeout)), domain.OutcomeTimedOut
	}
	return domain.ErrorFinding("Agent cancelled: " + err.Error()), domain.OutcomeCancelled
}

func (p *Pipeline) logOutcome(name string, f domain.Finding, status domain.OutcomeStatus, elapsed time.Duration) {
	switch status {
	case domain.OutcomeOK:
		p.logger.Logf(terminal.StyleSuccess, "%s review complete %s(%s, %d issues, %s)%s",
			name, terminal.Color(terminal.Dim), f.Severity, len(f.Issues), terminal.FormatDuration(elapsed), terminal.Color(terminal.Reset))
	case domain.OutcomeError:
		p.logger.Logf(terminal.StyleWarning, "%s returned an error finding: %s", name, firstIssue(f))
	default:
		p.logger.Logf(terminal.StyleError, "%s %s: %s", name, status, firstIssue(f))
	}
}

func firstIssue(f domain.Finding) string {
	if len(f.Issues) == 0 {
		return ""
	}
	return f.Issues[0].String()
}

// BuildStats summarizes per-agent outcomes of a run.
func BuildStats(run domain.ReviewRun) domain.ReviewStats {
	stats := domain.ReviewStats{
		TotalAgents:       len(run.Outcomes),
		AgentDurations:    make(map[string]time.Duration, len(run.Outcomes)),
		WallClockDuration: run.Duration,
		Cached:            run.Cached,
	}

	for _, o := range run.Outcomes {
		stats.AgentDurations[o.Name] = o.Duration
		switch o.Status {
		case domain.OutcomeOK:
			stats.SuccessfulAgents++
		case domain.OutcomeError:
			stats.ErroredAgents = append(stats.ErroredAgents, o.Name)
		case domain.OutcomeTimedOut:
			stats.TimedOutAgents = append(stats.TimedOutAgents, o.Name)
		case domain.OutcomeFaulted:
			stats.FaultedAgents = append(stats.FaultedAgents, o.Name)
		case domain.OutcomeCancelled:
			stats.CancelledAgents = append(stats.CancelledAgents, o.Name)
		}
	}

	return stats
}

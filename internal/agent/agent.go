package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/richhaase/code-review-crew/internal/domain"
	"github.com/richhaase/code-review-crew/internal/llm"
	"github.com/richhaase/code-review-crew/internal/terminal"
)

// Preparation is the output of a role's pre-processing step.
type Preparation struct {
	// Context lines are appended to the prompt after the code and prior findings.
	Context []string
	// Extensions are merged into the finding whether or not the model call succeeded.
	Extensions map[string]any
}

// Role is the fixed configuration of one reviewer: its prompt, generation
// parameters, optional pre-processing and failure wording.
type Role struct {
	Name   string
	Prompt string
	Params llm.Params

	// BlockedMessage is the issue reported when the provider withholds output.
	BlockedMessage string
	// ErrorFormat formats any other provider error. It takes one %v verb.
	ErrorFormat string
	// FaultFormat, when set, makes the agent recover its own panics into an
	// ERROR finding. Without it a panic reaches the pipeline.
	FaultFormat string
	// FaultExtensions are attached to the fault finding.
	FaultExtensions map[string]any

	Prepare func(code string) Preparation
}

// Agent reviews code from the perspective of one Role.
type Agent struct {
	role     Role
	gen      llm.Generator
	contract *Contract
	logger   *terminal.Logger
}

// New creates an agent for role backed by gen.
func New(role Role, gen llm.Generator, logger *terminal.Logger) *Agent {
	return &Agent{
		role:     role,
		gen:      gen,
		contract: NewContract(role.Name, logger),
		logger:   logger,
	}
}

// Name returns the role name.
func (a *Agent) Name() string {
	return a.role.Name
}

// Review produces one finding for code given the findings of agents that ran
// before it. Provider and contract failures become ERROR findings.
func (a *Agent) Review(ctx context.Context, code string, prior domain.Results) (f domain.Finding) {
	if a.role.FaultFormat != "" {
		defer func() {
			if r := recover(); r != nil {
				a.logger.Logf(terminal.StyleError, "%s failed: %v", a.role.Name, r)
				f = domain.ErrorFinding(fmt.Sprintf(a.role.FaultFormat, r))
				for k, v := range a.role.FaultExtensions {
					f = f.WithExtension(k, v)
				}
			}
		}()
	}

	var prep Preparation
	if a.role.Prepare != nil {
		prep = a.role.Prepare(code)
	}

	prompt := BuildPrompt(a.role.Prompt, code, prior, prep.Context)
	text, err := a.gen.Generate(ctx, llm.Request{Prompt: prompt, Params: a.role.Params})

	switch {
	case errors.Is(err, llm.ErrBlocked):
		a.logger.Logf(terminal.StyleWarning, "%s: %v", a.role.Name, err)
		f = domain.ErrorFinding(a.role.BlockedMessage)
	case err != nil:
		a.logger.Logf(terminal.StyleError, "%s: provider error: %v", a.role.Name, err)
		f = domain.ErrorFinding(fmt.Sprintf(a.role.ErrorFormat, err))
	default:
		a.logger.Debugf("Agent %s raw response: %s", a.role.Name, text)
		f = a.contract.Normalize(text)
	}

	for k, v := range prep.Extensions {
		f = f.WithExtension(k, v)
	}

	a.logger.Debugf("%s review complete: %s", a.role.Name, f.Summary())
	return f
}

// BuildPrompt assembles the role prompt, the code, the prior findings (when
// any) and extra context lines into one prompt.
func BuildPrompt(rolePrompt, code string, prior domain.Results, extra []string) string {
	parts := []string{rolePrompt, "Review this code:\n\n" + code}
	if prior.Len() > 0 {
		data, err := json.Marshal(prior)
		if err == nil {
			parts = append(parts, "Previous review findings: "+string(data))
		}
	}
	parts = append(parts, extra...)
	return strings.Join(parts, "\n\n")
}

package runner

import (
	"context"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/richhaase/code-review-crew/internal/agent"
	"github.com/richhaase/code-review-crew/internal/domain"
	"github.com/richhaase/code-review-crew/internal/llm"
)

// promptLog is a generator that records prompts and answers with a finding
// whose issue names the agent whose prompt it received.
type promptLog struct {
	mu      sync.Mutex
	prompts []string
	answer  func(prompt string) (string, error)
}

func (g *promptLog) Generate(_ context.Context, req llm.Request) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, req.Prompt)
	g.mu.Unlock()
	if g.answer != nil {
		return g.answer(req.Prompt)
	}
	return `{"severity":"LOW","issues":[],"recommendations":[]}`, nil
}

// funcReviewer adapts a function to Reviewer.
type funcReviewer struct {
	name   string
	review func(ctx context.Context, code string, prior domain.Results) domain.Finding
}

func (r funcReviewer) Name() string { return r.name }

func (r funcReviewer) Review(ctx context.Context, code string, prior domain.Results) domain.Finding {
	return r.review(ctx, code, prior)
}

func newTestPipeline(t *testing.T, gen llm.Generator, cfg Config) *Pipeline {
	t.Helper()
	p, err := New(cfg, agent.DefaultRoles(), gen, nil)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func assertComplete(t *testing.T, run domain.ReviewRun) {
	t.Helper()
	if got := run.Results.Names(); !slices.Equal(got, agent.DefaultOrder) {
		t.Fatalf("result order = %v, want %v", got, agent.DefaultOrder)
	}
	for _, name := range run.Results.Names() {
		f, _ := run.Results.Get(name)
		if f.Severity == "" || f.Issues == nil || f.Recommendations == nil {
			t.Errorf("%s: incomplete finding %#v", name, f)
		}
	}
	if len(run.Outcomes) != len(agent.DefaultOrder) {
		t.Errorf("outcomes = %d, want %d", len(run.Outcomes), len(agent.DefaultOrder))
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{}, nil, &promptLog{}, nil); err == nil {
		t.Error("expected error for empty roles")
	}
	if _, err := New(Config{}, agent.DefaultRoles(), nil, nil); err == nil {
		t.Error("expected error for nil generator")
	}
	p, err := New(Config{}, agent.DefaultRoles(), &promptLog{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if p.config.AgentTimeout != DefaultAgentTimeout {
		t.Errorf("AgentTimeout = %v, want default", p.config.AgentTimeout)
	}
	if !slices.Equal(p.RoleNames(), agent.DefaultOrder) {
		t.Errorf("RoleNames() = %v", p.RoleNames())
	}
}

func TestPipeline_OneFindingPerRole(t *testing.T) {
	answers := map[string]string{
		"security":      `{"severity":"HIGH","issues":["x"],"recommendations":[]}`,
		"style":         `garbage`,
		"performance":   `{"severity":"LOW"}`,
		"documentation": `{"severity":"MEDIUM","issues":[],"recommendations":["doc it"]}`,
	}
	gen := &promptLog{answer: func(prompt string) (string, error) {
		for key, answer := range answers {
			if strings.Contains(strings.ToLower(prompt[:80]), key) {
				return answer, nil
			}
		}
		return "", nil
	}}

	for _, code := range []string{"x := 1", "func broken( {", ""} {
		run := newTestPipeline(t, gen, Config{}).ReviewAll(context.Background(), code)
		assertComplete(t, run)

		sev := func(name string) domain.Severity {
			f, _ := run.Results.Get(name)
			return f.Severity
		}
		if sev(agent.SecurityAgent) != domain.SeverityHigh {
			t.Errorf("security severity = %s", sev(agent.SecurityAgent))
		}
		if sev(agent.StyleAgent) != domain.SeverityError || sev(agent.PerformanceAgent) != domain.SeverityError {
			t.Errorf("contract violations should be ERROR findings")
		}
		if sev(agent.DocumentationAgent) != domain.SeverityMedium {
			t.Errorf("documentation severity = %s", sev(agent.DocumentationAgent))
		}
	}
}

func TestPipeline_LaterAgentsSeeEarlierFindings(t *testing.T) {
	gen := &promptLog{answer: func(prompt string) (string, error) {
		if strings.Contains(prompt[:80], "security") {
			return `{"severity":"HIGH","issues":["MARKER-7f3a"],"recommendations":[]}`, nil
		}
		return `{"severity":"LOW","issues":[],"recommendations":[]}`, nil
	}}

	newTestPipeline(t, gen, Config{}).ReviewAll(context.Background(), "x := 1")

	if len(gen.prompts) != 4 {
		t.Fatalf("prompts = %d, want 4", len(gen.prompts))
	}
	if strings.Contains(gen.prompts[0], "Previous review findings") {
		t.Error("first agent should see no prior findings")
	}
	for i, prompt := range gen.prompts[1:] {
		if !strings.Contains(prompt, "MARKER-7f3a") {
			t.Errorf("agent %d did not receive the security finding", i+2)
		}
	}
	if !strings.Contains(gen.prompts[3], `"PerformanceAgent":`) {
		t.Error("documentation agent should see the performance finding")
	}
}

func TestPipeline_ThirdRolePanics(t *testing.T) {
	p := newTestPipeline(t, &promptLog{}, Config{})
	base := p.newReviewer
	p.newReviewer = func(role agent.Role) Reviewer {
		if role.Name == agent.PerformanceAgent {
			return funcReviewer{name: role.Name, review: func(context.Context, string, domain.Results) domain.Finding {
				panic("metrics exploded")
			}}
		}
		return base(role)
	}

	run := p.ReviewAll(context.Background(), "x := 1")
	assertComplete(t, run)

	perf, _ := run.Results.Get(agent.PerformanceAgent)
	if perf.Severity != domain.SeverityError || perf.Issues[0].String() != "Agent error: metrics exploded" {
		t.Errorf("performance finding = %#v", perf)
	}
	for _, name := range []string{agent.SecurityAgent, agent.StyleAgent, agent.DocumentationAgent} {
		if f, _ := run.Results.Get(name); f.Severity != domain.SeverityLow {
			t.Errorf("%s severity = %s, want LOW", name, f.Severity)
		}
	}
	if run.Outcomes[2].Status != domain.OutcomeFaulted {
		t.Errorf("outcome = %s, want faulted", run.Outcomes[2].Status)
	}
}

func TestPipeline_AgentTimeout(t *testing.T) {
	p := newTestPipeline(t, &promptLog{}, Config{AgentTimeout: 50 * time.Millisecond})
	base := p.newReviewer
	p.newReviewer = func(role agent.Role) Reviewer {
		if role.Name == agent.StyleAgent {
			return funcReviewer{name: role.Name, review: func(ctx context.Context, _ string, _ domain.Results) domain.Finding {
				<-ctx.Done()
				time.Sleep(10 * time.Millisecond)
				return domain.ErrorFinding("too late")
			}}
		}
		return base(role)
	}

	run := p.ReviewAll(context.Background(), "x := 1")
	assertComplete(t, run)

	style, _ := run.Results.Get(agent.StyleAgent)
	if got := style.Issues[0].String(); got != "Agent timed out after 50ms" {
		t.Errorf("style issue = %q", got)
	}
	if run.Outcomes[1].Status != domain.OutcomeTimedOut {
		t.Errorf("outcome = %s, want timed_out", run.Outcomes[1].Status)
	}
	if f, _ := run.Results.Get(agent.DocumentationAgent); f.Severity != domain.SeverityLow {
		t.Error("agents after a timeout must still run")
	}
}

func TestPipeline_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gen := &promptLog{}
	run := newTestPipeline(t, gen, Config{}).ReviewAll(ctx, "x := 1")
	assertComplete(t, run)

	for _, name := range run.Results.Names() {
		f, _ := run.Results.Get(name)
		if f.Issues[0].String() != "Agent cancelled: context canceled" {
			t.Errorf("%s issue = %q", name, f.Issues[0])
		}
	}
	if len(gen.prompts) != 0 {
		t.Errorf("no agent should call the model after cancellation, got %d calls", len(gen.prompts))
	}
}

func TestPipeline_SnapshotIsolation(t *testing.T) {
	p := newTestPipeline(t, &promptLog{}, Config{})
	p.newReviewer = func(role agent.Role) Reviewer {
		return funcReviewer{name: role.Name, review: func(_ context.Context, _ string, prior domain.Results) domain.Finding {
			// Tamper with the view of earlier findings.
			prior.Set("Intruder", domain.ErrorFinding("x"))
			for _, name := range prior.Names() {
				if f, ok := prior.Get(name); ok && len(f.Issues) > 0 {
					f.Issues[0] = domain.TextItem("tampered")
				}
			}
			return domain.Finding{
				Severity:        domain.SeverityLow,
				Issues:          []domain.Item{domain.TextItem("original")},
				Recommendations: []domain.Item{},
			}
		}}
	}

	run := p.ReviewAll(context.Background(), "x := 1")
	assertComplete(t, run)
	for _, name := range run.Results.Names() {
		f, _ := run.Results.Get(name)
		if f.Issues[0].String() != "original" {
			t.Errorf("%s was modified through a snapshot: %v", name, f.Issues)
		}
	}
}

func TestPipeline_MalformedInputAnnotated(t *testing.T) {
	gen := &promptLog{}
	run := newTestPipeline(t, gen, Config{}).ReviewAll(context.Background(), "func f( {")
	assertComplete(t, run)

	if !strings.HasPrefix(run.Input, "// Invalid Go code\nfunc f( {\n// Error: ") {
		t.Errorf("Input = %q", run.Input)
	}
	if !strings.Contains(gen.prompts[0], "// Invalid Go code") {
		t.Error("agents should receive the annotated code")
	}
}

func TestBuildStats(t *testing.T) {
	run := domain.ReviewRun{
		Duration: 5 * time.Second,
		Outcomes: []domain.AgentOutcome{
			{Name: "A", Status: domain.OutcomeOK, Duration: time.Second},
			{Name: "B", Status: domain.OutcomeError, Duration: 2 * time.Second},
			{Name: "C", Status: domain.OutcomeTimedOut},
			{Name: "D", Status: domain.OutcomeFaulted},
			{Name: "E", Status: domain.OutcomeCancelled},
		},
	}

	stats := BuildStats(run)
	if stats.TotalAgents != 5 || stats.SuccessfulAgents != 1 {
		t.Errorf("total/successful = %d/%d", stats.TotalAgents, stats.SuccessfulAgents)
	}
	if !slices.Equal(stats.ErroredAgents, []string{"B"}) ||
		!slices.Equal(stats.TimedOutAgents, []string{"C"}) ||
		!slices.Equal(stats.FaultedAgents, []string{"D"}) ||
		!slices.Equal(stats.CancelledAgents, []string{"E"}) {
		t.Errorf("stats = %+v", stats)
	}
	if stats.AgentDurations["B"] != 2*time.Second || stats.WallClockDuration != 5*time.Second {
		t.Errorf("durations = %v / %v", stats.AgentDurations, stats.WallClockDuration)
	}
	if stats.AllFailed() {
		t.Error("AllFailed() = true with one success")
	}
}

// Package integration provides end-to-end tests for the crew binary using mock provider CLIs.
//
// The binary is built once per test environment and run against shell
// scripts named claude, codex and gemini placed first on PATH. Each mock
// discards the prompt on stdin and prints a canned answer in the envelope
// its real counterpart uses:
//   - claude: JSON wrapper with result field (--output-format json)
//   - codex: raw text
//   - gemini: JSON wrapper with response field (-o json)
package integration

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// testEnv holds paths and state for integration test execution.
type testEnv struct {
	crewBin  string
	mockDir  string
	workDir  string
	origPath string
}

// setupTestEnv builds the crew binary and prepares an empty working directory.
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	rootDir := findRepoRoot(t)
	crewBin := filepath.Join(t.TempDir(), "crew")
	build := exec.Command("go", "build", "-o", crewBin, "./cmd/crew")
	build.Dir = rootDir
	if out, err := build.CombinedOutput(); err != nil {
		t.Fatalf("failed to build crew: %v\n%s", err, out)
	}

	mockDir := filepath.Join(t.TempDir(), "mocks")
	if err := os.MkdirAll(mockDir, 0755); err != nil {
		t.Fatal(err)
	}

	return &testEnv{
		crewBin:  crewBin,
		mockDir:  mockDir,
		workDir:  t.TempDir(),
		origPath: os.Getenv("PATH"),
	}
}

// environ returns the process environment with the mock directory first on
// PATH and every CREW_ variable and provider key removed.
func (e *testEnv) environ() []string {
	var env []string
	for _, v := range os.Environ() {
		switch {
		case strings.HasPrefix(v, "PATH="),
			strings.HasPrefix(v, "CREW_"),
			strings.HasPrefix(v, "GOOGLE_API_KEY="),
			strings.HasPrefix(v, "GEMINI_API_KEY="),
			strings.HasPrefix(v, "OPENAI_API_KEY="):
			continue
		}
		env = append(env, v)
	}
	return append(env, "PATH="+e.mockDir+":"+e.origPath, "CREW_CACHE_BACKEND=none")
}

// run executes crew with the given args and returns stdout, stderr, and exit code.
func (e *testEnv) run(stdin string, args ...string) (stdout, stderr string, exitCode int) {
	cmd := exec.Command(e.crewBin, args...)
	cmd.Dir = e.workDir
	cmd.Env = e.environ()
	cmd.Stdin = strings.NewReader(stdin)

	var outBuf, errBuf strings.Builder
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	err := cmd.Run()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	return outBuf.String(), errBuf.String(), exitCode
}

// findRepoRoot walks up to find the go.mod file.
func findRepoRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find repo root (no go.mod)")
		}
		dir = parent
	}
}

// --- Mock responses ---

const highFinding = `{"severity":"HIGH","issues":["SQL query built by string concatenation"],"recommendations":["Use parameterized queries"]}`

const lowFinding = `{"severity":"LOW","issues":[],"recommendations":["Add a docstring"]}`

const sampleCode = `def get_user(db, name):
    return db.execute("SELECT * FROM users WHERE name = '" + name + "'")
`

func claudeEnvelope(answer string) string {
	data, _ := json.Marshal(map[string]string{"type": "result", "result": answer})
	return string(data)
}

func geminiEnvelope(answer string) string {
	data, _ := json.Marshal(map[string]string{"response": answer})
	return string(data)
}

// --- Mock CLI script generators ---

// writeMockCLI writes a script that drains stdin and prints output.
func writeMockCLI(t *testing.T, dir, name, output string) {
	t.Helper()
	script := fmt.Sprintf(`#!/bin/sh
cat /dev/stdin >/dev/null 2>&1
cat <<'RESPONSE_EOF'
%s
RESPONSE_EOF
`, output)
	writeMock(t, dir, name, script)
}

// writeFailingCLI writes a script that exits with code and prints stderr.
func writeFailingCLI(t *testing.T, dir, name string, code int, stderr string) {
	t.Helper()
	script := fmt.Sprintf(`#!/bin/sh
cat /dev/stdin >/dev/null 2>&1
echo '%s' >&2
exit %d
`, stderr, code)
	writeMock(t, dir, name, script)
}

func writeMock(t *testing.T, dir, name, script string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatalf("failed to write mock %s: %v", name, err)
	}
}

// --- Tests ---

func TestVersion(t *testing.T) {
	env := setupTestEnv(t)
	stdout, _, code := env.run("", "--version")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.HasPrefix(stdout, "crew ") {
		t.Errorf("unexpected version output: %q", stdout)
	}
}

func TestHelp(t *testing.T) {
	env := setupTestEnv(t)
	stdout, stderr, code := env.run("", "--help")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	out := stdout + stderr
	for _, want := range []string{"Provider Settings:", "Agent Settings:", "--agents", "serve", "config"} {
		if !strings.Contains(out, want) {
			t.Errorf("help output missing %q", want)
		}
	}
}

func TestReviewProviders(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		cli      string
		output   string
		wantExit int
	}{
		{"claude high", "claude-cli", "claude", claudeEnvelope(highFinding), 1},
		{"claude low", "claude-cli", "claude", claudeEnvelope(lowFinding), 0},
		{"codex fenced", "codex-cli", "codex", "```json\n" + lowFinding + "\n```", 0},
		{"gemini high", "gemini-cli", "gemini", geminiEnvelope(highFinding), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestEnv(t)
			writeMockCLI(t, env.mockDir, tt.cli, tt.output)

			stdout, stderr, code := env.run("", "--provider", tt.provider, "--code", sampleCode)
			if code != tt.wantExit {
				t.Fatalf("expected exit %d, got %d\nstdout: %s\nstderr: %s", tt.wantExit, code, stdout, stderr)
			}
			if !strings.HasPrefix(stdout, "## Code Review Results") {
				t.Errorf("expected markdown report, got:\n%s", stdout)
			}
			for _, agent := range []string{"SecurityAgent", "StyleAgent", "PerformanceAgent", "DocumentationAgent"} {
				if !strings.Contains(stdout, "### "+agent) {
					t.Errorf("report missing section for %s", agent)
				}
			}
			if !strings.Contains(stdout, "Complexity Metrics:") {
				t.Error("performance section should carry complexity metrics")
			}
		})
	}
}

func TestReviewJSONFormat(t *testing.T) {
	env := setupTestEnv(t)
	writeMockCLI(t, env.mockDir, "claude", claudeEnvelope(highFinding))

	stdout, stderr, code := env.run(sampleCode, "--provider", "claude-cli", "--format", "json", "--agents", "security,docs", "-q")
	if code != 1 {
		t.Fatalf("expected exit 1, got %d\nstderr: %s", code, stderr)
	}

	var report struct {
		ID       string                     `json:"id"`
		Findings map[string]json.RawMessage `json:"findings"`
		ExitCode int                        `json:"exit_code"`
	}
	if err := json.Unmarshal([]byte(stdout), &report); err != nil {
		t.Fatalf("stdout is not JSON: %v\n%s", err, stdout)
	}
	if report.ID == "" {
		t.Error("expected a run id")
	}
	if len(report.Findings) != 2 {
		t.Errorf("expected 2 findings, got %d", len(report.Findings))
	}
	if report.ExitCode != 1 {
		t.Errorf("expected exit_code 1, got %d", report.ExitCode)
	}
	if strings.Contains(stderr, "Review summary") {
		t.Error("--quiet should suppress the summary")
	}
}

func TestReviewFromFile(t *testing.T) {
	env := setupTestEnv(t)
	writeMockCLI(t, env.mockDir, "claude", claudeEnvelope(lowFinding))

	file := filepath.Join(env.workDir, "app.py")
	if err := os.WriteFile(file, []byte(sampleCode), 0644); err != nil {
		t.Fatal(err)
	}

	_, stderr, code := env.run("", "--provider", "claude-cli", file)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d\nstderr: %s", code, stderr)
	}
	if !strings.Contains(stderr, "Review summary") {
		t.Errorf("expected run summary on stderr, got:\n%s", stderr)
	}
}

func TestReviewAllAgentsFail(t *testing.T) {
	env := setupTestEnv(t)
	writeFailingCLI(t, env.mockDir, "claude", 3, "boom")

	stdout, _, code := env.run("", "--provider", "claude-cli", "--retries", "0", "--code", sampleCode)
	if code != 2 {
		t.Fatalf("expected exit 2 when every agent fails, got %d", code)
	}
	if !strings.Contains(stdout, "Severity: ERROR") {
		t.Errorf("expected ERROR findings in report, got:\n%s", stdout)
	}
}

func TestReviewUnparseableResponse(t *testing.T) {
	env := setupTestEnv(t)
	writeMockCLI(t, env.mockDir, "codex", "I think this code is fine.")

	stdout, _, code := env.run("", "--provider", "codex-cli", "--code", sampleCode)
	if code != 2 {
		t.Fatalf("expected exit 2, got %d", code)
	}
	if !strings.Contains(stdout, "Failed to parse response:") {
		t.Errorf("expected parse failure in report, got:\n%s", stdout)
	}
}

func TestNoCode(t *testing.T) {
	env := setupTestEnv(t)
	writeMockCLI(t, env.mockDir, "claude", claudeEnvelope(lowFinding))

	_, stderr, code := env.run("   \n", "--provider", "claude-cli")
	if code != 2 {
		t.Fatalf("expected exit 2, got %d", code)
	}
	if !strings.Contains(stderr, "no code provided") {
		t.Errorf("expected no-code error, got:\n%s", stderr)
	}
}

func TestMissingAPIKey(t *testing.T) {
	env := setupTestEnv(t)
	_, stderr, code := env.run("", "--code", sampleCode)
	if code != 2 {
		t.Fatalf("expected exit 2, got %d", code)
	}
	if !strings.Contains(stderr, "GOOGLE_API_KEY") {
		t.Errorf("expected API key hint, got:\n%s", stderr)
	}
}

func TestInvalidFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown provider", []string{"--provider", "bard"}, "provider"},
		{"unknown agent", []string{"--provider", "claude-cli", "--agents", "security,linting"}, "unsupported agent"},
		{"bad format", []string{"--provider", "claude-cli", "--format", "xml"}, "format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestEnv(t)
			args := append(tt.args, "--code", sampleCode)
			_, stderr, code := env.run("", args...)
			if code != 2 {
				t.Fatalf("expected exit 2, got %d", code)
			}
			if !strings.Contains(stderr, tt.want) {
				t.Errorf("expected %q in stderr, got:\n%s", tt.want, stderr)
			}
		})
	}
}

func TestConfigCommands(t *testing.T) {
	env := setupTestEnv(t)

	if _, stderr, code := env.run("", "config", "init"); code != 0 {
		t.Fatalf("config init failed (%d): %s", code, stderr)
	}
	if _, err := os.Stat(filepath.Join(env.workDir, ".crew.yaml")); err != nil {
		t.Fatalf("expected .crew.yaml: %v", err)
	}
	if _, _, code := env.run("", "config", "init"); code == 0 {
		t.Error("second config init should fail")
	}

	if err := os.WriteFile(filepath.Join(env.workDir, ".crew.yaml"), []byte("provider: claude-cli\nagents: [security, style]\n"), 0644); err != nil {
		t.Fatal(err)
	}

	stdout, _, code := env.run("", "config", "show")
	if code != 0 {
		t.Fatalf("config show failed with %d", code)
	}
	if !strings.Contains(stdout, "claude-cli") || !strings.Contains(stdout, "SecurityAgent, StyleAgent") {
		t.Errorf("config show did not reflect file:\n%s", stdout)
	}

	if _, stderr, code := env.run("", "config", "validate"); code != 0 {
		t.Errorf("config validate failed (%d): %s", code, stderr)
	}

	if err := os.WriteFile(filepath.Join(env.workDir, ".crew.yaml"), []byte("provider: claude-cli\nretries: -1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, _, code := env.run("", "config", "validate"); code != 2 {
		t.Errorf("expected config validate to fail with 2, got %d", code)
	}
}

func TestConfigFileDrivesReview(t *testing.T) {
	env := setupTestEnv(t)
	writeMockCLI(t, env.mockDir, "gemini", geminiEnvelope(lowFinding))

	cfg := "provider: gemini-cli\nagents: [style]\n"
	if err := os.WriteFile(filepath.Join(env.workDir, ".crew.yaml"), []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}

	stdout, stderr, code := env.run("", "--code", sampleCode)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d\nstderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "### StyleAgent") || strings.Contains(stdout, "### SecurityAgent") {
		t.Errorf("expected only StyleAgent section, got:\n%s", stdout)
	}

	// --no-config falls back to the gemini API provider, which needs a key.
	if _, _, code := env.run("", "--no-config", "--code", sampleCode); code != 2 {
		t.Errorf("expected exit 2 with --no-config, got %d", code)
	}
}

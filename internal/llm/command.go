package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"slices"
	"strings"
	"syscall"
	"time"
)

// CLI provider names.
const (
	ProviderClaudeCLI = "claude-cli"
	ProviderCodexCLI  = "codex-cli"
	ProviderGeminiCLI = "gemini-cli"
)

// cliSpec describes how to drive one coding-assistant CLI in headless mode.
type cliSpec struct {
	name      string
	command   string
	args      []string
	modelFlag string
	extract   func(stdout []byte) (string, error)
	authCodes []int
	authHint  string
}

var cliSpecs = map[string]cliSpec{
	ProviderClaudeCLI: {
		name:      "claude",
		command:   "claude",
		args:      []string{"--print", "--output-format", "json"},
		modelFlag: "--model",
		extract:   extractField("result"),
		authHint:  "Run 'claude login' or check your API key configuration.",
	},
	ProviderCodexCLI: {
		name:      "codex",
		command:   "codex",
		args:      []string{"exec", "--color", "never"},
		modelFlag: "--model",
		extract:   extractRaw,
		authHint:  "Set OPENAI_API_KEY or run 'codex auth' to authenticate.",
	},
	ProviderGeminiCLI: {
		name:      "gemini",
		command:   "gemini",
		args:      []string{"-o", "json"},
		modelFlag: "-m",
		extract:   extractField("response"),
		authCodes: []int{41},
		authHint:  "Set GEMINI_API_KEY or run 'gemini auth login' to authenticate.",
	},
}

// authStderrPatterns are substrings (checked case-insensitively) that mark
// an authentication failure in CLI stderr.
var authStderrPatterns = []string{
	"api_key",
	"unauthorized",
	"401",
	"authentication required",
	"invalid credentials",
}

// Command generates text by piping the prompt to a locally installed CLI.
// Generation parameters are not forwarded; the CLIs use their own defaults.
type Command struct {
	spec  cliSpec
	path  string
	model string
}

// NewCommand creates a CLI-backed generator for provider (claude-cli,
// codex-cli or gemini-cli). An empty model uses the CLI's default.
func NewCommand(provider, model string) (*Command, error) {
	spec, ok := cliSpecs[provider]
	if !ok {
		return nil, fmt.Errorf("unknown CLI provider %q", provider)
	}
	return &Command{spec: spec, path: spec.command, model: model}, nil
}

// Name returns the CLI executable name.
func (c *Command) Name() string {
	return c.spec.name
}

func (c *Command) commandArgs() []string {
	args := slices.Clone(c.spec.args)
	if c.model != "" {
		args = append(args, c.spec.modelFlag, c.model)
	}
	// Read the prompt from stdin.
	return append(args, "-")
}

// Generate runs the CLI with the prompt on stdin and returns its answer.
func (c *Command) Generate(ctx context.Context, req Request) (string, error) {
	// #nosec G204 - the executable is one of the fixed CLI names above.
	cmd := exec.CommandContext(ctx, c.path, c.commandArgs()...)
	cmd.Stdin = strings.NewReader(req.Prompt)

	// Own process group so cancellation takes down any children the CLI spawned.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code := exitErr.ExitCode()
			if c.isAuthFailure(code, stderr.String()) {
				return "", fmt.Errorf("%s: %w. %s", c.spec.name, ErrUnauthorized, c.spec.authHint)
			}
			return "", fmt.Errorf("%s exited with code %d: %s", c.spec.name, code, strings.TrimSpace(stderr.String()))
		}
		return "", fmt.Errorf("failed to start %s: %w", c.spec.name, err)
	}

	text, err := c.spec.extract(stdout.Bytes())
	if err != nil {
		return "", fmt.Errorf("%s: %w: %v", c.spec.name, ErrInvalidResponse, err)
	}
	return text, nil
}

// isAuthFailure reports whether the exit code and stderr indicate missing
// or rejected credentials. Exit code 0 never counts.
func (c *Command) isAuthFailure(exitCode int, stderr string) bool {
	if exitCode == 0 {
		return false
	}
	if slices.Contains(c.spec.authCodes, exitCode) {
		return true
	}
	lower := strings.ToLower(stderr)
	for _, pattern := range authStderrPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// extractField returns an extractor for CLIs that wrap the model's answer
// in a JSON envelope under key.
func extractField(key string) func([]byte) (string, error) {
	return func(stdout []byte) (string, error) {
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(bytes.TrimSpace(stdout), &envelope); err != nil {
			return "", fmt.Errorf("parse CLI output: %w", err)
		}
		raw, ok := envelope[key]
		if !ok {
			return "", fmt.Errorf("CLI output has no %q field", key)
		}
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return "", fmt.Errorf("%q field is not a string: %w", key, err)
		}
		return StripCodeFence(text), nil
	}
}

func extractRaw(stdout []byte) (string, error) {
	text := strings.TrimSpace(string(stdout))
	if text == "" {
		return "", errors.New("empty output")
	}
	return StripCodeFence(text), nil
}

// StripCodeFence removes a surrounding markdown code fence (``` or ```json).
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:]
	} else {
		return s
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

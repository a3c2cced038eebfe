// Package main provides the CLI entry point for crew, the multi-agent code reviewer.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/richhaase/code-review-crew/internal/domain"
	"github.com/richhaase/code-review-crew/internal/runner"
	"github.com/richhaase/code-review-crew/internal/terminal"
)

var (
	codeArg    string
	provider   string
	model      string
	baseURL    string
	timeout    time.Duration
	retries    int
	agentNames string
	format     string
	verbose    bool
	quiet      bool
	noConfig   bool
	configPath string
)

// Output formats for the review report.
const (
	formatMarkdown = "markdown"
	formatJSON     = "json"
)

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		// Check if this is an exit code wrapper (not a real error)
		if exitErr, ok := err.(exitCodeError); ok {
			return exitErr.code.Int()
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return domain.ExitError.Int()
	}
	return 0
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "crew [file]",
		Short: "Multi-agent code reviewer - security, style, performance and documentation reviews",
		Long: `Run a crew of LLM review agents over a code snippet, one after another.
Each agent sees the findings of the agents before it.

Code is read from the file argument, --code, or stdin.

Exit codes:
  0 - No HIGH severity findings
  1 - At least one HIGH severity finding
  2 - Error (or every agent failed)
  130 - Interrupted`,
		Args:          cobra.MaximumNArgs(1),
		RunE:          runReview,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       buildVersionString(),
	}

	rootCmd.SetVersionTemplate("{{.Version}}\n")

	// Shared flags (defaults are resolved via config.Resolve with precedence: flag > env > config > default)
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&provider, "provider", "p", "",
		"LLM provider: gemini, openai, claude-cli, codex-cli, gemini-cli (default: gemini, env: CREW_PROVIDER)")
	pf.StringVarP(&model, "model", "m", "",
		"Model name (default depends on provider, env: CREW_MODEL)")
	pf.StringVar(&baseURL, "base-url", "",
		"API root for gemini or an OpenAI-compatible server (env: CREW_BASE_URL)")
	pf.DurationVarP(&timeout, "timeout", "t", 0,
		"Timeout per agent (default: 2m, env: CREW_TIMEOUT)")
	pf.IntVarP(&retries, "retries", "R", 0,
		"Retries for transient provider errors (default: 2, env: CREW_RETRIES)")
	pf.StringVarP(&agentNames, "agents", "a", "",
		"Agents to run, in order (comma-separated): security, style, performance, documentation (env: CREW_AGENTS)")
	pf.BoolVarP(&verbose, "verbose", "v", false,
		"Print debug output")
	pf.BoolVar(&noConfig, "no-config", false,
		"Skip loading .crew.yaml config file")
	pf.StringVar(&configPath, "config", "",
		"Path to config file (default: ./.crew.yaml)")

	rootCmd.Flags().StringVarP(&codeArg, "code", "c", "",
		"Code to review (instead of a file or stdin)")
	rootCmd.Flags().StringVarP(&format, "format", "f", formatMarkdown,
		"Report format on stdout: markdown, json")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false,
		"Suppress the run summary on stderr")

	setGroupedUsage(rootCmd)

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func runReview(cmd *cobra.Command, args []string) error {
	if !terminal.IsStderrTTY() {
		terminal.DisableColors()
	}

	logger := terminal.NewVerboseLogger(verbose)

	if format != formatMarkdown && format != formatJSON {
		logger.Logf(terminal.StyleError, "--format must be %s or %s, got %q", formatMarkdown, formatJSON, format)
		return exitCode(domain.ExitError)
	}

	resolved, err := loadConfig(cmd, logger)
	if err != nil {
		logger.Logf(terminal.StyleError, "%v", err)
		return exitCode(domain.ExitError)
	}

	code, err := readCode(args, codeArg, os.Stdin, terminal.IsStdinTTY(), os.Stderr)
	if err != nil {
		logger.Logf(terminal.StyleError, "%v", err)
		return exitCode(domain.ExitError)
	}

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr)
			logger.Log("Interrupted, shutting down...", terminal.StyleWarning)
			cancel()
		case <-ctx.Done():
		}
	}()

	a, err := newApp(ctx, resolved, logger, terminal.IsStderrTTY() && !quiet)
	if err != nil {
		logger.Logf(terminal.StyleError, "%v", err)
		return exitCode(domain.ExitError)
	}
	defer a.Close()

	logger.Logf(terminal.StyleInfo, "Starting review %s(%s, %d agents)%s",
		terminal.Color(terminal.Dim), providerLabel(resolved.Provider, resolved.Model), len(resolved.Agents), terminal.Color(terminal.Reset))

	result, err := a.service.Review(ctx, code)
	if err != nil {
		logger.Logf(terminal.StyleError, "%v", err)
		return exitCode(domain.ExitError)
	}

	if ctx.Err() != nil {
		return exitCode(domain.ExitInterrupted)
	}

	switch format {
	case formatJSON:
		fmt.Fprint(os.Stdout, result.JSON)
	default:
		fmt.Fprint(os.Stdout, result.Markdown)
	}

	stats := runner.BuildStats(result.Run)
	if !quiet {
		fmt.Fprintln(os.Stderr, runner.RenderSummary(result.Run.Results, stats))
	}
	if stats.AllFailed() {
		logger.Log("All agents failed", terminal.StyleError)
	}

	return exitCode(domain.ExitCodeFor(result.Run.Results))
}

func providerLabel(provider, model string) string {
	if model == "" {
		return provider
	}
	return provider + "/" + model
}

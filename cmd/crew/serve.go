package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/richhaase/code-review-crew/internal/domain"
	"github.com/richhaase/code-review-crew/internal/httpserver"
	"github.com/richhaase/code-review-crew/internal/terminal"
)

var serveAddr string

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the review API over HTTP",
		Long: `Start an HTTP server exposing the review crew.

Endpoints:
  POST /review        {"code": "..."} -> {"id", "results", "findings"}
  GET  /reviews       stored reviews (requires history)
  GET  /reviews/{id}  one stored review (requires history)
  GET  /health`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	cmd.Flags().StringVar(&serveAddr, "addr", "",
		"Listen address (default: :8080, env: CREW_ADDR)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	if !terminal.IsStderrTTY() {
		terminal.DisableColors()
	}
	logger := terminal.NewVerboseLogger(verbose)

	resolved, err := loadConfig(cmd, logger)
	if err != nil {
		logger.Logf(terminal.StyleError, "%v", err)
		return exitCode(domain.ExitError)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, resolved, logger, false)
	if err != nil {
		logger.Logf(terminal.StyleError, "%v", err)
		return exitCode(domain.ExitError)
	}
	defer a.Close()

	handler, stopLimiter := httpserver.NewRouter(a.service, logger, httpserver.Options{
		CORSOrigins: resolved.Server.CORSOrigins,
		RateLimit:   resolved.Server.RateLimit,
		Burst:       resolved.Server.Burst,
	})
	defer stopLimiter()

	logger.Logf(terminal.StyleInfo, "Review crew ready %s(%s, agents: %v)%s",
		terminal.Color(terminal.Dim), providerLabel(resolved.Provider, resolved.Model), a.pipeline.RoleNames(), terminal.Color(terminal.Reset))

	if err := httpserver.Serve(ctx, resolved.Server.Addr, handler, logger); err != nil {
		logger.Logf(terminal.StyleError, "%v", err)
		return exitCode(domain.ExitError)
	}
	return nil
}

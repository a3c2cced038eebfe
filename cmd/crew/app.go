package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/richhaase/code-review-crew/internal/agent"
	"github.com/richhaase/code-review-crew/internal/archive"
	"github.com/richhaase/code-review-crew/internal/cache"
	"github.com/richhaase/code-review-crew/internal/config"
	"github.com/richhaase/code-review-crew/internal/history"
	"github.com/richhaase/code-review-crew/internal/llm"
	"github.com/richhaase/code-review-crew/internal/runner"
	"github.com/richhaase/code-review-crew/internal/service"
	"github.com/richhaase/code-review-crew/internal/terminal"
)

// loadConfig loads .env, the config file and CREW_* variables, and applies
// explicitly set flags on top.
func loadConfig(cmd *cobra.Command, logger *terminal.Logger) (config.ResolvedConfig, error) {
	if found, err := config.LoadDotEnv(config.DotEnvFileName); err != nil {
		logger.Logf(terminal.StyleWarning, "Warning: %v", err)
	} else if found {
		logger.Debugf("Loaded %s", config.DotEnvFileName)
	}

	var cfg *config.Config
	if !noConfig {
		result, err := loadConfigFile(configPath)
		if err != nil {
			return config.ResolvedConfig{}, fmt.Errorf("config error: %w", err)
		}
		cfg = result.Config
		for _, warning := range result.Warnings {
			logger.Logf(terminal.StyleWarning, "Warning: %s", warning)
		}
		if result.Path != "" {
			logger.Debugf("Using config %s", result.Path)
		}
	}

	envState, envWarnings := config.LoadEnvState()
	for _, warning := range envWarnings {
		logger.Logf(terminal.StyleWarning, "Warning: %s (ignored)", warning)
	}

	flags := cmd.Flags()
	flagState := config.FlagState{
		ProviderSet: flags.Changed("provider"),
		ModelSet:    flags.Changed("model"),
		BaseURLSet:  flags.Changed("base-url"),
		TimeoutSet:  flags.Changed("timeout"),
		RetriesSet:  flags.Changed("retries"),
		AgentsSet:   flags.Changed("agents"),
		AddrSet:     flags.Lookup("addr") != nil && flags.Changed("addr"),
	}
	flagValues := config.ResolvedConfig{
		Provider: provider,
		Model:    model,
		BaseURL:  baseURL,
		Timeout:  timeout,
		Retries:  retries,
		Agents:   agent.ParseRoleNames(agentNames),
		Server:   config.ResolvedServer{Addr: serveAddr},
	}

	resolved := config.Resolve(cfg, envState, flagState, flagValues)
	if errs := resolved.ValidateAll(); len(errs) > 0 {
		return resolved, errors.New(errs[0])
	}
	if err := resolved.RequireAPIKey(); err != nil {
		return resolved, err
	}
	return resolved, nil
}

// loadConfigFile reads path, or .crew.yaml in the working directory when path is empty.
// An explicitly named file must exist.
func loadConfigFile(path string) (*config.LoadResult, error) {
	if path == "" {
		return config.LoadWithWarnings()
	}
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return config.LoadFromPathWithWarnings(path)
}

// app holds the wired review service and the resources to release.
type app struct {
	pipeline *runner.Pipeline
	service  *service.Service
	closers  []func() error
}

// newApp builds the generator, pipeline and optional cache, history and archive.
// Optional backends that fail to connect are reported and skipped.
func newApp(ctx context.Context, resolved config.ResolvedConfig, logger *terminal.Logger, progress bool) (*app, error) {
	roles, err := agent.Roles(resolved.Agents)
	if err != nil {
		return nil, err
	}

	gen, err := llm.New(llm.Settings{
		Provider: resolved.Provider,
		Model:    resolved.Model,
		APIKey:   resolved.APIKey,
		BaseURL:  resolved.BaseURL,
		Retries:  resolved.Retries,
		Timeout:  resolved.Timeout,
	})
	if err != nil {
		return nil, err
	}

	pipeline, err := runner.New(runner.Config{
		AgentTimeout: resolved.Timeout,
		Verbose:      logger.Verbose(),
		Progress:     progress,
	}, roles, gen, logger)
	if err != nil {
		return nil, err
	}

	a := &app{pipeline: pipeline}
	var opts []service.Option

	c, closeCache, err := cache.New(ctx, cache.Options{
		Backend:  resolved.Cache.Backend,
		Dir:      resolved.Cache.Dir,
		RedisURL: resolved.Cache.RedisURL,
		TTL:      resolved.Cache.TTL,
	})
	if err != nil {
		logger.Logf(terminal.StyleWarning, "Cache disabled: %v", err)
	} else {
		a.closers = append(a.closers, closeCache)
		opts = append(opts, service.WithCache(c, resolved.Provider, resolved.Model))
	}

	if resolved.History.Enabled() {
		repo, closeDB, err := history.Connect(ctx, resolved.History.Driver, resolved.History.DSN)
		if err != nil {
			logger.Logf(terminal.StyleWarning, "History disabled: %v", err)
		} else {
			a.closers = append(a.closers, closeDB)
			opts = append(opts, service.WithHistory(repo))
			logger.Debugf("Saving reviews to %s", resolved.History.Driver)
		}
	}

	if resolved.Archive.Enabled() {
		store, err := archive.New(ctx, archive.Options{
			Endpoint:  resolved.Archive.Endpoint,
			Region:    resolved.Archive.Region,
			Bucket:    resolved.Archive.Bucket,
			AccessKey: resolved.Archive.AccessKey,
			SecretKey: resolved.Archive.SecretKey,
			UseSSL:    resolved.Archive.UseSSL,
		})
		if err != nil {
			logger.Logf(terminal.StyleWarning, "Archive disabled: %v", err)
		} else {
			opts = append(opts, service.WithArchive(store))
			logger.Debugf("Archiving reports to %s/%s", resolved.Archive.Endpoint, resolved.Archive.Bucket)
		}
	}

	a.service = service.New(pipeline, logger, opts...)
	return a, nil
}

// Close releases backend connections.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

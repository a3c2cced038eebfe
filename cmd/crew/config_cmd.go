package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/richhaase/code-review-crew/internal/config"
	"github.com/richhaase/code-review-crew/internal/terminal"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage crew configuration",
		Long:  "View, initialize, and validate crew configuration files and environment variables.",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigValidateCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display resolved configuration",
		Long:  "Show the fully resolved configuration from defaults, config file, and environment variables.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.LoadDotEnv(config.DotEnvFileName); err != nil {
				return err
			}
			result, err := loadConfigFile(configPath)
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}

			envState, _ := config.LoadEnvState()
			resolved := config.Resolve(result.Config, envState, config.FlagState{}, config.ResolvedConfig{})

			out := cmd.OutOrStdout()
			source := result.Path
			if source == "" {
				source = "(none)"
			}
			fmt.Fprintf(out, "Resolved configuration (file: %s):\n\n", source)
			fmt.Fprintf(out, "  %-22s %s\n", "provider:", resolved.Provider)
			fmt.Fprintf(out, "  %-22s %s\n", "model:", orDefault(resolved.Model, "(provider default)"))
			fmt.Fprintf(out, "  %-22s %s\n", "base_url:", orDefault(resolved.BaseURL, "(provider default)"))
			fmt.Fprintf(out, "  %-22s %s\n", "api_key:", mask(resolved.APIKey))
			fmt.Fprintf(out, "  %-22s %s\n", "timeout:", resolved.Timeout)
			fmt.Fprintf(out, "  %-22s %d\n", "retries:", resolved.Retries)
			fmt.Fprintf(out, "  %-22s %s\n", "agents:", strings.Join(resolved.Agents, ", "))
			fmt.Fprintf(out, "  %-22s %s\n", "server.addr:", resolved.Server.Addr)
			fmt.Fprintf(out, "  %-22s %s\n", "server.cors_origins:", strings.Join(resolved.Server.CORSOrigins, ", "))
			fmt.Fprintf(out, "  %-22s %g/s (burst %d)\n", "server.rate_limit:", resolved.Server.RateLimit, resolved.Server.Burst)
			if resolved.History.Enabled() {
				fmt.Fprintf(out, "  %-22s %s\n", "history:", resolved.History.Driver)
			} else {
				fmt.Fprintf(out, "  %-22s %s\n", "history:", "(disabled)")
			}
			if resolved.Archive.Enabled() {
				fmt.Fprintf(out, "  %-22s %s/%s\n", "archive:", resolved.Archive.Endpoint, resolved.Archive.Bucket)
			} else {
				fmt.Fprintf(out, "  %-22s %s\n", "archive:", "(disabled)")
			}
			fmt.Fprintf(out, "  %-22s %s (ttl %s)\n", "cache:", resolved.Cache.Backend, resolved.Cache.TTL)

			return nil
		},
	}
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// mask hides all but the last four characters of a secret.
func mask(secret string) string {
	switch {
	case secret == "":
		return "(not set)"
	case len(secret) <= 4:
		return "****"
	default:
		return "****" + secret[len(secret)-4:]
	}
}

func newConfigInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Generate a starter .crew.yaml file",
		Long:  "Create a commented .crew.yaml configuration file in the current directory.",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.ConfigFileName
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists; remove it first or edit it directly", path)
			}

			if err := os.WriteFile(path, []byte(config.Starter), 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created %s with default settings (commented out).\n", path)
			return nil
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and environment variables",
		Long:  "Load and validate the config file and environment variables, reporting any warnings or errors.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !terminal.IsStderrTTY() {
				terminal.DisableColors()
			}
			logger := terminal.NewLogger()
			var errs []string
			var warnings []string

			if _, err := config.LoadDotEnv(config.DotEnvFileName); err != nil {
				errs = append(errs, err.Error())
			}

			// Load and validate config file (don't early-return so env var issues are also reported)
			cfg := &config.Config{}
			result, err := loadConfigFile(configPath)
			if err != nil {
				errs = append(errs, fmt.Sprintf("config file: %v", err))
			} else {
				cfg = result.Config
				warnings = append(warnings, result.Warnings...)
			}

			// Unparseable env values are ignored at runtime but reported as errors here.
			envState, envWarnings := config.LoadEnvState()
			errs = append(errs, envWarnings...)

			resolved := config.Resolve(cfg, envState, config.FlagState{}, config.ResolvedConfig{})
			errs = append(errs, resolved.ValidateAll()...)
			if err := resolved.RequireAPIKey(); err != nil {
				errs = append(errs, err.Error())
			}

			for _, w := range warnings {
				logger.Logf(terminal.StyleWarning, "Config: %s", w)
			}
			for _, e := range errs {
				logger.Logf(terminal.StyleError, "%s", e)
			}

			if len(errs) > 0 {
				return fmt.Errorf("configuration has %d error(s)", len(errs))
			}

			if len(warnings) > 0 {
				logger.Log("Configuration is valid (with warnings).", terminal.StyleSuccess)
			} else {
				logger.Log("Configuration is valid.", terminal.StyleSuccess)
			}
			return nil
		},
	}
}

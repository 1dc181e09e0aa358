// Package main provides the interactive expense tracker shell.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"expensetracker/internal/backend"
	"expensetracker/internal/cli"
	"expensetracker/internal/config"
	"expensetracker/internal/log"
	"expensetracker/internal/tracker"
)

var (
	flagBaseURL  string
	flagBackend  string
	flagProfile  string
	flagLogLevel string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "expense-shell",
		Short:         "Interactive client for the expense tracker service",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runShell,
	}

	rootCmd.Flags().StringVar(&flagBaseURL, "base-url", "", "service base URL (overrides EXPENSE_API_BASE_URL)")
	rootCmd.Flags().StringVar(&flagBackend, "backend", "", "remote backend: http or memory")
	rootCmd.Flags().StringVar(&flagProfile, "profile", "", "path to a TOML profile")
	rootCmd.Flags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn or error")

	return rootCmd
}

func runShell(cmd *cobra.Command, _ []string) error {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig(flagProfile, func(c *config.Config) { applyFlags(cmd, c) })
	if err != nil {
		return err
	}

	logger := cli.SetupLogger(cfg.LogLevel, cmd.ErrOrStderr())
	ctx, stop := cli.SignalContext(context.Background(), logger)
	defer stop()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return fmt.Errorf("create backend: %w", err)
	}
	if res.Cleanup != nil {
		defer func() {
			if err := res.Cleanup(); err != nil {
				logger.Warn("Backend cleanup failed", log.FieldError, err)
			}
		}()
	}

	tr := tracker.New(res.Service, logger, tracker.WithStrictDelete(cfg.StrictDelete))
	sh := newShell(tr, cmd.InOrStdin(), cmd.OutOrStdout())
	sh.defaultUser = cfg.Username
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		sh.readSecret = func() (string, error) {
			b, err := term.ReadPassword(int(f.Fd()))
			fmt.Fprintln(sh.out)
			return string(b), err
		}
	}

	logger.Info("Shell started", "backend", bcfg.Type.String(), "profile", cfg.ProfilePath)
	return sh.run(ctx)
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("base-url") {
		cfg.BaseURL = flagBaseURL
	}
	if cmd.Flags().Changed("backend") {
		cfg.Backend = flagBackend
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
}

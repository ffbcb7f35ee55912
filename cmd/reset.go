// File: cmd/reset.go
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/opsweld/rootreset/internal/browser"
	"github.com/opsweld/rootreset/internal/config"
	"github.com/opsweld/rootreset/internal/mail"
	"github.com/opsweld/rootreset/internal/observability"
	"github.com/opsweld/rootreset/internal/orchestrator"
	"github.com/opsweld/rootreset/internal/secrets"
)

// newResetCmd creates and configures the `reset` command.
func newResetCmd() *cobra.Command {
	var (
		accountID   string
		accountName string
		email       string
		secretID    string
		skipEmail   bool
	)

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Resets one account's root password through the forgot-password flow",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their viper keys so command-line values override
			// the config file and environment with the right precedence.
			if err := viper.BindPFlag("browser.headless", cmd.Flags().Lookup("headless")); err != nil {
				return err
			}
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}

			req := orchestrator.Request{
				AccountID:   accountID,
				AccountName: accountName,
				Email:       email,
				SecretID:    secretID,
				UseEmail:    !skipEmail,
			}
			if req.UseEmail {
				if err := cfg.ValidateEmail(); err != nil {
					return fmt.Errorf("%w (use --skip-email to trigger the reset without polling)", err)
				}
			}

			store, cleanup, err := buildSecretStore(cmd, cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			retriever := mail.NewRetriever(cfg.Email, cfg.Automation.PollBackoff, store, logger)
			factory := browser.NewChromeFactory(cfg.Browser, cfg.Automation, logger)

			orch, err := orchestrator.New(cfg, store, retriever, factory, logger)
			if err != nil {
				return err
			}

			out := orch.Run(ctx, req)
			reportOutcome(out, logger)

			if code := out.ExitCode(); code != 0 {
				return &exitError{code: code, msg: outcomeMessage(out)}
			}
			return nil
		},
	}

	resetCmd.Flags().StringVar(&accountID, "account-id", "", "12-digit account ID (required)")
	resetCmd.Flags().StringVar(&accountName, "account-name", "", "human-readable account name for logs and instructions")
	resetCmd.Flags().StringVar(&email, "email", "", "root user email address (required)")
	resetCmd.Flags().StringVar(&secretID, "secret-id", "", "secret holding the new password (required)")
	resetCmd.Flags().Bool("headless", true, "run the browser headless")
	resetCmd.Flags().BoolVar(&skipEmail, "skip-email", false, "trigger the reset email but leave completion to the operator")

	for _, flag := range []string{"account-id", "email", "secret-id"} {
		if err := resetCmd.MarkFlagRequired(flag); err != nil {
			panic(err)
		}
	}
	return resetCmd
}

// buildSecretStore assembles the configured secret-store backend, wrapped in
// the per-run cache so one run reads each secret once.
func buildSecretStore(cmd *cobra.Command, cfg *config.Config, logger *zap.Logger) (secrets.Store, func(), error) {
	switch cfg.Secrets.Backend {
	case "postgres":
		pool, err := pgxpool.New(cmd.Context(), cfg.Secrets.PostgresURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create secret store pool: %w", err)
		}
		store, err := secrets.NewPostgresStore(cmd.Context(), pool, logger)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return secrets.NewCached(store), pool.Close, nil
	default:
		manager, err := secrets.NewManager(cmd.Context(), cfg.Secrets.Region, logger)
		if err != nil {
			return nil, nil, err
		}
		return secrets.NewCached(manager), func() {}, nil
	}
}

// reportOutcome logs the result and prints operator instructions, when any,
// to stdout. Stdout carries only operator-facing text; all diagnostics go to
// the logger on stderr.
func reportOutcome(out orchestrator.Outcome, logger *zap.Logger) {
	for _, warning := range out.Warnings {
		logger.Warn("Reset completed with warning", zap.String("warning", warning))
	}

	switch out.Status {
	case orchestrator.StatusSuccess:
		logger.Info("Password reset succeeded")
	case orchestrator.StatusManualFallback:
		logger.Warn("Password reset requires manual completion", zap.String("reason", out.Reason))
	case orchestrator.StatusFailed:
		logger.Error("Password reset failed",
			zap.String("stage", string(out.Stage)),
			zap.Error(out.Cause))
	}

	if out.Instructions != "" {
		fmt.Fprintln(os.Stdout, out.Instructions)
	}
}

func outcomeMessage(out orchestrator.Outcome) string {
	if out.Status == orchestrator.StatusManualFallback {
		return "manual completion required: " + out.Reason
	}
	msg := fmt.Sprintf("reset failed at %s", out.Stage)
	if out.Cause != nil {
		msg += ": " + out.Cause.Error()
	}
	if len(out.Warnings) > 0 {
		msg += " (warnings: " + strings.Join(out.Warnings, "; ") + ")"
	}
	return msg
}

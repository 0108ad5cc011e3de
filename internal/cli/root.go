// Package cli contains the Cobra commands of the taskctl operator CLI.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/taskcore/internal/config"
	"github.com/phrazzld/taskcore/internal/deadletter"
	"github.com/phrazzld/taskcore/internal/platform/archive"
	"github.com/phrazzld/taskcore/internal/platform/logger"
	"github.com/spf13/cobra"
)

// NewRoot constructs the root taskctl command with every subcommand registered.
func NewRoot() *cobra.Command {
	root := &cobra.Command{
		Use:           "taskctl",
		Short:         "Operator tools for the taskcore dead-letter archive",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "path to a YAML config file (default ./config.yaml)")

	root.AddCommand(
		newDeadLettersCommand(),
		newMigrateCommand(),
		newTokenCommand(),
	)
	return root
}

// loadConfig reads the configuration named by the --config flag. Logs go to
// the command's stderr so stdout stays machine readable.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log, err := logger.SetupWithWriter(cfg.Server, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}
	return cfg, log, nil
}

// withBackend opens the configured archive backend and closes it after fn.
func withBackend(cmd *cobra.Command, fn func(ctx context.Context, b *archive.Backend, log *slog.Logger) error) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	b, err := archive.Open(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open dead letter archive: %w", err)
	}
	defer func() { _ = b.Close() }()

	return fn(ctx, b, log)
}

// withArchive is withBackend for commands that only need the Queue.
func withArchive(cmd *cobra.Command, fn func(ctx context.Context, q *deadletter.Queue) error) error {
	return withBackend(cmd, func(ctx context.Context, b *archive.Backend, log *slog.Logger) error {
		return fn(ctx, deadletter.New(b.Store, log))
	})
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply dead-letter schema migrations for the configured backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd, func(ctx context.Context, b *archive.Backend, log *slog.Logger) error {
				if err := b.Migrate(ctx, log); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "migrations applied (backend %s)\n", b.Name)
				return nil
			})
		},
	}
}

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/phrazzld/taskcore/internal/deadletter"
	"github.com/phrazzld/taskcore/internal/redact"
	"github.com/spf13/cobra"
)

// ErrConfirmationRequired is returned by purge when --yes is missing.
var ErrConfirmationRequired = errors.New("refusing to purge without --yes")

func newDeadLettersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "dead-letters",
		Aliases: []string{"dlq"},
		Short:   "Inspect and purge archived task failures",
	}
	cmd.AddCommand(
		newDeadLettersListCommand(),
		newDeadLettersShowCommand(),
		newDeadLettersCountCommand(),
		newDeadLettersPurgeCommand(),
	)
	return cmd
}

func newDeadLettersListCommand() *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List archived entries, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			operation, _ := cmd.Flags().GetString("operation")
			sinceRaw, _ := cmd.Flags().GetString("since")
			includeReplayed, _ := cmd.Flags().GetBool("include-replayed")
			asJSON, _ := cmd.Flags().GetBool("json")

			opts := deadletter.ListOptions{Operation: operation, IncludeReplayed: includeReplayed}
			if sinceRaw != "" {
				since, err := parseTime(sinceRaw, time.Now())
				if err != nil {
					return fmt.Errorf("invalid --since: %w", err)
				}
				opts.Since = since
			}

			return withArchive(cmd, func(ctx context.Context, q *deadletter.Queue) error {
				entries, err := q.List(ctx, opts)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), entries)
				}
				return writeTable(cmd.OutOrStdout(), entries)
			})
		},
	}
	listCmd.Flags().String("operation", "", "only entries for this operation")
	listCmd.Flags().String("since", "", "only entries at or after this time (RFC 3339 or a duration such as 24h)")
	listCmd.Flags().Bool("include-replayed", false, "include entries that were already replayed")
	listCmd.Flags().Bool("json", false, "print entries as JSON")
	return listCmd
}

func newDeadLettersShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print one archived entry as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withArchive(cmd, func(ctx context.Context, q *deadletter.Queue) error {
				e, err := q.Get(ctx, args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), e)
			})
		},
	}
}

func newDeadLettersCountCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of archived entries, replayed or not",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withArchive(cmd, func(ctx context.Context, q *deadletter.Queue) error {
				n, err := q.Count(ctx)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			})
		},
	}
}

func newDeadLettersPurgeCommand() *cobra.Command {
	purgeCmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete archived entries",
		Long: `Delete archived entries.

Without --before every entry is removed. With --before only entries
strictly older than the given time are removed; the value is an RFC 3339
timestamp or a duration such as 168h meaning "that long ago".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			beforeRaw, _ := cmd.Flags().GetString("before")
			yes, _ := cmd.Flags().GetBool("yes")
			if !yes {
				return ErrConfirmationRequired
			}

			var before *time.Time
			if beforeRaw != "" {
				t, err := parseTime(beforeRaw, time.Now())
				if err != nil {
					return fmt.Errorf("invalid --before: %w", err)
				}
				before = &t
			}

			return withArchive(cmd, func(ctx context.Context, q *deadletter.Queue) error {
				n, err := q.Purge(ctx, before)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries\n", n)
				return nil
			})
		},
	}
	purgeCmd.Flags().String("before", "", "only purge entries older than this (RFC 3339 or a duration)")
	purgeCmd.Flags().Bool("yes", false, "confirm the purge")
	return purgeCmd
}

// parseTime accepts an RFC 3339 timestamp or a Go duration measured back
// from now.
func parseTime(raw string, now time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is neither an RFC 3339 time nor a duration", raw)
	}
	if d < 0 {
		return time.Time{}, fmt.Errorf("duration %s must not be negative", raw)
	}
	return now.Add(-d).UTC(), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeTable(w io.Writer, entries []deadletter.Entry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tOPERATION\tTIMESTAMP\tREPLAYED\tERROR")
	for _, e := range entries {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n",
			e.ID,
			e.Operation,
			e.Timestamp.Format(time.RFC3339),
			e.Replayed,
			truncate(redact.String(oneLine(e.Error)), 80))
	}
	return tw.Flush()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

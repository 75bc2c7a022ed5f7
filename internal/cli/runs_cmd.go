package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"bizassist/internal/export"
	"bizassist/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List runs saved with --archive",
	Args:  cobra.NoArgs,
	RunE:  runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print the archived audit trail of one run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

var (
	runsArchive string
	runsLimit   int
)

func init() {
	runsCmd.PersistentFlags().StringVar(&runsArchive, "archive", "bizassist-runs.sqlite", "SQLite archive file")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "number of runs to list")
	runsCmd.AddCommand(runsShowCmd)
}

func openArchive(ctx context.Context) (*store.SQLiteArchive, error) {
	archive := store.NewSQLiteArchive(runsArchive)
	if err := archive.Init(ctx); err != nil {
		_ = archive.Close()
		return nil, fmt.Errorf("open archive %s: %w", runsArchive, err)
	}
	return archive, nil
}

func runRunsList(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()
	archive, err := openArchive(ctx)
	if err != nil {
		return err
	}
	defer archive.Close()

	runs, err := archive.Runs(ctx, runsLimit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if globalFlags.JSON {
		return export.WriteJSON(out, runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No archived runs in", runsArchive)
		return nil
	}
	s := newStyles(out, false)
	for _, r := range runs {
		fmt.Fprintf(out, "%s %s %s\n  %s\n", s.header(r.RunID), s.dim(r.SavedAt.Format("2006-01-02 15:04")),
			s.dim(fmt.Sprintf("role=%s state=%s tools=%d", r.Role, r.State, r.ToolCalls)), r.Command)
	}
	return nil
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	archive, err := openArchive(ctx)
	if err != nil {
		return err
	}
	defer archive.Close()

	rows, err := archive.AuditEntries(ctx, args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if globalFlags.JSON {
		return export.WriteJSON(out, rows)
	}
	if len(rows) == 0 {
		return fmt.Errorf("no audit entries for run %q", args[0])
	}
	s := newStyles(out, false)
	for _, r := range rows {
		fmt.Fprintf(out, "%3d %s %-20s %s\n", r.Seq, s.mark(r.OK), r.Step, r.Detail)
	}
	return nil
}

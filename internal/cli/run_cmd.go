package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"bizassist/internal/model"
	"bizassist/internal/orchestrator"
	"bizassist/internal/store"
	"bizassist/internal/ui"
)

var runCmd = &cobra.Command{
	Use:   "run <command...>",
	Short: "Run one request through the assistant and print the answer",
	Example: `  bizassist run "invoice Acme for 3 days of design at 450"
  bizassist run --tab Tasks "move hire designer to doing"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

var (
	runTab     string
	runArchive string
	runNoAudit bool
)

func init() {
	runCmd.Flags().StringVar(&runTab, "tab", "", "focus area hint, e.g. Invoices or Tasks")
	runCmd.Flags().StringVar(&runArchive, "archive", "", "save the run and a workspace snapshot to this SQLite file")
	runCmd.Flags().BoolVar(&runNoAudit, "no-audit", false, "do not print the audit trail")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig(true, nil)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg, appOptions{withModel: true})
	if err != nil {
		return err
	}
	defer a.close()

	out := cmd.OutOrStdout()
	command := strings.Join(args, " ")
	req := orchestrator.Request{Command: command, Session: a.session, Tab: runTab}
	if globalFlags.JSON {
		req.Observer = func(e orchestrator.AuditEntry) {
			emitNDJSON(out, "info", "audit", e)
		}
	}

	res, err := a.orc.Run(ctx, req)
	if err != nil {
		if globalFlags.JSON {
			emitNDJSON(out, "error", "run_failed", map[string]interface{}{"run_id": res.RunID, "error": err.Error(), "kind": model.KindOf(err)})
		}
		return withCode(exitCodeFor(err), err)
	}

	if runArchive != "" {
		if err := archiveRun(ctx, runArchive, a, command, res); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), newStyles(cmd.ErrOrStderr(), globalFlags.JSON).warnPrefix(), "archive:", err)
		}
	}

	if globalFlags.JSON {
		emitNDJSON(out, "info", "result", res)
		return nil
	}
	printResult(out, newStyles(out, false), res, !runNoAudit && !globalFlags.Quiet)
	return nil
}

func printResult(w io.Writer, s styles, res orchestrator.Result, showAudit bool) {
	fmt.Fprintln(w, ui.NewMarkdown(100, s.enabled).Render(res.Answer))
	if res.State == orchestrator.StateMaxRoundsExceeded {
		fmt.Fprintln(w, s.warnPrefix(), "stopped after the maximum number of rounds")
	}
	if !showAudit || len(res.Audit) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, s.header("Audit"), s.dim(fmt.Sprintf("run=%s state=%s rounds=%d model_calls=%d tool_calls=%d",
		res.RunID, res.State, res.Rounds, res.ModelCalls, res.ToolCalls)))
	for _, e := range res.Audit {
		detail := e.Detail
		if e.Step == orchestrator.StepToolResult && e.ToolCall != nil {
			detail = e.ToolCall.Name + ": " + detail
		}
		fmt.Fprintf(w, "  %s %-20s %s\n", s.mark(e.OK), e.Step, detail)
	}
}

func archiveRun(ctx context.Context, path string, a *app, command string, res orchestrator.Result) error {
	archive := store.NewSQLiteArchive(path)
	defer archive.Close()
	if err := archive.Init(ctx); err != nil {
		return err
	}
	return archive.SaveRun(ctx, store.RunRecord{
		Command:   command,
		Role:      a.session.Role,
		Persona:   a.session.Persona,
		Result:    res,
		Workspace: a.store.Snapshot(),
		SavedAt:   time.Now().UTC(),
	})
}

func exitCodeFor(err error) int {
	if model.KindOf(err) == model.KindTransportFailure {
		return ExitTransportFailure
	}
	return ExitGenericError
}

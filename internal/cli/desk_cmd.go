package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"bizassist/internal/ui"
)

var deskCmd = &cobra.Command{
	Use:   "desk",
	Short: "Open the interactive assistant desk",
	Args:  cobra.NoArgs,
	RunE:  runDesk,
}

var deskAudit bool

func init() {
	deskCmd.Flags().BoolVar(&deskAudit, "audit", true, "show the audit trail under each answer")
}

func runDesk(cmd *cobra.Command, _ []string) error {
	if !isTTY() {
		return errors.New("desk needs an interactive terminal; use 'bizassist run' in scripts")
	}
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

	names := make([]string, 0, len(a.registry.Definitions()))
	for _, d := range a.registry.Definitions() {
		names = append(names, string(d.Name))
	}
	return ui.RunDesk(ctx, ui.DeskOptions{
		Runner:    a.orc,
		Session:   a.session,
		ToolNames: names,
		Provider:  a.provider,
		Model:     a.model,
		ShowAudit: deskAudit,
		Styled:    ui.Enabled(),
	})
}

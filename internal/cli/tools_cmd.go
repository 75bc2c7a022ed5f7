package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"bizassist/internal/export"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools the assistant can call",
	Args:  cobra.NoArgs,
	RunE:  runTools,
}

func runTools(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(false, nil)
	if err != nil {
		return err
	}
	a, err := newApp(context.Background(), cfg, appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	out := cmd.OutOrStdout()
	defs := a.registry.Definitions()
	if globalFlags.JSON {
		return export.WriteJSON(out, defs)
	}
	s := newStyles(out, false)
	for _, d := range defs {
		access := "writes"
		if d.ReadOnly {
			access = "read-only"
		}
		fmt.Fprintf(out, "%s %s\n    %s\n", s.header(string(d.Name)), s.dim("("+access+")"), d.Description)
	}
	return nil
}

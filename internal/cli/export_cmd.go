package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"bizassist/internal/export"
	"bizassist/internal/model"
)

var exportCmd = &cobra.Command{
	Use:       "export <collection>",
	Short:     "Export a workspace collection as JSON or CSV",
	Long:      "export writes one workspace collection (" + strings.Join(export.Collections, ", ") + ") to stdout or a file.",
	Args:      cobra.ExactArgs(1),
	ValidArgs: export.Collections,
	RunE:      runExport,
}

var exportInvoicePDFCmd = &cobra.Command{
	Use:   "invoice-pdf <invoice-id>",
	Short: "Render one invoice as a PDF",
	Args:  cobra.ExactArgs(1),
	RunE:  runExportInvoicePDF,
}

var (
	exportFormat string
	exportOut    string
)

func init() {
	exportCmd.PersistentFlags().StringVarP(&exportOut, "out", "o", "", "output file (default stdout)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "json or csv")
	exportCmd.AddCommand(exportInvoicePDFCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(false, nil)
	if err != nil {
		return err
	}
	a, err := newApp(context.Background(), cfg, appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	records, err := export.Collection(a.store.Snapshot(), args[0])
	if err != nil {
		return err
	}
	return writeOutput(cmd, exportOut, func(w io.Writer) error {
		switch strings.ToLower(exportFormat) {
		case "json":
			return export.WriteJSON(w, records)
		case "csv":
			return export.WriteCSV(w, records)
		default:
			return fmt.Errorf("unsupported format %q; use json or csv", exportFormat)
		}
	})
}

func runExportInvoicePDF(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(false, nil)
	if err != nil {
		return err
	}
	a, err := newApp(context.Background(), cfg, appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	inv, ok := a.store.Invoice(args[0])
	if !ok {
		return model.NotFound("no invoice %q", args[0])
	}
	client, _ := a.store.Client(inv.ClientID)
	out := exportOut
	if out == "" {
		out = inv.Number + ".pdf"
	}
	if err := writeOutput(cmd, out, func(w io.Writer) error {
		return export.WriteInvoicePDF(w, inv, client)
	}); err != nil {
		return err
	}
	if !globalFlags.Quiet {
		fmt.Fprintln(cmd.ErrOrStderr(), "Wrote", out)
	}
	return nil
}

// writeOutput runs write against path, or stdout when path is empty or "-".
func writeOutput(cmd *cobra.Command, path string, write func(io.Writer) error) error {
	if path == "" || path == "-" {
		return write(cmd.OutOrStdout())
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}

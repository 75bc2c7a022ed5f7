package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"bizassist/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with defaults",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configPrintCmd = &cobra.Command{
	Use:   "print",
	Short: "Print the effective config as YAML (secrets redacted)",
	Args:  cobra.NoArgs,
	RunE:  runConfigPrint,
}

var configForce bool

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "replace an existing file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPrintCmd)
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	path := globalFlags.ConfigPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := config.WriteTemplate(path, config.Default(), configForce); err != nil {
		return withCode(ExitConfigInvalid, err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Wrote", path)

	// Keys are never written to the file; point the user at the env instead.
	if isTTY() && !globalFlags.JSON {
		errOut := cmd.ErrOrStderr()
		fmt.Fprintln(errOut, "Optional: paste your Mistral API key to check it was copied correctly (input is hidden, nothing is saved).")
		key, err := readSecret(errOut, "Mistral API key: ")
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}
		if key != "" {
			fmt.Fprintln(errOut, "Add it to your environment or .env.local before running bizassist:")
			fmt.Fprintln(errOut, "  MISTRAL_API_KEY=<your-key>")
		}
		return nil
	}
	fmt.Fprintln(out, "Set MISTRAL_API_KEY, OPENAI_API_KEY or GEMINI_API_KEY in your environment or .env.local.")
	return nil
}

func runConfigPrint(cmd *cobra.Command, _ []string) error {
	overrides := overridesFromFlags()
	cfg, err := config.Load(config.Options{
		ConfigPath:   globalFlags.ConfigPath,
		SkipValidate: true,
		Overrides:    overrides,
	})
	if err != nil {
		return withCode(ExitConfigInvalid, err)
	}
	data, err := config.SnapshotYAML(cfg)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Process exit codes.
const (
	ExitSuccess          = 0
	ExitGenericError     = 1
	ExitConfigInvalid    = 2
	ExitSeedInvalid      = 3
	ExitBindFailure      = 4
	ExitTransportFailure = 5
)

// GlobalFlags holds flags shared by every command. Empty values leave the
// config file and environment in charge.
type GlobalFlags struct {
	ConfigPath string
	JSON       bool
	Quiet      bool
	Verbose    bool

	Provider string
	Model    string
	Role     string
	Persona  string
	Currency string
	Seed     string
	LogLevel string
	// Today pins the session date, for demos and reproducible runs.
	Today string
}

var globalFlags GlobalFlags

var rootCmd = &cobra.Command{
	Use:           "bizassist",
	Short:         "Business operations assistant for invoices, tasks and expenses",
	Long:          "bizassist turns plain-language requests into checked actions on a small business workspace: clients, projects, tasks, invoices, payments and expenses.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&globalFlags.ConfigPath, "config", "", "config file (default: user config dir/bizassist/config.toml)")
	pf.BoolVar(&globalFlags.JSON, "json", false, "emit NDJSON events for automation")
	pf.BoolVar(&globalFlags.Quiet, "quiet", false, "reduce output")
	pf.BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "debug logging")
	pf.StringVar(&globalFlags.Provider, "provider", "", "model provider: mistral, openai, gemini or scripted")
	pf.StringVar(&globalFlags.Model, "model", "", "model id (default depends on provider)")
	pf.StringVar(&globalFlags.Role, "role", "", "acting role: owner, manager, member or viewer")
	pf.StringVar(&globalFlags.Persona, "persona", "", "assistant persona: PA, Accountant or Intern")
	pf.StringVar(&globalFlags.Currency, "currency", "", "default currency: USD, GBP or EUR")
	pf.StringVar(&globalFlags.Seed, "seed", "", "workspace seed file (.json or .yaml); default is the bundled sample")
	pf.StringVar(&globalFlags.LogLevel, "log-level", "", "debug, info, warn or error")
	pf.StringVar(&globalFlags.Today, "today", "", "pin today's date (YYYY-MM-DD)")
	_ = pf.MarkHidden("today")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(deskCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command. Use ExitCode to map the error to a
// process exit code.
func Execute() error {
	return rootCmd.Execute()
}

// exitError carries the process exit code for a failure.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

// ExitCode returns the exit code for an error returned by Execute.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return ExitGenericError
}

// Main runs the CLI and exits the process.
func Main() {
	err := Execute()
	if err != nil {
		s := newStyles(os.Stderr, globalFlags.JSON)
		printError(os.Stderr, s, err)
	}
	os.Exit(ExitCode(err))
}

// MainDesk runs the desk command with the process arguments as its flags.
func MainDesk() {
	rootCmd.SetArgs(append([]string{"desk"}, os.Args[1:]...))
	Main()
}

func printError(w io.Writer, s styles, err error) {
	fmt.Fprintln(w, s.errPrefix(), err.Error())
}

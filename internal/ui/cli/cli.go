// # internal/ui/cli/cli.go
package cli

import (
	"devcrawl/internal/core/config"

	"github.com/spf13/cobra"
)

const versionString = "1.0.0"

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

type cliOptions struct {
	configPath    string
	debugToFile   bool
	output        string
	force         bool
	watch         bool
	reformatLog   string
	reformatLogMD string
	clearLog      bool
	verbose       bool
	args          []string
}

func newRootCommand(s *session) *cobra.Command {
	opts := &s.opts
	root := &cobra.Command{
		Use:   "devcrawl [flags] [script.py...]",
		Short: "Trace function calls across a batch of Python scripts",
		Long: `devcrawl writes an instrumented <name>_debug.py next to every given script.
Running the instrumented scripts records each function enter and exit, and
--reformat-log / --reformat-log-md turn that trace into a readable call tree.`,
		Args:          cobra.ArbitraryArgs,
		Version:       versionString,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return s.prepare(cmd.Flags().Changed("config"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.args = args
			return s.runRoot(cmd.Context())
		},
	}

	flags := root.Flags()
	flags.BoolVar(&opts.debugToFile, "debug-to-file", false, "Write traces to the log file instead of the terminal")
	flags.StringVar(&opts.output, "output", "", "Write traces to this log file (implies --debug-to-file)")
	flags.BoolVar(&opts.force, "force", false, "Replace existing instrumented scripts without asking")
	flags.BoolVar(&opts.watch, "watch", false, "Re-instrument scripts whenever they change")
	flags.StringVar(&opts.reformatLog, "reformat-log", "", "Render a trace log as an indented text report")
	flags.StringVar(&opts.reformatLogMD, "reformat-log-md", "", "Render a trace log as a markdown report")
	flags.BoolVar(&opts.clearLog, "clear-debug-log", false, "Truncate the trace log and write a fresh header")

	persistent := root.PersistentFlags()
	persistent.StringVar(&opts.configPath, "config", config.DefaultFile, "Path to config file")
	persistent.BoolVar(&opts.verbose, "verbose", false, "Enable verbose logging")

	root.AddCommand(newStripCommand(s))
	return root
}

func newStripCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "strip <script_debug.py>",
		Short: "Print the original source of an instrumented script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.runStrip(cmd.Context(), args[0])
		},
	}
}

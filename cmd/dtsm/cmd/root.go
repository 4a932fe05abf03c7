package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	dterrors "github.com/bianoble/dtsm/internal/errors"
)

// Build-time variables set via -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flags.
var (
	configPath string
	remote     string
	offline    bool
	insight    string
	verbose    bool
	quiet      bool
)

// logger is replaced in PersistentPreRunE once the flags are parsed.
var logger = log.NewWithOptions(io.Discard, log.Options{})

var rootCmd = &cobra.Command{
	Use:   "dtsm",
	Short: "TypeScript declaration file manager",
	Long: `dtsm finds TypeScript declaration files in git repositories such as
DefinitelyTyped, installs them together with every file they reference, and
pins the exact commits in a dtsm.json lock file so the same files can be
installed again anywhere.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if _, err := insightOptout(); err != nil {
			return err
		}
		level := log.InfoLevel
		switch {
		case verbose:
			level = log.DebugLevel
		case quiet:
			level = log.ErrorLevel
		}
		logger = newLogger(os.Stderr, level)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("dtsm %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "dtsm.json", "path to the lock file")
	rootCmd.PersistentFlags().StringVar(&remote, "remote", "", "repository URL to use instead of the configured ones")
	rootCmd.PersistentFlags().BoolVar(&offline, "offline", false, "never access the network; use existing mirrors only")
	rootCmd.PersistentFlags().StringVar(&insight, "insight", "", "send usage statistics (true|false)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "detailed output")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "minimal output (errors only)")

	rootCmd.AddCommand(versionCmd)
}

// newLogger creates a logger with timestamp formatting filtered at level.
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		errorf("%s", dterrors.UserMessage(err))
		return err
	}
	return nil
}

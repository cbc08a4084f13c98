package cli

import (
	"fmt"
	"log/slog"

	"github.com/bguidolim/mcs/internal/branding"
	"github.com/bguidolim/mcs/internal/config"
	"github.com/bguidolim/mcs/internal/logging"
	"github.com/spf13/cobra"
)

var (
	buildVersion string
	buildCommit  string
	buildDate    string
)

var (
	verbose   bool
	logFormat string
	logger    = logging.Discard()
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every artifact operation to stderr")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json (default from config)")
}

var rootCmd = &cobra.Command{
	Use:   branding.CLIName(),
	Short: branding.Description(),
	Long: branding.DisplayName() + ` converges Claude Code configuration (MCP servers, plugins, settings,
hooks, instruction sections, ignore entries, packages) from composable tech packs,
per project or globally.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config.Load()
		l, err := newLogger(cmd)
		logger = l
		if err != nil {
			logger.Warn("invalid logging configuration", "err", err)
		}
		return nil
	},
}

// newLogger builds the stderr logger from config, with --verbose and
// --log-format taking precedence.
func newLogger(cmd *cobra.Command) (*slog.Logger, error) {
	level := config.Get(config.KeyLogLevel)
	if verbose {
		level = "debug"
	}
	format := config.Get(config.KeyLogFormat)
	if logFormat != "" {
		format = logFormat
	}
	return logging.FromNames(level, format, cmd.ErrOrStderr())
}

// Execute runs the root command with build info injected via ldflags.
func Execute(version, commit, date string) error {
	buildVersion = version
	buildCommit = commit
	buildDate = date
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
	}
	return err
}

package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/me/shopfloor/internal/client"
	"github.com/me/shopfloor/internal/logging"
)

var (
	flagServer    string
	flagTimeout   time.Duration
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
)

// defaultServer returns the default server URL, checking SHOPFLOOR_SERVER env var first.
func defaultServer() string {
	if s := os.Getenv("SHOPFLOOR_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8765"
}

// NewRootCmd creates the root cobra command for shopctl.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "shopctl",
		Short: "Manage machining tasks on a shopfloor scheduler",
		Long:  "shopctl creates, edits, deletes and watches machining tasks over the scheduler's WebSocket protocol.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.NewLoggerWithWriter(logging.ParseLevel(flagLogLevel), flagLogFormat, cmd.ErrOrStderr())
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "server", defaultServer(), "Scheduler URL (or SHOPFLOOR_SERVER env)")
	root.PersistentFlags().DurationVar(&flagTimeout, "timeout", 10*time.Second, "Timeout for connecting and for each command")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newCreateCmd(),
		newUpdateCmd(),
		newDeleteCmd(),
		newListCmd(),
		newWatchCmd(),
	)

	return root
}

// connect dials the scheduler within the command timeout.
func connect(cmd *cobra.Command) (*client.Client, error) {
	ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
	defer cancel()
	c, err := client.Dial(ctx, flagServer, logger)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return c, nil
}

// commandContext bounds one request/reply exchange.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), flagTimeout)
}

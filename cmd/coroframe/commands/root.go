package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/stealthrocket/coro"
)

var (
	backendName string
	logLevel    string
	logFormat   string
)

var rootCmd = &cobra.Command{
	Use:   "coroframe",
	Short: "Frame loop driving coroutine test scripts",
	Long: `coroframe simulates the main loop of an interactive application.

Every frame, the host resumes the running test script until it yields, then
goes on with its own work. Scripts come from a YAML scenario and run as
coroutines on the selected backend.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&backendName, "backend", "b", "", fmt.Sprintf("coroutine backend, one of %s (default %s)", strings.Join(coro.Backends(), ", "), coro.DefaultBackend))
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "auto", "log format (auto, text, json)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(backendsCmd)
}

var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "List coroutine backends",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range coro.Backends() {
			if name == coro.DefaultBackend {
				fmt.Fprintf(cmd.OutOrStdout(), "%s (default)\n", name)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		}
	},
}

func newLogger() (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}
	opts := &slog.HandlerOptions{Level: level}

	format := logFormat
	if format == "auto" {
		format = "json"
		if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
			format = "text"
		}
	}
	switch format {
	case "text":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", logFormat)
	}
}

package main

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pmplanner/internal/suggestion"
	"pmplanner/internal/wbs"
	"pmplanner/pkg/config"
)

var (
	flagConfigDir         string
	flagSuggestionURL     string
	flagSuggestionTimeout time.Duration
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "planner",
		Short: "Project planning engine: WBS decomposition, CPM scheduling and resource allocation",
		Long: `planner decomposes a project into a work breakdown structure, computes the
critical path schedule and ranks people for each task.

"serve" runs the engine as a RabbitMQ worker backed by PostgreSQL. The other
commands run one computation over a YAML snapshot and print JSON.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config-dir", config.GetEnv("CONFIG_DIR", "config"), "Configuration directory (serve, replay-outbox)")
	rootCmd.PersistentFlags().StringVar(&flagSuggestionURL, "suggestion-url", "", "Plan suggestion service base URL (empty = rules only)")
	rootCmd.PersistentFlags().DurationVar(&flagSuggestionTimeout, "suggestion-timeout", 5*time.Second, "Plan suggestion call timeout")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(decomposeCmd())
	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(allocateCmd())
	rootCmd.AddCommand(planCmd())
	rootCmd.AddCommand(replayOutboxCmd())

	return rootCmd
}

// newSuggester 未配置地址时返回 nil 接口
func newSuggester(url string, timeout time.Duration, log *zap.Logger) wbs.Suggester {
	if url == "" {
		return nil
	}
	return suggestion.NewClient(url, timeout, log)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

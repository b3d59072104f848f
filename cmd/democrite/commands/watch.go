package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dyluth/democrite/internal/node"
	"github.com/dyluth/democrite/internal/printer"
	"github.com/dyluth/democrite/internal/watch"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	watchOutputFormat string
	watchTimeout      time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch [BOARD]",
	Short: "Monitor board events in real time",
	Long: `Stream the events boards commit: records added, removed, renamed or moved to
another status, and board life status changes.

Without BOARD every board of the namespace is watched.

Output Formats:
  default - Human-readable output with timestamps and emojis
  jsonl   - Line-delimited JSON for programmatic processing

Examples:
  # Watch every board
  democrite watch

  # Watch one board for five minutes
  democrite watch weekly/articles --timeout 5m

  # Export events as JSON
  democrite watch --output=jsonl > events.jsonl`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", "default", "Output format (default or jsonl)")
	watchCmd.Flags().DurationVar(&watchTimeout, "timeout", 0, "Stop after this long (0 watches until interrupted)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	format := watch.OutputFormat(watchOutputFormat)
	if err := format.Validate(); err != nil {
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", watchOutputFormat),
			[]string{"Valid formats: default, jsonl"},
		)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return withNode(ctx, func(n *node.Node) error {
		if n.Client == nil {
			return printer.Error("watch needs Redis", "The memory backend publishes no events.",
				[]string{"Set storage.backend: redis in " + configPath})
		}

		boardUID := uuid.Nil
		target := "all boards"
		if len(args) == 1 {
			p, err := resolveBoard(ctx, n, args[0], "")
			if err != nil {
				return err
			}
			boardUID = p.UID()
			target = p.ID().String()
		}

		if format == watch.OutputFormatDefault {
			printer.Step("Watching %s in namespace '%s' (Ctrl+C to stop)\n", target, n.Config.Namespace)
		}
		return watch.Stream(ctx, n.Client, watch.Options{
			BoardUID: boardUID,
			Format:   format,
			Timeout:  watchTimeout,
		}, os.Stdout, os.Stderr)
	})
}

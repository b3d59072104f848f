package commands

import (
	"context"
	"os"

	"github.com/dyluth/democrite/internal/board"
	"github.com/dyluth/democrite/internal/inspect"
	"github.com/dyluth/democrite/internal/node"
	"github.com/dyluth/democrite/internal/printer"
	"github.com/spf13/cobra"
)

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Create, list and unregister boards",
	Long: `Manage the boards of the configured namespace.

A board is identified by a name and the unique name of the template it is built
from. Commands taking a BOARD argument accept a full or short board ID, or the
"name/template" key of a registered board.`,
}

var boardGetCmd = &cobra.Command{
	Use:   "get NAME TEMPLATE",
	Short: "Get a board, creating it from TEMPLATE on first use",
	Long: `Get the board registered for NAME and TEMPLATE.

A missing board gets a new ID, is built from the template and initialized, so it
accepts records straight away.

Examples:
  democrite board get weekly articles`,
	Args: cobra.ExactArgs(2),
	RunE: runBoardGet,
}

var boardListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered boards",
	Args:  cobra.NoArgs,
	RunE:  runBoardList,
}

var boardUnregisterCmd = &cobra.Command{
	Use:   "unregister BOARD",
	Short: "Unregister a board and delete its saved state",
	Long: `Unregister a board: its registry entry and its saved state are deleted.
Getting the same name and template again creates a new, empty board.`,
	Args: cobra.ExactArgs(1),
	RunE: runBoardUnregister,
}

func init() {
	boardCmd.AddCommand(boardGetCmd, boardListCmd, boardUnregisterCmd)
	rootCmd.AddCommand(boardCmd)
}

func runBoardGet(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	return withNode(ctx, func(n *node.Node) error {
		p, err := resolveBoard(ctx, n, args[0], args[1])
		if err != nil {
			return err
		}
		printer.Success("Board %s\n", p.ID())
		printer.Info("  ID:     %s\n", p.UID())
		printer.Info("  Status: %s\n", printer.LifeStatus(p.Status()))
		return nil
	})
}

func runBoardList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	return withNode(ctx, func(n *node.Node) error {
		ids := n.Registry.List()
		summaries := make([]inspect.BoardSummary, 0, len(ids))
		for _, id := range ids {
			summary := inspect.BoardSummary{ID: id}
			// Activating a board does not initialize it, so listing never changes state
			if b, err := n.Host.Get(ctx, id.UID); err == nil {
				summary.Status = b.LifeStatus()
				if metas, err := b.GetAllStoredMetaData(ctx, board.MetadataFilter{}); err == nil {
					summary.Records = len(metas)
				}
			}
			summaries = append(summaries, summary)
		}
		inspect.FormatBoards(os.Stdout, summaries, n.Config.Namespace)
		return nil
	})
}

func runBoardUnregister(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	return withNode(ctx, func(n *node.Node) error {
		p, err := resolveBoard(ctx, n, args[0], "")
		if err != nil {
			return err
		}
		id := p.ID()
		if err := n.Unregister(ctx, id.UID); err != nil {
			return err
		}
		printer.Success("Unregistered board %s (%s)\n", id, id.UID)
		return nil
	})
}

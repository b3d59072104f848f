package commands

import (
	"context"

	"github.com/dyluth/democrite/internal/node"
	"github.com/dyluth/democrite/internal/printer"
	"github.com/dyluth/democrite/pkg/blackboard"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var renameName string

var removeCmd = &cobra.Command{
	Use:   "remove BOARD RECORD_ID...",
	Short: "Remove records from a board in one batch",
	Long: `Remove records from a board. All IDs are removed in a single batch: if the board
rejects one removal, the following ones are not applied.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runRemove,
}

var statusCmd = &cobra.Command{
	Use:   "status BOARD RECORD_ID STATUS",
	Short: "Change the status of a record",
	Long: `Change the status of a record to Preparation, Ready, Decommissioned or Error.
Decommissioned records stay on the board but no longer count toward record limits.`,
	Args: cobra.ExactArgs(3),
	RunE: runStatus,
}

var renameCmd = &cobra.Command{
	Use:   "rename BOARD RECORD_ID",
	Short: "Change the display name of a record",
	Args:  cobra.ExactArgs(2),
	RunE:  runRename,
}

func init() {
	renameCmd.Flags().StringVar(&renameName, "name", "", "New display name (required)")
	renameCmd.MarkFlagRequired("name")
	rootCmd.AddCommand(removeCmd, statusCmd, renameCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	return withNode(ctx, func(n *node.Node) error {
		p, err := resolveBoard(ctx, n, args[0], "")
		if err != nil {
			return err
		}
		uids := make([]uuid.UUID, 0, len(args)-1)
		for _, ref := range args[1:] {
			uid, err := resolveRecord(ctx, p, ref)
			if err != nil {
				return err
			}
			uids = append(uids, uid)
		}
		ok, err := p.DeleteData(ctx, uids...)
		return report(p, "Remove", ok, err)
	})
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	status, err := blackboard.ParseRecordStatus(args[2])
	if err != nil || status == blackboard.RecordStatusNone {
		return printer.Error("invalid status", "STATUS must name one status.",
			[]string{"Valid statuses: Preparation, Ready, Decommissioned, Error"})
	}

	return withNode(ctx, func(n *node.Node) error {
		p, err := resolveBoard(ctx, n, args[0], "")
		if err != nil {
			return err
		}
		uid, err := resolveRecord(ctx, p, args[1])
		if err != nil {
			return err
		}
		ok, err := p.ChangeRecordStatus(ctx, uid, status)
		return report(p, "Status change", ok, err)
	})
}

func runRename(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	return withNode(ctx, func(n *node.Node) error {
		p, err := resolveBoard(ctx, n, args[0], "")
		if err != nil {
			return err
		}
		uid, err := resolveRecord(ctx, p, args[1])
		if err != nil {
			return err
		}
		ok, err := p.ChangeMetadata(ctx, uid, renameName)
		return report(p, "Rename", ok, err)
	})
}

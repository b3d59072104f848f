package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dyluth/democrite/internal/inspect"
	"github.com/dyluth/democrite/internal/node"
	"github.com/dyluth/democrite/internal/printer"
	"github.com/dyluth/democrite/internal/timespec"
	"github.com/dyluth/democrite/pkg/blackboard"
	"github.com/spf13/cobra"
)

var (
	recordsOutputFormat string
	recordsSince        string
	recordsUntil        string
	recordsType         string
	recordsStatus       string
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Inspect the records of a board",
}

var recordsListCmd = &cobra.Command{
	Use:   "list BOARD",
	Short: "List the records of a board with filtering",
	Long: `List the records of a board as a table or JSONL stream, oldest first.

Output Formats:
  default - Human-readable table with ID, Status, Type, Name, Age and Payload
  jsonl   - Line-delimited JSON, one record per line

Time Filters:
  --since  - Show records created after this time
  --until  - Show records created before this time

Content Filters:
  --type   - Filter by logical type (glob pattern: "art*", "*draft")
  --status - Filter by status ("Ready", "Preparation|Error")

Examples:
  # List every record
  democrite records list weekly/articles

  # Ready articles of the last two hours, piped to jq
  democrite records list weekly/articles --type=article --status=Ready --since=2h -o jsonl | jq .uid`,
	Args: cobra.ExactArgs(1),
	RunE: runRecordsList,
}

var recordsGetCmd = &cobra.Command{
	Use:   "get BOARD RECORD_ID",
	Short: "Show one record as JSON",
	Long: `Show the complete record as pretty-printed JSON.
Supports short IDs (e.g., "abc123" instead of full UUID).`,
	Args: cobra.ExactArgs(2),
	RunE: runRecordsGet,
}

func init() {
	recordsListCmd.Flags().StringVarP(&recordsOutputFormat, "output", "o", "default", "Output format: default or jsonl")
	recordsListCmd.Flags().StringVar(&recordsSince, "since", "", "Show records after time (duration or RFC3339)")
	recordsListCmd.Flags().StringVar(&recordsUntil, "until", "", "Show records before time (duration or RFC3339)")
	recordsListCmd.Flags().StringVar(&recordsType, "type", "", "Filter by logical type (glob pattern)")
	recordsListCmd.Flags().StringVar(&recordsStatus, "status", "", "Filter by status")

	recordsCmd.AddCommand(recordsListCmd, recordsGetCmd)
	rootCmd.AddCommand(recordsCmd)
}

func runRecordsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	format := inspect.OutputFormat(recordsOutputFormat)
	if err := format.Validate(); err != nil {
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", recordsOutputFormat),
			[]string{"Valid formats: default, jsonl"},
		)
	}

	created, err := timespec.ParseRange(recordsSince, recordsUntil, time.Now())
	if err != nil {
		return printer.Error("invalid time filter", err.Error(),
			[]string{"Use a duration (2h, 30m) or an RFC3339 timestamp (2025-10-29T13:00:00Z)"})
	}
	status, err := blackboard.ParseRecordStatus(recordsStatus)
	if err != nil {
		return printer.Error("invalid status", err.Error(), []string{"Valid statuses: Preparation, Ready, Decommissioned, Error"})
	}
	filters := &inspect.FilterCriteria{Created: created, TypeGlob: recordsType, Status: status}
	if err := filters.Validate(); err != nil {
		return printer.Error("invalid filter", err.Error(), nil)
	}

	return withNode(ctx, func(n *node.Node) error {
		p, err := resolveBoard(ctx, n, args[0], "")
		if err != nil {
			return err
		}
		return inspect.ListRecords(ctx, p.Board(), p.ID().String(), format, filters, os.Stdout)
	})
}

func runRecordsGet(cmd *cobra.Command, args []string) error {
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
		if err := inspect.GetRecord(ctx, p.Board(), uid, os.Stdout); err != nil {
			if inspect.IsNotFound(err) {
				return printer.Error("record not found", err.Error(), nil)
			}
			return err
		}
		return nil
	})
}

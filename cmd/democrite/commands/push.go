package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dyluth/democrite/internal/facade"
	"github.com/dyluth/democrite/internal/node"
	"github.com/dyluth/democrite/internal/printer"
	"github.com/dyluth/democrite/pkg/blackboard"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	pushType    string
	pushName    string
	pushID      string
	pushMode    string
	pushStatus  string
	pushFile    string
	prepareType string
	prepareName string
	prepareID   string
)

var pushCmd = &cobra.Command{
	Use:   "push BOARD [DATA]",
	Short: "Push a record to a board",
	Long: `Push a record to a board.

DATA is parsed as JSON when it is valid JSON and stored as a string otherwise. Use
--file to read the payload from a file ("-" reads stdin).

Modes:
  push        - insert, or override a record with the same ID (default)
  only-new    - insert only when the ID is not stored yet
  update-only - override only when the ID is already stored

Examples:
  democrite push weekly/articles --type article '{"title":"Go"}'
  democrite push 3f2a9c --type draft --name intro "first words"
  democrite push weekly/articles --type article --id <uuid> --mode update-only --file article.json`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runPush,
}

var prepareCmd = &cobra.Command{
	Use:   "prepare BOARD",
	Short: "Reserve a record slot in Preparation status",
	Long: `Reserve a record ID on a board before its payload exists. The slot is stored in
Preparation status and can later be filled with 'democrite push --mode update-only'.`,
	Args: cobra.ExactArgs(1),
	RunE: runPrepare,
}

func init() {
	pushCmd.Flags().StringVarP(&pushType, "type", "t", "", "Logical type of the record (required)")
	pushCmd.Flags().StringVar(&pushName, "name", "", "Display name (defaults to the payload)")
	pushCmd.Flags().StringVar(&pushID, "id", "", "Record ID (generated if omitted)")
	pushCmd.Flags().StringVar(&pushMode, "mode", "push", "Push mode: push, only-new or update-only")
	pushCmd.Flags().StringVar(&pushStatus, "status", "", "Record status (defaults to Ready)")
	pushCmd.Flags().StringVarP(&pushFile, "file", "f", "", "Read the payload from a file, - for stdin")
	pushCmd.MarkFlagRequired("type")
	rootCmd.AddCommand(pushCmd)

	prepareCmd.Flags().StringVarP(&prepareType, "type", "t", "", "Logical type of the record (required)")
	prepareCmd.Flags().StringVar(&prepareName, "name", "", "Display name")
	prepareCmd.Flags().StringVar(&prepareID, "id", "", "Record ID (generated if omitted)")
	prepareCmd.MarkFlagRequired("type")
	rootCmd.AddCommand(prepareCmd)
}

func runPush(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	mode, err := parsePushMode(pushMode)
	if err != nil {
		return printer.Error("invalid push mode", err.Error(), []string{"Valid modes: push, only-new, update-only"})
	}
	status, err := blackboard.ParseRecordStatus(pushStatus)
	if err != nil {
		return printer.Error("invalid status", err.Error(), []string{"Valid statuses: Preparation, Ready, Decommissioned, Error"})
	}
	uid, err := parseOptionalUID(pushID)
	if err != nil {
		return err
	}
	data, err := readPayload(args[1:], pushFile)
	if err != nil {
		return err
	}

	return withNode(ctx, func(n *node.Node) error {
		p, err := resolveBoard(ctx, n, args[0], "")
		if err != nil {
			return err
		}
		if uid == uuid.Nil {
			uid = uuid.New()
		}
		ok, err := n.Facade.Push(ctx, &facade.PushRequest{
			BoardUID:    p.UID(),
			PushType:    mode,
			RecordUID:   uid,
			LogicalType: pushType,
			DisplayName: pushName,
			Status:      status,
			Data:        data,
		})
		if err := report(p, "Push", ok, err); err != nil {
			return err
		}
		if ok {
			printer.Info("  Record: %s\n", uid)
		}
		return nil
	})
}

func runPrepare(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	uid, err := parseOptionalUID(prepareID)
	if err != nil {
		return err
	}
	if uid == uuid.Nil {
		uid = uuid.New()
	}

	return withNode(ctx, func(n *node.Node) error {
		p, err := resolveBoard(ctx, n, args[0], "")
		if err != nil {
			return err
		}
		ok, err := p.Prepare(ctx, uid, prepareType, prepareName)
		if err := report(p, "Prepare", ok, err); err != nil {
			return err
		}
		if ok {
			printer.Info("  Record: %s\n", uid)
		}
		return nil
	})
}

func parsePushMode(mode string) (blackboard.PushType, error) {
	switch strings.ToLower(strings.ReplaceAll(mode, "-", "")) {
	case "", "push":
		return blackboard.PushTypePush, nil
	case "onlynew":
		return blackboard.PushTypeOnlyNew, nil
	case "updateonly":
		return blackboard.PushTypeUpdateOnly, nil
	default:
		return "", fmt.Errorf("unknown push mode: %s", mode)
	}
}

func parseOptionalUID(value string) (uuid.UUID, error) {
	if value == "" {
		return uuid.Nil, nil
	}
	uid, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, printer.Error("invalid record ID", fmt.Sprintf("%q is not a UUID", value), nil)
	}
	return uid, nil
}

// readPayload returns the payload given inline or in a file. JSON documents are decoded
// so the board stores structured data; anything else is kept as a string.
func readPayload(inline []string, file string) (any, error) {
	var raw []byte
	switch {
	case file != "" && len(inline) > 0:
		return nil, printer.Error("conflicting payloads", "Give DATA or --file, not both.", nil)
	case file == "-":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		raw = data
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read payload file: %w", err)
		}
		raw = data
	case len(inline) > 0:
		raw = []byte(inline[0])
	default:
		return nil, nil
	}
	return decodePayload(raw), nil
}

func decodePayload(raw []byte) any {
	trimmed := strings.TrimSpace(string(raw))
	if json.Valid([]byte(trimmed)) {
		var v any
		if err := json.Unmarshal([]byte(trimmed), &v); err == nil {
			return v
		}
	}
	return trimmed
}

func encodePayload(v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return data, nil
}

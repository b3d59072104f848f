package commands

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dyluth/democrite/internal/node"
	"github.com/dyluth/democrite/internal/printer"
	"github.com/dyluth/democrite/pkg/blackboard"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var sealClose bool

var sealCmd = &cobra.Command{
	Use:   "seal BOARD",
	Short: "Seal a board so it stops accepting records",
	Long: `Seal a running board. Records whose logical type is not marked remain_on_sealed
are removed; the rest stay readable. With --close the board is then marked Done.`,
	Args: cobra.ExactArgs(1),
	RunE: runSeal,
}

var signalCmd = &cobra.Command{
	Use:   "signal NAME [PAYLOAD]",
	Short: "Publish a signal to the boards hosted by blackboardd",
	Long: `Publish a signal on the namespace signal channel. A running blackboardd delivers
it to the event controllers of the target board, or of every active board when
--board is omitted.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSignal,
}

var signalBoard string

func init() {
	sealCmd.Flags().BoolVar(&sealClose, "close", false, "Mark the board Done after sealing")
	signalCmd.Flags().StringVar(&signalBoard, "board", "", "Target board (full or short ID, or name/template)")
	rootCmd.AddCommand(sealCmd, signalCmd)
}

func runSeal(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	return withNode(ctx, func(n *node.Node) error {
		p, err := resolveBoard(ctx, n, args[0], "")
		if err != nil {
			return err
		}

		var ok bool
		if sealClose {
			ok, err = p.Close(ctx)
		} else {
			ok, err = p.Seal(ctx)
		}
		if err := report(p, "Seal", ok, err); err != nil {
			return err
		}
		printer.Info("  Status: %s\n", printer.LifeStatus(p.Status()))
		return nil
	})
}

func runSignal(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	var payload json.RawMessage
	if len(args) > 1 {
		encoded, err := encodePayload(decodePayload([]byte(args[1])))
		if err != nil {
			return err
		}
		payload = encoded
	}

	return withNode(ctx, func(n *node.Node) error {
		if n.Client == nil {
			return printer.Error("signals need Redis", "The memory backend has no signal channel.",
				[]string{"Set storage.backend: redis in " + configPath})
		}

		boardUID := uuid.Nil
		if signalBoard != "" {
			p, err := resolveBoard(ctx, n, signalBoard, "")
			if err != nil {
				return err
			}
			boardUID = p.UID()
		}

		if err := n.Client.PublishSignal(ctx, &blackboard.SignalMessage{
			Signal:    args[0],
			BoardUID:  boardUID,
			Payload:   payload,
			Timestamp: time.Now().UTC(),
		}); err != nil {
			return err
		}
		printer.Success("Published signal %s\n", args[0])
		return nil
	})
}

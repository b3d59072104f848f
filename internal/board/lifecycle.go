package board

import (
	"context"
	"fmt"

	"github.com/dyluth/democrite/internal/controller"
	"github.com/dyluth/democrite/pkg/blackboard"
)

func (b *Board) changeLifeStatus(ctx context.Context, ec *ExecutionContext, cmd *blackboard.ChangeLifeStatusCommand) (bool, error) {
	switch cmd.To {
	case blackboard.LifeStatusRunning:
		return b.initialize(ctx, ec, cmd.InitData)
	case blackboard.LifeStatusSealed:
		return b.seal(ctx, ec)
	case blackboard.LifeStatusDone:
		return b.done(ctx, ec)
	default:
		return false, fmt.Errorf("%w: life status %q", blackboard.ErrUnknownCommand, cmd.To)
	}
}

// initialize stores the init data, through the state controller when one is bound, and
// moves the board from None to Running.
func (b *Board) initialize(ctx context.Context, ec *ExecutionContext, initData []*blackboard.DataRecord) (bool, error) {
	if b.LifeStatus() != blackboard.LifeStatusNone {
		return false, nil
	}

	cmds, err := b.stateCommands(ctx, func(sc controller.StateController) ([]blackboard.Command, error) {
		return sc.OnInitialize(ctx, initData)
	})
	if err != nil {
		return false, err
	}
	if cmds == nil {
		for _, record := range initData {
			if record != nil {
				cmds = append(cmds, blackboard.NewAddCommand(record, blackboard.PushTypePush))
			}
		}
	}
	if len(cmds) > 0 {
		ok, err := b.executeBatch(ctx, ec, cmds)
		if err != nil {
			return false, fmt.Errorf("failed to initialize board: %w", err)
		}
		if !ok {
			return false, nil
		}
	}

	b.setLifeStatus(ec, blackboard.LifeStatusRunning)
	return true, nil
}

// seal moves the board to Sealed and drops every record that may not remain: records
// that are not Ready, and Ready records whose handler does not keep them.
func (b *Board) seal(ctx context.Context, ec *ExecutionContext) (bool, error) {
	status := b.LifeStatus()
	if status == blackboard.LifeStatusSealed || status == blackboard.LifeStatusDone {
		return false, nil
	}
	b.setLifeStatus(ec, blackboard.LifeStatusSealed)

	b.meta.Lock()
	all := b.state.Registry.All()
	b.meta.Unlock()

	var keep, remove []blackboard.RecordMetadata
	for _, meta := range all {
		h := b.handlers.Match(meta.LogicalType)
		if meta.Status == blackboard.RecordStatusReady && h != nil && h.RemainOnSealed() {
			keep = append(keep, meta)
		} else {
			remove = append(remove, meta)
		}
	}

	cmds, err := b.stateCommands(ctx, func(sc controller.StateController) ([]blackboard.Command, error) {
		return sc.OnSealed(ctx, keep, remove)
	})
	if err != nil {
		return false, err
	}
	if cmds == nil {
		for _, meta := range remove {
			cmds = append(cmds, &blackboard.RemoveRecordCommand{UID: meta.UID})
		}
	}
	if len(cmds) == 0 {
		return true, nil
	}

	b.sealing = true
	defer func() { b.sealing = false }()

	if _, err := b.executeBatch(ctx, ec, cmds); err != nil {
		return false, fmt.Errorf("failed to seal board: %w", err)
	}
	return true, nil
}

func (b *Board) done(ctx context.Context, ec *ExecutionContext) (bool, error) {
	status := b.LifeStatus()
	if status == blackboard.LifeStatusDone {
		return false, nil
	}
	if status != blackboard.LifeStatusSealed {
		if _, err := b.seal(ctx, ec); err != nil {
			return false, err
		}
	}
	b.setLifeStatus(ec, blackboard.LifeStatusDone)
	return true, nil
}

// stateCommands asks the bound state controller for commands. It returns nil when no
// state controller is bound or the controller leaves the decision to the board.
func (b *Board) stateCommands(ctx context.Context, ask func(controller.StateController) ([]blackboard.Command, error)) ([]blackboard.Command, error) {
	sc, found, err := controller.Get[controller.StateController](ctx, b.controllers[blackboard.ControllerState])
	if err != nil || !found {
		return nil, err
	}
	cmds, err := ask(sc)
	if err != nil {
		return nil, fmt.Errorf("state controller failed: %w", err)
	}
	if len(cmds) == 0 {
		return nil, nil
	}
	return cmds, nil
}

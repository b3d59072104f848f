package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/dyluth/democrite/internal/board"
	"github.com/dyluth/democrite/internal/facade"
	"github.com/dyluth/democrite/internal/printer"
	"github.com/dyluth/democrite/internal/resolver"
	"github.com/dyluth/democrite/pkg/blackboard"
	"github.com/google/uuid"
)

// report turns the result of a board operation into CLI output. A false result without
// error means the board or one of its controllers rejected the batch.
func report(p *facade.Proxy, action string, ok bool, err error) error {
	details := map[string]string{"Board": p.ID().String(), "ID": p.UID().String()}
	switch {
	case errors.Is(err, blackboard.ErrBoardSealed):
		return printer.ErrorWithContext(action+" refused", "The board is sealed and no longer accepts changes.", details, nil)
	case errors.Is(err, blackboard.ErrPushValidation):
		return printer.ErrorWithContext(action+" failed validation", err.Error(), details,
			[]string{"Fix the record so it satisfies the template rules", "Bind a storage controller to resolve conflicts"})
	case errors.Is(err, blackboard.ErrBoardNotBuilt):
		return printer.ErrorWithContext(action+" refused", "The board has no template.", details, nil)
	case err != nil:
		return fmt.Errorf("%s failed: %w", action, err)
	case !ok:
		printer.Warning("%s rejected by board %s\n", action, p.ID())
		return nil
	default:
		printer.Success("%s applied to board %s\n", action, p.ID())
		return nil
	}
}

// resolveRecord accepts a full or short record ID among the records of p.
func resolveRecord(ctx context.Context, p *facade.Proxy, ref string) (uuid.UUID, error) {
	metas, err := p.Metadata(ctx, board.MetadataFilter{})
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to list records: %w", err)
	}
	uids := make([]uuid.UUID, 0, len(metas))
	for _, m := range metas {
		uids = append(uids, m.UID)
	}

	uid, err := resolver.Resolve(ref, uids, "record")
	switch {
	case err == nil:
		return uid, nil
	case resolver.IsAmbiguousError(err):
		var amb *resolver.AmbiguousError
		errors.As(err, &amb)
		return uuid.Nil, printer.Error("ambiguous record ID", amb.Details(), []string{"Use a longer prefix or the full record ID"})
	case resolver.IsNotFoundError(err):
		return uuid.Nil, printer.Error("record not found", err.Error(),
			[]string{fmt.Sprintf("List records:\n  democrite records list %s", p.ID())})
	default:
		return uuid.Nil, err
	}
}

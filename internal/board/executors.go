package board

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/dyluth/democrite/internal/controller"
	"github.com/dyluth/democrite/internal/metrics"
	"github.com/dyluth/democrite/internal/storage"
	"github.com/dyluth/democrite/pkg/blackboard"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

func (b *Board) executeCommand(ctx context.Context, ec *ExecutionContext, cmd blackboard.Command) (bool, error) {
	switch c := cmd.(type) {
	case *blackboard.AddRecordCommand:
		return b.addRecord(ctx, ec, c)
	case *blackboard.PrepareSlotCommand:
		return b.prepareSlot(ctx, ec, c)
	case *blackboard.RemoveRecordCommand:
		return b.removeRecord(ctx, ec, c.UID)
	case *blackboard.DecommissionRecordCommand:
		return b.changeStatus(ctx, ec, c.UID, blackboard.RecordStatusDecommissioned)
	case *blackboard.ChangeStatusCommand:
		return b.changeStatus(ctx, ec, c.UID, c.Status)
	case *blackboard.ChangeMetadataCommand:
		return b.changeMetadata(ctx, ec, c)
	case *blackboard.TriggerSequenceCommand:
		return b.triggerSequence(ctx, c)
	case *blackboard.TriggerSignalCommand:
		return b.triggerSignal(ctx, c)
	case *blackboard.ChangeLifeStatusCommand:
		return b.changeLifeStatus(ctx, ec, c)
	case *blackboard.RejectCommand:
		b.reject(c)
		return false, nil
	default:
		return false, fmt.Errorf("%w: %T", blackboard.ErrUnknownCommand, cmd)
	}
}

func (b *Board) addRecord(ctx context.Context, ec *ExecutionContext, cmd *blackboard.AddRecordCommand) (bool, error) {
	if err := b.checkWritable(); err != nil {
		return false, err
	}
	if cmd.Record == nil {
		return false, fmt.Errorf("add command has no record")
	}

	record := *cmd.Record
	if record.ContainerType == "" {
		record.ContainerType = blackboard.ContainerDirect
	}
	if record.ContainerType != blackboard.ContainerDirect {
		return false, fmt.Errorf("%w: record %s is %s", blackboard.ErrNonDirectRecord, record.UID, record.ContainerType)
	}
	if err := record.RecordMetadata.Validate(); err != nil {
		return false, fmt.Errorf("invalid record: %w", err)
	}
	if record.UID == uuid.Nil {
		record.UID = uuid.New()
	}
	if record.ContainsType == "" {
		record.ContainsType = blackboard.TypeDescriptorOf(record.Payload)
	}
	now := b.deps.Clock.UtcNow()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = now
	}

	ctx, span := metrics.Tracer.Start(ctx, "board.AddRecord")
	span.SetAttributes(
		attribute.String("record.uid", record.UID.String()),
		attribute.String("record.logical_type", record.LogicalType),
	)
	defer span.End()

	b.meta.Lock()
	existing, exists := b.state.Registry.Get(record.UID)
	b.meta.Unlock()
	if !exists && !cmd.InsertIfNew {
		return false, nil
	}

	remediation, err := b.resolvePushIssue(ctx, cmd, &record, exists, existing)
	if err != nil {
		return false, err
	}
	if remediation != nil {
		// Remediations nest like cascades and share the depth limit.
		nested := NewExecutionContext(ec)
		if nested.Depth() > b.deps.Settings.MaxCascadeDepth {
			return false, fmt.Errorf("%w: remediation of %s at depth %d", blackboard.ErrCascadeDepthExceeded, record.UID, nested.Depth())
		}
		return b.executeBatch(ctx, nested, remediation)
	}

	handler, err := b.handlerFor(record.LogicalType)
	if err != nil {
		return false, err
	}
	var repo storage.Repository
	if record.Payload != nil || (exists && existing.ContainsType != "") {
		if repo, err = handler.Repository(ctx); err != nil {
			return false, b.repositoryNotFound(record.LogicalType, err)
		}
	}

	b.meta.Lock()
	defer b.meta.Unlock()

	if repo != nil {
		if record.Payload != nil {
			err = repo.PushRecord(ctx, &record)
		} else {
			_, err = repo.DeleteRecord(ctx, record.UID)
		}
		if err != nil {
			span.RecordError(err)
			return false, &blackboard.PushError{UID: record.UID, Err: err}
		}
	}

	meta := b.state.Registry.Push(&record, now)
	b.saver.markDirty()
	ec.Enqueue(&blackboard.StorageEvent{Change: blackboard.StorageChangeAdd, UID: meta.UID, Metadata: meta})

	b.logEvent("record_pushed", map[string]interface{}{
		"record_uid":   meta.UID.String(),
		"logical_type": meta.LogicalType,
		"status":       meta.Status.String(),
	})
	return true, nil
}

// resolvePushIssue returns the commands to run instead of the add, or nil when the add
// can proceed.
func (b *Board) resolvePushIssue(ctx context.Context, cmd *blackboard.AddRecordCommand, record *blackboard.DataRecord, exists bool, existing blackboard.RecordMetadata) ([]blackboard.Command, error) {
	var issue blackboard.Issue
	if exists && !cmd.Override {
		issue = &blackboard.ConflictIssue{ConflictRecords: []blackboard.RecordMetadata{existing}, NewRecord: record}
	}
	if issue == nil {
		handler, err := b.handlerFor(record.LogicalType)
		if err != nil {
			return nil, err
		}
		b.meta.Lock()
		all := b.state.Registry.All()
		b.meta.Unlock()
		issue = handler.Validator().Validate(record, all)
	}
	if issue == nil {
		return nil, nil
	}
	metrics.PushIssues.WithLabelValues(issue.Kind()).Inc()

	resolver, found, err := controller.Get[controller.StorageController](ctx, b.controllers[blackboard.ControllerStorage])
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &blackboard.PushValidationError{Issue: issue, Reason: "no storage controller bound"}
	}

	cmds, err := resolver.ResolvePushIssue(ctx, issue, record)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s issue: %w", issue.Kind(), err)
	}
	if len(cmds) == 0 {
		return []blackboard.Command{&blackboard.RejectCommand{Issue: issue}}, nil
	}
	return cmds, nil
}

func (b *Board) prepareSlot(ctx context.Context, ec *ExecutionContext, cmd *blackboard.PrepareSlotCommand) (bool, error) {
	now := b.deps.Clock.UtcNow()
	return b.addRecord(ctx, ec, &blackboard.AddRecordCommand{
		Record: &blackboard.DataRecord{
			RecordMetadata: blackboard.RecordMetadata{
				UID:         cmd.UID,
				LogicalType: cmd.LogicalType,
				DisplayName: cmd.DisplayName,
				Status:      blackboard.RecordStatusPreparation,
				CreatedAt:   now,
				UpdatedAt:   now,
			},
			ContainerType: blackboard.ContainerDirect,
		},
		InsertIfNew: true,
		Override:    false,
	})
}

func (b *Board) removeRecord(ctx context.Context, ec *ExecutionContext, uid uuid.UUID) (bool, error) {
	if err := b.checkWritable(); err != nil {
		return false, err
	}

	b.meta.Lock()
	meta, ok := b.state.Registry.Get(uid)
	b.meta.Unlock()
	if !ok {
		return false, nil
	}

	var repo storage.Repository
	if meta.ContainsType != "" {
		handler, err := b.handlerFor(meta.LogicalType)
		if err != nil {
			return false, err
		}
		if repo, err = handler.Repository(ctx); err != nil {
			return false, b.repositoryNotFound(meta.LogicalType, err)
		}
	}

	b.meta.Lock()
	defer b.meta.Unlock()

	if repo != nil {
		deleted, err := repo.DeleteRecord(ctx, uid)
		if err != nil {
			return false, fmt.Errorf("failed to delete record %s: %w", uid, err)
		}
		if !deleted && meta.Status == blackboard.RecordStatusReady {
			return false, fmt.Errorf("failed to delete record %s: not found in repository %s", uid, repo.Name())
		}
	}

	removed := b.state.Registry.Pop(uid)
	if removed == nil {
		return false, nil
	}
	b.saver.markDirty()
	ec.Enqueue(&blackboard.StorageEvent{Change: blackboard.StorageChangeRemove, UID: uid, Metadata: *removed})
	return true, nil
}

func (b *Board) changeStatus(ctx context.Context, ec *ExecutionContext, uid uuid.UUID, status blackboard.RecordStatus) (bool, error) {
	if err := b.checkWritable(); err != nil {
		return false, err
	}

	b.meta.Lock()
	meta, ok := b.state.Registry.Get(uid)
	b.meta.Unlock()
	if !ok || meta.Status == status {
		return false, nil
	}

	var repo storage.Repository
	if meta.ContainsType != "" {
		handler, err := b.handlerFor(meta.LogicalType)
		if err != nil {
			return false, err
		}
		if repo, err = handler.Repository(ctx); err != nil {
			return false, b.repositoryNotFound(meta.LogicalType, err)
		}
	}

	now := b.deps.Clock.UtcNow()

	b.meta.Lock()
	defer b.meta.Unlock()

	if repo != nil {
		stored, err := repo.GetRecord(ctx, uid)
		if err != nil && !blackboard.IsNotFound(err) {
			return false, fmt.Errorf("failed to read record %s: %w", uid, err)
		}
		if err == nil {
			stored.Status = status
			stored.UpdatedAt = now
			if err := repo.PushRecord(ctx, stored); err != nil {
				return false, &blackboard.PushError{UID: uid, Err: err}
			}
		}
	}

	updated := b.state.Registry.ChangeStatus(uid, status, now)
	if updated == nil {
		return false, nil
	}
	b.saver.markDirty()
	ec.Enqueue(&blackboard.StorageEvent{Change: blackboard.StorageChangeStatus, UID: uid, Metadata: *updated})
	return true, nil
}

func (b *Board) changeMetadata(ctx context.Context, ec *ExecutionContext, cmd *blackboard.ChangeMetadataCommand) (bool, error) {
	if err := b.checkWritable(); err != nil {
		return false, err
	}

	b.meta.Lock()
	meta, ok := b.state.Registry.Get(cmd.UID)
	b.meta.Unlock()
	if !ok || meta.DisplayName == cmd.DisplayName {
		return false, nil
	}

	var repo storage.Repository
	if meta.ContainsType != "" {
		handler, err := b.handlerFor(meta.LogicalType)
		if err != nil {
			return false, err
		}
		if repo, err = handler.Repository(ctx); err != nil {
			return false, b.repositoryNotFound(meta.LogicalType, err)
		}
	}

	now := b.deps.Clock.UtcNow()

	b.meta.Lock()
	defer b.meta.Unlock()

	if repo != nil {
		stored, err := repo.GetRecord(ctx, cmd.UID)
		if err == nil {
			stored.DisplayName = cmd.DisplayName
			stored.UpdatedAt = now
			if err := repo.PushRecord(ctx, stored); err != nil {
				return false, &blackboard.PushError{UID: cmd.UID, Err: err}
			}
		} else if !blackboard.IsNotFound(err) {
			return false, fmt.Errorf("failed to read record %s: %w", cmd.UID, err)
		}
	}

	updated := b.state.Registry.ChangeDisplayName(cmd.UID, cmd.DisplayName, now)
	if updated == nil {
		return false, nil
	}
	b.saver.markDirty()
	ec.Enqueue(&blackboard.StorageEvent{Change: blackboard.StorageChangeMetadata, UID: cmd.UID, Metadata: *updated})
	return true, nil
}

func (b *Board) triggerSequence(ctx context.Context, cmd *blackboard.TriggerSequenceCommand) (bool, error) {
	if b.deps.Execution == nil {
		return false, fmt.Errorf("no execution handler to fire sequence %s", cmd.SequenceID)
	}
	if err := b.deps.Execution.Sequence(cmd.SequenceID).From(b.uid).SetInput(cmd.Input).Fire(ctx); err != nil {
		return false, fmt.Errorf("failed to fire sequence %s: %w", cmd.SequenceID, err)
	}
	return true, nil
}

func (b *Board) triggerSignal(ctx context.Context, cmd *blackboard.TriggerSignalCommand) (bool, error) {
	if b.deps.Execution == nil {
		return false, fmt.Errorf("no execution handler to emit signal %s", cmd.Signal)
	}
	if err := b.deps.Execution.Signal(cmd.Signal).From(b.uid).SetInput(cmd.Payload).Fire(ctx); err != nil {
		return false, fmt.Errorf("failed to emit signal %s: %w", cmd.Signal, err)
	}
	return true, nil
}

func (b *Board) reject(cmd *blackboard.RejectCommand) {
	data := map[string]interface{}{"level": "warn"}
	if cmd.Issue != nil {
		data["issue"] = cmd.Issue.Kind()
		data["reason"] = cmd.Issue.Describe()
	}
	b.logEvent("command_rejected", data)
}

// handlerFor returns the logical type handler of logicalType.
func (b *Board) handlerFor(logicalType string) (*LogicalTypeHandler, error) {
	h := b.handlers.Match(logicalType)
	if h == nil {
		return nil, b.repositoryNotFound(logicalType, nil)
	}
	return h, nil
}

func (b *Board) repositoryNotFound(logicalType string, cause error) error {
	if cause != nil && !errors.Is(cause, blackboard.ErrRepositoryNotFound) {
		return fmt.Errorf("failed to resolve repository for logical type %q: %w", logicalType, cause)
	}
	data := map[string]interface{}{
		"level":        "critical",
		"logical_type": logicalType,
	}
	if cause != nil {
		data["error"] = cause.Error()
	}
	b.logEvent("repository_not_found", data)

	if cause != nil {
		return fmt.Errorf("failed to resolve repository for logical type %q: %w", logicalType, cause)
	}
	return fmt.Errorf("%w for logical type %q", blackboard.ErrRepositoryNotFound, logicalType)
}

func (b *Board) setLifeStatus(ec *ExecutionContext, to blackboard.LifeStatus) {
	b.meta.Lock()
	from := b.state.LifeStatus
	b.state.LifeStatus = to
	b.meta.Unlock()

	b.saver.markDirty()
	ec.Enqueue(&blackboard.LifeStatusEvent{From: from, To: to})
	log.Printf("[Board] Board %s moved from %s to %s", b.uid, from, to)
}

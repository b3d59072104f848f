package board

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dyluth/democrite/internal/controller"
	"github.com/dyluth/democrite/internal/metrics"
	"github.com/dyluth/democrite/pkg/blackboard"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// run is the entry point of a top level batch. The caller holds the turn lock.
func (b *Board) run(ctx context.Context, cmds []blackboard.Command) (bool, error) {
	start := time.Now()
	ctx, span := metrics.Tracer.Start(ctx, "board.Execute")
	span.SetAttributes(
		attribute.String("board.uid", b.uid.String()),
		attribute.Int("batch.size", len(cmds)),
	)
	defer span.End()

	ok, err := b.execute(ctx, nil, cmds)
	metrics.BatchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}
	span.SetAttributes(attribute.Bool("batch.result", ok))
	return ok, nil
}

// execute runs a batch in a new context nested under parent, schedules a save, then
// hands the batch events to the event controller. Commands the controller returns run
// as a nested batch, up to the configured depth.
func (b *Board) execute(ctx context.Context, parent *ExecutionContext, cmds []blackboard.Command) (bool, error) {
	ec := NewExecutionContext(parent)
	if ec.Depth() > b.deps.Settings.MaxCascadeDepth {
		return false, fmt.Errorf("%w: depth %d", blackboard.ErrCascadeDepthExceeded, ec.Depth())
	}
	metrics.CascadeDepth.Observe(float64(ec.Depth()))

	ok, err := b.executeBatch(ctx, ec, cmds)
	if err != nil {
		return false, err
	}
	b.saver.batchCompleted(ctx)

	events := ec.ConsumeEvents()
	if len(events) == 0 {
		return ok, nil
	}
	b.publish(ctx, events)

	reactor, found, err := controller.Get[controller.EventController](ctx, b.controllers[blackboard.ControllerEvent])
	if err != nil {
		return false, err
	}
	if !found {
		return ok, nil
	}

	followUp, err := reactor.ReactToEvents(ctx, blackboard.NewEventBook(events))
	if err != nil {
		return false, fmt.Errorf("event controller failed: %w", err)
	}
	if len(followUp) > 0 {
		nested, err := b.execute(ctx, ec, followUp)
		if err != nil {
			return false, err
		}
		if !nested {
			b.logEvent("cascade_rejected", map[string]interface{}{
				"level": "warn",
				"depth": ec.Depth() + 1,
				"count": len(followUp),
			})
		}
	}
	return ok, nil
}

// executeBatch runs commands in order. A rejected command stops the batch with false;
// a failing one stops it with a CommandExecutionError. Applied commands are kept.
func (b *Board) executeBatch(ctx context.Context, ec *ExecutionContext, cmds []blackboard.Command) (bool, error) {
	applied := make([]blackboard.Command, 0, len(cmds))
	for _, cmd := range cmds {
		if cmd == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return false, &blackboard.CommandExecutionError{Command: cmd, Applied: applied, Err: err}
		}

		name := blackboard.CommandName(cmd)
		ok, err := b.executeCommand(ctx, ec, cmd)
		if err != nil {
			metrics.CommandsTotal.WithLabelValues(name, metrics.ResultError).Inc()
			var cmdErr *blackboard.CommandExecutionError
			if errors.As(err, &cmdErr) {
				return false, err
			}
			return false, &blackboard.CommandExecutionError{Command: cmd, Applied: applied, Err: err}
		}
		if !ok {
			metrics.CommandsTotal.WithLabelValues(name, metrics.ResultRejected).Inc()
			return false, nil
		}
		metrics.CommandsTotal.WithLabelValues(name, metrics.ResultOK).Inc()
		applied = append(applied, cmd)
	}
	return true, nil
}

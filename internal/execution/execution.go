// Package execution fires external sequences and signals on behalf of boards.
//
// Firing never blocks the calling board: calls are queued to a dispatcher goroutine
// that hands them to a Launcher. A sequence that eventually writes back to the board
// that fired it therefore cannot deadlock on the board's own turn.
package execution

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dyluth/democrite/internal/metrics"
	"github.com/dyluth/democrite/pkg/blackboard"
	"github.com/google/uuid"
)

var (
	// ErrQueueFull is returned by Fire when the dispatcher buffer is full.
	ErrQueueFull = errors.New("execution queue full")

	// ErrClosed is returned by Fire after Close.
	ErrClosed = errors.New("execution handler closed")
)

// Launcher delivers fired calls. Implementations may block; the handler calls them from
// its dispatcher goroutine only.
type Launcher interface {
	LaunchSequence(ctx context.Context, trigger *blackboard.SequenceTrigger) error
	EmitSignal(ctx context.Context, msg *blackboard.SignalMessage) error
}

// DefaultBuffer is the queue size used when NewHandler is given a non-positive buffer.
const DefaultBuffer = 256

type job struct {
	sequence *blackboard.SequenceTrigger
	signal   *blackboard.SignalMessage
}

// Handler queues fire-and-forget calls and dispatches them in order.
type Handler struct {
	launcher Launcher
	clock    blackboard.Clock
	queue    chan job
	done     chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewHandler starts the dispatcher goroutine. Call Close to drain and stop it.
func NewHandler(launcher Launcher, buffer int, clock blackboard.Clock) *Handler {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if clock == nil {
		clock = blackboard.SystemClock{}
	}
	h := &Handler{
		launcher: launcher,
		clock:    clock,
		queue:    make(chan job, buffer),
		done:     make(chan struct{}),
	}
	go h.run()
	return h
}

// Sequence starts building a sequence call.
func (h *Handler) Sequence(sequenceID string) *Call {
	return &Call{handler: h, sequenceID: sequenceID}
}

// Signal starts building a signal call.
func (h *Handler) Signal(name string) *Call {
	return &Call{handler: h, signal: name}
}

// Close stops accepting calls and waits for queued ones to be dispatched, or for ctx.
func (h *Handler) Close(ctx context.Context) error {
	h.mu.Lock()
	if !h.closed {
		h.closed = true
		close(h.queue)
	}
	h.mu.Unlock()

	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Handler) enqueue(j job) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return ErrClosed
	}
	select {
	case h.queue <- j:
		return nil
	default:
		return ErrQueueFull
	}
}

func (h *Handler) run() {
	defer close(h.done)

	for j := range h.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		switch {
		case j.sequence != nil:
			if err := h.launcher.LaunchSequence(ctx, j.sequence); err != nil {
				log.Printf("[Execution] Failed to launch sequence %s for board %s: %v", j.sequence.SequenceID, j.sequence.BoardUID, err)
				metrics.SequenceTriggers.WithLabelValues(metrics.ResultError).Inc()
			} else {
				metrics.SequenceTriggers.WithLabelValues(metrics.ResultOK).Inc()
			}
		case j.signal != nil:
			if err := h.launcher.EmitSignal(ctx, j.signal); err != nil {
				log.Printf("[Execution] Failed to emit signal %s from board %s: %v", j.signal.Signal, j.signal.BoardUID, err)
			}
		}
		cancel()
	}
}

// Call is a sequence or signal being prepared. Build it with From and SetInput, then Fire.
type Call struct {
	handler    *Handler
	sequenceID string
	signal     string
	boardUID   uuid.UUID
	input      any
}

// From records the board firing the call.
func (c *Call) From(boardUID uuid.UUID) *Call {
	c.boardUID = boardUID
	return c
}

// SetInput sets the sequence input or the signal payload.
func (c *Call) SetInput(input any) *Call {
	c.input = input
	return c
}

// Fire queues the call and returns without waiting for it to run. The input is encoded
// before Fire returns, so callers may reuse it afterwards.
func (c *Call) Fire(_ context.Context) error {
	var raw json.RawMessage
	if c.input != nil {
		data, err := json.Marshal(c.input)
		if err != nil {
			return fmt.Errorf("failed to marshal call input: %w", err)
		}
		raw = data
	}

	now := c.handler.clock.UtcNow()
	if c.signal != "" {
		return c.handler.enqueue(job{signal: &blackboard.SignalMessage{
			Signal:    c.signal,
			BoardUID:  c.boardUID,
			Payload:   raw,
			Timestamp: now,
		}})
	}
	if c.sequenceID == "" {
		return fmt.Errorf("sequence id cannot be empty")
	}
	if err := c.handler.enqueue(job{sequence: &blackboard.SequenceTrigger{
		SequenceID: c.sequenceID,
		BoardUID:   c.boardUID,
		Input:      raw,
		Timestamp:  now,
	}}); err != nil {
		metrics.SequenceTriggers.WithLabelValues(metrics.ResultRejected).Inc()
		return err
	}
	return nil
}

package board

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/dyluth/democrite/internal/metrics"
	"github.com/dyluth/democrite/pkg/blackboard"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Host activates boards on demand and keeps them in memory until deactivated. Each uid
// maps to exactly one Board per host.
type Host struct {
	deps Deps

	mu     sync.Mutex
	boards map[uuid.UUID]*Board

	// activating runs one load per uid; mu is not held while state is read.
	activating singleflight.Group
}

// NewHost validates deps and returns an empty host.
func NewHost(deps Deps) (*Host, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid board dependencies: %w", err)
	}
	return &Host{deps: deps, boards: make(map[uuid.UUID]*Board)}, nil
}

// Deps returns the collaborators boards of this host use.
func (h *Host) Deps() Deps {
	return h.deps
}

// Get returns the activated board of uid, activating it from persisted state first if
// needed. A board that was never built is returned unbuilt.
func (h *Host) Get(ctx context.Context, uid uuid.UUID) (*Board, error) {
	if uid == uuid.Nil {
		return nil, fmt.Errorf("board uid cannot be empty")
	}

	if b, ok := h.lookup(uid); ok {
		return b, nil
	}

	v, err, _ := h.activating.Do(uid.String(), func() (interface{}, error) {
		if b, ok := h.lookup(uid); ok {
			return b, nil
		}
		b := New(uid, h.deps)
		if err := b.Activate(ctx); err != nil {
			return nil, fmt.Errorf("failed to activate board %s: %w", uid, err)
		}
		h.mu.Lock()
		h.boards[uid] = b
		h.mu.Unlock()
		metrics.ActiveBoards.Inc()
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Board), nil
}

func (h *Host) lookup(uid uuid.UUID) (*Board, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.boards[uid]
	return b, ok
}

// Active lists the uids of activated boards.
func (h *Host) Active() []uuid.UUID {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]uuid.UUID, 0, len(h.boards))
	for uid := range h.boards {
		out = append(out, uid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Persisted lists the uids of every board with saved state in the namespace.
func (h *Host) Persisted(ctx context.Context) ([]uuid.UUID, error) {
	keys, err := h.deps.State.Keys(ctx, blackboard.BoardStatePattern(h.deps.Namespace))
	if err != nil {
		return nil, fmt.Errorf("failed to list board states: %w", err)
	}
	out := make([]uuid.UUID, 0, len(keys))
	for _, key := range keys {
		if uid, ok := blackboard.ParseBoardStateKey(h.deps.Namespace, key); ok {
			out = append(out, uid)
		}
	}
	return out, nil
}

// Deactivate flushes a board and drops it from memory.
func (h *Host) Deactivate(ctx context.Context, uid uuid.UUID) error {
	h.mu.Lock()
	b, ok := h.boards[uid]
	delete(h.boards, uid)
	h.mu.Unlock()

	if !ok {
		return nil
	}
	metrics.ActiveBoards.Dec()
	return b.Deactivate(ctx)
}

// Forget drops a board from memory and deletes its persisted state.
func (h *Host) Forget(ctx context.Context, uid uuid.UUID) error {
	h.mu.Lock()
	b, ok := h.boards[uid]
	delete(h.boards, uid)
	h.mu.Unlock()

	if ok {
		metrics.ActiveBoards.Dec()
		b.saver.Stop()
	}
	if err := h.deps.State.Delete(ctx, blackboard.BoardStateKey(h.deps.Namespace, uid)); err != nil {
		return fmt.Errorf("failed to delete board state %s: %w", uid, err)
	}
	return nil
}

// FlushAll saves every activated board with pending changes.
func (h *Host) FlushAll(ctx context.Context) error {
	var errs []error
	for _, b := range h.snapshot() {
		if err := b.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("board %s: %w", b.UID(), err))
		}
	}
	return errors.Join(errs...)
}

// Close flushes and deactivates every board.
func (h *Host) Close(ctx context.Context) error {
	var errs []error
	for _, uid := range h.Active() {
		if err := h.Deactivate(ctx, uid); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DispatchSignal delivers a signal to its board, or to every activated board when the
// signal has no board uid.
func (h *Host) DispatchSignal(ctx context.Context, msg *blackboard.SignalMessage) error {
	if msg.BoardUID != uuid.Nil {
		b, err := h.Get(ctx, msg.BoardUID)
		if err != nil {
			return err
		}
		return b.ManagedSignal(ctx, msg)
	}

	eg, egCtx := errgroup.WithContext(ctx)
	for _, b := range h.snapshot() {
		b := b
		if !b.IsBuild() {
			continue
		}
		eg.Go(func() error {
			if err := b.ManagedSignal(egCtx, msg); err != nil {
				log.Printf("[Host] Signal %s failed on board %s: %v", msg.Signal, b.UID(), err)
				return err
			}
			return nil
		})
	}
	return eg.Wait()
}

func (h *Host) snapshot() []*Board {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]*Board, 0, len(h.boards))
	for _, b := range h.boards {
		out = append(out, b)
	}
	return out
}

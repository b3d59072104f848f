package board

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dyluth/democrite/internal/metrics"
	"github.com/dyluth/democrite/pkg/blackboard"
)

// State is the persisted form of a board.
type State struct {
	BoardID    blackboard.BoardID    `json:"board_id"`
	IsBuild    bool                  `json:"is_build"`
	Template   *blackboard.Template  `json:"template,omitempty"`
	LifeStatus blackboard.LifeStatus `json:"life_status"`
	Registry   *RecordRegistry       `json:"registry"`
}

func newState() *State {
	return &State{LifeStatus: blackboard.LifeStatusNone, Registry: NewRecordRegistry()}
}

// saver debounces state saves: each completed batch restarts a delay timer, and a save
// is forced once more than forceAfter batches are pending.
type saver struct {
	delay      time.Duration
	forceAfter int
	save       func(ctx context.Context) error

	dirty atomic.Bool

	mu      sync.Mutex
	pending int
	timer   *time.Timer

	saveMu sync.Mutex
}

func newSaver(delay time.Duration, forceAfter int, save func(ctx context.Context) error) *saver {
	return &saver{delay: delay, forceAfter: forceAfter, save: save}
}

// markDirty flags unsaved changes. It is safe to call while holding the board locks.
func (s *saver) markDirty() {
	s.dirty.Store(true)
}

// batchCompleted schedules a save after a successful batch.
func (s *saver) batchCompleted(ctx context.Context) {
	if !s.dirty.Load() {
		return
	}

	s.mu.Lock()
	s.pending++
	force := s.pending > s.forceAfter || s.delay <= 0
	if !force {
		if s.timer != nil {
			s.timer.Stop()
		}
		s.timer = time.AfterFunc(s.delay, func() {
			if err := s.Flush(context.Background()); err != nil {
				log.Printf("[Board] Debounced state save failed: %v", err)
			}
		})
	}
	s.mu.Unlock()

	if force {
		if err := s.Flush(ctx); err != nil {
			log.Printf("[Board] Forced state save failed: %v", err)
		}
	}
}

// Flush saves immediately when there are unsaved changes.
func (s *saver) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pending = 0
	s.mu.Unlock()

	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	if !s.dirty.Swap(false) {
		return nil
	}
	if err := s.save(ctx); err != nil {
		s.dirty.Store(true)
		metrics.StateSaves.WithLabelValues(metrics.ResultError).Inc()
		return err
	}
	metrics.StateSaves.WithLabelValues(metrics.ResultOK).Inc()
	return nil
}

// Stop cancels a scheduled save without saving.
func (s *saver) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// snapshot encodes the state under the metadata lock.
func (b *Board) snapshot() (json.RawMessage, error) {
	b.meta.Lock()
	defer b.meta.Unlock()

	data, err := json.Marshal(b.state)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal board state: %w", err)
	}
	return data, nil
}

func (b *Board) saveState(ctx context.Context) error {
	data, err := b.snapshot()
	if err != nil {
		return err
	}
	if err := b.deps.State.Save(ctx, blackboard.BoardStateKey(b.deps.Namespace, b.uid), data); err != nil {
		return fmt.Errorf("failed to save board state: %w", err)
	}
	return nil
}

// load restores persisted state. It reports false when the board was never saved.
func (b *Board) load(ctx context.Context) (bool, error) {
	state := newState()
	found, err := b.deps.State.Load(ctx, blackboard.BoardStateKey(b.deps.Namespace, b.uid), state)
	if err != nil {
		return false, fmt.Errorf("failed to load board state: %w", err)
	}
	if !found {
		return false, nil
	}
	if state.Registry == nil {
		state.Registry = NewRecordRegistry()
	}

	b.meta.Lock()
	b.state = state
	b.meta.Unlock()
	return true, nil
}

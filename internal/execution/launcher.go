package execution

import (
	"context"
	"sync"

	"github.com/dyluth/democrite/pkg/blackboard"
)

// RedisLauncher publishes sequence triggers and signals on the namespace channels, where
// sequence runners and blackboard hosts pick them up.
type RedisLauncher struct {
	client *blackboard.Client
}

// NewRedisLauncher wraps a blackboard client.
func NewRedisLauncher(client *blackboard.Client) *RedisLauncher {
	return &RedisLauncher{client: client}
}

func (l *RedisLauncher) LaunchSequence(ctx context.Context, trigger *blackboard.SequenceTrigger) error {
	return l.client.PublishSequenceTrigger(ctx, trigger)
}

func (l *RedisLauncher) EmitSignal(ctx context.Context, msg *blackboard.SignalMessage) error {
	return l.client.PublishSignal(ctx, msg)
}

// LocalLauncher runs callbacks in process. It is used by the memory backend and records
// every call so tests can inspect them.
type LocalLauncher struct {
	OnSequence func(ctx context.Context, trigger *blackboard.SequenceTrigger) error
	OnSignal   func(ctx context.Context, msg *blackboard.SignalMessage) error

	mu        sync.Mutex
	sequences []*blackboard.SequenceTrigger
	signals   []*blackboard.SignalMessage
}

func (l *LocalLauncher) LaunchSequence(ctx context.Context, trigger *blackboard.SequenceTrigger) error {
	l.mu.Lock()
	l.sequences = append(l.sequences, trigger)
	l.mu.Unlock()

	if l.OnSequence != nil {
		return l.OnSequence(ctx, trigger)
	}
	return nil
}

func (l *LocalLauncher) EmitSignal(ctx context.Context, msg *blackboard.SignalMessage) error {
	l.mu.Lock()
	l.signals = append(l.signals, msg)
	l.mu.Unlock()

	if l.OnSignal != nil {
		return l.OnSignal(ctx, msg)
	}
	return nil
}

// Sequences returns the sequence triggers launched so far.
func (l *LocalLauncher) Sequences() []*blackboard.SequenceTrigger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*blackboard.SequenceTrigger(nil), l.sequences...)
}

// Signals returns the signals emitted so far.
func (l *LocalLauncher) Signals() []*blackboard.SignalMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*blackboard.SignalMessage(nil), l.signals...)
}

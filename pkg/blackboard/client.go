package blackboard

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Client provides namespace-scoped Redis access for the blackboard.
// All keys and channels are automatically namespaced.
// The client is thread-safe and can be used concurrently from multiple goroutines.
type Client struct {
	rdb       *redis.Client
	namespace string
}

// NewClient creates a new blackboard client for the specified namespace.
//
// Parameters:
//   - redisOpts: Redis connection options (address, password, DB, etc.)
//   - namespace: deployment identifier (must not be empty)
//
// Returns an error if namespace is empty.
func NewClient(redisOpts *redis.Options, namespace string) (*Client, error) {
	if namespace == "" {
		return nil, fmt.Errorf("namespace cannot be empty")
	}

	return &Client{
		rdb:       redis.NewClient(redisOpts),
		namespace: namespace,
	}, nil
}

// NewClientFromURL parses a redis:// URL and creates a client.
func NewClientFromURL(redisURL, namespace string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	return NewClient(opts, namespace)
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// RedisClient exposes the underlying client for stores and repositories.
func (c *Client) RedisClient() *redis.Client {
	return c.rdb
}

// Namespace returns the namespace every key and channel is scoped to.
func (c *Client) Namespace() string {
	return c.namespace
}

// SignalMessage is a named signal delivered to one board, or to all boards when
// BoardUID is uuid.Nil.
type SignalMessage struct {
	Signal    string          `json:"signal"`
	BoardUID  uuid.UUID       `json:"board_uid"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// SequenceTrigger is published when a board fires an external sequence.
type SequenceTrigger struct {
	SequenceID string          `json:"sequence_id"`
	BoardUID   uuid.UUID       `json:"board_uid"`
	Input      json.RawMessage `json:"input,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// PublishEvent publishes a committed board event on the board's event channel.
func (c *Client) PublishEvent(ctx context.Context, env *EventEnvelope) error {
	return c.publishJSON(ctx, BoardEventsChannel(c.namespace, env.BoardUID), env)
}

// PublishSignal publishes a signal on the namespace signal channel.
func (c *Client) PublishSignal(ctx context.Context, msg *SignalMessage) error {
	return c.publishJSON(ctx, SignalsChannel(c.namespace), msg)
}

// PublishSequenceTrigger publishes a fired sequence on the namespace trigger channel.
func (c *Client) PublishSequenceTrigger(ctx context.Context, trig *SequenceTrigger) error {
	return c.publishJSON(ctx, SequenceTriggersChannel(c.namespace), trig)
}

func (c *Client) publishJSON(ctx context.Context, channel string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message for %s: %w", channel, err)
	}
	if err := c.rdb.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	return nil
}

// Subscription represents an active Pub/Sub subscription.
// Caller must call Close() when done to clean up resources.
type Subscription[T any] struct {
	events <-chan *T
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of decoded messages.
// The channel will be closed when the subscription is closed or the context is cancelled.
func (s *Subscription[T]) Events() <-chan *T {
	return s.events
}

// Errors returns the channel of subscription errors.
// Errors include JSON unmarshaling failures; the subscription skips the bad message and continues.
func (s *Subscription[T]) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
// Safe to call multiple times - subsequent calls are no-ops.
func (s *Subscription[T]) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeBoardEvents subscribes to the committed events of one board, or of every
// board of the namespace when boardUID is uuid.Nil.
//
// Events are delivered on a buffered channel (size 10) to prevent blocking.
// If the subscriber is too slow, events may be dropped by Redis Pub/Sub (at-most-once delivery).
func (c *Client) SubscribeBoardEvents(ctx context.Context, boardUID uuid.UUID) (*Subscription[EventEnvelope], error) {
	var pubsub *redis.PubSub
	if boardUID == uuid.Nil {
		pubsub = c.rdb.PSubscribe(ctx, AllBoardEventsPattern(c.namespace))
	} else {
		pubsub = c.rdb.Subscribe(ctx, BoardEventsChannel(c.namespace, boardUID))
	}
	return subscribe[EventEnvelope](ctx, pubsub, "board event")
}

// SubscribeSignals subscribes to the namespace signal channel.
func (c *Client) SubscribeSignals(ctx context.Context) (*Subscription[SignalMessage], error) {
	pubsub := c.rdb.Subscribe(ctx, SignalsChannel(c.namespace))
	return subscribe[SignalMessage](ctx, pubsub, "signal")
}

// SubscribeSequenceTriggers subscribes to the namespace sequence trigger channel.
func (c *Client) SubscribeSequenceTriggers(ctx context.Context) (*Subscription[SequenceTrigger], error) {
	pubsub := c.rdb.Subscribe(ctx, SequenceTriggersChannel(c.namespace))
	return subscribe[SequenceTrigger](ctx, pubsub, "sequence trigger")
}

func subscribe[T any](ctx context.Context, pubsub *redis.PubSub, what string) (*Subscription[T], error) {
	// Wait for the subscription confirmation so callers never miss messages published
	// right after this returns.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s channel: %w", what, err)
	}

	eventsChan := make(chan *T, 10)
	errorsChan := make(chan error, 10)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var v T
				if err := json.Unmarshal([]byte(msg.Payload), &v); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal %s: %w", what, err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &v:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription[T]{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

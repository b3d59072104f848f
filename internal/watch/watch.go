// Package watch streams the committed events of boards to a terminal.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dyluth/democrite/pkg/blackboard"
	"github.com/google/uuid"
)

// OutputFormat selects how events are written.
type OutputFormat string

const (
	OutputFormatDefault OutputFormat = "default"
	OutputFormatJSONL   OutputFormat = "jsonl"
)

// Validate checks if the OutputFormat is a valid enum value.
func (f OutputFormat) Validate() error {
	switch f {
	case OutputFormatDefault, OutputFormatJSONL:
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", f)
	}
}

// Subscriber opens event subscriptions. *blackboard.Client implements it.
type Subscriber interface {
	SubscribeBoardEvents(ctx context.Context, boardUID uuid.UUID) (*blackboard.Subscription[blackboard.EventEnvelope], error)
}

// Options configure Stream.
type Options struct {
	// BoardUID limits the stream to one board. uuid.Nil streams every board.
	BoardUID uuid.UUID
	Format   OutputFormat
	// Timeout stops the stream after this long. Zero streams until ctx is done.
	Timeout time.Duration
}

// Stream writes events to w until ctx is done or the timeout elapses. Undecodable
// messages are reported on errW and skipped.
func Stream(ctx context.Context, sub Subscriber, opts Options, w, errW io.Writer) error {
	if opts.Format == "" {
		opts.Format = OutputFormatDefault
	}
	if err := opts.Format.Validate(); err != nil {
		return err
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	s, err := sub.SubscribeBoardEvents(ctx, opts.BoardUID)
	if err != nil {
		return fmt.Errorf("failed to subscribe to board events: %w", err)
	}
	defer s.Close()

	events, errs := s.Events(), s.Errors()
	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-events:
			if !ok {
				return nil
			}
			if err := write(w, env, opts.Format); err != nil {
				fmt.Fprintf(errW, "⚠️  %v\n", err)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			fmt.Fprintf(errW, "⚠️  %v\n", err)
		}
	}
}

func write(w io.Writer, env *blackboard.EventEnvelope, format OutputFormat) error {
	if format == OutputFormatJSONL {
		data, err := json.Marshal(env)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	}

	line, err := FormatEvent(env)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "[%s] %s\n", env.Timestamp.Format("15:04:05"), line)
	return err
}

// FormatEvent renders one event as a human readable line.
func FormatEvent(env *blackboard.EventEnvelope) (string, error) {
	e, err := env.Decode()
	if err != nil {
		return "", err
	}
	board := shortID(env.BoardUID)

	switch ev := e.(type) {
	case *blackboard.StorageEvent:
		m := ev.Metadata
		switch ev.Change {
		case blackboard.StorageChangeAdd:
			return fmt.Sprintf("📥 Record Added: type=%s name=%s id=%s status=%s board=%s",
				m.LogicalType, orDash(m.DisplayName), shortID(ev.UID), m.Status, board), nil
		case blackboard.StorageChangeRemove:
			return fmt.Sprintf("🗑️  Record Removed: type=%s id=%s board=%s", m.LogicalType, shortID(ev.UID), board), nil
		case blackboard.StorageChangeStatus:
			return fmt.Sprintf("🔄 Status Changed: type=%s id=%s status=%s board=%s", m.LogicalType, shortID(ev.UID), m.Status, board), nil
		case blackboard.StorageChangeMetadata:
			return fmt.Sprintf("✏️  Record Renamed: type=%s id=%s name=%s board=%s", m.LogicalType, shortID(ev.UID), orDash(m.DisplayName), board), nil
		default:
			return fmt.Sprintf("📦 Storage %s: id=%s board=%s", ev.Change, shortID(ev.UID), board), nil
		}
	case *blackboard.LifeStatusEvent:
		return fmt.Sprintf("%s Board %s: from=%s board=%s", lifeIcon(ev.To), ev.To, ev.From, board), nil
	default:
		return fmt.Sprintf("Event %s: board=%s", env.Type, board), nil
	}
}

func lifeIcon(s blackboard.LifeStatus) string {
	switch s {
	case blackboard.LifeStatusRunning:
		return "🚀"
	case blackboard.LifeStatusSealed:
		return "🔒"
	case blackboard.LifeStatusDone:
		return "🏁"
	default:
		return "•"
	}
}

func shortID(uid uuid.UUID) string {
	return uid.String()[:8]
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

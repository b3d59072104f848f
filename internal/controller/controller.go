// Package controller defines the pluggable per-board strategies a board consults when a
// push has an issue, when events are committed, when a signal or request arrives, and
// when the board changes life status.
//
// Controllers are composed rather than inherited: a controller embeds Base for its board
// identity, options and persisted state, and implements only the small interfaces it
// cares about. Boards look implementations up through a Handler, which resolves and
// initializes the controller once.
//
// Controllers run inside the board's turn and must not call back into the same board.
package controller

import (
	"context"
	"fmt"

	"github.com/dyluth/democrite/pkg/blackboard"
)

// Controller is implemented by every controller.
type Controller interface {
	// Initialize is called exactly once, before any other method.
	Initialize(ctx context.Context, board blackboard.BoardID, options map[string]string) error
}

// StorageController resolves issues detected before a record is written.
// Returning no command means "no remediation".
type StorageController interface {
	Controller
	ResolvePushIssue(ctx context.Context, issue blackboard.Issue, candidate *blackboard.DataRecord) ([]blackboard.Command, error)
}

// EventController reacts to the events committed by a command batch. The returned
// commands are executed as a nested batch.
type EventController interface {
	Controller
	ReactToEvents(ctx context.Context, book *blackboard.EventBook) ([]blackboard.Command, error)
}

// SignalController reacts to signals delivered to the board.
type SignalController interface {
	Controller
	ManagedSignal(ctx context.Context, signal *blackboard.SignalMessage) ([]blackboard.Command, error)
}

// RequestController turns an external request into commands.
type RequestController interface {
	Controller
	ProcessRequest(ctx context.Context, request *Request) ([]blackboard.Command, error)
}

// StateController takes over the board life status transitions. Returning no command
// lets the board apply its built-in behavior.
type StateController interface {
	Controller
	OnInitialize(ctx context.Context, initData []*blackboard.DataRecord) ([]blackboard.Command, error)
	// OnSealed receives the records that would remain and the ones the board would drop.
	OnSealed(ctx context.Context, keep, remove []blackboard.RecordMetadata) ([]blackboard.Command, error)
}

// Request is an application defined query sent to a board.
type Request struct {
	Name    string `json:"name"`
	Payload any    `json:"payload,omitempty"`
}

// Validate checks the request has a name.
func (r *Request) Validate() error {
	if r == nil || r.Name == "" {
		return fmt.Errorf("request name cannot be empty")
	}
	return nil
}

// StateAccess loads and saves a controller's own persisted state.
type StateAccess interface {
	Load(ctx context.Context, v any) (bool, error)
	Save(ctx context.Context, v any) error
}

// Base carries what every controller needs. Embed it and override the hooks you need.
type Base struct {
	Board   blackboard.BoardID
	Options map[string]string
	State   StateAccess
	Clock   blackboard.Clock
}

// Initialize records the board and options.
func (b *Base) Initialize(_ context.Context, board blackboard.BoardID, options map[string]string) error {
	b.Board = board
	b.Options = options
	return nil
}

// Option returns an option value or def when unset.
func (b *Base) Option(key, def string) string {
	if v, ok := b.Options[key]; ok && v != "" {
		return v
	}
	return def
}

// ReactToEvents does nothing by default.
func (b *Base) ReactToEvents(context.Context, *blackboard.EventBook) ([]blackboard.Command, error) {
	return nil, nil
}

// ManagedSignal ignores signals by default.
func (b *Base) ManagedSignal(context.Context, *blackboard.SignalMessage) ([]blackboard.Command, error) {
	return nil, nil
}

// ProcessRequest rejects every request by default.
func (b *Base) ProcessRequest(context.Context, *Request) ([]blackboard.Command, error) {
	return []blackboard.Command{&blackboard.RejectCommand{}}, nil
}

// OnInitialize defers to the board.
func (b *Base) OnInitialize(context.Context, []*blackboard.DataRecord) ([]blackboard.Command, error) {
	return nil, nil
}

// OnSealed defers to the board.
func (b *Base) OnSealed(context.Context, []blackboard.RecordMetadata, []blackboard.RecordMetadata) ([]blackboard.Command, error) {
	return nil, nil
}

package facade

import (
	"context"
	"fmt"

	"github.com/dyluth/democrite/pkg/blackboard"
	"github.com/google/uuid"
)

// PullRequest selects records of one board. A non-nil RecordUID selects a single record;
// otherwise LogicalTypePattern and Status filter the registry.
type PullRequest struct {
	BoardUID           uuid.UUID
	RecordUID          uuid.UUID
	LogicalTypePattern string
	Status             blackboard.RecordStatus
}

// PushRequest stores Data on one board.
type PushRequest struct {
	BoardUID    uuid.UUID
	PushType    blackboard.PushType
	RecordUID   uuid.UUID
	LogicalType string
	DisplayName string
	Status      blackboard.RecordStatus
	Data        any
}

// Validate checks the request targets a board and a logical type.
func (r *PushRequest) Validate() error {
	if r == nil {
		return fmt.Errorf("push request cannot be nil")
	}
	if r.BoardUID == uuid.Nil {
		return &BoardMissingError{}
	}
	if r.LogicalType == "" {
		return fmt.Errorf("logical type cannot be empty")
	}
	if r.PushType != "" {
		if err := r.PushType.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (r *PushRequest) displayName() string {
	if r.DisplayName != "" {
		return r.DisplayName
	}
	switch v := r.Data.(type) {
	case nil:
		return ""
	case fmt.Stringer:
		return v.String()
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Target names a board either by uid or by name and template key.
type Target struct {
	BoardUID    uuid.UUID
	BoardName   string
	TemplateKey string
}

// PullOptions configure the pull requests built from a calling context.
type PullOptions struct {
	Target
	LogicalTypePattern string
	Status             blackboard.RecordStatus
	// IgnoreCallContext stops the builder from reading the board and record uids the
	// caller carries.
	IgnoreCallContext bool
}

// PushOptions configure the push requests built from a calling context.
type PushOptions struct {
	Target
	PushType    blackboard.PushType
	LogicalType string
	Status      blackboard.RecordStatus
	// ForceCreation always pushes a new record with OnlyNew semantics.
	ForceCreation     bool
	IgnoreCallContext bool
}

// CallContext is the data an executing sequence carries about the board and record it
// works on.
type CallContext struct {
	BoardUID  uuid.UUID `json:"board_uid"`
	RecordUID uuid.UUID `json:"record_uid"`
}

type callContextKey struct{}

// WithCallContext attaches cc to ctx.
func WithCallContext(ctx context.Context, cc CallContext) context.Context {
	return context.WithValue(ctx, callContextKey{}, cc)
}

// CallContextFrom returns the call context attached to ctx.
func CallContextFrom(ctx context.Context) (CallContext, bool) {
	cc, ok := ctx.Value(callContextKey{}).(CallContext)
	return cc, ok
}

// RequestBuilder turns options and the calling context into requests addressed to a
// resolved board uid.
type RequestBuilder struct {
	facade *Facade
}

// NewRequestBuilder returns a builder resolving boards through f.
func NewRequestBuilder(f *Facade) *RequestBuilder {
	return &RequestBuilder{facade: f}
}

// Pull builds a pull request. Without a pattern it selects every record.
func (b *RequestBuilder) Pull(ctx context.Context, opts PullOptions) (*PullRequest, error) {
	cc := b.callContext(ctx, opts.IgnoreCallContext)
	uid, err := b.boardUID(ctx, opts.Target, cc)
	if err != nil {
		return nil, err
	}
	return &PullRequest{
		BoardUID:           uid,
		LogicalTypePattern: opts.LogicalTypePattern,
		Status:             opts.Status,
	}, nil
}

// Push builds a push request for data. The record uid comes from the calling context
// unless ForceCreation is set; a missing one is generated.
func (b *RequestBuilder) Push(ctx context.Context, data any, opts PushOptions) (*PushRequest, error) {
	cc := b.callContext(ctx, opts.IgnoreCallContext)
	uid, err := b.boardUID(ctx, opts.Target, cc)
	if err != nil {
		return nil, err
	}

	pushType := opts.PushType
	if pushType == "" {
		pushType = blackboard.PushTypePush
	}
	recordUID := cc.RecordUID
	if opts.ForceCreation {
		pushType = blackboard.PushTypeOnlyNew
		recordUID = uuid.Nil
	}
	if recordUID == uuid.Nil {
		recordUID = uuid.New()
	}

	return &PushRequest{
		BoardUID:    uid,
		PushType:    pushType,
		RecordUID:   recordUID,
		LogicalType: opts.LogicalType,
		Status:      opts.Status,
		Data:        data,
	}, nil
}

func (b *RequestBuilder) callContext(ctx context.Context, ignore bool) CallContext {
	if ignore {
		return CallContext{}
	}
	cc, _ := CallContextFrom(ctx)
	return cc
}

// boardUID resolves the target board: explicit uid first, then the calling context,
// then name and template key.
func (b *RequestBuilder) boardUID(ctx context.Context, target Target, cc CallContext) (uuid.UUID, error) {
	uid := target.BoardUID
	if uid == uuid.Nil {
		uid = cc.BoardUID
	}

	var (
		p   *Proxy
		err error
	)
	switch {
	case uid != uuid.Nil:
		p, err = b.facade.BoardByUID(ctx, uid)
	case target.BoardName != "" && target.TemplateKey != "":
		p, err = b.facade.Board(ctx, target.BoardName, target.TemplateKey)
	default:
		return uuid.Nil, &BoardMissingError{Name: target.BoardName, TemplateKey: target.TemplateKey}
	}
	if err != nil {
		return uuid.Nil, err
	}
	return p.UID(), nil
}

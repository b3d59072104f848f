// Package facade is the entry point external callers use to reach boards: it resolves
// boards by uid or by name and template, hands out proxies, and serves pull and push
// requests built by the RequestBuilder.
package facade

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dyluth/democrite/internal/board"
	"github.com/dyluth/democrite/internal/boardregistry"
	"github.com/dyluth/democrite/pkg/blackboard"
	"github.com/google/uuid"
)

// ErrBoardMissing is returned when a request names a board that cannot be resolved.
var ErrBoardMissing = errors.New("board missing")

// BoardMissingError names the board a request pointed at.
type BoardMissingError struct {
	UID         uuid.UUID
	Name        string
	TemplateKey string
}

func (e *BoardMissingError) Error() string {
	if e.UID != uuid.Nil {
		return fmt.Sprintf("board %s not found", e.UID)
	}
	if e.Name != "" || e.TemplateKey != "" {
		return fmt.Sprintf("board %s not found", blackboard.BoardKey(e.Name, e.TemplateKey))
	}
	return "no board uid or name given"
}

func (e *BoardMissingError) Unwrap() error {
	return ErrBoardMissing
}

// DefaultResolveTimeout bounds board resolution and build.
const DefaultResolveTimeout = time.Minute

// Facade caches one proxy per board. It is safe for concurrent use.
type Facade struct {
	host     *board.Host
	registry *boardregistry.Registry
	timeout  time.Duration

	mu     sync.RWMutex
	byUID  map[uuid.UUID]*Proxy
	byName map[string]*Proxy
}

// New returns a facade over host and registry.
func New(host *board.Host, registry *boardregistry.Registry) *Facade {
	return &Facade{
		host:     host,
		registry: registry,
		timeout:  DefaultResolveTimeout,
		byUID:    make(map[uuid.UUID]*Proxy),
		byName:   make(map[string]*Proxy),
	}
}

// Board returns the proxy of the board registered for name and templateKey, creating and
// initializing the board on first use.
func (f *Facade) Board(ctx context.Context, name, templateKey string) (*Proxy, error) {
	key := blackboard.BoardKey(name, templateKey)
	return f.resolve(ctx,
		func() *Proxy { return f.byName[key] },
		func(ctx context.Context) (*board.Board, error) {
			return f.registry.GetOrCreate(ctx, name, templateKey)
		},
	)
}

// BoardByUID returns the proxy of a registered board. Unknown uids fail with
// ErrBoardMissing.
func (f *Facade) BoardByUID(ctx context.Context, uid uuid.UUID) (*Proxy, error) {
	return f.resolve(ctx,
		func() *Proxy { return f.byUID[uid] },
		func(ctx context.Context) (*board.Board, error) {
			id, ok := f.registry.TryGet(uid)
			if !ok {
				return nil, &BoardMissingError{UID: uid}
			}
			return f.registry.GetOrCreate(ctx, id.Name, id.TemplateKey)
		},
	)
}

// Forget drops the cached proxy of uid.
func (f *Facade) Forget(uid uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.byUID[uid]; ok {
		delete(f.byUID, uid)
		delete(f.byName, p.id.Key())
	}
}

func (f *Facade) resolve(ctx context.Context, cached func() *Proxy, fetch func(context.Context) (*board.Board, error)) (*Proxy, error) {
	f.mu.RLock()
	p := cached()
	f.mu.RUnlock()
	if p != nil {
		return p, nil
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	b, err := fetch(ctx)
	if err != nil {
		log.Printf("[Facade] Failed to resolve board: %v", err)
		return nil, err
	}

	f.mu.Lock()
	if p = cached(); p != nil {
		f.mu.Unlock()
		return p, nil
	}
	p = &Proxy{board: b, id: b.GetIdentity()}
	f.byUID[p.id.UID] = p
	f.byName[p.id.Key()] = p
	f.mu.Unlock()

	if p.Status() == blackboard.LifeStatusNone {
		if _, err := p.Initialize(ctx); err != nil {
			return nil, fmt.Errorf("failed to initialize board %s: %w", p.id, err)
		}
	}
	return p, nil
}

// Pull returns the records a request selects, projected to T. A request with a record
// uid returns at most that record.
func Pull[T any](ctx context.Context, f *Facade, req *PullRequest) ([]*board.Record[T], error) {
	if req == nil {
		return nil, fmt.Errorf("pull request cannot be nil")
	}
	p, err := f.BoardByUID(ctx, req.BoardUID)
	if err != nil {
		return nil, err
	}

	if req.RecordUID != uuid.Nil {
		r, err := board.GetStoredData[T](ctx, p.board, req.RecordUID)
		if err != nil || r == nil {
			return nil, err
		}
		return []*board.Record[T]{r}, nil
	}

	return board.GetAllStoredDataFiltered[T](ctx, p.board, board.MetadataFilter{
		LogicalTypePattern: req.LogicalTypePattern,
		Status:             req.Status,
	})
}

// PullFirst returns the first record a request selects, or nil.
func PullFirst[T any](ctx context.Context, f *Facade, req *PullRequest) (*board.Record[T], error) {
	records, err := Pull[T](ctx, f, req)
	if err != nil || len(records) == 0 {
		return nil, err
	}
	return records[0], nil
}

// Push stores the request data on its board.
func (f *Facade) Push(ctx context.Context, req *PushRequest) (bool, error) {
	if err := req.Validate(); err != nil {
		return false, err
	}
	p, err := f.BoardByUID(ctx, req.BoardUID)
	if err != nil {
		return false, err
	}

	uid := req.RecordUID
	if uid == uuid.Nil {
		uid = uuid.New()
	}
	record := blackboard.NewDataRecord(uid, req.LogicalType, req.displayName(), req.Data)
	if req.Status != blackboard.RecordStatusNone {
		record.Status = req.Status
	}
	return p.Push(ctx, record, req.PushType)
}

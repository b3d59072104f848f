// Package boardregistry maps (board name, template key) pairs to board identities and
// builds boards the first time a pair is requested. One registry serves a namespace.
package boardregistry

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/dyluth/democrite/internal/board"
	"github.com/dyluth/democrite/pkg/blackboard"
	"github.com/google/uuid"
)

// state is the persisted form of the registry.
type state struct {
	Boards []blackboard.BoardID `json:"boards"`
}

// Registry owns the board identities of a namespace. A name and template key pair maps
// to at most one board uid for the lifetime of the registry state.
type Registry struct {
	host *board.Host
	key  string

	mu    sync.Mutex
	byUID map[uuid.UUID]blackboard.BoardID
	byKey map[string]uuid.UUID
}

// New loads the registry state of the host's namespace.
func New(ctx context.Context, host *board.Host) (*Registry, error) {
	deps := host.Deps()
	r := &Registry{
		host:  host,
		key:   blackboard.RegistryStateKey(deps.Namespace),
		byUID: make(map[uuid.UUID]blackboard.BoardID),
		byKey: make(map[string]uuid.UUID),
	}

	var st state
	found, err := deps.State.Load(ctx, r.key, &st)
	if err != nil {
		return nil, fmt.Errorf("failed to load board registry: %w", err)
	}
	if found {
		for _, id := range st.Boards {
			if _, dup := r.byKey[id.Key()]; dup {
				return nil, fmt.Errorf("board registry holds %s twice", id.Key())
			}
			r.byUID[id.UID] = id
			r.byKey[id.Key()] = id.UID
		}
		log.Printf("[Registry] Loaded %d board(s) for namespace %s", len(st.Boards), deps.Namespace)
	}
	return r, nil
}

// GetOrCreate returns the board registered for name and templateKey. A missing pair gets
// a fresh uid, is persisted, then the board is built from the template named templateKey.
// Boards already built keep their own template copy, so the template is only resolved on
// the create path. Unknown templates fail with blackboard.ErrMissingDefinition before
// anything is saved.
func (r *Registry) GetOrCreate(ctx context.Context, name, templateKey string) (*board.Board, error) {
	if name == "" || templateKey == "" {
		return nil, fmt.Errorf("board name and template key are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id, registered := r.lookup(name, templateKey)
	if registered {
		b, err := r.host.Get(ctx, id.UID)
		if err != nil {
			return nil, err
		}
		if b.IsBuild() {
			if err := b.BuildFromTemplate(ctx, uuid.Nil, id); err != nil {
				return nil, err
			}
			return b, nil
		}
	}

	tmpl, err := r.host.Deps().Templates.GetByUniqueName(ctx, templateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve template %s: %w", templateKey, err)
	}

	if !registered {
		id = blackboard.BoardID{UID: r.newUID(), Name: name, TemplateKey: templateKey}
		r.byUID[id.UID] = id
		r.byKey[id.Key()] = id.UID
		if err := r.save(ctx); err != nil {
			delete(r.byUID, id.UID)
			delete(r.byKey, id.Key())
			return nil, err
		}
		log.Printf("[Registry] Registered board %s", id)
	}

	b, err := r.host.Get(ctx, id.UID)
	if err != nil {
		return nil, err
	}
	if err := b.BuildFromTemplate(ctx, tmpl.UID, id); err != nil {
		return nil, err
	}
	return b, nil
}

// TryGet returns the identity registered under uid without creating anything.
func (r *Registry) TryGet(uid uuid.UUID) (blackboard.BoardID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byUID[uid]
	return id, ok
}

// TryGetByName returns the identity registered for name and templateKey.
func (r *Registry) TryGetByName(name, templateKey string) (blackboard.BoardID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookup(name, templateKey)
}

// List returns every registered identity ordered by key.
func (r *Registry) List() []blackboard.BoardID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted()
}

// Unregister drops the mapping of uid and persists the registry. The board state itself
// is left to the host.
func (r *Registry) Unregister(ctx context.Context, uid uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byUID[uid]
	if !ok {
		return nil
	}
	delete(r.byUID, uid)
	delete(r.byKey, id.Key())
	if err := r.save(ctx); err != nil {
		return err
	}
	log.Printf("[Registry] Unregistered board %s", id)
	return nil
}

func (r *Registry) lookup(name, templateKey string) (blackboard.BoardID, bool) {
	uid, ok := r.byKey[blackboard.BoardKey(name, templateKey)]
	if !ok {
		return blackboard.BoardID{}, false
	}
	return r.byUID[uid], true
}

func (r *Registry) newUID() uuid.UUID {
	for {
		uid := uuid.New()
		if _, taken := r.byUID[uid]; !taken {
			return uid
		}
	}
}

func (r *Registry) sorted() []blackboard.BoardID {
	out := make([]blackboard.BoardID, 0, len(r.byUID))
	for _, id := range r.byUID {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

func (r *Registry) save(ctx context.Context) error {
	if err := r.host.Deps().State.Save(ctx, r.key, state{Boards: r.sorted()}); err != nil {
		return fmt.Errorf("failed to save board registry: %w", err)
	}
	return nil
}

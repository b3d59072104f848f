package controller

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dyluth/democrite/internal/storage"
	"github.com/dyluth/democrite/pkg/blackboard"
)

// Deps are handed to a controller constructor.
type Deps struct {
	State StateAccess
	Clock blackboard.Clock
}

// Constructor builds an uninitialized controller.
type Constructor func(deps Deps) Controller

// Factory maps controller names to constructors. Build it once at startup and share it.
type Factory struct {
	namespace string
	store     storage.StateStore
	clock     blackboard.Clock

	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewFactory creates a factory with the default controller registered.
// store may be nil, in which case controllers have no persisted state.
func NewFactory(namespace string, store storage.StateStore, clock blackboard.Clock) *Factory {
	if clock == nil {
		clock = blackboard.SystemClock{}
	}
	f := &Factory{
		namespace:    namespace,
		store:        store,
		clock:        clock,
		constructors: make(map[string]Constructor),
	}
	f.Register(DefaultName, NewDefault)
	return f
}

// Register adds or replaces a constructor.
func (f *Factory) Register(name string, c Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.constructors[name] = c
}

// Names lists registered controller names.
func (f *Factory) Names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, 0, len(f.constructors))
	for n := range f.constructors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Create builds the controller for a binding. It does not initialize it.
func (f *Factory) Create(board blackboard.BoardID, binding blackboard.ControllerBinding) (Controller, error) {
	f.mu.RLock()
	ctor, ok := f.constructors[binding.Name]
	f.mu.RUnlock()
	if !ok {
		return nil, &blackboard.MissingDefinitionError{Kind: "controller", Key: binding.Name}
	}

	deps := Deps{Clock: f.clock}
	if f.store != nil {
		deps.State = &storeAccess{
			store: f.store,
			key:   blackboard.ControllerStateKey(f.namespace, board.UID, binding.Name),
		}
	}
	return ctor(deps), nil
}

// NewHandler returns a lazy handler for a binding.
func (f *Factory) NewHandler(board blackboard.BoardID, binding blackboard.ControllerBinding) *Handler {
	return &Handler{factory: f, board: board, binding: binding}
}

// BindingKey identifies a (name, options) pair. Bindings with equal keys share a handler.
func BindingKey(binding blackboard.ControllerBinding) string {
	keys := make([]string, 0, len(binding.Options))
	for k := range binding.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(binding.Name)
	for _, k := range keys {
		fmt.Fprintf(&b, ";%s=%s", k, binding.Options[k])
	}
	return b.String()
}

type storeAccess struct {
	store storage.StateStore
	key   string
}

func (s *storeAccess) Load(ctx context.Context, v any) (bool, error) {
	return s.store.Load(ctx, s.key, v)
}

func (s *storeAccess) Save(ctx context.Context, v any) error {
	return s.store.Save(ctx, s.key, v)
}

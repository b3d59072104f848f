package board

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dyluth/democrite/internal/controller"
	"github.com/dyluth/democrite/internal/execution"
	"github.com/dyluth/democrite/internal/storage"
	"github.com/dyluth/democrite/internal/templates"
	"github.com/dyluth/democrite/pkg/blackboard"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// stepClock advances one second on every read so creation times are ordered.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *stepClock) UtcNow() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type fixture struct {
	host     *Host
	board    *Board
	store    *storage.MemoryStateStore
	repos    *storage.MemoryFactory
	launcher *execution.LocalLauncher
	exec     *execution.Handler
	template *blackboard.Template
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	controllers map[string]controller.Controller
	settings    Settings
}

// withController registers a controller instance under name.
func withController(name string, c controller.Controller) fixtureOption {
	return func(cfg *fixtureConfig) { cfg.controllers[name] = c }
}

func withSettings(s Settings) fixtureOption {
	return func(cfg *fixtureConfig) { cfg.settings = s }
}

func newFixture(t *testing.T, tmpl *blackboard.Template, opts ...fixtureOption) *fixture {
	t.Helper()
	ctx := context.Background()

	cfg := &fixtureConfig{
		controllers: make(map[string]controller.Controller),
		settings:    Settings{SaveDelay: time.Hour, ForceSaveAfter: 10, MaxCascadeDepth: 32},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	clock := newStepClock()
	store := storage.NewMemoryStateStore()
	repos := storage.NewMemoryFactory()

	provider, err := templates.NewMemoryProvider(tmpl)
	require.NoError(t, err)
	registered, err := provider.GetByUniqueName(ctx, tmpl.UniqueName)
	require.NoError(t, err)

	factory := controller.NewFactory("test", store, clock)
	for name, c := range cfg.controllers {
		c := c
		factory.Register(name, func(controller.Deps) controller.Controller { return c })
	}

	launcher := &execution.LocalLauncher{}
	exec := execution.NewHandler(launcher, 16, clock)

	host, err := NewHost(Deps{
		Namespace:    "test",
		Repositories: repos,
		State:        store,
		Templates:    provider,
		Controllers:  factory,
		Execution:    exec,
		Clock:        clock,
		Settings:     cfg.settings,
	})
	require.NoError(t, err)

	b, err := host.Get(ctx, uuid.New())
	require.NoError(t, err)
	require.NoError(t, b.BuildFromTemplate(ctx, registered.UID, blackboard.BoardID{Name: "main", TemplateKey: tmpl.UniqueName}))

	t.Cleanup(func() {
		host.Close(context.Background())
		exec.Close(context.Background())
	})

	return &fixture{
		host:     host,
		board:    b,
		store:    store,
		repos:    repos,
		launcher: launcher,
		exec:     exec,
		template: registered,
	}
}

func storageBinding(resolution blackboard.ResolutionMode) blackboard.ControllerBinding {
	return blackboard.ControllerBinding{
		Kind:    blackboard.ControllerStorage,
		Name:    controller.DefaultName,
		Options: map[string]string{controller.OptionResolution: string(resolution)},
	}
}

func eventBinding(name string) blackboard.ControllerBinding {
	return blackboard.ControllerBinding{Kind: blackboard.ControllerEvent, Name: name}
}

func maxRecord(pattern string, max int) blackboard.LogicalTypeRule {
	return blackboard.LogicalTypeRule{Pattern: pattern, MaxRecord: &blackboard.MaxRecordRule{Max: max}}
}

func uidsOf(metas []blackboard.RecordMetadata) []uuid.UUID {
	out := make([]uuid.UUID, len(metas))
	for i, m := range metas {
		out[i] = m.UID
	}
	return out
}

func (f *fixture) metadata(t *testing.T) []blackboard.RecordMetadata {
	t.Helper()
	metas, err := f.board.GetAllStoredMetaData(context.Background(), MetadataFilter{})
	require.NoError(t, err)
	return metas
}

// reactor is an event, signal and request controller driven by callbacks.
type reactor struct {
	controller.Base

	mu      sync.Mutex
	calls   int
	books   []*blackboard.EventBook
	react   func(call int, book *blackboard.EventBook) []blackboard.Command
	signal  func(msg *blackboard.SignalMessage) []blackboard.Command
	request func(req *controller.Request) []blackboard.Command
}

func (r *reactor) ReactToEvents(_ context.Context, book *blackboard.EventBook) ([]blackboard.Command, error) {
	r.mu.Lock()
	r.calls++
	call := r.calls
	r.books = append(r.books, book)
	r.mu.Unlock()

	if r.react == nil {
		return nil, nil
	}
	return r.react(call, book), nil
}

func (r *reactor) ManagedSignal(_ context.Context, msg *blackboard.SignalMessage) ([]blackboard.Command, error) {
	if r.signal == nil {
		return nil, nil
	}
	return r.signal(msg), nil
}

func (r *reactor) ProcessRequest(ctx context.Context, req *controller.Request) ([]blackboard.Command, error) {
	if r.request == nil {
		return r.Base.ProcessRequest(ctx, req)
	}
	return r.request(req), nil
}

func (r *reactor) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

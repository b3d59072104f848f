package board

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dyluth/democrite/internal/controller"
	"github.com/dyluth/democrite/internal/storage"
	"github.com/dyluth/democrite/internal/templates"
	"github.com/dyluth/democrite/pkg/blackboard"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHost_RequiresCollaborators(t *testing.T) {
	_, err := NewHost(Deps{})
	assert.Error(t, err)

	provider, err := templates.NewMemoryProvider()
	require.NoError(t, err)
	store := storage.NewMemoryStateStore()

	host, err := NewHost(Deps{
		Repositories: storage.NewMemoryFactory(),
		State:        store,
		Templates:    provider,
		Controllers:  controller.NewFactory("test", store, nil),
	})
	require.NoError(t, err)

	deps := host.Deps()
	assert.NotNil(t, deps.Rules)
	assert.NotNil(t, deps.Clock)
	assert.Equal(t, DefaultSettings().MaxCascadeDepth, deps.Settings.MaxCascadeDepth)
}

func TestHost_GetReturnsSameBoard(t *testing.T) {
	f := newFixture(t, &blackboard.Template{UniqueName: "docs"})
	ctx := context.Background()

	again, err := f.host.Get(ctx, f.board.UID())
	require.NoError(t, err)
	assert.Same(t, f.board, again)

	_, err = f.host.Get(ctx, uuid.Nil)
	assert.Error(t, err)
}

func TestHost_PersistedAndForget(t *testing.T) {
	f := newFixture(t, &blackboard.Template{UniqueName: "docs"})
	ctx := context.Background()

	second, err := f.host.Get(ctx, uuid.New())
	require.NoError(t, err)
	require.NoError(t, second.BuildFromTemplate(ctx, f.template.UID, blackboard.BoardID{Name: "second", TemplateKey: "docs"}))

	// Unbuilt boards are never saved.
	_, err = f.host.Get(ctx, uuid.New())
	require.NoError(t, err)

	uids, err := f.host.Persisted(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{f.board.UID(), second.UID()}, uids)
	assert.Len(t, f.host.Active(), 3)

	require.NoError(t, f.host.Forget(ctx, second.UID()))
	uids, err = f.host.Persisted(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{f.board.UID()}, uids)
	assert.Len(t, f.host.Active(), 2)
}

func TestHost_DispatchSignal(t *testing.T) {
	var hits []uuid.UUID
	r := &reactor{signal: func(msg *blackboard.SignalMessage) []blackboard.Command {
		uid := uuid.New()
		hits = append(hits, uid)
		return []blackboard.Command{blackboard.NewAddCommand(blackboard.NewDataRecord(uid, "signal", msg.Signal, nil), blackboard.PushTypePush)}
	}}
	f := newFixture(t, &blackboard.Template{
		UniqueName:  "docs",
		Controllers: []blackboard.ControllerBinding{eventBinding("reactor")},
	}, withController("reactor", r))
	ctx := context.Background()

	_, err := f.board.Initialize(ctx)
	require.NoError(t, err)

	t.Run("targeted", func(t *testing.T) {
		require.NoError(t, f.host.DispatchSignal(ctx, &blackboard.SignalMessage{Signal: "wake", BoardUID: f.board.UID()}))
		assert.Len(t, f.metadata(t), 1)
	})

	t.Run("broadcast skips unbuilt boards", func(t *testing.T) {
		_, err := f.host.Get(ctx, uuid.New())
		require.NoError(t, err)

		require.NoError(t, f.host.DispatchSignal(ctx, &blackboard.SignalMessage{Signal: "wake"}))
		assert.Len(t, f.metadata(t), 2)
	})
}

// gatedStore holds Load of one key until release is closed.
type gatedStore struct {
	*storage.MemoryStateStore
	key     string
	entered chan struct{}
	release chan struct{}
	loads   atomic.Int32
}

func (s *gatedStore) Load(ctx context.Context, key string, v any) (bool, error) {
	if key == s.key {
		if s.loads.Add(1) == 1 {
			close(s.entered)
		}
		<-s.release
	}
	return s.MemoryStateStore.Load(ctx, key, v)
}

func TestHost_ActivationDoesNotBlockOtherBoards(t *testing.T) {
	slow := uuid.New()
	store := &gatedStore{
		MemoryStateStore: storage.NewMemoryStateStore(),
		key:              blackboard.BoardStateKey("test", slow),
		entered:          make(chan struct{}),
		release:          make(chan struct{}),
	}
	provider, err := templates.NewMemoryProvider()
	require.NoError(t, err)
	host, err := NewHost(Deps{
		Namespace:    "test",
		Repositories: storage.NewMemoryFactory(),
		State:        store,
		Templates:    provider,
		Controllers:  controller.NewFactory("test", store, nil),
	})
	require.NoError(t, err)
	ctx := context.Background()

	var wg sync.WaitGroup
	got := make([]*Board, 2)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b, err := host.Get(ctx, slow)
			assert.NoError(t, err)
			got[i] = b
		}(i)
	}

	select {
	case <-store.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("activation never reached the state store")
	}

	done := make(chan error, 1)
	go func() {
		_, err := host.Get(ctx, uuid.New())
		done <- err
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("activating one board blocked another")
	}

	close(store.release)
	wg.Wait()

	require.NotNil(t, got[0])
	assert.Same(t, got[0], got[1])
	assert.Equal(t, int32(1), store.loads.Load())
	assert.Len(t, host.Active(), 2)
}

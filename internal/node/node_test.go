package node

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/democrite/internal/config"
	"github.com/dyluth/democrite/internal/facade"
	"github.com/dyluth/democrite/internal/metrics"
	"github.com/dyluth/democrite/internal/resolver"
	"github.com/dyluth/democrite/internal/storage"
	"github.com/dyluth/democrite/internal/templates"
	"github.com/dyluth/democrite/pkg/blackboard"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTemplates = `templates:
  - unique_name: docs
`

func testConfig(t *testing.T, backend storage.Backend, redisURL string) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Version:   "1.0",
		Namespace: "test",
		Redis:     config.RedisConfig{URL: redisURL},
		Storage:   config.StorageConfig{Backend: backend},
		Templates: config.TemplatesConfig{Path: "templates.yml"},
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

func openTestNode(t *testing.T, cfg *config.Config) *Node {
	t.Helper()
	provider, err := templates.Parse([]byte(testTemplates))
	require.NoError(t, err)
	n, err := OpenWithTemplates(context.Background(), cfg, provider)
	require.NoError(t, err)
	return n
}

func TestOpen_LoadsTemplateFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "templates.yml")
	require.NoError(t, os.WriteFile(path, []byte(testTemplates), 0644))

	cfg := testConfig(t, storage.BackendMemory, "")
	cfg.Templates.Path = path

	n, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer n.Close(context.Background())

	assert.Equal(t, []string{"docs"}, n.Templates.Names())
	assert.Nil(t, n.Client)
	assert.NoError(t, n.Ping(context.Background()))
}

func TestOpen_MissingTemplateFile(t *testing.T) {
	cfg := testConfig(t, storage.BackendMemory, "")
	cfg.Templates.Path = filepath.Join(t.TempDir(), "missing.yml")

	_, err := Open(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read templates")
}

func TestOpen_RedisUnreachable(t *testing.T) {
	cfg := testConfig(t, storage.BackendRedis, "redis://localhost:9")
	provider, err := templates.Parse([]byte(testTemplates))
	require.NoError(t, err)

	_, err = OpenWithTemplates(context.Background(), cfg, provider)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis not accessible")
}

func TestNode_ResolveBoard(t *testing.T) {
	n := openTestNode(t, testConfig(t, storage.BackendMemory, ""))
	defer n.Close(context.Background())
	ctx := context.Background()

	created, err := n.ResolveBoard(ctx, "main", "docs")
	require.NoError(t, err)

	t.Run("by full uid", func(t *testing.T) {
		p, err := n.ResolveBoard(ctx, created.UID().String(), "")
		require.NoError(t, err)
		assert.Equal(t, created.UID(), p.UID())
	})

	t.Run("by short uid", func(t *testing.T) {
		p, err := n.ResolveBoard(ctx, created.UID().String()[:8], "")
		require.NoError(t, err)
		assert.Equal(t, created.UID(), p.UID())
	})

	t.Run("by key", func(t *testing.T) {
		p, err := n.ResolveBoard(ctx, "main/docs", "")
		require.NoError(t, err)
		assert.Equal(t, created.UID(), p.UID())
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := n.ResolveBoard(ctx, "other/docs", "")
		assert.ErrorIs(t, err, facade.ErrBoardMissing)
	})

	t.Run("unknown uid", func(t *testing.T) {
		_, err := n.ResolveBoard(ctx, "ffffffff", "")
		assert.True(t, resolver.IsNotFoundError(err))
	})

	t.Run("empty reference", func(t *testing.T) {
		_, err := n.ResolveBoard(ctx, "", "")
		assert.Error(t, err)
	})
}

func TestNode_Unregister(t *testing.T) {
	n := openTestNode(t, testConfig(t, storage.BackendMemory, ""))
	defer n.Close(context.Background())
	ctx := context.Background()

	p, err := n.ResolveBoard(ctx, "main", "docs")
	require.NoError(t, err)

	require.NoError(t, n.Unregister(ctx, p.UID()))
	assert.Empty(t, n.Registry.List())
	assert.Empty(t, n.Host.Active())

	persisted, err := n.Host.Persisted(ctx)
	require.NoError(t, err)
	assert.NotContains(t, persisted, p.UID())

	_, err = n.ResolveBoard(ctx, "main/docs", "")
	assert.ErrorIs(t, err, facade.ErrBoardMissing)
}

func TestNode_RedisStateSurvivesReopen(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t, storage.BackendRedis, "redis://"+mr.Addr())
	ctx := context.Background()

	first := openTestNode(t, cfg)
	require.NotNil(t, first.Client)
	p, err := first.ResolveBoard(ctx, "main", "docs")
	require.NoError(t, err)
	ok, err := first.Facade.Push(ctx, &facade.PushRequest{BoardUID: p.UID(), LogicalType: "note", Data: "hello"})
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, first.Close(ctx))

	second := openTestNode(t, cfg)
	defer second.Close(ctx)

	ids := second.Registry.List()
	require.Len(t, ids, 1)
	assert.Equal(t, p.UID(), ids[0].UID)

	reopened, err := second.ResolveBoard(ctx, "main/docs", "")
	require.NoError(t, err)
	notes, err := facade.Pull[string](ctx, second.Facade, &facade.PullRequest{BoardUID: reopened.UID(), LogicalTypePattern: "^note$"})
	require.NoError(t, err)
	require.Len(t, notes, 1)
	require.NotNil(t, notes[0].Payload)
	assert.Equal(t, "hello", *notes[0].Payload)
}

func TestNode_ServeSignals(t *testing.T) {
	mr := miniredis.RunT(t)
	n := openTestNode(t, testConfig(t, storage.BackendRedis, "redis://"+mr.Addr()))
	defer n.Close(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p, err := n.ResolveBoard(ctx, "main", "docs")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- n.ServeSignals(ctx) }()

	okBefore := testutil.ToFloat64(metrics.SignalsDispatched.WithLabelValues(metrics.ResultOK))
	errBefore := testutil.ToFloat64(metrics.SignalsDispatched.WithLabelValues(metrics.ResultError))

	// The subscription starts asynchronously, so keep publishing until a signal lands.
	assert.Eventually(t, func() bool {
		_ = n.Client.PublishSignal(ctx, &blackboard.SignalMessage{Signal: "wake", BoardUID: p.UID()})
		_ = n.Client.PublishSignal(ctx, &blackboard.SignalMessage{Signal: "wake"})
		_ = n.Client.PublishSignal(ctx, &blackboard.SignalMessage{Signal: "wake", BoardUID: uuid.New()})
		return testutil.ToFloat64(metrics.SignalsDispatched.WithLabelValues(metrics.ResultOK)) >= okBefore+2 &&
			testutil.ToFloat64(metrics.SignalsDispatched.WithLabelValues(metrics.ResultError)) > errBefore
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("ServeSignals did not stop")
	}
}

func TestNode_ServeSignalsNeedsRedis(t *testing.T) {
	n := openTestNode(t, testConfig(t, storage.BackendMemory, ""))
	defer n.Close(context.Background())

	assert.Error(t, n.ServeSignals(context.Background()))
}

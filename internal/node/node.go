// Package node wires a configuration into a running board host: stores, the execution
// handler, the board registry and the storage facade. The democrite CLI and blackboardd
// both start from Open.
package node

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/dyluth/democrite/internal/board"
	"github.com/dyluth/democrite/internal/boardregistry"
	"github.com/dyluth/democrite/internal/config"
	"github.com/dyluth/democrite/internal/controller"
	"github.com/dyluth/democrite/internal/execution"
	"github.com/dyluth/democrite/internal/facade"
	"github.com/dyluth/democrite/internal/resolver"
	"github.com/dyluth/democrite/internal/storage"
	"github.com/dyluth/democrite/internal/templates"
	"github.com/dyluth/democrite/pkg/blackboard"
	"github.com/google/uuid"
)

// shutdownTimeout bounds the final flush of Close.
const shutdownTimeout = 30 * time.Second

// Node is one board host with everything it needs to serve requests.
type Node struct {
	Config    *config.Config
	Templates *templates.MemoryProvider
	// Client is nil with the memory backend.
	Client    *blackboard.Client
	Execution *execution.Handler
	Host      *board.Host
	Registry  *boardregistry.Registry
	Facade    *facade.Facade
}

// Open connects the stores selected by cfg and loads the board registry. cfg must be
// validated.
func Open(ctx context.Context, cfg *config.Config) (*Node, error) {
	provider, err := templates.LoadFile(cfg.Templates.Path)
	if err != nil {
		return nil, err
	}
	return OpenWithTemplates(ctx, cfg, provider)
}

// OpenWithTemplates is Open with templates already loaded.
func OpenWithTemplates(ctx context.Context, cfg *config.Config, provider *templates.MemoryProvider) (*Node, error) {
	n := &Node{Config: cfg, Templates: provider}

	var (
		repos    storage.RepositoryFactory
		state    storage.StateStore
		launcher execution.Launcher
		events   board.EventPublisher
	)
	switch cfg.Storage.Backend {
	case storage.BackendMemory:
		repos = storage.NewMemoryFactory()
		state = storage.NewMemoryStateStore()
		launcher = &execution.LocalLauncher{}
	case storage.BackendRedis:
		client, err := blackboard.NewClientFromURL(cfg.Redis.URL, cfg.Namespace)
		if err != nil {
			return nil, fmt.Errorf("failed to create blackboard client: %w", err)
		}
		if err := client.Ping(ctx); err != nil {
			client.Close()
			return nil, fmt.Errorf("redis not accessible at %s: %w", cfg.Redis.URL, err)
		}
		n.Client = client
		repos = storage.NewRedisFactory(client.RedisClient(), cfg.Namespace)
		state = storage.NewRedisStateStore(client.RedisClient())
		launcher = execution.NewRedisLauncher(client)
		events = client
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Storage.Backend)
	}

	clock := blackboard.SystemClock{}
	n.Execution = execution.NewHandler(launcher, cfg.Execution.Buffer, clock)

	host, err := board.NewHost(board.Deps{
		Namespace:    cfg.Namespace,
		Repositories: repos,
		State:        state,
		Templates:    provider,
		Controllers:  controller.NewFactory(cfg.Namespace, state, clock),
		Execution:    n.Execution,
		Events:       events,
		Clock:        clock,
		Settings:     cfg.BoardSettings(),
	})
	if err != nil {
		n.release(ctx)
		return nil, err
	}
	n.Host = host

	registry, err := boardregistry.New(ctx, host)
	if err != nil {
		n.release(ctx)
		return nil, fmt.Errorf("failed to load board registry: %w", err)
	}
	n.Registry = registry
	n.Facade = facade.New(host, registry)

	log.Printf("[Node] Opened namespace %s (backend=%s, templates=%d, boards=%d)",
		cfg.Namespace, cfg.Storage.Backend, len(provider.Names()), len(registry.List()))
	return n, nil
}

// Ping checks the store is reachable. The memory backend is always reachable.
func (n *Node) Ping(ctx context.Context) error {
	if n.Client == nil {
		return nil
	}
	return n.Client.Ping(ctx)
}

// ResolveBoard returns the board a command line names. With a template key, ref is a
// board name and the board is created on first use. Without one, ref is a full or short
// board uid, or a "name/template" key of a registered board.
func (n *Node) ResolveBoard(ctx context.Context, ref, templateKey string) (*facade.Proxy, error) {
	if ref == "" {
		return nil, fmt.Errorf("board reference cannot be empty")
	}
	if templateKey != "" {
		return n.Facade.Board(ctx, ref, templateKey)
	}

	if name, tmpl, ok := strings.Cut(ref, "/"); ok {
		id, found := n.Registry.TryGetByName(name, tmpl)
		if !found {
			return nil, &facade.BoardMissingError{Name: name, TemplateKey: tmpl}
		}
		return n.Facade.BoardByUID(ctx, id.UID)
	}

	ids := n.Registry.List()
	uids := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		uids = append(uids, id.UID)
	}
	uid, err := resolver.Resolve(ref, uids, "board")
	if err != nil {
		return nil, err
	}
	return n.Facade.BoardByUID(ctx, uid)
}

// Unregister removes a board: its registry entry, its cached proxy and its persisted
// state. Records already written to repositories are left in place.
func (n *Node) Unregister(ctx context.Context, uid uuid.UUID) error {
	if err := n.Registry.Unregister(ctx, uid); err != nil {
		return err
	}
	n.Facade.Forget(uid)
	return n.Host.Forget(ctx, uid)
}

// Close flushes every board, drains queued sequence triggers and releases the Redis
// connection.
func (n *Node) Close(ctx context.Context) error {
	// Flushing must outlive a cancelled caller.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	var errs []error
	if n.Host != nil {
		if err := n.Host.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to close boards: %w", err))
		}
	}
	errs = append(errs, n.release(ctx))
	return errors.Join(errs...)
}

func (n *Node) release(ctx context.Context) error {
	var errs []error
	if n.Execution != nil {
		if err := n.Execution.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to drain execution queue: %w", err))
		}
	}
	if n.Client != nil {
		if err := n.Client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis client: %w", err))
		}
	}
	return errors.Join(errs...)
}

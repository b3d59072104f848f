package instance

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	dockerpkg "github.com/dyluth/democrite/internal/docker"
	"github.com/dyluth/democrite/pkg/blackboard"
)

// Remover stops and removes the resources of a namespace. *client.Client implements it.
type Remover interface {
	Lister
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	NetworkList(ctx context.Context, options types.NetworkListOptions) ([]types.NetworkResource, error)
	NetworkRemove(ctx context.Context, networkID string) error
}

// Step reports progress of a multi-step operation.
type Step func(format string, a ...any)

// Up starts a Redis store for namespace on the next free port and waits until it answers.
// A failed start is rolled back.
func Up(ctx context.Context, cli *client.Client, namespace, image string, step Step) (*StoreInfo, error) {
	if err := ValidateName(namespace); err != nil {
		return nil, err
	}

	collision, err := CheckNameCollision(ctx, cli, namespace)
	if err != nil {
		return nil, err
	}
	if collision {
		return nil, fmt.Errorf("store for namespace '%s' already exists", namespace)
	}

	info, err := createStore(ctx, cli, namespace, image, step)
	if err != nil {
		step("Store creation failed. Rolling back...\n")
		if rollbackErr := Down(ctx, cli, namespace, step); rollbackErr != nil {
			step("Warning: rollback encountered errors: %v\n", rollbackErr)
		}
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	return info, nil
}

func createStore(ctx context.Context, cli *client.Client, namespace, image string, step Step) (*StoreInfo, error) {
	port, err := FindNextAvailablePort(ctx, cli)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate Redis port: %w", err)
	}
	step("Allocated Redis port: %d\n", port)

	runID := dockerpkg.GenerateRunID()
	networkName := dockerpkg.NetworkName(namespace)
	if _, err := cli.NetworkCreate(ctx, networkName, types.NetworkCreate{
		Driver: "bridge",
		Labels: dockerpkg.BuildLabels(namespace, runID, ""),
	}); err != nil {
		return nil, fmt.Errorf("failed to create network '%s': %w", networkName, err)
	}
	step("Created network: %s\n", networkName)

	labels := dockerpkg.BuildLabels(namespace, runID, dockerpkg.ComponentRedis)
	labels[dockerpkg.LabelRedisPort] = fmt.Sprintf("%d", port)

	name := dockerpkg.RedisContainerName(namespace)
	resp, err := cli.ContainerCreate(ctx, &container.Config{
		Image:        image,
		Labels:       labels,
		ExposedPorts: nat.PortSet{"6379/tcp": struct{}{}},
	}, &container.HostConfig{
		NetworkMode: container.NetworkMode(networkName),
		PortBindings: nat.PortMap{
			"6379/tcp": []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: fmt.Sprintf("%d", port)}},
		},
	}, nil, nil, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis container: %w", err)
	}
	if err := cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("failed to start Redis container: %w", err)
	}
	step("Started Redis container: %s (port %d)\n", name, port)

	url := GetRedisURL(port)
	if err := WaitReady(ctx, url, namespace, 30*time.Second); err != nil {
		return nil, err
	}

	return &StoreInfo{Namespace: namespace, Status: StatusRunning, Port: port, RedisURL: url, Uptime: "0s"}, nil
}

// WaitReady pings the Redis at url every 200ms until it answers or timeout elapses.
func WaitReady(ctx context.Context, url, namespace string, timeout time.Duration) error {
	bb, err := blackboard.NewClientFromURL(url, namespace)
	if err != nil {
		return err
	}
	defer bb.Close()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		if err := bb.Ping(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for Redis at %s after %v", url, timeout)
		case <-ticker.C:
		}
	}
}

// Down stops and removes every container and network of namespace. It fails when the
// namespace has no containers.
func Down(ctx context.Context, cli Remover, namespace string, step Step) error {
	filter := dockerpkg.NamespaceFilter(namespace, "")

	containers, err := cli.ContainerList(ctx, container.ListOptions{All: true, Filters: filter})
	if err != nil {
		return fmt.Errorf("failed to list containers: %w", err)
	}

	timeout := 10
	for _, c := range containers {
		step("Stopping %s...\n", containerName(c))
		if err := cli.ContainerStop(ctx, c.ID, container.StopOptions{Timeout: &timeout}); err != nil {
			step("Warning: failed to stop %s: %v\n", containerName(c), err)
		}
		step("Removing %s...\n", containerName(c))
		if err := cli.ContainerRemove(ctx, c.ID, container.RemoveOptions{Force: true, RemoveVolumes: true}); err != nil {
			return fmt.Errorf("failed to remove %s: %w", containerName(c), err)
		}
	}

	networks, err := cli.NetworkList(ctx, types.NetworkListOptions{Filters: filter})
	if err != nil {
		return fmt.Errorf("failed to list networks: %w", err)
	}
	for _, n := range networks {
		step("Removing network %s...\n", n.Name)
		if err := cli.NetworkRemove(ctx, n.ID); err != nil {
			return fmt.Errorf("failed to remove network %s: %w", n.Name, err)
		}
	}

	if len(containers) == 0 && len(networks) == 0 {
		return fmt.Errorf("no store found for namespace '%s'", namespace)
	}
	return nil
}

func containerName(c types.Container) string {
	if len(c.Names) > 0 {
		return c.Names[0]
	}
	return c.ID
}

package instance

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/docker/docker/api/types/container"
	dockerpkg "github.com/dyluth/democrite/internal/docker"
)

const (
	// Port range for Redis containers (allows 100 concurrent namespaces)
	startPort = 6379
	endPort   = 6478
)

// FindNextAvailablePort returns the first port of 6379-6478 that no democrite Redis
// container claims and that can be bound on the host.
func FindNextAvailablePort(ctx context.Context, cli Lister) (int, error) {
	return findPort(ctx, cli, isPortBindable)
}

func findPort(ctx context.Context, cli Lister, bindable func(int) bool) (int, error) {
	filter := dockerpkg.ProjectFilter()
	filter.Add("label", fmt.Sprintf("%s=%s", dockerpkg.LabelComponent, dockerpkg.ComponentRedis))

	containers, err := cli.ContainerList(ctx, container.ListOptions{All: true, Filters: filter})
	if err != nil {
		return 0, fmt.Errorf("failed to query Docker containers: %w", err)
	}

	used := make(map[int]bool)
	for _, c := range containers {
		if port, err := strconv.Atoi(c.Labels[dockerpkg.LabelRedisPort]); err == nil {
			used[port] = true
		}
	}

	for port := startPort; port <= endPort; port++ {
		if !used[port] && bindable(port) {
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available Redis ports (range %d-%d exhausted)", startPort, endPort)
}

func isPortBindable(port int) bool {
	listener, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", port))
	if err != nil {
		return false
	}
	listener.Close()
	return true
}

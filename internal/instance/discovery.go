package instance

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	dockerpkg "github.com/dyluth/democrite/internal/docker"
)

// Lister lists containers. *client.Client implements it.
type Lister interface {
	ContainerList(ctx context.Context, options container.ListOptions) ([]types.Container, error)
}

// GetStoreRedisPort returns the published Redis port of a namespace's store.
func GetStoreRedisPort(ctx context.Context, cli Lister, namespace string) (int, error) {
	containers, err := cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: dockerpkg.NamespaceFilter(namespace, dockerpkg.ComponentRedis),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list containers: %w", err)
	}
	if len(containers) == 0 {
		return 0, fmt.Errorf("Redis container not found for namespace '%s'", namespace)
	}

	portStr, ok := containers[0].Labels[dockerpkg.LabelRedisPort]
	if !ok {
		return 0, fmt.Errorf("Redis port label missing for namespace '%s'", namespace)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, fmt.Errorf("invalid Redis port '%s': %w", portStr, err)
	}
	return port, nil
}

// ListStores returns every namespace store known to Docker, sorted by namespace. Uptime
// is measured against now.
func ListStores(ctx context.Context, cli Lister, now time.Time) ([]StoreInfo, error) {
	containers, err := cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: dockerpkg.ProjectFilter(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	byNamespace := make(map[string][]types.Container)
	for _, c := range containers {
		ns := c.Labels[dockerpkg.LabelNamespace]
		byNamespace[ns] = append(byNamespace[ns], c)
	}

	infos := make([]StoreInfo, 0, len(byNamespace))
	for ns, cs := range byNamespace {
		info := StoreInfo{Namespace: ns, Status: DetermineStatus(cs), Uptime: "-"}
		for _, c := range cs {
			if port, err := strconv.Atoi(c.Labels[dockerpkg.LabelRedisPort]); err == nil {
				info.Port = port
				info.RedisURL = GetRedisURL(port)
			}
		}
		if info.Status == StatusRunning {
			info.Uptime = FormatDuration(now.Sub(time.Unix(cs[0].Created, 0)))
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Namespace < infos[j].Namespace })
	return infos, nil
}

// FormatDuration renders an uptime like "3d 4h", "2h 5m" or "42s".
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	default:
		return fmt.Sprintf("%dd %dh", int(d.Hours())/24, int(d.Hours())%24)
	}
}

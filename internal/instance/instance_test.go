package instance

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	dockerpkg "github.com/dyluth/democrite/internal/docker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDocker filters its containers and networks by label the way the daemon does.
type fakeDocker struct {
	containers []types.Container
	networks   []types.NetworkResource
	stopped    []string
	removed    []string
}

func matches(labels map[string]string, args filters.Args) bool {
	for _, want := range args.Get("label") {
		k, v, _ := strings.Cut(want, "=")
		if labels[k] != v {
			return false
		}
	}
	return true
}

func (f *fakeDocker) ContainerList(_ context.Context, options container.ListOptions) ([]types.Container, error) {
	var out []types.Container
	for _, c := range f.containers {
		if matches(c.Labels, options.Filters) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeDocker) ContainerStop(_ context.Context, id string, _ container.StopOptions) error {
	f.stopped = append(f.stopped, id)
	return nil
}

func (f *fakeDocker) ContainerRemove(_ context.Context, id string, _ container.RemoveOptions) error {
	f.removed = append(f.removed, id)
	return nil
}

func (f *fakeDocker) NetworkList(_ context.Context, options types.NetworkListOptions) ([]types.NetworkResource, error) {
	var out []types.NetworkResource
	for _, n := range f.networks {
		if matches(n.Labels, options.Filters) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeDocker) NetworkRemove(_ context.Context, id string) error {
	f.removed = append(f.removed, id)
	return nil
}

func redisContainer(namespace string, port int, state string, created time.Time) types.Container {
	labels := dockerpkg.BuildLabels(namespace, "run", dockerpkg.ComponentRedis)
	labels[dockerpkg.LabelRedisPort] = fmt.Sprintf("%d", port)
	return types.Container{
		ID:      "c-" + namespace,
		Names:   []string{"/" + dockerpkg.RedisContainerName(namespace)},
		Labels:  labels,
		State:   state,
		Created: created.Unix(),
	}
}

func noStep(string, ...any) {}

func TestValidateName(t *testing.T) {
	for _, ok := range []string{"a", "prod", "team-1"} {
		assert.NoError(t, ValidateName(ok), ok)
	}
	for _, bad := range []string{"", "-prod", "prod-", "Prod", "my_ns", strings.Repeat("a", 64)} {
		assert.Error(t, ValidateName(bad), bad)
	}
}

func TestDetermineStatus(t *testing.T) {
	assert.Equal(t, StatusStopped, DetermineStatus(nil))
	assert.Equal(t, StatusRunning, DetermineStatus([]types.Container{{State: "running"}, {State: "running"}}))
	assert.Equal(t, StatusDegraded, DetermineStatus([]types.Container{{State: "running"}, {State: "exited"}}))
	assert.Equal(t, StatusStopped, DetermineStatus([]types.Container{{State: "exited"}}))
}

func TestDiscovery(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	cli := &fakeDocker{containers: []types.Container{
		redisContainer("prod", 6380, "running", now.Add(-2*time.Hour)),
		redisContainer("dev", 6379, "exited", now.Add(-time.Hour)),
	}}

	port, err := GetStoreRedisPort(ctx, cli, "prod")
	require.NoError(t, err)
	assert.Equal(t, 6380, port)

	_, err = GetStoreRedisPort(ctx, cli, "missing")
	assert.ErrorContains(t, err, "Redis container not found")

	collision, err := CheckNameCollision(ctx, cli, "dev")
	require.NoError(t, err)
	assert.True(t, collision)
	collision, err = CheckNameCollision(ctx, cli, "qa")
	require.NoError(t, err)
	assert.False(t, collision)

	stores, err := ListStores(ctx, cli, now)
	require.NoError(t, err)
	require.Len(t, stores, 2)
	assert.Equal(t, "dev", stores[0].Namespace)
	assert.Equal(t, StatusStopped, stores[0].Status)
	assert.Equal(t, "-", stores[0].Uptime)
	assert.Equal(t, "prod", stores[1].Namespace)
	assert.Equal(t, StatusRunning, stores[1].Status)
	assert.Equal(t, "2h 0m", stores[1].Uptime)
	assert.True(t, strings.HasSuffix(stores[1].RedisURL, ":6380"))
}

func TestFindPort(t *testing.T) {
	ctx := context.Background()
	cli := &fakeDocker{containers: []types.Container{
		redisContainer("a", 6379, "running", time.Now()),
		redisContainer("b", 6380, "running", time.Now()),
	}}

	port, err := findPort(ctx, cli, func(int) bool { return true })
	require.NoError(t, err)
	assert.Equal(t, 6381, port)

	port, err = findPort(ctx, cli, func(p int) bool { return p != 6381 })
	require.NoError(t, err)
	assert.Equal(t, 6382, port)

	_, err = findPort(ctx, cli, func(int) bool { return false })
	assert.ErrorContains(t, err, "exhausted")
}

func TestDown(t *testing.T) {
	ctx := context.Background()
	cli := &fakeDocker{
		containers: []types.Container{
			redisContainer("prod", 6380, "running", time.Now()),
			redisContainer("dev", 6379, "running", time.Now()),
		},
		networks: []types.NetworkResource{
			{ID: "n-prod", Name: dockerpkg.NetworkName("prod"), Labels: dockerpkg.BuildLabels("prod", "run", "")},
		},
	}

	require.NoError(t, Down(ctx, cli, "prod", noStep))
	assert.Equal(t, []string{"c-prod"}, cli.stopped)
	assert.Equal(t, []string{"c-prod", "n-prod"}, cli.removed)

	assert.ErrorContains(t, Down(ctx, &fakeDocker{}, "prod", noStep), "no store found")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "42s", FormatDuration(42*time.Second))
	assert.Equal(t, "5m", FormatDuration(5*time.Minute+3*time.Second))
	assert.Equal(t, "2h 5m", FormatDuration(2*time.Hour+5*time.Minute))
	assert.Equal(t, "3d 4h", FormatDuration(76*time.Hour))
}

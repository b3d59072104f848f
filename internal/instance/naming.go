// Package instance manages the local Redis store of a namespace: naming, port
// allocation, discovery, status and the store container lifecycle.
package instance

import (
	"context"
	"fmt"
	"regexp"

	"github.com/docker/docker/api/types/container"
	dockerpkg "github.com/dyluth/democrite/internal/docker"
)

// MaxNameLength is the maximum length of a namespace used in container names (DNS-compatible)
const MaxNameLength = 63

// NamePattern matches DNS-compatible names: lowercase alphanumeric, hyphens allowed but
// not at start or end.
var NamePattern = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)

// ValidateName checks a namespace can name Docker resources.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("namespace cannot be empty")
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("namespace too long: %d characters (max: %d)", len(name), MaxNameLength)
	}
	if !NamePattern.MatchString(name) {
		return fmt.Errorf("invalid namespace '%s': must be lowercase alphanumeric with hyphens (not at start/end)", name)
	}
	return nil
}

// CheckNameCollision reports whether containers already exist for namespace.
func CheckNameCollision(ctx context.Context, cli Lister, namespace string) (bool, error) {
	containers, err := cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: dockerpkg.NamespaceFilter(namespace, ""),
	})
	if err != nil {
		return false, fmt.Errorf("failed to check for name collision: %w", err)
	}
	return len(containers) > 0, nil
}

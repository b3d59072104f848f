package docker

import (
	"fmt"

	"github.com/docker/docker/api/types/filters"
	"github.com/google/uuid"
)

// Label keys put on every democrite resource
const (
	LabelProject   = "democrite.project"
	LabelNamespace = "democrite.namespace"
	LabelRunID     = "democrite.run_id"
	LabelComponent = "democrite.component"
	LabelRedisPort = "democrite.redis.port"
)

// ComponentRedis labels the store container.
const ComponentRedis = "redis"

// BuildLabels creates the standard label set of a namespace's resources. component is
// omitted when empty.
func BuildLabels(namespace, runID, component string) map[string]string {
	labels := map[string]string{
		LabelProject:   "true",
		LabelNamespace: namespace,
		LabelRunID:     runID,
	}
	if component != "" {
		labels[LabelComponent] = component
	}
	return labels
}

// GenerateRunID creates a new id for one `democrite store up`.
func GenerateRunID() string {
	return uuid.New().String()
}

// ProjectFilter selects every democrite resource.
func ProjectFilter() filters.Args {
	return filters.NewArgs(filters.Arg("label", fmt.Sprintf("%s=true", LabelProject)))
}

// NamespaceFilter selects the resources of one namespace, optionally of one component.
func NamespaceFilter(namespace, component string) filters.Args {
	args := filters.NewArgs(filters.Arg("label", fmt.Sprintf("%s=%s", LabelNamespace, namespace)))
	if component != "" {
		args.Add("label", fmt.Sprintf("%s=%s", LabelComponent, component))
	}
	return args
}

// NetworkName returns the Docker network name of a namespace
func NetworkName(namespace string) string {
	return fmt.Sprintf("democrite-network-%s", namespace)
}

// RedisContainerName returns the Redis container name of a namespace
func RedisContainerName(namespace string) string {
	return fmt.Sprintf("democrite-redis-%s", namespace)
}

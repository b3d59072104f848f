package instance

import (
	"fmt"
	"os"
)

// GetRedisHost returns "host.docker.internal" when running inside a container, so the
// host's published ports are reachable, and "localhost" otherwise.
func GetRedisHost() string {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return "host.docker.internal"
	}
	return "localhost"
}

// GetRedisURL constructs the Redis URL of a published store port.
func GetRedisURL(port int) string {
	return fmt.Sprintf("redis://%s:%d", GetRedisHost(), port)
}

package instance

import (
	"github.com/docker/docker/api/types"
)

// Status represents the health of a namespace's store
type Status string

const (
	// StatusRunning indicates all containers are running
	StatusRunning Status = "Running"

	// StatusDegraded indicates some containers are stopped
	StatusDegraded Status = "Degraded"

	// StatusStopped indicates no container is running
	StatusStopped Status = "Stopped"
)

// DetermineStatus derives the store status from its containers.
func DetermineStatus(containers []types.Container) Status {
	running := 0
	for _, c := range containers {
		if c.State == "running" {
			running++
		}
	}

	switch {
	case len(containers) > 0 && running == len(containers):
		return StatusRunning
	case running > 0:
		return StatusDegraded
	default:
		return StatusStopped
	}
}

// StoreInfo describes the store of one namespace
type StoreInfo struct {
	Namespace string `json:"namespace"`
	Status    Status `json:"status"`
	Port      int    `json:"port,omitempty"`
	RedisURL  string `json:"redis_url,omitempty"`
	Uptime    string `json:"uptime"`
}

package blackboard

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced so that several Democrite
// deployments can share a single Redis server.
//
// Key pattern: democrite:{namespace}:{entity}:{id}
// Channel pattern: democrite:{namespace}:{scope}:events

// BoardStateKey returns the Redis key holding a board's persisted state.
// Pattern: democrite:{namespace}:board:{board_uid}:state
func BoardStateKey(namespace string, boardUID uuid.UUID) string {
	return fmt.Sprintf("democrite:%s:board:%s:state", namespace, boardUID)
}

// BoardStatePattern matches every board state key of a namespace (for SCAN).
func BoardStatePattern(namespace string) string {
	return fmt.Sprintf("democrite:%s:board:*:state", namespace)
}

// ParseBoardStateKey extracts the board uid from a key built by BoardStateKey.
func ParseBoardStateKey(namespace, key string) (uuid.UUID, bool) {
	prefix := fmt.Sprintf("democrite:%s:board:", namespace)
	if !strings.HasPrefix(key, prefix) || !strings.HasSuffix(key, ":state") {
		return uuid.Nil, false
	}
	uid, err := uuid.Parse(strings.TrimSuffix(strings.TrimPrefix(key, prefix), ":state"))
	if err != nil {
		return uuid.Nil, false
	}
	return uid, true
}

// RegistryStateKey returns the Redis key holding the board registry state.
// Pattern: democrite:{namespace}:registry
func RegistryStateKey(namespace string) string {
	return fmt.Sprintf("democrite:%s:registry", namespace)
}

// ControllerStateKey returns the Redis key of a controller's private state for one board.
// Pattern: democrite:{namespace}:board:{board_uid}:controller:{name}
func ControllerStateKey(namespace string, boardUID uuid.UUID, name string) string {
	return fmt.Sprintf("democrite:%s:board:%s:controller:%s", namespace, boardUID, name)
}

// RecordKey returns the Redis hash key of a record stored in one of a board's repositories.
// Pattern: democrite:{namespace}:board:{board_uid}:repo:{repository}:record:{record_uid}
func RecordKey(namespace string, boardUID uuid.UUID, repository string, recordUID uuid.UUID) string {
	return fmt.Sprintf("democrite:%s:board:%s:repo:%s:record:%s", namespace, boardUID, repository, recordUID)
}

// RecordPattern matches every record key of a board repository (for SCAN).
func RecordPattern(namespace string, boardUID uuid.UUID, repository string) string {
	return fmt.Sprintf("democrite:%s:board:%s:repo:%s:record:*", namespace, boardUID, repository)
}

// BoardEventsChannel returns the Pub/Sub channel carrying a board's committed events.
// Pattern: democrite:{namespace}:board:{board_uid}:events
func BoardEventsChannel(namespace string, boardUID uuid.UUID) string {
	return fmt.Sprintf("democrite:%s:board:%s:events", namespace, boardUID)
}

// AllBoardEventsPattern matches the event channels of every board (for PSUBSCRIBE).
func AllBoardEventsPattern(namespace string) string {
	return fmt.Sprintf("democrite:%s:board:*:events", namespace)
}

// SignalsChannel returns the Pub/Sub channel carrying signals.
// Pattern: democrite:{namespace}:signals
func SignalsChannel(namespace string) string {
	return fmt.Sprintf("democrite:%s:signals", namespace)
}

// SequenceTriggersChannel returns the Pub/Sub channel carrying fired sequence triggers.
// Pattern: democrite:{namespace}:sequence_triggers
func SequenceTriggersChannel(namespace string) string {
	return fmt.Sprintf("democrite:%s:sequence_triggers", namespace)
}

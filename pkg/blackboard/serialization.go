package blackboard

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Serialization helpers for converting between Go structs and Redis hashes
//
// Redis stores data as string-to-string maps (hashes). Metadata fields map to individual
// hash fields so they stay queryable; the payload is JSON-encoded into a single field.

// RecordToHash converts a DataRecord to a Redis hash.
func RecordToHash(r *DataRecord) (map[string]interface{}, error) {
	payload := ""
	hasPayload := "0"
	if r.Payload != nil {
		data, err := json.Marshal(r.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
		payload = string(data)
		hasPayload = "1"
	}

	hash := map[string]interface{}{
		"uid":            r.UID.String(),
		"logical_type":   r.LogicalType,
		"display_name":   r.DisplayName,
		"contains_type":  r.ContainsType,
		"status":         strconv.Itoa(int(r.Status)),
		"created_at":     formatTime(r.CreatedAt),
		"creator":        r.CreatorIdentity,
		"updated_at":     formatTime(r.UpdatedAt),
		"last_updater":   r.LastUpdaterIdentity,
		"container_type": string(r.ContainerType),
		"has_payload":    hasPayload,
		"payload":        payload,
	}

	return hash, nil
}

// HashToRecord converts a Redis hash to a DataRecord. The payload comes back as
// json.RawMessage; use ProjectTo to read it as a concrete type.
func HashToRecord(hash map[string]string) (*DataRecord, error) {
	uid, err := uuid.Parse(hash["uid"])
	if err != nil {
		return nil, fmt.Errorf("invalid uid field: %w", err)
	}

	status, err := strconv.Atoi(hash["status"])
	if err != nil {
		return nil, fmt.Errorf("invalid status field: %w", err)
	}

	createdAt, err := parseTime(hash["created_at"])
	if err != nil {
		return nil, fmt.Errorf("invalid created_at field: %w", err)
	}
	updatedAt, err := parseTime(hash["updated_at"])
	if err != nil {
		return nil, fmt.Errorf("invalid updated_at field: %w", err)
	}

	record := &DataRecord{
		RecordMetadata: RecordMetadata{
			UID:                 uid,
			LogicalType:         hash["logical_type"],
			DisplayName:         hash["display_name"],
			ContainsType:        hash["contains_type"],
			Status:              RecordStatus(status),
			CreatedAt:           createdAt,
			CreatorIdentity:     hash["creator"],
			UpdatedAt:           updatedAt,
			LastUpdaterIdentity: hash["last_updater"],
		},
		ContainerType: RecordContainerType(hash["container_type"]),
	}

	if hash["has_payload"] == "1" {
		record.Payload = json.RawMessage(hash["payload"])
	}

	return record, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

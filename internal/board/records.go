package board

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/dyluth/democrite/pkg/blackboard"
	"github.com/google/uuid"
)

// RecordRegistry indexes the metadata of every record of a board by uid.
// It is not safe for concurrent use; the board guards it with its metadata lock.
type RecordRegistry struct {
	records map[uuid.UUID]blackboard.RecordMetadata
}

// NewRecordRegistry returns an empty registry.
func NewRecordRegistry() *RecordRegistry {
	return &RecordRegistry{records: make(map[uuid.UUID]blackboard.RecordMetadata)}
}

// Push inserts or updates the metadata of record. An existing entry keeps its creation
// time and creator. The update time is always set to now.
func (r *RecordRegistry) Push(record *blackboard.DataRecord, now time.Time) blackboard.RecordMetadata {
	meta := record.Metadata()
	if existing, ok := r.records[meta.UID]; ok {
		meta.CreatedAt = existing.CreatedAt
		meta.CreatorIdentity = existing.CreatorIdentity
	} else if meta.CreatedAt.IsZero() {
		meta.CreatedAt = now
	}
	meta.UpdatedAt = now

	r.records[meta.UID] = meta
	return meta
}

// Pop removes an entry and returns it, or nil when the uid is unknown.
func (r *RecordRegistry) Pop(uid uuid.UUID) *blackboard.RecordMetadata {
	meta, ok := r.records[uid]
	if !ok {
		return nil
	}
	delete(r.records, uid)
	return &meta
}

// ChangeStatus updates the status of an entry. It returns nil when the uid is unknown
// or the entry already has that status.
func (r *RecordRegistry) ChangeStatus(uid uuid.UUID, status blackboard.RecordStatus, now time.Time) *blackboard.RecordMetadata {
	meta, ok := r.records[uid]
	if !ok || meta.Status == status {
		return nil
	}
	meta.Status = status
	meta.UpdatedAt = now
	r.records[uid] = meta
	return &meta
}

// ChangeDisplayName renames an entry. It returns nil when the uid is unknown or the name
// is unchanged.
func (r *RecordRegistry) ChangeDisplayName(uid uuid.UUID, name string, now time.Time) *blackboard.RecordMetadata {
	meta, ok := r.records[uid]
	if !ok || meta.DisplayName == name {
		return nil
	}
	meta.DisplayName = name
	meta.UpdatedAt = now
	r.records[uid] = meta
	return &meta
}

// Get returns the entry of uid.
func (r *RecordRegistry) Get(uid uuid.UUID) (blackboard.RecordMetadata, bool) {
	meta, ok := r.records[uid]
	return meta, ok
}

// Len returns the number of entries.
func (r *RecordRegistry) Len() int {
	return len(r.records)
}

// All returns every entry ordered by creation time, then uid.
func (r *RecordRegistry) All() []blackboard.RecordMetadata {
	out := make([]blackboard.RecordMetadata, 0, len(r.records))
	for _, meta := range r.records {
		out = append(out, meta)
	}
	sortMetadata(out)
	return out
}

// MarshalJSON encodes the registry as an ordered list of entries.
func (r *RecordRegistry) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.All())
}

// UnmarshalJSON restores a registry encoded by MarshalJSON.
func (r *RecordRegistry) UnmarshalJSON(data []byte) error {
	var list []blackboard.RecordMetadata
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	r.records = make(map[uuid.UUID]blackboard.RecordMetadata, len(list))
	for _, meta := range list {
		r.records[meta.UID] = meta
	}
	return nil
}

func sortMetadata(list []blackboard.RecordMetadata) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].UID.String() < list[j].UID.String()
	})
}

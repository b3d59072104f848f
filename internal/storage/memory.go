package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"sync"

	"github.com/dyluth/democrite/pkg/blackboard"
	"github.com/google/uuid"
)

// MemoryRepository keeps records in a map. Payloads are stored as JSON so reads behave
// like the Redis backend.
type MemoryRepository struct {
	name    string
	mu      sync.RWMutex
	records map[uuid.UUID]*blackboard.DataRecord
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository(name string) *MemoryRepository {
	return &MemoryRepository{
		name:    name,
		records: make(map[uuid.UUID]*blackboard.DataRecord),
	}
}

func (r *MemoryRepository) Name() string {
	return r.name
}

func (r *MemoryRepository) PushRecord(ctx context.Context, record *blackboard.DataRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stored := *record
	if record.Payload != nil {
		data, err := json.Marshal(record.Payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		stored.Payload = json.RawMessage(data)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[record.UID] = &stored
	return nil
}

func (r *MemoryRepository) DeleteRecord(ctx context.Context, uid uuid.UUID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.records[uid]
	delete(r.records, uid)
	return ok, nil
}

func (r *MemoryRepository) GetRecord(ctx context.Context, uid uuid.UUID) (*blackboard.DataRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.records[uid]
	if !ok {
		return nil, fmt.Errorf("record %s: %w", uid, blackboard.ErrNotFound)
	}
	cp := *record
	return &cp, nil
}

func (r *MemoryRepository) GetRecords(ctx context.Context, uids ...uuid.UUID) ([]*blackboard.DataRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*blackboard.DataRecord, 0, len(uids))
	for _, uid := range uids {
		if record, ok := r.records[uid]; ok {
			cp := *record
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Len returns the number of stored records.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// MemoryFactory hands out one MemoryRepository per (board, repository name).
type MemoryFactory struct {
	mu    sync.Mutex
	repos map[string]*MemoryRepository
}

// NewMemoryFactory creates an empty factory.
func NewMemoryFactory() *MemoryFactory {
	return &MemoryFactory{repos: make(map[string]*MemoryRepository)}
}

func (f *MemoryFactory) GetRepository(ctx context.Context, boardUID uuid.UUID, cfg blackboard.StorageConfig) (Repository, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := repositoryName(cfg)
	key := boardUID.String() + "/" + name

	f.mu.Lock()
	defer f.mu.Unlock()
	repo, ok := f.repos[key]
	if !ok {
		repo = NewMemoryRepository(name)
		f.repos[key] = repo
	}
	return repo, nil
}

// MemoryStateStore keeps JSON documents in a map.
type MemoryStateStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewMemoryStateStore creates an empty store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{docs: make(map[string][]byte)}
}

func (s *MemoryStateStore) Load(ctx context.Context, key string, v any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	data, ok := s.docs[key]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to decode state %s: %w", key, err)
	}
	return true, nil
}

func (s *MemoryStateStore) Save(ctx context.Context, key string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode state %s: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[key] = data
	return nil
}

func (s *MemoryStateStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, key)
	return nil
}

func (s *MemoryStateStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for k := range s.docs {
		if ok, _ := path.Match(pattern, k); ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

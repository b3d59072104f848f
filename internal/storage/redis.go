package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dyluth/democrite/pkg/blackboard"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisRepository stores each record as a hash at
// democrite:{namespace}:board:{board}:repo:{name}:record:{uid}.
type RedisRepository struct {
	rdb       *redis.Client
	namespace string
	boardUID  uuid.UUID
	name      string
}

// NewRedisRepository creates a repository for one board.
func NewRedisRepository(rdb *redis.Client, namespace string, boardUID uuid.UUID, name string) *RedisRepository {
	return &RedisRepository{
		rdb:       rdb,
		namespace: namespace,
		boardUID:  boardUID,
		name:      name,
	}
}

func (r *RedisRepository) Name() string {
	return r.name
}

func (r *RedisRepository) key(uid uuid.UUID) string {
	return blackboard.RecordKey(r.namespace, r.boardUID, r.name, uid)
}

// PushRecord replaces the whole hash so fields from a previous version never linger.
func (r *RedisRepository) PushRecord(ctx context.Context, record *blackboard.DataRecord) error {
	hash, err := blackboard.RecordToHash(record)
	if err != nil {
		return fmt.Errorf("failed to serialize record: %w", err)
	}

	key := r.key(record.UID)
	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, hash)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write record to Redis: %w", err)
	}
	return nil
}

func (r *RedisRepository) DeleteRecord(ctx context.Context, uid uuid.UUID) (bool, error) {
	n, err := r.rdb.Del(ctx, r.key(uid)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to delete record from Redis: %w", err)
	}
	return n > 0, nil
}

func (r *RedisRepository) GetRecord(ctx context.Context, uid uuid.UUID) (*blackboard.DataRecord, error) {
	hash, err := r.rdb.HGetAll(ctx, r.key(uid)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read record from Redis: %w", err)
	}
	// HGETALL on a missing key returns an empty map, not redis.Nil
	if len(hash) == 0 {
		return nil, fmt.Errorf("record %s: %w", uid, blackboard.ErrNotFound)
	}

	record, err := blackboard.HashToRecord(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize record: %w", err)
	}
	return record, nil
}

func (r *RedisRepository) GetRecords(ctx context.Context, uids ...uuid.UUID) ([]*blackboard.DataRecord, error) {
	if len(uids) == 0 {
		return nil, nil
	}

	pipe := r.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(uids))
	for i, uid := range uids {
		cmds[i] = pipe.HGetAll(ctx, r.key(uid))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read records from Redis: %w", err)
	}

	out := make([]*blackboard.DataRecord, 0, len(uids))
	for _, cmd := range cmds {
		hash := cmd.Val()
		if len(hash) == 0 {
			continue
		}
		record, err := blackboard.HashToRecord(hash)
		if err != nil {
			return nil, fmt.Errorf("failed to deserialize record: %w", err)
		}
		out = append(out, record)
	}
	return out, nil
}

// Keys lists the record keys of this repository.
func (r *RedisRepository) Keys(ctx context.Context) ([]string, error) {
	return scanKeys(ctx, r.rdb, blackboard.RecordPattern(r.namespace, r.boardUID, r.name))
}

// RedisFactory creates RedisRepository instances sharing one client.
type RedisFactory struct {
	rdb       *redis.Client
	namespace string
}

// NewRedisFactory creates a factory scoped to a namespace.
func NewRedisFactory(rdb *redis.Client, namespace string) *RedisFactory {
	return &RedisFactory{rdb: rdb, namespace: namespace}
}

func (f *RedisFactory) GetRepository(ctx context.Context, boardUID uuid.UUID, cfg blackboard.StorageConfig) (Repository, error) {
	if boardUID == uuid.Nil {
		return nil, fmt.Errorf("board uid is required: %w", blackboard.ErrRepositoryNotFound)
	}
	return NewRedisRepository(f.rdb, f.namespace, boardUID, repositoryName(cfg)), nil
}

// RedisStateStore persists JSON documents as plain string keys.
type RedisStateStore struct {
	rdb *redis.Client
}

// NewRedisStateStore creates a store on top of an existing client.
func NewRedisStateStore(rdb *redis.Client) *RedisStateStore {
	return &RedisStateStore{rdb: rdb}
}

func (s *RedisStateStore) Load(ctx context.Context, key string, v any) (bool, error) {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read state %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to decode state %s: %w", key, err)
	}
	return true, nil
}

func (s *RedisStateStore) Save(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode state %s: %w", key, err)
	}
	if err := s.rdb.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write state %s: %w", key, err)
	}
	return nil
}

func (s *RedisStateStore) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete state %s: %w", key, err)
	}
	return nil
}

func (s *RedisStateStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	return scanKeys(ctx, s.rdb, pattern)
}

func scanKeys(ctx context.Context, rdb *redis.Client, pattern string) ([]string, error) {
	var keys []string
	iter := rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan keys %s: %w", pattern, err)
	}
	return keys, nil
}

package storage

import "context"

// StateStore persists JSON documents under keys built by the blackboard schema helpers.
type StateStore interface {
	// Load decodes the document at key into v. It reports false when the key is absent.
	Load(ctx context.Context, key string, v any) (bool, error)
	Save(ctx context.Context, key string, v any) error
	Delete(ctx context.Context, key string) error
	// Keys lists keys matching a glob pattern ("*" wildcards).
	Keys(ctx context.Context, pattern string) ([]string, error)
}

package board

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/dyluth/democrite/internal/rules"
	"github.com/dyluth/democrite/internal/storage"
	"github.com/dyluth/democrite/pkg/blackboard"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// LogicalTypeHandler binds the logical types matching a pattern to a repository and a
// validator.
type LogicalTypeHandler struct {
	pattern  string
	re       *regexp.Regexp
	boardUID uuid.UUID
	factory  storage.RepositoryFactory

	order          *int
	remainOnSealed bool
	storage        blackboard.StorageConfig
	validator      rules.Validator

	group singleflight.Group
	mu    sync.RWMutex
	repo  storage.Repository
}

// NewLogicalTypeHandler compiles pattern. The pattern is anchored so "doc" does not
// match "document".
func NewLogicalTypeHandler(pattern string, boardUID uuid.UUID, factory storage.RepositoryFactory) (*LogicalTypeHandler, error) {
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return nil, fmt.Errorf("invalid logical type pattern %q: %w", pattern, err)
	}
	return &LogicalTypeHandler{
		pattern:   pattern,
		re:        re,
		boardUID:  boardUID,
		factory:   factory,
		validator: rules.Null,
	}, nil
}

// Pattern returns the handler pattern.
func (h *LogicalTypeHandler) Pattern() string {
	return h.pattern
}

// Match reports whether the handler serves logicalType.
func (h *LogicalTypeHandler) Match(logicalType string) bool {
	return h.re.MatchString(logicalType)
}

// RemainOnSealed reports whether Ready records survive when the board is sealed.
func (h *LogicalTypeHandler) RemainOnSealed() bool {
	return h.remainOnSealed
}

// Validator returns the rule validator of the handler.
func (h *LogicalTypeHandler) Validator() rules.Validator {
	return h.validator
}

// Update applies the rules of the handler's pattern. Configuration rules set order,
// storage and seal behaviour; the other rules become the validator. A storage change
// drops the cached repository.
func (h *LogicalTypeHandler) Update(provider *rules.Provider, ruleSet []blackboard.LogicalTypeRule, defaultStorage blackboard.StorageConfig) error {
	var (
		order          *int
		remainOnSealed bool
		cfg            = defaultStorage
		validation     []blackboard.LogicalTypeRule
	)
	for _, r := range ruleSet {
		switch {
		case r.IsValidation():
			validation = append(validation, r)
		case r.Order != nil:
			o := *r.Order
			order = &o
		case r.Storage != nil:
			cfg = *r.Storage
		case r.RemainOnSealed != nil:
			remainOnSealed = *r.RemainOnSealed
		}
	}

	validator, err := provider.Build(h.pattern, validation)
	if err != nil {
		return fmt.Errorf("failed to build validator for %q: %w", h.pattern, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if cfg != h.storage {
		h.repo = nil
	}
	h.order = order
	h.remainOnSealed = remainOnSealed
	h.storage = cfg
	h.validator = validator
	return nil
}

// Repository resolves the bound repository once. Concurrent callers share the lookup.
func (h *LogicalTypeHandler) Repository(ctx context.Context) (storage.Repository, error) {
	h.mu.RLock()
	repo := h.repo
	cfg := h.storage
	h.mu.RUnlock()
	if repo != nil {
		return repo, nil
	}

	v, err, _ := h.group.Do(cfg.Repository, func() (interface{}, error) {
		repo, err := h.factory.GetRepository(ctx, h.boardUID, cfg)
		if err != nil {
			return nil, err
		}
		h.mu.Lock()
		h.repo = repo
		h.mu.Unlock()
		return repo, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(storage.Repository), nil
}

// Release drops the repository binding.
func (h *LogicalTypeHandler) Release() {
	h.mu.Lock()
	h.repo = nil
	h.mu.Unlock()
}

// precedes orders handlers for matching: explicit order first (ascending), then longer
// patterns, then pattern text. The catch-all pattern is always last.
func precedes(a, b *LogicalTypeHandler) bool {
	aDefault := a.pattern == blackboard.DefaultLogicalTypePattern
	bDefault := b.pattern == blackboard.DefaultLogicalTypePattern
	if aDefault != bDefault {
		return bDefault
	}
	if (a.order != nil) != (b.order != nil) {
		return a.order != nil
	}
	if a.order != nil && *a.order != *b.order {
		return *a.order < *b.order
	}
	if len(a.pattern) != len(b.pattern) {
		return len(a.pattern) > len(b.pattern)
	}
	return a.pattern < b.pattern
}

// handlerSet holds a board's logical type handlers in precedence order.
type handlerSet struct {
	handlers []*LogicalTypeHandler
}

// Match returns the first handler serving logicalType, or nil.
func (s *handlerSet) Match(logicalType string) *LogicalTypeHandler {
	for _, h := range s.handlers {
		if h.Match(logicalType) {
			return h
		}
	}
	return nil
}

// Len returns the number of handlers.
func (s *handlerSet) Len() int {
	return len(s.handlers)
}

// Patterns lists handler patterns in precedence order.
func (s *handlerSet) Patterns() []string {
	out := make([]string, len(s.handlers))
	for i, h := range s.handlers {
		out[i] = h.pattern
	}
	return out
}

// Sync rebuilds the set from a template when its pattern count differs from the current
// one. Handlers whose pattern survives are kept and updated; the others are released.
// The catch-all pattern is always present.
func (s *handlerSet) Sync(tmpl *blackboard.Template, boardUID uuid.UUID, factory storage.RepositoryFactory, provider *rules.Provider) error {
	patterns, byPattern := tmpl.RulesByPattern()
	if _, ok := byPattern[blackboard.DefaultLogicalTypePattern]; !ok {
		patterns = append(patterns, blackboard.DefaultLogicalTypePattern)
	}
	if len(patterns) == len(s.handlers) {
		return nil
	}

	current := make(map[string]*LogicalTypeHandler, len(s.handlers))
	for _, h := range s.handlers {
		current[h.pattern] = h
	}

	next := make([]*LogicalTypeHandler, 0, len(patterns))
	for _, p := range patterns {
		h, ok := current[p]
		if ok {
			delete(current, p)
		} else {
			var err error
			if h, err = NewLogicalTypeHandler(p, boardUID, factory); err != nil {
				return err
			}
		}
		if err := h.Update(provider, byPattern[p], tmpl.DefaultStorage); err != nil {
			return err
		}
		next = append(next, h)
	}
	for _, stale := range current {
		stale.Release()
	}

	sort.SliceStable(next, func(i, j int) bool { return precedes(next[i], next[j]) })
	s.handlers = next
	return nil
}

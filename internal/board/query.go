package board

import (
	"context"
	"fmt"
	"regexp"

	"github.com/dyluth/democrite/internal/storage"
	"github.com/dyluth/democrite/pkg/blackboard"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// MetadataFilter selects registry entries. Empty patterns and a zero status match all.
// Patterns are unanchored regular expressions.
type MetadataFilter struct {
	LogicalTypePattern string
	DisplayNamePattern string
	Status             blackboard.RecordStatus
	Limit              int
}

type compiledFilter struct {
	logicalType *regexp.Regexp
	displayName *regexp.Regexp
	status      blackboard.RecordStatus
	limit       int
}

func (f MetadataFilter) compile() (*compiledFilter, error) {
	cf := &compiledFilter{status: f.Status, limit: f.Limit}
	var err error
	if f.LogicalTypePattern != "" {
		if cf.logicalType, err = regexp.Compile(f.LogicalTypePattern); err != nil {
			return nil, fmt.Errorf("invalid logical type pattern: %w", err)
		}
	}
	if f.DisplayNamePattern != "" {
		if cf.displayName, err = regexp.Compile(f.DisplayNamePattern); err != nil {
			return nil, fmt.Errorf("invalid display name pattern: %w", err)
		}
	}
	return cf, nil
}

func (f *compiledFilter) match(meta blackboard.RecordMetadata) bool {
	if f.logicalType != nil && !f.logicalType.MatchString(meta.LogicalType) {
		return false
	}
	if f.displayName != nil && !f.displayName.MatchString(meta.DisplayName) {
		return false
	}
	return meta.Status.Matches(f.status)
}

// GetAllStoredMetaData returns the registry entries accepted by filter, oldest first.
func (b *Board) GetAllStoredMetaData(ctx context.Context, filter MetadataFilter) ([]blackboard.RecordMetadata, error) {
	b.turn.Lock()
	defer b.turn.Unlock()

	if err := b.checkBuilt(); err != nil {
		return nil, err
	}
	return b.filterMetadata(filter)
}

// GetStoredMetaData returns the registry entries of uids that exist.
func (b *Board) GetStoredMetaData(ctx context.Context, uids ...uuid.UUID) ([]blackboard.RecordMetadata, error) {
	b.turn.Lock()
	defer b.turn.Unlock()

	if err := b.checkBuilt(); err != nil {
		return nil, err
	}
	return b.lookupMetadata(uids), nil
}

// GetStoredRecords returns the records of uids with their payload as stored.
func (b *Board) GetStoredRecords(ctx context.Context, uids ...uuid.UUID) ([]*blackboard.DataRecord, error) {
	b.turn.Lock()
	defer b.turn.Unlock()

	if err := b.checkBuilt(); err != nil {
		return nil, err
	}
	return b.fetch(ctx, b.lookupMetadata(uids))
}

// GetAllStoredRecords returns the records accepted by filter with their payload.
func (b *Board) GetAllStoredRecords(ctx context.Context, filter MetadataFilter) ([]*blackboard.DataRecord, error) {
	b.turn.Lock()
	defer b.turn.Unlock()

	if err := b.checkBuilt(); err != nil {
		return nil, err
	}
	metas, err := b.filterMetadata(filter)
	if err != nil {
		return nil, err
	}
	return b.fetch(ctx, metas)
}

// Record is a typed view of a stored record. Payload is nil for empty slots.
type Record[T any] struct {
	blackboard.RecordMetadata
	Payload *T
}

// GetStoredData returns one record projected to T, or nil when uid is unknown.
func GetStoredData[T any](ctx context.Context, b *Board, uid uuid.UUID) (*Record[T], error) {
	records, err := b.GetStoredRecords(ctx, uid)
	if err != nil || len(records) == 0 {
		return nil, err
	}
	return project[T](records[0])
}

// GetAllStoredDataByType returns every record whose logical type matches pattern,
// projected to T.
func GetAllStoredDataByType[T any](ctx context.Context, b *Board, logicalTypePattern string) ([]*Record[T], error) {
	return GetAllStoredDataFiltered[T](ctx, b, MetadataFilter{LogicalTypePattern: logicalTypePattern})
}

// GetAllStoredDataFiltered returns every record accepted by filter, projected to T.
func GetAllStoredDataFiltered[T any](ctx context.Context, b *Board, filter MetadataFilter) ([]*Record[T], error) {
	records, err := b.GetAllStoredRecords(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]*Record[T], 0, len(records))
	for _, r := range records {
		typed, err := project[T](r)
		if err != nil {
			return nil, err
		}
		out = append(out, typed)
	}
	return out, nil
}

func project[T any](r *blackboard.DataRecord) (*Record[T], error) {
	out := &Record[T]{RecordMetadata: r.RecordMetadata}
	if r.Payload == nil {
		return out, nil
	}
	v, err := blackboard.ProjectTo[T](r.Payload)
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", r.UID, err)
	}
	out.Payload = &v
	return out, nil
}

func (b *Board) filterMetadata(filter MetadataFilter) ([]blackboard.RecordMetadata, error) {
	cf, err := filter.compile()
	if err != nil {
		return nil, err
	}

	b.meta.Lock()
	all := b.state.Registry.All()
	b.meta.Unlock()

	out := make([]blackboard.RecordMetadata, 0, len(all))
	for _, meta := range all {
		if !cf.match(meta) {
			continue
		}
		out = append(out, meta)
		if cf.limit > 0 && len(out) >= cf.limit {
			break
		}
	}
	return out, nil
}

func (b *Board) lookupMetadata(uids []uuid.UUID) []blackboard.RecordMetadata {
	b.meta.Lock()
	defer b.meta.Unlock()

	out := make([]blackboard.RecordMetadata, 0, len(uids))
	for _, uid := range uids {
		if meta, ok := b.state.Registry.Get(uid); ok {
			out = append(out, meta)
		}
	}
	return out
}

// fetch loads payloads from the repositories, one concurrent read per repository.
// Records missing from their repository are returned with metadata only.
func (b *Board) fetch(ctx context.Context, metas []blackboard.RecordMetadata) ([]*blackboard.DataRecord, error) {
	type group struct {
		repo storage.Repository
		uids []uuid.UUID
	}
	groups := make(map[*LogicalTypeHandler]*group)
	for _, meta := range metas {
		if meta.ContainsType == "" {
			continue
		}
		h, err := b.handlerFor(meta.LogicalType)
		if err != nil {
			return nil, err
		}
		g, ok := groups[h]
		if !ok {
			g = &group{}
			groups[h] = g
		}
		g.uids = append(g.uids, meta.UID)
	}

	for h, g := range groups {
		repo, err := h.Repository(ctx)
		if err != nil {
			return nil, b.repositoryNotFound(h.Pattern(), err)
		}
		g.repo = repo
	}

	results := make([][]*blackboard.DataRecord, 0, len(groups))
	eg, egCtx := errgroup.WithContext(ctx)
	for _, g := range groups {
		g := g
		idx := len(results)
		results = append(results, nil)
		eg.Go(func() error {
			records, err := g.repo.GetRecords(egCtx, g.uids...)
			if err != nil {
				return fmt.Errorf("failed to read from repository %s: %w", g.repo.Name(), err)
			}
			results[idx] = records
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	byUID := make(map[uuid.UUID]*blackboard.DataRecord)
	for _, records := range results {
		for _, r := range records {
			byUID[r.UID] = r
		}
	}

	out := make([]*blackboard.DataRecord, 0, len(metas))
	for _, meta := range metas {
		record := &blackboard.DataRecord{RecordMetadata: meta, ContainerType: blackboard.ContainerDirect}
		if stored, ok := byUID[meta.UID]; ok {
			record.Payload = stored.Payload
		}
		out = append(out, record)
	}
	return out, nil
}

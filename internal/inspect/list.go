// Package inspect reads boards for the CLI: record listings with filters and single
// record dumps.
package inspect

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/dyluth/democrite/internal/board"
	"github.com/dyluth/democrite/internal/timespec"
	"github.com/dyluth/democrite/pkg/blackboard"
	"github.com/google/uuid"
)

// OutputFormat specifies how record listings are written.
type OutputFormat string

const (
	// OutputFormatDefault uses a table with truncated payloads
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSONL writes complete records as line-delimited JSON
	OutputFormatJSONL OutputFormat = "jsonl"
)

// Validate checks if the OutputFormat is a valid enum value.
func (f OutputFormat) Validate() error {
	switch f {
	case OutputFormatDefault, OutputFormatJSONL:
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", f)
	}
}

// Source is the read side of a board.
type Source interface {
	GetAllStoredMetaData(ctx context.Context, filter board.MetadataFilter) ([]blackboard.RecordMetadata, error)
	GetStoredRecords(ctx context.Context, uids ...uuid.UUID) ([]*blackboard.DataRecord, error)
}

// FilterCriteria narrows a listing. All filters are ANDed together.
type FilterCriteria struct {
	Created  timespec.Range
	TypeGlob string // Glob pattern on the logical type, empty = no filter
	Status   blackboard.RecordStatus
}

func (fc *FilterCriteria) matches(meta blackboard.RecordMetadata) bool {
	if !fc.Created.Contains(meta.CreatedAt) {
		return false
	}
	if fc.TypeGlob != "" {
		matched, err := filepath.Match(fc.TypeGlob, meta.LogicalType)
		if err != nil || !matched {
			return false
		}
	}
	return true
}

// Validate rejects malformed glob patterns.
func (fc *FilterCriteria) Validate() error {
	if fc.TypeGlob != "" {
		if _, err := filepath.Match(fc.TypeGlob, ""); err != nil {
			return fmt.Errorf("invalid type pattern %q: %w", fc.TypeGlob, err)
		}
	}
	return fc.Status.Validate()
}

// Records returns the records of src accepted by filters, oldest first.
func Records(ctx context.Context, src Source, filters *FilterCriteria) ([]*blackboard.DataRecord, error) {
	if filters == nil {
		filters = &FilterCriteria{}
	}
	if err := filters.Validate(); err != nil {
		return nil, err
	}

	metas, err := src.GetAllStoredMetaData(ctx, board.MetadataFilter{Status: filters.Status})
	if err != nil {
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}

	uids := make([]uuid.UUID, 0, len(metas))
	for _, meta := range metas {
		if filters.matches(meta) {
			uids = append(uids, meta.UID)
		}
	}
	if len(uids) == 0 {
		return nil, nil
	}

	records, err := src.GetStoredRecords(ctx, uids...)
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	return records, nil
}

// ListRecords writes the records of src accepted by filters in format.
func ListRecords(ctx context.Context, src Source, boardName string, format OutputFormat, filters *FilterCriteria, w io.Writer) error {
	if err := format.Validate(); err != nil {
		return err
	}

	records, err := Records(ctx, src, filters)
	if err != nil {
		return err
	}

	switch format {
	case OutputFormatJSONL:
		if err := FormatJSONL(w, records); err != nil {
			return fmt.Errorf("failed to format JSONL output: %w", err)
		}
	default:
		FormatTable(w, records, boardName, time.Now())
	}
	return nil
}

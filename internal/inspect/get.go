package inspect

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// GetRecord writes one record of src as indented JSON.
func GetRecord(ctx context.Context, src Source, uid uuid.UUID, w io.Writer) error {
	records, err := src.GetStoredRecords(ctx, uid)
	if err != nil {
		return fmt.Errorf("failed to fetch record: %w", err)
	}
	if len(records) == 0 {
		return &RecordNotFoundError{UID: uid}
	}

	if err := FormatSingleJSON(w, records[0]); err != nil {
		return fmt.Errorf("failed to format record: %w", err)
	}
	return nil
}

// RecordNotFoundError is returned when a board has no record with the requested uid.
type RecordNotFoundError struct {
	UID uuid.UUID
}

func (e *RecordNotFoundError) Error() string {
	return fmt.Sprintf("record with ID '%s' not found", e.UID)
}

// IsNotFound returns true if the error is a RecordNotFoundError.
func IsNotFound(err error) bool {
	_, ok := err.(*RecordNotFoundError)
	return ok
}

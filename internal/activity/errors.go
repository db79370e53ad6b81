package activity

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingField indicates an identifying field (name, timestamp) is absent.
	ErrMissingField = errors.New("missing required field")

	// ErrBadTimestamp indicates the start timestamp could not be parsed.
	ErrBadTimestamp = errors.New("unparseable timestamp")
)

// IngestionError reports an activity that cannot be normalized. The activity
// is skipped; the rest of the batch continues.
type IngestionError struct {
	ActivityID int64
	Name       string
	Field      string
	Err        error
}

func (e *IngestionError) Error() string {
	label := e.Name
	if label == "" {
		label = fmt.Sprintf("#%d", e.ActivityID)
	}
	return fmt.Sprintf("ingesting activity %s: %s: %v", label, e.Field, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

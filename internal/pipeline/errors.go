package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceUnavailable means the source could not be opened or read.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrSourceFormat means the source was read but could not be parsed into records.
	ErrSourceFormat = errors.New("source format error")
	// ErrTransform is matched by every *TransformError.
	ErrTransform = errors.New("transform error")
	// ErrDestinationUnavailable means neither the primary destination nor the fallback sink took the batch.
	ErrDestinationUnavailable = errors.New("destination unavailable")
	// ErrFallbackWrite means the fallback file could not be written.
	ErrFallbackWrite = errors.New("fallback write error")
)

// TransformError reports the record that failed the batch.
type TransformError struct {
	Index  int
	Field  string
	Reason string
}

func (e *TransformError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("transform error at record index %d: %s", e.Index, e.Reason)
	}
	return fmt.Sprintf("transform error at record index %d: field %q: %s", e.Index, e.Field, e.Reason)
}

func (e *TransformError) Is(target error) bool {
	return target == ErrTransform
}

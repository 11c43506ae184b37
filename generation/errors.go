package generation

import (
	"errors"
	"fmt"

	"scenecast/types"
)

var (
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	// ErrDuplicateInFlight is returned with the id of the request already
	// covering the same second; callers should treat it as a merge.
	ErrDuplicateInFlight = errors.New("duplicate request in flight")
	ErrNotFound          = errors.New("not found")
	ErrNotCancelable     = errors.New("request is no longer pending")
	ErrEmptyTranscript   = errors.New("empty transcript")
	ErrEmptyImage        = errors.New("synthesizer returned no image")
	ErrAssetUnloaded     = errors.New("asset was unloaded")
	ErrClosed            = errors.New("coordinator is shut down")
)

// StageError records which pipeline stage failed and how
type StageError struct {
	Kind types.FailureKind
	Err  error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// KindOf extracts the failure kind from err, defaulting to fallback
func KindOf(err error, fallback types.FailureKind) types.FailureKind {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	return fallback
}

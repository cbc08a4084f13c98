package engine

import (
	"errors"
	"fmt"

	"github.com/bguidolim/mcs/internal/state"
)

// ErrIncomplete is returned by callers when a sync finished with artifact
// failures. Whatever succeeded has been persisted.
var ErrIncomplete = errors.New("sync incomplete: some artifacts failed")

// ApplyFailure records one artifact that could not be installed or removed.
// It never aborts the run.
type ApplyFailure struct {
	Pack     string
	Kind     state.Kind
	Artifact string
	Op       Op
	Err      error
}

func (f *ApplyFailure) Error() string {
	return fmt.Sprintf("%s %s %q for pack %s: %v", f.Op, f.Kind, f.Artifact, f.Pack, f.Err)
}

func (f *ApplyFailure) Unwrap() error { return f.Err }

// ConflictError reports an artifact that another pack in the scope already
// owns.
type ConflictError struct {
	Kind     state.Kind
	Artifact string
	Owner    string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %q is owned by pack %s", e.Kind, e.Artifact, e.Owner)
}

package merge

import (
	"errors"
	"fmt"
)

var (
	// ErrAmbiguousMergeKey reports two base list elements sharing one key.
	ErrAmbiguousMergeKey = errors.New("ambiguous merge key")
	// ErrTypeMismatch reports incompatible base and overwrite shapes.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrUnknownField reports an overwrite field a closed schema does not declare.
	ErrUnknownField = errors.New("unknown field")
)

// Error locates a merge failure inside the merged graph.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("merge %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

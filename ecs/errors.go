package ecs

import (
	"errors"
	"fmt"
)

// ErrStaleEntity is matched by every StaleEntityReference.
var ErrStaleEntity = errors.New("stale entity reference")

// StaleEntityReference reports a queued command whose entity was no longer
// live when the queue was flushed.
type StaleEntityReference struct {
	Entity  EntityId
	Command CommandKind
}

func (e *StaleEntityReference) Error() string {
	return fmt.Sprintf("%s: %s references entity %s", ErrStaleEntity, e.Command, e.Entity)
}

func (e *StaleEntityReference) Unwrap() error {
	return ErrStaleEntity
}

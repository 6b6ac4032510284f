package query

import "fmt"

// FetchError wraps a failed read. The view keeps its last-good records and
// surfaces a dismissible, retryable notice instead of clearing the screen.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed: %v", e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// MutationError wraps a failed create/update/delete. For create and update
// the in-progress form stays open so user input is not lost.
type MutationError struct {
	Op  string // create, update, delete, change-parent
	Err error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *MutationError) Unwrap() error { return e.Err }

// CycleError rejects a parent change that would make a record its own
// ancestor.
type CycleError struct {
	ID       string
	ParentID string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cannot set parent of %s to %s: would create a cycle", e.ID, e.ParentID)
}

package reconcile

import (
	"errors"
	"fmt"
)

var (
	// ErrStorage matches every StorageError. A merge failing with it changed
	// nothing durable and can be retried with the same snapshot.
	ErrStorage = errors.New("storage failure")

	// ErrInvalidUser is returned for a non-positive user id.
	ErrInvalidUser = errors.New("invalid user id")
)

// StorageError reports which storage step aborted a merge.
type StorageError struct {
	Op  string // "lock", "load", "apply" or "reload"
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrStorage) hold for any StorageError.
func (e *StorageError) Is(target error) bool { return target == ErrStorage }

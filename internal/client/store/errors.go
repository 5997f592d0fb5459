package store

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/vaxsync/internal/client/models"
)

var (
	// ErrStorage matches every *StorageError.
	ErrStorage = errors.New("local storage failure")

	ErrUnknownIndex = errors.New("unknown index field")
	ErrClosed       = errors.New("store closed")
)

// StorageError describes a failed Local Store operation.
type StorageError struct {
	Op         string
	Collection models.Collection
	Key        string
	Err        error
}

func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("store %s %s/%s: %v", e.Op, e.Collection, e.Key, e.Err)
	}
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *StorageError) Unwrap() []error {
	return []error{ErrStorage, e.Err}
}

func storageErr(op string, c models.Collection, key string, err error) error {
	return &StorageError{Op: op, Collection: c, Key: key, Err: err}
}

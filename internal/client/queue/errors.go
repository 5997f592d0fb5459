package queue

import "errors"

var (
	ErrNotFound = errors.New("queue item not found")

	// ErrStateMismatch is returned by conditional transitions when the item is
	// no longer in the expected status, e.g. for a late remote response.
	ErrStateMismatch = errors.New("queue item not in expected state")

	ErrUnknownPartition = errors.New("unknown queue partition")
	ErrInvalidPayload   = errors.New("invalid queue payload")
)

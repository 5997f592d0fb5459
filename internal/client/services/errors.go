package services

import "errors"

var (
	ErrNotCached    = errors.New("entity is not cached")
	ErrNotSignedIn  = errors.New("no guardian is signed in")
	ErrEmptyMessage = errors.New("message body is empty")
)

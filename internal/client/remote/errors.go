package remote

import (
	"context"
	"errors"
)

var (
	// ErrTransientNetwork covers timeouts, resets and server-side failures.
	ErrTransientNetwork = errors.New("transient network error")

	// ErrValidation is a rejection of the request itself. Retrying cannot help.
	ErrValidation = errors.New("validation error")

	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound is also an ErrValidation.
	ErrNotFound = errors.New("not found")
)

// Outcome is the delivery verdict for a remote call.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeRecoverable
	OutcomeTerminal
	OutcomeUnauthorized
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeRecoverable:
		return "recoverable"
	case OutcomeTerminal:
		return "terminal"
	case OutcomeUnauthorized:
		return "unauthorized"
	}
	return "unknown"
}

// Classify maps an error returned by a Client to an Outcome. Errors it does
// not recognise are treated as recoverable.
func Classify(err error) Outcome {
	if err == nil {
		return OutcomeOK
	}
	switch {
	case errors.Is(err, ErrUnauthorized):
		return OutcomeUnauthorized
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNotFound):
		return OutcomeTerminal
	case errors.Is(err, ErrTransientNetwork),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return OutcomeRecoverable
	}
	return OutcomeRecoverable
}

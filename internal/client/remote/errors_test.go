package remote

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Outcome
	}{
		{"nil", nil, OutcomeOK},
		{"transient", fmt.Errorf("%w: reset", ErrTransientNetwork), OutcomeRecoverable},
		{"deadline", context.DeadlineExceeded, OutcomeRecoverable},
		{"validation", fmt.Errorf("%w: bad field", ErrValidation), OutcomeTerminal},
		{"not found", fmt.Errorf("%w: %w", ErrValidation, ErrNotFound), OutcomeTerminal},
		{"bare not found", ErrNotFound, OutcomeTerminal},
		{"unauthorized", fmt.Errorf("%w: expired", ErrUnauthorized), OutcomeUnauthorized},
		{"unknown", errors.New("something odd"), OutcomeRecoverable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "terminal", OutcomeTerminal.String())
	assert.Equal(t, "unknown", Outcome(42).String())
}

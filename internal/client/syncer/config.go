package syncer

import (
	"time"

	"github.com/sethvargo/go-retry"
)

// Config tunes delivery and retries.
type Config struct {
	// MaxAttempts dead-letters an item after this many failed attempts.
	MaxAttempts int

	// BaseDelay is the wait after the first failure. It doubles per attempt
	// up to MaxDelay.
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// JitterPercent randomises each delay by up to this percentage.
	JitterPercent uint64

	// RequestTimeout bounds each remote call. Zero means no bound.
	RequestTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:    5,
		BaseDelay:      2 * time.Second,
		MaxDelay:       5 * time.Minute,
		RequestTimeout: 15 * time.Second,
	}
}

// Backoff returns the delay before the retry that follows the given failed
// attempt (1-based): BaseDelay * 2^(attempt-1), capped at MaxDelay.
func (c Config) Backoff(attempt int) time.Duration {
	if c.BaseDelay <= 0 || attempt < 1 {
		return 0
	}

	b := retry.NewExponential(c.BaseDelay)
	if c.MaxDelay > 0 {
		b = retry.WithCappedDuration(c.MaxDelay, b)
	}
	if c.JitterPercent > 0 {
		b = retry.WithJitterPercent(c.JitterPercent, b)
	}

	var d time.Duration
	for i := 0; i < attempt; i++ {
		d, _ = b.Next()
	}
	return d
}

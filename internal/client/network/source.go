package network

import (
	"context"
	"time"
)

// Pinger is anything that can probe the remote authority.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingSource reports Online while Ping succeeds and Offline otherwise. It
// probes once immediately and then on every tick.
type PingSource struct {
	Pinger   Pinger
	Interval time.Duration
	Timeout  time.Duration
}

func (p *PingSource) Run(ctx context.Context, report func(State)) error {
	probe := func() {
		pctx, cancel := context.WithTimeout(ctx, p.timeout())
		err := p.Pinger.Ping(pctx)
		cancel()

		if ctx.Err() != nil {
			return
		}
		if err != nil {
			report(Offline)
			return
		}
		report(Online)
	}

	probe()

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			probe()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *PingSource) timeout() time.Duration {
	if p.Timeout > 0 {
		return p.Timeout
	}
	return 3 * time.Second
}

type signal struct {
	state State
	done  chan struct{}
}

// ManualSource is a deterministic Source driven by Emit.
type ManualSource struct {
	ch chan signal
}

func NewManualSource() *ManualSource {
	return &ManualSource{ch: make(chan signal)}
}

func (m *ManualSource) Run(ctx context.Context, report func(State)) error {
	for {
		select {
		case s := <-m.ch:
			report(s.state)
			close(s.done)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Emit delivers s and returns once the monitor has processed it, or when ctx
// is done.
func (m *ManualSource) Emit(ctx context.Context, s State) error {
	sig := signal{state: s, done: make(chan struct{})}
	select {
	case m.ch <- sig:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-sig.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

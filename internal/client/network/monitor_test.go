package network

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/vaxsync/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu  sync.Mutex
	got []Transition
}

func (r *recorder) add(t Transition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, t)
}

func (r *recorder) states() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]State, 0, len(r.got))
	for _, t := range r.got {
		out = append(out, t.To)
	}
	return out
}

func TestMonitor_DeduplicatesSignals(t *testing.T) {
	m := NewMonitor(logging.NewNop())
	rec := &recorder{}
	m.Subscribe(rec.add)

	for _, s := range []State{Offline, Offline, Online, Online, Offline, Online} {
		m.Report(s)
	}

	assert.Equal(t, []State{Offline, Online, Offline, Online}, rec.states())
	require.Len(t, rec.got, 4)
	assert.True(t, rec.got[0].Initial)
	for _, tr := range rec.got[1:] {
		assert.False(t, tr.Initial)
		assert.NotEqual(t, tr.From, tr.To)
	}
}

func TestMonitor_InitialOnline(t *testing.T) {
	m := NewMonitor(logging.NewNop())
	_, known := m.State()
	assert.False(t, known)
	assert.False(t, m.Online())

	rec := &recorder{}
	m.Subscribe(rec.add)
	m.Report(Online)

	assert.True(t, m.Online())
	require.Len(t, rec.got, 1)
	assert.True(t, rec.got[0].Initial)
	assert.Equal(t, Online, rec.got[0].To)
}

func TestMonitor_MultipleSubscribersAndUnsubscribe(t *testing.T) {
	m := NewMonitor(logging.NewNop())
	a, b := &recorder{}, &recorder{}
	m.Subscribe(a.add)
	unsubscribe := m.Subscribe(b.add)

	m.Report(Offline)
	unsubscribe()
	m.Report(Online)

	assert.Equal(t, []State{Offline, Online}, a.states())
	assert.Equal(t, []State{Offline}, b.states())
}

func TestMonitor_ConcurrentReportsStayAlternating(t *testing.T) {
	m := NewMonitor(logging.NewNop())
	rec := &recorder{}
	m.Subscribe(rec.add)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.Report(State(i % 2))
		}(i)
	}
	wg.Wait()

	states := rec.states()
	for i := 1; i < len(states); i++ {
		assert.NotEqual(t, states[i-1], states[i], "edges must alternate")
	}
}

func TestMonitor_RunWithManualSource(t *testing.T) {
	m := NewMonitor(logging.NewNop())
	rec := &recorder{}
	m.Subscribe(rec.add)

	src := NewManualSource()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, src) }()

	for _, s := range []State{Offline, Online, Online, Offline} {
		require.NoError(t, src.Emit(ctx, s))
	}
	assert.Equal(t, []State{Offline, Online, Offline}, rec.states())

	cancel()
	require.NoError(t, <-done)
}

type flakyPinger struct {
	calls atomic.Int32
	fail  atomic.Bool
}

func (p *flakyPinger) Ping(ctx context.Context) error {
	p.calls.Add(1)
	if p.fail.Load() {
		return errors.New("unreachable")
	}
	return nil
}

func TestPingSource_ReportsReachability(t *testing.T) {
	m := NewMonitor(logging.NewNop())
	rec := &recorder{}
	m.Subscribe(rec.add)

	p := &flakyPinger{}
	p.fail.Store(true)
	src := &PingSource{Pinger: p, Interval: 5 * time.Millisecond, Timeout: time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Run(ctx, src) }()

	require.Eventually(t, func() bool { return len(rec.states()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, Offline, rec.states()[0])

	p.fail.Store(false)
	require.Eventually(t, m.Online, time.Second, time.Millisecond)
	assert.Equal(t, []State{Offline, Online}, rec.states())
	assert.GreaterOrEqual(t, p.calls.Load(), int32(2))
}

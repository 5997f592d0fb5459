// Package network tracks connectivity for the sync engine.
//
// A Monitor is fed raw online/offline signals by a Source and emits a
// Transition only when the state differs from the last emitted one. The
// first signal always produces a transition marked Initial.
package network

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/vaxsync/internal/logging"
)

type State int

const (
	Offline State = iota
	Online
)

func (s State) String() string {
	if s == Online {
		return "online"
	}
	return "offline"
}

// Transition is an emitted state change.
type Transition struct {
	From State
	To   State

	// Initial marks the first observed state. From is meaningless then.
	Initial bool
}

// Source produces raw connectivity signals until ctx is done.
type Source interface {
	Run(ctx context.Context, report func(State)) error
}

// Monitor de-duplicates connectivity signals and fans transitions out to
// subscribers in order.
type Monitor struct {
	log logging.Logger

	// deliverMu serialises Report so subscribers see edges in order.
	deliverMu sync.Mutex

	mu     sync.Mutex
	state  State
	known  bool
	nextID int
	subs   map[int]func(Transition)
}

func NewMonitor(log logging.Logger) *Monitor {
	return &Monitor{
		log:  log.With("module", "network"),
		subs: make(map[int]func(Transition)),
	}
}

// Report feeds one raw signal. Subscribers run synchronously on the calling
// goroutine and must not call Report themselves.
func (m *Monitor) Report(s State) {
	m.deliverMu.Lock()
	defer m.deliverMu.Unlock()

	m.mu.Lock()
	if m.known && m.state == s {
		m.mu.Unlock()
		return
	}
	tr := Transition{From: m.state, To: s, Initial: !m.known}
	m.state = s
	m.known = true

	subs := make([]func(Transition), 0, len(m.subs))
	for id := 0; id < m.nextID; id++ {
		if fn, ok := m.subs[id]; ok {
			subs = append(subs, fn)
		}
	}
	m.mu.Unlock()

	m.log.Info(context.Background(), "connectivity changed", "state", s.String(), "initial", tr.Initial)

	for _, fn := range subs {
		fn(tr)
	}
}

// State returns the last emitted state and whether any signal was seen yet.
func (m *Monitor) State() (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.known
}

// Online reports whether the last emitted state is Online.
func (m *Monitor) Online() bool {
	s, known := m.State()
	return known && s == Online
}

// Subscribe registers fn for future transitions. Subscribers are called in
// registration order.
func (m *Monitor) Subscribe(fn func(Transition)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// Run feeds the monitor from src until ctx is done.
func (m *Monitor) Run(ctx context.Context, src Source) error {
	err := src.Run(ctx, m.Report)
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

package store

import (
	"sync"

	"github.com/dmitrijs2005/vaxsync/internal/client/models"
)

// Op is the kind of committed change.
type Op string

const (
	OpPut    Op = "put"
	OpDelete Op = "delete"
	OpClear  Op = "clear"
)

// Change is delivered to subscribers after a write commits.
type Change struct {
	Collection models.Collection
	Key        string
	Op         Op

	// Record is the stored value for OpPut, nil otherwise.
	Record *models.Record
}

// Hub fans committed changes out to subscribers. Each subscription owns a
// mailbox drained by its own goroutine, so publishing never blocks on a slow
// or re-entrant callback.
type Hub struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]*subscription
}

type subscription struct {
	collection models.Collection
	key        string
	fn         func(Change)

	mu      sync.Mutex
	pending []Change
	wake    chan struct{}
	done    chan struct{}
	stop    sync.Once
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]*subscription)}
}

// Subscribe registers fn for changes in collection c. An empty key matches
// every key. The returned function unsubscribes; it is safe to call twice.
func (h *Hub) Subscribe(c models.Collection, key string, fn func(Change)) func() {
	s := &subscription{
		collection: c,
		key:        key,
		fn:         fn,
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs[id] = s
	h.mu.Unlock()

	go s.run()

	return func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
		s.close()
	}
}

// Publish queues ch for every matching subscriber.
func (h *Hub) Publish(ch Change) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.subs {
		if s.matches(ch) {
			s.push(ch)
		}
	}
}

// Close drops every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[uint64]*subscription)
	h.mu.Unlock()
	for _, s := range subs {
		s.close()
	}
}

// Len returns the number of active subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (s *subscription) matches(ch Change) bool {
	if s.collection != ch.Collection {
		return false
	}
	// clear touches every key of the collection
	return s.key == "" || ch.Op == OpClear || s.key == ch.Key
}

func (s *subscription) close() {
	s.stop.Do(func() { close(s.done) })
}

func (s *subscription) push(ch Change) {
	s.mu.Lock()
	s.pending = append(s.pending, ch)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscription) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}

		s.mu.Lock()
		batch := s.pending
		s.pending = nil
		s.mu.Unlock()

		for _, ch := range batch {
			select {
			case <-s.done:
				return
			default:
			}
			s.fn(ch)
		}
	}
}

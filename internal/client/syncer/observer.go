package syncer

import (
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/vaxsync/internal/client/models"
)

// EventKind classifies coordinator events.
type EventKind string

const (
	EventDelivered    EventKind = "delivered"
	EventRetrying     EventKind = "retrying"
	EventDeadLettered EventKind = "dead_lettered"
	EventUnauthorized EventKind = "unauthorized"
	EventLateResponse EventKind = "late_response"
)

// Event describes what happened to one queue item.
type Event struct {
	Kind      EventKind
	Partition models.Partition
	ItemID    string
	Attempt   int
	Err       error

	// RetryAt is set for EventRetrying.
	RetryAt time.Time
}

// Observer receives coordinator events. Calls happen on flush goroutines and
// must not block for long.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnEvent(e Event) { f(e) }

// Stats are cumulative counters since construction.
type Stats struct {
	Passes       int64
	Delivered    int64
	Retried      int64
	DeadLettered int64
	Unauthorized int64
	Late         int64
}

type counters struct {
	passes, delivered, retried, deadLettered, unauthorized, late atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Passes:       c.passes.Load(),
		Delivered:    c.delivered.Load(),
		Retried:      c.retried.Load(),
		DeadLettered: c.deadLettered.Load(),
		Unauthorized: c.unauthorized.Load(),
		Late:         c.late.Load(),
	}
}

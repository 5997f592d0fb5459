// Package syncer drains the Mutation Queue to the remote authority.
//
// Each partition is flushed by at most one goroutine at a time. A flush
// requested while one is running sets a rerun flag and returns; the running
// flush makes one more pass before it exits. A pass delivers items in
// sequence order up to the highest sequence present when the pass began, and
// stops at the first item that is waiting out a backoff so order is kept.
//
// Every status change is conditional on the status the coordinator last
// wrote, so responses that arrive after the item moved on are dropped.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/vaxsync/internal/client/models"
	"github.com/dmitrijs2005/vaxsync/internal/client/network"
	"github.com/dmitrijs2005/vaxsync/internal/client/queue"
	"github.com/dmitrijs2005/vaxsync/internal/client/remote"
	"github.com/dmitrijs2005/vaxsync/internal/logging"
	"github.com/dmitrijs2005/vaxsync/internal/timex"
	"golang.org/x/sync/errgroup"
)

// Queue is the subset of the Mutation Queue the coordinator drives.
type Queue interface {
	PeekNext(ctx context.Context, p models.Partition) (*models.QueueItem, error)
	MaxSeq(ctx context.Context, p models.Partition) (int64, error)
	MarkSending(ctx context.Context, p models.Partition, id string) error
	MarkSent(ctx context.Context, p models.Partition, id string) error
	MarkPending(ctx context.Context, p models.Partition, id string) error
	MarkFailed(ctx context.Context, p models.Partition, id string, cause error, opts queue.FailOptions) (*models.QueueItem, error)
	Remove(ctx context.Context, p models.Partition, id string) error
	Recover(ctx context.Context) (int, error)
}

// Remote delivers queued writes.
type Remote interface {
	SubmitMessage(ctx context.Context, id string, msg models.MessagePayload) (models.DeliveryResult, error)
	ApplyProfileEdit(ctx context.Context, id string, edit models.ProfileEdit) (models.Record, error)
}

// Acknowledger installs authoritative entities returned for applied edits.
type Acknowledger interface {
	Acknowledge(ctx context.Context, c models.Collection, authoritative models.Record) error
}

// Connectivity is the part of the network monitor the coordinator needs.
type Connectivity interface {
	Subscribe(fn func(network.Transition)) (unsubscribe func())
	Online() bool
}

type partitionState struct {
	mu      sync.Mutex
	running bool
	rerun   bool
	timer   timex.Timer
}

// Coordinator is the Sync Coordinator.
type Coordinator struct {
	cfg      Config
	queue    Queue
	remote   Remote
	ack      Acknowledger
	net      Connectivity
	clock    timex.Clock
	log      logging.Logger
	observer Observer

	parts map[models.Partition]*partitionState
	stats counters

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	unsub   func()
	stopped bool
	wg      sync.WaitGroup
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithObserver registers an observer for item events.
func WithObserver(o Observer) Option {
	return func(c *Coordinator) { c.observer = o }
}

func New(cfg Config, q Queue, r Remote, ack Acknowledger, net Connectivity, clock timex.Clock, log logging.Logger, opts ...Option) *Coordinator {
	if clock == nil {
		clock = timex.RealClock{}
	}
	c := &Coordinator{
		cfg:    cfg,
		queue:  q,
		remote: r,
		ack:    ack,
		net:    net,
		clock:  clock,
		log:    log.With("module", "syncer"),
		parts:  make(map[models.Partition]*partitionState, len(models.Partitions)),
		ctx:    context.Background(),
	}
	for _, p := range models.Partitions {
		c.parts[p] = &partitionState{}
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Start recovers items interrupted by a previous run, subscribes to
// connectivity changes and flushes right away when already online.
func (c *Coordinator) Start(ctx context.Context) error {
	n, err := c.queue.Recover(ctx)
	if err != nil {
		return fmt.Errorf("recover queue: %w", err)
	}
	if n > 0 {
		c.log.Info(ctx, "returned interrupted items to pending", "count", n)
	}

	c.mu.Lock()
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.unsub = c.net.Subscribe(func(tr network.Transition) {
		if tr.To == network.Online {
			c.TriggerAll()
		}
	})
	c.mu.Unlock()

	if c.net.Online() {
		c.TriggerAll()
	}
	return nil
}

// Stop unsubscribes, cancels retry timers and waits for running flushes.
// Remote calls already dispatched are allowed to finish and be recorded.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	if c.unsub != nil {
		c.unsub()
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()

	for _, ps := range c.parts {
		ps.mu.Lock()
		if ps.timer != nil {
			ps.timer.Stop()
			ps.timer = nil
		}
		ps.mu.Unlock()
	}

	c.wg.Wait()
}

// Stats returns a snapshot of the counters.
func (c *Coordinator) Stats() Stats {
	return c.stats.snapshot()
}

// Trigger starts a flush of p in the background. It does nothing while the
// device is offline: items stay Pending until the next Online transition,
// so no attempt is spent on a request that cannot reach the server.
func (c *Coordinator) Trigger(p models.Partition) {
	if !c.net.Online() {
		c.log.Debug(context.Background(), "offline, flush deferred", "partition", p)
		return
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	ctx := c.ctx
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		if err := c.Flush(ctx, p); err != nil && ctx.Err() == nil {
			c.log.Error(ctx, "flush failed", "partition", p, "error", err)
		}
	}()
}

// TriggerAll starts a background flush of every partition.
func (c *Coordinator) TriggerAll() {
	for _, p := range models.Partitions {
		c.Trigger(p)
	}
}

// FlushAll flushes every partition concurrently and waits for them.
func (c *Coordinator) FlushAll(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, p := range models.Partitions {
		g.Go(func() error { return c.Flush(ctx, p) })
	}
	return g.Wait()
}

// Flush drains p. If a flush of p is already running the request is folded
// into it and Flush returns immediately.
func (c *Coordinator) Flush(ctx context.Context, p models.Partition) error {
	ps, ok := c.parts[p]
	if !ok {
		return fmt.Errorf("%w: %q", queue.ErrUnknownPartition, p)
	}

	ps.mu.Lock()
	if ps.running {
		ps.rerun = true
		ps.mu.Unlock()
		return nil
	}
	ps.running = true
	ps.mu.Unlock()

	var err error
	for {
		err = c.pass(ctx, p)

		ps.mu.Lock()
		if !ps.rerun || ctx.Err() != nil {
			ps.running = false
			ps.rerun = false
			ps.mu.Unlock()
			return err
		}
		ps.rerun = false
		ps.mu.Unlock()
	}
}

func (c *Coordinator) pass(ctx context.Context, p models.Partition) error {
	c.stats.passes.Add(1)

	limit, err := c.queue.MaxSeq(ctx, p)
	if err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		item, err := c.queue.PeekNext(ctx, p)
		if err != nil {
			return err
		}
		if item == nil || item.Seq > limit {
			return nil
		}

		if item.Status == models.StatusFailed {
			if wait := item.NextAttemptAt.Sub(c.clock.Now()); wait > 0 {
				c.armRetry(p, wait)
				return nil
			}
			if err := c.queue.MarkPending(ctx, p, item.ID); err != nil {
				if isStale(err) {
					continue
				}
				return err
			}
		}

		cont, err := c.deliver(ctx, p, item)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
}

// deliver sends one Pending item and records the outcome. It reports whether
// the pass may go on to the next item.
func (c *Coordinator) deliver(ctx context.Context, p models.Partition, item *models.QueueItem) (bool, error) {
	if err := c.queue.MarkSending(ctx, p, item.ID); err != nil {
		if isStale(err) {
			return true, nil
		}
		return false, err
	}
	c.log.Debug(ctx, "sending", "partition", p, "id", item.ID, "attempt", item.AttemptCount+1)

	// The call and its bookkeeping outlive cancellation of ctx so a response
	// is never lost once the request has gone out.
	callCtx := context.WithoutCancel(ctx)
	if c.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, c.cfg.RequestTimeout)
		defer cancel()
	}

	ack, callErr := c.call(callCtx, p, item)

	bookCtx := context.WithoutCancel(ctx)
	switch remote.Classify(callErr) {
	case remote.OutcomeOK:
		return true, c.onSuccess(bookCtx, p, item, ack)
	case remote.OutcomeUnauthorized:
		return false, c.onUnauthorized(bookCtx, p, item, callErr)
	case remote.OutcomeTerminal:
		return c.onFailure(bookCtx, p, item, callErr, true)
	default:
		return c.onFailure(bookCtx, p, item, callErr, false)
	}
}

// call performs the remote request for item. For profile edits it returns
// the authoritative entity to acknowledge.
func (c *Coordinator) call(ctx context.Context, p models.Partition, item *models.QueueItem) (func(context.Context) error, error) {
	switch p {
	case models.PartitionMessages:
		msg, err := item.Message()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", remote.ErrValidation, err)
		}
		res, err := c.remote.SubmitMessage(ctx, item.ID, msg)
		if err != nil {
			return nil, err
		}
		if res.Duplicate {
			c.log.Debug(ctx, "server already had message", "id", item.ID)
		}
		return nil, nil

	case models.PartitionProfileEdits:
		edit, err := item.ProfileEdit()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", remote.ErrValidation, err)
		}
		rec, err := c.remote.ApplyProfileEdit(ctx, item.ID, edit)
		if err != nil {
			return nil, err
		}
		if rec.Key == "" {
			rec.Key = edit.EntityID
		}
		return func(ctx context.Context) error {
			return c.ack.Acknowledge(ctx, edit.Collection, rec)
		}, nil
	}
	return nil, fmt.Errorf("%w: %q", queue.ErrUnknownPartition, p)
}

func (c *Coordinator) onSuccess(ctx context.Context, p models.Partition, item *models.QueueItem, ack func(context.Context) error) error {
	if err := c.queue.MarkSent(ctx, p, item.ID); err != nil {
		if isStale(err) {
			c.late(ctx, p, item, nil)
			return nil
		}
		return err
	}

	// Sent edits no longer shield fields, so the acknowledged entity
	// becomes the baseline here.
	if ack != nil {
		if err := ack(ctx); err != nil {
			c.log.Error(ctx, "failed to store acknowledged entity", "partition", p, "id", item.ID, "error", err)
		}
	}

	if err := c.queue.Remove(ctx, p, item.ID); err != nil && !isStale(err) {
		return err
	}

	c.stats.delivered.Add(1)
	c.log.Debug(ctx, "delivered", "partition", p, "id", item.ID)
	c.emit(Event{Kind: EventDelivered, Partition: p, ItemID: item.ID, Attempt: item.AttemptCount + 1})
	return nil
}

func (c *Coordinator) onUnauthorized(ctx context.Context, p models.Partition, item *models.QueueItem, cause error) error {
	if err := c.queue.MarkPending(ctx, p, item.ID); err != nil {
		if isStale(err) {
			c.late(ctx, p, item, cause)
			return nil
		}
		return err
	}
	c.stats.unauthorized.Add(1)
	c.log.Warn(ctx, "remote rejected credentials, pausing partition", "partition", p, "error", cause)
	c.emit(Event{Kind: EventUnauthorized, Partition: p, ItemID: item.ID, Attempt: item.AttemptCount, Err: cause})
	return nil
}

func (c *Coordinator) onFailure(ctx context.Context, p models.Partition, item *models.QueueItem, cause error, terminal bool) (bool, error) {
	retryIn := c.cfg.Backoff(item.AttemptCount + 1)
	retryAt := c.clock.Now().Add(retryIn)

	updated, err := c.queue.MarkFailed(ctx, p, item.ID, cause, queue.FailOptions{
		Terminal:      terminal,
		MaxAttempts:   c.cfg.MaxAttempts,
		NextAttemptAt: retryAt,
	})
	if err != nil {
		if isStale(err) {
			c.late(ctx, p, item, cause)
			return true, nil
		}
		return false, err
	}

	if updated.Status == models.StatusDeadLetter {
		c.stats.deadLettered.Add(1)
		c.log.Error(ctx, "dead-lettered", "partition", p, "id", item.ID, "attempts", updated.AttemptCount, "error", cause)
		c.emit(Event{Kind: EventDeadLettered, Partition: p, ItemID: item.ID, Attempt: updated.AttemptCount, Err: cause})
		return true, nil
	}

	c.stats.retried.Add(1)
	c.log.Warn(ctx, "delivery failed, will retry", "partition", p, "id", item.ID,
		"attempt", updated.AttemptCount, "retry_in", retryIn, "error", cause)
	c.emit(Event{Kind: EventRetrying, Partition: p, ItemID: item.ID, Attempt: updated.AttemptCount, Err: cause, RetryAt: retryAt})

	// The head is now waiting; later items stay behind it.
	c.armRetry(p, retryIn)
	return false, nil
}

func (c *Coordinator) late(ctx context.Context, p models.Partition, item *models.QueueItem, cause error) {
	c.stats.late.Add(1)
	c.log.Info(ctx, "ignored response for item no longer in flight", "partition", p, "id", item.ID)
	c.emit(Event{Kind: EventLateResponse, Partition: p, ItemID: item.ID, Err: cause})
}

// armRetry schedules a flush of p after d, replacing any earlier timer. The
// flush only runs if the device is online by then; otherwise the next Online
// transition picks the item up.
func (c *Coordinator) armRetry(p models.Partition, d time.Duration) {
	c.mu.Lock()
	stopped := c.stopped
	c.mu.Unlock()
	if stopped {
		return
	}

	ps := c.parts[p]
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.timer != nil {
		ps.timer.Stop()
	}
	ps.timer = c.clock.AfterFunc(d, func() { c.Trigger(p) })
}

func (c *Coordinator) emit(e Event) {
	if c.observer != nil {
		c.observer.OnEvent(e)
	}
}

func isStale(err error) bool {
	return errors.Is(err, queue.ErrStateMismatch) || errors.Is(err, queue.ErrNotFound)
}

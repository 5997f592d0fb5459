// Package queue implements the durable Mutation Queue: an append-only,
// per-partition FIFO log of local writes waiting to reach the remote
// authority. Each partition lives in its own SQLite table whose
// AUTOINCREMENT key provides the sequence number.
//
// Status changes made on behalf of the sync coordinator are conditional: the
// UPDATE names the status it expects, and zero affected rows yields
// ErrStateMismatch so stale responses cannot overwrite newer state.
package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/vaxsync/internal/client/models"
	"github.com/dmitrijs2005/vaxsync/internal/dbx"
	"github.com/dmitrijs2005/vaxsync/internal/timex"
	"github.com/google/uuid"
)

var tables = map[models.Partition]string{
	models.PartitionMessages:     "message_queue",
	models.PartitionProfileEdits: "profile_edits",
}

const columns = `seq, id, payload, entity_collection, entity_id, status, attempt_count, last_error, next_attempt_at, created_at, updated_at`

// SQLiteQueue is the Mutation Queue backed by SQLite.
type SQLiteQueue struct {
	db    *sql.DB
	clock timex.Clock
	newID func() string
}

// New returns a queue over db. A nil clock means the wall clock.
func New(db *sql.DB, clock timex.Clock) *SQLiteQueue {
	if clock == nil {
		clock = timex.RealClock{}
	}
	return &SQLiteQueue{db: db, clock: clock, newID: uuid.NewString}
}

func table(p models.Partition) (string, error) {
	t, ok := tables[p]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPartition, p)
	}
	return t, nil
}

// Enqueue appends payload to partition p and returns the new item id once the
// row is committed. Profile edits must be passed as models.ProfileEdit.
func (q *SQLiteQueue) Enqueue(ctx context.Context, p models.Partition, payload any) (string, error) {
	t, err := table(p)
	if err != nil {
		return "", err
	}

	var collection, entityID string
	if p == models.PartitionProfileEdits {
		edit, ok := asProfileEdit(payload)
		if !ok {
			return "", fmt.Errorf("%w: profile edits take models.ProfileEdit, got %T", ErrInvalidPayload, payload)
		}
		if !edit.Collection.Valid() || edit.EntityID == "" || len(edit.Changes) == 0 {
			return "", fmt.Errorf("%w: edit must name a collection, an entity and at least one field", ErrInvalidPayload)
		}
		collection, entityID = string(edit.Collection), edit.EntityID
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	id := q.newID()
	now := q.clock.Now().UnixMilli()

	query := fmt.Sprintf(`INSERT INTO %s (id, payload, entity_collection, entity_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, t)
	if _, err := q.db.ExecContext(ctx, query, id, string(body), collection, entityID, models.StatusPending, now, now); err != nil {
		return "", fmt.Errorf("failed to enqueue: %w", err)
	}
	return id, nil
}

func asProfileEdit(payload any) (models.ProfileEdit, bool) {
	switch v := payload.(type) {
	case models.ProfileEdit:
		return v, true
	case *models.ProfileEdit:
		if v == nil {
			return models.ProfileEdit{}, false
		}
		return *v, true
	}
	return models.ProfileEdit{}, false
}

// Get returns the item with the given id.
func (q *SQLiteQueue) Get(ctx context.Context, p models.Partition, id string) (*models.QueueItem, error) {
	t, err := table(p)
	if err != nil {
		return nil, err
	}
	row := q.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, columns, t), id)
	item, err := scanItem(row, p)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return item, err
}

// PeekNext returns the oldest Pending or Failed item of p, or nil when there is none.
// Dead letters do not block the items behind them.
func (q *SQLiteQueue) PeekNext(ctx context.Context, p models.Partition) (*models.QueueItem, error) {
	t, err := table(p)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE status IN (?, ?) ORDER BY seq LIMIT 1`, columns, t)
	item, err := scanItem(q.db.QueryRowContext(ctx, query, models.StatusPending, models.StatusFailed), p)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return item, err
}

// MaxSeq returns the highest sequence number currently stored in p, or 0.
func (q *SQLiteQueue) MaxSeq(ctx context.Context, p models.Partition) (int64, error) {
	t, err := table(p)
	if err != nil {
		return 0, err
	}
	var seq sql.NullInt64
	if err := q.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT MAX(seq) FROM %s`, t)).Scan(&seq); err != nil {
		return 0, err
	}
	return seq.Int64, nil
}

// MarkSending moves a Pending item to Sending.
func (q *SQLiteQueue) MarkSending(ctx context.Context, p models.Partition, id string) error {
	return q.transition(ctx, p, id, models.StatusSending, models.StatusPending)
}

// MarkSent moves a Sending item to Sent.
func (q *SQLiteQueue) MarkSent(ctx context.Context, p models.Partition, id string) error {
	return q.transition(ctx, p, id, models.StatusSent, models.StatusSending)
}

// MarkPending returns a Failed or Sending item to Pending without touching its
// attempt count. Failed items become eligible again after their backoff;
// Sending items come back when the attempt did not count, e.g. on auth failure.
func (q *SQLiteQueue) MarkPending(ctx context.Context, p models.Partition, id string) error {
	return q.transition(ctx, p, id, models.StatusPending, models.StatusFailed, models.StatusSending)
}

func (q *SQLiteQueue) transition(ctx context.Context, p models.Partition, id string, to models.Status, from ...models.Status) error {
	t, err := table(p)
	if err != nil {
		return err
	}

	args := []any{to, q.clock.Now().UnixMilli(), id}
	for _, s := range from {
		args = append(args, s)
	}
	query := fmt.Sprintf(`UPDATE %s SET status = ?, updated_at = ? WHERE id = ? AND status IN (%s)`, t, placeholders(len(from)))

	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	return q.checkAffected(ctx, res, p, id)
}

func (q *SQLiteQueue) checkAffected(ctx context.Context, res sql.Result, p models.Partition, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := q.Get(ctx, p, id); err != nil {
		return err
	}
	return ErrStateMismatch
}

// FailOptions describe a failed delivery attempt.
type FailOptions struct {
	// Terminal skips retries and dead-letters the item.
	Terminal bool

	// MaxAttempts dead-letters the item once its attempt count reaches it.
	// Zero disables the cap.
	MaxAttempts int

	// NextAttemptAt is when a recoverable item becomes due again.
	NextAttemptAt time.Time
}

// MarkFailed records a failed attempt on a Sending item, incrementing its
// attempt count. It returns the resulting item, whose status is either Failed
// or DeadLetter.
func (q *SQLiteQueue) MarkFailed(ctx context.Context, p models.Partition, id string, cause error, opts FailOptions) (*models.QueueItem, error) {
	t, err := table(p)
	if err != nil {
		return nil, err
	}

	msg := ""
	if cause != nil {
		msg = cause.Error()
	}

	var result *models.QueueItem
	err = dbx.WithTx(ctx, q.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		item, err := scanItem(tx.QueryRowContext(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, columns, t), id), p)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if item.Status != models.StatusSending {
			return ErrStateMismatch
		}

		item.AttemptCount++
		item.LastError = msg
		item.UpdatedAt = q.clock.Now()
		item.Status = models.StatusFailed
		item.NextAttemptAt = opts.NextAttemptAt
		if opts.Terminal || (opts.MaxAttempts > 0 && item.AttemptCount >= opts.MaxAttempts) {
			item.Status = models.StatusDeadLetter
			item.NextAttemptAt = time.Time{}
		}

		_, err = tx.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET status = ?, attempt_count = ?, last_error = ?, next_attempt_at = ?, updated_at = ?
			WHERE id = ?`, t),
			item.Status, item.AttemptCount, item.LastError, millis(item.NextAttemptAt), item.UpdatedAt.UnixMilli(), id)
		if err != nil {
			return fmt.Errorf("failed to record failure: %w", err)
		}
		result = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Retry resets a DeadLetter or Failed item to Pending with a fresh attempt budget.
func (q *SQLiteQueue) Retry(ctx context.Context, p models.Partition, id string) error {
	t, err := table(p)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE %s SET status = ?, attempt_count = 0, last_error = '', next_attempt_at = 0, updated_at = ?
		WHERE id = ? AND status IN (?, ?)`, t)
	res, err := q.db.ExecContext(ctx, query, models.StatusPending, q.clock.Now().UnixMilli(), id, models.StatusDeadLetter, models.StatusFailed)
	if err != nil {
		return fmt.Errorf("failed to retry: %w", err)
	}
	return q.checkAffected(ctx, res, p, id)
}

// Remove deletes an item that reached Sent.
func (q *SQLiteQueue) Remove(ctx context.Context, p models.Partition, id string) error {
	return q.delete(ctx, p, id, models.StatusSent)
}

// Discard deletes an item on explicit user request and returns it. Items in
// flight cannot be discarded.
func (q *SQLiteQueue) Discard(ctx context.Context, p models.Partition, id string) (*models.QueueItem, error) {
	item, err := q.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if err := q.delete(ctx, p, id, models.StatusPending, models.StatusFailed, models.StatusDeadLetter, models.StatusSent); err != nil {
		return nil, err
	}
	return item, nil
}

func (q *SQLiteQueue) delete(ctx context.Context, p models.Partition, id string, from ...models.Status) error {
	t, err := table(p)
	if err != nil {
		return err
	}
	args := []any{id}
	for _, s := range from {
		args = append(args, s)
	}
	res, err := q.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ? AND status IN (%s)`, t, placeholders(len(from))), args...)
	if err != nil {
		return fmt.Errorf("failed to delete queue item: %w", err)
	}
	return q.checkAffected(ctx, res, p, id)
}

// List returns the items of p in sequence order, restricted to the given
// statuses when any are passed.
func (q *SQLiteQueue) List(ctx context.Context, p models.Partition, statuses ...models.Status) ([]models.QueueItem, error) {
	t, err := table(p)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM %s`, columns, t)
	var args []any
	if len(statuses) > 0 {
		query += fmt.Sprintf(` WHERE status IN (%s)`, placeholders(len(statuses)))
		for _, s := range statuses {
			args = append(args, s)
		}
	}
	query += ` ORDER BY seq`

	return q.selectItems(ctx, p, query, args...)
}

// Counts returns the number of items of p per status. Every status is present.
func (q *SQLiteQueue) Counts(ctx context.Context, p models.Partition) (map[models.Status]int, error) {
	t, err := table(p)
	if err != nil {
		return nil, err
	}

	rows, err := q.db.QueryContext(ctx, fmt.Sprintf(`SELECT status, COUNT(*) FROM %s GROUP BY status`, t))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.Status]int, len(models.Statuses))
	for _, s := range models.Statuses {
		counts[s] = 0
	}
	for rows.Next() {
		var (
			s string
			n int
		)
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		counts[models.Status(s)] = n
	}
	return counts, rows.Err()
}

// PendingEdits returns every profile edit for the entity that has not been
// acknowledged yet, oldest first.
func (q *SQLiteQueue) PendingEdits(ctx context.Context, c models.Collection, entityID string) ([]models.QueuedProfileEdit, error) {
	query := fmt.Sprintf(`SELECT %s FROM profile_edits WHERE entity_collection = ? AND entity_id = ? AND status <> ? ORDER BY seq`, columns)
	items, err := q.selectItems(ctx, models.PartitionProfileEdits, query, string(c), entityID, models.StatusSent)
	if err != nil {
		return nil, err
	}

	edits := make([]models.QueuedProfileEdit, 0, len(items))
	for _, it := range items {
		edit, err := it.ProfileEdit()
		if err != nil {
			return nil, fmt.Errorf("decode edit %s: %w", it.ID, err)
		}
		edits = append(edits, models.QueuedProfileEdit{QueueID: it.ID, Seq: it.Seq, Status: it.Status, Edit: edit})
	}
	return edits, nil
}

// Recover returns items left in Sending by an interrupted run to Pending. It
// must run before the first flush.
func (q *SQLiteQueue) Recover(ctx context.Context) (int, error) {
	total := 0
	now := q.clock.Now().UnixMilli()
	for _, p := range models.Partitions {
		t, _ := table(p)
		res, err := q.db.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET status = ?, updated_at = ? WHERE status = ?`, t),
			models.StatusPending, now, models.StatusSending)
		if err != nil {
			return total, fmt.Errorf("failed to recover %s: %w", p, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, err
		}
		total += int(n)
	}
	return total, nil
}

func (q *SQLiteQueue) selectItems(ctx context.Context, p models.Partition, query string, args ...any) ([]models.QueueItem, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.QueueItem
	for rows.Next() {
		it, err := scanItem(rows, p)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner, p models.Partition) (*models.QueueItem, error) {
	var (
		it                           models.QueueItem
		payload, collection, status  string
		nextAttempt, created, update int64
	)
	err := row.Scan(&it.Seq, &it.ID, &payload, &collection, &it.EntityID, &status,
		&it.AttemptCount, &it.LastError, &nextAttempt, &created, &update)
	if err != nil {
		return nil, err
	}
	it.Partition = p
	it.Payload = json.RawMessage(payload)
	it.EntityCollection = models.Collection(collection)
	it.Status = models.Status(status)
	it.NextAttemptAt = fromMillis(nextAttempt)
	it.CreatedAt = fromMillis(created)
	it.UpdatedAt = fromMillis(update)
	return &it, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/vaxsync/internal/client/models"
	"github.com/dmitrijs2005/vaxsync/internal/dbx"
)

type tableSpec struct {
	table string
	// indexes maps entity field names to indexed columns.
	indexes map[string]string
}

var tables = map[models.Collection]tableSpec{
	models.CollectionGuardians: {table: "guardians"},
	models.CollectionPatients: {
		table:   "patients",
		indexes: map[string]string{"guardianId": "guardian_id"},
	},
	models.CollectionFAQs: {table: "faqs"},
}

// SQLiteStore implements Store over a dbx.DBTX.
type SQLiteStore struct {
	db  dbx.DBTX
	hub *Hub

	// writeMu orders commits and their notifications.
	writeMu sync.Mutex
	closed  atomic.Bool
}

// NewSQLiteStore returns a store bound to db.
func NewSQLiteStore(db dbx.DBTX) *SQLiteStore {
	return &SQLiteStore{db: db, hub: NewHub()}
}

func (s *SQLiteStore) lookup(c models.Collection) (tableSpec, error) {
	if s.closed.Load() {
		return tableSpec{}, ErrClosed
	}
	spec, ok := tables[c]
	if !ok {
		return tableSpec{}, models.ErrUnknownCollection
	}
	return spec, nil
}

// Get returns the record stored under key, or nil when absent.
func (s *SQLiteStore) Get(ctx context.Context, c models.Collection, key string) (*models.Record, error) {
	spec, err := s.lookup(c)
	if err != nil {
		return nil, storageErr("get", c, key, err)
	}

	query := fmt.Sprintf(`SELECT id, body, version, updated_at FROM %s WHERE id = ?`, spec.table)
	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get", c, key, err)
	}
	return rec, nil
}

// Put upserts rec under key and notifies subscribers once committed.
func (s *SQLiteStore) Put(ctx context.Context, c models.Collection, key string, rec models.Record) error {
	spec, err := s.lookup(c)
	if err != nil {
		return storageErr("put", c, key, err)
	}
	if key == "" {
		return storageErr("put", c, key, models.ErrEmptyKey)
	}
	rec = rec.Clone()
	rec.Key = key

	body, err := rec.Body()
	if err != nil {
		return storageErr("put", c, key, err)
	}

	cols := []string{"id", "body", "version", "updated_at"}
	args := []any{key, string(body), rec.Version, formatTime(rec.UpdatedAt)}
	for field, col := range spec.indexes {
		cols = append(cols, col)
		args = append(args, indexValue(rec, field))
	}

	query := upsertQuery(spec.table, cols)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return storageErr("put", c, key, fmt.Errorf("failed to upsert record: %w", err))
	}

	stored := rec.Clone()
	s.hub.Publish(Change{Collection: c, Key: key, Op: OpPut, Record: &stored})
	return nil
}

// Delete removes the record stored under key.
func (s *SQLiteStore) Delete(ctx context.Context, c models.Collection, key string) error {
	spec, err := s.lookup(c)
	if err != nil {
		return storageErr("delete", c, key, err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, spec.table), key)
	if err != nil {
		return storageErr("delete", c, key, fmt.Errorf("failed to delete record: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("delete", c, key, fmt.Errorf("failed to get rows affected: %w", err))
	}
	if n > 0 {
		s.hub.Publish(Change{Collection: c, Key: key, Op: OpDelete})
	}
	return nil
}

// Query returns records whose indexField equals value.
func (s *SQLiteStore) Query(ctx context.Context, c models.Collection, indexField, value string) ([]models.Record, error) {
	spec, err := s.lookup(c)
	if err != nil {
		return nil, storageErr("query", c, "", err)
	}
	col, ok := spec.indexes[indexField]
	if !ok {
		return nil, storageErr("query", c, "", fmt.Errorf("%w: %s", ErrUnknownIndex, indexField))
	}

	query := fmt.Sprintf(`SELECT id, body, version, updated_at FROM %s WHERE %s = ? ORDER BY id`, spec.table, col)
	recs, err := s.selectRecords(ctx, query, value)
	if err != nil {
		return nil, storageErr("query", c, "", err)
	}
	return recs, nil
}

// List returns every record of the collection.
func (s *SQLiteStore) List(ctx context.Context, c models.Collection) ([]models.Record, error) {
	spec, err := s.lookup(c)
	if err != nil {
		return nil, storageErr("list", c, "", err)
	}

	recs, err := s.selectRecords(ctx, fmt.Sprintf(`SELECT id, body, version, updated_at FROM %s ORDER BY id`, spec.table))
	if err != nil {
		return nil, storageErr("list", c, "", err)
	}
	return recs, nil
}

// Clear removes every record of the collection.
func (s *SQLiteStore) Clear(ctx context.Context, c models.Collection) error {
	spec, err := s.lookup(c)
	if err != nil {
		return storageErr("clear", c, "", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, spec.table)); err != nil {
		return storageErr("clear", c, "", fmt.Errorf("failed to clear collection: %w", err))
	}
	s.hub.Publish(Change{Collection: c, Op: OpClear})
	return nil
}

// Subscribe registers fn for committed changes.
func (s *SQLiteStore) Subscribe(c models.Collection, key string, fn func(Change)) func() {
	return s.hub.Subscribe(c, key, fn)
}

// Close drops all subscriptions and rejects further calls. The underlying
// database is owned by the caller.
func (s *SQLiteStore) Close() {
	if s.closed.CompareAndSwap(false, true) {
		s.hub.Close()
	}
}

func (s *SQLiteStore) selectRecords(ctx context.Context, query string, args ...any) ([]models.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select records: %w", err)
	}
	defer rows.Close()

	var result []models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*models.Record, error) {
	var (
		rec       models.Record
		body      string
		updatedAt string
	)
	if err := row.Scan(&rec.Key, &body, &rec.Version, &updatedAt); err != nil {
		return nil, err
	}
	fields, err := models.ParseBody([]byte(body))
	if err != nil {
		return nil, err
	}
	rec.Fields = fields
	rec.UpdatedAt = parseTime(updatedAt)
	return &rec, nil
}

func upsertQuery(table string, cols []string) string {
	q := "INSERT INTO " + table + " ("
	ph := ""
	set := ""
	for i, c := range cols {
		if i > 0 {
			q += ", "
			ph += ", "
		}
		q += c
		ph += "?"
		if c == "id" {
			continue
		}
		if set != "" {
			set += ", "
		}
		set += c + " = excluded." + c
	}
	return q + ") VALUES (" + ph + ") ON CONFLICT(id) DO UPDATE SET " + set
}

// indexValue extracts a string index value; non-string fields index as "".
func indexValue(rec models.Record, field string) string {
	raw, ok := rec.Fields[field]
	if !ok {
		return ""
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	return v
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

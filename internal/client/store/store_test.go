package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/vaxsync/internal/client/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := OpenDatabase(context.Background(), filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	s := NewSQLiteStore(db)
	t.Cleanup(func() {
		s.Close()
		_ = db.Close()
	})
	return s
}

func patientRecord(id, guardian, name string, version int64) models.Record {
	return models.Record{
		Key:       id,
		Version:   version,
		UpdatedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		Fields: map[string]json.RawMessage{
			"id":         json.RawMessage(`"` + id + `"`),
			"guardianId": json.RawMessage(`"` + guardian + `"`),
			"name":       json.RawMessage(`"` + name + `"`),
		},
	}
}

func TestSQLiteStore_PutGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := patientRecord("p1", "g1", "Ada", 3)
	require.NoError(t, s.Put(ctx, models.CollectionPatients, "p1", rec))

	got, err := s.Get(ctx, models.CollectionPatients, "p1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, rec.Equal(*got))
	assert.True(t, rec.UpdatedAt.Equal(got.UpdatedAt))
}

func TestSQLiteStore_GetMissingReturnsNil(t *testing.T) {
	s := newTestStore(t)

	got, err := s.Get(context.Background(), models.CollectionGuardians, "nobody")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteStore_PutOverwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, models.CollectionPatients, "p1", patientRecord("p1", "g1", "Ada", 1)))
	require.NoError(t, s.Put(ctx, models.CollectionPatients, "p1", patientRecord("p1", "g2", "Grace", 2)))

	got, err := s.Get(ctx, models.CollectionPatients, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	assert.JSONEq(t, `"Grace"`, string(got.Fields["name"]))

	byOld, err := s.Query(ctx, models.CollectionPatients, "guardianId", "g1")
	require.NoError(t, err)
	assert.Empty(t, byOld)
}

func TestSQLiteStore_KeyOverridesRecordKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := patientRecord("other", "g1", "Ada", 1)
	require.NoError(t, s.Put(ctx, models.CollectionPatients, "p9", rec))

	got, err := s.Get(ctx, models.CollectionPatients, "p9")
	require.NoError(t, err)
	assert.Equal(t, "p9", got.Key)
}

func TestSQLiteStore_QueryByGuardian(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, models.CollectionPatients, "p2", patientRecord("p2", "g1", "Bo", 1)))
	require.NoError(t, s.Put(ctx, models.CollectionPatients, "p1", patientRecord("p1", "g1", "Ada", 1)))
	require.NoError(t, s.Put(ctx, models.CollectionPatients, "p3", patientRecord("p3", "g2", "Cy", 1)))

	got, err := s.Query(ctx, models.CollectionPatients, "guardianId", "g1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "p1", got[0].Key)
	assert.Equal(t, "p2", got[1].Key)
}

func TestSQLiteStore_QueryUnknownIndex(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Query(context.Background(), models.CollectionFAQs, "tags", "x")
	require.ErrorIs(t, err, ErrUnknownIndex)
	require.ErrorIs(t, err, ErrStorage)
}

func TestSQLiteStore_UnknownCollection(t *testing.T) {
	s := newTestStore(t)

	err := s.Put(context.Background(), models.Collection("visits"), "v1", models.Record{})
	require.ErrorIs(t, err, models.ErrUnknownCollection)

	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "put", se.Op)
}

func TestSQLiteStore_PutEmptyKey(t *testing.T) {
	s := newTestStore(t)

	err := s.Put(context.Background(), models.CollectionFAQs, "", models.Record{})
	require.ErrorIs(t, err, models.ErrEmptyKey)
}

func TestSQLiteStore_DeleteAndClear(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"f1", "f2", "f3"} {
		require.NoError(t, s.Put(ctx, models.CollectionFAQs, id, models.Record{Key: id, Version: 1}))
	}

	require.NoError(t, s.Delete(ctx, models.CollectionFAQs, "f2"))
	require.NoError(t, s.Delete(ctx, models.CollectionFAQs, "missing"))

	all, err := s.List(ctx, models.CollectionFAQs)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "f1", all[0].Key)
	assert.Equal(t, "f3", all[1].Key)

	require.NoError(t, s.Clear(ctx, models.CollectionFAQs))
	all, err = s.List(ctx, models.CollectionFAQs)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSQLiteStore_SubscribeSeesCommittedWrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	changes := make(chan Change, 8)
	unsubscribe := s.Subscribe(models.CollectionPatients, "p1", func(c Change) { changes <- c })
	defer unsubscribe()

	require.NoError(t, s.Put(ctx, models.CollectionPatients, "p2", patientRecord("p2", "g1", "Bo", 1)))
	require.NoError(t, s.Put(ctx, models.CollectionPatients, "p1", patientRecord("p1", "g1", "Ada", 1)))
	require.NoError(t, s.Delete(ctx, models.CollectionPatients, "p1"))

	first := receive(t, changes)
	assert.Equal(t, OpPut, first.Op)
	assert.Equal(t, "p1", first.Key)
	require.NotNil(t, first.Record)
	assert.JSONEq(t, `"Ada"`, string(first.Record.Fields["name"]))

	second := receive(t, changes)
	assert.Equal(t, OpDelete, second.Op)
	assert.Nil(t, second.Record)
}

func TestSQLiteStore_SubscribeCallbackMayWrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	done := make(chan struct{})
	unsubscribe := s.Subscribe(models.CollectionFAQs, "f1", func(c Change) {
		if c.Op != OpPut {
			return
		}
		// writing from inside a callback must not deadlock
		_ = s.Put(ctx, models.CollectionFAQs, "f2", models.Record{Key: "f2", Version: 1})
		close(done)
	})
	defer unsubscribe()

	require.NoError(t, s.Put(ctx, models.CollectionFAQs, "f1", models.Record{Key: "f1", Version: 1}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("callback did not complete")
	}

	got, err := s.Get(ctx, models.CollectionFAQs, "f2")
	require.NoError(t, err)
	require.NotNil(t, got)
}

func receive(t *testing.T, ch <-chan Change) Change {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change")
		return Change{}
	}
}

func TestSQLiteStore_ClosedRejectsCalls(t *testing.T) {
	s := newTestStore(t)
	s.Close()

	_, err := s.Get(context.Background(), models.CollectionFAQs, "f1")
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, s.Clear(context.Background(), models.CollectionFAQs), ErrClosed)
}

package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/vaxsync/internal/client/cache"
	"github.com/dmitrijs2005/vaxsync/internal/client/models"
	"github.com/dmitrijs2005/vaxsync/internal/client/queue"
	"github.com/dmitrijs2005/vaxsync/internal/client/remote"
	"github.com/dmitrijs2005/vaxsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/vaxsync/internal/client/store"
	"github.com/dmitrijs2005/vaxsync/internal/logging"
	"github.com/dmitrijs2005/vaxsync/internal/timex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 9, 2, 9, 0, 0, 0, time.UTC)

// fakeRemote serves records keyed by collection and id.
type fakeRemote struct {
	mu      sync.Mutex
	records map[models.Collection]map[string]models.Record
	err     error
	pingErr error
	closed  bool
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{records: map[models.Collection]map[string]models.Record{}}
}

func (f *fakeRemote) put(t *testing.T, e models.Entity) models.Record {
	t.Helper()
	rec, err := models.ToRecord(e)
	require.NoError(t, err)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.records[e.Collection()] == nil {
		f.records[e.Collection()] = map[string]models.Record{}
	}
	f.records[e.Collection()][rec.Key] = rec
	return rec
}

func (f *fakeRemote) Fetch(_ context.Context, c models.Collection, id string) (models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return models.Record{}, f.err
	}
	r, ok := f.records[c][id]
	if !ok {
		return models.Record{}, remote.ErrNotFound
	}
	return r, nil
}

func (f *fakeRemote) List(_ context.Context, c models.Collection) ([]models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Record
	for _, r := range f.records[c] {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeRemote) Query(ctx context.Context, c models.Collection, _, value string) ([]models.Record, error) {
	all, err := f.List(ctx, c)
	if err != nil {
		return nil, err
	}
	var out []models.Record
	for _, r := range all {
		p, err := models.FromRecord[models.Patient](r)
		if err == nil && p.GuardianID == value {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRemote) Ping(context.Context) error { return f.pingErr }

func (f *fakeRemote) Close() error {
	f.closed = true
	return nil
}

type fakeTrigger struct {
	mu    sync.Mutex
	calls []models.Partition
}

func (f *fakeTrigger) Trigger(p models.Partition) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, p)
}

type env struct {
	store   *store.SQLiteStore
	queue   *queue.SQLiteQueue
	meta    *metadata.SQLiteRepository
	remote  *fakeRemote
	trigger *fakeTrigger
	loader  *cache.Loader

	records RecordService
	outbox  OutboxService
	session SessionService
}

func setup(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	db, err := store.OpenDatabase(ctx, filepath.Join(t.TempDir(), "svc.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	clock := timex.NewFakeClock(t0)
	log := logging.NewNop()
	e := &env{
		store:   store.NewSQLiteStore(db),
		queue:   queue.New(db, clock),
		meta:    metadata.NewSQLiteRepository(db),
		remote:  newFakeRemote(),
		trigger: &fakeTrigger{},
	}
	e.loader = cache.New(e.store, e.queue, e.remote, e.meta, clock, log)
	e.records = NewRecordService(e.store, e.loader, log)
	e.outbox = NewOutboxService(e.queue, e.loader, e.trigger, clock, log)
	e.session = NewSessionService(e.remote, e.store, e.meta)
	return e
}

func maria() models.Guardian {
	return models.Guardian{
		ID:        "g1",
		Version:   3,
		UpdatedAt: t0,
		Profile:   models.GuardianProfile{FirstName: "Maria", LastName: "Santos", Phone: "0917"},
	}
}

func TestRecords_ReadsFromCache(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	e.remote.put(t, maria())
	e.remote.put(t, models.Patient{ID: "p2", Version: 1, GuardianID: "g1", Details: models.PatientDetails{FirstName: "Ana"}})
	e.remote.put(t, models.Patient{ID: "p1", Version: 1, GuardianID: "g1", Details: models.PatientDetails{FirstName: "Luis"}})
	e.remote.put(t, models.Patient{ID: "p9", Version: 1, GuardianID: "other"})
	e.remote.put(t, models.FAQ{ID: "f2", Version: 1, Question: "When is the next dose?"})
	e.remote.put(t, models.FAQ{ID: "f1", Version: 1, Question: "Are vaccines free?"})

	_, err := e.records.Guardian(ctx, "g1")
	require.ErrorIs(t, err, ErrNotCached)

	require.NoError(t, e.records.Refresh(ctx, "g1"))

	g, err := e.records.Guardian(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "Maria", g.Profile.FirstName)

	patients, err := e.records.PatientsByGuardian(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, patients, 2)
	assert.Equal(t, "p1", patients[0].ID)
	assert.Equal(t, "p2", patients[1].ID)

	p, err := e.records.Patient(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, "Ana", p.Details.FirstName)

	faqs, err := e.records.FAQs(ctx)
	require.NoError(t, err)
	require.Len(t, faqs, 2)
	assert.Equal(t, "Are vaccines free?", faqs[0].Question)
}

func TestRecords_RefreshOfflineKeepsCache(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	e.remote.put(t, maria())
	require.NoError(t, e.records.Refresh(ctx, "g1"))

	e.remote.err = remote.ErrTransientNetwork
	err := e.records.Refresh(ctx, "g1")
	require.Error(t, err)

	var fe *cache.FetchError
	require.True(t, errors.As(err, &fe))
	assert.ErrorIs(t, err, remote.ErrTransientNetwork)

	g, err := e.records.Guardian(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), g.Version)
}

func TestRecords_Watch(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	got := make(chan store.Change, 4)
	unsub := e.records.Watch(models.CollectionGuardians, "g1", func(c store.Change) { got <- c })
	defer unsub()

	e.remote.put(t, maria())
	require.NoError(t, e.loader.Refresh(ctx, models.CollectionGuardians, "g1"))

	select {
	case c := <-got:
		assert.Equal(t, store.OpPut, c.Op)
		assert.Equal(t, "g1", c.Key)
	case <-time.After(2 * time.Second):
		t.Fatal("no change delivered")
	}
}

func TestOutbox_SendMessage(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	_, err := e.outbox.SendMessage(ctx, "c1", "g1", "   ")
	require.ErrorIs(t, err, ErrEmptyMessage)

	id, err := e.outbox.SendMessage(ctx, "c1", "g1", " Is the clinic open Saturday? ")
	require.NoError(t, err)

	it, err := e.queue.Get(ctx, models.PartitionMessages, id)
	require.NoError(t, err)
	msg, err := it.Message()
	require.NoError(t, err)
	assert.Equal(t, "Is the clinic open Saturday?", msg.Body)
	assert.True(t, msg.ComposedAt.Equal(t0))

	assert.Equal(t, []models.Partition{models.PartitionMessages}, e.trigger.calls)

	counts, err := e.outbox.Counts(ctx, models.PartitionMessages)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[models.StatusPending])
}

func TestOutbox_EditProfileIsVisibleOffline(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	e.remote.put(t, maria())
	require.NoError(t, e.loader.Refresh(ctx, models.CollectionGuardians, "g1"))

	profile := maria().Profile
	profile.Phone = "0999"
	_, err := e.outbox.EditProfile(ctx, models.CollectionGuardians, "g1", map[string]any{"profile": profile})
	require.NoError(t, err)

	g, err := e.records.Guardian(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "0999", g.Profile.Phone)
	assert.Equal(t, int64(3), g.Version)

	// a pull of the same version does not undo the pending edit
	require.NoError(t, e.loader.Refresh(ctx, models.CollectionGuardians, "g1"))
	g, err = e.records.Guardian(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "0999", g.Profile.Phone)

	assert.Equal(t, []models.Partition{models.PartitionProfileEdits}, e.trigger.calls)
}

func TestOutbox_DiscardEditRestoresRemoteValue(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	e.remote.put(t, maria())
	require.NoError(t, e.loader.Refresh(ctx, models.CollectionGuardians, "g1"))

	profile := maria().Profile
	profile.Phone = "0999"
	id, err := e.outbox.EditProfile(ctx, models.CollectionGuardians, "g1", map[string]any{"profile": profile})
	require.NoError(t, err)

	require.NoError(t, e.outbox.Discard(ctx, models.PartitionProfileEdits, id))

	g, err := e.records.Guardian(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "0917", g.Profile.Phone)

	items, err := e.outbox.List(ctx, models.PartitionProfileEdits)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestOutbox_RetryDeadLetter(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	id, err := e.outbox.SendMessage(ctx, "c1", "g1", "hello")
	require.NoError(t, err)
	require.NoError(t, e.queue.MarkSending(ctx, models.PartitionMessages, id))
	_, err = e.queue.MarkFailed(ctx, models.PartitionMessages, id, remote.ErrValidation, queue.FailOptions{Terminal: true})
	require.NoError(t, err)

	dead, err := e.outbox.List(ctx, models.PartitionMessages, models.StatusDeadLetter)
	require.NoError(t, err)
	require.Len(t, dead, 1)

	require.NoError(t, e.outbox.Retry(ctx, models.PartitionMessages, id))

	it, err := e.queue.Get(ctx, models.PartitionMessages, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, it.Status)
	assert.Zero(t, it.AttemptCount)
	assert.Len(t, e.trigger.calls, 2)
}

func TestSession_SignInAndLogout(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	_, err := e.session.CurrentGuardian(ctx)
	require.ErrorIs(t, err, ErrNotSignedIn)
	require.Error(t, e.session.SignIn(ctx, ""))

	require.NoError(t, e.session.SignIn(ctx, "g1"))
	id, err := e.session.CurrentGuardian(ctx)
	require.NoError(t, err)
	assert.Equal(t, "g1", id)

	e.remote.put(t, maria())
	require.NoError(t, e.records.Refresh(ctx, "g1"))
	_, err = e.outbox.SendMessage(ctx, "c1", "g1", "queued before logout")
	require.NoError(t, err)

	require.NoError(t, e.session.Logout(ctx))

	_, err = e.records.Guardian(ctx, "g1")
	require.ErrorIs(t, err, ErrNotCached)
	_, err = e.session.CurrentGuardian(ctx)
	require.ErrorIs(t, err, ErrNotSignedIn)

	left, err := e.queue.List(ctx, models.PartitionMessages)
	require.NoError(t, err)
	assert.Len(t, left, 1, "queued writes survive logout")
}

func TestSession_PingAndClose(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	require.NoError(t, e.session.Ping(ctx))
	e.remote.pingErr = remote.ErrTransientNetwork
	require.ErrorIs(t, e.session.Ping(ctx), remote.ErrTransientNetwork)

	require.NoError(t, e.session.Close(ctx))
	assert.True(t, e.remote.closed)
}

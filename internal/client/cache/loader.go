// Package cache keeps the Local Store in step with the remote authority.
//
// Incoming records pass the freshness rule before they overwrite cached
// ones. When profile edits for the entity are still queued, the record is
// merged with them so the user's unacknowledged changes stay visible.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/vaxsync/internal/client/conflict"
	"github.com/dmitrijs2005/vaxsync/internal/client/models"
	"github.com/dmitrijs2005/vaxsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/vaxsync/internal/client/store"
	"github.com/dmitrijs2005/vaxsync/internal/logging"
	"github.com/dmitrijs2005/vaxsync/internal/timex"
)

// Fetcher reads current state from the remote authority.
type Fetcher interface {
	Fetch(ctx context.Context, c models.Collection, id string) (models.Record, error)
	List(ctx context.Context, c models.Collection) ([]models.Record, error)
	Query(ctx context.Context, c models.Collection, indexField, value string) ([]models.Record, error)
}

// EditSource lists profile edits not yet acknowledged by the remote authority.
type EditSource interface {
	PendingEdits(ctx context.Context, c models.Collection, entityID string) ([]models.QueuedProfileEdit, error)
}

// Loader merges remote records into the Local Store.
type Loader struct {
	store  store.Store
	edits  EditSource
	remote Fetcher
	meta   metadata.Repository
	clock  timex.Clock
	log    logging.Logger

	// keys guards the Get then Put of each entity so a stale pull cannot
	// land on top of a newer acknowledged record.
	keys keyLocks
}

// New returns a Loader. meta may be nil, in which case refresh times are not recorded.
func New(st store.Store, edits EditSource, remote Fetcher, meta metadata.Repository, clock timex.Clock, log logging.Logger) *Loader {
	if clock == nil {
		clock = timex.RealClock{}
	}
	return &Loader{
		store:  st,
		edits:  edits,
		remote: remote,
		meta:   meta,
		clock:  clock,
		log:    log.With("module", "cache"),
	}
}

// Fresher reports whether incoming may overwrite cached: a higher version
// wins, and on equal versions the later or equal UpdatedAt wins.
func Fresher(incoming, cached models.Record) bool {
	if incoming.Version != cached.Version {
		return incoming.Version > cached.Version
	}
	return !incoming.UpdatedAt.Before(cached.UpdatedAt)
}

// Hydrate applies records to collection c under the freshness rule. It stops
// at the first storage failure.
func (l *Loader) Hydrate(ctx context.Context, c models.Collection, records []models.Record) error {
	var written, skipped int
	for _, rec := range records {
		ok, err := l.hydrateOne(ctx, c, rec)
		if err != nil {
			return err
		}
		if ok {
			written++
		} else {
			skipped++
		}
	}
	l.log.Debug(ctx, "hydrated", "collection", c, "written", written, "stale", skipped)
	return nil
}

func (l *Loader) hydrateOne(ctx context.Context, c models.Collection, rec models.Record) (bool, error) {
	if rec.Key == "" {
		return false, fmt.Errorf("hydrate %s: %w", c, models.ErrEmptyKey)
	}

	unlock := l.keys.lock(c, rec.Key)
	defer unlock()

	cached, err := l.store.Get(ctx, c, rec.Key)
	if err != nil {
		return false, err
	}
	if cached != nil && !Fresher(rec, *cached) {
		return false, nil
	}

	edits, err := l.edits.PendingEdits(ctx, c, rec.Key)
	if err != nil {
		return false, fmt.Errorf("hydrate %s/%s: %w", c, rec.Key, err)
	}

	if len(edits) > 0 {
		res := conflict.Merge(rec, edits)
		if len(res.Conflicts) > 0 {
			l.log.Info(ctx, "kept pending edits over pulled values",
				"collection", c, "key", rec.Key, "fields", res.Conflicts)
		}
		rec = res.Record
	}

	if err := l.store.Put(ctx, c, rec.Key, rec); err != nil {
		return false, err
	}
	return true, nil
}

// Refresh fetches one entity and hydrates it.
func (l *Loader) Refresh(ctx context.Context, c models.Collection, id string) error {
	rec, err := l.remote.Fetch(ctx, c, id)
	if err != nil {
		return &FetchError{Collection: c, ID: id, Err: err}
	}
	if err := l.Hydrate(ctx, c, []models.Record{rec}); err != nil {
		return err
	}
	l.markRefreshed(ctx, string(c)+"/"+id)
	return nil
}

// RefreshGuardian fetches a guardian and the patients linked to it. Nothing
// is written unless both reads succeed.
func (l *Loader) RefreshGuardian(ctx context.Context, guardianID string) error {
	guardian, err := l.remote.Fetch(ctx, models.CollectionGuardians, guardianID)
	if err != nil {
		return &FetchError{Collection: models.CollectionGuardians, ID: guardianID, Err: err}
	}
	patients, err := l.remote.Query(ctx, models.CollectionPatients, "guardianId", guardianID)
	if err != nil {
		return &FetchError{Collection: models.CollectionPatients, ID: guardianID, Err: err}
	}

	if err := l.Hydrate(ctx, models.CollectionGuardians, []models.Record{guardian}); err != nil {
		return err
	}
	if err := l.Hydrate(ctx, models.CollectionPatients, patients); err != nil {
		return err
	}
	l.markRefreshed(ctx, string(models.CollectionGuardians)+"/"+guardianID)
	return nil
}

// RefreshFAQs pulls the whole FAQ list. FAQs missing from the response are
// dropped from the cache.
func (l *Loader) RefreshFAQs(ctx context.Context) error {
	faqs, err := l.remote.List(ctx, models.CollectionFAQs)
	if err != nil {
		return &FetchError{Collection: models.CollectionFAQs, Err: err}
	}

	if err := l.Hydrate(ctx, models.CollectionFAQs, faqs); err != nil {
		return err
	}

	keep := make(map[string]struct{}, len(faqs))
	for _, f := range faqs {
		keep[f.Key] = struct{}{}
	}
	cached, err := l.store.List(ctx, models.CollectionFAQs)
	if err != nil {
		return err
	}
	for _, f := range cached {
		if _, ok := keep[f.Key]; !ok {
			if err := l.store.Delete(ctx, models.CollectionFAQs, f.Key); err != nil {
				return err
			}
		}
	}
	l.markRefreshed(ctx, string(models.CollectionFAQs))
	return nil
}

// Acknowledge installs the remote authority's response to an applied edit as
// the new baseline, bypassing the freshness rule. Edits still queued for the
// entity are layered on top. Call it after the acknowledged edit has left the
// pending set.
func (l *Loader) Acknowledge(ctx context.Context, c models.Collection, authoritative models.Record) error {
	if authoritative.Key == "" {
		return fmt.Errorf("acknowledge %s: %w", c, models.ErrEmptyKey)
	}

	unlock := l.keys.lock(c, authoritative.Key)
	defer unlock()

	edits, err := l.edits.PendingEdits(ctx, c, authoritative.Key)
	if err != nil {
		return fmt.Errorf("acknowledge %s/%s: %w", c, authoritative.Key, err)
	}

	rec := conflict.Merge(authoritative, edits).Record
	return l.store.Put(ctx, c, rec.Key, rec)
}

// ApplyLocalEdit writes an edit over the cached entity so reads reflect it
// before the remote authority has seen it. An uncached entity gets a stub
// record at version 0 that the next pull replaces.
func (l *Loader) ApplyLocalEdit(ctx context.Context, edit models.ProfileEdit) error {
	unlock := l.keys.lock(edit.Collection, edit.EntityID)
	defer unlock()

	cached, err := l.store.Get(ctx, edit.Collection, edit.EntityID)
	if err != nil {
		return err
	}

	base := models.Record{Key: edit.EntityID}
	if cached != nil {
		base = *cached
	}
	rec := conflict.Apply(base, edit.Changes)
	return l.store.Put(ctx, edit.Collection, edit.EntityID, rec)
}

// LastRefreshed returns when scope was last refreshed, or the zero time.
func (l *Loader) LastRefreshed(ctx context.Context, scope string) (time.Time, error) {
	if l.meta == nil {
		return time.Time{}, nil
	}
	return metadata.GetTime(ctx, l.meta, metadata.RefreshKey(scope))
}

func (l *Loader) markRefreshed(ctx context.Context, scope string) {
	if l.meta == nil {
		return
	}
	if err := metadata.SetTime(ctx, l.meta, metadata.RefreshKey(scope), l.clock.Now()); err != nil {
		l.log.Warn(ctx, "failed to record refresh time", "scope", scope, "error", err)
	}
}

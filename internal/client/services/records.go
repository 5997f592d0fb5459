package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dmitrijs2005/vaxsync/internal/client/cache"
	"github.com/dmitrijs2005/vaxsync/internal/client/models"
	"github.com/dmitrijs2005/vaxsync/internal/client/store"
	"github.com/dmitrijs2005/vaxsync/internal/logging"
)

// RecordService serves cached entities to the UI.
type RecordService interface {
	Guardian(ctx context.Context, id string) (*models.Guardian, error)
	Patient(ctx context.Context, id string) (*models.Patient, error)
	PatientsByGuardian(ctx context.Context, guardianID string) ([]models.Patient, error)
	FAQs(ctx context.Context) ([]models.FAQ, error)

	// Refresh pulls the guardian bundle and the FAQ list. Both are attempted
	// and their errors joined.
	Refresh(ctx context.Context, guardianID string) error

	// Watch calls fn after every committed change to c (or to one key of c).
	Watch(c models.Collection, key string, fn func(store.Change)) (unsubscribe func())
}

// Refresher is the part of the Cache Loader used for pulls.
type Refresher interface {
	RefreshGuardian(ctx context.Context, guardianID string) error
	RefreshFAQs(ctx context.Context) error
	Refresh(ctx context.Context, c models.Collection, id string) error
}

type recordService struct {
	store  store.Store
	loader Refresher
	log    logging.Logger
}

func NewRecordService(st store.Store, loader Refresher, log logging.Logger) RecordService {
	return &recordService{store: st, loader: loader, log: log.With("module", "records")}
}

func (s *recordService) Guardian(ctx context.Context, id string) (*models.Guardian, error) {
	return get[models.Guardian](ctx, s.store, models.CollectionGuardians, id)
}

func (s *recordService) Patient(ctx context.Context, id string) (*models.Patient, error) {
	return get[models.Patient](ctx, s.store, models.CollectionPatients, id)
}

func (s *recordService) PatientsByGuardian(ctx context.Context, guardianID string) ([]models.Patient, error) {
	recs, err := s.store.Query(ctx, models.CollectionPatients, "guardianId", guardianID)
	if err != nil {
		return nil, err
	}
	return decodeAll[models.Patient](recs)
}

func (s *recordService) FAQs(ctx context.Context) ([]models.FAQ, error) {
	recs, err := s.store.List(ctx, models.CollectionFAQs)
	if err != nil {
		return nil, err
	}
	faqs, err := decodeAll[models.FAQ](recs)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(faqs, func(i, j int) bool { return faqs[i].Question < faqs[j].Question })
	return faqs, nil
}

func (s *recordService) Refresh(ctx context.Context, guardianID string) error {
	gErr := s.loader.RefreshGuardian(ctx, guardianID)
	if gErr != nil {
		s.log.Warn(ctx, "guardian refresh failed", "guardian", guardianID, "error", gErr)
	}
	fErr := s.loader.RefreshFAQs(ctx)
	if fErr != nil {
		s.log.Warn(ctx, "faq refresh failed", "error", fErr)
	}
	return errors.Join(gErr, fErr)
}

func (s *recordService) Watch(c models.Collection, key string, fn func(store.Change)) func() {
	return s.store.Subscribe(c, key, fn)
}

func get[T any](ctx context.Context, st store.Store, c models.Collection, id string) (*T, error) {
	rec, err := st.Get(ctx, c, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%s/%s: %w", c, id, ErrNotCached)
	}
	return models.FromRecord[T](*rec)
}

func decodeAll[T any](recs []models.Record) ([]T, error) {
	out := make([]T, 0, len(recs))
	for _, r := range recs {
		v, err := models.FromRecord[T](r)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", r.Key, err)
		}
		out = append(out, *v)
	}
	return out, nil
}

var _ Refresher = (*cache.Loader)(nil)

// Package records stores guardians, patients and FAQs as versioned JSON bodies.
package records

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/vaxsync/internal/server/models"
)

var (
	ErrUnknownCollection = errors.New("unknown collection")
	ErrNotIndexed        = errors.New("collection has no guardian index")
)

type Repository interface {
	Get(ctx context.Context, c models.Collection, id string) (*models.Record, error)
	List(ctx context.Context, c models.Collection) ([]models.Record, error)
	ListByGuardian(ctx context.Context, c models.Collection, guardianID string) ([]models.Record, error)
	Put(ctx context.Context, c models.Collection, rec *models.Record) error
	Update(ctx context.Context, c models.Collection, rec *models.Record, expectedVersion int64) error
}

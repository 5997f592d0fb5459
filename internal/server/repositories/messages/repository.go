// Package messages persists guardian messages keyed by their client queue id.
package messages

import (
	"context"

	"github.com/dmitrijs2005/vaxsync/internal/server/models"
)

type Repository interface {
	// Insert stores msg unless a message with the same ID exists. It reports
	// whether a row was written and fills DeliveredAt when it was.
	Insert(ctx context.Context, msg *models.Message) (bool, error)
	Get(ctx context.Context, id string) (*models.Message, error)
}

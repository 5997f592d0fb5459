// Package remote talks to the remote authority that owns guardians, patients
// and FAQs and accepts queued messages and profile edits.
//
// Two transports implement Client: GRPCClient over the Records service and
// RESTClient over its HTTP mirror. Both map transport failures onto the
// sentinel errors in errors.go so callers can use Classify.
package remote

import (
	"context"

	"github.com/dmitrijs2005/vaxsync/internal/client/models"
)

// Client is the remote collaborator contract.
type Client interface {
	Ping(ctx context.Context) error

	Fetch(ctx context.Context, c models.Collection, id string) (models.Record, error)
	List(ctx context.Context, c models.Collection) ([]models.Record, error)
	Query(ctx context.Context, c models.Collection, indexField, value string) ([]models.Record, error)

	// SubmitMessage delivers a queued message. id is the queue id and is used
	// by the server to drop duplicates.
	SubmitMessage(ctx context.Context, id string, msg models.MessagePayload) (models.DeliveryResult, error)

	// ApplyProfileEdit applies a patch and returns the authoritative entity.
	ApplyProfileEdit(ctx context.Context, id string, edit models.ProfileEdit) (models.Record, error)

	Close() error
}

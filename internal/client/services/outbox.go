package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/vaxsync/internal/client/models"
	"github.com/dmitrijs2005/vaxsync/internal/logging"
	"github.com/dmitrijs2005/vaxsync/internal/timex"
)

// OutboxService accepts user writes and exposes the state of the queue.
type OutboxService interface {
	// SendMessage queues a message and returns its queue id.
	SendMessage(ctx context.Context, conversationID, guardianID, body string) (string, error)

	// EditProfile queues a patch of entity fields and applies it to the
	// cached entity. An object value such as {"profile": {"phone": "x"}}
	// only replaces the keys it names inside the cached object.
	EditProfile(ctx context.Context, c models.Collection, entityID string, changes map[string]any) (string, error)

	Counts(ctx context.Context, p models.Partition) (map[models.Status]int, error)
	List(ctx context.Context, p models.Partition, statuses ...models.Status) ([]models.QueueItem, error)

	// Retry gives a dead-lettered item a fresh attempt budget.
	Retry(ctx context.Context, p models.Partition, id string) error

	// Discard drops an item that is not in flight. Discarding a profile edit
	// refreshes the entity so the optimistic value goes away.
	Discard(ctx context.Context, p models.Partition, id string) error
}

// Outbox is the part of the Mutation Queue the facade uses.
type Outbox interface {
	Enqueue(ctx context.Context, p models.Partition, payload any) (string, error)
	Counts(ctx context.Context, p models.Partition) (map[models.Status]int, error)
	List(ctx context.Context, p models.Partition, statuses ...models.Status) ([]models.QueueItem, error)
	Retry(ctx context.Context, p models.Partition, id string) error
	Discard(ctx context.Context, p models.Partition, id string) (*models.QueueItem, error)
}

// LocalEditor applies queued edits to the cache.
type LocalEditor interface {
	ApplyLocalEdit(ctx context.Context, edit models.ProfileEdit) error
	Refresh(ctx context.Context, c models.Collection, id string) error
}

// Trigger asks the sync coordinator to flush a partition.
type Trigger interface {
	Trigger(p models.Partition)
}

type outboxService struct {
	queue   Outbox
	editor  LocalEditor
	trigger Trigger
	clock   timex.Clock
	log     logging.Logger
}

func NewOutboxService(q Outbox, editor LocalEditor, trigger Trigger, clock timex.Clock, log logging.Logger) OutboxService {
	if clock == nil {
		clock = timex.RealClock{}
	}
	return &outboxService{queue: q, editor: editor, trigger: trigger, clock: clock, log: log.With("module", "outbox")}
}

func (s *outboxService) SendMessage(ctx context.Context, conversationID, guardianID, body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", ErrEmptyMessage
	}

	id, err := s.queue.Enqueue(ctx, models.PartitionMessages, models.MessagePayload{
		ConversationID: conversationID,
		GuardianID:     guardianID,
		Body:           body,
		ComposedAt:     s.clock.Now(),
	})
	if err != nil {
		return "", fmt.Errorf("queue message: %w", err)
	}

	s.trigger.Trigger(models.PartitionMessages)
	return id, nil
}

func (s *outboxService) EditProfile(ctx context.Context, c models.Collection, entityID string, changes map[string]any) (string, error) {
	raw := make(map[string]json.RawMessage, len(changes))
	for k, v := range changes {
		b, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("encode field %q: %w", k, err)
		}
		raw[k] = b
	}
	edit := models.ProfileEdit{Collection: c, EntityID: entityID, Changes: raw}

	id, err := s.queue.Enqueue(ctx, models.PartitionProfileEdits, edit)
	if err != nil {
		return "", fmt.Errorf("queue profile edit: %w", err)
	}

	// The edit is durable at this point; a failed local apply only delays
	// visibility until the next refresh merges it back in.
	if err := s.editor.ApplyLocalEdit(ctx, edit); err != nil {
		s.log.Error(ctx, "failed to apply edit locally", "collection", c, "id", entityID, "error", err)
	}

	s.trigger.Trigger(models.PartitionProfileEdits)
	return id, nil
}

func (s *outboxService) Counts(ctx context.Context, p models.Partition) (map[models.Status]int, error) {
	return s.queue.Counts(ctx, p)
}

func (s *outboxService) List(ctx context.Context, p models.Partition, statuses ...models.Status) ([]models.QueueItem, error) {
	return s.queue.List(ctx, p, statuses...)
}

func (s *outboxService) Retry(ctx context.Context, p models.Partition, id string) error {
	if err := s.queue.Retry(ctx, p, id); err != nil {
		return err
	}
	s.trigger.Trigger(p)
	return nil
}

func (s *outboxService) Discard(ctx context.Context, p models.Partition, id string) error {
	item, err := s.queue.Discard(ctx, p, id)
	if err != nil {
		return err
	}
	if p != models.PartitionProfileEdits {
		return nil
	}

	if err := s.editor.Refresh(ctx, item.EntityCollection, item.EntityID); err != nil {
		s.log.Warn(ctx, "could not refresh entity after discarding edit",
			"collection", item.EntityCollection, "id", item.EntityID, "error", err)
	}
	return nil
}

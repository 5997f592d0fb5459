package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Partition names an independently ordered sub-queue.
type Partition string

const (
	PartitionMessages     Partition = "messages"
	PartitionProfileEdits Partition = "profile_edits"
)

// Partitions lists every queue partition.
var Partitions = []Partition{PartitionMessages, PartitionProfileEdits}

// Valid reports whether p is a known partition.
func (p Partition) Valid() bool {
	return p == PartitionMessages || p == PartitionProfileEdits
}

// Status is the delivery state of a queued item.
type Status string

const (
	StatusPending    Status = "pending"
	StatusSending    Status = "sending"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
	StatusDeadLetter Status = "dead_letter"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusPending, StatusSending, StatusSent, StatusFailed, StatusDeadLetter}

// Deliverable reports whether an item in this status may be picked by a flush.
func (s Status) Deliverable() bool {
	return s == StatusPending || s == StatusFailed
}

// QueueItem is one pending local write.
type QueueItem struct {
	// ID is the client-generated identifier, also used as idempotency key.
	ID string

	// Partition is the sub-queue the item belongs to.
	Partition Partition

	// Seq is the per-partition, strictly increasing sequence number.
	Seq int64

	// Payload is the JSON-encoded MessagePayload or ProfileEdit.
	Payload json.RawMessage

	// EntityCollection and EntityID identify the target of a profile edit.
	EntityCollection Collection
	EntityID         string

	Status        Status
	AttemptCount  int
	LastError     string
	NextAttemptAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Message decodes the payload of a messages-partition item.
func (it QueueItem) Message() (MessagePayload, error) {
	var m MessagePayload
	if it.Partition != PartitionMessages {
		return m, fmt.Errorf("item %s is not a message", it.ID)
	}
	err := json.Unmarshal(it.Payload, &m)
	return m, err
}

// ProfileEdit decodes the payload of a profile-edits item.
func (it QueueItem) ProfileEdit() (ProfileEdit, error) {
	var e ProfileEdit
	if it.Partition != PartitionProfileEdits {
		return e, fmt.Errorf("item %s is not a profile edit", it.ID)
	}
	err := json.Unmarshal(it.Payload, &e)
	return e, err
}

// MessagePayload is a message composed by a guardian.
type MessagePayload struct {
	ConversationID string    `json:"conversationId"`
	GuardianID     string    `json:"guardianId"`
	Body           string    `json:"body"`
	ComposedAt     time.Time `json:"composedAt"`
}

// ProfileEdit is a partial patch of an entity's top-level fields.
type ProfileEdit struct {
	Collection Collection                 `json:"collection"`
	EntityID   string                     `json:"entityId"`
	Changes    map[string]json.RawMessage `json:"changes"`
}

// QueuedProfileEdit pairs an edit with its queue id.
type QueuedProfileEdit struct {
	QueueID string
	Seq     int64
	Status  Status
	Edit    ProfileEdit
}

// DeliveryResult is returned by the remote message submit API.
type DeliveryResult struct {
	MessageID   string    `json:"messageId"`
	ServerID    string    `json:"serverId"`
	DeliveredAt time.Time `json:"deliveredAt"`
	Duplicate   bool      `json:"duplicate"`
}

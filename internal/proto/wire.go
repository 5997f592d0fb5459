package proto

import (
	"encoding/json"
	"time"
)

// Record is an entity envelope on the wire.
type Record struct {
	Key       string                     `json:"key"`
	Version   int64                      `json:"version"`
	UpdatedAt time.Time                  `json:"updatedAt"`
	Fields    map[string]json.RawMessage `json:"fields"`
}

type PingResponse struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
}

type FetchRequest struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

type ListRequest struct {
	Collection string `json:"collection"`
}

type QueryRequest struct {
	Collection string `json:"collection"`
	IndexField string `json:"indexField"`
	Value      string `json:"value"`
}

type RecordResponse struct {
	Record Record `json:"record"`
}

type RecordsResponse struct {
	Records []Record `json:"records"`
}

type Message struct {
	ConversationID string    `json:"conversationId"`
	GuardianID     string    `json:"guardianId"`
	Body           string    `json:"body"`
	ComposedAt     time.Time `json:"composedAt"`
}

// SubmitMessageRequest carries a queued message. ID is the client queue id
// and doubles as the idempotency key.
type SubmitMessageRequest struct {
	ID      string  `json:"id"`
	Message Message `json:"message"`
}

type Delivery struct {
	MessageID   string    `json:"messageId"`
	ServerID    string    `json:"serverId"`
	DeliveredAt time.Time `json:"deliveredAt"`
	Duplicate   bool      `json:"duplicate"`
}

type ProfileEdit struct {
	Collection string                     `json:"collection"`
	EntityID   string                     `json:"entityId"`
	Changes    map[string]json.RawMessage `json:"changes"`
}

type ApplyProfileEditRequest struct {
	ID   string      `json:"id"`
	Edit ProfileEdit `json:"edit"`
}

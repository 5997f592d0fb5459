package models

import "time"

// Message is a guardian message accepted by the server. ID is the client
// queue id and is unique.
type Message struct {
	ID             string
	ServerID       string
	ConversationID string
	GuardianID     string
	Body           string
	ComposedAt     time.Time
	DeliveredAt    time.Time
}

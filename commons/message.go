package commons

import (
	"github.com/google/uuid"
)

// Message represents the message sent over the wire.
type Message struct {
	Username string `json:"username"`

	// Text represents the body of the message. This is used for joining messages and the siteID.
	Text string `json:"text"`

	// Type represents the message type.
	Type MessageType `json:"type"`

	// ID represents the client's UUID.
	ID uuid.UUID `json:"ID"`

	// Source is the actor the relay attests as the sender of Transaction.
	// Clients may leave it empty; the relay always overwrites it.
	Source string `json:"source,omitempty"`

	// Transaction represents the tree operations.
	Transaction Transaction `json:"transaction,omitempty"`
}

// MessageType represents the type of the message.
type MessageType string

// Currently, the relay supports 4 message types:
// - SiteID (assigns the client its actor identity)
// - join (for joining messages)
// - operation (for tree transactions)
// - synced (history replay to a new client is complete)

const (
	SiteIDMessage    MessageType = "SiteID"
	JoinMessage      MessageType = "join"
	OperationMessage MessageType = "operation"
	SyncedMessage    MessageType = "synced"
)

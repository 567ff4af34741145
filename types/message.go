package types

import (
	"encoding/json"
	"time"
)

// MessageType classifies a coordination message.
type MessageType string

const (
	MessageQuery        MessageType = "query"
	MessageResponse     MessageType = "response"
	MessageConsensus    MessageType = "consensus"
	MessageVerification MessageType = "verification"
	MessageLearning     MessageType = "learning"
)

// Priority is an advisory delivery priority. It does not affect scheduling
// in the coordination core.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// BroadcastTarget addresses a message to every known manager except its
// sender.
const BroadcastTarget = "broadcast"

// Message is one unit of communication between managers. The payload is an
// opaque blob the coordination core never interprets.
type Message struct {
	// ID is assigned by the router at send time and immutable afterwards.
	ID string `json:"id"`

	// From is the sender manager id.
	From string `json:"from"`

	// To is a manager id or BroadcastTarget.
	To string `json:"to"`

	Type     MessageType `json:"type"`
	Priority Priority    `json:"priority"`

	// Payload is opaque to the coordination core. All interpretation
	// belongs to the caller.
	Payload json.RawMessage `json:"payload,omitempty"`

	// Timestamp is assigned by the router at send time.
	Timestamp time.Time `json:"timestamp"`

	// Signature is set by the transport for external delivery.
	Signature string `json:"signature,omitempty"`

	// RequiresConsensus marks the message as part of a consensus round.
	RequiresConsensus bool `json:"requiresConsensus"`
}

// IsBroadcast reports whether the message is addressed to all managers.
func (m *Message) IsBroadcast() bool {
	return m.To == BroadcastTarget
}

// Clone returns a deep copy of the message.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	cp := *m
	if len(m.Payload) > 0 {
		cp.Payload = make(json.RawMessage, len(m.Payload))
		copy(cp.Payload, m.Payload)
	}
	return &cp
}

// Validate checks that the message is well formed for sending.
func (m *Message) Validate() error {
	if m == nil {
		return ErrNilMessage
	}
	if m.From == "" {
		return ErrMessageMissingFrom
	}
	if m.To == "" {
		return ErrMessageMissingTo
	}
	switch m.Type {
	case MessageQuery, MessageResponse, MessageConsensus, MessageVerification, MessageLearning:
	default:
		return ErrMessageInvalidType
	}
	return nil
}

package transport

import (
	"encoding/json"
	"time"

	"github.com/trinity-symphony/coordination/types"
)

// MessagePath is the inbound path every manager exposes for signed
// coordination messages.
const MessagePath = "/api/trinity/message"

// HealthPath exposes the component health summary.
const HealthPath = "/api/trinity/health"

// Signature headers carried alongside the body.
const (
	HeaderSender    = "X-Trinity-Sender"
	HeaderTimestamp = "X-Trinity-Timestamp"
	HeaderNonce     = "X-Trinity-Nonce"
	HeaderSignature = "X-Trinity-Signature"
)

// wireMessage is the body POSTed to MessagePath.
type wireMessage struct {
	ID                string          `json:"id"`
	From              string          `json:"from"`
	To                string          `json:"to"`
	Type              string          `json:"type"`
	Payload           json.RawMessage `json:"payload,omitempty"`
	Priority          string          `json:"priority"`
	RequiresConsensus bool            `json:"requiresConsensus"`
	Timestamp         time.Time       `json:"timestamp"`
	Nonce             string          `json:"nonce"`
	Signature         string          `json:"signature"`
}

func toWire(msg *types.Message, timestamp time.Time, nonce, signature string) *wireMessage {
	return &wireMessage{
		ID:                msg.ID,
		From:              msg.From,
		To:                msg.To,
		Type:              string(msg.Type),
		Payload:           msg.Payload,
		Priority:          string(msg.Priority),
		RequiresConsensus: msg.RequiresConsensus,
		Timestamp:         timestamp,
		Nonce:             nonce,
		Signature:         signature,
	}
}

func (w *wireMessage) toMessage() *types.Message {
	return &types.Message{
		ID:                w.ID,
		From:              w.From,
		To:                w.To,
		Type:              types.MessageType(w.Type),
		Priority:          types.Priority(w.Priority),
		Payload:           w.Payload,
		Timestamp:         w.Timestamp,
		Signature:         w.Signature,
		RequiresConsensus: w.RequiresConsensus,
	}
}

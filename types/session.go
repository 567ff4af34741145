package types

import (
	"encoding/json"
	"time"
)

// BilateralSession is a scoped multi-party conversation context. Sessions
// never close automatically; archival is a caller responsibility.
type BilateralSession struct {
	SessionID    string    `json:"session_id"`
	Participants []string  `json:"participants"`
	Topic        string    `json:"topic"`
	StartTime    time.Time `json:"start_time"`

	// Messages is the ordered log of messages exchanged under this
	// session id.
	Messages []*Message `json:"messages"`

	// ConsensusReached and Outcome are set only by an explicit caller
	// action tying the session to a consensus round's result.
	ConsensusReached bool            `json:"consensus_reached"`
	Outcome          json.RawMessage `json:"outcome,omitempty"`
}

// HasParticipant reports whether the manager id is part of the session.
func (s *BilateralSession) HasParticipant(id string) bool {
	for _, p := range s.Participants {
		if p == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the session.
func (s *BilateralSession) Clone() *BilateralSession {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Participants = make([]string, len(s.Participants))
	copy(cp.Participants, s.Participants)
	cp.Messages = make([]*Message, len(s.Messages))
	for i, m := range s.Messages {
		cp.Messages[i] = m.Clone()
	}
	if len(s.Outcome) > 0 {
		cp.Outcome = make(json.RawMessage, len(s.Outcome))
		copy(cp.Outcome, s.Outcome)
	}
	return &cp
}

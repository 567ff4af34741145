package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trinity-symphony/coordination/consensus"
	"github.com/trinity-symphony/coordination/internal/clock"
	"github.com/trinity-symphony/coordination/types"
)

// Sender delivers the join notification when a session opens. Implemented
// by router.Router.
type Sender interface {
	Send(ctx context.Context, msg *types.Message) (string, error)
}

// joinNotice is the payload of the query message sent to each participant
// when a session opens.
type joinNotice struct {
	Event     string   `json:"event"`
	SessionID string   `json:"sessionId"`
	Topic     string   `json:"topic"`
	With      []string `json:"with"`
}

// Manager tracks bilateral sessions. Sessions are in-memory and never close
// on their own; callers archive them with Close.
type Manager struct {
	sender Sender
	clock  clock.Clock
	logger *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*types.BilateralSession
}

// New creates a session Manager.
func New(sender Sender, clk clock.Clock, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Manager{
		sender:   sender,
		clock:    clk,
		logger:   logger.With(zap.String("component", "session")),
		sessions: make(map[string]*types.BilateralSession),
	}
}

// StartSession opens a session between the initiator and the other
// participants and notifies every other participant. Notification failures
// are logged and never fail session creation.
func (m *Manager) StartSession(ctx context.Context, initiator string, participants []string, topic string) (string, error) {
	if initiator == "" {
		return "", ErrMissingInitiator
	}
	if len(participants) == 0 {
		return "", ErrNoParticipants
	}

	all := append([]string{initiator}, participants...)
	sess := &types.BilateralSession{
		SessionID:    uuid.NewString(),
		Participants: all,
		Topic:        topic,
		StartTime:    m.clock.Now(),
	}

	m.mu.Lock()
	m.sessions[sess.SessionID] = sess
	m.mu.Unlock()

	payload, err := json.Marshal(joinNotice{
		Event:     "session_started",
		SessionID: sess.SessionID,
		Topic:     topic,
		With:      all,
	})
	if err != nil {
		return "", fmt.Errorf("marshal join notice: %w", err)
	}

	for _, participant := range participants {
		if _, err := m.sender.Send(ctx, &types.Message{
			From:     initiator,
			To:       participant,
			Type:     types.MessageQuery,
			Priority: types.PriorityMedium,
			Payload:  payload,
		}); err != nil {
			m.logger.Warn("session join notice failed",
				zap.String("session_id", sess.SessionID),
				zap.String("participant", participant),
				zap.Error(err),
			)
		}
	}

	m.logger.Info("session started",
		zap.String("session_id", sess.SessionID),
		zap.String("topic", topic),
		zap.Strings("participants", all),
	)
	return sess.SessionID, nil
}

// AppendMessage records a message under the session's ordered log.
func (m *Manager) AppendMessage(sessionID string, msg *types.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	sess.Messages = append(sess.Messages, msg.Clone())
	return nil
}

// AttachConsensusResult ties a resolved consensus round to the session.
func (m *Manager) AttachConsensusResult(sessionID string, result consensus.Result) error {
	outcome, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal consensus result: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	sess.ConsensusReached = result.Approved
	sess.Outcome = outcome
	return nil
}

// Get returns a snapshot of the session.
func (m *Manager) Get(sessionID string) (*types.BilateralSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	return sess.Clone(), nil
}

// Close archives the session, removing it from the active set. The archived
// snapshot is returned so callers can persist it.
func (m *Manager) Close(sessionID string) (*types.BilateralSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	delete(m.sessions, sessionID)
	return sess, nil
}

// Active reports the number of open sessions.
func (m *Manager) Active() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

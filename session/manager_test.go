package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/trinity-symphony/coordination/consensus"
	"github.com/trinity-symphony/coordination/internal/clock"
	"github.com/trinity-symphony/coordination/types"
)

type notifySender struct {
	mu   sync.Mutex
	sent []*types.Message
	err  error
}

func (s *notifySender) Send(_ context.Context, msg *types.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.sent = append(s.sent, msg)
	return "msg-1", nil
}

func newTestManager(t *testing.T, sender Sender) *Manager {
	t.Helper()
	clk := clock.NewMock(time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC))
	return New(sender, clk, zaptest.NewLogger(t))
}

func TestStartSessionNotifiesParticipants(t *testing.T) {
	sender := &notifySender{}
	mgr := newTestManager(t, sender)

	id, err := mgr.StartSession(context.Background(), "alpha", []string{"beta", "gamma"}, "capacity-planning")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.Len(t, sender.sent, 2)
	assert.Equal(t, "beta", sender.sent[0].To)
	assert.Equal(t, "gamma", sender.sent[1].To)
	for _, msg := range sender.sent {
		assert.Equal(t, "alpha", msg.From)
		assert.Equal(t, types.MessageQuery, msg.Type)

		var notice joinNotice
		require.NoError(t, json.Unmarshal(msg.Payload, &notice))
		assert.Equal(t, "session_started", notice.Event)
		assert.Equal(t, id, notice.SessionID)
		assert.Equal(t, "capacity-planning", notice.Topic)
	}

	sess, err := mgr.Get(id)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alpha", "beta", "gamma"}, sess.Participants)
	assert.Equal(t, "capacity-planning", sess.Topic)
	assert.False(t, sess.StartTime.IsZero())
}

func TestStartSessionSurvivesNotifyFailure(t *testing.T) {
	sender := &notifySender{err: errors.New("delivery refused")}
	mgr := newTestManager(t, sender)

	id, err := mgr.StartSession(context.Background(), "alpha", []string{"beta"}, "topic")
	require.NoError(t, err)

	_, err = mgr.Get(id)
	assert.NoError(t, err)
}

func TestStartSessionValidation(t *testing.T) {
	mgr := newTestManager(t, &notifySender{})

	_, err := mgr.StartSession(context.Background(), "", []string{"beta"}, "topic")
	assert.ErrorIs(t, err, ErrMissingInitiator)

	_, err = mgr.StartSession(context.Background(), "alpha", nil, "topic")
	assert.ErrorIs(t, err, ErrNoParticipants)
}

func TestAppendMessageOrdering(t *testing.T) {
	mgr := newTestManager(t, &notifySender{})

	id, err := mgr.StartSession(context.Background(), "alpha", []string{"beta"}, "topic")
	require.NoError(t, err)

	for i, body := range []string{`"one"`, `"two"`, `"three"`} {
		msg := &types.Message{
			ID:      string(rune('a' + i)),
			From:    "alpha",
			To:      "beta",
			Type:    types.MessageQuery,
			Payload: json.RawMessage(body),
		}
		require.NoError(t, mgr.AppendMessage(id, msg))
	}

	sess, err := mgr.Get(id)
	require.NoError(t, err)
	require.Len(t, sess.Messages, 3)
	assert.Equal(t, json.RawMessage(`"one"`), sess.Messages[0].Payload)
	assert.Equal(t, json.RawMessage(`"three"`), sess.Messages[2].Payload)
}

func TestAppendMessageUnknownSession(t *testing.T) {
	mgr := newTestManager(t, &notifySender{})

	err := mgr.AppendMessage("missing", &types.Message{
		From: "alpha", To: "beta", Type: types.MessageQuery,
	})
	assert.ErrorIs(t, err, ErrUnknownSession)
}

func TestAttachConsensusResult(t *testing.T) {
	mgr := newTestManager(t, &notifySender{})

	id, err := mgr.StartSession(context.Background(), "alpha", []string{"beta"}, "topic")
	require.NoError(t, err)

	result := consensus.Result{
		RoundID:  "round-1",
		Topic:    "topic",
		Approved: true,
		Votes:    2,
		Required: 2,
	}
	require.NoError(t, mgr.AttachConsensusResult(id, result))

	sess, err := mgr.Get(id)
	require.NoError(t, err)
	assert.True(t, sess.ConsensusReached)

	var stored consensus.Result
	require.NoError(t, json.Unmarshal(sess.Outcome, &stored))
	assert.Equal(t, "round-1", stored.RoundID)

	err = mgr.AttachConsensusResult("missing", result)
	assert.ErrorIs(t, err, ErrUnknownSession)
}

func TestCloseArchivesSession(t *testing.T) {
	mgr := newTestManager(t, &notifySender{})

	id, err := mgr.StartSession(context.Background(), "alpha", []string{"beta"}, "topic")
	require.NoError(t, err)
	assert.Equal(t, 1, mgr.Active())

	archived, err := mgr.Close(id)
	require.NoError(t, err)
	assert.Equal(t, id, archived.SessionID)
	assert.Equal(t, 0, mgr.Active())

	_, err = mgr.Get(id)
	assert.ErrorIs(t, err, ErrUnknownSession)

	_, err = mgr.Close(id)
	assert.ErrorIs(t, err, ErrUnknownSession)
}

func TestGetReturnsSnapshot(t *testing.T) {
	mgr := newTestManager(t, &notifySender{})

	id, err := mgr.StartSession(context.Background(), "alpha", []string{"beta"}, "topic")
	require.NoError(t, err)

	snap, err := mgr.Get(id)
	require.NoError(t, err)
	snap.Topic = "mutated"
	snap.Participants[0] = "mutated"

	sess, err := mgr.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "topic", sess.Topic)
	assert.Equal(t, "alpha", sess.Participants[0])
}

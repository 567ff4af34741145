package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trinity-symphony/coordination/types"
)

// recorderStub captures RecordOutcome calls.
type recorderStub struct {
	mu       sync.Mutex
	outcomes []bool
	ids      []string
}

func (r *recorderStub) RecordOutcome(id string, success bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
	r.outcomes = append(r.outcomes, success)
	return nil
}

func (r *recorderStub) last() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.ids) == 0 {
		return "", false
	}
	return r.ids[len(r.ids)-1], r.outcomes[len(r.outcomes)-1]
}

func testMessage() *types.Message {
	return &types.Message{
		ID:       "msg-1",
		From:     "conductor",
		To:       "mel",
		Type:     types.MessageQuery,
		Priority: types.PriorityMedium,
		Payload:  json.RawMessage(`{"q":"status"}`),
	}
}

func TestTransport_DeliverInternal(t *testing.T) {
	rec := &recorderStub{}
	tr := New(DefaultConfig(), rec, zap.NewNop())

	var got *types.Message
	tr.RegisterHandler("mel", func(_ context.Context, msg *types.Message) (json.RawMessage, error) {
		got = msg
		return json.RawMessage(`{"ok":true}`), nil
	})

	outcome := tr.Deliver(context.Background(), &types.Manager{ID: "mel", Endpoint: types.EndpointInternal}, testMessage())

	assert.True(t, outcome.Success)
	assert.NoError(t, outcome.HandlerErr)
	assert.JSONEq(t, `{"ok":true}`, string(outcome.Response))
	require.NotNil(t, got)
	assert.Equal(t, "msg-1", got.ID)

	id, success := rec.last()
	assert.Equal(t, "mel", id)
	assert.True(t, success)
}

func TestTransport_DeliverInternalHandlerError(t *testing.T) {
	rec := &recorderStub{}
	tr := New(DefaultConfig(), rec, zap.NewNop())

	handlerErr := errors.New("cannot process")
	tr.RegisterHandler("mel", func(context.Context, *types.Message) (json.RawMessage, error) {
		return nil, handlerErr
	})

	outcome := tr.Deliver(context.Background(), &types.Manager{ID: "mel", Endpoint: ""}, testMessage())

	// Handler errors are delivered-but-failed-at-handler, not transport
	// failures.
	assert.True(t, outcome.Success)
	assert.ErrorIs(t, outcome.HandlerErr, handlerErr)

	_, success := rec.last()
	assert.True(t, success)
}

func TestTransport_DeliverInternalNoHandler(t *testing.T) {
	rec := &recorderStub{}
	tr := New(DefaultConfig(), rec, zap.NewNop())

	outcome := tr.Deliver(context.Background(), &types.Manager{ID: "mel", Endpoint: types.EndpointInternal}, testMessage())

	assert.False(t, outcome.Success)
	assert.ErrorIs(t, outcome.Err, ErrNoHandler)

	_, success := rec.last()
	assert.False(t, success)
}

func TestTransport_DeliverExternal(t *testing.T) {
	var received wireMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, MessagePath, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	rec := &recorderStub{}
	cfg := DefaultConfig()
	cfg.SharedSecret = "trinity-secret"
	tr := New(cfg, rec, zap.NewNop())

	outcome := tr.Deliver(context.Background(), &types.Manager{ID: "mel", Endpoint: srv.URL}, testMessage())

	assert.True(t, outcome.Success)
	assert.Equal(t, 1, outcome.Attempts)
	assert.Equal(t, http.StatusOK, outcome.StatusCode)

	assert.Equal(t, "conductor", received.From)
	assert.Equal(t, "mel", received.To)
	assert.NotEmpty(t, received.Nonce)
	assert.False(t, received.Timestamp.IsZero())

	// Signature must verify against the shared secret.
	signer := NewSigner("trinity-secret")
	assert.True(t, signer.Verify(received.From, received.To, received.Timestamp, received.Nonce, received.Signature))

	id, success := rec.last()
	assert.Equal(t, "mel", id)
	assert.True(t, success)
}

func TestTransport_DeliverExternalRetriesThenSucceeds(t *testing.T) {
	var calls int
	var nonces []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		nonces = append(nonces, r.Header.Get(HeaderNonce))
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.RetryBackoff = time.Millisecond
	tr := New(cfg, &recorderStub{}, zap.NewNop())

	outcome := tr.Deliver(context.Background(), &types.Manager{ID: "mel", Endpoint: srv.URL}, testMessage())

	assert.True(t, outcome.Success)
	assert.Equal(t, 3, outcome.Attempts)

	// Each attempt carries a fresh nonce.
	require.Len(t, nonces, 3)
	assert.NotEqual(t, nonces[0], nonces[1])
	assert.NotEqual(t, nonces[1], nonces[2])
}

func TestTransport_DeliverExternalExhaustsRetries(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	rec := &recorderStub{}
	cfg := DefaultConfig()
	cfg.RetryBackoff = time.Millisecond
	tr := New(cfg, rec, zap.NewNop())

	outcome := tr.Deliver(context.Background(), &types.Manager{ID: "mel", Endpoint: srv.URL}, testMessage())

	assert.False(t, outcome.Success)
	assert.ErrorIs(t, outcome.Err, ErrDeliveryFailed)
	assert.Equal(t, 3, outcome.Attempts)
	assert.Equal(t, 3, calls)

	_, success := rec.last()
	assert.False(t, success)
}

func TestTransport_DeliverExternalUnreachable(t *testing.T) {
	rec := &recorderStub{}
	cfg := DefaultConfig()
	cfg.RetryBackoff = time.Millisecond
	cfg.Timeout = 200 * time.Millisecond
	tr := New(cfg, rec, zap.NewNop())

	outcome := tr.Deliver(context.Background(),
		&types.Manager{ID: "mel", Endpoint: "http://127.0.0.1:1"}, testMessage())

	assert.False(t, outcome.Success)
	assert.Error(t, outcome.Err)

	_, success := rec.last()
	assert.False(t, success)
}

func TestTransport_DeliverExternalContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server's background read can observe the
		// client disconnect and cancel the request context.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.Timeout = 5 * time.Second
	tr := New(cfg, &recorderStub{}, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	outcome := tr.Deliver(ctx, &types.Manager{ID: "mel", Endpoint: srv.URL}, testMessage())
	assert.False(t, outcome.Success)
	assert.ErrorIs(t, outcome.Err, ErrDeliveryTimeout)
}

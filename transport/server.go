package transport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// HandlerResolver resolves the in-process handler for a manager id. It is
// implemented by Transport.
type HandlerResolver interface {
	Handler(managerID string) (Handler, bool)
}

// HealthFunc produces the health payload served on HealthPath. It must
// always be computable without error.
type HealthFunc func() any

// ServerConfig holds configuration for the inbound callback surface.
type ServerConfig struct {
	// SharedSecret keys signature verification. Must match senders.
	SharedSecret string

	// ReplayWindow bounds how old a request timestamp may be. Nonces are
	// remembered for the same window.
	ReplayWindow time.Duration

	// Logger is the logger instance.
	Logger *zap.Logger
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ReplayWindow: 5 * time.Minute,
		Logger:       zap.NewNop(),
	}
}

// Server is the HTTP surface an external manager POSTs coordination
// messages to. It verifies signature, timestamp and nonce, dispatches to
// the local handler for the addressed manager, and returns a JSON
// acknowledgment.
type Server struct {
	config   *ServerConfig
	signer   *Signer
	resolver HandlerResolver
	health   HealthFunc
	logger   *zap.Logger

	noncesMu sync.Mutex
	nonces   map[string]time.Time
}

// NewServer creates the inbound message server.
func NewServer(config *ServerConfig, resolver HandlerResolver, health HealthFunc) *Server {
	if config == nil {
		config = DefaultServerConfig()
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.ReplayWindow == 0 {
		config.ReplayWindow = DefaultServerConfig().ReplayWindow
	}

	return &Server{
		config:   config,
		signer:   NewSigner(config.SharedSecret),
		resolver: resolver,
		health:   health,
		logger:   config.Logger.With(zap.String("component", "transport_server")),
		nonces:   make(map[string]time.Time),
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == MessagePath && r.Method == http.MethodPost:
		s.handleMessage(w, r)
	case r.URL.Path == HealthPath && r.Method == http.MethodGet:
		s.handleHealth(w, r)
	default:
		s.writeError(w, http.StatusNotFound, fmt.Errorf("not found: %s", r.URL.Path))
	}
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var wire wireMessage
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}

	if err := s.verify(&wire); err != nil {
		s.logger.Warn("message rejected",
			zap.String("from", wire.From),
			zap.String("nonce", wire.Nonce),
			zap.Error(err),
		)
		s.writeError(w, http.StatusUnauthorized, err)
		return
	}

	msg := wire.toMessage()
	if err := msg.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	handler, ok := s.resolver.Handler(msg.To)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("%w: %s", ErrNoHandler, msg.To))
		return
	}

	result, err := handler(r.Context(), msg)
	ack := map[string]any{
		"received":  true,
		"messageId": msg.ID,
	}
	if err != nil {
		// Handler failures are acknowledged: the message was
		// delivered, the handler just could not process it.
		ack["handlerError"] = err.Error()
	} else if len(result) > 0 {
		ack["result"] = json.RawMessage(result)
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": ack})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	var data any
	if s.health != nil {
		data = s.health()
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": data})
}

// verify checks signature, timestamp freshness and nonce uniqueness.
func (s *Server) verify(wire *wireMessage) error {
	if !s.signer.Verify(wire.From, wire.To, wire.Timestamp, wire.Nonce, wire.Signature) {
		return ErrBadSignature
	}

	age := time.Since(wire.Timestamp)
	if age > s.config.ReplayWindow || age < -s.config.ReplayWindow {
		return ErrStaleTimestamp
	}

	s.noncesMu.Lock()
	defer s.noncesMu.Unlock()

	cutoff := time.Now().Add(-s.config.ReplayWindow)
	for nonce, seen := range s.nonces {
		if seen.Before(cutoff) {
			delete(s.nonces, nonce)
		}
	}
	if _, seen := s.nonces[wire.Nonce]; seen {
		return ErrReplayedNonce
	}
	s.nonces[wire.Nonce] = time.Now()
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("write response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]any{"success": false, "error": err.Error()})
}

var _ HandlerResolver = (*Transport)(nil)

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/trinity-symphony/coordination/types"
)

// Handler processes a message delivered to an in-process manager.
type Handler func(ctx context.Context, msg *types.Message) (json.RawMessage, error)

// Outcome is the result of one Deliver call.
type Outcome struct {
	// Success is transport-level success. An internal handler that
	// returned an error is still a successful delivery; its failure is
	// reported through HandlerErr.
	Success bool

	// StatusCode is the final HTTP status for external delivery.
	StatusCode int

	// Attempts is the number of delivery attempts made.
	Attempts int

	// Elapsed is the total time spent delivering.
	Elapsed time.Duration

	// Err is the transport-level failure cause, if any.
	Err error

	// HandlerErr is the error returned by an internal handler.
	HandlerErr error

	// Response is the acknowledgment or handler result.
	Response json.RawMessage
}

// OutcomeRecorder receives the result of every delivery attempt. It is
// implemented by registry.Registry.
type OutcomeRecorder interface {
	RecordOutcome(id string, success bool) error
}

// Config holds transport tuning knobs.
type Config struct {
	// Timeout bounds each external delivery attempt.
	Timeout time.Duration `yaml:"timeout"`

	// RetryCount is the number of retries after the first attempt.
	RetryCount int `yaml:"retry_count"`

	// RetryBackoff is the backoff base; the delay before retry n is
	// RetryBackoff * (n+1).
	RetryBackoff time.Duration `yaml:"retry_backoff"`

	// SharedSecret keys the HMAC signature.
	SharedSecret string `yaml:"shared_secret"`

	// RateLimit caps outbound external deliveries per second.
	// Zero disables limiting.
	RateLimit float64 `yaml:"rate_limit"`

	// RateBurst is the limiter burst size.
	RateBurst int `yaml:"rate_burst"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:      3 * time.Second,
		RetryCount:   2,
		RetryBackoff: 500 * time.Millisecond,
		RateBurst:    1,
	}
}

// Transport constructs signed requests and performs delivery. Internal
// targets are dispatched synchronously to a registered handler; external
// targets receive a signed HTTP POST with timeout and bounded backoff retry.
type Transport struct {
	config     Config
	httpClient *http.Client
	signer     *Signer
	recorder   OutcomeRecorder
	limiter    *rate.Limiter

	handlers   map[string]Handler
	handlersMu sync.RWMutex

	logger *zap.Logger
}

// New creates a Transport reporting every outcome to the recorder.
func New(config Config, recorder OutcomeRecorder, logger *zap.Logger) *Transport {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if config.RetryBackoff == 0 {
		config.RetryBackoff = DefaultConfig().RetryBackoff
	}

	var limiter *rate.Limiter
	if config.RateLimit > 0 {
		burst := config.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), burst)
	}

	return &Transport{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		signer:     NewSigner(config.SharedSecret),
		recorder:   recorder,
		limiter:    limiter,
		handlers:   make(map[string]Handler),
		logger:     logger.With(zap.String("component", "transport")),
	}
}

// RegisterHandler installs the in-process handler for an internal manager
// id. It replaces any previous handler.
func (t *Transport) RegisterHandler(managerID string, h Handler) {
	t.handlersMu.Lock()
	t.handlers[managerID] = h
	t.handlersMu.Unlock()
	t.logger.Info("internal handler registered", zap.String("manager_id", managerID))
}

// Handler returns the registered handler for a manager id.
func (t *Transport) Handler(managerID string) (Handler, bool) {
	t.handlersMu.RLock()
	h, ok := t.handlers[managerID]
	t.handlersMu.RUnlock()
	return h, ok
}

// Deliver delivers one message to one manager and reports the outcome to
// the registry before returning.
func (t *Transport) Deliver(ctx context.Context, manager *types.Manager, msg *types.Message) Outcome {
	start := time.Now()
	t.logger.Debug("delivery started",
		zap.String("manager_id", manager.ID),
		zap.String("message_id", msg.ID),
		zap.Bool("internal", manager.IsInternal()),
	)

	var outcome Outcome
	if manager.IsInternal() {
		outcome = t.deliverInternal(ctx, manager, msg)
	} else {
		outcome = t.deliverExternal(ctx, manager, msg)
	}
	outcome.Elapsed = time.Since(start)

	if t.recorder != nil {
		if err := t.recorder.RecordOutcome(manager.ID, outcome.Success); err != nil {
			t.logger.Warn("outcome not recorded",
				zap.String("manager_id", manager.ID),
				zap.Error(err),
			)
		}
	}

	if outcome.Success {
		t.logger.Info("delivery succeeded",
			zap.String("manager_id", manager.ID),
			zap.String("message_id", msg.ID),
			zap.Int("attempts", outcome.Attempts),
			zap.Duration("elapsed", outcome.Elapsed),
		)
	} else {
		t.logger.Warn("delivery failed",
			zap.String("manager_id", manager.ID),
			zap.String("message_id", msg.ID),
			zap.Int("attempts", outcome.Attempts),
			zap.Duration("elapsed", outcome.Elapsed),
			zap.Error(outcome.Err),
		)
	}
	return outcome
}

// deliverInternal invokes the registered handler synchronously. A handler
// error is still a delivered message; it is reported as handler-level
// failure, never as transport failure.
func (t *Transport) deliverInternal(ctx context.Context, manager *types.Manager, msg *types.Message) Outcome {
	h, ok := t.Handler(manager.ID)
	if !ok {
		return Outcome{
			Attempts: 1,
			Err:      fmt.Errorf("%w: %s", ErrNoHandler, manager.ID),
		}
	}

	result, err := h(ctx, msg.Clone())
	return Outcome{
		Success:    true,
		Attempts:   1,
		HandlerErr: err,
		Response:   result,
	}
}

// deliverExternal POSTs the signed wire message with bounded timeout and
// linear backoff retry.
func (t *Transport) deliverExternal(ctx context.Context, manager *types.Manager, msg *types.Message) Outcome {
	url := manager.Endpoint + MessagePath

	var lastErr error
	var lastStatus int
	attempts := 0

	for attempt := 0; attempt <= t.config.RetryCount; attempt++ {
		if attempt > 0 {
			delay := t.config.RetryBackoff * time.Duration(attempt)
			t.logger.Debug("delivery retry",
				zap.String("manager_id", manager.ID),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
			)
			select {
			case <-ctx.Done():
				return Outcome{Attempts: attempts, Err: fmt.Errorf("%w: %v", ErrDeliveryTimeout, ctx.Err())}
			case <-time.After(delay):
			}
		}

		if t.limiter != nil {
			if err := t.limiter.Wait(ctx); err != nil {
				return Outcome{Attempts: attempts, Err: fmt.Errorf("%w: %v", ErrDeliveryTimeout, err)}
			}
		}

		attempts++
		status, body, err := t.post(ctx, url, msg)
		if err == nil && status >= 200 && status < 300 {
			return Outcome{
				Success:    true,
				StatusCode: status,
				Attempts:   attempts,
				Response:   body,
			}
		}
		lastErr = err
		lastStatus = status
	}

	if lastErr != nil {
		if ctx.Err() != nil {
			return Outcome{Attempts: attempts, StatusCode: lastStatus,
				Err: fmt.Errorf("%w: %v", ErrDeliveryTimeout, lastErr)}
		}
		return Outcome{Attempts: attempts, StatusCode: lastStatus,
			Err: fmt.Errorf("%w: %v", ErrDeliveryFailed, lastErr)}
	}
	return Outcome{Attempts: attempts, StatusCode: lastStatus,
		Err: fmt.Errorf("%w: status %d", ErrDeliveryFailed, lastStatus)}
}

// post sends one signed request attempt. Each attempt carries a fresh
// timestamp and nonce so retries stay inside the receiver's replay window.
func (t *Transport) post(ctx context.Context, url string, msg *types.Message) (int, json.RawMessage, error) {
	now := time.Now()
	nonce := uuid.NewString()
	signature := t.signer.Sign(msg.From, msg.To, now, nonce)

	body, err := json.Marshal(toWire(msg, now, nonce, signature))
	if err != nil {
		return 0, nil, fmt.Errorf("marshal wire message: %w", err)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, t.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderSender, msg.From)
	req.Header.Set(HeaderTimestamp, now.Format(time.RFC3339Nano))
	req.Header.Set(HeaderNonce, nonce)
	req.Header.Set(HeaderSignature, signature)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	ack, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, ack, nil
}

package consensus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trinity-symphony/coordination/internal/clock"
	"github.com/trinity-symphony/coordination/types"
)

// Sender broadcasts the proposal that opens a round. Implemented by
// router.Router.
type Sender interface {
	Send(ctx context.Context, msg *types.Message) (string, error)
}

// Config holds the consensus policy.
type Config struct {
	// Window is the default vote-collection window.
	Window time.Duration `yaml:"window"`

	// ApprovalThreshold is the approve/required ratio that must be
	// exceeded.
	ApprovalThreshold float64 `yaml:"approval_threshold"`

	// ParticipationThreshold is the voted/required ratio that must be
	// exceeded.
	ParticipationThreshold float64 `yaml:"participation_threshold"`

	// EarlyResolve allows a round to resolve before its deadline once
	// every required participant has voted the same way. Threshold
	// semantics are unchanged.
	EarlyResolve bool `yaml:"early_resolve"`
}

// DefaultConfig returns the standard consensus policy.
func DefaultConfig() Config {
	return Config{
		Window:                 5 * time.Minute,
		ApprovalThreshold:      0.66,
		ParticipationThreshold: 0.5,
	}
}

// Result is the resolution of one consensus round.
type Result struct {
	RoundID            string    `json:"round_id"`
	Topic              string    `json:"topic"`
	Approved           bool      `json:"approved"`
	Approvals          int       `json:"approvals"`
	Votes              int       `json:"votes"`
	Required           int       `json:"required"`
	ApprovalRatio      float64   `json:"approval_ratio"`
	ParticipationRatio float64   `json:"participation_ratio"`
	ResolvedAt         time.Time `json:"resolved_at"`
}

// round owns its vote tally for the lifetime of one consensus window.
type round struct {
	mu sync.Mutex

	id       string
	topic    string
	required map[string]struct{}
	deadline time.Time

	votes map[string]*types.ConsensusVote

	resolved bool
	result   Result

	timer clock.Timer
}

// Coordinator runs time-boxed votes: it broadcasts a proposal, collects
// votes and computes accept/reject from approval and participation ratios
// against the required participant set.
type Coordinator struct {
	sender Sender
	clock  clock.Clock
	config Config
	logger *zap.Logger

	mu     sync.RWMutex
	rounds map[string]*round

	resultObserver func(Result)
}

// SetResultObserver registers a callback invoked once per resolved round.
// Must be called before the first StartConsensus.
func (c *Coordinator) SetResultObserver(f func(Result)) {
	c.resultObserver = f
}

// New creates a Coordinator.
func New(sender Sender, clk clock.Clock, config Config, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.New()
	}
	if config.Window == 0 {
		config.Window = DefaultConfig().Window
	}
	if config.ApprovalThreshold == 0 {
		config.ApprovalThreshold = DefaultConfig().ApprovalThreshold
	}
	if config.ParticipationThreshold == 0 {
		config.ParticipationThreshold = DefaultConfig().ParticipationThreshold
	}

	return &Coordinator{
		sender: sender,
		clock:  clk,
		config: config,
		logger: logger.With(zap.String("component", "consensus")),
		rounds: make(map[string]*round),
	}
}

// StartConsensus opens a round: it broadcasts the proposal to all managers
// and schedules resolution at the deadline. The window defaults to the
// configured one when zero.
func (c *Coordinator) StartConsensus(ctx context.Context, from, topic string, proposal json.RawMessage, requiredParticipants []string, window time.Duration) (string, error) {
	if len(requiredParticipants) == 0 {
		return "", ErrNoParticipants
	}
	if window == 0 {
		window = c.config.Window
	}

	roundID := uuid.NewString()
	deadline := c.clock.Now().Add(window)

	required := make(map[string]struct{}, len(requiredParticipants))
	for _, id := range requiredParticipants {
		required[id] = struct{}{}
	}

	rd := &round{
		id:       roundID,
		topic:    topic,
		required: required,
		deadline: deadline,
		votes:    make(map[string]*types.ConsensusVote),
	}

	payload, err := json.Marshal(&types.ConsensusProposal{
		RoundID:              roundID,
		Topic:                topic,
		Proposal:             proposal,
		RequiredParticipants: requiredParticipants,
		Deadline:             deadline,
	})
	if err != nil {
		return "", fmt.Errorf("marshal proposal: %w", err)
	}

	if _, err := c.sender.Send(ctx, &types.Message{
		From:              from,
		To:                types.BroadcastTarget,
		Type:              types.MessageConsensus,
		Priority:          types.PriorityHigh,
		Payload:           payload,
		RequiresConsensus: true,
	}); err != nil {
		return "", fmt.Errorf("broadcast proposal: %w", err)
	}

	c.mu.Lock()
	c.rounds[roundID] = rd
	c.mu.Unlock()

	// Resolution is deadline-driven, never earlier than the window
	// unless early resolution is enabled and unanimous.
	rd.timer = c.clock.AfterFunc(window, func() {
		result := c.resolveRound(rd)
		c.logger.Info("consensus round resolved",
			zap.String("round_id", rd.id),
			zap.String("topic", rd.topic),
			zap.Bool("approved", result.Approved),
			zap.Int("votes", result.Votes),
			zap.Int("required", result.Required),
		)
	})

	c.logger.Info("consensus round opened",
		zap.String("round_id", roundID),
		zap.String("topic", topic),
		zap.Int("required", len(requiredParticipants)),
		zap.Duration("window", window),
	)
	return roundID, nil
}

// SubmitVote records a ballot. Only required participants may vote; a
// later vote from the same manager replaces the earlier one. Votes arriving
// after resolution are ignored and reported as ErrRoundResolved.
func (c *Coordinator) SubmitVote(roundID string, vote *types.ConsensusVote) error {
	if err := vote.Validate(); err != nil {
		return err
	}

	c.mu.RLock()
	rd, ok := c.rounds[roundID]
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRound, roundID)
	}

	// The required set is fixed at round creation; tallying anyone else
	// would let A/R and P/R pass without the named participants.
	if _, ok := rd.required[vote.ManagerID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotParticipant, vote.ManagerID)
	}

	rd.mu.Lock()
	if rd.resolved {
		rd.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRoundResolved, roundID)
	}

	ballot := *vote
	if ballot.Timestamp.IsZero() {
		ballot.Timestamp = c.clock.Now()
	}
	rd.votes[ballot.ManagerID] = &ballot

	unanimous := c.config.EarlyResolve && len(rd.votes) == len(rd.required) && allSame(rd.votes)
	rd.mu.Unlock()

	c.logger.Debug("vote recorded",
		zap.String("round_id", roundID),
		zap.String("manager_id", vote.ManagerID),
		zap.String("vote", string(vote.Vote)),
	)

	if unanimous {
		c.resolveRound(rd)
	}
	return nil
}

// Resolve returns the round's outcome. Calling it on an already-resolved
// round returns the cached result without re-tallying. Before the window
// has elapsed an unresolved round reports ErrRoundOpen; only the deadline
// timer and the unanimous early-resolve path trigger the tally.
func (c *Coordinator) Resolve(roundID string) (Result, error) {
	c.mu.RLock()
	rd, ok := c.rounds[roundID]
	c.mu.RUnlock()
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownRound, roundID)
	}

	rd.mu.Lock()
	if rd.resolved {
		result := rd.result
		rd.mu.Unlock()
		return result, nil
	}
	if c.clock.Now().Before(rd.deadline) {
		rd.mu.Unlock()
		return Result{}, fmt.Errorf("%w: %s", ErrRoundOpen, roundID)
	}
	rd.mu.Unlock()

	return c.resolveRound(rd), nil
}

// Round reports the current state of a round without resolving it.
func (c *Coordinator) Round(roundID string) (votes int, resolved bool, err error) {
	c.mu.RLock()
	rd, ok := c.rounds[roundID]
	c.mu.RUnlock()
	if !ok {
		return 0, false, fmt.Errorf("%w: %s", ErrUnknownRound, roundID)
	}

	rd.mu.Lock()
	defer rd.mu.Unlock()
	return len(rd.votes), rd.resolved, nil
}

// resolveRound tallies once; subsequent calls return the cached result.
func (c *Coordinator) resolveRound(rd *round) Result {
	rd.mu.Lock()
	defer rd.mu.Unlock()

	if rd.resolved {
		return rd.result
	}
	if rd.timer != nil {
		rd.timer.Stop()
	}

	approvals := 0
	for _, v := range rd.votes {
		if v.Vote == types.VoteApprove {
			approvals++
		}
	}

	// Both denominators use the required set size, so missing
	// participants count against approval.
	required := len(rd.required)
	approvalRatio := float64(approvals) / float64(required)
	participationRatio := float64(len(rd.votes)) / float64(required)

	rd.result = Result{
		RoundID:            rd.id,
		Topic:              rd.topic,
		Approved:           approvalRatio > c.config.ApprovalThreshold && participationRatio > c.config.ParticipationThreshold,
		Approvals:          approvals,
		Votes:              len(rd.votes),
		Required:           required,
		ApprovalRatio:      approvalRatio,
		ParticipationRatio: participationRatio,
		ResolvedAt:         c.clock.Now(),
	}
	rd.resolved = true
	if c.resultObserver != nil {
		c.resultObserver(rd.result)
	}
	return rd.result
}

func allSame(votes map[string]*types.ConsensusVote) bool {
	var first types.VoteChoice
	for _, v := range votes {
		if first == "" {
			first = v.Vote
			continue
		}
		if v.Vote != first {
			return false
		}
	}
	return true
}

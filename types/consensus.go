package types

import (
	"encoding/json"
	"time"
)

// VoteChoice is one participant's position on a consensus proposal.
type VoteChoice string

const (
	VoteApprove VoteChoice = "approve"
	VoteReject  VoteChoice = "reject"
	VoteAbstain VoteChoice = "abstain"
)

// ConsensusVote is one participant's ballot in one consensus round. At most
// one vote is counted per manager per round; a later vote replaces the
// earlier one.
type ConsensusVote struct {
	ManagerID string     `json:"manager_id"`
	Vote      VoteChoice `json:"vote"`

	// Confidence is advisory and does not weight the tally.
	Confidence float64 `json:"confidence"`

	Reasoning string    `json:"reasoning,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Validate checks that the vote is well formed.
func (v *ConsensusVote) Validate() error {
	if v == nil {
		return ErrNilVote
	}
	if v.ManagerID == "" {
		return ErrVoteMissingManager
	}
	switch v.Vote {
	case VoteApprove, VoteReject, VoteAbstain:
	default:
		return ErrVoteInvalidChoice
	}
	return nil
}

// ConsensusProposal is the payload carried by the consensus broadcast that
// opens a round.
type ConsensusProposal struct {
	RoundID              string          `json:"roundId"`
	Topic                string          `json:"topic"`
	Proposal             json.RawMessage `json:"proposal"`
	RequiredParticipants []string        `json:"requiredParticipants"`
	Deadline             time.Time       `json:"deadline"`
}

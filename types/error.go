package types

import "errors"

// Manager validation errors.
var (
	// ErrNilManager indicates a nil manager record.
	ErrNilManager = errors.New("manager: nil record")
	// ErrManagerMissingID indicates the manager record has no id.
	ErrManagerMissingID = errors.New("manager: missing id")
)

// Message validation errors.
var (
	// ErrNilMessage indicates a nil message.
	ErrNilMessage = errors.New("message: nil message")
	// ErrMessageMissingFrom indicates the message has no sender.
	ErrMessageMissingFrom = errors.New("message: missing from")
	// ErrMessageMissingTo indicates the message has no recipient.
	ErrMessageMissingTo = errors.New("message: missing to")
	// ErrMessageInvalidType indicates an unrecognized message type.
	ErrMessageInvalidType = errors.New("message: invalid type")
)

// Vote validation errors.
var (
	// ErrNilVote indicates a nil vote.
	ErrNilVote = errors.New("vote: nil vote")
	// ErrVoteMissingManager indicates the vote has no manager id.
	ErrVoteMissingManager = errors.New("vote: missing manager id")
	// ErrVoteInvalidChoice indicates an unrecognized vote choice.
	ErrVoteInvalidChoice = errors.New("vote: invalid choice")
)

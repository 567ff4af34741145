package session

import "errors"

var (
	// ErrUnknownSession is returned when the session id matches no open
	// session.
	ErrUnknownSession = errors.New("session: unknown session")

	// ErrMissingInitiator is returned when a session is opened without an
	// initiating manager id.
	ErrMissingInitiator = errors.New("session: initiator required")

	// ErrNoParticipants is returned when a session is opened with no other
	// participants.
	ErrNoParticipants = errors.New("session: participants required")
)

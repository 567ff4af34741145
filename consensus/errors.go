package consensus

import "errors"

var (
	// ErrUnknownRound is returned when the round ID matches no open or
	// resolved round.
	ErrUnknownRound = errors.New("consensus: unknown round")

	// ErrRoundResolved is returned for votes submitted after resolution.
	ErrRoundResolved = errors.New("consensus: round already resolved")

	// ErrRoundOpen is returned when resolution is requested before the
	// voting window has elapsed.
	ErrRoundOpen = errors.New("consensus: round still open")

	// ErrNotParticipant is returned for ballots from managers outside the
	// round's required participant set.
	ErrNotParticipant = errors.New("consensus: voter not a required participant")

	// ErrNoParticipants is returned when a round is opened with an empty
	// required participant set.
	ErrNoParticipants = errors.New("consensus: required participants empty")
)

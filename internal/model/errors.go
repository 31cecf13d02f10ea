package model

import "errors"

// Common errors used across the application
var (
	// Identity errors
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrUserNotFound    = errors.New("user not found")
	ErrInvalidUsername = errors.New("invalid username")
	ErrNotParticipant  = errors.New("user is not a participant in this room")

	// Invitation errors
	ErrParticipantUnavailable = errors.New("participant unavailable")
	ErrSelfInvite             = errors.New("cannot invite yourself")
	ErrInvalidSettings        = errors.New("invalid match settings")

	// Room errors
	ErrRoomNotFound         = errors.New("room not found")
	ErrNoQuestionsAvailable = errors.New("no questions available")
	ErrMatchInProgress      = errors.New("a match between these players is already in progress")

	// Question bank errors
	ErrInvalidQuestion   = errors.New("invalid question")
	ErrTooManyQuestions  = errors.New("too many questions")
	ErrDefaultsNotLoaded = errors.New("default questions not loaded")
)

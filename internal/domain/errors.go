package domain

import "errors"

var (
	// ErrRoomNotFound is returned when a join code matches no live room.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomClosed is returned when an event arrives for a room being torn down.
	ErrRoomClosed = errors.New("room closed")
	// ErrCodeSpaceExhausted is returned when code generation gives up after the retry cap.
	ErrCodeSpaceExhausted = errors.New("join code space exhausted")
	// ErrParticipantNotFound is returned when an identity acts before joining.
	ErrParticipantNotFound = errors.New("participant not found in room")
	// ErrNotHost is returned when a non-host attempts a host-only action.
	ErrNotHost = errors.New("only the host may do that")
	// ErrInvalidTransition is returned for actions that do not apply in the current phase.
	ErrInvalidTransition = errors.New("invalid phase transition")
	// ErrGameAlreadyStarted is returned when a new identity joins after the lobby closed.
	ErrGameAlreadyStarted = errors.New("game already started")
	// ErrDuplicateSubmission marks a second answer for the same question; rejected, not overwritten.
	ErrDuplicateSubmission = errors.New("duplicate submission")
	// ErrStaleSubmission marks an answer for a question that is not the current one.
	ErrStaleSubmission = errors.New("stale submission")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuizEmpty indicates a quiz with no questions, which cannot be played.
	ErrQuizEmpty = errors.New("quiz has no questions")
)

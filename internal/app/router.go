package app

import (
	"context"

	"github.com/sirupsen/logrus"

	"trivia-live-service/internal/domain"
	"trivia-live-service/internal/game"
)

// QuizRepository loads quiz content (from cache/backing store). The engine
// reads a quiz exactly once, at room creation; a running room plays from
// its own immutable snapshot.
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// Router is the message router: it maps inbound real-time events to room
// operations and relies on each room's execution lane for per-room
// serialization.
type Router struct {
	registry *game.Registry
	quizzes  QuizRepository
	log      *logrus.Logger
}

// NewRouter wires the router to its collaborators.
func NewRouter(registry *game.Registry, quizzes QuizRepository, log *logrus.Logger) *Router {
	return &Router{registry: registry, quizzes: quizzes, log: log}
}

// CreateRoom snapshots the quiz and opens a room, returning the join code.
func (rt *Router) CreateRoom(ctx context.Context, quizID, hostID string) (string, error) {
	quiz, err := rt.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return "", err
	}
	room, err := rt.registry.CreateRoom(quiz, hostID)
	if err != nil {
		return "", err
	}
	return room.Code(), nil
}

// Join connects an identity to a room. Duplicate joins for the same
// identity are idempotent and resolve to a single participant.
func (rt *Router) Join(code, identity, displayName string, opts game.JoinOptions, sender game.Sender) (domain.RoomJoinedPayload, error) {
	room, err := rt.registry.Get(code)
	if err != nil {
		return domain.RoomJoinedPayload{}, err
	}
	return room.Join(identity, displayName, opts, sender)
}

// Start begins the quiz (host-only).
func (rt *Router) Start(code, identity string) error {
	room, err := rt.registry.Get(code)
	if err != nil {
		return err
	}
	return room.Start(identity)
}

// AddBot adds a synthetic participant to the lobby (host-only).
func (rt *Router) AddBot(code, callerID, botID, botName string) error {
	room, err := rt.registry.Get(code)
	if err != nil {
		return err
	}
	return room.AddBot(callerID, botID, botName)
}

// Submit records an answer for the current question.
func (rt *Router) Submit(code, identity string, ordinal int, answer domain.AnswerPayload, elapsedMs int) error {
	room, err := rt.registry.Get(code)
	if err != nil {
		return err
	}
	return room.Submit(identity, ordinal, answer, elapsedMs)
}

// Advance moves the room forward (host-only; automatic timers take the
// same path inside the room).
func (rt *Router) Advance(code, identity string) error {
	room, err := rt.registry.Get(code)
	if err != nil {
		return err
	}
	return room.Advance(identity)
}

// Disconnect flags the identity offline; the room arms the grace timer.
// conn identifies the departing connection so a stale socket cannot
// disconnect an identity that has since reconnected on a new one.
func (rt *Router) Disconnect(code, identity string, conn game.Sender) {
	room, err := rt.registry.Get(code)
	if err != nil {
		return
	}
	room.Disconnect(identity, conn)
}

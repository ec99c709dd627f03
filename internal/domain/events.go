package domain

import "time"

// EventType names a server-to-client broadcast.
type EventType string

const (
	EventRoomJoined     EventType = "room_joined"
	EventLobbyUpdate    EventType = "lobby_update"
	EventQuestionActive EventType = "question_active"
	EventQuestionReveal EventType = "question_reveal"
	EventGameEnd        EventType = "game_end"
	EventError          EventType = "error"
	EventPong           EventType = "pong"
)

// Event is the broadcast envelope. Roster and scoreboard payloads are
// always full-state snapshots so clients converge even when the transport
// reorders deliveries across reconnects.
type Event struct {
	Type      EventType   `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// NewEvent wraps a payload with the current UTC timestamp.
func NewEvent(t EventType, payload interface{}) Event {
	return Event{
		Type:      t,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// QuestionView is a question with the answer key withheld.
type QuestionView struct {
	Ordinal     int          `json:"ordinal"`
	Total       int          `json:"total"`
	Type        QuestionType `json:"type"`
	Prompt      string       `json:"prompt"`
	Options     []string     `json:"options,omitempty"`
	MediaURL    string       `json:"mediaUrl,omitempty"`
	Weight      Weight       `json:"weight"`
	TimeLimitMs int          `json:"timeLimitMs"`
}

// ViewOf projects a question for broadcast during QUESTION_ACTIVE.
func ViewOf(q Question, total int) QuestionView {
	return QuestionView{
		Ordinal:     q.Ordinal,
		Total:       total,
		Type:        q.Type,
		Prompt:      q.Prompt,
		Options:     q.Options,
		MediaURL:    q.MediaURL,
		Weight:      q.Weight,
		TimeLimitMs: q.TimeLimitMs,
	}
}

// AnswerKey is the revealed correct answer for one question.
type AnswerKey struct {
	Ordinal        int      `json:"ordinal"`
	CorrectIndices []int    `json:"correctIndices,omitempty"`
	AcceptedTexts  []string `json:"acceptedTexts,omitempty"`
	CorrectOrder   []int    `json:"correctOrder,omitempty"`
}

// KeyOf extracts the answer key for broadcast during QUESTION_REVEAL.
func KeyOf(q Question) AnswerKey {
	return AnswerKey{
		Ordinal:        q.Ordinal,
		CorrectIndices: q.CorrectIndices,
		AcceptedTexts:  q.AcceptedTexts,
		CorrectOrder:   q.CorrectOrder,
	}
}

// RoomJoinedPayload is sent to the joining connection only; it carries the
// full current state so reconnecting clients resynchronize in one message.
type RoomJoinedPayload struct {
	Code       string            `json:"code"`
	QuizTitle  string            `json:"quizTitle"`
	Phase      Phase             `json:"phase"`
	You        ParticipantView   `json:"you"`
	Roster     []ParticipantView `json:"roster"`
	Question   *QuestionView     `json:"question,omitempty"`
	Scoreboard []ParticipantView `json:"scoreboard,omitempty"`
}

// LobbyUpdatePayload is the full-replace roster snapshot.
type LobbyUpdatePayload struct {
	Roster   []ParticipantView `json:"roster"`
	HostID   string            `json:"hostId"`
	CanStart bool              `json:"canStart"`
}

// QuestionActivePayload starts a countdown on every client.
type QuestionActivePayload struct {
	QuizTitle string       `json:"quizTitle,omitempty"`
	Question  QuestionView `json:"question"`
}

// ParticipantResult is one participant's outcome for a revealed question.
type ParticipantResult struct {
	ParticipantID string `json:"participantId"`
	Correct       bool   `json:"correct"`
	Awarded       int    `json:"awarded"`
	Streak        int    `json:"streak"`
}

// QuestionRevealPayload closes a question: key, per-participant outcomes,
// and the updated scoreboard snapshot.
type QuestionRevealPayload struct {
	Key        AnswerKey           `json:"key"`
	Results    []ParticipantResult `json:"results"`
	Scoreboard []ParticipantView   `json:"scoreboard"`
	LastOne    bool                `json:"lastOne"`
}

// GameEndPayload carries the final scoreboard.
type GameEndPayload struct {
	Scoreboard []ParticipantView `json:"scoreboard"`
}

// ErrorPayload is sent for surfaced failures; silent rejections never produce one.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes surfaced to clients.
const (
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeNotHost        = "NOT_HOST"
	ErrCodeInvalidAction  = "INVALID_ACTION"
	ErrCodeInvalidMessage = "INVALID_MESSAGE"
	ErrCodeRoomStarted    = "ROOM_STARTED"
	ErrCodeInternal       = "INTERNAL_ERROR"
)

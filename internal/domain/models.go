package domain

import "time"

// Phase is the lifecycle stage of a room.
type Phase string

const (
	PhaseLobby          Phase = "LOBBY"
	PhaseQuestionActive Phase = "QUESTION_ACTIVE"
	PhaseQuestionReveal Phase = "QUESTION_REVEAL"
	PhaseGameEnd        Phase = "GAME_END"
)

// QuestionType identifies how a question is presented and scored.
type QuestionType string

const (
	QuestionSingle    QuestionType = "single"
	QuestionMulti     QuestionType = "multi"
	QuestionTrueFalse QuestionType = "true_false"
	QuestionInput     QuestionType = "input"
	QuestionOrdering  QuestionType = "ordering"
	QuestionPoll      QuestionType = "poll"
	QuestionOpen      QuestionType = "open"
	QuestionMedia     QuestionType = "media"
)

// Scorable reports whether the type has a correct answer at all. Poll and
// open questions measure participation, not accuracy.
func (t QuestionType) Scorable() bool {
	return t != QuestionPoll && t != QuestionOpen
}

// Weight is the per-question point-weight class set at authoring time.
type Weight string

const (
	WeightNone   Weight = "none"
	WeightHalf   Weight = "half"
	WeightNormal Weight = "normal"
	WeightDouble Weight = "double"
)

// BasePoints returns the base score for the weight class. Unknown values
// fall back to normal so a malformed quiz still plays.
func (w Weight) BasePoints() int {
	switch w {
	case WeightNone:
		return 0
	case WeightHalf:
		return 50
	case WeightDouble:
		return 200
	default:
		return 100
	}
}

// Question is read-only within the engine; the answer key shape depends on Type.
type Question struct {
	Ordinal        int          `json:"ordinal"`
	Type           QuestionType `json:"type"`
	Prompt         string       `json:"prompt"`
	Options        []string     `json:"options,omitempty"`
	MediaURL       string       `json:"mediaUrl,omitempty"`
	Weight         Weight       `json:"weight"`
	TimeLimitMs    int          `json:"timeLimitMs"`
	CorrectIndices []int        `json:"correctIndices,omitempty"`
	AcceptedTexts  []string     `json:"acceptedTexts,omitempty"`
	CaseSensitive  bool         `json:"caseSensitive,omitempty"`
	MatchSubstring bool         `json:"matchSubstring,omitempty"`
	CorrectOrder   []int        `json:"correctOrder,omitempty"`
}

// Quiz is the immutable snapshot a room plays from. Later edits to the
// source quiz never reach a running room.
type Quiz struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// Participant is one joined identity in a room.
type Participant struct {
	ID          string
	DisplayName string
	Host        bool
	Bot         bool
	Guest       bool
	Anonymous   bool
	Connected   bool
	Score       int
	Streak      int
	LastCorrect bool
	JoinedAt    time.Time
}

// View returns the broadcast-safe projection, redacting anonymous names.
func (p *Participant) View() ParticipantView {
	name := p.DisplayName
	if p.Anonymous {
		name = "Anonymous"
	}
	return ParticipantView{
		ID:          p.ID,
		DisplayName: name,
		Host:        p.Host,
		Bot:         p.Bot,
		Connected:   p.Connected,
		Score:       p.Score,
		Streak:      p.Streak,
	}
}

// ParticipantView is the roster/scoreboard entry sent to clients.
type ParticipantView struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Host        bool   `json:"host"`
	Bot         bool   `json:"bot,omitempty"`
	Connected   bool   `json:"connected"`
	Score       int    `json:"score"`
	Streak      int    `json:"streak"`
}

// AnswerPayload carries the type-specific raw answer; only the field
// matching the question type is consulted.
type AnswerPayload struct {
	Indices []int  `json:"indices,omitempty"`
	Text    string `json:"text,omitempty"`
	Order   []int  `json:"order,omitempty"`
}

// Submission is one accepted answer. At most one exists per
// (participant, ordinal); later arrivals are rejected, never overwritten.
type Submission struct {
	ParticipantID string
	Ordinal       int
	Answer        AnswerPayload
	ElapsedMs     int
	ReceivedAt    time.Time
}

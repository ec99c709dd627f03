package game

import (
	"math"
	"sort"
	"strings"

	"trivia-live-service/internal/domain"
)

// DefaultStreakCap bounds the streak bonus at +50%.
const DefaultStreakCap = 5

// ScoreResult is the outcome of scoring one submission.
type ScoreResult struct {
	Points  int
	Streak  int
	Correct bool
}

// Score computes the points for one participant on one question. It is a
// pure function of its inputs so it can be tested in isolation.
//
// Correct answers earn the weight-class base multiplied by a speed factor
// that decays linearly from 1.0 (instant) to 0.5 (at the time limit), plus
// 10% per consecutive prior correct answer (bonus capped at streakCap).
// A nil submission or a wrong answer yields zero points and resets the
// streak. Results are rounded half-up, never truncated.
func Score(q domain.Question, sub *domain.Submission, priorStreak, streakCap int) ScoreResult {
	if sub == nil {
		return ScoreResult{}
	}
	if !q.Type.Scorable() || !IsCorrect(q, sub.Answer) {
		return ScoreResult{}
	}

	base := float64(q.Weight.BasePoints())
	mult := speedMultiplier(sub.ElapsedMs, q.TimeLimitMs)

	if streakCap <= 0 {
		streakCap = DefaultStreakCap
	}
	bonusSteps := priorStreak
	if bonusSteps > streakCap {
		bonusSteps = streakCap
	}
	bonus := 1.0 + 0.10*float64(bonusSteps)

	return ScoreResult{
		Points:  roundHalfUp(base * mult * bonus),
		Streak:  priorStreak + 1,
		Correct: true,
	}
}

// IsCorrect checks the answer against the type-specific key.
func IsCorrect(q domain.Question, a domain.AnswerPayload) bool {
	switch q.Type {
	case domain.QuestionSingle, domain.QuestionMulti, domain.QuestionTrueFalse, domain.QuestionMedia:
		return indexSetMatch(q.CorrectIndices, a.Indices)
	case domain.QuestionOrdering:
		return intSliceEqual(q.CorrectOrder, a.Order)
	case domain.QuestionInput:
		return textMatch(q, a.Text)
	default:
		return false
	}
}

// indexSetMatch compares option index sets order-independently.
func indexSetMatch(key, got []int) bool {
	if len(key) == 0 || len(key) != len(got) {
		return false
	}
	k := append([]int(nil), key...)
	g := append([]int(nil), got...)
	sort.Ints(k)
	sort.Ints(g)
	return intSliceEqual(k, g)
}

func intSliceEqual(a, b []int) bool {
	if len(a) == 0 || len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// textMatch compares free-text input against the accepted set. Matching is
// exact or substring per the question, case-sensitive only when configured.
func textMatch(q domain.Question, text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	if !q.CaseSensitive {
		text = strings.ToLower(text)
	}
	for _, accepted := range q.AcceptedTexts {
		accepted = strings.TrimSpace(accepted)
		if !q.CaseSensitive {
			accepted = strings.ToLower(accepted)
		}
		if q.MatchSubstring {
			if accepted != "" && strings.Contains(text, accepted) {
				return true
			}
		} else if text == accepted {
			return true
		}
	}
	return false
}

// speedMultiplier decays from 1.0 at t=0 to 0.5 at the time limit. Elapsed
// time is clamped server-side; the client-reported value is trusted only
// within [0, limit].
func speedMultiplier(elapsedMs, limitMs int) float64 {
	if limitMs <= 0 {
		return 1.0
	}
	if elapsedMs < 0 {
		elapsedMs = 0
	}
	if elapsedMs > limitMs {
		elapsedMs = limitMs
	}
	return 1.0 - 0.5*float64(elapsedMs)/float64(limitMs)
}

func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}

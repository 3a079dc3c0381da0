package app

import (
	"context"
	"time"

	"lingo-quiz-service/internal/domain"
)

// ScoringConfig tunes how correct answers are rewarded.
type ScoringConfig struct {
	// BasePoints is awarded for any correct answer.
	BasePoints int
	// MaxTimeBonus is the bonus for an instant answer; it decays linearly
	// to zero across the question window.
	MaxTimeBonus int
	// StreakMultiplier scales the consecutive-correct bonus:
	// (streak-1) * multiplier for the streak reached by this answer.
	StreakMultiplier int
	// MaxStreakBonus caps the streak bonus; zero or negative means uncapped.
	MaxStreakBonus int
}

// DefaultScoring mirrors the product's standard game mode.
var DefaultScoring = ScoringConfig{
	BasePoints:       100,
	MaxTimeBonus:     100,
	StreakMultiplier: 10,
	MaxStreakBonus:   50,
}

// AnswerEngine validates and applies a player's answer exactly once per
// question. Acceptance is gated by the server-recorded question start, not
// the client clock; the reported offset only shapes the time bonus.
type AnswerEngine struct {
	store   SessionStore
	scoring ScoringConfig
	now     func() time.Time
}

func NewAnswerEngine(store SessionStore, scoring ScoringConfig) *AnswerEngine {
	return NewAnswerEngineWithClock(store, scoring, time.Now)
}

// NewAnswerEngineWithClock allows deterministic deadlines in tests.
func NewAnswerEngineWithClock(store SessionStore, scoring ScoringConfig, now func() time.Time) *AnswerEngine {
	return &AnswerEngine{store: store, scoring: scoring, now: now}
}

// SubmitAnswer scores one submission. A repeat submission for the same
// question replays the stored result untouched, which is what absorbs
// client retries and duplicated delivery from the subscription layer.
func (e *AnswerEngine) SubmitAnswer(ctx context.Context, roomCode, playerID, answer string, offsetMs int) (domain.AnswerResult, error) {
	var result domain.AnswerResult
	_, err := e.store.Transact(ctx, roomCode, func(s *domain.Session) error {
		player, ok := s.Players[playerID]
		if !ok {
			return domain.ErrPlayerNotFound
		}

		if player.LastAnsweredIndex == s.CurrentQuestionIndex && player.LastResult != nil {
			result = *player.LastResult
			return nil
		}

		if s.Status != domain.StatusInProgress {
			return domain.ErrNotAcceptingAnswers
		}
		if e.now().After(s.Deadline()) {
			return domain.ErrNotAcceptingAnswers
		}
		question, ok := s.CurrentQuestion()
		if !ok {
			return domain.ErrNotAcceptingAnswers
		}

		correct := answer == question.CorrectAnswer
		delta := 0
		if correct {
			player.Streak++
			delta = e.scoring.BasePoints +
				e.timeBonus(offsetMs, s.TimePerQuestionSec) +
				e.streakBonus(player.Streak)
		} else {
			player.Streak = 0
		}

		player.Score += delta
		player.LastAnsweredIndex = s.CurrentQuestionIndex
		result = domain.AnswerResult{
			QuestionIndex: s.CurrentQuestionIndex,
			Correct:       correct,
			ScoreDelta:    delta,
			Score:         player.Score,
			Streak:        player.Streak,
		}
		player.LastResult = &result
		return nil
	})
	if err != nil {
		return domain.AnswerResult{}, err
	}
	return result, nil
}

// timeBonus decays linearly from MaxTimeBonus to 0 across the window.
// The client-reported offset is clamped into the window; it never gates
// acceptance, only shapes the reward.
func (e *AnswerEngine) timeBonus(offsetMs, timePerQuestionSec int) int {
	windowMs := timePerQuestionSec * 1000
	if e.scoring.MaxTimeBonus <= 0 || windowMs <= 0 {
		return 0
	}
	if offsetMs < 0 {
		offsetMs = 0
	}
	if offsetMs > windowMs {
		offsetMs = windowMs
	}
	return e.scoring.MaxTimeBonus * (windowMs - offsetMs) / windowMs
}

// streakBonus rewards the streak reached by this answer: nothing for the
// first correct answer, then (streak-1) * multiplier, capped.
func (e *AnswerEngine) streakBonus(streak int) int {
	if streak <= 1 || e.scoring.StreakMultiplier <= 0 {
		return 0
	}
	bonus := (streak - 1) * e.scoring.StreakMultiplier
	if e.scoring.MaxStreakBonus > 0 && bonus > e.scoring.MaxStreakBonus {
		bonus = e.scoring.MaxStreakBonus
	}
	return bonus
}

package app

import (
	"context"
	"time"

	"lingo-quiz-service/internal/domain"
)

// StateMachine owns session status and question progression. It is the
// host's only write surface; every transition is host-authorized and runs
// as one transaction so concurrent commands serialize per room.
type StateMachine struct {
	store SessionStore
	now   func() time.Time
}

func NewStateMachine(store SessionStore) *StateMachine {
	return NewStateMachineWithClock(store, time.Now)
}

// NewStateMachineWithClock allows deterministic timestamps in tests.
func NewStateMachineWithClock(store SessionStore, now func() time.Time) *StateMachine {
	return &StateMachine{store: store, now: now}
}

// StartGame moves waiting → in_progress and opens the first question window.
func (m *StateMachine) StartGame(ctx context.Context, roomCode, callerID string) (*domain.Session, error) {
	return m.store.Transact(ctx, roomCode, func(s *domain.Session) error {
		if s.HostID != callerID {
			return domain.ErrNotHost
		}
		if s.Status != domain.StatusWaiting {
			return domain.ErrInvalidTransition
		}
		if len(s.Players) == 0 {
			return domain.ErrEmptyRoom
		}
		s.Status = domain.StatusInProgress
		s.CurrentQuestionIndex = 0
		s.QuestionStartedAt = m.now()
		return nil
	})
}

// NextQuestion advances past expectedIndex, or finishes the quiz when the
// question list is exhausted. The expectedIndex guard turns a duplicated
// or stale command into a detectable no-op instead of a double advance.
func (m *StateMachine) NextQuestion(ctx context.Context, roomCode, callerID string, expectedIndex int) (*domain.Session, error) {
	return m.store.Transact(ctx, roomCode, func(s *domain.Session) error {
		if s.HostID != callerID {
			return domain.ErrNotHost
		}
		if s.Status != domain.StatusInProgress && s.Status != domain.StatusLeaderboard {
			return domain.ErrInvalidTransition
		}
		if expectedIndex != s.CurrentQuestionIndex {
			return domain.ErrStaleCommand
		}
		if expectedIndex+1 >= len(s.Questions) {
			s.Status = domain.StatusFinished
			return nil
		}
		s.CurrentQuestionIndex = expectedIndex + 1
		s.Status = domain.StatusInProgress
		s.QuestionStartedAt = m.now()
		return nil
	})
}

// ShowLeaderboard interposes the standings view between questions.
func (m *StateMachine) ShowLeaderboard(ctx context.Context, roomCode, callerID string) (*domain.Session, error) {
	return m.store.Transact(ctx, roomCode, func(s *domain.Session) error {
		if s.HostID != callerID {
			return domain.ErrNotHost
		}
		if s.Status != domain.StatusInProgress {
			return domain.ErrInvalidTransition
		}
		s.Status = domain.StatusLeaderboard
		return nil
	})
}

// EndQuiz forces the session to finished from any state. Ending an
// already-finished session is a successful no-op.
func (m *StateMachine) EndQuiz(ctx context.Context, roomCode, callerID string) (*domain.Session, error) {
	return m.store.Transact(ctx, roomCode, func(s *domain.Session) error {
		if s.HostID != callerID {
			return domain.ErrNotHost
		}
		if s.Status == domain.StatusFinished {
			return nil
		}
		s.Status = domain.StatusFinished
		return nil
	})
}

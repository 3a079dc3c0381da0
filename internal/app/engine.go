package app

import (
	"context"
	"time"

	"lingo-quiz-service/internal/domain"
)

// PacingPolicy selects who advances questions when the timer runs out.
type PacingPolicy string

const (
	// PacingHost leaves advancement entirely to the host client.
	PacingHost PacingPolicy = "host"
	// PacingAuto lets the timer coordinator advance at the deadline.
	PacingAuto PacingPolicy = "auto"
)

// EngineConfig collects the tunables for a quiz engine instance.
type EngineConfig struct {
	Scoring ScoringConfig
	Pacing  PacingPolicy
	// TimerGrace pads the authoritative deadline before auto-advancing,
	// absorbing clock skew between the engine and its clients.
	TimerGrace time.Duration
}

// Engine bundles the quiz services behind one surface for transports.
// Every service is an explicit constructed struct holding only its
// dependencies; there is no process-wide mutable state here.
type Engine struct {
	registry *RoomRegistry
	machine  *StateMachine
	answers  *AnswerEngine
	timers   *TimerCoordinator
	store    SessionStore
	pacing   PacingPolicy
}

func NewEngine(store SessionStore, vocab VocabRepository, cfg EngineConfig) *Engine {
	return NewEngineWithClock(store, vocab, cfg, time.Now)
}

// NewEngineWithClock allows deterministic time in tests.
func NewEngineWithClock(store SessionStore, vocab VocabRepository, cfg EngineConfig, now func() time.Time) *Engine {
	if cfg.Pacing == "" {
		cfg.Pacing = PacingHost
	}
	machine := NewStateMachineWithClock(store, now)
	return &Engine{
		registry: NewRoomRegistryWithClock(store, NewQuestionSetBuilder(vocab), now),
		machine:  machine,
		answers:  NewAnswerEngineWithClock(store, cfg.Scoring, now),
		timers:   NewTimerCoordinatorWithClock(machine, cfg.TimerGrace, now),
		store:    store,
		pacing:   cfg.Pacing,
	}
}

func (e *Engine) CreateQuiz(ctx context.Context, hostID, unit, level string, questionCount, timePerQuestionSec int) (*domain.Session, error) {
	return e.registry.CreateQuiz(ctx, hostID, unit, level, questionCount, timePerQuestionSec)
}

func (e *Engine) JoinQuiz(ctx context.Context, roomCode, playerID, nickname string) (*domain.Session, error) {
	return e.registry.JoinQuiz(ctx, roomCode, playerID, nickname)
}

func (e *Engine) StartGame(ctx context.Context, roomCode, callerID string) (*domain.Session, error) {
	session, err := e.machine.StartGame(ctx, roomCode, callerID)
	if err != nil {
		return nil, err
	}
	e.pace(session)
	return session, nil
}

func (e *Engine) NextQuestion(ctx context.Context, roomCode, callerID string, expectedIndex int) (*domain.Session, error) {
	session, err := e.machine.NextQuestion(ctx, roomCode, callerID, expectedIndex)
	if err != nil {
		return nil, err
	}
	e.pace(session)
	return session, nil
}

func (e *Engine) ShowLeaderboard(ctx context.Context, roomCode, callerID string) (*domain.Session, error) {
	return e.machine.ShowLeaderboard(ctx, roomCode, callerID)
}

func (e *Engine) EndQuiz(ctx context.Context, roomCode, callerID string) (*domain.Session, error) {
	session, err := e.machine.EndQuiz(ctx, roomCode, callerID)
	if err != nil {
		return nil, err
	}
	e.timers.Disarm(roomCode)
	return session, nil
}

func (e *Engine) SubmitAnswer(ctx context.Context, roomCode, playerID, answer string, offsetMs int) (domain.AnswerResult, error) {
	return e.answers.SubmitAnswer(ctx, roomCode, playerID, answer, offsetMs)
}

func (e *Engine) GetSession(ctx context.Context, roomCode string) (*domain.Session, error) {
	return e.store.Get(ctx, roomCode)
}

// Subscribe delivers live session snapshots for the room.
func (e *Engine) Subscribe(ctx context.Context, roomCode string) (<-chan domain.Session, func(), error) {
	return e.store.Subscribe(ctx, roomCode)
}

// Close releases timer resources.
func (e *Engine) Close() {
	e.timers.Stop()
}

func (e *Engine) pace(session *domain.Session) {
	if e.pacing != PacingAuto {
		return
	}
	switch session.Status {
	case domain.StatusInProgress:
		e.timers.Arm(session)
	case domain.StatusFinished:
		e.timers.Disarm(session.RoomCode)
	}
}

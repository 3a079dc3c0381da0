package app

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"lingo-quiz-service/internal/domain"
)

// TimerCoordinator drives auto-paced rooms: when a question's deadline
// elapses it issues the advancement the host would otherwise send. The
// expectedIndex guard in the state machine makes the race between timer
// and host harmless, so a lost race is simply ignored here.
//
// Host-paced rooms never arm the coordinator; answer acceptance is gated
// by the deadline either way inside the AnswerEngine.
type TimerCoordinator struct {
	machine *StateMachine
	grace   time.Duration
	now     func() time.Time

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewTimerCoordinator(machine *StateMachine, grace time.Duration) *TimerCoordinator {
	return NewTimerCoordinatorWithClock(machine, grace, time.Now)
}

// NewTimerCoordinatorWithClock allows deterministic scheduling in tests.
func NewTimerCoordinatorWithClock(machine *StateMachine, grace time.Duration, now func() time.Time) *TimerCoordinator {
	return &TimerCoordinator{
		machine: machine,
		grace:   grace,
		now:     now,
		timers:  make(map[string]*time.Timer),
	}
}

// Arm schedules advancement for the session's active question, replacing
// any timer already armed for the room.
func (c *TimerCoordinator) Arm(session *domain.Session) {
	if session.Status != domain.StatusInProgress {
		return
	}
	roomCode := session.RoomCode
	hostID := session.HostID
	index := session.CurrentQuestionIndex

	delay := session.Deadline().Add(c.grace).Sub(c.now())
	if delay < 0 {
		delay = 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.timers[roomCode]; ok {
		old.Stop()
	}
	c.timers[roomCode] = time.AfterFunc(delay, func() {
		c.fire(roomCode, hostID, index)
	})
}

// Disarm cancels any pending advancement for the room.
func (c *TimerCoordinator) Disarm(roomCode string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.timers[roomCode]; ok {
		t.Stop()
		delete(c.timers, roomCode)
	}
}

// Stop disarms every room.
func (c *TimerCoordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for code, t := range c.timers {
		t.Stop()
		delete(c.timers, code)
	}
}

func (c *TimerCoordinator) fire(roomCode, hostID string, expectedIndex int) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	next, err := c.machine.NextQuestion(ctx, roomCode, hostID, expectedIndex)
	switch {
	case errors.Is(err, domain.ErrStaleCommand),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrRoomNotFound):
		// Host advanced or ended the quiz first; nothing to do.
		return
	case err != nil:
		log.Printf("timer advance failed for room %s: %v", roomCode, err)
		return
	}

	if next.Status == domain.StatusInProgress {
		c.Arm(next)
		return
	}
	c.Disarm(roomCode)
}

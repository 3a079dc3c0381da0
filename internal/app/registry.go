package app

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"lingo-quiz-service/internal/domain"
)

const (
	roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	roomCodeLength   = 6
	// maxCodeAttempts bounds collision retries; the 36^6 space makes more
	// than one attempt rare, but collisions are checked, never assumed.
	maxCodeAttempts = 5
)

// RoomRegistry creates sessions and validates joins.
type RoomRegistry struct {
	store   SessionStore
	builder *QuestionSetBuilder
	now     func() time.Time
}

func NewRoomRegistry(store SessionStore, builder *QuestionSetBuilder) *RoomRegistry {
	return NewRoomRegistryWithClock(store, builder, time.Now)
}

// NewRoomRegistryWithClock allows deterministic timestamps in tests.
func NewRoomRegistryWithClock(store SessionStore, builder *QuestionSetBuilder, now func() time.Time) *RoomRegistry {
	return &RoomRegistry{store: store, builder: builder, now: now}
}

// CreateQuiz builds a question set and persists a fresh waiting session
// under a collision-checked room code.
func (r *RoomRegistry) CreateQuiz(ctx context.Context, hostID, unit, level string, questionCount, timePerQuestionSec int) (*domain.Session, error) {
	if hostID == "" {
		return nil, fmt.Errorf("host id required")
	}
	if timePerQuestionSec <= 0 {
		return nil, fmt.Errorf("time per question must be positive")
	}

	questions, err := r.builder.Build(ctx, unit, level, questionCount)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		session := &domain.Session{
			RoomCode:             newRoomCode(),
			HostID:               hostID,
			Status:               domain.StatusWaiting,
			CurrentQuestionIndex: -1,
			Questions:            questions,
			Players:              make(map[string]*domain.Player),
			Unit:                 unit,
			Level:                level,
			TimePerQuestionSec:   timePerQuestionSec,
			CreatedAt:            r.now(),
		}
		err := r.store.Create(ctx, session)
		if err == domain.ErrRoomCodeTaken {
			continue
		}
		if err != nil {
			return nil, err
		}
		return session, nil
	}
	return nil, fmt.Errorf("could not allocate a free room code: %w", domain.ErrRoomCodeTaken)
}

// JoinQuiz appends a player to a waiting session. Rejoining with the same
// player id is a successful no-op so client retries are harmless.
func (r *RoomRegistry) JoinQuiz(ctx context.Context, roomCode, playerID, nickname string) (*domain.Session, error) {
	if playerID == "" {
		return nil, fmt.Errorf("player id required")
	}
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return nil, fmt.Errorf("nickname required")
	}

	return r.store.Transact(ctx, roomCode, func(s *domain.Session) error {
		if _, ok := s.Players[playerID]; ok {
			return nil
		}
		if s.Status != domain.StatusWaiting {
			return domain.ErrRoomNotJoinable
		}
		for _, p := range s.Players {
			if strings.EqualFold(p.Nickname, nickname) {
				return domain.ErrNicknameTaken
			}
		}
		s.Players[playerID] = &domain.Player{
			ID:                playerID,
			Nickname:          nickname,
			LastAnsweredIndex: -1,
			JoinedAt:          r.now(),
		}
		return nil
	})
}

func newRoomCode() string {
	buf := make([]byte, roomCodeLength)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	for i, b := range buf {
		buf[i] = roomCodeAlphabet[int(b)%len(roomCodeAlphabet)]
	}
	return string(buf)
}

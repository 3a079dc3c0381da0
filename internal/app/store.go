package app

import (
	"context"

	"lingo-quiz-service/internal/domain"
)

// SessionStore abstracts the real-time document store a session lives in
// (in-memory, Redis, etc). One document per room code.
type SessionStore interface {
	// Create persists a new session. It fails with domain.ErrRoomCodeTaken
	// while a live (waiting or in-progress) session holds the same code;
	// finished sessions may be overwritten so codes recycle.
	Create(ctx context.Context, session *domain.Session) error

	// Get returns a snapshot of the session, or domain.ErrRoomNotFound.
	Get(ctx context.Context, roomCode string) (*domain.Session, error)

	// Transact applies fn atomically: read the latest committed state,
	// let fn validate and mutate a private copy, write it back. Optimistic
	// conflicts are retried internally a bounded number of times, after
	// which domain.ErrContention surfaces. An error from fn aborts the
	// transaction without retry and is returned verbatim.
	Transact(ctx context.Context, roomCode string, fn func(*domain.Session) error) (*domain.Session, error)

	// Subscribe delivers a full session snapshot on every committed
	// change, at least once and with no cross-retry ordering promise.
	// The cancel func must be called to release the subscription.
	Subscribe(ctx context.Context, roomCode string) (<-chan domain.Session, func(), error)
}

// VocabRepository loads vocabulary entries for a unit/level (from
// cache/backing store).
type VocabRepository interface {
	Entries(ctx context.Context, unit, level string) ([]domain.VocabEntry, error)
}

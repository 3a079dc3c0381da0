package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"lingo-quiz-service/internal/domain"
)

// maxTxAttempts bounds optimistic WATCH retries before surfacing contention.
const maxTxAttempts = 8

// SessionStore keeps each session as a JSON document in Redis and uses
// WATCH/MULTI transactions for atomic read-modify-write. Every committed
// change is published on the room's event channel so all subscribers see
// a full snapshot (at least once, order not promised across retries).
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) Create(ctx context.Context, session *domain.Session) error {
	key := s.key(session.RoomCode)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil && err != redis.Nil {
			return fmt.Errorf("check room code: %w", err)
		}
		if err == nil {
			var existing domain.Session
			if jsonErr := json.Unmarshal(raw, &existing); jsonErr == nil && existing.Live() {
				return domain.ErrRoomCodeTaken
			}
		}

		data, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		return err
	}, key)
	if err == redis.TxFailedErr {
		// Lost the race for this code; the caller generates a fresh one.
		return domain.ErrRoomCodeTaken
	}
	return err
}

func (s *SessionStore) Get(ctx context.Context, roomCode string) (*domain.Session, error) {
	raw, err := s.client.Get(ctx, s.key(roomCode)).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	var session domain.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

func (s *SessionStore) Transact(ctx context.Context, roomCode string, fn func(*domain.Session) error) (*domain.Session, error) {
	key := s.key(roomCode)

	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		var committed *domain.Session
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.Get(ctx, key).Bytes()
			if err == redis.Nil {
				return domain.ErrRoomNotFound
			}
			if err != nil {
				return fmt.Errorf("read session: %w", err)
			}

			var session domain.Session
			if err := json.Unmarshal(raw, &session); err != nil {
				return fmt.Errorf("unmarshal session: %w", err)
			}

			if err := fn(&session); err != nil {
				return err
			}

			data, err := json.Marshal(&session)
			if err != nil {
				return fmt.Errorf("marshal session: %w", err)
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, data, s.ttl)
				pipe.Publish(ctx, s.channel(roomCode), data)
				return nil
			})
			if err != nil {
				return err
			}
			committed = &session
			return nil
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			return nil, err
		}
		return committed, nil
	}
	return nil, domain.ErrContention
}

func (s *SessionStore) Subscribe(ctx context.Context, roomCode string) (<-chan domain.Session, func(), error) {
	if _, err := s.Get(ctx, roomCode); err != nil {
		return nil, nil, err
	}

	pubsub := s.client.Subscribe(ctx, s.channel(roomCode))
	// Force the SUBSCRIBE round trip so no commit published after this
	// point can be missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe: %w", err)
	}

	ch := make(chan domain.Session, 8)
	go func() {
		defer close(ch)

		if initial, err := s.Get(ctx, roomCode); err == nil {
			ch <- *initial
		}

		for msg := range pubsub.Channel() {
			var session domain.Session
			if err := json.Unmarshal([]byte(msg.Payload), &session); err != nil {
				continue
			}
			select {
			case ch <- session:
			default:
				// Drop a stale frame rather than stall behind a slow reader.
				select {
				case <-ch:
				default:
				}
				ch <- session
			}
		}
	}()

	cancel := func() { _ = pubsub.Close() }
	return ch, cancel, nil
}

func (s *SessionStore) key(roomCode string) string {
	return "room:" + roomCode
}

func (s *SessionStore) channel(roomCode string) string {
	return "room:" + roomCode + ":events"
}

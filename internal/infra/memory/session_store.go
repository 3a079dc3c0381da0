package memory

import (
	"context"
	"sync"

	"lingo-quiz-service/internal/domain"
)

// maxTxAttempts bounds optimistic retries before surfacing contention.
const maxTxAttempts = 8

// SessionStore is an in-process implementation of app.SessionStore with
// per-document versioning, so its transaction semantics match the
// optimistic read-modify-write discipline of the real document store.
type SessionStore struct {
	mu          sync.RWMutex
	documents   map[string]*document
	subscribers map[string]map[chan domain.Session]struct{}
}

type document struct {
	session *domain.Session
	version uint64
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		documents:   make(map[string]*document),
		subscribers: make(map[string]map[chan domain.Session]struct{}),
	}
}

func (s *SessionStore) Create(_ context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.documents[session.RoomCode]; ok && existing.session.Live() {
		return domain.ErrRoomCodeTaken
	}
	s.documents[session.RoomCode] = &document{session: session.Clone(), version: 1}
	return nil
}

func (s *SessionStore) Get(_ context.Context, roomCode string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[roomCode]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return doc.session.Clone(), nil
}

func (s *SessionStore) Transact(_ context.Context, roomCode string, fn func(*domain.Session) error) (*domain.Session, error) {
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		s.mu.RLock()
		doc, ok := s.documents[roomCode]
		if !ok {
			s.mu.RUnlock()
			return nil, domain.ErrRoomNotFound
		}
		working := doc.session.Clone()
		version := doc.version
		s.mu.RUnlock()

		if err := fn(working); err != nil {
			return nil, err
		}

		s.mu.Lock()
		doc, ok = s.documents[roomCode]
		if !ok {
			s.mu.Unlock()
			return nil, domain.ErrRoomNotFound
		}
		if doc.version != version {
			s.mu.Unlock()
			continue
		}
		doc.session = working
		doc.version++
		s.broadcastLocked(roomCode, working)
		s.mu.Unlock()
		return working.Clone(), nil
	}
	return nil, domain.ErrContention
}

func (s *SessionStore) Subscribe(_ context.Context, roomCode string) (<-chan domain.Session, func(), error) {
	s.mu.Lock()
	doc, ok := s.documents[roomCode]
	if !ok {
		s.mu.Unlock()
		return nil, nil, domain.ErrRoomNotFound
	}

	ch := make(chan domain.Session, 8)
	if s.subscribers[roomCode] == nil {
		s.subscribers[roomCode] = make(map[chan domain.Session]struct{})
	}
	s.subscribers[roomCode][ch] = struct{}{}
	initial := *doc.session.Clone()
	s.mu.Unlock()

	ch <- initial

	cancel := func() {
		s.mu.Lock()
		if subs, ok := s.subscribers[roomCode]; ok {
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}
		}
		s.mu.Unlock()
	}
	return ch, cancel, nil
}

func (s *SessionStore) broadcastLocked(roomCode string, session *domain.Session) {
	snapshot := *session.Clone()
	for ch := range s.subscribers[roomCode] {
		select {
		case ch <- snapshot:
		default:
			// Drop a stale frame rather than let a slow client block commits.
			select {
			case <-ch:
			default:
			}
			ch <- snapshot
		}
	}
}

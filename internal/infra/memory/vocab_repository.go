package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"lingo-quiz-service/internal/domain"
)

// VocabLoader fetches vocabulary content from a backing store (e.g., document DB).
type VocabLoader interface {
	LoadEntries(ctx context.Context, unit, level string) ([]domain.VocabEntry, error)
}

// VocabRepository caches vocabulary per unit/level with TTL to avoid
// repeated DB hits. The source material is read-only, so cached slices
// are shared freely.
type VocabRepository struct {
	loader VocabLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedEntries
}

type cachedEntries struct {
	entries   []domain.VocabEntry
	expiresAt time.Time
}

func NewVocabRepository(loader VocabLoader, ttl time.Duration) *VocabRepository {
	return &VocabRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedEntries),
	}
}

func (r *VocabRepository) Entries(ctx context.Context, unit, level string) ([]domain.VocabEntry, error) {
	key := cacheKey(unit, level)
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[key]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.entries, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[key]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.entries, nil
		}
		r.mu.RUnlock()

		entries, err := r.loader.LoadEntries(ctx, unit, level)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.cache[key] = cachedEntries{
			entries:   entries,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.VocabEntry), nil
}

func (r *VocabRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

func cacheKey(unit, level string) string {
	return level + "|" + unit
}

// StaticVocabLoader serves entries from an in-memory slice (useful for
// tests/demos).
type StaticVocabLoader struct {
	entries []domain.VocabEntry
}

func NewStaticVocabLoader(entries []domain.VocabEntry) *StaticVocabLoader {
	return &StaticVocabLoader{entries: entries}
}

func (l *StaticVocabLoader) LoadEntries(_ context.Context, unit, level string) ([]domain.VocabEntry, error) {
	out := make([]domain.VocabEntry, 0, len(l.entries))
	for _, e := range l.entries {
		if e.Unit == unit && e.Level == level {
			out = append(out, e)
		}
	}
	return out, nil
}

package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"lingo-quiz-service/internal/domain"
)

// VocabLoader fetches vocabulary content from a backing store (e.g., document DB).
type VocabLoader interface {
	LoadEntries(ctx context.Context, unit, level string) ([]domain.VocabEntry, error)
}

// VocabRepository caches vocabulary in Redis (one JSON blob per
// unit/level) and falls back to a loader on cache miss.
// Entries are stored as: SET vocab:{level}:{unit} <json> EX ttl
type VocabRepository struct {
	client *redis.Client
	loader VocabLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewVocabRepository(client *redis.Client, loader VocabLoader, ttl time.Duration) *VocabRepository {
	return &VocabRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *VocabRepository) Entries(ctx context.Context, unit, level string) ([]domain.VocabEntry, error) {
	key := r.key(unit, level)

	if entries, ok := r.fromCache(ctx, key); ok {
		return entries, nil
	}

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if entries, ok := r.fromCache(ctx, key); ok {
			return entries, nil
		}

		entries, err := r.loader.LoadEntries(ctx, unit, level)
		if err != nil {
			return nil, err
		}

		if data, err := json.Marshal(entries); err == nil {
			_ = r.client.Set(ctx, key, data, r.ttlWithJitter()).Err()
		}
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.VocabEntry), nil
}

func (r *VocabRepository) fromCache(ctx context.Context, key string) ([]domain.VocabEntry, bool) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var entries []domain.VocabEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, false
	}
	return entries, true
}

func (r *VocabRepository) key(unit, level string) string {
	return "vocab:" + level + ":" + unit
}

func (r *VocabRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

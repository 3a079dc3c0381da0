package app

import (
	"context"
	"math/rand"
	"time"

	"lingo-quiz-service/internal/domain"
)

// optionsPerQuestion is the fixed size of each question's answer set.
const optionsPerQuestion = 4

// QuestionSetBuilder turns vocabulary entries into shuffled multiple-choice
// questions with distractor options drawn from the same unit/level.
type QuestionSetBuilder struct {
	vocab VocabRepository
	rnd   *rand.Rand
}

func NewQuestionSetBuilder(vocab VocabRepository) *QuestionSetBuilder {
	return NewQuestionSetBuilderWithRand(vocab, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewQuestionSetBuilderWithRand allows a seeded source for deterministic tests.
func NewQuestionSetBuilderWithRand(vocab VocabRepository, rnd *rand.Rand) *QuestionSetBuilder {
	return &QuestionSetBuilder{vocab: vocab, rnd: rnd}
}

// Build selects count entries at random and produces one question per entry.
// It fails with domain.ErrContentUnavailable when the pool is too small to
// fill the question count or the distractor slots.
func (b *QuestionSetBuilder) Build(ctx context.Context, unit, level string, count int) ([]domain.Question, error) {
	entries, err := b.vocab.Entries(ctx, unit, level)
	if err != nil {
		return nil, err
	}

	pool := dedupeByTerm(entries)
	if len(pool) < count || count <= 0 {
		return nil, domain.ErrContentUnavailable
	}

	b.rnd.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	questions := make([]domain.Question, 0, count)
	for _, entry := range pool[:count] {
		options, err := b.buildOptions(entry, pool)
		if err != nil {
			return nil, err
		}
		questions = append(questions, domain.Question{
			Text:          entry.Term,
			Options:       options,
			CorrectAnswer: entry.Translation,
			VocabID:       entry.ID,
		})
	}
	return questions, nil
}

// buildOptions picks distractor translations distinct from the correct
// answer and from each other, then shuffles the full option set.
func (b *QuestionSetBuilder) buildOptions(entry domain.VocabEntry, pool []domain.VocabEntry) ([]string, error) {
	candidates := make([]string, 0, len(pool))
	seen := map[string]struct{}{entry.Translation: {}}
	for _, other := range pool {
		if _, dup := seen[other.Translation]; dup {
			continue
		}
		seen[other.Translation] = struct{}{}
		candidates = append(candidates, other.Translation)
	}
	if len(candidates) < optionsPerQuestion-1 {
		return nil, domain.ErrContentUnavailable
	}

	b.rnd.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	options := append([]string{entry.Translation}, candidates[:optionsPerQuestion-1]...)
	b.rnd.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})
	return options, nil
}

func dedupeByTerm(entries []domain.VocabEntry) []domain.VocabEntry {
	seen := make(map[string]struct{}, len(entries))
	out := make([]domain.VocabEntry, 0, len(entries))
	for _, e := range entries {
		if _, dup := seen[e.Term]; dup {
			continue
		}
		seen[e.Term] = struct{}{}
		out = append(out, e)
	}
	return out
}

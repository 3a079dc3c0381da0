package app_test

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"lingo-quiz-service/internal/app"
	"lingo-quiz-service/internal/domain"
	"lingo-quiz-service/internal/infra/memory"
)

func TestBuildQuestionSet(t *testing.T) {
	builder := newSeededBuilder(1)

	questions, err := builder.Build(context.Background(), "animals", "a1", 5)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(questions) != 5 {
		t.Fatalf("expected 5 questions, got %d", len(questions))
	}

	for _, q := range questions {
		if len(q.Options) != 4 {
			t.Fatalf("expected 4 options, got %d for %q", len(q.Options), q.Text)
		}
		found := false
		seen := map[string]struct{}{}
		for _, opt := range q.Options {
			if _, dup := seen[opt]; dup {
				t.Fatalf("duplicate option %q for %q", opt, q.Text)
			}
			seen[opt] = struct{}{}
			if opt == q.CorrectAnswer {
				found = true
			}
		}
		if !found {
			t.Fatalf("correct answer %q missing from options of %q", q.CorrectAnswer, q.Text)
		}
	}
}

func TestBuildIsDeterministicWithSeed(t *testing.T) {
	first, err := newSeededBuilder(42).Build(context.Background(), "animals", "a1", 4)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	second, err := newSeededBuilder(42).Build(context.Background(), "animals", "a1", 4)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	for i := range first {
		if first[i].Text != second[i].Text || first[i].CorrectAnswer != second[i].CorrectAnswer {
			t.Fatalf("expected identical question sets, diverged at %d: %+v vs %+v", i, first[i], second[i])
		}
		for j := range first[i].Options {
			if first[i].Options[j] != second[i].Options[j] {
				t.Fatalf("option order diverged for question %d", i)
			}
		}
	}
}

func TestBuildFailsOnSmallPool(t *testing.T) {
	builder := newSeededBuilder(1)

	if _, err := builder.Build(context.Background(), "animals", "a1", 50); !errors.Is(err, domain.ErrContentUnavailable) {
		t.Fatalf("expected content unavailable, got %v", err)
	}
	if _, err := builder.Build(context.Background(), "nope", "a1", 1); !errors.Is(err, domain.ErrContentUnavailable) {
		t.Fatalf("expected content unavailable for empty unit, got %v", err)
	}
}

func TestBuildNeedsDistinctDistractors(t *testing.T) {
	// Three entries cannot fill a four-option question.
	vocab := memory.NewVocabRepository(memory.NewStaticVocabLoader([]domain.VocabEntry{
		{ID: "v1", Term: "en", Translation: "one", Unit: "numbers", Level: "a1"},
		{ID: "v2", Term: "två", Translation: "two", Unit: "numbers", Level: "a1"},
		{ID: "v3", Term: "tre", Translation: "three", Unit: "numbers", Level: "a1"},
	}), time.Minute)
	builder := app.NewQuestionSetBuilderWithRand(vocab, rand.New(rand.NewSource(1)))

	if _, err := builder.Build(context.Background(), "numbers", "a1", 2); !errors.Is(err, domain.ErrContentUnavailable) {
		t.Fatalf("expected content unavailable, got %v", err)
	}
}

func newSeededBuilder(seed int64) *app.QuestionSetBuilder {
	vocab := memory.NewVocabRepository(memory.NewStaticVocabLoader(sampleVocab()), 5*time.Minute)
	return app.NewQuestionSetBuilderWithRand(vocab, rand.New(rand.NewSource(seed)))
}

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"lingo-quiz-service/internal/domain"
)

// VocabLoader loads vocabulary entries from Postgres.
type VocabLoader struct {
	pool *pgxpool.Pool
}

func NewVocabLoader(pool *pgxpool.Pool) *VocabLoader {
	return &VocabLoader{pool: pool}
}

func (l *VocabLoader) LoadEntries(ctx context.Context, unit, level string) ([]domain.VocabEntry, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT id, term, translation, unit, level FROM vocab_entries WHERE unit=$1 AND level=$2`,
		unit, level)
	if err != nil {
		return nil, fmt.Errorf("load vocab: %w", err)
	}
	defer rows.Close()

	var entries []domain.VocabEntry
	for rows.Next() {
		var e domain.VocabEntry
		if err := rows.Scan(&e.ID, &e.Term, &e.Translation, &e.Unit, &e.Level); err != nil {
			return nil, fmt.Errorf("scan vocab entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vocab: %w", err)
	}
	return entries, nil
}

package app

import (
	"sort"

	"lingo-quiz-service/internal/domain"
)

// Rank derives the standings from the current player map. It is a pure
// function: never stored, always recomputed, and fully deterministic —
// score descending, ties broken by higher streak, then by player id.
func Rank(players map[string]*domain.Player) []domain.RankedPlayer {
	ranked := make([]domain.RankedPlayer, 0, len(players))
	for _, p := range players {
		ranked = append(ranked, domain.RankedPlayer{
			PlayerID: p.ID,
			Nickname: p.Nickname,
			Score:    p.Score,
			Streak:   p.Streak,
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		if ranked[i].Streak != ranked[j].Streak {
			return ranked[i].Streak > ranked[j].Streak
		}
		return ranked[i].PlayerID < ranked[j].PlayerID
	})

	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

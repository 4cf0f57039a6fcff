package recommend

import (
	"math"

	"github.com/victornm/gamerank/internal/domain"
)

const (
	difficultyWeight = 2.0
	maxDifficultyGap = 5.0
	adjacencyBonus   = 10.0
	maxCountBonus    = 10
	averageWeight    = 2.0
)

// Scored is a candidate game with its total score and the terms it is made of.
type Scored struct {
	GameID     string
	Score      float64
	Affinity   float64
	Difficulty float64
	Adjacency  float64
	Popularity float64
}

// Score rates every catalog game except currentGameID against the profile.
// The result is in catalog order. popularity may be nil, in which case no
// popularity bonus is applied.
func Score(p domain.UserProfile, currentGameID string, c *domain.Catalog, popularity map[string]domain.Popularity) []Scored {
	var adjacent map[string]struct{}
	if current, ok := c.Get(currentGameID); ok {
		adjacent = make(map[string]struct{}, len(current.Adjacent))
		for _, id := range current.Adjacent {
			adjacent[id] = struct{}{}
		}
	}

	games := c.Games()
	out := make([]Scored, 0, len(games))

	for _, g := range games {
		if g.ID == currentGameID {
			continue
		}

		s := Scored{GameID: g.ID}

		for _, cat := range g.Categories {
			s.Affinity += p.CategoryWeight[cat]
		}

		gap := math.Abs(float64(g.Difficulty) - p.DifficultyPreference)
		s.Difficulty = clamp((maxDifficultyGap-gap)*difficultyWeight, 0, maxDifficultyGap*difficultyWeight)

		if _, ok := adjacent[g.ID]; ok {
			s.Adjacency = adjacencyBonus
		}

		if pop, ok := popularity[g.ID]; ok && pop.RatingCount > 0 {
			s.Popularity = float64(min(pop.RatingCount, maxCountBonus)) + pop.AverageRating*averageWeight
		}

		s.Score = s.Affinity + s.Difficulty + s.Adjacency + s.Popularity
		out = append(out, s)
	}

	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Package profile derives a user's preferences from play history and ratings.
package profile

import (
	"github.com/victornm/gamerank/internal/domain"
)

const (
	// DefaultDifficulty is the preference of a user without any signal.
	DefaultDifficulty = 3.0

	// LikedStars is the minimum rating that counts as a preference signal.
	LikedStars = 4
)

// Build aggregates play history and ratings into a UserProfile.
// Ratings are expected to be upserted already, see UpsertRatings.
//
// Each play adds its duration in minutes to every category of the game, each
// liked rating adds its stars. The difficulty preference is the mean
// difficulty of the distinct games that contributed to either signal.
// Records of games missing from the catalog are only reflected in the
// played and rated id sets.
func Build(history []domain.PlayHistoryRecord, ratings []domain.RatingRecord, c *domain.Catalog) domain.UserProfile {
	p := domain.UserProfile{
		CategoryWeight:       make(map[string]float64),
		DifficultyPreference: DefaultDifficulty,
		PlayedGameIDs:        make(map[string]struct{}),
		RatedGameIDs:         make(map[string]struct{}),
	}

	contributed := make(map[string]int)

	for _, r := range history {
		p.PlayedGameIDs[r.GameID] = struct{}{}

		g, ok := c.Get(r.GameID)
		if !ok {
			continue
		}

		minutes := r.DurationSeconds / 60
		if minutes < 0 {
			minutes = 0
		}
		for _, cat := range g.Categories {
			p.CategoryWeight[cat] += minutes
		}
		contributed[g.ID] = g.Difficulty
	}

	for _, r := range ratings {
		if r.Stars < domain.MinStars || r.Stars > domain.MaxStars {
			continue
		}
		p.RatedGameIDs[r.GameID] = struct{}{}

		if r.Stars < LikedStars {
			continue
		}
		g, ok := c.Get(r.GameID)
		if !ok {
			continue
		}

		for _, cat := range g.Categories {
			p.CategoryWeight[cat] += float64(r.Stars)
		}
		contributed[g.ID] = g.Difficulty
	}

	if len(contributed) > 0 {
		var sum int
		for _, d := range contributed {
			sum += d
		}
		p.DifficultyPreference = float64(sum) / float64(len(contributed))
	}

	return p
}

// UpsertRatings collapses ratings sharing a (GameID, UserID) key, the later
// record in the sequence replaces the earlier one at the position of the first one.
func UpsertRatings(records []domain.RatingRecord) []domain.RatingRecord {
	type key struct{ game, user string }

	out := make([]domain.RatingRecord, 0, len(records))
	pos := make(map[key]int, len(records))

	for _, r := range records {
		k := key{r.GameID, r.UserID}
		if i, ok := pos[k]; ok {
			out[i] = r
			continue
		}
		pos[k] = len(out)
		out = append(out, r)
	}

	return out
}

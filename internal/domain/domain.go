package domain

import (
	"fmt"
	"time"
)

const (
	MinDifficulty = 1
	MaxDifficulty = 5

	MinStars = 1
	MaxStars = 5
)

// GameMetadata is the static description of a game in the catalog.
type GameMetadata struct {
	ID         string
	Name       string
	Categories []string
	Difficulty int
	// Adjacent lists similar games, most similar first.
	Adjacent []string
}

func (g GameMetadata) clone() GameMetadata {
	g.Categories = append([]string(nil), g.Categories...)
	g.Adjacent = append([]string(nil), g.Adjacent...)
	return g
}

// Catalog is an immutable, ordered set of games. The declaration order is
// significant: it is the tie-break for equally scored recommendations.
type Catalog struct {
	games []GameMetadata
	index map[string]int
}

// NewCatalog builds a catalog, games keep the order they are given in.
func NewCatalog(games ...GameMetadata) (*Catalog, error) {
	c := &Catalog{
		games: make([]GameMetadata, 0, len(games)),
		index: make(map[string]int, len(games)),
	}

	for _, g := range games {
		if g.ID == "" {
			return nil, fmt.Errorf("catalog: game without id")
		}
		if _, ok := c.index[g.ID]; ok {
			return nil, fmt.Errorf("catalog: duplicate game %q", g.ID)
		}
		if g.Difficulty < MinDifficulty || g.Difficulty > MaxDifficulty {
			return nil, fmt.Errorf("catalog: game %q: difficulty %d out of range [%d, %d]", g.ID, g.Difficulty, MinDifficulty, MaxDifficulty)
		}

		c.index[g.ID] = len(c.games)
		c.games = append(c.games, g.clone())
	}

	return c, nil
}

func (c *Catalog) Get(id string) (GameMetadata, bool) {
	if c == nil {
		return GameMetadata{}, false
	}
	i, ok := c.index[id]
	if !ok {
		return GameMetadata{}, false
	}
	return c.games[i].clone(), true
}

func (c *Catalog) Has(id string) bool {
	_, ok := c.Get(id)
	return ok
}

// Games returns all games in declaration order.
func (c *Catalog) Games() []GameMetadata {
	if c == nil {
		return nil
	}
	games := make([]GameMetadata, 0, len(c.games))
	for _, g := range c.games {
		games = append(games, g.clone())
	}
	return games
}

// InCategory returns ids of the games tagged with category, in declaration order.
func (c *Catalog) InCategory(category string) []string {
	if c == nil {
		return nil
	}

	var ids []string
	for _, g := range c.games {
		for _, gc := range g.Categories {
			if gc == category {
				ids = append(ids, g.ID)
				break
			}
		}
	}
	return ids
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.games)
}

// PlayHistoryRecord is one finished gameplay session.
type PlayHistoryRecord struct {
	GameID          string
	DurationSeconds float64
	Timestamp       time.Time
}

// RatingRecord is a user's star rating of a game, unique per (GameID, UserID).
type RatingRecord struct {
	GameID    string
	UserID    string
	Stars     int
	Timestamp time.Time
}

// UserProfile is derived from play history and ratings, it is never stored.
type UserProfile struct {
	CategoryWeight       map[string]float64
	DifficultyPreference float64
	PlayedGameIDs        map[string]struct{}
	RatedGameIDs         map[string]struct{}
}

// Popularity holds the rating statistics of a game.
type Popularity struct {
	RatingCount   int
	AverageRating float64
}

// ScoreEntry is a user's best score on a leaderboard.
type ScoreEntry struct {
	UserID    string
	Username  string
	Score     float64
	Timestamp time.Time
}

// Leaderboard is a scope table of a game, sorted by score in descending order
// and by timestamp in ascending order for equal scores.
type Leaderboard struct {
	GameID  string
	Scope   Scope
	Entries []ScoreEntry
}

// Rank is a user's position in a leaderboard, starting from 1.
type Rank struct {
	Rank      int
	Score     float64
	Timestamp time.Time
}

package recommend_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/gamerank/internal/domain"
	"github.com/victornm/gamerank/internal/recommend"
)

func TestScore(t *testing.T) {
	c := makeCatalog(t,
		domain.GameMetadata{ID: "a", Categories: []string{"puzzle"}, Difficulty: 2, Adjacent: []string{"c"}},
		domain.GameMetadata{ID: "b", Categories: []string{"puzzle"}, Difficulty: 4},
		domain.GameMetadata{ID: "c", Categories: []string{"action", "puzzle"}, Difficulty: 5},
	)

	tests := map[string]struct {
		profile    domain.UserProfile
		current    string
		popularity map[string]domain.Popularity
		want       []recommend.Scored
	}{
		"category affinity and difficulty proximity": {
			profile: profileOf(map[string]float64{"puzzle": 5}, 3),
			want: []recommend.Scored{
				{GameID: "a", Score: 13, Affinity: 5, Difficulty: 8},
				{GameID: "b", Score: 13, Affinity: 5, Difficulty: 8},
				{GameID: "c", Score: 11, Affinity: 5, Difficulty: 6},
			},
		},

		"current game should be skipped and its neighbours get the adjacency bonus": {
			profile: profileOf(nil, 3),
			current: "a",
			want: []recommend.Scored{
				{GameID: "b", Score: 8, Difficulty: 8},
				{GameID: "c", Score: 16, Difficulty: 6, Adjacency: 10},
			},
		},

		"difficulty term should never be negative": {
			profile: profileOf(nil, 10),
			want: []recommend.Scored{
				{GameID: "a"},
				{GameID: "b"},
				{GameID: "c"},
			},
		},

		"popularity bonus should cap the rating count": {
			profile: profileOf(nil, 3),
			popularity: map[string]domain.Popularity{
				"a": {RatingCount: 25, AverageRating: 4.5},
				"b": {RatingCount: 3, AverageRating: 2},
				"c": {RatingCount: 0, AverageRating: 5},
			},
			want: []recommend.Scored{
				{GameID: "a", Score: 27, Difficulty: 8, Popularity: 19},
				{GameID: "b", Score: 15, Difficulty: 8, Popularity: 7},
				{GameID: "c", Score: 6, Difficulty: 6},
			},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := recommend.Score(tt.profile, tt.current, c, tt.popularity)
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.Equal(t, tt.want[i].GameID, got[i].GameID)
				assert.InDelta(t, tt.want[i].Score, got[i].Score, 1e-9, "score of %s", got[i].GameID)
				assert.InDelta(t, tt.want[i].Affinity, got[i].Affinity, 1e-9, "affinity of %s", got[i].GameID)
				assert.InDelta(t, tt.want[i].Difficulty, got[i].Difficulty, 1e-9, "difficulty of %s", got[i].GameID)
				assert.InDelta(t, tt.want[i].Adjacency, got[i].Adjacency, 1e-9, "adjacency of %s", got[i].GameID)
				assert.InDelta(t, tt.want[i].Popularity, got[i].Popularity, 1e-9, "popularity of %s", got[i].GameID)
			}
		})
	}
}

func TestScore_TieKeepsCatalogOrder(t *testing.T) {
	c := makeCatalog(t,
		domain.GameMetadata{ID: "A", Categories: []string{"puzzle"}, Difficulty: 2},
		domain.GameMetadata{ID: "B", Categories: []string{"puzzle"}, Difficulty: 4},
	)

	got := recommend.Rank(recommend.Score(profileOf(map[string]float64{"puzzle": 5}, 3), "", c, nil), 2)
	assert.Equal(t, []string{"A", "B"}, got)
}

func TestScore_UnknownCurrentGame(t *testing.T) {
	c := makeCatalog(t,
		domain.GameMetadata{ID: "a", Difficulty: 3},
		domain.GameMetadata{ID: "b", Difficulty: 3},
	)

	got := recommend.Score(profileOf(nil, 3), "zzz", c, nil)
	require.Len(t, got, 2)
	for _, s := range got {
		assert.Zero(t, s.Adjacency)
	}
}

func makeCatalog(t *testing.T, games ...domain.GameMetadata) *domain.Catalog {
	t.Helper()

	c, err := domain.NewCatalog(games...)
	require.NoError(t, err)
	return c
}

func profileOf(weights map[string]float64, difficulty float64) domain.UserProfile {
	if weights == nil {
		weights = map[string]float64{}
	}
	return domain.UserProfile{
		CategoryWeight:       weights,
		DifficultyPreference: difficulty,
		PlayedGameIDs:        map[string]struct{}{},
		RatedGameIDs:         map[string]struct{}{},
	}
}

package profile_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/gamerank/internal/domain"
	"github.com/victornm/gamerank/internal/profile"
)

func TestBuild(t *testing.T) {
	c := makeCatalog(t)

	tests := map[string]struct {
		history []domain.PlayHistoryRecord
		ratings []domain.RatingRecord
		assert  func(t *testing.T, p domain.UserProfile)
	}{
		"empty inputs should give the neutral profile": {
			assert: func(t *testing.T, p domain.UserProfile) {
				assert.Empty(t, p.CategoryWeight)
				assert.Equal(t, 3.0, p.DifficultyPreference)
				assert.Empty(t, p.PlayedGameIDs)
				assert.Empty(t, p.RatedGameIDs)
			},
		},

		"play time should be added in minutes to every category of the game": {
			history: []domain.PlayHistoryRecord{
				{GameID: "a", DurationSeconds: 120},
				{GameID: "a", DurationSeconds: 60},
				{GameID: "b", DurationSeconds: 30},
			},
			assert: func(t *testing.T, p domain.UserProfile) {
				assert.InDelta(t, 3.5, p.CategoryWeight["puzzle"], 1e-9)
				assert.InDelta(t, 3.0, p.CategoryWeight["classic"], 1e-9)
				assert.InDelta(t, 3.0, p.DifficultyPreference, 1e-9, "mean of distinct games 2 and 4")
			},
		},

		"only liked ratings should add their stars": {
			ratings: []domain.RatingRecord{
				{GameID: "a", UserID: "u1", Stars: 5},
				{GameID: "b", UserID: "u1", Stars: 3},
			},
			assert: func(t *testing.T, p domain.UserProfile) {
				assert.Equal(t, 5.0, p.CategoryWeight["puzzle"])
				assert.Equal(t, 5.0, p.CategoryWeight["classic"])
				assert.Equal(t, 2.0, p.DifficultyPreference)
				assert.Len(t, p.RatedGameIDs, 2)
			},
		},

		"unknown games should only be tracked as played": {
			history: []domain.PlayHistoryRecord{
				{GameID: "ghost", DurationSeconds: 600},
			},
			assert: func(t *testing.T, p domain.UserProfile) {
				assert.Empty(t, p.CategoryWeight)
				assert.Equal(t, 3.0, p.DifficultyPreference)
				assert.Contains(t, p.PlayedGameIDs, "ghost")
			},
		},

		"negative durations should count as zero": {
			history: []domain.PlayHistoryRecord{
				{GameID: "b", DurationSeconds: -600},
			},
			assert: func(t *testing.T, p domain.UserProfile) {
				assert.Equal(t, 0.0, p.CategoryWeight["puzzle"])
				assert.Equal(t, 4.0, p.DifficultyPreference)
			},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			tt.assert(t, profile.Build(tt.history, tt.ratings, c))
		})
	}
}

func TestBuild_Idempotent(t *testing.T) {
	c := makeCatalog(t)
	history := []domain.PlayHistoryRecord{{GameID: "a", DurationSeconds: 90}}
	ratings := []domain.RatingRecord{{GameID: "b", UserID: "u1", Stars: 4}}

	require.Equal(t, profile.Build(history, ratings, c), profile.Build(history, ratings, c))
}

func TestUpsertRatings(t *testing.T) {
	now := time.Now()
	got := profile.UpsertRatings([]domain.RatingRecord{
		{GameID: "a", UserID: "u1", Stars: 2, Timestamp: now},
		{GameID: "b", UserID: "u1", Stars: 3, Timestamp: now},
		{GameID: "a", UserID: "u1", Stars: 5, Timestamp: now.Add(time.Minute)},
		{GameID: "a", UserID: "u2", Stars: 1, Timestamp: now},
	})

	require.Equal(t, []domain.RatingRecord{
		{GameID: "a", UserID: "u1", Stars: 5, Timestamp: now.Add(time.Minute)},
		{GameID: "b", UserID: "u1", Stars: 3, Timestamp: now},
		{GameID: "a", UserID: "u2", Stars: 1, Timestamp: now},
	}, got)
}

func makeCatalog(t *testing.T) *domain.Catalog {
	c, err := domain.NewCatalog(
		domain.GameMetadata{ID: "a", Categories: []string{"puzzle", "classic"}, Difficulty: 2},
		domain.GameMetadata{ID: "b", Categories: []string{"puzzle"}, Difficulty: 4},
	)
	require.NoError(t, err)
	return c
}

package recommend_test

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/gamerank/internal/catalog"
	"github.com/victornm/gamerank/internal/domain"
	"github.com/victornm/gamerank/internal/errors"
	"github.com/victornm/gamerank/internal/event"
	"github.com/victornm/gamerank/internal/recommend"
)

func TestService_Recommend(t *testing.T) {
	src := &fakeSource{
		history: map[string][]domain.PlayHistoryRecord{
			"u1": {{GameID: "sudoku", DurationSeconds: 600}},
		},
	}
	s, _, _ := makeService(t, src)

	resp, err := s.Recommend(context.Background(), recommend.RecommendRequest{UserID: "u1", CurrentGameID: "2048", Limit: 3})
	require.NoError(t, err)

	ids := gameIDs(resp)
	require.Len(t, ids, 3)
	assert.NotContains(t, ids, "2048", "current game should never be recommended")
	// sudoku has the puzzle and numbers affinity, matches the preferred difficulty and is adjacent to 2048.
	assert.Equal(t, "sudoku", ids[0])
	assert.Equal(t, "Sudoku", resp.Recommendations[0].Name)
}

func TestService_Recommend_Limit(t *testing.T) {
	s, _, _ := makeService(t, &fakeSource{})

	resp, err := s.Recommend(context.Background(), recommend.RecommendRequest{})
	require.NoError(t, err)
	assert.Len(t, resp.Recommendations, recommend.DefaultLimit)

	_, err = s.Recommend(context.Background(), recommend.RecommendRequest{Limit: -1})
	assert.True(t, errors.IsCode(err, errors.CodeInvalidArgument))

	_, err = s.Recommend(context.Background(), recommend.RecommendRequest{Limit: 51})
	assert.True(t, errors.IsCode(err, errors.CodeInvalidArgument))
}

func TestService_Recommend_Cache(t *testing.T) {
	src := &fakeSource{
		history: map[string][]domain.PlayHistoryRecord{
			"u1": {{GameID: "chess", DurationSeconds: 1200}},
		},
	}
	s, eb, _ := makeService(t, src)
	ctx := context.Background()
	req := recommend.RecommendRequest{UserID: "u1", Limit: 2}

	first, err := s.Recommend(ctx, req)
	require.NoError(t, err)

	second, err := s.Recommend(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, src.calls("u1"), "second call should be served from cache")

	src.set("u1", []domain.PlayHistoryRecord{{GameID: "2048", DurationSeconds: 6000}})
	eb.Publish(ctx, domain.EventProfileChanged{UserID: "u1"})
	eb.Stop()

	third, err := s.Recommend(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls("u1"), "profile change should invalidate the cache")
	assert.NotEqual(t, gameIDs(first), gameIDs(third))
}

func TestService_Recommend_Anonymous(t *testing.T) {
	src := &fakeSource{}
	s, _, rs := makeService(t, src)

	for i := 0; i < 2; i++ {
		_, err := s.Recommend(context.Background(), recommend.RecommendRequest{})
		require.NoError(t, err)
	}

	assert.Zero(t, src.calls(""), "anonymous users have no history to load")
	assert.Empty(t, rs.Keys(), "anonymous recommendations should not be cached")
}

func TestService_Recommend_DegradedSource(t *testing.T) {
	src := &fakeSource{err: stderrors.New("connection refused")}
	s, _, rs := makeService(t, src)

	resp, err := s.Recommend(context.Background(), recommend.RecommendRequest{UserID: "u1", CurrentGameID: "snake"})
	require.NoError(t, err, "a failing source should degrade to a cold start profile")
	assert.Len(t, resp.Recommendations, recommend.DefaultLimit)
	assert.Equal(t, []string{"tetris", "pacman"}, gameIDs(resp)[:2], "adjacent games lead a cold start")

	assert.Empty(t, rs.Keys(), "partial results should not be cached")
}

func TestService_Recommend_CacheUnavailable(t *testing.T) {
	src := &fakeSource{}
	s, _, rs := makeService(t, src)
	rs.Close()

	resp, err := s.Recommend(context.Background(), recommend.RecommendRequest{UserID: "u1"})
	require.NoError(t, err)
	assert.Len(t, resp.Recommendations, recommend.DefaultLimit)
}

func TestService_HybridRecommend(t *testing.T) {
	s, _, _ := makeService(t, &fakeSource{})

	ids, err := s.HybridRecommend(context.Background(), recommend.HybridRequest{
		RecentGameID:      "snake",
		PreferredCategory: "strategy",
		PlayedGameIDs:     []string{"snake", "breakout"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"tetris", "pacman", "tictactoe", "chess"}, ids)

	_, err = s.HybridRecommend(context.Background(), recommend.HybridRequest{Limit: 100})
	assert.True(t, errors.IsCode(err, errors.CodeInvalidArgument))
}

func makeService(t *testing.T, src recommend.Source) (*recommend.Service, *event.Bus, *miniredis.Miniredis) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:       []string{rs.Addr()},
		MaxRetries:  -1,
		DialTimeout: 100 * time.Millisecond,
	})
	t.Cleanup(func() { rc.Close() })
	require.NoError(t, rc.Ping(ctx).Err(), "should be able to ping redis")

	eb := event.NewBus()
	s := recommend.NewService(recommend.Config{
		EventBus: eb,
		Catalog:  catalog.Default(),
		Source:   src,
		Redis:    rc,
		Prefix:   "test",
		TTL:      time.Hour,
	})

	return s, eb, rs
}

type fakeSource struct {
	mu      sync.Mutex
	history map[string][]domain.PlayHistoryRecord
	ratings map[string][]domain.RatingRecord
	err     error
	count   map[string]int
}

func (f *fakeSource) PlayHistory(ctx context.Context, userID string, limit int) ([]domain.PlayHistoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.count == nil {
		f.count = make(map[string]int)
	}
	f.count[userID]++

	if f.err != nil {
		return nil, f.err
	}
	return f.history[userID], nil
}

func (f *fakeSource) Ratings(ctx context.Context, userID string) ([]domain.RatingRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	return f.ratings[userID], nil
}

func (f *fakeSource) Popularity(ctx context.Context) (map[string]domain.Popularity, error) {
	if f.err != nil {
		return nil, f.err
	}
	return nil, nil
}

func (f *fakeSource) set(userID string, history []domain.PlayHistoryRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.history == nil {
		f.history = make(map[string][]domain.PlayHistoryRecord)
	}
	f.history[userID] = history
}

func (f *fakeSource) calls(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.count[userID]
}

func gameIDs(resp *recommend.RecommendResponse) []string {
	ids := make([]string, 0, len(resp.Recommendations))
	for _, r := range resp.Recommendations {
		ids = append(ids, r.GameID)
	}
	return ids
}

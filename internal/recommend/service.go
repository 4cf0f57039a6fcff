package recommend

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/victornm/gamerank/internal/domain"
	"github.com/victornm/gamerank/internal/errors"
	"github.com/victornm/gamerank/internal/event"
	"github.com/victornm/gamerank/internal/profile"
	"github.com/victornm/gamerank/internal/telemetry"
)

const (
	defaultTTL          = 24 * time.Hour
	defaultHistoryLimit = 50
	hybridListSize      = 2
	maxLimit            = 50
)

// Source provides the signals of a user. It is usually backed by the history store.
type Source interface {
	PlayHistory(ctx context.Context, userID string, limit int) ([]domain.PlayHistoryRecord, error)
	Ratings(ctx context.Context, userID string) ([]domain.RatingRecord, error)
	Popularity(ctx context.Context) (map[string]domain.Popularity, error)
}

type Config struct {
	EventBus     *event.Bus
	Catalog      *domain.Catalog
	Source       Source
	Redis        redis.UniversalClient
	Prefix       string
	TTL          time.Duration
	HistoryLimit int
}

type Service struct {
	eb           *event.Bus
	catalog      *domain.Catalog
	source       Source
	redis        redis.UniversalClient
	prefix       string
	ttl          time.Duration
	historyLimit int
	group        singleflight.Group
}

func NewService(c Config) *Service {
	s := &Service{
		eb:           c.EventBus,
		catalog:      c.Catalog,
		source:       c.Source,
		redis:        c.Redis,
		prefix:       c.Prefix,
		ttl:          c.TTL,
		historyLimit: c.HistoryLimit,
	}
	if s.ttl <= 0 {
		s.ttl = defaultTTL
	}
	if s.historyLimit <= 0 {
		s.historyLimit = defaultHistoryLimit
	}

	s.eb.Subscribe(domain.EventNameProfileChanged, func(ctx context.Context, e event.Event) error {
		return s.Invalidate(ctx, e.(domain.EventProfileChanged).UserID)
	})

	return s
}

type RecommendRequest struct {
	UserID string
	// CurrentGameID is the game the user is looking at, it is never recommended.
	CurrentGameID string
	Limit         int
}

type Recommendation struct {
	GameID     string   `json:"game_id"`
	Name       string   `json:"name"`
	Score      float64  `json:"score"`
	Categories []string `json:"categories"`
	Difficulty int      `json:"difficulty"`
}

type RecommendResponse struct {
	Recommendations []Recommendation `json:"recommendations"`
}

// Recommend returns the best scored games for a user. Results are cached per
// user, current game and limit until the TTL expires or the user's profile changes.
func (s *Service) Recommend(ctx context.Context, req RecommendRequest) (*RecommendResponse, error) {
	if req.Limit < 0 || req.Limit > maxLimit {
		return nil, errors.InvalidArgument("limit must be between 0 and %d: limit=%d", maxLimit, req.Limit)
	}
	if req.Limit == 0 {
		req.Limit = DefaultLimit
	}

	start := time.Now()
	defer func() {
		telemetry.RecommendationDuration.WithLabelValues("scored").Observe(time.Since(start).Seconds())
	}()

	if req.UserID == "" {
		telemetry.RecommendationsTotal.WithLabelValues("scored", "bypass").Inc()
		resp, _ := s.compute(ctx, req)
		return resp, nil
	}

	key, err := s.cacheKey(ctx, req)
	if err != nil {
		slog.WarnContext(ctx, "recommend: read cache version failed", "user_id", req.UserID, "error", err)
		telemetry.RecommendationsTotal.WithLabelValues("scored", "bypass").Inc()
		resp, _ := s.compute(ctx, req)
		return resp, nil
	}

	if resp, ok := s.cached(ctx, key); ok {
		telemetry.RecommendationsTotal.WithLabelValues("scored", "hit").Inc()
		return resp, nil
	}
	telemetry.RecommendationsTotal.WithLabelValues("scored", "miss").Inc()

	v, _, _ := s.group.Do(key, func() (any, error) {
		resp, complete := s.compute(ctx, req)
		if complete {
			s.store(ctx, key, resp)
		}
		return resp, nil
	})

	return v.(*RecommendResponse), nil
}

// compute scores the catalog for the user. It reports whether all signals
// were loaded, a partial result is still returned but should not be cached.
func (s *Service) compute(ctx context.Context, req RecommendRequest) (*RecommendResponse, bool) {
	var (
		history    []domain.PlayHistoryRecord
		ratings    []domain.RatingRecord
		popularity map[string]domain.Popularity
		complete   = true
		err        error
	)

	if req.UserID != "" {
		history, err = s.source.PlayHistory(ctx, req.UserID, s.historyLimit)
		if err != nil {
			slog.WarnContext(ctx, "recommend: load play history failed", "user_id", req.UserID, "error", err)
			history, complete = nil, false
		}

		ratings, err = s.source.Ratings(ctx, req.UserID)
		if err != nil {
			slog.WarnContext(ctx, "recommend: load ratings failed", "user_id", req.UserID, "error", err)
			ratings, complete = nil, false
		}
	}

	popularity, err = s.source.Popularity(ctx)
	if err != nil {
		slog.WarnContext(ctx, "recommend: load popularity failed", "error", err)
		popularity, complete = nil, false
	}

	p := profile.Build(history, profile.UpsertRatings(ratings), s.catalog)
	scored := Score(p, req.CurrentGameID, s.catalog, popularity)

	byID := make(map[string]Scored, len(scored))
	for _, sc := range scored {
		byID[sc.GameID] = sc
	}

	ids := Rank(scored, req.Limit)
	resp := &RecommendResponse{Recommendations: make([]Recommendation, 0, len(ids))}
	for _, id := range ids {
		g, _ := s.catalog.Get(id)
		resp.Recommendations = append(resp.Recommendations, Recommendation{
			GameID:     g.ID,
			Name:       g.Name,
			Score:      byID[id].Score,
			Categories: g.Categories,
			Difficulty: g.Difficulty,
		})
	}

	return resp, complete
}

type HybridRequest struct {
	RecentGameID      string
	PreferredCategory string
	PlayedGameIDs     []string
	Limit             int
}

// HybridRecommend merges content based, category based and collaborative
// candidates, two of each, without scoring them.
func (s *Service) HybridRecommend(ctx context.Context, req HybridRequest) ([]string, error) {
	if req.Limit < 0 || req.Limit > maxLimit {
		return nil, errors.InvalidArgument("limit must be between 0 and %d: limit=%d", maxLimit, req.Limit)
	}

	start := time.Now()
	defer func() {
		telemetry.RecommendationDuration.WithLabelValues("hybrid").Observe(time.Since(start).Seconds())
	}()
	telemetry.RecommendationsTotal.WithLabelValues("hybrid", "bypass").Inc()

	c := Candidates{Played: req.PlayedGameIDs}
	if req.RecentGameID != "" {
		c.Content = ContentCandidates(s.catalog, req.RecentGameID, hybridListSize)
	}
	if req.PreferredCategory != "" {
		c.Category = CategoryCandidates(s.catalog, req.PreferredCategory, req.PlayedGameIDs, hybridListSize)
	}
	c.Collaborative = CollaborativeCandidates(s.catalog, req.PlayedGameIDs, hybridListSize)

	ids := Hybrid(c, req.Limit)
	slog.DebugContext(ctx, "recommend: hybrid recommendations", "recent_game_id", req.RecentGameID, "count", len(ids))
	return ids, nil
}

// Invalidate drops all cached recommendations of a user.
func (s *Service) Invalidate(ctx context.Context, userID string) error {
	if err := s.redis.Incr(ctx, s.getVersionKey(userID)).Err(); err != nil {
		return fmt.Errorf("invalidate recommendations: user=%s: %w", userID, err)
	}
	return nil
}

func (s *Service) cacheKey(ctx context.Context, req RecommendRequest) (string, error) {
	v, err := s.redis.Get(ctx, s.getVersionKey(req.UserID)).Result()
	if stderrors.Is(err, redis.Nil) {
		v, err = "0", nil
	}
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s:recommendations:%s:%s:%s:%s", s.prefix, req.UserID, v, req.CurrentGameID, strconv.Itoa(req.Limit)), nil
}

func (s *Service) cached(ctx context.Context, key string) (*RecommendResponse, bool) {
	b, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !stderrors.Is(err, redis.Nil) {
			slog.WarnContext(ctx, "recommend: read cache failed", "key", key, "error", err)
		}
		return nil, false
	}

	var resp RecommendResponse
	if err := json.Unmarshal(b, &resp); err != nil {
		slog.WarnContext(ctx, "recommend: decode cached recommendations failed", "key", key, "error", err)
		return nil, false
	}
	return &resp, true
}

func (s *Service) store(ctx context.Context, key string, resp *RecommendResponse) {
	b, err := json.Marshal(resp)
	if err != nil {
		slog.WarnContext(ctx, "recommend: encode recommendations failed", "error", err)
		return
	}

	if err := s.redis.Set(ctx, key, b, s.ttl).Err(); err != nil {
		slog.WarnContext(ctx, "recommend: write cache failed", "key", key, "error", err)
	}
}

func (s *Service) getVersionKey(userID string) string {
	return fmt.Sprintf("%s:recommendations:%s:version", s.prefix, userID)
}

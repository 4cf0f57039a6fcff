package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"

	"github.com/victornm/gamerank/internal/domain"
	"github.com/victornm/gamerank/internal/event"
	"github.com/victornm/gamerank/internal/history"
	"github.com/victornm/gamerank/internal/leaderboard"
	"github.com/victornm/gamerank/internal/recommend"
)

type Config struct {
	GRPC         *grpc.Server
	HTTP         gin.IRouter
	EventBus     *event.Bus
	Leaderboard  *leaderboard.Service
	Recommend    *recommend.Service
	History      History
	Redis        Redis
	PubsubPrefix string
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// History records the signals recommendations are built from.
type History interface {
	RecordPlay(ctx context.Context, req history.RecordPlayRequest) error
	RateGame(ctx context.Context, req history.RateGameRequest) error
}

type API struct {
	ls *leaderboard.Service
	rs *recommend.Service
	hs History

	redis  Redis
	prefix string
}

func New(c Config) *API {
	a := &API{
		ls:     c.Leaderboard,
		rs:     c.Recommend,
		hs:     c.History,
		redis:  c.Redis,
		prefix: c.PubsubPrefix,
	}

	// gRPC APIs
	if c.GRPC != nil {
		c.GRPC.RegisterService(&rankingServiceDesc, a)
	}

	// HTTP APIs
	if c.HTTP != nil {
		a.registerRoutes(c.HTTP)
	}

	// Register event handlers
	c.EventBus.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
		return a.PublishLeaderboardUpdated(ctx, e.(domain.EventLeaderboardUpdated))
	})

	return a
}

type (
	ScoreEntry struct {
		UserID    string    `json:"user_id"`
		Username  string    `json:"username"`
		Score     float64   `json:"score"`
		Timestamp time.Time `json:"timestamp"`
	}

	Leaderboard struct {
		GameID  string       `json:"game_id"`
		Scope   string       `json:"scope"`
		Entries []ScoreEntry `json:"entries"`
	}

	SubmitScoreRequest struct {
		GameID    string   `json:"game_id"`
		Scope     string   `json:"scope,omitempty"`
		UserID    string   `json:"user_id"`
		Username  string   `json:"username"`
		Score     float64  `json:"score"`
		FriendIDs []string `json:"friend_ids,omitempty"`
	}

	// SubmitScoreResponse holds Leaderboard when a scope was given, the
	// three scope tables otherwise.
	SubmitScoreResponse struct {
		Leaderboard *Leaderboard `json:"leaderboard,omitempty"`
		Global      *Leaderboard `json:"global,omitempty"`
		Weekly      *Leaderboard `json:"weekly,omitempty"`
		Friends     *Leaderboard `json:"friends,omitempty"`
	}

	GetLeaderboardRequest struct {
		GameID    string   `json:"game_id"`
		Scope     string   `json:"scope"`
		UserID    string   `json:"user_id"`
		FriendIDs []string `json:"friend_ids,omitempty"`
	}

	GetRankRequest struct {
		GameID    string   `json:"game_id"`
		Scope     string   `json:"scope"`
		UserID    string   `json:"user_id"`
		FriendIDs []string `json:"friend_ids,omitempty"`
	}

	GetRankResponse struct {
		Found     bool       `json:"found"`
		Rank      int        `json:"rank,omitempty"`
		Score     float64    `json:"score,omitempty"`
		Timestamp *time.Time `json:"timestamp,omitempty"`
	}

	RecommendRequest struct {
		UserID        string `json:"user_id"`
		CurrentGameID string `json:"current_game_id"`
		Limit         int    `json:"limit"`
	}

	RecommendResponse = recommend.RecommendResponse
)

func toLeaderboard(l *domain.Leaderboard) *Leaderboard {
	out := &Leaderboard{
		GameID:  l.GameID,
		Scope:   string(l.Scope),
		Entries: make([]ScoreEntry, 0, len(l.Entries)),
	}

	for _, e := range l.Entries {
		out.Entries = append(out.Entries, ScoreEntry{
			UserID:    e.UserID,
			Username:  e.Username,
			Score:     e.Score,
			Timestamp: e.Timestamp,
		})
	}

	return out
}

func toRankResponse(r *leaderboard.GetRankResponse) *GetRankResponse {
	if !r.Found {
		return &GetRankResponse{}
	}

	ts := r.Rank.Timestamp
	return &GetRankResponse{
		Found:     true,
		Rank:      r.Rank.Rank,
		Score:     r.Rank.Score,
		Timestamp: &ts,
	}
}

// submitScore records a score on one scope, or on every scope when none is given.
func (a *API) submitScore(ctx context.Context, req SubmitScoreRequest) (*SubmitScoreResponse, error) {
	entry := domain.ScoreEntry{
		UserID:   req.UserID,
		Username: req.Username,
		Score:    req.Score,
	}

	if req.Scope == "" {
		resp, err := a.ls.Submit(ctx, leaderboard.SubmitRequest{
			GameID:    req.GameID,
			Entry:     entry,
			FriendIDs: req.FriendIDs,
		})
		if err != nil {
			return nil, err
		}

		return &SubmitScoreResponse{
			Global:  toLeaderboard(resp.Global),
			Weekly:  toLeaderboard(resp.Weekly),
			Friends: toLeaderboard(resp.Friends),
		}, nil
	}

	scope, err := domain.ParseScope(req.Scope)
	if err != nil {
		return nil, err
	}

	l, err := a.ls.SubmitScore(ctx, leaderboard.SubmitScoreRequest{
		GameID:    req.GameID,
		Scope:     scope,
		Entry:     entry,
		FriendIDs: req.FriendIDs,
	})
	if err != nil {
		return nil, err
	}

	return &SubmitScoreResponse{Leaderboard: toLeaderboard(l)}, nil
}

func (a *API) getLeaderboard(ctx context.Context, req GetLeaderboardRequest) (*Leaderboard, error) {
	scope, err := domain.ParseScope(req.Scope)
	if err != nil {
		return nil, err
	}

	l, err := a.ls.GetLeaderboard(ctx, leaderboard.GetLeaderboardRequest{
		GameID:    req.GameID,
		Scope:     scope,
		UserID:    req.UserID,
		FriendIDs: req.FriendIDs,
	})
	if err != nil {
		return nil, err
	}

	return toLeaderboard(l), nil
}

func (a *API) getRank(ctx context.Context, req GetRankRequest) (*GetRankResponse, error) {
	scope, err := domain.ParseScope(req.Scope)
	if err != nil {
		return nil, err
	}

	r, err := a.ls.GetRank(ctx, leaderboard.GetRankRequest{
		GameID:    req.GameID,
		Scope:     scope,
		UserID:    req.UserID,
		FriendIDs: req.FriendIDs,
	})
	if err != nil {
		return nil, err
	}

	return toRankResponse(r), nil
}

func (a *API) recommend(ctx context.Context, req RecommendRequest) (*RecommendResponse, error) {
	return a.rs.Recommend(ctx, recommend.RecommendRequest{
		UserID:        req.UserID,
		CurrentGameID: req.CurrentGameID,
		Limit:         req.Limit,
	})
}

package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/victornm/gamerank/internal/errors"
	"github.com/victornm/gamerank/internal/history"
	"github.com/victornm/gamerank/internal/recommend"
)

const headerRequestID = "X-Request-ID"

type ErrorEnvelope struct {
	Error *errors.Error `json:"error"`
}

func (a *API) registerRoutes(r gin.IRouter) {
	v1 := r.Group("/v1", requestID())

	v1.GET("/recommendations", a.handleRecommend)
	v1.POST("/recommendations/hybrid", a.handleHybridRecommend)

	v1.POST("/games/:game/scores", a.handleSubmitScore)
	v1.GET("/games/:game/leaderboards/:scope", a.handleGetLeaderboard)
	v1.GET("/games/:game/leaderboards/:scope/ranks/:user", a.handleGetRank)

	v1.POST("/users/:user/plays", a.handleRecordPlay)
	v1.PUT("/games/:game/ratings/:user", a.handleRateGame)
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(headerRequestID, id)
		c.Next()
	}
}

func (a *API) handleRecommend(c *gin.Context) {
	var q struct {
		UserID        string `form:"user_id"`
		CurrentGameID string `form:"current_game_id"`
		Limit         int    `form:"limit"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("invalid query: %v", err)))
		return
	}

	resp, err := a.recommend(c.Request.Context(), RecommendRequest(q))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

type hybridBody struct {
	RecentGameID      string   `json:"recent_game_id"`
	PreferredCategory string   `json:"preferred_category"`
	PlayedGameIDs     []string `json:"played_game_ids"`
	Limit             int      `json:"limit"`
}

func (a *API) handleHybridRecommend(c *gin.Context) {
	var body hybridBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("invalid body: %v", err)))
		return
	}

	ids, err := a.rs.HybridRecommend(c.Request.Context(), recommend.HybridRequest(body))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"game_ids": ids})
}

func (a *API) handleSubmitScore(c *gin.Context) {
	var req SubmitScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("invalid body: %v", err)))
		return
	}
	req.GameID = c.Param("game")

	resp, err := a.submitScore(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a *API) handleGetLeaderboard(c *gin.Context) {
	l, err := a.getLeaderboard(c.Request.Context(), GetLeaderboardRequest{
		GameID:    c.Param("game"),
		Scope:     c.Param("scope"),
		UserID:    c.Query("user_id"),
		FriendIDs: friendIDs(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, l)
}

func (a *API) handleGetRank(c *gin.Context) {
	resp, err := a.getRank(c.Request.Context(), GetRankRequest{
		GameID:    c.Param("game"),
		Scope:     c.Param("scope"),
		UserID:    c.Param("user"),
		FriendIDs: friendIDs(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a *API) handleRecordPlay(c *gin.Context) {
	var body struct {
		GameID          string  `json:"game_id"`
		DurationSeconds float64 `json:"duration_seconds"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("invalid body: %v", err)))
		return
	}

	err := a.hs.RecordPlay(c.Request.Context(), history.RecordPlayRequest{
		UserID:          c.Param("user"),
		GameID:          body.GameID,
		DurationSeconds: body.DurationSeconds,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (a *API) handleRateGame(c *gin.Context) {
	var body struct {
		Stars int `json:"stars"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("invalid body: %v", err)))
		return
	}

	err := a.hs.RateGame(c.Request.Context(), history.RateGameRequest{
		UserID: c.Param("user"),
		GameID: c.Param("game"),
		Stars:  body.Stars,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// friendIDs accepts both repeated and comma separated friend_ids.
func friendIDs(c *gin.Context) []string {
	var ids []string
	for _, v := range c.QueryArray("friend_ids") {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

func respondError(c *gin.Context, err error) {
	e := errors.Convert(err)
	if e.Code == errors.CodeInternal {
		slog.ErrorContext(c.Request.Context(), "api: request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"request_id", c.Writer.Header().Get(headerRequestID),
			"error", err,
		)
	}

	c.AbortWithStatusJSON(e.HTTPStatusCode(), ErrorEnvelope{Error: e})
}

// Package history stores the signals recommendations are built from: plays,
// ratings and the log of score submissions.
package history

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/victornm/gamerank/internal/domain"
	"github.com/victornm/gamerank/internal/errors"
	"github.com/victornm/gamerank/internal/event"
)

// MaxPlays is the number of most recent plays kept per user.
const MaxPlays = 50

type Config struct {
	EventBus *event.Bus
	DB       *pgxpool.Pool
	// Catalog restricts plays and ratings to known games when set.
	Catalog *domain.Catalog
	NowFunc func() time.Time
}

type Service struct {
	eb      *event.Bus
	db      *pgxpool.Pool
	catalog *domain.Catalog
	now     func() time.Time
}

func NewService(c Config) *Service {
	s := &Service{
		eb:      c.EventBus,
		db:      c.DB,
		catalog: c.Catalog,
		now:     c.NowFunc,
	}
	if s.now == nil {
		s.now = time.Now
	}

	s.eb.Subscribe(domain.EventNameScoreSubmitted, func(ctx context.Context, e event.Event) error {
		return s.RecordSubmission(ctx, e.(domain.EventScoreSubmitted))
	})

	return s
}

// Migrate creates the tables of the store if they do not exist.
func (s *Service) Migrate(ctx context.Context) error {
	const stmt = `
CREATE TABLE IF NOT EXISTS plays (
	play_id          UUID PRIMARY KEY,
	user_id          TEXT NOT NULL,
	game_id          TEXT NOT NULL,
	duration_seconds DOUBLE PRECISION NOT NULL,
	play_time        TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS plays_user_id_play_time_idx ON plays (user_id, play_time DESC);

CREATE TABLE IF NOT EXISTS ratings (
	game_id   TEXT NOT NULL,
	user_id   TEXT NOT NULL,
	stars     SMALLINT NOT NULL CHECK (stars BETWEEN 1 AND 5),
	rate_time TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (game_id, user_id)
);

CREATE TABLE IF NOT EXISTS score_submissions (
	submission_id UUID PRIMARY KEY,
	game_id       TEXT NOT NULL,
	scope         TEXT NOT NULL,
	user_id       TEXT NOT NULL,
	username      TEXT NOT NULL,
	score         DOUBLE PRECISION NOT NULL,
	improved      BOOLEAN NOT NULL,
	submit_time   TIMESTAMPTZ NOT NULL
);`

	if _, err := s.db.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("history: migrate: %w", err)
	}
	return nil
}

type RecordPlayRequest struct {
	UserID          string
	GameID          string
	DurationSeconds float64
	// PlayTime defaults to now.
	PlayTime time.Time
}

// RecordPlay appends a finished play to the user's history, keeping only the
// MaxPlays most recent ones.
func (s *Service) RecordPlay(ctx context.Context, req RecordPlayRequest) error {
	if err := s.validate(req.UserID, req.GameID); err != nil {
		return err
	}
	if math.IsNaN(req.DurationSeconds) || math.IsInf(req.DurationSeconds, 0) {
		return errors.InvalidArgument("duration must be a finite number: duration=%v", req.DurationSeconds)
	}
	if req.PlayTime.IsZero() {
		req.PlayTime = s.now()
	}

	if err := s.insertPlay(ctx, req); err != nil {
		return fmt.Errorf("record play: user=%s, game=%s: %w", req.UserID, req.GameID, err)
	}

	s.eb.Publish(ctx, domain.EventProfileChanged{UserID: req.UserID})
	return nil
}

func (s *Service) insertPlay(ctx context.Context, req RecordPlayRequest) (err error) {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate play ID: %w", err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = stderrors.Join(err, tx.Rollback(ctx))
		}
	}()

	const (
		insPlayStmt = `INSERT INTO plays (play_id, user_id, game_id, duration_seconds, play_time) VALUES ($1, $2, $3, $4, $5);`
		trimStmt    = `
DELETE FROM plays
WHERE user_id = $1 AND play_id NOT IN (
	SELECT play_id FROM plays WHERE user_id = $1 ORDER BY play_time DESC, play_id DESC LIMIT $2
);`
	)

	if _, err = tx.Exec(ctx, insPlayStmt, id, req.UserID, req.GameID, req.DurationSeconds, req.PlayTime); err != nil {
		return fmt.Errorf("insert play: %w", err)
	}

	if _, err = tx.Exec(ctx, trimStmt, req.UserID, MaxPlays); err != nil {
		return fmt.Errorf("trim plays: %w", err)
	}

	return tx.Commit(ctx)
}

type RateGameRequest struct {
	UserID string
	GameID string
	Stars  int
	// RateTime defaults to now.
	RateTime time.Time
}

// RateGame stores a user's rating of a game, replacing a previous one.
func (s *Service) RateGame(ctx context.Context, req RateGameRequest) error {
	if err := s.validate(req.UserID, req.GameID); err != nil {
		return err
	}
	if req.Stars < domain.MinStars || req.Stars > domain.MaxStars {
		return errors.InvalidArgument("stars must be between 1 and 5: stars=%d", req.Stars)
	}
	if req.RateTime.IsZero() {
		req.RateTime = s.now()
	}

	const stmt = `
INSERT INTO ratings (game_id, user_id, stars, rate_time)
VALUES ($1, $2, $3, $4)
ON CONFLICT (game_id, user_id) DO UPDATE SET stars = EXCLUDED.stars, rate_time = EXCLUDED.rate_time;`

	if _, err := s.db.Exec(ctx, stmt, req.GameID, req.UserID, req.Stars, req.RateTime); err != nil {
		return fmt.Errorf("rate game: user=%s, game=%s: %w", req.UserID, req.GameID, err)
	}

	s.eb.Publish(ctx, domain.EventProfileChanged{UserID: req.UserID})
	return nil
}

func (s *Service) validate(userID, gameID string) error {
	if userID == "" {
		return errors.InvalidArgument("user id is required")
	}
	if gameID == "" {
		return errors.InvalidArgument("game id is required")
	}
	if s.catalog != nil && !s.catalog.Has(gameID) {
		return errors.NotFound("game not found: game=%s", gameID)
	}
	return nil
}

// PlayHistory returns the most recent plays of a user, newest first.
func (s *Service) PlayHistory(ctx context.Context, userID string, limit int) ([]domain.PlayHistoryRecord, error) {
	if limit <= 0 || limit > MaxPlays {
		limit = MaxPlays
	}

	const stmt = `
SELECT game_id, duration_seconds, play_time
FROM plays
WHERE user_id = $1
ORDER BY play_time DESC, play_id DESC
LIMIT $2;`

	rows, err := s.db.Query(ctx, stmt, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("play history: user=%s: %w", userID, err)
	}

	records, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.PlayHistoryRecord, error) {
		var p domain.PlayHistoryRecord
		err := r.Scan(&p.GameID, &p.DurationSeconds, &p.Timestamp)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("play history: user=%s: %w", userID, err)
	}

	return records, nil
}

// Ratings returns every rating of a user, oldest first.
func (s *Service) Ratings(ctx context.Context, userID string) ([]domain.RatingRecord, error) {
	const stmt = `
SELECT game_id, user_id, stars, rate_time
FROM ratings
WHERE user_id = $1
ORDER BY rate_time ASC;`

	rows, err := s.db.Query(ctx, stmt, userID)
	if err != nil {
		return nil, fmt.Errorf("ratings: user=%s: %w", userID, err)
	}

	records, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.RatingRecord, error) {
		var (
			rr    domain.RatingRecord
			stars int16
		)
		err := r.Scan(&rr.GameID, &rr.UserID, &stars, &rr.Timestamp)
		rr.Stars = int(stars)
		return rr, err
	})
	if err != nil {
		return nil, fmt.Errorf("ratings: user=%s: %w", userID, err)
	}

	return records, nil
}

// Popularity returns the rating count and average of every rated game.
func (s *Service) Popularity(ctx context.Context) (map[string]domain.Popularity, error) {
	const stmt = `SELECT game_id, COUNT(*), SUM(stars) FROM ratings GROUP BY game_id;`

	rows, err := s.db.Query(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("popularity: %w", err)
	}

	type stat struct {
		gameID string
		count  int64
		sum    int64
	}

	stats, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (stat, error) {
		var st stat
		err := r.Scan(&st.gameID, &st.count, &st.sum)
		return st, err
	})
	if err != nil {
		return nil, fmt.Errorf("popularity: %w", err)
	}

	out := make(map[string]domain.Popularity, len(stats))
	for _, st := range stats {
		out[st.gameID] = domain.Popularity{
			RatingCount:   int(st.count),
			AverageRating: Average(st.sum, st.count),
		}
	}
	return out, nil
}

// Average is sum/count rounded half away from zero to one decimal.
func Average(sum, count int64) float64 {
	if count <= 0 {
		return 0
	}
	return decimal.NewFromInt(sum).Div(decimal.NewFromInt(count)).Round(1).InexactFloat64()
}

// RecordSubmission appends a score submission to the analytics log.
func (s *Service) RecordSubmission(ctx context.Context, e domain.EventScoreSubmitted) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate submission ID: %w", err)
	}

	const stmt = `
INSERT INTO score_submissions (submission_id, game_id, scope, user_id, username, score, improved, submit_time)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);`

	_, err = s.db.Exec(ctx, stmt, id, e.GameID, string(e.Scope), e.Entry.UserID, e.Entry.Username, e.Entry.Score, e.Improved, e.Entry.Timestamp)
	if err != nil {
		return fmt.Errorf("record submission: game=%s, user=%s: %w", e.GameID, e.Entry.UserID, err)
	}

	slog.DebugContext(ctx, "history: submission recorded", "submission_id", id, "game_id", e.GameID, "scope", e.Scope, "improved", e.Improved)
	return nil
}

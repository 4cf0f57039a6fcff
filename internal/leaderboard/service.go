package leaderboard

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/gamerank/internal/domain"
	"github.com/victornm/gamerank/internal/errors"
	"github.com/victornm/gamerank/internal/event"
	"github.com/victornm/gamerank/internal/telemetry"
)

const (
	publishInterval = 200 * time.Millisecond
	maxTxRetries    = 10
)

type Config struct {
	EventBus *event.Bus
	Redis    redis.UniversalClient
	Prefix   string
	// Catalog restricts submissions to known games when set.
	Catalog *domain.Catalog
	NowFunc func() time.Time
}

type Service struct {
	eb      *event.Bus
	redis   redis.UniversalClient
	prefix  string
	catalog *domain.Catalog
	now     func() time.Time
	locks   *keyLock
}

func NewService(c Config) *Service {
	s := &Service{
		eb:      c.EventBus,
		redis:   c.Redis,
		prefix:  c.Prefix,
		catalog: c.Catalog,
		now:     c.NowFunc,
		locks:   newKeyLock(),
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

type SubmitScoreRequest struct {
	GameID string
	Scope  domain.Scope
	Entry  domain.ScoreEntry
	// FriendIDs of the submitting user, only used by the friends scope.
	FriendIDs []string
}

// SubmitScore merges a score into one scope of a game and returns the
// resulting table as seen by the submitting user. The friends scope is a view
// over the global table, submitting to it updates the global table.
func (s *Service) SubmitScore(ctx context.Context, req SubmitScoreRequest) (*domain.Leaderboard, error) {
	if !req.Scope.Valid() {
		return nil, errors.InvalidArgument("unknown leaderboard scope: %q", req.Scope)
	}

	stored := req.Scope
	if stored == domain.ScopeFriends {
		stored = domain.ScopeGlobal
	}

	e, err := s.prepare(req.GameID, req.Entry, req.Scope)
	if err != nil {
		return nil, err
	}

	tables, err := s.submit(ctx, req.GameID, e, stored)
	if err != nil {
		return nil, err
	}

	return s.view(req.GameID, req.Scope, tables[stored], e.UserID, req.FriendIDs), nil
}

type SubmitRequest struct {
	GameID    string
	Entry     domain.ScoreEntry
	FriendIDs []string
}

type SubmitResponse struct {
	Global  *domain.Leaderboard
	Weekly  *domain.Leaderboard
	Friends *domain.Leaderboard
}

// Submit records a finished game's score on every scope of the game at once.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*SubmitResponse, error) {
	e, err := s.prepare(req.GameID, req.Entry, domain.ScopeGlobal, domain.ScopeWeekly)
	if err != nil {
		return nil, err
	}

	tables, err := s.submit(ctx, req.GameID, e, domain.ScopeGlobal, domain.ScopeWeekly)
	if err != nil {
		return nil, err
	}

	return &SubmitResponse{
		Global:  s.view(req.GameID, domain.ScopeGlobal, tables[domain.ScopeGlobal], e.UserID, nil),
		Weekly:  s.view(req.GameID, domain.ScopeWeekly, tables[domain.ScopeWeekly], e.UserID, nil),
		Friends: s.view(req.GameID, domain.ScopeFriends, tables[domain.ScopeGlobal], e.UserID, req.FriendIDs),
	}, nil
}

func (s *Service) prepare(gameID string, e domain.ScoreEntry, scopes ...domain.Scope) (domain.ScoreEntry, error) {
	if gameID == "" {
		return e, errors.InvalidArgument("game id is required")
	}
	if s.catalog != nil && !s.catalog.Has(gameID) {
		return e, errors.NotFound("game not found: game=%s", gameID)
	}

	if e.Timestamp.IsZero() {
		e.Timestamp = s.now()
	}

	if err := Validate(e); err != nil {
		for _, sc := range scopes {
			telemetry.ScoreSubmissionsTotal.WithLabelValues(string(sc), telemetry.OutcomeRejected).Inc()
		}
		return e, err
	}

	return e, nil
}

// submit applies e to the stored scopes in a single transaction.
func (s *Service) submit(ctx context.Context, gameID string, e domain.ScoreEntry, scopes ...domain.Scope) (map[domain.Scope][]domain.ScoreEntry, error) {
	tables, improved, err := s.update(ctx, gameID, e, scopes...)
	if err != nil {
		return nil, err
	}

	for _, sc := range scopes {
		outcome := telemetry.OutcomeIgnored
		if improved[sc] {
			outcome = telemetry.OutcomeImproved
		}
		telemetry.ScoreSubmissionsTotal.WithLabelValues(string(sc), outcome).Inc()

		s.eb.Publish(ctx, domain.EventScoreSubmitted{
			GameID:   gameID,
			Scope:    sc,
			Entry:    e,
			Improved: improved[sc],
		})

		if !improved[sc] {
			continue
		}

		// The score is already stored, a failed notification must not fail the submission.
		if err := s.schedulePublishLeaderboard(ctx, gameID, sc, e.Timestamp); err != nil {
			slog.ErrorContext(ctx, "leaderboard: schedule publish failed", "game_id", gameID, "scope", sc, "error", err)
		}
	}

	return tables, nil
}

// update runs the read-merge-write of the scope tables atomically. Writers of
// the same tables are serialized locally and guarded by WATCH across instances.
func (s *Service) update(ctx context.Context, gameID string, e domain.ScoreEntry, scopes ...domain.Scope) (map[domain.Scope][]domain.ScoreEntry, map[domain.Scope]bool, error) {
	keys := make([]string, 0, len(scopes))
	for _, sc := range scopes {
		keys = append(keys, s.getLeaderboardKey(gameID, sc))
	}

	unlock := s.locks.Lock(keys...)
	defer unlock()

	var (
		tables   map[domain.Scope][]domain.ScoreEntry
		improved map[domain.Scope]bool
	)

	txf := func(tx *redis.Tx) error {
		tables = make(map[domain.Scope][]domain.ScoreEntry, len(scopes))
		improved = make(map[domain.Scope]bool, len(scopes))
		writes := make(map[string][]byte, len(scopes))

		for i, sc := range scopes {
			table, err := s.load(ctx, tx, keys[i])
			if err != nil {
				return err
			}

			out, ok := Merge(table, e, s.window(sc))
			tables[sc], improved[sc] = out, ok
			if !ok {
				continue
			}

			b, err := encode(out)
			if err != nil {
				return err
			}
			writes[keys[i]] = b
		}

		if len(writes) == 0 {
			return nil
		}

		_, err := tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			for k, b := range writes {
				p.Set(ctx, k, b, 0)
			}
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.redis.Watch(ctx, txf, keys...)
		if stderrors.Is(err, redis.TxFailedErr) {
			slog.DebugContext(ctx, "leaderboard: transaction conflict, retrying", "game_id", gameID, "attempt", i+1)
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("update leaderboard: game=%s: %w", gameID, err)
		}
		return tables, improved, nil
	}

	return nil, nil, errors.New(errors.CodeUnavailable,
		errors.WithMessagef("leaderboard is busy, try again: game=%s", gameID),
		errors.WithCause(redis.TxFailedErr),
	)
}

type GetLeaderboardRequest struct {
	GameID    string
	Scope     domain.Scope
	UserID    string
	FriendIDs []string
}

// GetLeaderboard returns a scope table of a game. Weekly entries older than
// a week are hidden, the friends table is derived from the global one.
func (s *Service) GetLeaderboard(ctx context.Context, req GetLeaderboardRequest) (*domain.Leaderboard, error) {
	if !req.Scope.Valid() {
		return nil, errors.InvalidArgument("unknown leaderboard scope: %q", req.Scope)
	}

	stored := req.Scope
	if stored == domain.ScopeFriends {
		stored = domain.ScopeGlobal
	}

	table, err := s.load(ctx, s.redis, s.getLeaderboardKey(req.GameID, stored))
	if err != nil {
		return nil, fmt.Errorf("get leaderboard: game=%s, scope=%s: %w", req.GameID, req.Scope, err)
	}

	return s.view(req.GameID, req.Scope, table, req.UserID, req.FriendIDs), nil
}

type GetRankRequest struct {
	GameID    string
	Scope     domain.Scope
	UserID    string
	FriendIDs []string
}

type GetRankResponse struct {
	// Found is false when the user has no visible entry in the scope.
	Found bool
	Rank  domain.Rank
}

// GetRank returns the position of a user in a scope of a game.
func (s *Service) GetRank(ctx context.Context, req GetRankRequest) (*GetRankResponse, error) {
	l, err := s.GetLeaderboard(ctx, GetLeaderboardRequest(req))
	if err != nil {
		return nil, err
	}

	r, ok := Lookup(l.Entries, req.UserID)
	return &GetRankResponse{Found: ok, Rank: r}, nil
}

func (s *Service) view(gameID string, scope domain.Scope, table []domain.ScoreEntry, userID string, friendIDs []string) *domain.Leaderboard {
	switch scope {
	case domain.ScopeWeekly:
		table = Visible(table, s.window(scope))
	case domain.ScopeFriends:
		table = Friends(table, userID, friendIDs)
	default:
		table = append([]domain.ScoreEntry{}, table...)
	}

	return &domain.Leaderboard{
		GameID:  gameID,
		Scope:   scope,
		Entries: table,
	}
}

func (s *Service) window(scope domain.Scope) Window {
	if scope == domain.ScopeWeekly {
		return WeeklyAt(s.now())
	}
	return Window{}
}

// schedulePublishLeaderboard publishes the leaderboard changes after a certain interval.
// Many scores of a game are submitted in a short time, publishing at most once
// per interval reduces the number of notifications.
func (s *Service) schedulePublishLeaderboard(ctx context.Context, gameID string, scope domain.Scope, at time.Time) error {
	// SETNX keeps other instances from publishing the same change.
	ok, err := s.redis.SetNX(ctx, s.getLeaderboardTimeKey(gameID, scope), at.UnixMilli(), publishInterval).Result()
	if err != nil {
		return fmt.Errorf("setnx: %w", err)
	}

	if !ok {
		return nil
	}

	return s.publishLeaderboard(ctx, gameID, scope, at)
}

func (s *Service) publishLeaderboard(ctx context.Context, gameID string, scope domain.Scope, at time.Time) error {
	l, err := s.GetLeaderboard(ctx, GetLeaderboardRequest{
		GameID: gameID,
		Scope:  scope,
	})
	if err != nil {
		return fmt.Errorf("get leaderboard failed: game=%s: %w", gameID, err)
	}

	s.eb.Publish(ctx, domain.EventLeaderboardUpdated{
		Leaderboard: *l,
	})

	return s.redis.Set(ctx, s.getLeaderboardTimeKey(gameID, scope), at.UnixMilli(), publishInterval).Err()
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *Service) load(ctx context.Context, r getter, key string) ([]domain.ScoreEntry, error) {
	b, err := r.Get(ctx, key).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return decode(b)
}

func (s *Service) getLeaderboardKey(gameID string, scope domain.Scope) string {
	return fmt.Sprintf("%s:%s:%s:leaderboard", s.prefix, gameID, scope)
}

func (s *Service) getLeaderboardTimeKey(gameID string, scope domain.Scope) string {
	return fmt.Sprintf("%s:%s:%s:time", s.prefix, gameID, scope)
}

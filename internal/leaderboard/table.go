package leaderboard

import (
	stderrors "errors"
	"math"
	"sort"
	"time"

	"github.com/victornm/gamerank/internal/domain"
	"github.com/victornm/gamerank/internal/errors"
)

const (
	// MaxEntries is the size cap of a scope table.
	MaxEntries = 100

	// WeeklyWindow is how long an entry stays visible on the weekly leaderboard.
	WeeklyWindow = 7 * 24 * time.Hour
)

var ErrInvalidScore = stderrors.New("invalid score")

// Window bounds the entries that count as current. The zero value disables windowing.
type Window struct {
	Now    time.Time
	Length time.Duration
}

// WeeklyAt returns the weekly window ending at now.
func WeeklyAt(now time.Time) Window {
	return Window{Now: now, Length: WeeklyWindow}
}

func (w Window) enabled() bool {
	return w.Length > 0
}

// Stale reports whether an entry has fallen out of the window.
func (w Window) Stale(e domain.ScoreEntry) bool {
	return w.enabled() && e.Timestamp.Before(w.Now.Add(-w.Length))
}

// Validate rejects scores that can not be ranked.
func Validate(e domain.ScoreEntry) error {
	if math.IsNaN(e.Score) || math.IsInf(e.Score, 0) || e.Score <= 0 {
		return errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("score must be a finite number greater than 0: user=%s, score=%v", e.UserID, e.Score),
			errors.WithCause(ErrInvalidScore),
		)
	}
	if e.UserID == "" {
		return errors.New(errors.CodeInvalidArgument, errors.WithMessagef("user id is required"))
	}
	return nil
}

// Merge applies a submission to a scope table and returns the new table. The
// input table is not modified. improved is false when the user already holds
// an equal or higher score or when a new user does not make the cut, the
// returned table is then unchanged.
//
// With a window enabled, stale entries are never removed because of their
// age: a user's stale entry is replaced by their next submission whatever its
// score, and stale entries are evicted before current ones when the table
// exceeds MaxEntries.
func Merge(table []domain.ScoreEntry, e domain.ScoreEntry, w Window) (out []domain.ScoreEntry, improved bool) {
	out = make([]domain.ScoreEntry, len(table), len(table)+1)
	copy(out, table)

	i := indexOf(out, e.UserID)
	switch {
	case i < 0:
		out = append(out, e)
	case e.Score > out[i].Score || w.Stale(out[i]):
		out[i] = e
	default:
		return out, false
	}

	Sort(out)

	if len(out) > MaxEntries {
		if w.enabled() {
			current := make([]domain.ScoreEntry, 0, len(out))
			var stale []domain.ScoreEntry
			for _, x := range out {
				if w.Stale(x) {
					stale = append(stale, x)
				} else {
					current = append(current, x)
				}
			}
			out = append(current, stale...)
			out = out[:MaxEntries]
			Sort(out)
		} else {
			out = out[:MaxEntries]
		}

		// A newcomer below the cap leaves the table as it was.
		if indexOf(out, e.UserID) < 0 {
			return append([]domain.ScoreEntry(nil), table...), false
		}
	}

	return out, true
}

// Sort orders entries by score descending, then by timestamp ascending so
// the earlier submission wins a tie.
func Sort(entries []domain.ScoreEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.UserID < b.UserID
	})
}

// Visible returns the entries of the table that are inside the window.
func Visible(table []domain.ScoreEntry, w Window) []domain.ScoreEntry {
	out := make([]domain.ScoreEntry, 0, len(table))
	for _, e := range table {
		if !w.Stale(e) {
			out = append(out, e)
		}
	}
	return out
}

// Friends returns the entries of userID and their friends, table order is kept.
func Friends(table []domain.ScoreEntry, userID string, friendIDs []string) []domain.ScoreEntry {
	members := make(map[string]struct{}, len(friendIDs)+1)
	members[userID] = struct{}{}
	for _, id := range friendIDs {
		members[id] = struct{}{}
	}

	out := make([]domain.ScoreEntry, 0, len(members))
	for _, e := range table {
		if _, ok := members[e.UserID]; ok {
			out = append(out, e)
		}
	}
	return out
}

// Lookup returns the 1-based position of userID in a sorted table. Equal
// scores do not share a rank.
func Lookup(table []domain.ScoreEntry, userID string) (domain.Rank, bool) {
	i := indexOf(table, userID)
	if i < 0 {
		return domain.Rank{}, false
	}

	return domain.Rank{
		Rank:      i + 1,
		Score:     table[i].Score,
		Timestamp: table[i].Timestamp,
	}, true
}

func indexOf(table []domain.ScoreEntry, userID string) int {
	for i, e := range table {
		if e.UserID == userID {
			return i
		}
	}
	return -1
}

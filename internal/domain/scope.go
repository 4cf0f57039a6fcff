package domain

import "github.com/victornm/gamerank/internal/errors"

type Scope string

const (
	ScopeGlobal  Scope = "global"
	ScopeFriends Scope = "friends"
	ScopeWeekly  Scope = "weekly"
)

func (s Scope) Valid() bool {
	switch s {
	case ScopeGlobal, ScopeFriends, ScopeWeekly:
		return true
	default:
		return false
	}
}

// ParseScope returns an InvalidArgument error for unknown scopes.
func ParseScope(s string) (Scope, error) {
	sc := Scope(s)
	if !sc.Valid() {
		return "", errors.InvalidArgument("unknown leaderboard scope: %q", s)
	}
	return sc, nil
}

package domain

const (
	EventNameScoreSubmitted     = "score.submitted"
	EventNameLeaderboardUpdated = "leaderboard.updated"
	EventNameProfileChanged     = "profile.changed"
)

// EventScoreSubmitted is published for every valid score submission,
// including the ones that did not improve the user's stored score.
type EventScoreSubmitted struct {
	GameID   string
	Scope    Scope
	Entry    ScoreEntry
	Improved bool
}

func (EventScoreSubmitted) Name() string { return EventNameScoreSubmitted }

type EventLeaderboardUpdated struct {
	Leaderboard Leaderboard
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }

// EventProfileChanged is published when the play history or ratings of a user change.
type EventProfileChanged struct {
	UserID string
}

func (EventProfileChanged) Name() string { return EventNameProfileChanged }

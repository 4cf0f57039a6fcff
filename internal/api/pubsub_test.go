package api_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/gamerank/internal/api"
	"github.com/victornm/gamerank/internal/domain"
)

func TestPublishLeaderboardUpdated(t *testing.T) {
	f := makeFixture(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub := f.redis.PSubscribe(ctx, "test:pubsub:user:*")
	t.Cleanup(func() { sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err, "should confirm the subscription")

	f.eb.Publish(ctx, domain.EventLeaderboardUpdated{
		Leaderboard: domain.Leaderboard{
			GameID: "snake",
			Scope:  domain.ScopeGlobal,
			Entries: []domain.ScoreEntry{
				{UserID: "u1", Username: "alice", Score: 20, Timestamp: t0},
				{UserID: "u2", Username: "bob", Score: 10, Timestamp: t0},
			},
		},
	})

	got := make(map[string]api.Leaderboard)
	for i := 0; i < 2; i++ {
		msg, err := sub.ReceiveMessage(ctx)
		require.NoError(t, err)

		var n struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &n))
		assert.Equal(t, domain.EventNameLeaderboardUpdated, n.Event)

		var l api.Leaderboard
		require.NoError(t, json.Unmarshal(n.Data, &l))
		got[msg.Channel] = l
	}

	require.Contains(t, got, "test:pubsub:user:u1")
	require.Contains(t, got, "test:pubsub:user:u2")
	assert.Equal(t, "snake", got["test:pubsub:user:u1"].GameID)
	assert.Len(t, got["test:pubsub:user:u2"].Entries, 2)
}

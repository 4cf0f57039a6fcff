package leaderboard

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/victornm/gamerank/internal/domain"
)

type storedEntry struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Score     float64   `json:"score"`
	Timestamp time.Time `json:"timestamp"`
}

func encode(table []domain.ScoreEntry) ([]byte, error) {
	stored := make([]storedEntry, 0, len(table))
	for _, e := range table {
		stored = append(stored, storedEntry(e))
	}

	b, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("encode leaderboard: %w", err)
	}
	return b, nil
}

func decode(b []byte) ([]domain.ScoreEntry, error) {
	var stored []storedEntry
	if err := json.Unmarshal(b, &stored); err != nil {
		return nil, fmt.Errorf("decode leaderboard: %w", err)
	}

	table := make([]domain.ScoreEntry, 0, len(stored))
	for _, e := range stored {
		table = append(table, domain.ScoreEntry(e))
	}
	return table, nil
}

package history_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/victornm/gamerank/internal/catalog"
	"github.com/victornm/gamerank/internal/errors"
	"github.com/victornm/gamerank/internal/event"
	"github.com/victornm/gamerank/internal/history"
)

func TestAverage(t *testing.T) {
	tests := map[string]struct {
		sum, count int64
		want       float64
	}{
		"exact":            {sum: 9, count: 2, want: 4.5},
		"rounded down":     {sum: 13, count: 3, want: 4.3},
		"rounded up":       {sum: 14, count: 3, want: 4.7},
		"half rounds away": {sum: 17, count: 20, want: 0.9},
		"no ratings":       {sum: 0, count: 0, want: 0},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, history.Average(tt.sum, tt.count))
		})
	}
}

func TestService_Validation(t *testing.T) {
	s := history.NewService(history.Config{
		EventBus: event.NewBus(),
		Catalog:  catalog.Default(),
	})
	ctx := context.Background()

	tests := map[string]struct {
		call     func() error
		wantCode errors.Code
	}{
		"play without user": {
			call:     func() error { return s.RecordPlay(ctx, history.RecordPlayRequest{GameID: "snake"}) },
			wantCode: errors.CodeInvalidArgument,
		},
		"play of unknown game": {
			call:     func() error { return s.RecordPlay(ctx, history.RecordPlayRequest{UserID: "u1", GameID: "pong"}) },
			wantCode: errors.CodeNotFound,
		},
		"play with infinite duration": {
			call: func() error {
				return s.RecordPlay(ctx, history.RecordPlayRequest{UserID: "u1", GameID: "snake", DurationSeconds: math.Inf(1)})
			},
			wantCode: errors.CodeInvalidArgument,
		},
		"rating without game": {
			call:     func() error { return s.RateGame(ctx, history.RateGameRequest{UserID: "u1", Stars: 3}) },
			wantCode: errors.CodeInvalidArgument,
		},
		"rating above five stars": {
			call:     func() error { return s.RateGame(ctx, history.RateGameRequest{UserID: "u1", GameID: "chess", Stars: 6}) },
			wantCode: errors.CodeInvalidArgument,
		},
		"rating of zero stars": {
			call:     func() error { return s.RateGame(ctx, history.RateGameRequest{UserID: "u1", GameID: "chess"}) },
			wantCode: errors.CodeInvalidArgument,
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			err := tt.call()
			assert.True(t, errors.IsCode(err, tt.wantCode), "got %v", err)
		})
	}
}

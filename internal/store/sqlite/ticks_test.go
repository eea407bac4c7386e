package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-analyticsv1/internal/model"
)

func newTickStore(t *testing.T) *TickStore {
	t.Helper()
	s, err := NewTickStore(filepath.Join(t.TempDir(), "ticks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func tick(ts string, token int64, raw string) model.Tick {
	return model.Tick{TS: ts, Token: token, Symbol: "SYM", Raw: raw}
}

func TestTickStore_ReadRangeBoundsAndOrder(t *testing.T) {
	s := newTickStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, []model.Tick{
		tick("2024-01-01 09:15:59", 1, `{"lp":1}`),
		tick("2024-01-01 09:16:00", 1, `{"lp":2}`),
		tick("2024-01-01 09:16:30", 2, `{"lp":3}`),
		tick("2024-01-01 09:16:10", 1, `{"lp":4}`),
		tick("2024-01-01 09:17:00", 1, `{"lp":5}`),
	}))

	got, err := s.ReadRange(ctx, model.TickQuery{
		From: "2024-01-01 09:16:00",
		To:   "2024-01-01 09:17:00",
	})
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Arrival order, not timestamp order.
	assert.Equal(t, `{"lp":2}`, got[0].Raw)
	assert.Equal(t, `{"lp":3}`, got[1].Raw)
	assert.Equal(t, `{"lp":4}`, got[2].Raw)
	assert.Less(t, got[0].ID, got[1].ID)
}

func TestTickStore_ReadRangeTokenFilter(t *testing.T) {
	s := newTickStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, []model.Tick{
		tick("2024-01-01 09:16:00", 1, `{}`),
		tick("2024-01-01 09:16:00", 2, `{}`),
		tick("2024-01-01 09:16:00", 3, `{}`),
	}))

	got, err := s.ReadRange(ctx, model.TickQuery{Tokens: []int64{1, 3}})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].Token)
	assert.Equal(t, int64(3), got[1].Token)
}

func TestTickStore_RunFlushesOnClose(t *testing.T) {
	s := newTickStore(t)
	var committed int
	s.OnCommit = func(n int, _ time.Duration) { committed += n }

	ch := make(chan model.Tick, 10)
	for i := 0; i < 5; i++ {
		ch <- tick("2024-01-01 09:16:00", 1, `{}`)
	}
	close(ch)

	done := make(chan struct{})
	go func() {
		s.Run(context.Background(), ch)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after channel close")
	}

	got, err := s.ReadRange(context.Background(), model.TickQuery{})
	require.NoError(t, err)
	assert.Len(t, got, 5)
	assert.Equal(t, 5, committed)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", placeholders(0))
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?,?,?", placeholders(3))
}

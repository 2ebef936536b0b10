package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealClock(t *testing.T) {
	before := time.Now()
	now := RealClock{}.Now()
	after := time.Now()

	assert.False(t, now.Before(before))
	assert.False(t, now.After(after))
}

func TestFakeClock(t *testing.T) {
	start := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	clk := NewFakeClock(start)

	t.Run("MonotonicNow", func(t *testing.T) {
		first := clk.Now()
		second := clk.Now()
		require.Equal(t, start, first)
		assert.True(t, second.After(first))
	})

	t.Run("Advance", func(t *testing.T) {
		before := clk.Now()
		clk.Advance(time.Hour)
		assert.True(t, clk.Now().Sub(before) >= time.Hour)
	})

	t.Run("FrozenWithZeroStep", func(t *testing.T) {
		frozen := &FakeClock{current: start}
		assert.Equal(t, frozen.Now(), frozen.Now())
	})
}

package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMockClock_AdvanceAndSet(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(start)

	require.Equal(t, start, c.Now())

	c.Advance(90 * time.Second)
	require.Equal(t, start.Add(90*time.Second), c.Now())
	require.Equal(t, 90*time.Second, c.Since(start))

	c.Set(start)
	require.Zero(t, c.Since(start))
}

func TestRealClock_Monotonic(t *testing.T) {
	c := NewRealClock()
	before := c.Now()
	require.GreaterOrEqual(t, c.Since(before), time.Duration(0))
}

package rollover

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingDecayer struct {
	calls atomic.Int32
}

func (c *countingDecayer) AdvanceDecay(context.Context) int {
	c.calls.Add(1)
	return 1
}

func TestNextMidnight(t *testing.T) {
	madrid, err := time.LoadLocation("Europe/Madrid")
	require.NoError(t, err)

	testCases := []struct {
		name     string
		now      time.Time
		loc      *time.Location
		expected time.Time
	}{
		{
			name:     "middle of the day",
			now:      time.Date(2024, 1, 1, 15, 30, 0, 0, time.UTC),
			loc:      time.UTC,
			expected: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "month boundary",
			now:      time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC),
			loc:      time.UTC,
			expected: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "exactly midnight moves to the next one",
			now:      time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			loc:      time.UTC,
			expected: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "counted in the session zone",
			now:      time.Date(2024, 1, 1, 23, 30, 0, 0, time.UTC), // 00:30 on Jan 2 in Madrid
			loc:      madrid,
			expected: time.Date(2024, 1, 3, 0, 0, 0, 0, madrid),
		},
		{
			name:     "daylight saving day is short",
			now:      time.Date(2024, 3, 31, 1, 0, 0, 0, madrid),
			loc:      madrid,
			expected: time.Date(2024, 4, 1, 0, 0, 0, 0, madrid),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := NextMidnight(tc.now, tc.loc)
			assert.True(t, tc.expected.Equal(got), "expected %s, got %s", tc.expected, got)
		})
	}
}

func TestService_UntilNextMidnight(t *testing.T) {
	s := NewService(&countingDecayer{}, time.UTC, true)
	s.now = func() time.Time { return time.Date(2024, 1, 1, 23, 0, 0, 0, time.UTC) }

	assert.Equal(t, time.Hour+time.Second, s.untilNextMidnight())
}

func TestService_RunCatchesUpImmediately(t *testing.T) {
	d := &countingDecayer{}
	s := NewService(d, time.UTC, true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return d.calls.Load() == 1 }, time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("rollover service did not stop")
	}
}

func TestService_Disabled(t *testing.T) {
	d := &countingDecayer{}
	s := NewService(d, time.UTC, false)

	s.Run(context.Background())

	assert.Equal(t, int32(0), d.calls.Load())
}

package vessel

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func TestNew_Defaults(t *testing.T) {
	v := New("Mi vaso", "2024-01-01")

	assert.NotEmpty(t, v.ID)
	assert.Len(t, v.ID, 10)
	assert.Equal(t, "Mi vaso", v.Name)
	assert.Equal(t, 100, v.Capacity)
	assert.Equal(t, 60, v.Threshold)
	assert.Equal(t, 2, v.EvaporationPerDay)
	assert.Equal(t, 15, v.Level)
	assert.Equal(t, "2024-01-01", v.LastUpdateISO)
	assert.Empty(t, v.Events)
	assert.Empty(t, v.History)
	assert.True(t, v.AutoDailyTick)
}

func TestApplyEvent(t *testing.T) {
	testCases := []struct {
		name          string
		level         int
		label         string
		drops         int
		expectedLevel int
		expectedLabel string
	}{
		{name: "adds drops", level: 15, label: "discusión", drops: 3, expectedLevel: 18, expectedLabel: "discusión"},
		{name: "blank label defaults and level clamps at capacity", level: 95, label: "  ", drops: 5, expectedLevel: 100, expectedLabel: "Evento"},
		{name: "negative drops clamp at zero", level: 2, label: "respiro", drops: -5, expectedLevel: 0, expectedLabel: "respiro"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v := New("test", "2024-01-01")
			v.Level = tc.level

			got := ApplyEvent(v, tc.label, tc.drops, "2024-01-05")

			assert.Equal(t, tc.expectedLevel, got.Level)
			require.Len(t, got.Events, 1)
			assert.Equal(t, tc.expectedLabel, got.Events[0].Label)
			assert.Equal(t, tc.drops, got.Events[0].Drops)
			assert.Equal(t, "2024-01-05", got.Events[0].DateISO)
			require.Len(t, got.History, 1)
			assert.Equal(t, HistoryPoint{DateISO: "2024-01-05", Level: tc.expectedLevel}, got.History[0])
			assert.Equal(t, "2024-01-05", got.LastUpdateISO)

			// The input is left untouched.
			assert.Equal(t, tc.level, v.Level)
			assert.Empty(t, v.Events)
		})
	}
}

func TestApplyEvent_PrependsAndBoundsLists(t *testing.T) {
	v := New("test", "2024-01-01")
	for i := 0; i < MaxHistory+20; i++ {
		v = ApplyEvent(v, fmt.Sprintf("e%d", i), 0, "2024-01-01")
	}

	assert.Len(t, v.Events, MaxEvents)
	assert.Len(t, v.History, MaxHistory)
	assert.Equal(t, fmt.Sprintf("e%d", MaxHistory+19), v.Events[0].Label, "most recent event comes first")
}

func TestApplyEvent_UniqueIDs(t *testing.T) {
	v := New("test", "2024-01-01")
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		v = ApplyEvent(v, "x", 1, "2024-01-01")
		id := v.Events[0].ID
		assert.False(t, seen[id], "duplicate event id %s", id)
		seen[id] = true
	}
}

func TestUndoLast(t *testing.T) {
	t.Run("no events is a no-op", func(t *testing.T) {
		v := New("test", "2024-01-01")
		got := UndoLast(v, "2024-01-02")
		assert.Equal(t, v, got)
		assert.Empty(t, got.History)
	})

	t.Run("reverses the most recent event", func(t *testing.T) {
		v := New("test", "2024-01-01")
		v = ApplyEvent(v, "a", 4, "2024-01-01")
		v = ApplyEvent(v, "b", 6, "2024-01-01")

		got := UndoLast(v, "2024-01-02")

		assert.Equal(t, 19, got.Level)
		require.Len(t, got.Events, 1)
		assert.Equal(t, "a", got.Events[0].Label)
		assert.Equal(t, HistoryPoint{DateISO: "2024-01-02", Level: 19}, got.History[len(got.History)-1])
		assert.Equal(t, "2024-01-02", got.LastUpdateISO)
		assert.Len(t, v.Events, 2, "input keeps its events")
	})

	t.Run("delta is computed against the current level", func(t *testing.T) {
		v := New("test", "2024-01-01")
		v = ApplyEvent(v, "a", 10, "2024-01-01") // 25
		v = UpdateSettings(v, Patch{Level: intPtr(5)})

		got := UndoLast(v, "2024-01-01")
		assert.Equal(t, 0, got.Level)
	})
}

func TestUpdateSettings(t *testing.T) {
	t.Run("shrinking capacity re-clamps level and threshold", func(t *testing.T) {
		v := New("test", "2024-01-01")
		v.Level = 90

		got := UpdateSettings(v, Patch{Capacity: intPtr(50)})

		assert.Equal(t, 50, got.Capacity)
		assert.Equal(t, 50, got.Level)
		assert.Equal(t, 50, got.Threshold)
	})

	t.Run("values are clamped into range", func(t *testing.T) {
		v := New("test", "2024-01-01")
		auto := false
		name := "  "

		got := UpdateSettings(v, Patch{
			Capacity:          intPtr(0),
			Threshold:         intPtr(-3),
			EvaporationPerDay: intPtr(-1),
			Level:             intPtr(7),
			AutoDailyTick:     &auto,
			Name:              &name,
		})

		assert.Equal(t, 1, got.Capacity)
		assert.Equal(t, 0, got.Threshold)
		assert.Equal(t, 0, got.EvaporationPerDay)
		assert.Equal(t, 1, got.Level)
		assert.False(t, got.AutoDailyTick)
		assert.Equal(t, "test", got.Name, "blank names are ignored")
	})
}

func TestReset(t *testing.T) {
	v := New("Compartido", "2024-01-01")
	v = ApplyEvent(v, "x", 30, "2024-01-01")
	v = UpdateSettings(v, Patch{Capacity: intPtr(200)})

	got := Reset(v, "2024-02-01")

	assert.Equal(t, v.ID, got.ID)
	assert.Equal(t, "Compartido", got.Name)
	assert.Equal(t, 100, got.Capacity)
	assert.Equal(t, 15, got.Level)
	assert.Equal(t, "2024-02-01", got.LastUpdateISO)
	assert.Empty(t, got.Events)
	assert.Empty(t, got.History)
}

func TestInvariantsHoldUnderRandomOperations(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	v := New("fuzz", "2024-01-01")

	for i := 0; i < 2000; i++ {
		switch rng.Intn(4) {
		case 0:
			v = ApplyEvent(v, "x", rng.Intn(40)-10, "2024-01-01")
		case 1:
			v = UndoLast(v, "2024-01-01")
		case 2:
			v = UpdateSettings(v, Patch{Capacity: intPtr(rng.Intn(320) - 10)})
		case 3:
			v = UpdateSettings(v, Patch{Level: intPtr(rng.Intn(400) - 50), Threshold: intPtr(rng.Intn(400) - 50)})
		}

		require.GreaterOrEqual(t, v.Level, 0)
		require.LessOrEqual(t, v.Level, v.Capacity)
		require.LessOrEqual(t, v.Threshold, v.Capacity)
		require.LessOrEqual(t, len(v.Events), MaxEvents)
		require.LessOrEqual(t, len(v.History), MaxHistory)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	v := Vessel{ID: "x", Capacity: -4, Threshold: 500, Level: 900, EvaporationPerDay: -2}

	once := Normalize(v)
	twice := Normalize(once)

	assert.Equal(t, once, twice)
	assert.Equal(t, 1, once.Capacity)
	assert.Equal(t, 1, once.Level)
	assert.Equal(t, 1, once.Threshold)
	assert.NotNil(t, once.Events)
	assert.NotNil(t, once.History)
}

func TestInRedZoneAndPercent(t *testing.T) {
	v := New("test", "2024-01-01")
	assert.False(t, InRedZone(v))
	assert.InDelta(t, 15.0, Percent(v), 0.001)

	v = UpdateSettings(v, Patch{Level: intPtr(60)})
	assert.True(t, InRedZone(v))
}

func TestQuickPreset(t *testing.T) {
	label, drops, ok := QuickPreset(QuickLarge)
	require.True(t, ok)
	assert.Equal(t, "Conflicto grande", label)
	assert.Equal(t, 8, drops)

	_, _, ok = QuickPreset("huge")
	assert.False(t, ok)
}

func TestChart(t *testing.T) {
	v := New("test", "2024-01-01")
	v.History = []HistoryPoint{
		{DateISO: "2024-01-03", Level: 30},
		{DateISO: "2024-01-01", Level: 10},
		{DateISO: "2024-01-03", Level: 33},
		{DateISO: "2024-01-04", Level: 40},
	}
	v.Level = 44

	got := Chart(v, "2024-01-04")

	assert.Equal(t, []HistoryPoint{
		{DateISO: "2024-01-01", Level: 10},
		{DateISO: "2024-01-03", Level: 33},
		{DateISO: "2024-01-04", Level: 44},
	}, got)
}

package room

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emotional-cup-backend/internal/vessel"
)

const today = "2024-01-04"

func remigrate(t *testing.T, s State) State {
	t.Helper()
	raw, err := s.Marshal()
	require.NoError(t, err)
	return Migrate(raw, today)
}

func TestMigrate_LegacySingleVessel(t *testing.T) {
	raw := []byte(`{
		"capacity": 80,
		"threshold": 50,
		"level": 20,
		"evaporationPerDay": 1,
		"lastUpdateISO": "2023-12-30",
		"events": [{"id": "e1", "dateISO": "2023-12-30", "label": "x", "drops": 5}],
		"history": [{"dateISO": "2023-12-30", "level": 20}],
		"autoDailyTick": false
	}`)

	s := Migrate(raw, today)

	require.Len(t, s.Order, 3)
	require.Len(t, s.Vessels, 3)
	assert.Equal(t, SchemaVersion, s.SchemaVersion)

	first := s.Vessels[s.Order[0]]
	assert.Equal(t, NameMine, first.Name)
	assert.Equal(t, 80, first.Capacity)
	assert.Equal(t, 50, first.Threshold)
	assert.Equal(t, 20, first.Level)
	assert.Equal(t, 1, first.EvaporationPerDay)
	assert.Equal(t, "2023-12-30", first.LastUpdateISO)
	assert.False(t, first.AutoDailyTick)
	assert.Equal(t, []vessel.Event{{ID: "e1", DateISO: "2023-12-30", Label: "x", Drops: 5}}, first.Events)
	assert.Equal(t, []vessel.HistoryPoint{{DateISO: "2023-12-30", Level: 20}}, first.History)

	for _, id := range s.Order[1:] {
		v := s.Vessels[id]
		assert.Equal(t, vessel.DefaultCapacity, v.Capacity)
		assert.Equal(t, vessel.DefaultThreshold, v.Threshold)
		assert.Equal(t, vessel.DefaultLevel, v.Level)
		assert.Empty(t, v.Events)
	}
	assert.Equal(t, NameTheirs, s.Vessels[s.Order[1]].Name)
	assert.Equal(t, NameShared, s.Vessels[s.Order[2]].Name)
}

func TestMigrate_LegacyMissingFieldsUseDefaults(t *testing.T) {
	s := Migrate([]byte(`{"capacity": 80, "threshold": null}`), today)

	first := s.Vessels[s.Order[0]]
	assert.Equal(t, 80, first.Capacity)
	assert.Equal(t, vessel.DefaultThreshold, first.Threshold)
	assert.Equal(t, vessel.DefaultLevel, first.Level)
	assert.Equal(t, today, first.LastUpdateISO)
	assert.True(t, first.AutoDailyTick)
}

func TestMigrate_LegacyBadFieldIsDropped(t *testing.T) {
	s := Migrate([]byte(`{
		"capacity": 80,
		"threshold": 50,
		"level": 30,
		"events": "x",
		"history": 5,
		"autoDailyTick": "yes"
	}`), today)

	require.Len(t, s.Order, 3)
	first := s.Vessels[s.Order[0]]
	assert.Equal(t, NameMine, first.Name)
	assert.Equal(t, 80, first.Capacity)
	assert.Equal(t, 50, first.Threshold)
	assert.Equal(t, 30, first.Level)
	assert.Empty(t, first.Events)
	assert.Empty(t, first.History)
	assert.True(t, first.AutoDailyTick)
}

func TestMigrate_Bootstrap(t *testing.T) {
	inputs := map[string][]byte{
		"nil":             nil,
		"null":            []byte(`null`),
		"malformed":       []byte(`{"vessels":`),
		"array":           []byte(`[1,2,3]`),
		"unrecognized":    []byte(`{"foo": 1}`),
		"unknown version": []byte(`{"schemaVersion": 99, "vessels": {}, "order": []}`),
		"empty room":      []byte(`{"schemaVersion": 2, "vessels": {}, "order": []}`),
	}
	for name, raw := range inputs {
		t.Run(name, func(t *testing.T) {
			s := Migrate(raw, today)
			require.Len(t, s.Order, 3)
			assert.Equal(t, []string{NameMine, NameTheirs, NameShared}, names(s))
			assert.Equal(t, today, s.CreatedAtISO)
		})
	}
}

func TestMigrate_MultiVesselPassesThrough(t *testing.T) {
	original := Bootstrap("2024-01-01")
	original.Vessels[original.Order[1]] = vessel.ApplyEvent(original.Vessels[original.Order[1]], "x", 3, "2024-01-01")

	got := remigrate(t, original)

	assert.True(t, original.Equal(got))
}

func TestMigrate_UntaggedMultiVessel(t *testing.T) {
	for _, key := range []string{"vessels", "vasos"} {
		t.Run(key, func(t *testing.T) {
			raw := []byte(`{"` + key + `": {
				"a": {"id": "a", "name": "A", "capacity": 100, "threshold": 60, "evaporationPerDay": 2, "level": 10, "lastUpdateISO": "2024-01-01", "events": [], "history": [], "autoDailyTick": true},
				"b": {"id": "b", "name": "B", "capacity": 100, "threshold": 60, "evaporationPerDay": 2, "level": 10, "lastUpdateISO": "2024-01-01", "events": [], "history": [], "autoDailyTick": true}
			}, "order": ["b", "a"], "createdAtISO": "2023-06-01"}`)

			s := Migrate(raw, today)

			assert.Equal(t, SchemaVersion, s.SchemaVersion)
			assert.Equal(t, []string{"b", "a"}, s.Order)
			assert.Equal(t, "2023-06-01", s.CreatedAtISO)
			assert.Equal(t, "A", s.Vessels["a"].Name)
		})
	}
}

func TestMigrate_RepairsOrderAndClampsVessels(t *testing.T) {
	raw := []byte(`{"schemaVersion": 2, "vessels": {
		"a": {"id": "wrong", "name": "A", "capacity": 50, "threshold": 90, "level": 70},
		"c": {"id": "c", "name": "C", "capacity": 10, "threshold": 5, "level": 5},
		"b": {"id": "b", "name": "B", "capacity": 10, "threshold": 5, "level": 5}
	}, "order": ["ghost", "a", "a"], "createdAtISO": "2024-01-01"}`)

	s := Migrate(raw, today)

	assert.Equal(t, []string{"a", "b", "c"}, s.Order)
	a := s.Vessels["a"]
	assert.Equal(t, "a", a.ID)
	assert.Equal(t, 50, a.Level)
	assert.Equal(t, 50, a.Threshold)
	assert.NotNil(t, a.Events)
}

func TestMigrate_Idempotent(t *testing.T) {
	inputs := [][]byte{
		nil,
		[]byte(`null`),
		[]byte(`"just a string"`),
		[]byte(`{"capacity": 80, "threshold": 50, "level": 20}`),
		[]byte(`{"vasos": {"a": {"id": "a", "capacity": 5, "level": 9}}, "order": ["a", "zzz"]}`),
		[]byte(`{"schemaVersion": 2, "vessels": {"a": {"id": "a", "capacity": 5, "level": 9, "events": null}}, "order": []}`),
	}
	for _, raw := range inputs {
		once := Migrate(raw, today)
		twice := remigrate(t, once)
		assert.True(t, once.Equal(twice), "migrate is not idempotent for %s", string(raw))
	}
}

func TestState_MarshalUsesDocumentKeys(t *testing.T) {
	s := Bootstrap(today)
	raw, err := s.Marshal()
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Contains(t, doc, "schemaVersion")
	assert.Contains(t, doc, "vessels")
	assert.Contains(t, doc, "order")
	assert.Contains(t, doc, "createdAtISO")
}

func names(s State) []string {
	out := make([]string, 0, len(s.Order))
	for _, v := range s.Ordered() {
		out = append(out, v.Name)
	}
	return out
}

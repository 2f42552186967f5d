package room

import (
	"encoding/json"
	"log"
	"sort"

	"emotional-cup-backend/internal/vessel"
)

// legacyVessel is the pre-room document: a single vessel at the top level.
// Pointer fields distinguish a missing value from a zero one.
type legacyVessel struct {
	Capacity          *int                  `json:"capacity"`
	Threshold         *int                  `json:"threshold"`
	EvaporationPerDay *int                  `json:"evaporationPerDay"`
	Level             *int                  `json:"level"`
	LastUpdateISO     *string               `json:"lastUpdateISO"`
	Events            []vessel.Event        `json:"events"`
	History           []vessel.HistoryPoint `json:"history"`
	AutoDailyTick     *bool                 `json:"autoDailyTick"`
}

// untaggedRoom is a multi-vessel document written before the schema tag.
// The first release stored vessels under "vasos".
type untaggedRoom struct {
	Vessels      map[string]vessel.Vessel `json:"vessels"`
	Vasos        map[string]vessel.Vessel `json:"vasos"`
	Order        []string                 `json:"order"`
	CreatedAtISO string                   `json:"createdAtISO"`
}

// Migrate turns any previously persisted or remotely received document into
// a valid current State. Documents that cannot be understood yield a fresh
// bootstrap; Migrate never fails.
//
// Migrate is idempotent: migrating the encoded result again yields an equal
// State.
func Migrate(raw []byte, today string) State {
	var top map[string]json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &top) != nil || top == nil {
		return Bootstrap(today)
	}

	version := 0
	if tag, ok := top["schemaVersion"]; ok {
		if err := json.Unmarshal(tag, &version); err != nil {
			log.Printf("room: unreadable schemaVersion %s, bootstrapping", string(tag))
			return Bootstrap(today)
		}
	}

	switch version {
	case SchemaVersion:
		var s State
		if err := json.Unmarshal(raw, &s); err != nil {
			return Bootstrap(today)
		}
		return normalize(s, today)
	case 0:
		return migrateUntagged(raw, top, today)
	default:
		log.Printf("room: unknown schemaVersion %d, bootstrapping", version)
		return Bootstrap(today)
	}
}

func migrateUntagged(raw []byte, top map[string]json.RawMessage, today string) State {
	_, hasCapacity := top["capacity"]
	_, hasThreshold := top["threshold"]
	if hasCapacity && hasThreshold {
		return fromLegacy(decodeLegacy(top), today)
	}

	_, hasOrder := top["order"]
	_, hasVessels := top["vessels"]
	_, hasVasos := top["vasos"]
	if hasOrder && (hasVessels || hasVasos) {
		var old untaggedRoom
		if err := json.Unmarshal(raw, &old); err != nil {
			return Bootstrap(today)
		}
		vessels := old.Vessels
		if vessels == nil {
			vessels = old.Vasos
		}
		return normalize(State{
			SchemaVersion: SchemaVersion,
			Vessels:       vessels,
			Order:         old.Order,
			CreatedAtISO:  old.CreatedAtISO,
		}, today)
	}

	return Bootstrap(today)
}

// decodeLegacy reads each field on its own. A field of the wrong type is
// treated as missing instead of discarding the whole document.
func decodeLegacy(top map[string]json.RawMessage) legacyVessel {
	var legacy legacyVessel
	decodeField(top, "capacity", &legacy.Capacity)
	decodeField(top, "threshold", &legacy.Threshold)
	decodeField(top, "evaporationPerDay", &legacy.EvaporationPerDay)
	decodeField(top, "level", &legacy.Level)
	decodeField(top, "lastUpdateISO", &legacy.LastUpdateISO)
	decodeField(top, "events", &legacy.Events)
	decodeField(top, "history", &legacy.History)
	decodeField(top, "autoDailyTick", &legacy.AutoDailyTick)
	return legacy
}

func decodeField[T any](top map[string]json.RawMessage, key string, dst *T) {
	raw, ok := top[key]
	if !ok {
		return
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		log.Printf("room: ignoring unreadable legacy field %s: %v", key, err)
		return
	}
	*dst = v
}

func fromLegacy(legacy legacyVessel, today string) State {
	me := vessel.New(NameMine, today)
	if legacy.Capacity != nil {
		me.Capacity = *legacy.Capacity
	}
	if legacy.Threshold != nil {
		me.Threshold = *legacy.Threshold
	}
	if legacy.EvaporationPerDay != nil {
		me.EvaporationPerDay = *legacy.EvaporationPerDay
	}
	if legacy.Level != nil {
		me.Level = *legacy.Level
	}
	if legacy.LastUpdateISO != nil && *legacy.LastUpdateISO != "" {
		me.LastUpdateISO = *legacy.LastUpdateISO
	}
	if legacy.Events != nil {
		me.Events = legacy.Events
	}
	if legacy.History != nil {
		me.History = legacy.History
	}
	if legacy.AutoDailyTick != nil {
		me.AutoDailyTick = *legacy.AutoDailyTick
	}

	return normalize(newState(today,
		me,
		vessel.New(NameTheirs, today),
		vessel.New(NameShared, today),
	), today)
}

// normalize repairs the structural invariants of a decoded document: every
// vessel is clamped, order is a permutation of the vessel keys, and the
// room is never empty.
func normalize(s State, today string) State {
	out := State{
		SchemaVersion: SchemaVersion,
		Vessels:       make(map[string]vessel.Vessel, len(s.Vessels)),
		Order:         make([]string, 0, len(s.Vessels)),
		CreatedAtISO:  s.CreatedAtISO,
	}
	if out.CreatedAtISO == "" {
		out.CreatedAtISO = today
	}

	for key, v := range s.Vessels {
		// The map key is authoritative for identity.
		v.ID = key
		out.Vessels[key] = vessel.Normalize(v)
	}

	listed := make(map[string]bool, len(s.Order))
	for _, id := range s.Order {
		if _, ok := out.Vessels[id]; ok && !listed[id] {
			out.Order = append(out.Order, id)
			listed[id] = true
		}
	}
	var unlisted []string
	for id := range out.Vessels {
		if !listed[id] {
			unlisted = append(unlisted, id)
		}
	}
	sort.Strings(unlisted)
	out.Order = append(out.Order, unlisted...)

	if len(out.Order) == 0 {
		return Bootstrap(today)
	}
	return out
}

// Package room owns the shared document of a room: an ordered collection of
// vessels. All mutations go through Store so that local persistence and
// remote sync observe every change.
package room

import (
	"encoding/json"
	"reflect"

	"emotional-cup-backend/internal/vessel"
)

// SchemaVersion tags every document this package writes. Legacy single-vessel
// documents predate the tag and are treated as version 1.
const SchemaVersion = 2

// Default names of the three bootstrap vessels: mine, theirs and shared.
const (
	NameMine   = "Mi vaso"
	NameTheirs = "Su vaso"
	NameShared = "Compartido"
)

// State is the whole room document.
type State struct {
	SchemaVersion int                      `json:"schemaVersion"`
	Vessels       map[string]vessel.Vessel `json:"vessels"`
	Order         []string                 `json:"order"`
	CreatedAtISO  string                   `json:"createdAtISO"`
}

// Bootstrap returns a fresh document with the three default vessels.
func Bootstrap(today string) State {
	return newState(today,
		vessel.New(NameMine, today),
		vessel.New(NameTheirs, today),
		vessel.New(NameShared, today),
	)
}

func newState(today string, vessels ...vessel.Vessel) State {
	s := State{
		SchemaVersion: SchemaVersion,
		Vessels:       make(map[string]vessel.Vessel, len(vessels)),
		Order:         make([]string, 0, len(vessels)),
		CreatedAtISO:  today,
	}
	for _, v := range vessels {
		s.Vessels[v.ID] = v
		s.Order = append(s.Order, v.ID)
	}
	return s
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	c := State{
		SchemaVersion: s.SchemaVersion,
		Vessels:       make(map[string]vessel.Vessel, len(s.Vessels)),
		Order:         append(make([]string, 0, len(s.Order)), s.Order...),
		CreatedAtISO:  s.CreatedAtISO,
	}
	for id, v := range s.Vessels {
		c.Vessels[id] = vessel.Clone(v)
	}
	return c
}

// Ordered returns the vessels in display order.
func (s State) Ordered() []vessel.Vessel {
	out := make([]vessel.Vessel, 0, len(s.Order))
	for _, id := range s.Order {
		if v, ok := s.Vessels[id]; ok {
			out = append(out, v)
		}
	}
	return out
}

// Equal reports whether two documents hold the same data.
func (s State) Equal(other State) bool {
	return reflect.DeepEqual(s, other)
}

// Marshal encodes the document as JSON.
func (s State) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

// Package vessel models a single bounded accumulator that fills with events
// and drains through a daily decay.
//
// Every operation in this package is pure: it takes a Vessel value and
// returns a new one without touching the slices of its input.
package vessel

import (
	"strings"

	"github.com/google/uuid"
)

const (
	MaxEvents  = 100
	MaxHistory = 180

	DefaultCapacity          = 100
	DefaultThreshold         = 60
	DefaultEvaporationPerDay = 2
	DefaultLevel             = 15

	DefaultEventLabel = "Evento"
)

// Event is one discrete addition to a vessel's level.
type Event struct {
	ID      string `json:"id"`
	DateISO string `json:"dateISO"`
	Label   string `json:"label"`
	Drops   int    `json:"drops"`
}

// HistoryPoint is one level observation for a calendar date.
type HistoryPoint struct {
	DateISO string `json:"dateISO"`
	Level   int    `json:"level"`
}

// Vessel is a bounded accumulator ("vaso").
type Vessel struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	Capacity          int            `json:"capacity"`
	Threshold         int            `json:"threshold"`
	EvaporationPerDay int            `json:"evaporationPerDay"`
	Level             int            `json:"level"`
	LastUpdateISO     string         `json:"lastUpdateISO"`
	Events            []Event        `json:"events"`  // most recent first
	History           []HistoryPoint `json:"history"` // chronological
	AutoDailyTick     bool           `json:"autoDailyTick"`
}

// Patch lists the settings a user may change. Nil fields are left untouched.
type Patch struct {
	Name              *string `json:"name,omitempty"`
	Capacity          *int    `json:"capacity,omitempty"`
	Threshold         *int    `json:"threshold,omitempty"`
	EvaporationPerDay *int    `json:"evaporationPerDay,omitempty"`
	Level             *int    `json:"level,omitempty"`
	AutoDailyTick     *bool   `json:"autoDailyTick,omitempty"`
}

// NewID returns a short random identifier. Tests may replace it.
var NewID = func() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}

// New creates a vessel with default settings.
func New(name, today string) Vessel {
	return Vessel{
		ID:                NewID(),
		Name:              name,
		Capacity:          DefaultCapacity,
		Threshold:         DefaultThreshold,
		EvaporationPerDay: DefaultEvaporationPerDay,
		Level:             DefaultLevel,
		LastUpdateISO:     today,
		Events:            []Event{},
		History:           []HistoryPoint{},
		AutoDailyTick:     true,
	}
}

// Reset returns a fresh default vessel that keeps the identity and name of v.
func Reset(v Vessel, today string) Vessel {
	fresh := New(v.Name, today)
	fresh.ID = v.ID
	return fresh
}

// ApplyEvent adds drops to the vessel and records the event.
func ApplyEvent(v Vessel, label string, drops int, today string) Vessel {
	label = strings.TrimSpace(label)
	if label == "" {
		label = DefaultEventLabel
	}

	next := v.clone()
	next.Level = clamp(v.Level+drops, 0, v.Capacity)

	events := make([]Event, 0, len(v.Events)+1)
	events = append(events, Event{ID: NewID(), DateISO: today, Label: label, Drops: drops})
	events = append(events, v.Events...)
	next.Events = truncateEvents(events)

	next.History = appendHistory(next.History, HistoryPoint{DateISO: today, Level: next.Level})
	next.LastUpdateISO = today
	return next
}

// UndoLast removes the most recent event and subtracts its drops from the
// current level. It reverses the delta only; manual level edits made after
// the event are not rolled back.
func UndoLast(v Vessel, today string) Vessel {
	if len(v.Events) == 0 {
		return v
	}
	last := v.Events[0]

	next := v.clone()
	next.Events = next.Events[1:]
	next.Level = clamp(v.Level-last.Drops, 0, v.Capacity)
	next.History = appendHistory(next.History, HistoryPoint{DateISO: today, Level: next.Level})
	next.LastUpdateISO = today
	return next
}

// UpdateSettings merges the patch and re-clamps level and threshold into the
// (possibly new) capacity.
func UpdateSettings(v Vessel, p Patch) Vessel {
	next := v.clone()
	if p.Name != nil {
		if name := strings.TrimSpace(*p.Name); name != "" {
			next.Name = name
		}
	}
	if p.Capacity != nil {
		next.Capacity = max(*p.Capacity, 1)
	}
	if p.Threshold != nil {
		next.Threshold = *p.Threshold
	}
	if p.EvaporationPerDay != nil {
		next.EvaporationPerDay = max(*p.EvaporationPerDay, 0)
	}
	if p.Level != nil {
		next.Level = *p.Level
	}
	if p.AutoDailyTick != nil {
		next.AutoDailyTick = *p.AutoDailyTick
	}
	next.Level = clamp(next.Level, 0, next.Capacity)
	next.Threshold = clamp(next.Threshold, 0, next.Capacity)
	return next
}

// Normalize re-establishes every numeric invariant and list bound. It is
// idempotent and is applied to documents read from storage.
func Normalize(v Vessel) Vessel {
	next := v.clone()
	next.Capacity = max(next.Capacity, 1)
	next.EvaporationPerDay = max(next.EvaporationPerDay, 0)
	next.Level = clamp(next.Level, 0, next.Capacity)
	next.Threshold = clamp(next.Threshold, 0, next.Capacity)
	next.Events = truncateEvents(next.Events)
	if len(next.History) > MaxHistory {
		next.History = next.History[len(next.History)-MaxHistory:]
	}
	return next
}

// InRedZone reports whether the level is at or above the threshold.
func InRedZone(v Vessel) bool {
	return v.Level >= v.Threshold
}

// Percent returns the fill level as a percentage of capacity.
func Percent(v Vessel) float64 {
	if v.Capacity <= 0 {
		return 0
	}
	return float64(v.Level) / float64(v.Capacity) * 100
}

// clone copies v including its slices. Nil slices become empty ones so that
// documents encode lists as [] rather than null.
func (v Vessel) clone() Vessel {
	c := v
	c.Events = append(make([]Event, 0, len(v.Events)), v.Events...)
	c.History = append(make([]HistoryPoint, 0, len(v.History)), v.History...)
	return c
}

// Clone returns a deep copy of v.
func Clone(v Vessel) Vessel {
	return v.clone()
}

func appendHistory(history []HistoryPoint, p HistoryPoint) []HistoryPoint {
	history = append(history, p)
	if len(history) > MaxHistory {
		history = history[len(history)-MaxHistory:]
	}
	return history
}

func truncateEvents(events []Event) []Event {
	if len(events) > MaxEvents {
		return events[:MaxEvents]
	}
	return events
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

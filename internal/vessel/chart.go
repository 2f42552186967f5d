package vessel

import "sort"

// QuickSize names one of the preset event sizes offered by the UI.
type QuickSize string

const (
	QuickSmall  QuickSize = "small"
	QuickMedium QuickSize = "medium"
	QuickLarge  QuickSize = "large"
)

type quickPreset struct {
	Label string
	Drops int
}

var quickPresets = map[QuickSize]quickPreset{
	QuickSmall:  {Label: "Molestia pequeña", Drops: 2},
	QuickMedium: {Label: "Problema mediano", Drops: 4},
	QuickLarge:  {Label: "Conflicto grande", Drops: 8},
}

// QuickPreset returns the label and drops for a preset size.
func QuickPreset(size QuickSize) (label string, drops int, ok bool) {
	p, ok := quickPresets[size]
	return p.Label, p.Drops, ok
}

// Chart returns the history deduplicated by date, keeping the latest point
// written for each date, with today's point replaced by the live level.
// Points are sorted chronologically.
func Chart(v Vessel, today string) []HistoryPoint {
	byDate := make(map[string]int, len(v.History)+1)
	for _, h := range v.History {
		byDate[h.DateISO] = h.Level
	}
	byDate[today] = v.Level

	points := make([]HistoryPoint, 0, len(byDate))
	for date, level := range byDate {
		points = append(points, HistoryPoint{DateISO: date, Level: level})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].DateISO < points[j].DateISO })
	return points
}

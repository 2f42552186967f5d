package vessel

// AdvanceDecay brings lastUpdateISO forward to today, applying one
// evaporation step and recording one history point per elapsed day.
//
// The vessel is returned unchanged when auto decay is off, when today is not
// strictly after lastUpdateISO (including a lastUpdateISO in the future), or
// when either date cannot be parsed.
func AdvanceDecay(v Vessel, today string) Vessel {
	if !v.AutoDailyTick || v.LastUpdateISO == today {
		return v
	}
	days, err := DaysBetween(v.LastUpdateISO, today)
	if err != nil || days <= 0 {
		return v
	}
	start, err := ParseDate(v.LastUpdateISO)
	if err != nil {
		return v
	}

	// Only the last MaxHistory days can survive truncation. Days before
	// that are applied in one step; the level never rises, so clamping once
	// gives the same result as clamping daily.
	first := max(1, days-MaxHistory+1)
	next := v.clone()
	level := decayBy(v.Level, v.EvaporationPerDay, first-1, v.Capacity)
	for i := first; i <= days; i++ {
		level = clamp(level-v.EvaporationPerDay, 0, v.Capacity)
		next.History = append(next.History, HistoryPoint{
			DateISO: start.AddDate(0, 0, i).Format(DateLayout),
			Level:   level,
		})
	}
	if len(next.History) > MaxHistory {
		next.History = next.History[len(next.History)-MaxHistory:]
	}
	next.Level = level
	next.LastUpdateISO = today
	return next
}

// decayBy applies n days of evaporation at rate to level.
func decayBy(level, rate, n, capacity int) int {
	if n <= 0 || rate <= 0 {
		return clamp(level, 0, capacity)
	}
	if n > level/rate {
		return 0
	}
	return clamp(level-n*rate, 0, capacity)
}

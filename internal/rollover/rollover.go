package rollover

import (
	"context"
	"log"
	"time"
)

// Decayer advances every vessel of the room to the current day.
type Decayer interface {
	AdvanceDecay(ctx context.Context) int
}

// Service re-runs the decay engine whenever the calendar day changes while
// the process is up.
type Service struct {
	decayer Decayer
	loc     *time.Location
	now     func() time.Time
	enabled bool
}

// NewService creates a rollover service counting days in loc.
func NewService(decayer Decayer, loc *time.Location, enabled bool) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		decayer: decayer,
		loc:     loc,
		now:     time.Now,
		enabled: enabled,
	}
}

// Run catches up once and then again after every local midnight.
func (s *Service) Run(ctx context.Context) {
	if !s.enabled {
		log.Println("Daily rollover is disabled. Not starting.")
		return
	}
	log.Println("Starting daily rollover service...")

	s.TickOnce(ctx)

	timer := time.NewTimer(s.untilNextMidnight())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Daily rollover service shutting down.")
			return
		case <-timer.C:
			s.TickOnce(ctx)
			timer.Reset(s.untilNextMidnight())
		}
	}
}

// TickOnce runs a single decay pass.
func (s *Service) TickOnce(ctx context.Context) {
	if changed := s.decayer.AdvanceDecay(ctx); changed > 0 {
		log.Printf("Daily rollover: decayed %d vessel(s)", changed)
	}
}

func (s *Service) untilNextMidnight() time.Duration {
	now := s.now()
	// Fire one second after midnight.
	return NextMidnight(now, s.loc).Sub(now) + time.Second
}

// NextMidnight returns the first instant of the day after t in loc.
func NextMidnight(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
}

package room

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"emotional-cup-backend/internal/vessel"
)

// Persister writes the document to durable on-device storage.
type Persister interface {
	SaveState(ctx context.Context, s State) error
}

// Syncer mirrors the document to the remote store. Schedule must not block.
type Syncer interface {
	Schedule(s State)
}

// Origin tells listeners where a change came from.
type Origin string

const (
	OriginLocal  Origin = "local"
	OriginDecay  Origin = "decay"
	OriginRemote Origin = "remote"
)

// Change is delivered to listeners after every committed mutation.
type Change struct {
	Prev   State
	Next   State
	Origin Origin
}

// ChangeFunc observes committed changes. It runs outside the store lock and
// must not mutate the store. Changes are delivered in commit order.
type ChangeFunc func(Change)

// Store is the single writer of a room document. Every mutation is
// serialized, written to local storage, and then scheduled for remote sync,
// in that order.
type Store struct {
	mu        sync.Mutex
	state     State
	persister Persister
	syncer    Syncer
	now       func() time.Time
	loc       *time.Location

	listenMu  sync.RWMutex
	listeners []ChangeFunc

	seq       uint64 // guarded by mu
	deliverMu sync.Mutex
	turn      *sync.Cond
	delivered uint64
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source used to compute "today".
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLocation sets the time zone in which calendar days are counted.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// NewStore creates a store around an already migrated document. A nil
// persister or syncer disables that side effect.
func NewStore(initial State, persister Persister, syncer Syncer, opts ...Option) *Store {
	s := &Store{
		state:     initial.Clone(),
		persister: persister,
		syncer:    syncer,
		now:       time.Now,
		loc:       time.Local,
	}
	s.turn = sync.NewCond(&s.deliverMu)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnChange registers a listener for committed changes.
func (s *Store) OnChange(fn ChangeFunc) {
	s.listenMu.Lock()
	defer s.listenMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Today returns the current calendar date in the store's time zone.
func (s *Store) Today() string {
	return vessel.Today(s.now().In(s.loc))
}

// Snapshot returns a deep copy of the current document.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Vessel returns a copy of one vessel.
func (s *Store) Vessel(id string) (vessel.Vessel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.state.Vessels[id]
	if !ok {
		return vessel.Vessel{}, fmt.Errorf("%w: %s", ErrVesselNotFound, id)
	}
	return vessel.Clone(v), nil
}

// CreateVessel appends a new default vessel to the room.
func (s *Store) CreateVessel(ctx context.Context, name string) (vessel.Vessel, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return vessel.Vessel{}, ErrEmptyName
	}
	var created vessel.Vessel
	err := s.mutate(ctx, OriginLocal, func(st *State, today string) error {
		created = vessel.New(name, today)
		st.Vessels[created.ID] = created
		st.Order = append(st.Order, created.ID)
		return nil
	})
	return created, err
}

// RenameVessel replaces a vessel's name. Blank names are rejected.
func (s *Store) RenameVessel(ctx context.Context, id, name string) (vessel.Vessel, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return vessel.Vessel{}, ErrEmptyName
	}
	return s.updateVessel(ctx, id, func(v vessel.Vessel, _ string) vessel.Vessel {
		v = vessel.Clone(v)
		v.Name = name
		return v
	})
}

// DeleteVessel removes a vessel. The last vessel of a room cannot be deleted.
func (s *Store) DeleteVessel(ctx context.Context, id string) error {
	return s.mutate(ctx, OriginLocal, func(st *State, _ string) error {
		if _, ok := st.Vessels[id]; !ok {
			return fmt.Errorf("%w: %s", ErrVesselNotFound, id)
		}
		if len(st.Order) <= 1 {
			return ErrLastVessel
		}
		delete(st.Vessels, id)
		order := st.Order[:0]
		for _, other := range st.Order {
			if other != id {
				order = append(order, other)
			}
		}
		st.Order = order
		return nil
	})
}

// AddEvent records an event on a vessel.
func (s *Store) AddEvent(ctx context.Context, id, label string, drops int) (vessel.Vessel, error) {
	return s.updateVessel(ctx, id, func(v vessel.Vessel, today string) vessel.Vessel {
		return vessel.ApplyEvent(v, label, drops, today)
	})
}

// UndoLast reverses the most recent event of a vessel.
func (s *Store) UndoLast(ctx context.Context, id string) (vessel.Vessel, error) {
	return s.updateVessel(ctx, id, vessel.UndoLast)
}

// UpdateSettings applies a settings patch to a vessel.
func (s *Store) UpdateSettings(ctx context.Context, id string, patch vessel.Patch) (vessel.Vessel, error) {
	return s.updateVessel(ctx, id, func(v vessel.Vessel, _ string) vessel.Vessel {
		return vessel.UpdateSettings(v, patch)
	})
}

// ResetVessel replaces a vessel with fresh defaults, keeping its identity.
func (s *Store) ResetVessel(ctx context.Context, id string) (vessel.Vessel, error) {
	return s.updateVessel(ctx, id, vessel.Reset)
}

// AdvanceDecay runs the decay engine on every vessel and returns how many
// vessels changed.
func (s *Store) AdvanceDecay(ctx context.Context) int {
	changed := 0
	_ = s.mutate(ctx, OriginDecay, func(st *State, today string) error {
		changed = decayAll(st, today)
		return nil
	})
	return changed
}

// AdoptRemote replaces the whole document with one received from the remote
// store (last writer wins). The document is migrated and caught up on decay
// first. It reports whether the local document changed.
//
// The adopted document is written locally but only pushed back to the remote
// when decay modified it.
func (s *Store) AdoptRemote(ctx context.Context, raw []byte) (bool, error) {
	today := s.Today()
	next := Migrate(raw, today)
	decayed := decayAll(&next, today)

	s.mu.Lock()
	if next.Equal(s.state) {
		s.mu.Unlock()
		return false, nil
	}
	prev := s.state
	s.state = next
	s.persistLocked(ctx)
	if decayed > 0 {
		s.scheduleLocked()
	}
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	s.deliver(seq, Change{Prev: prev, Next: next.Clone(), Origin: OriginRemote})
	return true, nil
}

func decayAll(st *State, today string) int {
	changed := 0
	for _, id := range st.Order {
		v, ok := st.Vessels[id]
		if !ok {
			continue
		}
		next := vessel.AdvanceDecay(v, today)
		if next.LastUpdateISO != v.LastUpdateISO {
			st.Vessels[id] = next
			changed++
		}
	}
	return changed
}

func (s *Store) updateVessel(ctx context.Context, id string, fn func(v vessel.Vessel, today string) vessel.Vessel) (vessel.Vessel, error) {
	var out vessel.Vessel
	err := s.mutate(ctx, OriginLocal, func(st *State, today string) error {
		v, ok := st.Vessels[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrVesselNotFound, id)
		}
		out = fn(v, today)
		st.Vessels[id] = out
		return nil
	})
	return vessel.Clone(out), err
}

// mutate applies fn to a copy of the document and commits it. Mutations that
// leave the document unchanged are not committed.
func (s *Store) mutate(ctx context.Context, origin Origin, fn func(st *State, today string) error) error {
	today := s.Today()

	s.mu.Lock()
	prev := s.state
	next := prev.Clone()
	if err := fn(&next, today); err != nil {
		s.mu.Unlock()
		return err
	}
	if next.Equal(prev) {
		s.mu.Unlock()
		return nil
	}
	s.state = next
	s.persistLocked(ctx)
	s.scheduleLocked()
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	s.deliver(seq, Change{Prev: prev, Next: next.Clone(), Origin: origin})
	return nil
}

func (s *Store) persistLocked(ctx context.Context) {
	if s.persister == nil {
		return
	}
	if err := s.persister.SaveState(ctx, s.state); err != nil {
		log.Printf("room: failed to persist state locally: %v", err)
	}
}

func (s *Store) scheduleLocked() {
	if s.syncer == nil {
		return
	}
	s.syncer.Schedule(s.state.Clone())
}

// deliver waits until every earlier commit has been delivered, then runs the
// listeners for seq.
func (s *Store) deliver(seq uint64, c Change) {
	s.deliverMu.Lock()
	for s.delivered != seq-1 {
		s.turn.Wait()
	}
	s.deliverMu.Unlock()

	defer func() {
		s.deliverMu.Lock()
		s.delivered = seq
		s.turn.Broadcast()
		s.deliverMu.Unlock()
	}()
	s.notify(c)
}

func (s *Store) notify(c Change) {
	s.listenMu.RLock()
	listeners := append([]ChangeFunc(nil), s.listeners...)
	s.listenMu.RUnlock()
	for _, fn := range listeners {
		fn(c)
	}
}

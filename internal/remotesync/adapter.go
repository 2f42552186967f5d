package remotesync

import (
	"context"
	"encoding/json"
	"log"
	"reflect"
	"sync"
	"time"

	"emotional-cup-backend/internal/room"
)

// Status is the coarse remote sync state shown to the user.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusSaving  Status = "saving"
	StatusSaved   Status = "saved"
	StatusError   Status = "error"
	StatusOffline Status = "offline"
)

// StatusReport is a point-in-time view of the adapter.
type StatusReport struct {
	Status      Status     `json:"status"`
	Enabled     bool       `json:"enabled"`
	RoomID      string     `json:"roomId"`
	Pending     bool       `json:"pending"`
	LastError   string     `json:"lastError,omitempty"`
	LastSavedAt *time.Time `json:"lastSavedAt,omitempty"`
}

// Sink receives documents read from the remote store.
type Sink interface {
	Snapshot() room.State
	AdoptRemote(ctx context.Context, raw []byte) (bool, error)
}

// Adapter mirrors one room to a RemoteStore. A nil remote turns every
// operation into a no-op.
type Adapter struct {
	remote       RemoteStore
	roomID       string
	writeTimeout time.Duration
	debouncer    *Debouncer[room.State]
	now          func() time.Time

	inflight sync.WaitGroup

	mu          sync.Mutex
	status      Status
	lastErr     string
	lastSavedAt time.Time
	lastWritten []byte
	closed      bool
}

// NewAdapter builds the sync adapter. window is the debounce delay and
// writeTimeout bounds every upsert.
func NewAdapter(remote RemoteStore, roomID string, window, writeTimeout time.Duration) *Adapter {
	a := &Adapter{
		remote:       remote,
		roomID:       roomID,
		writeTimeout: writeTimeout,
		now:          time.Now,
		status:       StatusIdle,
	}
	if remote == nil {
		a.status = StatusOffline
	}
	a.debouncer = NewDebouncer(window, func(s room.State) {
		ctx, cancel := context.WithTimeout(context.Background(), a.writeTimeout)
		defer cancel()
		_ = a.write(ctx, s)
	})
	return a
}

// Enabled reports whether a remote store is configured.
func (a *Adapter) Enabled() bool {
	return a.remote != nil
}

// RoomID returns the room this adapter mirrors.
func (a *Adapter) RoomID() string {
	return a.roomID
}

// Schedule queues a debounced write of s.
func (a *Adapter) Schedule(s room.State) {
	if a.remote == nil {
		return
	}
	a.debouncer.Trigger(s)
}

// SaveNow writes s immediately and waits for the result. Any pending
// debounced snapshot is superseded.
func (a *Adapter) SaveNow(ctx context.Context, s room.State) error {
	if a.remote == nil {
		return nil
	}
	a.debouncer.Flush()
	ctx, cancel := context.WithTimeout(ctx, a.writeTimeout)
	defer cancel()
	return a.write(ctx, s)
}

// FlushAsync starts a write of s without waiting for it. It is ignored once
// Close has been called.
func (a *Adapter) FlushAsync(s room.State) {
	if a.remote == nil {
		return
	}
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.inflight.Add(1)
	a.mu.Unlock()
	a.debouncer.Flush()
	go func() {
		defer a.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), a.writeTimeout)
		defer cancel()
		_ = a.write(ctx, s)
	}()
}

// Close writes any pending snapshot and waits for in-flight writes, including
// one started by the debounce timer, until ctx expires.
func (a *Adapter) Close(ctx context.Context) {
	if a.remote == nil {
		return
	}
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()

	if s, ok := a.debouncer.Stop(); ok {
		wctx, cancel := context.WithTimeout(ctx, a.writeTimeout)
		_ = a.write(wctx, s)
		cancel()
	}

	done := make(chan struct{})
	go func() {
		a.debouncer.Wait()
		a.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		log.Printf("Remote sync: gave up waiting for in-flight writes: %v", ctx.Err())
	}
}

// Status returns the current sync state.
func (a *Adapter) Status() StatusReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	r := StatusReport{
		Status:    a.status,
		Enabled:   a.remote != nil,
		RoomID:    a.roomID,
		LastError: a.lastErr,
	}
	if a.remote != nil {
		r.Pending = a.debouncer.Pending()
	}
	if !a.lastSavedAt.IsZero() {
		t := a.lastSavedAt
		r.LastSavedAt = &t
	}
	return r
}

// Run performs the initial reconciliation and then follows remote changes
// until ctx is done. A room that exists remotely is adopted; otherwise the
// local document is pushed.
func (a *Adapter) Run(ctx context.Context, sink Sink) error {
	if a.remote == nil {
		log.Println("Remote sync disabled: running local-only.")
		return nil
	}

	raw, found, err := a.remote.Fetch(ctx, a.roomID)
	switch {
	case err != nil:
		a.recordError(err)
		log.Printf("Remote sync: initial fetch failed: %v", err)
	case found:
		if _, err := sink.AdoptRemote(ctx, raw); err != nil {
			log.Printf("Remote sync: failed to adopt remote document: %v", err)
		}
	default:
		log.Printf("Room %s not found remotely, pushing local document", a.roomID)
		if err := a.SaveNow(ctx, sink.Snapshot()); err != nil {
			log.Printf("Remote sync: initial push failed: %v", err)
		}
	}

	// One fetch runs at a time. Notifications that arrive while it runs
	// collapse into a single follow-up fetch.
	kick := make(chan struct{}, 1)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-kick:
				a.refetch(ctx, sink)
			}
		}
	}()

	return a.remote.Subscribe(ctx, a.roomID, func() {
		select {
		case kick <- struct{}{}:
		default:
		}
	})
}

// refetch reads the room after a change notification and adopts it unless it
// is the document this adapter wrote last.
func (a *Adapter) refetch(ctx context.Context, sink Sink) {
	raw, found, err := a.remote.Fetch(ctx, a.roomID)
	if err != nil {
		log.Printf("Remote sync: refetch failed: %v", err)
		return
	}
	if !found || a.isOwnWrite(raw) {
		return
	}
	if _, err := sink.AdoptRemote(ctx, raw); err != nil {
		log.Printf("Remote sync: failed to adopt remote document: %v", err)
	}
}

func (a *Adapter) write(ctx context.Context, s room.State) error {
	raw, err := s.Marshal()
	if err != nil {
		a.recordError(err)
		return err
	}

	a.mu.Lock()
	a.status = StatusSaving
	a.mu.Unlock()

	if err := a.remote.Upsert(ctx, a.roomID, raw, a.now()); err != nil {
		a.recordError(err)
		log.Printf("Remote sync: upsert failed: %v", err)
		return err
	}

	a.mu.Lock()
	a.status = StatusSaved
	a.lastErr = ""
	a.lastSavedAt = a.now()
	a.lastWritten = raw
	a.mu.Unlock()
	return nil
}

func (a *Adapter) recordError(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status = StatusError
	a.lastErr = err.Error()
}

// isOwnWrite compares structurally since the remote re-encodes JSON.
func (a *Adapter) isOwnWrite(raw []byte) bool {
	a.mu.Lock()
	last := a.lastWritten
	a.mu.Unlock()
	if last == nil {
		return false
	}
	var x, y any
	if json.Unmarshal(raw, &x) != nil || json.Unmarshal(last, &y) != nil {
		return false
	}
	return reflect.DeepEqual(x, y)
}

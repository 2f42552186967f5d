package remotesync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"emotional-cup-backend/internal/model"
)

// ChangesChannel is the NOTIFY channel fed by the rooms update trigger. The
// payload is the id of the updated room.
const ChangesChannel = "rooms_changes"

const listenerPingInterval = 90 * time.Second

// RemoteStore is the shared document store rooms are mirrored to.
type RemoteStore interface {
	Upsert(ctx context.Context, roomID string, data []byte, updatedAt time.Time) error
	// Fetch returns the stored document; found is false when the room has
	// never been written.
	Fetch(ctx context.Context, roomID string) (data []byte, found bool, err error)
	// Subscribe calls fn whenever the room may have changed remotely and
	// blocks until ctx is done.
	Subscribe(ctx context.Context, roomID string, fn func()) error
}

// pgStore implements RemoteStore on PostgreSQL.
type pgStore struct {
	db  *gorm.DB
	dsn string
}

// NewPostgresStore wraps a migrated remote database. dsn is used to open the
// dedicated LISTEN connection.
func NewPostgresStore(db *gorm.DB, dsn string) RemoteStore {
	return &pgStore{db: db, dsn: dsn}
}

func (s *pgStore) Upsert(ctx context.Context, roomID string, data []byte, updatedAt time.Time) error {
	row := model.RoomRow{
		ID:        roomID,
		Data:      datatypes.JSON(data),
		UpdatedAt: updatedAt.UTC(),
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&row).Error; err != nil {
		return fmt.Errorf("upsert room %s: %w", roomID, err)
	}
	return nil
}

func (s *pgStore) Fetch(ctx context.Context, roomID string) ([]byte, bool, error) {
	var row model.RoomRow
	err := s.db.WithContext(ctx).Where("id = ?", roomID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("fetch room %s: %w", roomID, err)
	}
	return []byte(row.Data), true, nil
}

func (s *pgStore) Subscribe(ctx context.Context, roomID string, fn func()) error {
	listener := pq.NewListener(s.dsn, 2*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Printf("Remote listener event %d: %v", ev, err)
		}
	})
	defer listener.Close()

	if err := listener.Listen(ChangesChannel); err != nil {
		return fmt.Errorf("listen %s: %w", ChangesChannel, err)
	}
	log.Printf("Listening for changes to room %s", roomID)

	ticker := time.NewTicker(listenerPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-listener.Notify:
			if wantsRefetch(n, roomID) {
				fn()
			}
		case <-ticker.C:
			go func() {
				if err := listener.Ping(); err != nil {
					log.Printf("Remote listener ping failed: %v", err)
				}
			}()
		}
	}
}

// wantsRefetch filters notifications down to this room. A nil notification
// follows a reconnect, after which anything may have been missed.
func wantsRefetch(n *pq.Notification, roomID string) bool {
	if n == nil {
		return true
	}
	return n.Extra == roomID
}

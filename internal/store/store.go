package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"reflect"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"emotional-cup-backend/internal/model"
	"emotional-cup-backend/internal/room"
)

const (
	// StateKey holds the serialized room document.
	StateKey = "cup-room-state"
	// RoomIDKey holds the room identifier written back after generation.
	RoomIDKey = "cup-room-id"
)

// Store defines the on-device persistence operations.
type Store interface {
	// LoadState returns the raw stored document, or nil when none exists.
	LoadState(ctx context.Context) ([]byte, error)
	SaveState(ctx context.Context, s room.State) error
	RoomID(ctx context.Context) (string, error)
	SaveRoomID(ctx context.Context, id string) error
	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db, now: time.Now}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func (s *gormStore) LoadState(ctx context.Context) ([]byte, error) {
	doc, err := s.get(ctx, StateKey)
	if err != nil || doc == nil {
		return nil, err
	}
	return []byte(doc.Data), nil
}

// SaveState overwrites the stored document synchronously.
func (s *gormStore) SaveState(ctx context.Context, st room.State) error {
	raw, err := st.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode room state: %w", err)
	}
	return s.put(ctx, StateKey, raw)
}

// LoadRoom reads the stored document and migrates it to the current schema.
// The migrated document is written back when it differs from what was
// stored, so that bootstrapped vessel ids survive a restart.
func LoadRoom(ctx context.Context, s Store, today string) (room.State, error) {
	raw, err := s.LoadState(ctx)
	if err != nil {
		return room.State{}, err
	}
	st := room.Migrate(raw, today)

	migrated, err := st.Marshal()
	if err != nil {
		return room.State{}, fmt.Errorf("failed to encode room state: %w", err)
	}
	if raw != nil && sameJSON(raw, migrated) {
		return st, nil
	}
	if err := s.SaveState(ctx, st); err != nil {
		log.Printf("failed to persist migrated room state: %v", err)
	}
	return st, nil
}

func sameJSON(a, b []byte) bool {
	var x, y any
	if json.Unmarshal(a, &x) != nil || json.Unmarshal(b, &y) != nil {
		return false
	}
	return reflect.DeepEqual(x, y)
}

func (s *gormStore) RoomID(ctx context.Context) (string, error) {
	doc, err := s.get(ctx, RoomIDKey)
	if err != nil || doc == nil {
		return "", err
	}
	var id string
	if err := json.Unmarshal(doc.Data, &id); err != nil {
		return "", fmt.Errorf("stored room id is not a string: %w", err)
	}
	return id, nil
}

func (s *gormStore) SaveRoomID(ctx context.Context, id string) error {
	raw, err := json.Marshal(id)
	if err != nil {
		return err
	}
	return s.put(ctx, RoomIDKey, raw)
}

func (s *gormStore) get(ctx context.Context, key string) (*model.Document, error) {
	var doc model.Document
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return &doc, nil
}

func (s *gormStore) put(ctx context.Context, key string, raw []byte) error {
	doc := model.Document{
		Key:       key,
		Data:      datatypes.JSON(raw),
		UpdatedAt: s.now().UTC(),
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&doc).Error; err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

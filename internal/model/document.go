package model

import (
	"time"

	"gorm.io/datatypes"
)

// Document is one key/value entry of the on-device store.
type Document struct {
	Key       string         `gorm:"primaryKey;size:64"`
	Data      datatypes.JSON `gorm:"not null"`
	UpdatedAt time.Time      `gorm:"not null"`
}

// RoomRow is the shared copy of a room document in the remote database.
type RoomRow struct {
	ID        string         `gorm:"primaryKey"`
	Data      datatypes.JSON `gorm:"type:jsonb;not null"`
	UpdatedAt time.Time      `gorm:"not null"`
}

// TableName pins the remote table name used by the notify trigger.
func (RoomRow) TableName() string {
	return "rooms"
}

package model

import "time"

// PushSubscription holds the information for a browser push subscription.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`

	// Associations
	Vessels []SubscriptionVessel `gorm:"foreignKey:Endpoint;references:Endpoint;constraint:OnDelete:CASCADE"`
}

// SubscriptionVessel narrows a subscription to one vessel. A subscription
// without rows here receives alerts for every vessel of the room.
type SubscriptionVessel struct {
	Endpoint string `gorm:"primaryKey"`
	VesselID string `gorm:"primaryKey;size:64"`
}

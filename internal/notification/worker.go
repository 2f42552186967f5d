package notification

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"emotional-cup-backend/internal/model"
	"emotional-cup-backend/internal/room"
	"emotional-cup-backend/internal/vessel"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Alert reports a vessel that just entered its red zone.
type Alert struct {
	VesselID  string
	Name      string
	Level     int
	Threshold int
	Capacity  int
}

// Message is the text delivered to subscribers.
func (a Alert) Message() string {
	return fmt.Sprintf("%s está en zona roja (%d/%d gotas)", a.Name, a.Level, a.Capacity)
}

// DetectAlerts returns the vessels that crossed from below their threshold
// to at or above it.
func DetectAlerts(c room.Change) []Alert {
	var alerts []Alert
	for _, id := range c.Next.Order {
		next, ok := c.Next.Vessels[id]
		if !ok || !vessel.InRedZone(next) {
			continue
		}
		prev, existed := c.Prev.Vessels[id]
		if !existed || vessel.InRedZone(prev) {
			continue
		}
		alerts = append(alerts, Alert{
			VesselID:  id,
			Name:      next.Name,
			Level:     next.Level,
			Threshold: next.Threshold,
			Capacity:  next.Capacity,
		})
	}
	return alerts
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size    int
	jobs    chan Alert
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Alert, size*8),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Alert worker %d started", id)
	for {
		select {
		case alert := <-wp.jobs:
			log.Printf("Alert worker %d processing vessel %s", id, alert.VesselID)
			wp.sendAlert(ctx, alert)
		case <-ctx.Done():
			log.Printf("Alert worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues an alert. Alerts are dropped when the queue is full.
func (wp *WorkerPool) Dispatch(alert Alert) {
	select {
	case wp.jobs <- alert:
	default:
		log.Printf("Alert queue full, dropping alert for vessel %s", alert.VesselID)
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Alert {
	return wp.jobs
}

// OnChange is a room change listener.
func (wp *WorkerPool) OnChange(c room.Change) {
	for _, alert := range DetectAlerts(c) {
		wp.Dispatch(alert)
	}
}

// subscribersFor returns subscriptions with no vessel filter plus those that
// explicitly follow vesselID.
func (wp *WorkerPool) subscribersFor(ctx context.Context, vesselID string) ([]model.PushSubscription, error) {
	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Where("NOT EXISTS (SELECT 1 FROM subscription_vessels sv WHERE sv.endpoint = push_subscriptions.endpoint)").
		Or("EXISTS (SELECT 1 FROM subscription_vessels sv WHERE sv.endpoint = push_subscriptions.endpoint AND sv.vessel_id = ?)", vesselID).
		Find(&subscriptions).Error
	return subscriptions, err
}

func (wp *WorkerPool) sendAlert(ctx context.Context, alert Alert) {
	subscriptions, err := wp.subscribersFor(ctx, alert.VesselID)
	if err != nil {
		log.Printf("Error fetching subscriptions for vessel %s: %v", alert.VesselID, err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	log.Printf("Sending %d notifications for vessel %s", len(subscriptions), alert.VesselID)
	payload := []byte(alert.Message())
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := DeleteSubscription(wp.db.WithContext(ctx), sub.Endpoint); err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}

// DeleteSubscription removes a subscription and its vessel filter.
func DeleteSubscription(db *gorm.DB, endpoint string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("endpoint = ?", endpoint).Delete(&model.SubscriptionVessel{}).Error; err != nil {
			return err
		}
		return tx.Where("endpoint = ?", endpoint).Delete(&model.PushSubscription{}).Error
	})
}

package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"emotional-cup-backend/internal/model"
	"emotional-cup-backend/internal/notification"
)

type putSubscriptionRequest struct {
	Endpoint          string   `json:"endpoint" binding:"required"`
	P256DH            string   `json:"p256dh" binding:"required"`
	Auth              string   `json:"auth" binding:"required"`
	SubscribedVessels []string `json:"subscribed_vessels"`
}

// PutSubscription handles the creation or replacement of a subscription. An
// empty vessel list subscribes to every vessel of the room.
func (h *Handler) PutSubscription(c *gin.Context) {
	var req putSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "kind": "bad_request"})
		return
	}

	for _, id := range req.SubscribedVessels {
		if _, err := h.rooms.Vessel(id); err != nil {
			respondError(c, err)
			return
		}
	}

	subscription := model.PushSubscription{
		Endpoint: req.Endpoint,
		P256DH:   req.P256DH,
		Auth:     req.Auth,
	}

	err := h.store.DB().Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
		}).Omit("Vessels").Create(&subscription).Error; err != nil {
			return err
		}

		if err := tx.Where("endpoint = ?", req.Endpoint).Delete(&model.SubscriptionVessel{}).Error; err != nil {
			return err
		}
		if len(req.SubscribedVessels) == 0 {
			return nil
		}

		rows := make([]model.SubscriptionVessel, 0, len(req.SubscribedVessels))
		seen := make(map[string]bool, len(req.SubscribedVessels))
		for _, id := range req.SubscribedVessels {
			if seen[id] {
				continue
			}
			seen[id] = true
			rows = append(rows, model.SubscriptionVessel{Endpoint: req.Endpoint, VesselID: id})
		}
		return tx.Create(&rows).Error
	})

	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "kind": "unexpected"})
		return
	}

	c.Status(http.StatusCreated)
}

type deleteSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// DeleteSubscription handles the deletion of a subscription.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	var req deleteSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "kind": "bad_request"})
		return
	}

	if err := notification.DeleteSubscription(h.store.DB(), req.Endpoint); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "kind": "unexpected"})
		return
	}

	c.Status(http.StatusNoContent)
}

func rawQueryParam(rawQuery, key string) (string, bool) {
	for _, kv := range strings.Split(rawQuery, "&") {
		if strings.HasPrefix(kv, key+"=") {
			return kv[len(key)+1:], true // 不做 URL 解码
		}
	}
	return "", false
}

// GetSubscription handles the retrieval of a subscription.
func (h *Handler) GetSubscription(c *gin.Context) {
	raw, ok := rawQueryParam(c.Request.URL.RawQuery, "endpoint")
	if !ok || raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "endpoint is required", "kind": "bad_request"})
		return
	}

	var subscription model.PushSubscription
	if err := h.store.DB().Preload("Vessels").First(&subscription, "endpoint = ?", raw).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found", "kind": "not_found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "kind": "unexpected"})
		}
		return
	}

	vesselIDs := make([]string, len(subscription.Vessels))
	for i, v := range subscription.Vessels {
		vesselIDs[i] = v.VesselID
	}

	c.JSON(http.StatusOK, gin.H{"subscribed_vessels": vesselIDs})
}

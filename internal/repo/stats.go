// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries surfaced on
// the account status endpoint.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/xianyu-agent/internal/domain"
)

// CredentialStats summarizes the cached state of one credential.
type CredentialStats struct {
	Keywords        int64      `json:"keywords"`
	Items           int64      `json:"items"`
	DeliveredOrders int64      `json:"delivered_orders"`
	LastDeliveryAt  *time.Time `json:"last_delivery_at,omitempty"`
}

// StatsForCredential counts keywords, cached items and delivered orders of a
// credential and reports the most recent delivery time (nil when none).
func StatsForCredential(ctx context.Context, db *gorm.DB, credentialID string) (CredentialStats, error) {
	var st CredentialStats
	if err := db.WithContext(ctx).Model(&domain.Keyword{}).
		Where("credential_id = ?", credentialID).Count(&st.Keywords).Error; err != nil {
		return st, err
	}
	if err := db.WithContext(ctx).Model(&domain.Item{}).
		Where("credential_id = ?", credentialID).Count(&st.Items).Error; err != nil {
		return st, err
	}

	q := db.WithContext(ctx).Model(&domain.Order{}).
		Where("credential_id = ? AND status = ?", credentialID, domain.OrderStatusDelivered)
	if err := q.Count(&st.DeliveredOrders).Error; err != nil {
		return st, err
	}
	if st.DeliveredOrders == 0 {
		return st, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err := q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return st, err
	}
	st.LastDeliveryAt = &row.UpdatedAt
	return st, nil
}

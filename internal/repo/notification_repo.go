package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/xianyu-agent/internal/domain"
)

// CreateChannel inserts a notification channel.
func CreateChannel(ctx context.Context, db *gorm.DB, ch *domain.NotificationChannel) error {
	return db.WithContext(ctx).Create(ch).Error
}

// ListChannels returns every channel, oldest first.
func ListChannels(ctx context.Context, db *gorm.DB) ([]domain.NotificationChannel, error) {
	var out []domain.NotificationChannel
	err := db.WithContext(ctx).Order("id asc").Find(&out).Error
	return out, err
}

// BoundChannels returns the enabled channels bound (and enabled) for a
// credential.
func BoundChannels(ctx context.Context, db *gorm.DB, credentialID string) ([]domain.NotificationChannel, error) {
	var out []domain.NotificationChannel
	err := db.WithContext(ctx).
		Model(&domain.NotificationChannel{}).
		Joins("JOIN notification_bindings nb ON nb.channel_id = notification_channels.id").
		Where("nb.credential_id = ? AND nb.enabled = ? AND notification_channels.enabled = ?", credentialID, true, true).
		Order("notification_channels.id asc").
		Find(&out).Error
	return out, err
}

// ReplaceBindings sets the channel bindings of a credential to exactly
// channelIDs.
func ReplaceBindings(ctx context.Context, db *gorm.DB, credentialID string, channelIDs []uint) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("credential_id = ?", credentialID).Delete(&domain.NotificationBinding{}).Error; err != nil {
			return err
		}
		now := time.Now().UTC()
		for _, id := range channelIDs {
			b := &domain.NotificationBinding{CredentialID: credentialID, ChannelID: id, Enabled: true, CreatedAt: now}
			if err := tx.Create(b).Error; err != nil {
				if isDuplicate(err) {
					continue
				}
				return err
			}
		}
		return nil
	})
}

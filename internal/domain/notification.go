package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Notification channel kinds understood by the notify package.
const (
	ChannelWebhook  = "webhook"
	ChannelDingTalk = "dingtalk"
	ChannelFeishu   = "feishu"
	ChannelLog      = "log"
)

// NotificationChannel is a configured outbound adapter. Config is the
// adapter-specific JSON (for webhook kinds: {"url": "...", "secret": "..."}).
type NotificationChannel struct {
	ID          uint           `json:"id"      gorm:"primaryKey"`
	Name        string         `json:"name"    gorm:"type:varchar(64);not null"`
	Kind        string         `json:"kind"    gorm:"type:varchar(16);not null;check:kind IN ('webhook','dingtalk','feishu','log')"`
	Config      datatypes.JSON `json:"config"`
	Enabled     bool           `json:"enabled" gorm:"not null"`
	OwnerUserID *uint          `json:"owner_user_id,omitempty" gorm:"index"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// TableName returns the database table name for NotificationChannel.
func (NotificationChannel) TableName() string { return "notification_channels" }

// NotificationBinding routes a credential's events to a channel.
type NotificationBinding struct {
	ID           uint      `json:"id"            gorm:"primaryKey"`
	CredentialID string    `json:"credential_id" gorm:"type:varchar(64);not null;uniqueIndex:ux_binding,priority:1"`
	ChannelID    uint      `json:"channel_id"    gorm:"not null;uniqueIndex:ux_binding,priority:2"`
	Enabled      bool      `json:"enabled"       gorm:"not null"`
	CreatedAt    time.Time `json:"created_at"`

	Credential *Credential          `json:"-" gorm:"foreignKey:CredentialID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Channel    *NotificationChannel `json:"-" gorm:"foreignKey:ChannelID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for NotificationBinding.
func (NotificationBinding) TableName() string { return "notification_bindings" }

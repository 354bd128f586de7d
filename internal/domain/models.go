// Package domain defines the persistence models of the agent: session
// credentials and their per-account settings, reply and delivery rules,
// cached marketplace data, AI conversation history and notification
// routing. These types are mapped with GORM and shared by the repository,
// store and service layers.
//
// Every per-account table keys off credential_id and cascades on delete, so
// removing a credential removes everything derived from it.
package domain

import "time"

// Card kinds.
const (
	CardKindAPI   = "api"
	CardKindText  = "text"
	CardKindData  = "data"
	CardKindImage = "image"
)

// Keyword rule kinds.
const (
	KeywordKindText  = "text"
	KeywordKindImage = "image"
)

// AI conversation roles and intents.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	IntentPrice   = "price"
	IntentTech    = "tech"
	IntentDefault = "default"
)

// Order statuses written by the agent.
const (
	OrderStatusPending   = "pending"
	OrderStatusDelivered = "delivered"
)

// AccessToken is the short-lived websocket token derived from a credential.
// It is never persisted.
type AccessToken struct {
	Value    string
	IssuedAt time.Time
}

// Valid reports whether the token carries a value.
func (t AccessToken) Valid() bool { return t.Value != "" }

// All returns every model in migration order (parents before children).
func All() []any {
	return []any{
		&User{},
		&UserSetting{},
		&SystemSetting{},
		&Credential{},
		&CredentialStatus{},
		&Keyword{},
		&DefaultReply{},
		&DefaultReplyRecord{},
		&Card{},
		&DeliveryRule{},
		&Item{},
		&Order{},
		&AISettings{},
		&AIConversation{},
		&NotificationChannel{},
		&NotificationBinding{},
	}
}

package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Keyword maps a message substring to a canned reply. Rules with an ItemID
// apply only to conversations about that item and win over generic rules.
type Keyword struct {
	ID           uint      `json:"id"            gorm:"primaryKey"`
	CredentialID string    `json:"credential_id" gorm:"type:varchar(64);not null;index:idx_kw_cred_item,priority:1"`
	ItemID       string    `json:"item_id"       gorm:"type:varchar(32);index:idx_kw_cred_item,priority:2"`
	Keyword      string    `json:"keyword"       gorm:"type:varchar(255);not null"`
	Reply        string    `json:"reply"         gorm:"type:text"`
	Kind         string    `json:"kind"          gorm:"type:varchar(8);not null;check:kind IN ('text','image')"`
	ImageURL     string    `json:"image_url"     gorm:"type:text"`
	CreatedAt    time.Time `json:"created_at"`

	Credential *Credential `json:"-" gorm:"foreignKey:CredentialID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Keyword.
func (Keyword) TableName() string { return "keywords" }

// DefaultReply is the last-resort reply of a credential.
type DefaultReply struct {
	CredentialID string    `json:"credential_id" gorm:"type:varchar(64);primaryKey"`
	Enabled      bool      `json:"enabled"       gorm:"not null"`
	ReplyContent string    `json:"reply_content" gorm:"type:text"`
	ReplyOnce    bool      `json:"reply_once"    gorm:"not null"`
	UpdatedAt    time.Time `json:"updated_at"`

	Credential *Credential `json:"-" gorm:"foreignKey:CredentialID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for DefaultReply.
func (DefaultReply) TableName() string { return "default_replies" }

// DefaultReplyRecord is one ledger entry: the conversation already received
// its single default reply. The unique index is the reply-once gate.
type DefaultReplyRecord struct {
	ID           uint      `json:"id"            gorm:"primaryKey"`
	CredentialID string    `json:"credential_id" gorm:"type:varchar(64);not null;uniqueIndex:ux_default_reply_chat,priority:1"`
	ChatID       string    `json:"chat_id"       gorm:"type:varchar(64);not null;uniqueIndex:ux_default_reply_chat,priority:2"`
	CreatedAt    time.Time `json:"created_at"`

	Credential *Credential `json:"-" gorm:"foreignKey:CredentialID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for DefaultReplyRecord.
func (DefaultReplyRecord) TableName() string { return "default_reply_records" }

// AISettings configures the LLM reply stage for one credential.
// CustomPrompts is a JSON object with optional "classify", "price", "tech"
// and "default" system prompts overriding the built-in ones.
type AISettings struct {
	CredentialID      string         `json:"credential_id"       gorm:"type:varchar(64);primaryKey"`
	Enabled           bool           `json:"enabled"             gorm:"not null"`
	ModelName         string         `json:"model_name"          gorm:"type:varchar(64)"`
	APIKey            string         `json:"-"                   gorm:"type:varchar(255)"`
	BaseURL           string         `json:"base_url"            gorm:"type:varchar(255)"`
	MaxDiscountPct    int            `json:"max_discount_pct"    gorm:"not null"`
	MaxDiscountAmount int            `json:"max_discount_amount" gorm:"not null"`
	MaxBargainRounds  int            `json:"max_bargain_rounds"  gorm:"not null"`
	CustomPrompts     datatypes.JSON `json:"custom_prompts,omitempty"`
	UpdatedAt         time.Time      `json:"updated_at"`

	Credential *Credential `json:"-" gorm:"foreignKey:CredentialID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for AISettings.
func (AISettings) TableName() string { return "ai_settings" }

// AIConversation is one turn of an AI-handled conversation. User turns carry
// the detected intent; bargain rounds are counted from price-intent user turns.
type AIConversation struct {
	ID           uint      `json:"id"            gorm:"primaryKey"`
	CredentialID string    `json:"credential_id" gorm:"type:varchar(64);not null;index:idx_ai_conv,priority:1"`
	ChatID       string    `json:"chat_id"       gorm:"type:varchar(64);not null;index:idx_ai_conv,priority:2"`
	UserID       string    `json:"user_id"       gorm:"type:varchar(64)"`
	ItemID       string    `json:"item_id"       gorm:"type:varchar(32)"`
	Role         string    `json:"role"          gorm:"type:varchar(16);not null;check:role IN ('user','assistant')"`
	Content      string    `json:"content"       gorm:"type:text;not null"`
	Intent       string    `json:"intent"        gorm:"type:varchar(16)"`
	CreatedAt    time.Time `json:"created_at"    gorm:"index:idx_ai_conv,priority:3"`

	Credential *Credential `json:"-" gorm:"foreignKey:CredentialID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for AIConversation.
func (AIConversation) TableName() string { return "ai_conversations" }

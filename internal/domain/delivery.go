package domain

import (
	"math"
	"strconv"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Card is a unit of deliverable content.
//
// Kinds:
//   - text:  TextContent is sent verbatim.
//   - data:  DataContent holds one secret per line, consumed head first.
//   - api:   APIConfig describes an HTTP call whose response is the content.
//   - image: ImageURL is sent as a picture message.
//
// Description, when set, is a template around the rendered content
// ({DELIVERY_CONTENT}). DelaySeconds postpones the shipment confirmation.
type Card struct {
	ID           uint           `json:"id"            gorm:"primaryKey"`
	Name         string         `json:"name"          gorm:"type:varchar(255);not null"`
	Kind         string         `json:"kind"          gorm:"type:varchar(8);not null;check:kind IN ('api','text','data','image')"`
	APIConfig    datatypes.JSON `json:"api_config,omitempty"`
	TextContent  string         `json:"text_content"  gorm:"type:text"`
	DataContent  string         `json:"data_content"  gorm:"type:text"`
	ImageURL     string         `json:"image_url"     gorm:"type:text"`
	Description  string         `json:"description"   gorm:"type:text"`
	DelaySeconds int            `json:"delay_seconds" gorm:"not null"`
	Enabled      bool           `json:"enabled"       gorm:"not null"`
	OwnerUserID  *uint          `json:"owner_user_id,omitempty" gorm:"index"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// TableName returns the database table name for Card.
func (Card) TableName() string { return "cards" }

// CardAPIConfig is the decoded form of Card.APIConfig.
type CardAPIConfig struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
	Params  datatypes.JSON    `json:"params"`
	Timeout int               `json:"timeout"` // seconds
}

// DeliveryRule associates a keyword with a card, optionally constrained to
// one product spec (SpecName/SpecValue).
type DeliveryRule struct {
	ID            uint      `json:"id"             gorm:"primaryKey"`
	Keyword       string    `json:"keyword"        gorm:"type:varchar(255);not null;index"`
	CardID        uint      `json:"card_id"        gorm:"not null;index"`
	Enabled       bool      `json:"enabled"        gorm:"not null"`
	Description   string    `json:"description"    gorm:"type:text"`
	DeliveryCount int       `json:"delivery_count" gorm:"not null"`
	SpecName      string    `json:"spec_name"      gorm:"type:varchar(64)"`
	SpecValue     string    `json:"spec_value"     gorm:"type:varchar(128)"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	Card *Card `json:"card,omitempty" gorm:"foreignKey:CardID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for DeliveryRule.
func (DeliveryRule) TableName() string { return "delivery_rules" }

// IsMultiSpec reports whether the rule is constrained to a spec.
func (r DeliveryRule) IsMultiSpec() bool { return r.SpecName != "" && r.SpecValue != "" }

// RankKeyword and RankID order rules for matching.
func (r DeliveryRule) RankKeyword() string { return r.Keyword }
func (r DeliveryRule) RankID() uint        { return r.ID }

// Item caches marketplace product data for one credential.
type Item struct {
	ID                    uint      `json:"id"            gorm:"primaryKey"`
	CredentialID          string    `json:"credential_id" gorm:"type:varchar(64);not null;uniqueIndex:ux_item_cred,priority:1"`
	ItemID                string    `json:"item_id"       gorm:"type:varchar(32);not null;uniqueIndex:ux_item_cred,priority:2"`
	Title                 string    `json:"title"         gorm:"type:varchar(255)"`
	Description           string    `json:"description"   gorm:"type:text"`
	Category              string    `json:"category"      gorm:"type:varchar(128)"`
	Price                 string    `json:"price"         gorm:"type:varchar(32)"`
	Detail                string    `json:"detail"        gorm:"type:text"`
	IsMultiSpec           bool      `json:"is_multi_spec"           gorm:"not null"`
	MultiQuantityDelivery bool      `json:"multi_quantity_delivery" gorm:"not null"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`

	Credential *Credential `json:"-" gorm:"foreignKey:CredentialID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Item.
func (Item) TableName() string { return "items" }

// Order caches facts harvested from an order detail page.
type Order struct {
	OrderID      string    `json:"order_id"      gorm:"type:varchar(32);primaryKey"`
	CredentialID string    `json:"credential_id" gorm:"type:varchar(64);not null;index"`
	ItemID       string    `json:"item_id"       gorm:"type:varchar(32)"`
	BuyerID      string    `json:"buyer_id"      gorm:"type:varchar(64)"`
	SpecName     string    `json:"spec_name"     gorm:"type:varchar(64)"`
	SpecValue    string    `json:"spec_value"    gorm:"type:varchar(128)"`
	Quantity     int       `json:"quantity"      gorm:"not null"`
	Amount       string    `json:"amount"        gorm:"type:varchar(32)"`
	Status       string    `json:"status"        gorm:"type:varchar(16)"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Credential *Credential `json:"-" gorm:"foreignKey:CredentialID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Order.
func (Order) TableName() string { return "orders" }

// Fresh reports whether the cached order can be used without refetching:
// the amount must parse to a positive finite number.
func (o Order) Fresh() bool {
	s := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(o.Amount), "¥"))
	if s == "" {
		return false
	}
	v, err := strconv.ParseFloat(s, 64)
	return err == nil && v > 0 && !math.IsInf(v, 0)
}

package domain

import "time"

// Credential is a seller session: an opaque cookie-jar blob plus the
// per-account knobs the runtime reads on every event.
//
// Fields:
//   - ID: operator-chosen identifier, unique across the fleet.
//   - Value: serialized cookie jar ("k1=v1; k2=v2"); must carry unb.
//   - PauseMinutes: human-takeover window; 0 disables pausing. New
//     accounts get DefaultPauseMinutes unless told otherwise.
//   - AutoConfirm: confirm shipment after a successful delivery.
//   - Enabled: materialized from credential_status, not a column.
type Credential struct {
	ID           string    `json:"id"            gorm:"type:varchar(64);primaryKey"`
	Value        string    `json:"-"             gorm:"type:text;not null"`
	OwnerUserID  *uint     `json:"owner_user_id,omitempty" gorm:"index"`
	PauseMinutes int       `json:"pause_minutes" gorm:"not null"`
	AutoConfirm  bool      `json:"auto_confirm"  gorm:"not null"`
	Remark       string    `json:"remark"        gorm:"type:varchar(255)"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Enabled bool `json:"enabled" gorm:"-"`
}

// DefaultPauseMinutes is the takeover window of an account created without one.
const DefaultPauseMinutes = 10

// TableName returns the database table name for Credential.
func (Credential) TableName() string { return "credentials" }

// CredentialStatus stores the enable flag apart from the blob so that blob
// rotation never races with operator toggles. A missing row means enabled.
type CredentialStatus struct {
	CredentialID string    `json:"credential_id" gorm:"type:varchar(64);primaryKey"`
	Enabled      bool      `json:"enabled"       gorm:"not null"`
	UpdatedAt    time.Time `json:"updated_at"`

	Credential *Credential `json:"-" gorm:"foreignKey:CredentialID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for CredentialStatus.
func (CredentialStatus) TableName() string { return "credential_status" }

// User owns credentials, cards and notification channels.
type User struct {
	ID        uint      `json:"id"        gorm:"primaryKey"`
	Username  string    `json:"username"  gorm:"type:varchar(64);not null;uniqueIndex"`
	Email     string    `json:"email"     gorm:"type:varchar(255)"`
	IsAdmin   bool      `json:"is_admin"  gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// UserSetting is a per-user key/value preference.
type UserSetting struct {
	ID        uint      `json:"id"      gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"not null;uniqueIndex:ux_user_setting,priority:1"`
	Key       string    `json:"key"     gorm:"type:varchar(64);not null;uniqueIndex:ux_user_setting,priority:2"`
	Value     string    `json:"value"   gorm:"type:text"`
	UpdatedAt time.Time `json:"updated_at"`

	User *User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for UserSetting.
func (UserSetting) TableName() string { return "user_settings" }

// SystemSetting is a process-wide key/value setting editable at runtime.
type SystemSetting struct {
	Key         string    `json:"key"   gorm:"type:varchar(64);primaryKey"`
	Value       string    `json:"value" gorm:"type:text"`
	Description string    `json:"description" gorm:"type:varchar(255)"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for SystemSetting.
func (SystemSetting) TableName() string { return "system_settings" }

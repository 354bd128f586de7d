// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for credentials
// and their enable flag.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They follow the "thin repository"
// approach: no business logic, only persistence and query composition.
//
// Error semantics:
//   - When a credential is not found, functions return ErrNotFound.
//   - Creating a credential whose id already exists returns ErrDuplicate.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/xianyu-agent/internal/domain"
)

// CreateCredential inserts a credential and its status row in one transaction.
func CreateCredential(ctx context.Context, db *gorm.DB, c *domain.Credential) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(c).Error; err != nil {
			if isDuplicate(err) {
				return ErrDuplicate
			}
			return err
		}
		st := &domain.CredentialStatus{CredentialID: c.ID, Enabled: c.Enabled, UpdatedAt: time.Now().UTC()}
		return tx.Create(st).Error
	})
}

// GetCredential fetches a credential with its enable flag materialized.
func GetCredential(ctx context.Context, db *gorm.DB, id string) (*domain.Credential, error) {
	var c domain.Credential
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	enabled, err := credentialEnabled(ctx, db, id)
	if err != nil {
		return nil, err
	}
	c.Enabled = enabled
	return &c, nil
}

// ListCredentials returns every credential ordered by id, enable flags
// materialized.
func ListCredentials(ctx context.Context, db *gorm.DB) ([]domain.Credential, error) {
	var out []domain.Credential
	if err := db.WithContext(ctx).Order("id asc").Find(&out).Error; err != nil {
		return nil, err
	}
	var st []domain.CredentialStatus
	if err := db.WithContext(ctx).Find(&st).Error; err != nil {
		return nil, err
	}
	flags := make(map[string]bool, len(st))
	for _, s := range st {
		flags[s.CredentialID] = s.Enabled
	}
	for i := range out {
		enabled, ok := flags[out[i].ID]
		out[i].Enabled = !ok || enabled
	}
	return out, nil
}

// UpdateCredentialValue replaces the cookie blob of a credential.
func UpdateCredentialValue(ctx context.Context, db *gorm.DB, id, value string) error {
	res := db.WithContext(ctx).
		Model(&domain.Credential{}).
		Where("id = ?", id).
		Update("value", value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateCredentialSettings updates the operator-editable knobs.
func UpdateCredentialSettings(ctx context.Context, db *gorm.DB, id string, pauseMinutes int, autoConfirm bool, remark string) error {
	res := db.WithContext(ctx).
		Model(&domain.Credential{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"pause_minutes": pauseMinutes,
			"auto_confirm":  autoConfirm,
			"remark":        remark,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCredential removes a credential; per-account rows cascade.
func DeleteCredential(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Credential{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetCredentialEnabled upserts the enable flag.
func SetCredentialEnabled(ctx context.Context, db *gorm.DB, id string, enabled bool) error {
	st := &domain.CredentialStatus{CredentialID: id, Enabled: enabled, UpdatedAt: time.Now().UTC()}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "credential_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"enabled", "updated_at"}),
	}).Create(st).Error
}

func credentialEnabled(ctx context.Context, db *gorm.DB, id string) (bool, error) {
	var st domain.CredentialStatus
	err := db.WithContext(ctx).Where("credential_id = ?", id).First(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return st.Enabled, nil
}

package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/xianyu-agent/internal/domain"
)

// CreateKeyword inserts a keyword rule. Kind defaults to text.
func CreateKeyword(ctx context.Context, db *gorm.DB, k *domain.Keyword) error {
	if k.Kind == "" {
		k.Kind = domain.KeywordKindText
	}
	return db.WithContext(ctx).Create(k).Error
}

// ListKeywords returns every keyword rule of a credential, oldest first.
func ListKeywords(ctx context.Context, db *gorm.DB, credentialID string) ([]domain.Keyword, error) {
	var out []domain.Keyword
	err := db.WithContext(ctx).
		Where("credential_id = ?", credentialID).
		Order("id asc").
		Find(&out).Error
	return out, err
}

// ListItemKeywords returns the rules scoped to one item.
func ListItemKeywords(ctx context.Context, db *gorm.DB, credentialID, itemID string) ([]domain.Keyword, error) {
	var out []domain.Keyword
	err := db.WithContext(ctx).
		Where("credential_id = ? AND item_id = ?", credentialID, itemID).
		Order("id asc").
		Find(&out).Error
	return out, err
}

// ListGenericKeywords returns the rules not scoped to any item.
func ListGenericKeywords(ctx context.Context, db *gorm.DB, credentialID string) ([]domain.Keyword, error) {
	var out []domain.Keyword
	err := db.WithContext(ctx).
		Where("credential_id = ? AND (item_id IS NULL OR item_id = '')", credentialID).
		Order("id asc").
		Find(&out).Error
	return out, err
}

// UpdateKeywordImageURL persists the CDN URL of an uploaded keyword image.
func UpdateKeywordImageURL(ctx context.Context, db *gorm.DB, id uint, url string) error {
	res := db.WithContext(ctx).
		Model(&domain.Keyword{}).
		Where("id = ?", id).
		Update("image_url", url)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteKeyword removes a keyword rule owned by credentialID.
func DeleteKeyword(ctx context.Context, db *gorm.DB, credentialID string, id uint) error {
	res := db.WithContext(ctx).
		Where("id = ? AND credential_id = ?", id, credentialID).
		Delete(&domain.Keyword{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

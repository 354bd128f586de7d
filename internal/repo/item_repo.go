package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/xianyu-agent/internal/domain"
)

// GetItem fetches a cached item of a credential or returns ErrNotFound.
func GetItem(ctx context.Context, db *gorm.DB, credentialID, itemID string) (*domain.Item, error) {
	var it domain.Item
	err := db.WithContext(ctx).
		Where("credential_id = ? AND item_id = ?", credentialID, itemID).
		First(&it).Error
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// ListItems returns the cached items of a credential, most recent first.
func ListItems(ctx context.Context, db *gorm.DB, credentialID string) ([]domain.Item, error) {
	var out []domain.Item
	err := db.WithContext(ctx).
		Where("credential_id = ?", credentialID).
		Order("updated_at desc").
		Find(&out).Error
	return out, err
}

// UpsertItem inserts an item or merges it into the cached row. Non-empty
// cached fields are never overwritten with empty values, and the spec
// flags are left to SetItemFlags.
func UpsertItem(ctx context.Context, db *gorm.DB, in *domain.Item) (*domain.Item, error) {
	var out *domain.Item
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur domain.Item
		err := tx.Where("credential_id = ? AND item_id = ?", in.CredentialID, in.ItemID).First(&cur).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			row := *in
			row.ID = 0
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			out = &row
			return nil
		}
		if err != nil {
			return err
		}
		updates := map[string]any{}
		mergeString(updates, "title", cur.Title, in.Title)
		mergeString(updates, "description", cur.Description, in.Description)
		mergeString(updates, "category", cur.Category, in.Category)
		mergeString(updates, "price", cur.Price, in.Price)
		mergeString(updates, "detail", cur.Detail, in.Detail)
		if len(updates) > 0 {
			updates["updated_at"] = time.Now().UTC()
			if err := tx.Model(&domain.Item{}).Where("id = ?", cur.ID).Updates(updates).Error; err != nil {
				return err
			}
			if err := tx.Where("id = ?", cur.ID).First(&cur).Error; err != nil {
				return err
			}
		}
		out = &cur
		return nil
	})
	return out, err
}

// UpdateItemDetail is the dedicated writer for the detail field.
func UpdateItemDetail(ctx context.Context, db *gorm.DB, credentialID, itemID, detail string) error {
	res := db.WithContext(ctx).
		Model(&domain.Item{}).
		Where("credential_id = ? AND item_id = ?", credentialID, itemID).
		Updates(map[string]any{"detail": detail, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ItemFlags is a partial update of the delivery flags of an item. Nil
// fields are left untouched.
type ItemFlags struct {
	MultiSpec     *bool
	MultiQuantity *bool
}

// SetItemFlags applies f to the cached item. An empty f only checks that
// the item exists.
func SetItemFlags(ctx context.Context, db *gorm.DB, credentialID, itemID string, f ItemFlags) error {
	updates := map[string]any{"updated_at": time.Now().UTC()}
	if f.MultiSpec != nil {
		updates["is_multi_spec"] = *f.MultiSpec
	}
	if f.MultiQuantity != nil {
		updates["multi_quantity_delivery"] = *f.MultiQuantity
	}
	res := db.WithContext(ctx).
		Model(&domain.Item{}).
		Where("credential_id = ? AND item_id = ?", credentialID, itemID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func mergeString(updates map[string]any, col, cur, next string) {
	if next != "" && next != cur {
		updates[col] = next
	}
}

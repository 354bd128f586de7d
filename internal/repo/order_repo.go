package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/xianyu-agent/internal/domain"
)

// GetOrder fetches a cached order or returns ErrNotFound.
func GetOrder(ctx context.Context, db *gorm.DB, orderID string) (*domain.Order, error) {
	var o domain.Order
	if err := db.WithContext(ctx).Where("order_id = ?", orderID).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

// UpsertOrder inserts or merges order facts. Empty strings and zero
// quantities in the input never clear cached values.
func UpsertOrder(ctx context.Context, db *gorm.DB, in *domain.Order) (*domain.Order, error) {
	var out *domain.Order
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur domain.Order
		err := tx.Where("order_id = ?", in.OrderID).First(&cur).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			row := *in
			if row.Status == "" {
				row.Status = domain.OrderStatusPending
			}
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
		mergeString(updates, "item_id", cur.ItemID, in.ItemID)
		mergeString(updates, "buyer_id", cur.BuyerID, in.BuyerID)
		mergeString(updates, "spec_name", cur.SpecName, in.SpecName)
		mergeString(updates, "spec_value", cur.SpecValue, in.SpecValue)
		mergeString(updates, "amount", cur.Amount, in.Amount)
		mergeString(updates, "status", cur.Status, in.Status)
		if in.Quantity > 0 && in.Quantity != cur.Quantity {
			updates["quantity"] = in.Quantity
		}
		if len(updates) > 0 {
			updates["updated_at"] = time.Now().UTC()
			if err := tx.Model(&domain.Order{}).Where("order_id = ?", cur.OrderID).Updates(updates).Error; err != nil {
				return err
			}
			if err := tx.Where("order_id = ?", cur.OrderID).First(&cur).Error; err != nil {
				return err
			}
		}
		out = &cur
		return nil
	})
	return out, err
}

// SetOrderStatus records the agent-side status of an order, creating a stub
// row when the order was never cached.
func SetOrderStatus(ctx context.Context, db *gorm.DB, credentialID, orderID, status string) error {
	_, err := UpsertOrder(ctx, db, &domain.Order{OrderID: orderID, CredentialID: credentialID, Status: status})
	return err
}

package repo

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/xianyu-agent/internal/domain"
)

// ErrNoData is returned by PopCardLine when the card's queue is exhausted.
var ErrNoData = errors.New("card data exhausted")

// CreateCard inserts a card.
func CreateCard(ctx context.Context, db *gorm.DB, c *domain.Card) error {
	return db.WithContext(ctx).Create(c).Error
}

// GetCard fetches a card by id or returns ErrNotFound.
func GetCard(ctx context.Context, db *gorm.DB, id uint) (*domain.Card, error) {
	var c domain.Card
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCards returns cards visible to owner (nil lists all), newest first.
func ListCards(ctx context.Context, db *gorm.DB, owner *uint) ([]domain.Card, error) {
	var out []domain.Card
	q := db.WithContext(ctx).Order("id desc")
	if owner != nil {
		q = q.Where("owner_user_id = ?", *owner)
	}
	err := q.Find(&out).Error
	return out, err
}

// PopCardLine removes and returns the first non-empty line of a data card.
// Read and write happen in one transaction; callers serialize per card so
// that two pops never observe the same head.
func PopCardLine(ctx context.Context, db *gorm.DB, cardID uint) (string, error) {
	var line string
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c domain.Card
		if err := tx.Where("id = ?", cardID).First(&c).Error; err != nil {
			return err
		}
		lines := strings.Split(strings.ReplaceAll(c.DataContent, "\r\n", "\n"), "\n")
		idx := -1
		for i, l := range lines {
			if strings.TrimSpace(l) != "" {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrNoData
		}
		line = strings.TrimSpace(lines[idx])
		rest := strings.Join(lines[idx+1:], "\n")
		return tx.Model(&domain.Card{}).
			Where("id = ?", cardID).
			Update("data_content", rest).Error
	})
	if err != nil {
		return "", err
	}
	return line, nil
}

// CreateDeliveryRule inserts a delivery rule.
func CreateDeliveryRule(ctx context.Context, db *gorm.DB, r *domain.DeliveryRule) error {
	return db.WithContext(ctx).Create(r).Error
}

// ListDeliveryRules returns every rule with its card, newest first.
func ListDeliveryRules(ctx context.Context, db *gorm.DB) ([]domain.DeliveryRule, error) {
	var out []domain.DeliveryRule
	err := db.WithContext(ctx).Preload("Card").Order("id desc").Find(&out).Error
	return out, err
}

// RuleQuery selects candidate delivery rules.
type RuleQuery struct {
	Owner     *uint  // restrict to cards of this user (or unowned cards)
	Spec      bool   // true: only rules for SpecName/SpecValue; false: only non-spec rules
	SpecName  string // used when Spec is true
	SpecValue string // used when Spec is true
}

// FindDeliveryRules returns enabled rules with enabled cards, ranked by
// keyword length descending then id ascending.
func FindDeliveryRules(ctx context.Context, db *gorm.DB, q RuleQuery) ([]domain.DeliveryRule, error) {
	tx := db.WithContext(ctx).
		Model(&domain.DeliveryRule{}).
		Joins("JOIN cards ON cards.id = delivery_rules.card_id").
		Where("delivery_rules.enabled = ? AND cards.enabled = ?", true, true)
	if q.Owner != nil {
		tx = tx.Where("(cards.owner_user_id = ? OR cards.owner_user_id IS NULL)", *q.Owner)
	}
	if q.Spec {
		tx = tx.Where("delivery_rules.spec_name = ? AND delivery_rules.spec_value = ?", q.SpecName, q.SpecValue)
	} else {
		tx = tx.Where("COALESCE(delivery_rules.spec_name, '') = '' AND COALESCE(delivery_rules.spec_value, '') = ''")
	}
	var out []domain.DeliveryRule
	err := tx.Preload("Card").
		Order("length(delivery_rules.keyword) desc, delivery_rules.id asc").
		Find(&out).Error
	return out, err
}

// IncrementRuleDeliveryCount bumps the delivered counter of a rule.
func IncrementRuleDeliveryCount(ctx context.Context, db *gorm.DB, ruleID uint, n int) error {
	return db.WithContext(ctx).
		Model(&domain.DeliveryRule{}).
		Where("id = ?", ruleID).
		UpdateColumn("delivery_count", gorm.Expr("delivery_count + ?", n)).Error
}

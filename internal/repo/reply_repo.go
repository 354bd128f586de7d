package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/xianyu-agent/internal/domain"
)

// GetDefaultReply returns the default reply of a credential or ErrNotFound.
func GetDefaultReply(ctx context.Context, db *gorm.DB, credentialID string) (*domain.DefaultReply, error) {
	var r domain.DefaultReply
	if err := db.WithContext(ctx).Where("credential_id = ?", credentialID).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// UpsertDefaultReply creates or replaces the default reply of a credential.
func UpsertDefaultReply(ctx context.Context, db *gorm.DB, r *domain.DefaultReply) error {
	r.UpdatedAt = time.Now().UTC()
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "credential_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"enabled", "reply_content", "reply_once", "updated_at"}),
	}).Create(r).Error
}

// InsertDefaultReplyRecord appends (credentialID, chatID) to the reply-once
// ledger. It returns ErrDuplicate when the conversation was already served,
// which makes the insert itself the reply-once gate.
func InsertDefaultReplyRecord(ctx context.Context, db *gorm.DB, credentialID, chatID string) error {
	rec := &domain.DefaultReplyRecord{CredentialID: credentialID, ChatID: chatID, CreatedAt: time.Now().UTC()}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetAISettings returns the AI settings of a credential or ErrNotFound.
func GetAISettings(ctx context.Context, db *gorm.DB, credentialID string) (*domain.AISettings, error) {
	var s domain.AISettings
	if err := db.WithContext(ctx).Where("credential_id = ?", credentialID).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// UpsertAISettings creates or replaces the AI settings of a credential.
func UpsertAISettings(ctx context.Context, db *gorm.DB, s *domain.AISettings) error {
	s.UpdatedAt = time.Now().UTC()
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "credential_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"enabled", "model_name", "api_key", "base_url",
			"max_discount_pct", "max_discount_amount", "max_bargain_rounds",
			"custom_prompts", "updated_at",
		}),
	}).Create(s).Error
}

// AppendConversation stores conversation turns in order.
func AppendConversation(ctx context.Context, db *gorm.DB, turns ...*domain.AIConversation) error {
	if len(turns) == 0 {
		return nil
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		for i, t := range turns {
			if t.CreatedAt.IsZero() {
				// keep insertion order stable when turns share a timestamp
				t.CreatedAt = now.Add(time.Duration(i) * time.Microsecond)
			}
			if err := tx.Create(t).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// RecentConversation returns the last limit turns of a conversation in
// chronological order.
func RecentConversation(ctx context.Context, db *gorm.DB, credentialID, chatID string, limit int) ([]domain.AIConversation, error) {
	var out []domain.AIConversation
	err := db.WithContext(ctx).
		Where("credential_id = ? AND chat_id = ?", credentialID, chatID).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// CountBargainRounds counts the user turns tagged with the price intent.
func CountBargainRounds(ctx context.Context, db *gorm.DB, credentialID, chatID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.AIConversation{}).
		Where("credential_id = ? AND chat_id = ? AND role = ? AND intent = ?",
			credentialID, chatID, domain.RoleUser, domain.IntentPrice).
		Count(&n).Error
	return n, err
}

// IsNotFound is a convenience for errors.Is(err, ErrNotFound).
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

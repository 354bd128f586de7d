package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/xianyu-agent/internal/domain"
)

// GetSystemSetting returns the value stored under key or ErrNotFound.
func GetSystemSetting(ctx context.Context, db *gorm.DB, key string) (string, error) {
	var s domain.SystemSetting
	if err := db.WithContext(ctx).Where("key = ?", key).First(&s).Error; err != nil {
		return "", err
	}
	return s.Value, nil
}

// SetSystemSetting upserts a system setting.
func SetSystemSetting(ctx context.Context, db *gorm.DB, key, value string) error {
	s := &domain.SystemSetting{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(s).Error
}

// CreateUser inserts a user; a taken username returns ErrDuplicate.
func CreateUser(ctx context.Context, db *gorm.DB, u *domain.User) error {
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetUserSetting returns a user's setting or ErrNotFound.
func GetUserSetting(ctx context.Context, db *gorm.DB, userID uint, key string) (string, error) {
	var s domain.UserSetting
	if err := db.WithContext(ctx).Where("user_id = ? AND key = ?", userID, key).First(&s).Error; err != nil {
		return "", err
	}
	return s.Value, nil
}

// SetUserSetting upserts a user's setting.
func SetUserSetting(ctx context.Context, db *gorm.DB, userID uint, key, value string) error {
	s := &domain.UserSetting{UserID: userID, Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(s).Error
}

package commission

import (
	"context"

	"gorm.io/gorm"

	"github.com/tobiumeh/vendora-backend/pkg/db/models"
)

// SettingsRepository reads operator-tunable platform settings.
type SettingsRepository interface {
	FindSetting(ctx context.Context, key string) (*models.PlatformSetting, error)
}

type settingsRepository struct {
	db *gorm.DB
}

// NewSettingsRepository builds a platform settings repository bound to the provided DB.
func NewSettingsRepository(db *gorm.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) FindSetting(ctx context.Context, key string) (*models.PlatformSetting, error) {
	var setting models.PlatformSetting
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&setting).Error
	if err != nil {
		return nil, err
	}
	return &setting, nil
}

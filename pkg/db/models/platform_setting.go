package models

import "time"

// PlatformSetting is a key/value row for operator-tunable values such as the
// commission rate.
type PlatformSetting struct {
	Key       string    `gorm:"column:key;type:text;primaryKey"`
	Value     string    `gorm:"column:value;type:text;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// SettingKeyCommissionRate holds the platform commission as a decimal string.
const SettingKeyCommissionRate = "commission_rate"

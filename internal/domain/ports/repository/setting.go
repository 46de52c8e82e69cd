package repository

import "context"

// AppSetting is one key/value row; secret values are stored encrypted.
type AppSetting struct {
	Key      string
	Value    string
	IsSecret bool
}

type SettingRepository interface {
	Get(ctx context.Context, tx Tx, key string) (*AppSetting, error)
	Upsert(ctx context.Context, tx Tx, setting *AppSetting) error
	DeleteKeys(ctx context.Context, tx Tx, keys []string) error
}

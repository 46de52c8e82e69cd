package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"docstream/internal/domain/ports/repository"
)

var _ repository.SettingRepository = (*settingRepo)(nil)

type settingRepo struct {
	pool *pgxpool.Pool
}

func NewSettingRepo(pool *pgxpool.Pool) *settingRepo {
	return &settingRepo{pool: pool}
}

func (r *settingRepo) Get(ctx context.Context, tx repository.Tx, key string) (*repository.AppSetting, error) {
	const q = `SELECT key, coalesce(value, ''), is_secret FROM app_settings WHERE key = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, key)
	if err != nil {
		return nil, err
	}
	var s repository.AppSetting
	if err := row.Scan(&s.Key, &s.Value, &s.IsSecret); err != nil {
		return nil, translateScan(err)
	}
	return &s, nil
}

func (r *settingRepo) Upsert(ctx context.Context, tx repository.Tx, setting *repository.AppSetting) error {
	const q = `
INSERT INTO app_settings (key, value, is_secret, updated_at)
VALUES ($1, NULLIF($2, ''), $3, now())
ON CONFLICT (key) DO UPDATE SET
  value = EXCLUDED.value,
  is_secret = EXCLUDED.is_secret,
  updated_at = EXCLUDED.updated_at;`
	_, err := execSQL(ctx, r.pool, tx, q, setting.Key, setting.Value, setting.IsSecret)
	return err
}

func (r *settingRepo) DeleteKeys(ctx context.Context, tx repository.Tx, keys []string) error {
	const q = `DELETE FROM app_settings WHERE key = ANY($1);`
	_, err := execSQL(ctx, r.pool, tx, q, keys)
	return err
}

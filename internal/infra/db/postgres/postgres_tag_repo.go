package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"

	"docstream/internal/domain/model"
	"docstream/internal/domain/ports/repository"
)

var _ repository.TagRepository = (*tagRepo)(nil)

type tagRepo struct {
	pool *pgxpool.Pool
}

func NewTagRepo(pool *pgxpool.Pool) *tagRepo {
	return &tagRepo{pool: pool}
}

func (r *tagRepo) FindOrCreate(ctx context.Context, tx repository.Tx, userID, name string) (*model.Tag, error) {
	const find = `SELECT id, name, color, user_id::text FROM tags WHERE name = $1 AND user_id = $2;`
	row, err := pickRow(ctx, r.pool, tx, find, name, userID)
	if err != nil {
		return nil, err
	}
	var t model.Tag
	scanErr := row.Scan(&t.ID, &t.Name, &t.Color, &t.UserID)
	if scanErr == nil {
		return &t, nil
	}

	t = model.Tag{ID: uuid.NewString(), Name: name, Color: model.DefaultTagColor, UserID: userID}
	const insert = `
INSERT INTO tags (id, name, color, user_id)
VALUES ($1, $2, $3, $4)
ON CONFLICT (name, user_id) DO UPDATE SET color = tags.color
RETURNING id;`
	row, err = pickRow(ctx, r.pool, tx, insert, t.ID, t.Name, t.Color, t.UserID)
	if err != nil {
		return nil, err
	}
	if err := row.Scan(&t.ID); err != nil {
		return nil, translateScan(err)
	}
	return &t, nil
}

func (r *tagRepo) Attach(ctx context.Context, tx repository.Tx, documentID, tagID string) error {
	const q = `
INSERT INTO document_tags (document_id, tag_id)
VALUES ($1, $2)
ON CONFLICT DO NOTHING;`
	_, err := execSQL(ctx, r.pool, tx, q, documentID, tagID)
	return err
}

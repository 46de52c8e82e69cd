package repository

import (
	"context"

	"docstream/internal/domain/model"
)

type TagRepository interface {
	// FindOrCreate returns the tag with this name scoped to the user,
	// creating it with the default color when absent.
	FindOrCreate(ctx context.Context, tx Tx, userID, name string) (*model.Tag, error)
	// Attach associates a tag with a document; attaching twice is a no-op.
	Attach(ctx context.Context, tx Tx, documentID, tagID string) error
}

package repository

import (
	"context"

	"docstream/internal/domain/model"
)

// DocumentRepository reads and writes the document fields the pipeline touches.
type DocumentRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.Document, error)
	// SaveText persists ContentText and ProcessedDate.
	SaveText(ctx context.Context, tx Tx, doc *model.Document) error
	// SaveAnalysis persists AIGeneratedName, DocumentType, AIMetadata and the
	// bill-tracking fields.
	SaveAnalysis(ctx context.Context, tx Tx, doc *model.Document) error
	// SavePath persists Filename and FilePath after a file move.
	SavePath(ctx context.Context, tx Tx, doc *model.Document) error
	// RefreshSearchIndex recomputes the full-text search vector for a document.
	RefreshSearchIndex(ctx context.Context, tx Tx, id string) error
}

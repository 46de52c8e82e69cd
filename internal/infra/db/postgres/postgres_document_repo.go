package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v4/pgxpool"

	"docstream/internal/domain/model"
	"docstream/internal/domain/ports/repository"
)

var _ repository.DocumentRepository = (*documentRepo)(nil)

type documentRepo struct {
	pool *pgxpool.Pool
}

func NewDocumentRepo(pool *pgxpool.Pool) *documentRepo {
	return &documentRepo{pool: pool}
}

func (r *documentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Document, error) {
	const q = `
SELECT id, filename, original_name, file_path, mime_type, file_size,
       coalesce(content_text, ''), coalesce(ai_generated_name, ''),
       coalesce(document_type, ''), ai_metadata,
       coalesce(bill_status, ''), bill_due_date, bill_paid_at,
       coalesce(user_id::text, ''), upload_date, processed_date, deleted_at
FROM documents
WHERE id = $1 AND deleted_at IS NULL;`

	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}

	var d model.Document
	var aiMetadata []byte
	var billStatus string
	err = row.Scan(
		&d.ID, &d.Filename, &d.OriginalName, &d.FilePath, &d.MimeType, &d.FileSize,
		&d.ContentText, &d.AIGeneratedName, &d.DocumentType, &aiMetadata,
		&billStatus, &d.BillDueDate, &d.BillPaidAt,
		&d.UserID, &d.UploadDate, &d.ProcessedDate, &d.DeletedAt,
	)
	if err != nil {
		return nil, translateScan(err)
	}
	d.BillStatus = model.BillStatus(billStatus)
	if len(aiMetadata) > 0 {
		_ = json.Unmarshal(aiMetadata, &d.AIMetadata)
	}
	return &d, nil
}

func (r *documentRepo) SaveText(ctx context.Context, tx repository.Tx, doc *model.Document) error {
	const q = `
UPDATE documents SET
  content_text = NULLIF($2, ''),
  processed_date = $3,
  updated_at = now()
WHERE id = $1;`
	_, err := execSQL(ctx, r.pool, tx, q, doc.ID, doc.ContentText, doc.ProcessedDate)
	return err
}

func (r *documentRepo) SaveAnalysis(ctx context.Context, tx repository.Tx, doc *model.Document) error {
	var aiMetadata []byte
	if doc.AIMetadata != nil {
		b, err := json.Marshal(doc.AIMetadata)
		if err != nil {
			return err
		}
		aiMetadata = b
	}
	const q = `
UPDATE documents SET
  ai_generated_name = NULLIF($2, ''),
  document_type = NULLIF($3, ''),
  ai_metadata = $4,
  bill_status = NULLIF($5, ''),
  bill_due_date = $6,
  bill_paid_at = $7,
  updated_at = now()
WHERE id = $1;`
	_, err := execSQL(ctx, r.pool, tx, q,
		doc.ID, doc.AIGeneratedName, doc.DocumentType, aiMetadata,
		string(doc.BillStatus), doc.BillDueDate, doc.BillPaidAt)
	return err
}

func (r *documentRepo) SavePath(ctx context.Context, tx repository.Tx, doc *model.Document) error {
	const q = `
UPDATE documents SET
  filename = $2,
  file_path = $3,
  updated_at = now()
WHERE id = $1;`
	_, err := execSQL(ctx, r.pool, tx, q, doc.ID, doc.Filename, doc.FilePath)
	return err
}

func (r *documentRepo) RefreshSearchIndex(ctx context.Context, tx repository.Tx, id string) error {
	const q = `
UPDATE documents SET search_vector = to_tsvector('english',
    coalesce(content_text, '') || ' ' ||
    coalesce(original_name, '') || ' ' ||
    coalesce(ai_generated_name, '') || ' ' ||
    coalesce(ai_metadata->>'summary', '') || ' ' ||
    coalesce(ai_metadata->>'company', '')
)
WHERE id = $1;`
	_, err := execSQL(ctx, r.pool, tx, q, id)
	return err
}

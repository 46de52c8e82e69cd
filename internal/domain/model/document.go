package model

import "time"

type BillStatus string

const (
	BillStatusUnpaid    BillStatus = "unpaid"
	BillStatusPaid      BillStatus = "paid"
	BillStatusDismissed BillStatus = "dismissed"
)

// Document is the stored file the pipeline reads from and writes to.
// FilePath is relative to the configured upload directory.
type Document struct {
	ID              string
	Filename        string
	OriginalName    string
	FilePath        string
	MimeType        string
	FileSize        int64
	ContentText     string
	AIGeneratedName string
	DocumentType    string
	AIMetadata      map[string]any
	BillStatus      BillStatus
	BillDueDate     *time.Time
	BillPaidAt      *time.Time
	UserID          string
	UploadDate      time.Time
	ProcessedDate   *time.Time
	DeletedAt       *time.Time
}

// DisplayName prefers the human-entered name over the stored filename.
func (d *Document) DisplayName() string {
	if d.OriginalName != "" {
		return d.OriginalName
	}
	return d.Filename
}

// Billable reports whether a document type participates in bill tracking.
func Billable(documentType string) bool {
	return documentType == "bill" || documentType == "invoice"
}

package models

import (
	"time"

	"github.com/rxtech-lab/pharmalink/internal/apperrors"
)

// Document is a file artifact attached to a submission, optionally to one of
// its results. URL is the opaque storage key, never a public link.
type Document struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	Name              string         `gorm:"not null" json:"name"`
	Type              DocumentType   `gorm:"not null;index" json:"type"`
	Status            DocumentStatus `gorm:"not null;default:DRAFT;index" json:"status"`
	URL               string         `gorm:"not null" json:"url"`
	ContentType       string         `json:"content_type"`
	Size              int64          `json:"size"`
	SignatureRequired bool           `gorm:"default:false" json:"signature_required"`
	IsSigned          bool           `gorm:"default:false" json:"is_signed"`
	SignatureID       *string        `gorm:"index;type:varchar(255)" json:"signature_id,omitempty"`
	SignedAt          *time.Time     `json:"signed_at,omitempty"`
	SubmissionID      uint           `gorm:"not null;index" json:"submission_id"`
	ResultID          *uint          `gorm:"index" json:"result_id,omitempty"`
	UploadedByID      uint           `gorm:"not null" json:"uploaded_by_id"`
	UploadedAt        time.Time      `json:"uploaded_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// UpdateStatus moves the document to status. An unknown status fails without
// touching the document. Entering SIGNED marks it signed; any other status
// except ARCHIVED clears the signature so is_signed always implies SIGNED.
// Predecessor status is not checked; provider-driven jumps such as
// DRAFT -> SIGNED for pre-signed uploads are legitimate.
func (d *Document) UpdateStatus(status string, now time.Time) error {
	next, err := ParseDocumentStatus(status)
	if err != nil {
		return err
	}
	d.Status = next
	switch next {
	case DocumentStatusSigned:
		d.IsSigned = true
		d.SignedAt = &now
	case DocumentStatusArchived:
		// keeps the signature record
	default:
		d.IsSigned = false
		d.SignedAt = nil
	}
	d.UpdatedAt = now
	return nil
}

// RecordSignature marks the document signed under the given envelope.
func (d *Document) RecordSignature(envelopeID string, now time.Time) {
	id := envelopeID
	d.SignatureID = &id
	d.IsSigned = true
	d.Status = DocumentStatusSigned
	d.SignedAt = &now
	d.UpdatedAt = now
}

// MarkSignatureRequested records an issued envelope. The document stays
// unsigned until the provider reports completion.
func (d *Document) MarkSignatureRequested(envelopeID string, now time.Time) {
	id := envelopeID
	d.SignatureID = &id
	d.Status = DocumentStatusPendingSignature
	d.IsSigned = false
	d.SignedAt = nil
	d.UpdatedAt = now
}

// CanRequestSignature reports whether the document may be sent for signing.
func (d *Document) CanRequestSignature() bool {
	return d.Status == DocumentStatusDraft || d.Status == DocumentStatusPendingSignature
}

// CanExpire reports whether the expiry sweep may move the document to EXPIRED.
func (d *Document) CanExpire() bool {
	return d.Status == DocumentStatusDraft || d.Status == DocumentStatusPendingSignature
}

// Archive is an administrative move out of a final status. The signature
// record (is_signed, signed_at, signature_id) is kept.
func (d *Document) Archive(now time.Time) error {
	if !d.Status.IsFinal() {
		return apperrors.Conflict("Document.Archive", "document in status %s cannot be archived", d.Status).
			WithDetail("current_status", d.Status)
	}
	d.Status = DocumentStatusArchived
	d.UpdatedAt = now
	return nil
}

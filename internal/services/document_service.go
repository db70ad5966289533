package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/pharmalink/internal/apperrors"
	"github.com/rxtech-lab/pharmalink/internal/esign"
	"github.com/rxtech-lab/pharmalink/internal/logger"
	"github.com/rxtech-lab/pharmalink/internal/models"
	"gorm.io/gorm"
)

// MaxDocumentSize bounds uploads whose size is not known in advance.
const MaxDocumentSize = 50 << 20

type UploadDocumentInput struct {
	Name        string
	Type        string
	ContentType string
	Content     io.Reader
	Size        int64
	// ResultID attaches the document to a result of the same submission.
	ResultID *uint
	// PreSigned marks an agreement that was signed outside the platform.
	PreSigned bool
}

// SignatureRequest is the outcome of RequestSignature.
type SignatureRequest struct {
	Document   *models.Document `json:"document"`
	EnvelopeID string           `json:"envelope_id"`
	SigningURL string           `json:"signing_url"`
}

type signatureRequestArgs struct {
	Signers []esign.Signer `validate:"required,min=1,dive"`
}

// DocumentService manages document files and their signing lifecycle.
type DocumentService interface {
	Upload(ctx context.Context, actor models.Actor, submissionID uint, input UploadDocumentInput) (*models.Document, error)
	CreateUploadURL(ctx context.Context, actor models.Actor, submissionID uint, name string, docType string, contentType string) (*models.Document, string, error)
	GetDocument(actor models.Actor, id uint) (*models.Document, error)
	ListDocuments(actor models.Actor, submissionID uint, f Filter) (Page[models.Document], error)
	DownloadURL(ctx context.Context, actor models.Actor, id uint) (string, error)
	UpdateStatus(actor models.Actor, id uint, status string) (*models.Document, error)
	RecordSignature(id uint, envelopeID string) (*models.Document, error)
	RequestSignature(ctx context.Context, actor models.Actor, id uint, signers []esign.Signer) (*SignatureRequest, error)
	ProcessSignatureWebhook(ctx context.Context, payload []byte) (*models.Document, error)
	ExpireStale(ctx context.Context, maxAge time.Duration) (int64, error)
	Archive(actor models.Actor, id uint) (*models.Document, error)
}

var documentFields = FieldSet{
	"type":        "type",
	"status":      "status",
	"is_signed":   "is_signed",
	"result_id":   "result_id",
	"uploaded_at": "uploaded_at",
	"name":        "name",
}

type documentService struct {
	db        *gorm.DB
	storage   StorageService
	provider  esign.Provider
	validator *validator.Validate
	returnURL string
	now       func() time.Time
}

// NewDocumentService builds the document service. storage and provider may be
// nil; operations that need them then fail with an external error.
func NewDocumentService(db *gorm.DB, storage StorageService, provider esign.Provider, returnURL string) DocumentService {
	return &documentService{
		db:        db,
		storage:   storage,
		provider:  provider,
		validator: validator.New(),
		returnURL: returnURL,
		now:       time.Now,
	}
}

var (
	errNoStorage  = errors.New("document storage is not configured")
	errNoProvider = errors.New("e-signature provider is not configured")
)

func (s *documentService) Upload(ctx context.Context, actor models.Actor, submissionID uint, input UploadDocumentInput) (*models.Document, error) {
	const op = "DocumentService.Upload"
	doc, err := s.newDocument(op, actor, submissionID, input.Name, input.Type, input.ContentType)
	if err != nil {
		return nil, err
	}
	if input.Content == nil {
		return nil, apperrors.Validation(op, "document content is required")
	}
	if input.ResultID != nil {
		if err := s.checkResult(op, submissionID, *input.ResultID); err != nil {
			return nil, err
		}
		doc.ResultID = input.ResultID
	}
	if input.PreSigned {
		if err := authorizeAttestation(op, actor, doc); err != nil {
			return nil, err
		}
	}
	if s.storage == nil {
		return nil, apperrors.External(op, errNoStorage)
	}

	content, size := input.Content, input.Size
	if size <= 0 {
		buffered, n, err := readAllLimited(content, MaxDocumentSize)
		if err != nil {
			return nil, err
		}
		content, size = buffered, n
	}
	doc.URL = s.storage.GenerateKey(submissionID, doc.Name)
	doc.Size = size
	if err := s.storage.Upload(ctx, doc.URL, content, size, doc.ContentType); err != nil {
		return nil, apperrors.External(op, err)
	}
	if input.PreSigned {
		if err := doc.UpdateStatus(string(models.DocumentStatusSigned), doc.UploadedAt); err != nil {
			return nil, err
		}
	}

	if err := s.db.Create(doc).Error; err != nil {
		if delErr := s.storage.Delete(ctx, doc.URL); delErr != nil {
			logger.Warn(ctx, "failed to remove orphaned document content", "key", doc.URL, "error", delErr)
		}
		return nil, fmt.Errorf("failed to create document: %w", err)
	}
	logger.Info(ctx, "document uploaded", "document_id", doc.ID, "submission_id", submissionID, "type", doc.Type)
	return doc, nil
}

// CreateUploadURL records a DRAFT document and returns a presigned URL the
// client uploads the content to.
func (s *documentService) CreateUploadURL(ctx context.Context, actor models.Actor, submissionID uint, name string, docType string, contentType string) (*models.Document, string, error) {
	const op = "DocumentService.CreateUploadURL"
	doc, err := s.newDocument(op, actor, submissionID, name, docType, contentType)
	if err != nil {
		return nil, "", err
	}
	if s.storage == nil {
		return nil, "", apperrors.External(op, errNoStorage)
	}
	doc.URL = s.storage.GenerateKey(submissionID, doc.Name)
	uploadURL, err := s.storage.GetUploadURL(ctx, doc.URL)
	if err != nil {
		return nil, "", apperrors.External(op, err)
	}
	if err := s.db.Create(doc).Error; err != nil {
		return nil, "", fmt.Errorf("failed to create document: %w", err)
	}
	return doc, uploadURL, nil
}

// newDocument validates an upload against its submission and returns the
// unsaved DRAFT document.
func (s *documentService) newDocument(op string, actor models.Actor, submissionID uint, name, docType, contentType string) (*models.Document, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.Validation(op, "document name is required")
	}
	t, err := models.ParseDocumentType(docType)
	if err != nil {
		return nil, err
	}
	sub, err := loadSubmission(s.db, submissionID)
	if err != nil {
		return nil, err
	}
	if err := authorizeView(op, actor, sub); err != nil {
		return nil, err
	}
	if sub.Status.IsTerminal() {
		return nil, apperrors.Conflict(op, "documents cannot be added while submission is %s", sub.Status).
			WithDetail("current_status", sub.Status)
	}

	now := s.now()
	return &models.Document{
		Name:              name,
		Type:              t,
		Status:            models.DocumentStatusDraft,
		ContentType:       contentType,
		SignatureRequired: t.RequiresSignature(),
		SubmissionID:      submissionID,
		UploadedByID:      actor.UserID,
		UploadedAt:        now,
		UpdatedAt:         now,
	}, nil
}

func (s *documentService) checkResult(op string, submissionID, resultID uint) error {
	var result models.Result
	if err := s.db.Select("id", "submission_id").First(&result, resultID).Error; err != nil {
		return notFoundOr(err, op, "result %d not found", resultID)
	}
	if result.SubmissionID != submissionID {
		return apperrors.Validation(op, "result %d does not belong to submission %d", resultID, submissionID)
	}
	return nil
}

func (s *documentService) GetDocument(actor models.Actor, id uint) (*models.Document, error) {
	return s.load(s.db, actor, id, "DocumentService.GetDocument")
}

func (s *documentService) ListDocuments(actor models.Actor, submissionID uint, f Filter) (Page[models.Document], error) {
	sub, err := loadSubmission(s.db, submissionID)
	if err != nil {
		return Page[models.Document]{}, err
	}
	if err := authorizeView("DocumentService.ListDocuments", actor, sub); err != nil {
		return Page[models.Document]{}, err
	}
	return Paginate[models.Document](s.db.Where("submission_id = ?", submissionID), f, documentFields, "uploaded_at DESC, id DESC")
}

func (s *documentService) DownloadURL(ctx context.Context, actor models.Actor, id uint) (string, error) {
	const op = "DocumentService.DownloadURL"
	doc, err := s.load(s.db, actor, id, op)
	if err != nil {
		return "", err
	}
	if s.storage == nil {
		return "", apperrors.External(op, errNoStorage)
	}
	u, err := s.storage.GetDownloadURL(ctx, doc.URL)
	if err != nil {
		return "", apperrors.External(op, err)
	}
	return u, nil
}

// UpdateStatus sets any known status. The predecessor is not checked.
func (s *documentService) UpdateStatus(actor models.Actor, id uint, status string) (*models.Document, error) {
	const op = "DocumentService.UpdateStatus"
	return s.mutate(func(tx *gorm.DB) (*models.Document, error) {
		return s.load(tx, actor, id, op)
	}, func(doc *models.Document) error {
		if next, err := models.ParseDocumentStatus(status); err == nil && next == models.DocumentStatusSigned {
			if err := authorizeAttestation(op, actor, doc); err != nil {
				return err
			}
		}
		return doc.UpdateStatus(status, s.now())
	})
}

// RecordSignature is driven by the signing provider, not by a user.
func (s *documentService) RecordSignature(id uint, envelopeID string) (*models.Document, error) {
	const op = "DocumentService.RecordSignature"
	if strings.TrimSpace(envelopeID) == "" {
		return nil, apperrors.Validation(op, "envelope id is required")
	}
	return s.mutate(func(tx *gorm.DB) (*models.Document, error) {
		var doc models.Document
		if err := tx.First(&doc, id).Error; err != nil {
			return nil, notFoundOr(err, op, "document %d not found", id)
		}
		return &doc, nil
	}, func(doc *models.Document) error {
		doc.RecordSignature(envelopeID, s.now())
		return nil
	})
}

// RequestSignature sends the document for signing, one recipient per signer
// in routing order, and returns the first signer's embedded signing URL.
// Provider failures leave the document unchanged.
func (s *documentService) RequestSignature(ctx context.Context, actor models.Actor, id uint, signers []esign.Signer) (*SignatureRequest, error) {
	const op = "DocumentService.RequestSignature"
	if err := s.validator.Struct(signatureRequestArgs{Signers: signers}); err != nil {
		return nil, apperrors.Validation(op, "invalid signers: %v", err)
	}
	doc, err := s.load(s.db, actor, id, op)
	if err != nil {
		return nil, err
	}
	if !doc.Type.RequiresSignature() {
		return nil, apperrors.Validation(op, "document type %s does not take signatures", doc.Type).
			WithDetail("type", doc.Type)
	}
	if err := checkSignable(op, doc); err != nil {
		return nil, err
	}
	if s.provider == nil {
		return nil, apperrors.External(op, errNoProvider)
	}
	if s.storage == nil {
		return nil, apperrors.External(op, errNoStorage)
	}

	content, err := s.storage.Download(ctx, doc.URL)
	if err != nil {
		return nil, apperrors.External(op, err)
	}
	envelope, err := s.provider.CreateEnvelope(ctx, esign.EnvelopeRequest{
		Documents: []esign.EnvelopeDocument{{
			ID:            "1",
			Name:          doc.Name,
			FileExtension: fileExtension(doc.Name),
			Content:       content,
		}},
		Recipients:   signers,
		EmailSubject: "Please sign: " + doc.Name,
		EmailBody:    fmt.Sprintf("%s is ready for your signature.", doc.Type.Description()),
	})
	if err != nil {
		return nil, apperrors.External(op, err)
	}
	view, err := s.provider.CreateRecipientView(ctx, envelope.EnvelopeID, esign.RecipientViewRequest{
		RecipientEmail: signers[0].Email,
		RecipientName:  signers[0].Name,
		ReturnURL:      s.returnURL,
	})
	if err != nil {
		return nil, apperrors.External(op, err)
	}

	updated, err := s.mutate(func(tx *gorm.DB) (*models.Document, error) {
		return s.load(tx, actor, id, op)
	}, func(doc *models.Document) error {
		// the document may have been signed or closed while the envelope was built
		if err := checkSignable(op, doc); err != nil {
			return err
		}
		doc.MarkSignatureRequested(envelope.EnvelopeID, s.now())
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "signature requested", "document_id", id, "envelope_id", envelope.EnvelopeID, "signers", len(signers))
	return &SignatureRequest{Document: updated, EnvelopeID: envelope.EnvelopeID, SigningURL: view.URL}, nil
}

// ProcessSignatureWebhook applies a provider callback. The envelope status is
// re-read from the provider. An unknown envelope is logged and ignored so
// redelivery never loops; the returned document is then nil.
func (s *documentService) ProcessSignatureWebhook(ctx context.Context, payload []byte) (*models.Document, error) {
	const op = "DocumentService.ProcessSignatureWebhook"
	if s.provider == nil {
		return nil, apperrors.External(op, errNoProvider)
	}
	event, err := s.provider.ParseWebhookEvent(payload)
	if err != nil {
		return nil, apperrors.Validation(op, "%v", err)
	}

	var doc models.Document
	err = s.db.Where("signature_id = ?", event.EnvelopeID).Order("id DESC").First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Warn(ctx, "signature webhook for unknown envelope", "envelope_id", event.EnvelopeID, "event", event.Event)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up document: %w", err)
	}

	envelope, err := s.provider.GetEnvelope(ctx, event.EnvelopeID)
	if err != nil {
		return nil, apperrors.External(op, err)
	}

	var apply func(doc *models.Document) error
	switch envelope.Status {
	case esign.EnvelopeStatusCompleted:
		apply = func(doc *models.Document) error {
			doc.RecordSignature(event.EnvelopeID, s.now())
			return nil
		}
	case esign.EnvelopeStatusDeclined, esign.EnvelopeStatusVoided:
		apply = func(doc *models.Document) error {
			return doc.UpdateStatus(string(models.DocumentStatusRejected), s.now())
		}
	default:
		logger.Debug(ctx, "signature webhook without status change", "envelope_id", event.EnvelopeID, "status", envelope.Status)
		return &doc, nil
	}
	if doc.Status == models.DocumentStatusArchived {
		logger.Warn(ctx, "signature webhook for archived document", "document_id", doc.ID, "envelope_id", event.EnvelopeID)
		return &doc, nil
	}

	updated, err := s.mutate(func(tx *gorm.DB) (*models.Document, error) {
		var current models.Document
		if err := tx.First(&current, doc.ID).Error; err != nil {
			return nil, notFoundOr(err, op, "document %d not found", doc.ID)
		}
		return &current, nil
	}, apply)
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "signature webhook applied", "document_id", updated.ID, "envelope_id", event.EnvelopeID, "status", updated.Status)
	return updated, nil
}

// ExpireStale moves DRAFT and PENDING_SIGNATURE documents uploaded more than
// maxAge ago to EXPIRED and returns how many were moved.
func (s *documentService) ExpireStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	if maxAge <= 0 {
		return 0, apperrors.Validation("DocumentService.ExpireStale", "max age must be positive")
	}
	now := s.now()
	res := s.db.WithContext(ctx).Model(&models.Document{}).
		Where("status IN ?", []models.DocumentStatus{models.DocumentStatusDraft, models.DocumentStatusPendingSignature}).
		Where("uploaded_at < ?", now.Add(-maxAge)).
		Updates(map[string]interface{}{"status": models.DocumentStatusExpired, "updated_at": now})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to expire documents: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		logger.Info(ctx, "expired stale documents", "count", res.RowsAffected, "max_age", maxAge.String())
	}
	return res.RowsAffected, nil
}

func (s *documentService) Archive(actor models.Actor, id uint) (*models.Document, error) {
	const op = "DocumentService.Archive"
	if !actor.Role.IsAdmin() {
		return nil, apperrors.Unauthorized(op, "only administrators can archive documents")
	}
	return s.mutate(func(tx *gorm.DB) (*models.Document, error) {
		return s.load(tx, actor, id, op)
	}, func(doc *models.Document) error {
		return doc.Archive(s.now())
	})
}

// load reads a document and checks the actor can see its submission.
func checkSignable(op string, doc *models.Document) error {
	if !doc.CanRequestSignature() {
		return apperrors.Conflict(op, "document in status %s cannot be sent for signature", doc.Status).
			WithDetail("current_status", doc.Status)
	}
	return nil
}

func (s *documentService) load(db *gorm.DB, actor models.Actor, id uint, op string) (*models.Document, error) {
	var doc models.Document
	if err := db.First(&doc, id).Error; err != nil {
		return nil, notFoundOr(err, op, "document %d not found", id)
	}
	sub, err := loadSubmission(db, doc.SubmissionID)
	if err != nil {
		return nil, err
	}
	if err := authorizeView(op, actor, sub); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *documentService) mutate(load func(tx *gorm.DB) (*models.Document, error), fn func(doc *models.Document) error) (*models.Document, error) {
	var out *models.Document
	err := s.db.Transaction(func(tx *gorm.DB) error {
		doc, err := load(tx)
		if err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
		if err := tx.Save(doc).Error; err != nil {
			return fmt.Errorf("failed to save document: %w", err)
		}
		out = doc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func fileExtension(name string) string {
	ext := strings.TrimPrefix(path.Ext(name), ".")
	if ext == "" {
		return "pdf"
	}
	return strings.ToLower(ext)
}

// readAllLimited buffers upload content when the caller does not know its size.
func readAllLimited(r io.Reader, limit int64) (*bytes.Reader, int64, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read document content: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, 0, apperrors.Validation("DocumentService.Upload", "document exceeds %d bytes", limit)
	}
	return bytes.NewReader(data), int64(len(data)), nil
}

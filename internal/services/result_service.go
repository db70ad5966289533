package services

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rxtech-lab/pharmalink/internal/apperrors"
	"github.com/rxtech-lab/pharmalink/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CreateResultInput struct {
	Notes        string
	ProtocolUsed string
	Metadata     datatypes.JSON
}

// ReviewOutcome is the result of a pharma review.
type ReviewOutcome struct {
	Result             *models.Result `json:"result"`
	AppliedProperties  int            `json:"applied_properties"`
	SubmissionAdvanced bool           `json:"submission_advanced"`
}

// ResultService runs the result workflow. CRO users upload and process
// results; the sponsor reviews them, which copies the measurements onto the
// molecules.
type ResultService interface {
	CreateResult(actor models.Actor, submissionID uint, input CreateResultInput) (*models.Result, error)
	GetResult(actor models.Actor, id uint) (*models.Result, error)
	ListResults(actor models.Actor, submissionID uint, f Filter) (Page[models.Result], error)
	StartProcessing(actor models.Actor, id uint) (*models.Result, error)
	AddProperty(actor models.Actor, resultID, moleculeID uint, name string, value float64, units string) (*models.ResultProperty, error)
	MarkAsProcessed(actor models.Actor, id uint, qualityControlPassed bool) (*models.Result, error)
	MarkAsReviewed(actor models.Actor, id uint) (*ReviewOutcome, error)
	ApplyToMolecules(actor models.Actor, id uint) (int, error)
	Reject(actor models.Actor, id uint, reason string) (*models.Result, error)
}

var resultFields = FieldSet{
	"status":      "status",
	"uploaded_at": "uploaded_at",
	"updated_at":  "updated_at",
}

// resultUploadStatuses are the submission statuses that accept new results.
var resultUploadStatuses = []models.SubmissionStatus{
	models.SubmissionStatusInProgress,
	models.SubmissionStatusResultsUploaded,
}

type resultService struct {
	db    *gorm.DB
	hooks HookService
	now   func() time.Time
}

func NewResultService(db *gorm.DB, hooks HookService) ResultService {
	if hooks == nil {
		hooks = NewHookService()
	}
	return &resultService{db: db, hooks: hooks, now: time.Now}
}

func (s *resultService) CreateResult(actor models.Actor, submissionID uint, input CreateResultInput) (*models.Result, error) {
	const op = "ResultService.CreateResult"
	sub, err := loadSubmission(s.db, submissionID)
	if err != nil {
		return nil, err
	}
	if err := authorizeParty(op, actor, sub, models.RoleKindCRO); err != nil {
		return nil, err
	}
	if !slices.Contains(resultUploadStatuses, sub.Status) {
		return nil, apperrors.Conflict(op, "results cannot be uploaded while submission is %s", sub.Status).
			WithDetail("current_status", sub.Status)
	}

	now := s.now()
	result := &models.Result{
		SubmissionID: sub.ID,
		UploadedByID: actor.UserID,
		Status:       models.ResultStatusPending,
		Notes:        input.Notes,
		ProtocolUsed: input.ProtocolUsed,
		Metadata:     input.Metadata,
		UploadedAt:   now,
		UpdatedAt:    now,
	}
	if err := s.db.Omit(clause.Associations).Create(result).Error; err != nil {
		return nil, fmt.Errorf("failed to create result: %w", err)
	}
	return result, nil
}

func (s *resultService) GetResult(actor models.Actor, id uint) (*models.Result, error) {
	result, _, err := s.load(s.db, actor, id, "ResultService.GetResult", "")
	return result, err
}

func (s *resultService) ListResults(actor models.Actor, submissionID uint, f Filter) (Page[models.Result], error) {
	sub, err := loadSubmission(s.db, submissionID)
	if err != nil {
		return Page[models.Result]{}, err
	}
	if err := authorizeView("ResultService.ListResults", actor, sub); err != nil {
		return Page[models.Result]{}, err
	}
	return Paginate[models.Result](s.db.Where("submission_id = ?", submissionID), f, resultFields, "uploaded_at DESC", "Properties")
}

func (s *resultService) StartProcessing(actor models.Actor, id uint) (*models.Result, error) {
	return s.mutate(actor, id, "ResultService.StartProcessing", models.RoleKindCRO, func(tx *gorm.DB, result *models.Result, sub *models.Submission) error {
		return result.StartProcessing(s.now())
	})
}

// AddProperty checks the molecule exists and belongs to the submission
// before recording the value.
func (s *resultService) AddProperty(actor models.Actor, resultID, moleculeID uint, name string, value float64, units string) (*models.ResultProperty, error) {
	const op = "ResultService.AddProperty"
	var prop *models.ResultProperty
	_, err := s.mutate(actor, resultID, op, models.RoleKindCRO, func(tx *gorm.DB, result *models.Result, sub *models.Submission) error {
		added, err := addResultProperty(tx, result, sub, moleculeID, name, value, units)
		if err != nil {
			return err
		}
		prop = added
		return nil
	})
	if err != nil {
		return nil, err
	}
	return prop, nil
}

func addResultProperty(tx *gorm.DB, result *models.Result, sub *models.Submission, moleculeID uint, name string, value float64, units string) (*models.ResultProperty, error) {
	const op = "ResultService.AddProperty"
	if !result.AcceptsProperties() {
		return nil, apperrors.Conflict(op, "result in status %s does not accept properties", result.Status).
			WithDetail("current_status", result.Status)
	}
	var count int64
	if err := tx.Model(&models.Molecule{}).Where("id = ?", moleculeID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to look up molecule: %w", err)
	}
	if count == 0 {
		return nil, apperrors.NotFound(op, "molecule %d not found", moleculeID).WithDetail("molecule_id", moleculeID)
	}
	if !sub.HasMolecule(moleculeID) {
		return nil, apperrors.Validation(op, "molecule %d is not part of submission %d", moleculeID, sub.ID).
			WithDetail("molecule_id", moleculeID)
	}

	prop, err := result.AddProperty(moleculeID, name, value, units)
	if err != nil {
		return nil, err
	}
	if err := tx.Create(prop).Error; err != nil {
		return nil, fmt.Errorf("failed to add property: %w", err)
	}
	return prop, nil
}

// MarkAsProcessed closes processing. A passed quality check moves the
// submission forward to RESULTS_UPLOADED.
func (s *resultService) MarkAsProcessed(actor models.Actor, id uint, qualityControlPassed bool) (*models.Result, error) {
	return s.mutate(actor, id, "ResultService.MarkAsProcessed", models.RoleKindCRO, func(tx *gorm.DB, result *models.Result, sub *models.Submission) error {
		now := s.now()
		if err := result.MarkAsProcessed(qualityControlPassed, now); err != nil {
			return err
		}
		if !qualityControlPassed {
			return nil
		}
		_, err := advanceSubmission(tx, s.hooks, actor, sub.ID, models.SubmissionStatusResultsUploaded, now)
		return err
	})
}

// MarkAsReviewed records the sponsor review, moves the submission to
// RESULTS_REVIEWED and applies the properties to the molecules, all in one
// transaction.
func (s *resultService) MarkAsReviewed(actor models.Actor, id uint) (*ReviewOutcome, error) {
	outcome := &ReviewOutcome{}
	result, err := s.mutate(actor, id, "ResultService.MarkAsReviewed", models.RoleKindPharma, func(tx *gorm.DB, result *models.Result, sub *models.Submission) error {
		now := s.now()
		if err := result.MarkAsReviewed(now); err != nil {
			return err
		}
		advanced, err := advanceSubmission(tx, s.hooks, actor, sub.ID, models.SubmissionStatusResultsReviewed, now)
		if err != nil {
			return err
		}
		outcome.SubmissionAdvanced = advanced

		applied, err := applyResult(tx, result, now)
		if err != nil {
			return err
		}
		outcome.AppliedProperties = applied
		return nil
	})
	if err != nil {
		return nil, err
	}
	outcome.Result = result
	return outcome, nil
}

// ApplyToMolecules copies a completed result onto its molecules. It returns
// 0 when the result is not completed or was already applied.
func (s *resultService) ApplyToMolecules(actor models.Actor, id uint) (int, error) {
	applied := 0
	_, err := s.mutate(actor, id, "ResultService.ApplyToMolecules", models.RoleKindPharma, func(tx *gorm.DB, result *models.Result, sub *models.Submission) error {
		n, err := applyResult(tx, result, s.now())
		applied = n
		return err
	})
	if err != nil {
		return 0, err
	}
	return applied, nil
}

// applyResult upserts one EXPERIMENTAL molecule property per result
// property and stamps applied_at.
func applyResult(tx *gorm.DB, result *models.Result, now time.Time) (int, error) {
	writes := result.MoleculeProperties()
	if len(writes) == 0 {
		return 0, nil
	}
	for i := range writes {
		writes[i].CreatedAt = now
		writes[i].UpdatedAt = now
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "molecule_id"}, {Name: "name"}, {Name: "source"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "units", "result_id", "updated_at"}),
	}).Create(&writes).Error
	if err != nil {
		return 0, fmt.Errorf("failed to apply properties: %w", err)
	}
	result.AppliedAt = &now
	return len(writes), nil
}

// Reject is open to both parties.
func (s *resultService) Reject(actor models.Actor, id uint, reason string) (*models.Result, error) {
	const op = "ResultService.Reject"
	return s.mutate(actor, id, op, "", func(tx *gorm.DB, result *models.Result, sub *models.Submission) error {
		return result.Reject(reason, s.now())
	})
}

// load reads a result with its properties and checks the actor may act on
// it. An empty party only requires view access.
func (s *resultService) load(db *gorm.DB, actor models.Actor, id uint, op string, party models.RoleKind) (*models.Result, *models.Submission, error) {
	var result models.Result
	if err := db.Preload("Properties").Preload("Documents").First(&result, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperrors.NotFound(op, "result %d not found", id)
		}
		return nil, nil, fmt.Errorf("failed to load result: %w", err)
	}
	sub, err := loadSubmission(db, result.SubmissionID)
	if err != nil {
		return nil, nil, err
	}
	if party == "" {
		err = authorizeView(op, actor, sub)
	} else {
		err = authorizeParty(op, actor, sub, party)
	}
	if err != nil {
		return nil, nil, err
	}
	return &result, sub, nil
}

func (s *resultService) mutate(actor models.Actor, id uint, op string, party models.RoleKind, fn func(tx *gorm.DB, result *models.Result, sub *models.Submission) error) (*models.Result, error) {
	var out *models.Result
	err := s.db.Transaction(func(tx *gorm.DB) error {
		result, sub, err := s.load(tx, actor, id, op, party)
		if err != nil {
			return err
		}
		if err := fn(tx, result, sub); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Save(result).Error; err != nil {
			return fmt.Errorf("failed to save result: %w", err)
		}
		out = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

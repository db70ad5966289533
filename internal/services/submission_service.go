package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/rxtech-lab/pharmalink/internal/apperrors"
	"github.com/rxtech-lab/pharmalink/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CreateSubmissionInput struct {
	Name           string
	CROServiceID   uint
	Description    string
	Specifications models.JSON
}

// UpdateSubmissionInput carries the editable fields. Nil means unchanged.
type UpdateSubmissionInput struct {
	Name           *string
	Description    *string
	Specifications models.JSON
	CRONotes       *string
}

// ActionParams are the optional inputs of ProcessAction. Pricing fields are
// read by provide_pricing, Reason by reject and cancel.
type ActionParams struct {
	Price          *float64
	Currency       string
	TurnaroundDays *int
	Reason         string
}

// SubmissionService drives submissions through their lifecycle. Every
// mutation runs in one transaction and fires the status hooks on change.
type SubmissionService interface {
	CreateSubmission(actor models.Actor, input CreateSubmissionInput) (*models.Submission, error)
	GetSubmission(id uint) (*models.Submission, error)
	GetSubmissionForActor(actor models.Actor, id uint) (*models.Submission, error)
	ListSubmissions(actor models.Actor, f Filter) (Page[models.Submission], error)
	UpdateDetails(actor models.Actor, id uint, input UpdateSubmissionInput) (*models.Submission, error)
	UpdateStatus(actor models.Actor, id uint, status models.SubmissionStatus, reason string) (*models.Submission, error)

	Submit(actor models.Actor, id uint) (*models.Submission, error)
	SetPricing(actor models.Actor, id uint, price float64, currency string, turnaroundDays int) (*models.Submission, error)
	Approve(actor models.Actor, id uint) (*models.Submission, error)
	Complete(actor models.Actor, id uint) (*models.Submission, error)
	Cancel(actor models.Actor, id uint, reason string) (*models.Submission, error)
	Reject(actor models.Actor, id uint, reason string) (*models.Submission, error)
	ProcessAction(actor models.Actor, id uint, action models.SubmissionAction, params ActionParams) (*models.Submission, error)

	AddMolecule(actor models.Actor, id uint, moleculeID uint, concentration *float64, notes string) (*models.SubmissionMolecule, error)
	RemoveMolecule(actor models.Actor, id uint, moleculeID uint) error

	GetRequiredDocuments(id uint) ([]models.RequiredDocument, error)
	AllowedActions(actor models.Actor, id uint) ([]models.SubmissionAction, error)
	History(actor models.Actor, id uint) ([]models.SubmissionStatusHistory, error)
}

var submissionFields = FieldSet{
	"status":         "submissions.status",
	"name":           "submissions.name",
	"cro_service_id": "submissions.cro_service_id",
	"created_at":     "submissions.created_at",
	"updated_at":     "submissions.updated_at",
	"submitted_at":   "submissions.submitted_at",
}

type submissionService struct {
	db           *gorm.DB
	hooks        HookService
	requirements models.RequirementTable
	now          func() time.Time
}

// NewSubmissionService uses the default document requirements when
// requirements is nil.
func NewSubmissionService(db *gorm.DB, hooks HookService, requirements models.RequirementTable) SubmissionService {
	if requirements == nil {
		requirements = models.DefaultDocumentRequirements
	}
	if hooks == nil {
		hooks = NewHookService()
	}
	return &submissionService{
		db:           db,
		hooks:        hooks,
		requirements: requirements,
		now:          time.Now,
	}
}

func (s *submissionService) CreateSubmission(actor models.Actor, input CreateSubmissionInput) (*models.Submission, error) {
	const op = "SubmissionService.CreateSubmission"
	if !actor.Role.IsPharma() {
		return nil, apperrors.Unauthorized(op, "only pharma users create submissions").WithDetail("role", actor.Role)
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.Validation(op, "name is required")
	}

	var service models.CROService
	if err := s.db.First(&service, input.CROServiceID).Error; err != nil {
		return nil, notFoundOr(err, op, "CRO service %d not found", input.CROServiceID)
	}
	if !service.IsActive {
		return nil, apperrors.Conflict(op, "CRO service %d is not accepting submissions", service.ID)
	}

	sub := &models.Submission{
		Name:           name,
		Status:         models.SubmissionStatusDraft,
		CROServiceID:   service.ID,
		CreatedByID:    actor.UserID,
		OrganizationID: actor.OrganizationID,
		Description:    input.Description,
		Specifications: input.Specifications,
	}
	if err := s.db.Omit(clause.Associations).Create(sub).Error; err != nil {
		return nil, fmt.Errorf("failed to create submission: %w", err)
	}
	sub.CROService = service
	return sub, nil
}

func (s *submissionService) GetSubmission(id uint) (*models.Submission, error) {
	return loadSubmission(s.db, id)
}

func (s *submissionService) GetSubmissionForActor(actor models.Actor, id uint) (*models.Submission, error) {
	sub, err := loadSubmission(s.db, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeView("SubmissionService.GetSubmission", actor, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *submissionService) ListSubmissions(actor models.Actor, f Filter) (Page[models.Submission], error) {
	return Paginate[models.Submission](scopeSubmissions(s.db, actor), f, submissionFields, "submissions.created_at DESC", "CROService")
}

// UpdateDetails edits content fields. Pharma edits name, description and
// specifications; the CRO edits its notes. Each side only in its editable
// statuses.
func (s *submissionService) UpdateDetails(actor models.Actor, id uint, input UpdateSubmissionInput) (*models.Submission, error) {
	const op = "SubmissionService.UpdateDetails"
	return s.mutate(actor, id, "", func(tx *gorm.DB, sub *models.Submission) error {
		if err := authorizeView(op, actor, sub); err != nil {
			return err
		}
		if !sub.CanBeEditedBy(actor.Role) {
			return apperrors.Conflict(op, "submission in status %s cannot be edited by %s", sub.Status, actor.Role).
				WithDetail("current_status", sub.Status)
		}

		pharmaFields := input.Name != nil || input.Description != nil || input.Specifications != nil
		if pharmaFields && actor.Role.IsCRO() {
			return apperrors.Unauthorized(op, "CRO users may only edit CRO notes")
		}
		if input.CRONotes != nil && actor.Role.IsPharma() {
			return apperrors.Unauthorized(op, "pharma users may not edit CRO notes")
		}

		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" {
				return apperrors.Validation(op, "name must not be empty")
			}
			sub.Name = name
		}
		if input.Description != nil {
			sub.Description = *input.Description
		}
		if input.Specifications != nil {
			sub.Specifications = input.Specifications
		}
		if input.CRONotes != nil {
			sub.CRONotes = *input.CRONotes
		}
		sub.UpdatedAt = s.now()
		return nil
	})
}

// UpdateStatus is the raw administrative transition, checked only against
// the transition table.
func (s *submissionService) UpdateStatus(actor models.Actor, id uint, status models.SubmissionStatus, reason string) (*models.Submission, error) {
	const op = "SubmissionService.UpdateStatus"
	if !actor.Role.IsAdmin() {
		return nil, apperrors.Unauthorized(op, "only system admins set a status directly")
	}
	return s.mutate(actor, id, reason, func(tx *gorm.DB, sub *models.Submission) error {
		return sub.UpdateStatus(status, s.now())
	})
}

func (s *submissionService) Submit(actor models.Actor, id uint) (*models.Submission, error) {
	return s.ProcessAction(actor, id, models.ActionSubmit, ActionParams{})
}

func (s *submissionService) SetPricing(actor models.Actor, id uint, price float64, currency string, turnaroundDays int) (*models.Submission, error) {
	return s.ProcessAction(actor, id, models.ActionProvidePricing, ActionParams{
		Price:          &price,
		Currency:       currency,
		TurnaroundDays: &turnaroundDays,
	})
}

func (s *submissionService) Approve(actor models.Actor, id uint) (*models.Submission, error) {
	return s.ProcessAction(actor, id, models.ActionApprove, ActionParams{})
}

func (s *submissionService) Complete(actor models.Actor, id uint) (*models.Submission, error) {
	return s.ProcessAction(actor, id, models.ActionComplete, ActionParams{})
}

func (s *submissionService) Cancel(actor models.Actor, id uint, reason string) (*models.Submission, error) {
	return s.ProcessAction(actor, id, models.ActionCancel, ActionParams{Reason: reason})
}

func (s *submissionService) Reject(actor models.Actor, id uint, reason string) (*models.Submission, error) {
	return s.ProcessAction(actor, id, models.ActionReject, ActionParams{Reason: reason})
}

// ProcessAction applies one action keyword on behalf of actor.
func (s *submissionService) ProcessAction(actor models.Actor, id uint, action models.SubmissionAction, params ActionParams) (*models.Submission, error) {
	const op = "SubmissionService.ProcessAction"
	if _, ok := models.ActionRoles[action]; !ok {
		return nil, apperrors.Validation(op, "unknown action %q", action)
	}

	return s.mutate(actor, id, params.Reason, func(tx *gorm.DB, sub *models.Submission) error {
		if err := authorizeAction(op, actor, sub, action); err != nil {
			return err
		}
		if !action.AvailableFrom(sub.Status) {
			return apperrors.Conflict(op, "action %s is not available while submission is %s", action, sub.Status).
				WithDetail("current_status", sub.Status).
				WithDetail("attempted_action", action).
				WithDetail("available_actions", models.AvailableActions(sub.Status, actor.Role))
		}

		now := s.now()
		switch action {
		case models.ActionSubmit:
			checklist := models.ResolveRequiredDocuments(s.requirements, sub.CROService.ServiceType, sub.Documents)
			return sub.Submit(checklist, now)
		case models.ActionStartReview:
			return sub.UpdateStatus(models.SubmissionStatusPendingReview, now)
		case models.ActionProvidePricing:
			if params.Price == nil || params.TurnaroundDays == nil {
				return apperrors.Validation(op, "price and turnaround days are required")
			}
			if err := sub.SetPricing(*params.Price, params.Currency, *params.TurnaroundDays, now); err != nil {
				return err
			}
			if sub.Status == models.SubmissionStatusPendingReview {
				return sub.UpdateStatus(models.SubmissionStatusPricingProvided, now)
			}
			return nil
		case models.ActionApprove:
			return sub.Approve(now)
		case models.ActionReject:
			return sub.Reject(params.Reason, now)
		case models.ActionStartWork:
			return sub.UpdateStatus(models.SubmissionStatusInProgress, now)
		case models.ActionComplete:
			return sub.Complete(now)
		case models.ActionCancel:
			return sub.Cancel(now)
		}
		return apperrors.Validation(op, "unknown action %q", action)
	})
}

func (s *submissionService) AddMolecule(actor models.Actor, id uint, moleculeID uint, concentration *float64, notes string) (*models.SubmissionMolecule, error) {
	const op = "SubmissionService.AddMolecule"
	var link *models.SubmissionMolecule
	_, err := s.mutate(actor, id, "", func(tx *gorm.DB, sub *models.Submission) error {
		if err := authorizeParty(op, actor, sub, models.RoleKindPharma); err != nil {
			return err
		}
		var molecule models.Molecule
		if err := tx.First(&molecule, moleculeID).Error; err != nil {
			return notFoundOr(err, op, "molecule %d not found", moleculeID)
		}
		if molecule.OrganizationID != sub.OrganizationID {
			return apperrors.Unauthorized(op, "molecule %d belongs to another organization", moleculeID)
		}

		added, err := sub.AddMolecule(moleculeID, concentration, notes)
		if err != nil {
			return err
		}
		if err := tx.Create(added).Error; err != nil {
			return fmt.Errorf("failed to add molecule: %w", err)
		}
		added.Molecule = molecule
		link = added
		sub.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return link, nil
}

func (s *submissionService) RemoveMolecule(actor models.Actor, id uint, moleculeID uint) error {
	const op = "SubmissionService.RemoveMolecule"
	_, err := s.mutate(actor, id, "", func(tx *gorm.DB, sub *models.Submission) error {
		if err := authorizeParty(op, actor, sub, models.RoleKindPharma); err != nil {
			return err
		}
		if err := sub.RemoveMolecule(moleculeID); err != nil {
			return err
		}
		err := tx.Where("submission_id = ? AND molecule_id = ?", sub.ID, moleculeID).
			Delete(&models.SubmissionMolecule{}).Error
		if err != nil {
			return fmt.Errorf("failed to remove molecule: %w", err)
		}
		sub.UpdatedAt = s.now()
		return nil
	})
	return err
}

func (s *submissionService) GetRequiredDocuments(id uint) ([]models.RequiredDocument, error) {
	sub, err := loadSubmission(s.db, id)
	if err != nil {
		return nil, err
	}
	return models.ResolveRequiredDocuments(s.requirements, sub.CROService.ServiceType, sub.Documents), nil
}

// AllowedActions lists what actor may send right now. Unauthorized parties
// get an error rather than an empty list.
func (s *submissionService) AllowedActions(actor models.Actor, id uint) ([]models.SubmissionAction, error) {
	sub, err := s.GetSubmissionForActor(actor, id)
	if err != nil {
		return nil, err
	}
	actions := models.AvailableActions(sub.Status, actor.Role)
	if actions == nil {
		actions = []models.SubmissionAction{}
	}
	return actions, nil
}

func (s *submissionService) History(actor models.Actor, id uint) ([]models.SubmissionStatusHistory, error) {
	if _, err := s.GetSubmissionForActor(actor, id); err != nil {
		return nil, err
	}
	var history []models.SubmissionStatusHistory
	err := s.db.Where("submission_id = ?", id).Order("created_at ASC, id ASC").Find(&history).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load status history: %w", err)
	}
	return history, nil
}

// mutate loads the submission inside a transaction, applies fn, saves the
// row and fires the hooks when the status changed. Nothing is written when
// fn fails.
func (s *submissionService) mutate(actor models.Actor, id uint, reason string, fn func(tx *gorm.DB, sub *models.Submission) error) (*models.Submission, error) {
	var result *models.Submission
	err := s.db.Transaction(func(tx *gorm.DB) error {
		sub, err := loadSubmission(tx, id)
		if err != nil {
			return err
		}
		from := sub.Status
		if err := fn(tx, sub); err != nil {
			return err
		}
		if err := saveSubmission(tx, sub); err != nil {
			return err
		}
		if sub.Status != from {
			err := s.hooks.OnStatusChanged(tx, StatusChange{
				Submission: *sub,
				From:       from,
				To:         sub.Status,
				Actor:      actor,
				Reason:     reason,
			})
			if err != nil {
				return fmt.Errorf("status hook failed: %w", err)
			}
		}
		result = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func saveSubmission(tx *gorm.DB, sub *models.Submission) error {
	if err := tx.Omit(clause.Associations).Save(sub).Error; err != nil {
		return fmt.Errorf("failed to save submission: %w", err)
	}
	return nil
}

// advanceSubmission moves a submission forward from the result workflow. It
// is a no-op when the submission is already at or past next.
func advanceSubmission(tx *gorm.DB, hooks HookService, actor models.Actor, submissionID uint, next models.SubmissionStatus, now time.Time) (bool, error) {
	sub, err := loadSubmission(tx, submissionID)
	if err != nil {
		return false, err
	}
	from := sub.Status
	moved, err := sub.AdvanceTo(next, now)
	if err != nil || !moved {
		return false, err
	}
	if err := saveSubmission(tx, sub); err != nil {
		return false, err
	}
	if hooks != nil {
		change := StatusChange{Submission: *sub, From: from, To: sub.Status, Actor: actor}
		if err := hooks.OnStatusChanged(tx, change); err != nil {
			return false, fmt.Errorf("status hook failed: %w", err)
		}
	}
	return true, nil
}

package services

import (
	"errors"
	"fmt"

	"github.com/rxtech-lab/pharmalink/internal/apperrors"
	"github.com/rxtech-lab/pharmalink/internal/models"
	"gorm.io/gorm"
)

// loadSubmission reads a submission with the relations every workflow rule
// needs: the CRO service (routing and service type), molecules and documents.
func loadSubmission(db *gorm.DB, id uint) (*models.Submission, error) {
	var sub models.Submission
	err := db.Preload("CROService").
		Preload("Molecules").
		Preload("Documents").
		First(&sub, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("loadSubmission", "submission %d not found", id)
		}
		return nil, fmt.Errorf("failed to load submission: %w", err)
	}
	return &sub, nil
}

// isParty reports whether actor belongs to the pharma organization that owns
// sub or to the CRO organization the submission is routed to.
func isParty(actor models.Actor, sub *models.Submission) bool {
	switch actor.Role.Kind() {
	case models.RoleKindAdmin:
		return true
	case models.RoleKindPharma:
		return sub.OrganizationID == actor.OrganizationID
	case models.RoleKindCRO:
		return sub.CROService.OrganizationID == actor.OrganizationID
	default:
		return false
	}
}

func authorizeView(op string, actor models.Actor, sub *models.Submission) error {
	if !isParty(actor, sub) {
		return apperrors.Unauthorized(op, "user %d has no access to submission %d", actor.UserID, sub.ID).
			WithDetail("role", actor.Role)
	}
	return nil
}

// authorizeAction checks both the role table and organization membership.
func authorizeAction(op string, actor models.Actor, sub *models.Submission, action models.SubmissionAction) error {
	if !action.AllowedFor(actor.Role) {
		return apperrors.Unauthorized(op, "role %s may not %s a submission", actor.Role, action).
			WithDetail("role", actor.Role).
			WithDetail("attempted_action", action)
	}
	return authorizeView(op, actor, sub)
}

// authorizeParty requires the actor to act for the given side of the
// submission. System admins act for either side.
func authorizeParty(op string, actor models.Actor, sub *models.Submission, kind models.RoleKind) error {
	if !actor.Role.IsAdmin() && actor.Role.Kind() != kind {
		return apperrors.Unauthorized(op, "only %s users may do this", kind).
			WithDetail("role", actor.Role)
	}
	return authorizeView(op, actor, sub)
}

// authorizeAttestation guards marking a document signed without the signing
// provider. Agreements that need a signature can only be attested by system
// admins; anything else follows the view rule.
func authorizeAttestation(op string, actor models.Actor, doc *models.Document) error {
	if doc.SignatureRequired && !actor.Role.IsAdmin() {
		return apperrors.Unauthorized(op, "only system admins may mark a %s as signed outside e-signature", doc.Type).
			WithDetail("role", actor.Role).
			WithDetail("type", doc.Type)
	}
	return nil
}

// scopeSubmissions restricts a submissions query to what actor may see.
func scopeSubmissions(db *gorm.DB, actor models.Actor) *gorm.DB {
	switch actor.Role.Kind() {
	case models.RoleKindPharma:
		return db.Where("submissions.organization_id = ?", actor.OrganizationID)
	case models.RoleKindCRO:
		return db.Where("submissions.cro_service_id IN (?)",
			db.Session(&gorm.Session{NewDB: true}).Model(&models.CROService{}).Select("id").Where("organization_id = ?", actor.OrganizationID))
	default:
		return db
	}
}

func notFoundOr(err error, op, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NotFound(op, format, args...)
	}
	return fmt.Errorf("%s: %w", op, err)
}

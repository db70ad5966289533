package models

import (
	"slices"
	"strings"
	"time"

	"github.com/rxtech-lab/pharmalink/internal/apperrors"
)

// Submission is a unit of experimental work a pharma organization requests
// from a CRO. Status only moves through SubmissionTransitions.
type Submission struct {
	ID                      uint             `gorm:"primaryKey" json:"id"`
	Name                    string           `gorm:"not null" json:"name"`
	Status                  SubmissionStatus `gorm:"not null;default:DRAFT;index" json:"status"`
	CROServiceID            uint             `gorm:"not null;index" json:"cro_service_id"`
	CreatedByID             uint             `gorm:"not null" json:"created_by_id"`
	OrganizationID          uint             `gorm:"not null;index" json:"organization_id"`
	Description             string           `json:"description"`
	CRONotes                string           `json:"cro_notes"`
	Price                   *float64         `json:"price,omitempty"`
	PriceCurrency           *string          `json:"price_currency,omitempty"`
	EstimatedTurnaroundDays *int             `json:"estimated_turnaround_days,omitempty"`
	EstimatedCompletionDate *time.Time       `json:"estimated_completion_date,omitempty"`
	Specifications          JSON             `gorm:"type:text" json:"specifications"`
	SubmittedAt             *time.Time       `json:"submitted_at,omitempty"`
	ApprovedAt              *time.Time       `json:"approved_at,omitempty"`
	CompletedAt             *time.Time       `json:"completed_at,omitempty"`
	CreatedAt               time.Time        `json:"created_at"`
	UpdatedAt               time.Time        `json:"updated_at"`

	CROService CROService           `gorm:"foreignKey:CROServiceID" json:"cro_service,omitempty"`
	Molecules  []SubmissionMolecule `gorm:"foreignKey:SubmissionID" json:"molecules,omitempty"`
	Documents  []Document           `gorm:"foreignKey:SubmissionID" json:"documents,omitempty"`
	Results    []Result             `gorm:"foreignKey:SubmissionID" json:"results,omitempty"`
}

// SubmissionMolecule associates a molecule with a submission.
type SubmissionMolecule struct {
	SubmissionID  uint     `gorm:"primaryKey" json:"submission_id"`
	MoleculeID    uint     `gorm:"primaryKey" json:"molecule_id"`
	Concentration *float64 `json:"concentration,omitempty"`
	Notes         string   `json:"notes"`

	Molecule Molecule `gorm:"foreignKey:MoleculeID" json:"molecule,omitempty"`
}

// SubmissionStatusHistory is the audit trail of status changes.
type SubmissionStatusHistory struct {
	ID           uint             `gorm:"primaryKey" json:"id"`
	SubmissionID uint             `gorm:"not null;index" json:"submission_id"`
	FromStatus   SubmissionStatus `gorm:"not null" json:"from_status"`
	ToStatus     SubmissionStatus `gorm:"not null" json:"to_status"`
	ActorID      uint             `json:"actor_id"`
	Reason       string           `json:"reason"`
	CreatedAt    time.Time        `json:"created_at"`
}

// UpdateStatus moves the submission to next if the transition table allows
// it and stamps the timestamp belonging to the new status.
func (s *Submission) UpdateStatus(next SubmissionStatus, now time.Time) error {
	if !next.IsValid() {
		return apperrors.Validation("Submission.UpdateStatus", "unknown submission status %q", next)
	}
	if !s.Status.CanTransitionTo(next) {
		return apperrors.Conflict("Submission.UpdateStatus", "cannot move submission from %s to %s", s.Status, next).
			WithDetail("current_status", s.Status).
			WithDetail("attempted_status", next).
			WithDetail("allowed_statuses", s.Status.NextStatuses())
	}

	s.Status = next
	switch next {
	case SubmissionStatusSubmitted:
		s.SubmittedAt = &now
	case SubmissionStatusApproved:
		s.ApprovedAt = &now
	case SubmissionStatusCompleted:
		s.CompletedAt = &now
	}
	s.UpdatedAt = now
	return nil
}

// Submit sends a draft to the CRO. It needs at least one molecule and a
// complete document checklist.
func (s *Submission) Submit(checklist []RequiredDocument, now time.Time) error {
	if s.Status != SubmissionStatusDraft {
		return s.statusConflict("Submission.Submit", "submit")
	}
	if len(s.Molecules) == 0 {
		return apperrors.Conflict("Submission.Submit", "submission has no molecules").
			WithDetail("current_status", s.Status)
	}
	if !HasRequiredDocuments(checklist) {
		return apperrors.Conflict("Submission.Submit", "required documents are missing or unsigned").
			WithDetail("current_status", s.Status).
			WithDetail("missing_documents", MissingDocumentTypes(checklist))
	}
	return s.UpdateStatus(SubmissionStatusSubmitted, now)
}

// SetPricing records the CRO quote. It does not change status.
func (s *Submission) SetPricing(price float64, currency string, turnaroundDays int, now time.Time) error {
	if !slices.Contains(PricingStatuses, s.Status) {
		return s.statusConflict("Submission.SetPricing", "set_pricing")
	}
	if price < 0 {
		return apperrors.Validation("Submission.SetPricing", "price must not be negative")
	}
	if turnaroundDays <= 0 {
		return apperrors.Validation("Submission.SetPricing", "turnaround days must be positive")
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return apperrors.Validation("Submission.SetPricing", "currency is required")
	}

	completion := now.AddDate(0, 0, turnaroundDays)
	s.Price = &price
	s.PriceCurrency = &currency
	s.EstimatedTurnaroundDays = &turnaroundDays
	s.EstimatedCompletionDate = &completion
	s.UpdatedAt = now
	return nil
}

// HasPricing reports whether both price and turnaround are set.
func (s *Submission) HasPricing() bool {
	return s.Price != nil && s.EstimatedTurnaroundDays != nil
}

func (s *Submission) Approve(now time.Time) error {
	if s.Status != SubmissionStatusPricingProvided {
		return s.statusConflict("Submission.Approve", "approve")
	}
	if !s.HasPricing() {
		return apperrors.Conflict("Submission.Approve", "submission has no pricing").
			WithDetail("current_status", s.Status)
	}
	return s.UpdateStatus(SubmissionStatusApproved, now)
}

func (s *Submission) Complete(now time.Time) error {
	if s.Status != SubmissionStatusResultsReviewed {
		return s.statusConflict("Submission.Complete", "complete")
	}
	return s.UpdateStatus(SubmissionStatusCompleted, now)
}

// Cancel is available to either party while the submission is active.
func (s *Submission) Cancel(now time.Time) error {
	if !s.Status.IsActive() {
		return s.statusConflict("Submission.Cancel", "cancel")
	}
	return s.UpdateStatus(SubmissionStatusCancelled, now)
}

// Reject ends the submission and keeps the reason in the CRO notes.
func (s *Submission) Reject(reason string, now time.Time) error {
	if err := s.UpdateStatus(SubmissionStatusRejected, now); err != nil {
		return err
	}
	if reason = strings.TrimSpace(reason); reason != "" {
		s.CRONotes = appendNote(s.CRONotes, "Rejected: "+reason)
	}
	return nil
}

// AdvanceTo moves forward to next only when it is the immediate successor
// on the result path. It returns false when the submission is already at or
// beyond next.
func (s *Submission) AdvanceTo(next SubmissionStatus, now time.Time) (bool, error) {
	if statusRank(s.Status) >= statusRank(next) {
		return false, nil
	}
	if err := s.UpdateStatus(next, now); err != nil {
		return false, err
	}
	return true, nil
}

// statusRank orders the linear happy path. Terminal side exits rank highest
// so nothing advances out of them.
func statusRank(s SubmissionStatus) int {
	if s == SubmissionStatusCancelled || s == SubmissionStatusRejected {
		return len(AllSubmissionStatuses)
	}
	return slices.Index(AllSubmissionStatuses, s)
}

func (s *Submission) HasMolecule(moleculeID uint) bool {
	return slices.ContainsFunc(s.Molecules, func(m SubmissionMolecule) bool {
		return m.MoleculeID == moleculeID
	})
}

// AddMolecule attaches a molecule while the submission is editable.
func (s *Submission) AddMolecule(moleculeID uint, concentration *float64, notes string) (*SubmissionMolecule, error) {
	if !s.Status.IsEditable() {
		return nil, s.statusConflict("Submission.AddMolecule", "add_molecule")
	}
	if s.HasMolecule(moleculeID) {
		return nil, apperrors.Conflict("Submission.AddMolecule", "molecule %d is already part of the submission", moleculeID).
			WithDetail("molecule_id", moleculeID)
	}
	link := SubmissionMolecule{
		SubmissionID:  s.ID,
		MoleculeID:    moleculeID,
		Concentration: concentration,
		Notes:         notes,
	}
	s.Molecules = append(s.Molecules, link)
	return &link, nil
}

// RemoveMolecule detaches a molecule while the submission is editable.
func (s *Submission) RemoveMolecule(moleculeID uint) error {
	if !s.Status.IsEditable() {
		return s.statusConflict("Submission.RemoveMolecule", "remove_molecule")
	}
	idx := slices.IndexFunc(s.Molecules, func(m SubmissionMolecule) bool {
		return m.MoleculeID == moleculeID
	})
	if idx < 0 {
		return apperrors.NotFound("Submission.RemoveMolecule", "molecule %d is not part of the submission", moleculeID).
			WithDetail("molecule_id", moleculeID)
	}
	s.Molecules = slices.Delete(s.Molecules, idx, idx+1)
	return nil
}

// CanBeEditedBy applies the per-party editable status rule.
func (s *Submission) CanBeEditedBy(role UserRole) bool {
	return s.Status.EditableBy(role)
}

func (s *Submission) statusConflict(op, action string) *apperrors.Error {
	return apperrors.Conflict(op, "action %s is not allowed while submission is %s", action, s.Status).
		WithDetail("current_status", s.Status).
		WithDetail("attempted_action", action)
}

func appendNote(notes, note string) string {
	if notes == "" {
		return note
	}
	return notes + "\n" + note
}

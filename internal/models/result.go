package models

import (
	"math"
	"slices"
	"strings"
	"time"

	"github.com/rxtech-lab/pharmalink/internal/apperrors"
	"gorm.io/datatypes"
)

type ResultStatus string

const (
	ResultStatusPending    ResultStatus = "PENDING"
	ResultStatusProcessing ResultStatus = "PROCESSING"
	ResultStatusCompleted  ResultStatus = "COMPLETED"
	ResultStatusFailed     ResultStatus = "FAILED"
	ResultStatusRejected   ResultStatus = "REJECTED"
)

// Result is experimental data a CRO uploads for a submission. Rows are never
// deleted.
type Result struct {
	ID                   uint           `gorm:"primaryKey" json:"id"`
	SubmissionID         uint           `gorm:"not null;index" json:"submission_id"`
	UploadedByID         uint           `gorm:"not null" json:"uploaded_by_id"`
	Status               ResultStatus   `gorm:"not null;default:PENDING;index" json:"status"`
	Notes                string         `json:"notes"`
	Metadata             datatypes.JSON `json:"metadata"`
	ProtocolUsed         string         `json:"protocol_used"`
	QualityControlPassed *bool          `json:"quality_control_passed,omitempty"`
	UploadedAt           time.Time      `json:"uploaded_at"`
	ProcessedAt          *time.Time     `json:"processed_at,omitempty"`
	ReviewedAt           *time.Time     `json:"reviewed_at,omitempty"`
	// AppliedAt is set once the properties have been copied onto molecules.
	AppliedAt *time.Time `json:"applied_at,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`

	Properties []ResultProperty `gorm:"foreignKey:ResultID" json:"properties,omitempty"`
	Documents  []Document       `gorm:"foreignKey:ResultID" json:"documents,omitempty"`
}

// ResultProperty is one measured value for one molecule.
type ResultProperty struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ResultID   uint      `gorm:"not null;uniqueIndex:idx_result_property" json:"result_id"`
	MoleculeID uint      `gorm:"not null;uniqueIndex:idx_result_property" json:"molecule_id"`
	Name       string    `gorm:"not null;uniqueIndex:idx_result_property" json:"name"`
	Value      float64   `json:"value"`
	Units      string    `json:"units"`
	CreatedAt  time.Time `json:"created_at"`
}

// StartProcessing marks a pending result as being worked on.
func (r *Result) StartProcessing(now time.Time) error {
	if r.Status != ResultStatusPending {
		return r.statusConflict("Result.StartProcessing", "start_processing")
	}
	r.Status = ResultStatusProcessing
	r.UpdatedAt = now
	return nil
}

// AcceptsProperties reports whether measurements may still be added.
func (r *Result) AcceptsProperties() bool {
	return r.Status == ResultStatusPending || r.Status == ResultStatusProcessing
}

// MarkAsProcessed closes processing. A failed quality check ends in FAILED.
func (r *Result) MarkAsProcessed(qualityControlPassed bool, now time.Time) error {
	if r.Status != ResultStatusPending && r.Status != ResultStatusProcessing {
		return r.statusConflict("Result.MarkAsProcessed", "mark_as_processed")
	}
	r.QualityControlPassed = &qualityControlPassed
	if qualityControlPassed {
		r.Status = ResultStatusCompleted
	} else {
		r.Status = ResultStatusFailed
	}
	r.ProcessedAt = &now
	r.UpdatedAt = now
	return nil
}

// MarkAsReviewed is allowed once, on a completed result.
func (r *Result) MarkAsReviewed(now time.Time) error {
	if r.Status != ResultStatusCompleted {
		return r.statusConflict("Result.MarkAsReviewed", "mark_as_reviewed")
	}
	if r.ReviewedAt != nil {
		return apperrors.Conflict("Result.MarkAsReviewed", "result was already reviewed").
			WithDetail("reviewed_at", *r.ReviewedAt)
	}
	r.ReviewedAt = &now
	r.UpdatedAt = now
	return nil
}

// Reject never overwrites earlier notes.
func (r *Result) Reject(reason string, now time.Time) error {
	if r.Status == ResultStatusRejected {
		return r.statusConflict("Result.Reject", "reject")
	}
	r.Status = ResultStatusRejected
	if reason = strings.TrimSpace(reason); reason != "" {
		r.Notes = appendNote(r.Notes, "Rejected: "+reason)
	}
	r.UpdatedAt = now
	return nil
}

// AddProperty records a measurement. A second value for the same
// (molecule, name) is a conflict.
func (r *Result) AddProperty(moleculeID uint, name string, value float64, units string) (*ResultProperty, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.Validation("Result.AddProperty", "property name is required")
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, apperrors.Validation("Result.AddProperty", "property %s has a non-finite value", name)
	}
	if r.HasProperty(moleculeID, name) {
		return nil, apperrors.Conflict("Result.AddProperty", "property %s already recorded for molecule %d", name, moleculeID).
			WithDetail("molecule_id", moleculeID).
			WithDetail("property", name)
	}
	prop := ResultProperty{
		ResultID:   r.ID,
		MoleculeID: moleculeID,
		Name:       name,
		Value:      value,
		Units:      strings.TrimSpace(units),
	}
	r.Properties = append(r.Properties, prop)
	return &prop, nil
}

func (r *Result) HasProperty(moleculeID uint, name string) bool {
	return slices.ContainsFunc(r.Properties, func(p ResultProperty) bool {
		return p.MoleculeID == moleculeID && p.Name == name
	})
}

// MoleculeProperties returns the writes applying this result to its
// molecules. It is empty unless the result is completed and not yet applied.
func (r *Result) MoleculeProperties() []MoleculeProperty {
	if r.Status != ResultStatusCompleted || r.AppliedAt != nil {
		return nil
	}
	resultID := r.ID
	writes := make([]MoleculeProperty, 0, len(r.Properties))
	for _, p := range r.Properties {
		writes = append(writes, MoleculeProperty{
			MoleculeID: p.MoleculeID,
			Name:       p.Name,
			Source:     PropertySourceExperimental,
			Value:      p.Value,
			Units:      p.Units,
			ResultID:   &resultID,
		})
	}
	return writes
}

func (r *Result) statusConflict(op, action string) *apperrors.Error {
	return apperrors.Conflict(op, "action %s is not allowed while result is %s", action, r.Status).
		WithDetail("current_status", r.Status).
		WithDetail("attempted_action", action)
}

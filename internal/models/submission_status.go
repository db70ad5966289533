package models

import (
	"slices"
	"strings"

	"github.com/rxtech-lab/pharmalink/internal/apperrors"
)

type SubmissionStatus string

const (
	SubmissionStatusDraft           SubmissionStatus = "DRAFT"
	SubmissionStatusSubmitted       SubmissionStatus = "SUBMITTED"
	SubmissionStatusPendingReview   SubmissionStatus = "PENDING_REVIEW"
	SubmissionStatusPricingProvided SubmissionStatus = "PRICING_PROVIDED"
	SubmissionStatusApproved        SubmissionStatus = "APPROVED"
	SubmissionStatusInProgress      SubmissionStatus = "IN_PROGRESS"
	SubmissionStatusResultsUploaded SubmissionStatus = "RESULTS_UPLOADED"
	SubmissionStatusResultsReviewed SubmissionStatus = "RESULTS_REVIEWED"
	SubmissionStatusCompleted       SubmissionStatus = "COMPLETED"
	SubmissionStatusCancelled       SubmissionStatus = "CANCELLED"
	SubmissionStatusRejected        SubmissionStatus = "REJECTED"
)

// AllSubmissionStatuses lists every status in lifecycle order.
var AllSubmissionStatuses = []SubmissionStatus{
	SubmissionStatusDraft,
	SubmissionStatusSubmitted,
	SubmissionStatusPendingReview,
	SubmissionStatusPricingProvided,
	SubmissionStatusApproved,
	SubmissionStatusInProgress,
	SubmissionStatusResultsUploaded,
	SubmissionStatusResultsReviewed,
	SubmissionStatusCompleted,
	SubmissionStatusCancelled,
	SubmissionStatusRejected,
}

var TerminalSubmissionStatuses = []SubmissionStatus{
	SubmissionStatusCompleted,
	SubmissionStatusCancelled,
	SubmissionStatusRejected,
}

// ActiveSubmissionStatuses is every status outside the terminal set.
var ActiveSubmissionStatuses = []SubmissionStatus{
	SubmissionStatusDraft,
	SubmissionStatusSubmitted,
	SubmissionStatusPendingReview,
	SubmissionStatusPricingProvided,
	SubmissionStatusApproved,
	SubmissionStatusInProgress,
	SubmissionStatusResultsUploaded,
	SubmissionStatusResultsReviewed,
}

// EditableSubmissionStatuses are the statuses in which molecules and
// specifications may change.
var EditableSubmissionStatuses = []SubmissionStatus{
	SubmissionStatusDraft,
}

// PricingStatuses are the statuses in which price and turnaround may be set.
var PricingStatuses = []SubmissionStatus{
	SubmissionStatusPendingReview,
	SubmissionStatusPricingProvided,
}

// SubmissionTransitions is the full transition table. Terminal statuses map
// to an empty list.
var SubmissionTransitions = map[SubmissionStatus][]SubmissionStatus{
	SubmissionStatusDraft:           {SubmissionStatusSubmitted, SubmissionStatusCancelled},
	SubmissionStatusSubmitted:       {SubmissionStatusPendingReview, SubmissionStatusCancelled, SubmissionStatusRejected},
	SubmissionStatusPendingReview:   {SubmissionStatusPricingProvided, SubmissionStatusRejected, SubmissionStatusCancelled},
	SubmissionStatusPricingProvided: {SubmissionStatusApproved, SubmissionStatusRejected, SubmissionStatusCancelled},
	SubmissionStatusApproved:        {SubmissionStatusInProgress, SubmissionStatusCancelled},
	SubmissionStatusInProgress:      {SubmissionStatusResultsUploaded, SubmissionStatusCancelled},
	SubmissionStatusResultsUploaded: {SubmissionStatusResultsReviewed, SubmissionStatusCancelled},
	SubmissionStatusResultsReviewed: {SubmissionStatusCompleted, SubmissionStatusCancelled},
	SubmissionStatusCompleted:       {},
	SubmissionStatusCancelled:       {},
	SubmissionStatusRejected:        {},
}

// RoleEditableStatuses lists, per party, the statuses in which that party
// may edit submission content.
var RoleEditableStatuses = map[RoleKind][]SubmissionStatus{
	RoleKindPharma: {SubmissionStatusDraft},
	RoleKindCRO:    {SubmissionStatusPendingReview, SubmissionStatusPricingProvided, SubmissionStatusInProgress},
}

// ParseSubmissionStatus is the single validation point for status strings.
func ParseSubmissionStatus(s string) (SubmissionStatus, error) {
	status := SubmissionStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !status.IsValid() {
		return "", apperrors.Validation("ParseSubmissionStatus", "unknown submission status %q", s)
	}
	return status, nil
}

func (s SubmissionStatus) IsValid() bool {
	_, ok := SubmissionTransitions[s]
	return ok
}

func (s SubmissionStatus) IsTerminal() bool {
	return slices.Contains(TerminalSubmissionStatuses, s)
}

func (s SubmissionStatus) IsActive() bool {
	return slices.Contains(ActiveSubmissionStatuses, s)
}

func (s SubmissionStatus) IsEditable() bool {
	return slices.Contains(EditableSubmissionStatuses, s)
}

// CanTransitionTo reports whether next is listed in the transition table for s.
func (s SubmissionStatus) CanTransitionTo(next SubmissionStatus) bool {
	allowed, ok := SubmissionTransitions[s]
	if !ok {
		return false
	}
	return slices.Contains(allowed, next)
}

// NextStatuses returns a copy of the allowed successors of s.
func (s SubmissionStatus) NextStatuses() []SubmissionStatus {
	return slices.Clone(SubmissionTransitions[s])
}

// EditableBy reports whether the given role may edit content while in s.
func (s SubmissionStatus) EditableBy(role UserRole) bool {
	if role.IsAdmin() {
		return true
	}
	return slices.Contains(RoleEditableStatuses[role.Kind()], s)
}

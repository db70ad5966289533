package models

import (
	"slices"
	"strings"

	"github.com/rxtech-lab/pharmalink/internal/apperrors"
)

// SubmissionAction is a keyword a caller sends to drive a submission.
type SubmissionAction string

const (
	ActionSubmit         SubmissionAction = "submit"
	ActionStartReview    SubmissionAction = "start_review"
	ActionProvidePricing SubmissionAction = "provide_pricing"
	ActionApprove        SubmissionAction = "approve"
	ActionReject         SubmissionAction = "reject"
	ActionStartWork      SubmissionAction = "start_work"
	ActionComplete       SubmissionAction = "complete"
	ActionCancel         SubmissionAction = "cancel"
)

// ActionRoles lists the parties allowed to send each action. System admins
// may send any of them.
var ActionRoles = map[SubmissionAction][]RoleKind{
	ActionSubmit:         {RoleKindPharma},
	ActionStartReview:    {RoleKindCRO},
	ActionProvidePricing: {RoleKindCRO},
	ActionApprove:        {RoleKindPharma},
	ActionReject:         {RoleKindPharma, RoleKindCRO},
	ActionStartWork:      {RoleKindCRO},
	ActionComplete:       {RoleKindPharma, RoleKindCRO},
	ActionCancel:         {RoleKindPharma, RoleKindCRO},
}

// ActionOrder is the order actions are presented in.
var ActionOrder = []SubmissionAction{
	ActionSubmit,
	ActionStartReview,
	ActionProvidePricing,
	ActionApprove,
	ActionStartWork,
	ActionComplete,
	ActionReject,
	ActionCancel,
}

func ParseSubmissionAction(s string) (SubmissionAction, error) {
	action := SubmissionAction(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := ActionRoles[action]; !ok {
		return "", apperrors.Validation("ParseSubmissionAction", "unknown action %q", s)
	}
	return action, nil
}

func (a SubmissionAction) AllowedFor(role UserRole) bool {
	if role.IsAdmin() {
		return true
	}
	return slices.Contains(ActionRoles[a], role.Kind())
}

// AvailableFrom reports whether the action can apply to a submission in
// status s, ignoring preconditions such as documents or pricing.
func (a SubmissionAction) AvailableFrom(s SubmissionStatus) bool {
	switch a {
	case ActionSubmit:
		return s == SubmissionStatusDraft
	case ActionStartReview:
		return s == SubmissionStatusSubmitted
	case ActionProvidePricing:
		return slices.Contains(PricingStatuses, s)
	case ActionApprove:
		return s == SubmissionStatusPricingProvided
	case ActionReject:
		return s.CanTransitionTo(SubmissionStatusRejected)
	case ActionStartWork:
		return s == SubmissionStatusApproved
	case ActionComplete:
		return s == SubmissionStatusResultsReviewed
	case ActionCancel:
		return s.IsActive()
	default:
		return false
	}
}

// AvailableActions lists the actions role may send while in status s.
func AvailableActions(s SubmissionStatus, role UserRole) []SubmissionAction {
	var actions []SubmissionAction
	for _, a := range ActionOrder {
		if a.AllowedFor(role) && a.AvailableFrom(s) {
			actions = append(actions, a)
		}
	}
	return actions
}

package models

import (
	"testing"

	"github.com/rxtech-lab/pharmalink/internal/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSubmissionAction(t *testing.T) {
	action, err := ParseSubmissionAction(" Provide_Pricing ")
	require.NoError(t, err)
	assert.Equal(t, ActionProvidePricing, action)

	_, err = ParseSubmissionAction("teleport")
	assert.True(t, apperrors.IsValidation(err))
}

func TestSubmissionAction_AllowedFor(t *testing.T) {
	assert.True(t, ActionSubmit.AllowedFor(UserRolePharmaScientist))
	assert.False(t, ActionSubmit.AllowedFor(UserRoleCROAdmin))
	assert.True(t, ActionProvidePricing.AllowedFor(UserRoleCROTechnician))
	assert.False(t, ActionApprove.AllowedFor(UserRoleCROAdmin))
	assert.True(t, ActionCancel.AllowedFor(UserRoleCROAdmin))
	assert.True(t, ActionCancel.AllowedFor(UserRolePharmaAdmin))

	for _, a := range ActionOrder {
		assert.True(t, a.AllowedFor(UserRoleSystemAdmin), "admin may %s", a)
	}
}

func TestAvailableActions(t *testing.T) {
	tests := []struct {
		name     string
		status   SubmissionStatus
		role     UserRole
		expected []SubmissionAction
	}{
		{
			name:     "pharma_draft",
			status:   SubmissionStatusDraft,
			role:     UserRolePharmaScientist,
			expected: []SubmissionAction{ActionSubmit, ActionCancel},
		},
		{
			name:     "cro_submitted",
			status:   SubmissionStatusSubmitted,
			role:     UserRoleCROAdmin,
			expected: []SubmissionAction{ActionStartReview, ActionReject, ActionCancel},
		},
		{
			name:     "pharma_pricing_provided",
			status:   SubmissionStatusPricingProvided,
			role:     UserRolePharmaAdmin,
			expected: []SubmissionAction{ActionApprove, ActionReject, ActionCancel},
		},
		{
			name:     "cro_pricing_provided",
			status:   SubmissionStatusPricingProvided,
			role:     UserRoleCROTechnician,
			expected: []SubmissionAction{ActionProvidePricing, ActionReject, ActionCancel},
		},
		{
			name:     "cro_in_progress",
			status:   SubmissionStatusInProgress,
			role:     UserRoleCROTechnician,
			expected: []SubmissionAction{ActionCancel},
		},
		{
			name:     "pharma_results_reviewed",
			status:   SubmissionStatusResultsReviewed,
			role:     UserRolePharmaScientist,
			expected: []SubmissionAction{ActionComplete, ActionCancel},
		},
		{
			name:     "terminal",
			status:   SubmissionStatusCancelled,
			role:     UserRoleSystemAdmin,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, AvailableActions(tt.status, tt.role))
		})
	}
}

package models

import (
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/rxtech-lab/pharmalink/internal/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSubmissionStatus(t *testing.T) {
	tests := []struct {
		input    string
		expected SubmissionStatus
		wantErr  bool
	}{
		{input: "DRAFT", expected: SubmissionStatusDraft},
		{input: " pricing_provided ", expected: SubmissionStatusPricingProvided},
		{input: "results_reviewed", expected: SubmissionStatusResultsReviewed},
		{input: "BOGUS", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			status, err := ParseSubmissionStatus(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, status)
		})
	}
}

func TestSubmissionStatus_Sets(t *testing.T) {
	assert.Len(t, AllSubmissionStatuses, 11)
	assert.Len(t, SubmissionTransitions, 11)

	for _, s := range AllSubmissionStatuses {
		assert.NotEqual(t, s.IsTerminal(), s.IsActive(), "status %s must be either active or terminal", s)
		if s.IsTerminal() {
			assert.Empty(t, s.NextStatuses(), "terminal status %s has successors", s)
		}
	}

	assert.True(t, SubmissionStatusDraft.IsEditable())
	assert.False(t, SubmissionStatusSubmitted.IsEditable())
}

// Every ordered pair of statuses is checked against the table.
func TestSubmission_UpdateStatusTransitionGrid(t *testing.T) {
	allowed := map[SubmissionStatus][]SubmissionStatus{
		SubmissionStatusDraft:           {SubmissionStatusSubmitted, SubmissionStatusCancelled},
		SubmissionStatusSubmitted:       {SubmissionStatusPendingReview, SubmissionStatusCancelled, SubmissionStatusRejected},
		SubmissionStatusPendingReview:   {SubmissionStatusPricingProvided, SubmissionStatusRejected, SubmissionStatusCancelled},
		SubmissionStatusPricingProvided: {SubmissionStatusApproved, SubmissionStatusRejected, SubmissionStatusCancelled},
		SubmissionStatusApproved:        {SubmissionStatusInProgress, SubmissionStatusCancelled},
		SubmissionStatusInProgress:      {SubmissionStatusResultsUploaded, SubmissionStatusCancelled},
		SubmissionStatusResultsUploaded: {SubmissionStatusResultsReviewed, SubmissionStatusCancelled},
		SubmissionStatusResultsReviewed: {SubmissionStatusCompleted, SubmissionStatusCancelled},
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, from := range AllSubmissionStatuses {
		for _, to := range AllSubmissionStatuses {
			t.Run(fmt.Sprintf("%s_to_%s", from, to), func(t *testing.T) {
				s := &Submission{Status: from}
				err := s.UpdateStatus(to, now)

				if slices.Contains(allowed[from], to) {
					require.NoError(t, err)
					assert.Equal(t, to, s.Status)
					assert.Equal(t, now, s.UpdatedAt)
				} else {
					require.Error(t, err)
					assert.True(t, apperrors.IsConflict(err))
					assert.Equal(t, from, s.Status, "status must not change on a rejected transition")
					assert.Equal(t, from, apperrors.DetailsOf(err)["current_status"])
				}
			})
		}
	}
}

func TestSubmission_UpdateStatusUnknownStatus(t *testing.T) {
	s := &Submission{Status: SubmissionStatusDraft}
	err := s.UpdateStatus(SubmissionStatus("BOGUS"), time.Now())
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, SubmissionStatusDraft, s.Status)
}

func TestSubmission_UpdateStatusTimestamps(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s := &Submission{Status: SubmissionStatusDraft}
	require.NoError(t, s.UpdateStatus(SubmissionStatusSubmitted, now))
	require.NotNil(t, s.SubmittedAt)
	assert.Equal(t, now, *s.SubmittedAt)
	assert.Nil(t, s.ApprovedAt)

	s.Status = SubmissionStatusPricingProvided
	require.NoError(t, s.UpdateStatus(SubmissionStatusApproved, now.Add(time.Hour)))
	require.NotNil(t, s.ApprovedAt)
	assert.Equal(t, now.Add(time.Hour), *s.ApprovedAt)

	s.Status = SubmissionStatusResultsReviewed
	require.NoError(t, s.UpdateStatus(SubmissionStatusCompleted, now.Add(2*time.Hour)))
	require.NotNil(t, s.CompletedAt)
}

func TestSubmissionStatus_EditableBy(t *testing.T) {
	tests := []struct {
		status   SubmissionStatus
		role     UserRole
		expected bool
	}{
		{SubmissionStatusDraft, UserRolePharmaScientist, true},
		{SubmissionStatusDraft, UserRoleCROTechnician, false},
		{SubmissionStatusPendingReview, UserRolePharmaAdmin, false},
		{SubmissionStatusPendingReview, UserRoleCROAdmin, true},
		{SubmissionStatusPricingProvided, UserRoleCROTechnician, true},
		{SubmissionStatusInProgress, UserRoleCROTechnician, true},
		{SubmissionStatusApproved, UserRoleCROAdmin, false},
		{SubmissionStatusCompleted, UserRoleSystemAdmin, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_%s", tt.status, tt.role), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.status.EditableBy(tt.role))
		})
	}
}

func TestParseUserRole(t *testing.T) {
	role, err := ParseUserRole("cro_technician")
	require.NoError(t, err)
	assert.Equal(t, UserRoleCROTechnician, role)
	assert.Equal(t, RoleKindCRO, role.Kind())
	assert.Equal(t, RoleKindPharma, UserRolePharmaAdmin.Kind())
	assert.Equal(t, RoleKindAdmin, UserRoleSystemAdmin.Kind())

	_, err = ParseUserRole("janitor")
	assert.True(t, apperrors.IsValidation(err))
}

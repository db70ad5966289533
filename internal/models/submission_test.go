package models

import (
	"testing"
	"time"

	"github.com/rxtech-lab/pharmalink/internal/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func draftWithMolecule() *Submission {
	return &Submission{
		ID:        1,
		Status:    SubmissionStatusDraft,
		Molecules: []SubmissionMolecule{{SubmissionID: 1, MoleculeID: 10}},
	}
}

func unsignedBindingAssayDocs() []Document {
	return []Document{
		{ID: 1, Type: DocumentTypeMTA, Status: DocumentStatusDraft, UploadedAt: testNow},
		{ID: 2, Type: DocumentTypeNDA, Status: DocumentStatusDraft, UploadedAt: testNow},
		{ID: 3, Type: DocumentTypeExperimentSpecification, Status: DocumentStatusDraft, UploadedAt: testNow},
	}
}

func TestSubmission_SubmitRequiresMolecules(t *testing.T) {
	s := &Submission{Status: SubmissionStatusDraft}
	docs := unsignedBindingAssayDocs()
	for i := range docs {
		docs[i].RecordSignature("env", testNow)
	}
	checklist := ResolveRequiredDocuments(DefaultDocumentRequirements, ServiceTypeBindingAssay, docs)
	require.True(t, HasRequiredDocuments(checklist))

	err := s.Submit(checklist, testNow)
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
	assert.Equal(t, SubmissionStatusDraft, s.Status)
	assert.Nil(t, s.SubmittedAt)
}

func TestSubmission_SubmitRequiresSignedDocuments(t *testing.T) {
	s := draftWithMolecule()
	docs := unsignedBindingAssayDocs()

	err := s.Submit(ResolveRequiredDocuments(DefaultDocumentRequirements, ServiceTypeBindingAssay, docs), testNow)
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
	assert.Equal(t, SubmissionStatusDraft, s.Status)
	assert.ElementsMatch(t,
		[]DocumentType{DocumentTypeMTA, DocumentTypeNDA, DocumentTypeExperimentSpecification},
		apperrors.DetailsOf(err)["missing_documents"])

	// Signing two of three is still not enough.
	require.NoError(t, docs[0].UpdateStatus("SIGNED", testNow))
	require.NoError(t, docs[1].UpdateStatus("SIGNED", testNow))
	err = s.Submit(ResolveRequiredDocuments(DefaultDocumentRequirements, ServiceTypeBindingAssay, docs), testNow)
	require.Error(t, err)
	assert.Equal(t, []DocumentType{DocumentTypeExperimentSpecification}, apperrors.DetailsOf(err)["missing_documents"])

	require.NoError(t, docs[2].UpdateStatus("SIGNED", testNow))
	require.NoError(t, s.Submit(ResolveRequiredDocuments(DefaultDocumentRequirements, ServiceTypeBindingAssay, docs), testNow))
	assert.Equal(t, SubmissionStatusSubmitted, s.Status)
	require.NotNil(t, s.SubmittedAt)
	assert.Equal(t, testNow, *s.SubmittedAt)
}

func TestSubmission_SubmitOnlyFromDraft(t *testing.T) {
	s := draftWithMolecule()
	s.Status = SubmissionStatusSubmitted

	err := s.Submit(nil, testNow)
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
	assert.Equal(t, "submit", apperrors.DetailsOf(err)["attempted_action"])
}

func TestSubmission_SetPricing(t *testing.T) {
	tests := []struct {
		name    string
		status  SubmissionStatus
		wantErr bool
	}{
		{name: "draft", status: SubmissionStatusDraft, wantErr: true},
		{name: "submitted", status: SubmissionStatusSubmitted, wantErr: true},
		{name: "pending_review", status: SubmissionStatusPendingReview},
		{name: "pricing_provided", status: SubmissionStatusPricingProvided},
		{name: "approved", status: SubmissionStatusApproved, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Submission{Status: tt.status}
			err := s.SetPricing(1500, "usd", 14, testNow)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.IsConflict(err))
				assert.Nil(t, s.Price)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.status, s.Status, "pricing must not change status")
			assert.Equal(t, 1500.0, *s.Price)
			assert.Equal(t, "USD", *s.PriceCurrency)
			assert.Equal(t, 14, *s.EstimatedTurnaroundDays)
			assert.Equal(t, testNow.AddDate(0, 0, 14), *s.EstimatedCompletionDate)
		})
	}
}

func TestSubmission_SetPricingValidation(t *testing.T) {
	s := &Submission{Status: SubmissionStatusPendingReview}
	assert.True(t, apperrors.IsValidation(s.SetPricing(-1, "USD", 5, testNow)))
	assert.True(t, apperrors.IsValidation(s.SetPricing(10, "USD", 0, testNow)))
	assert.True(t, apperrors.IsValidation(s.SetPricing(10, " ", 5, testNow)))
	assert.False(t, s.HasPricing())
}

func TestSubmission_Approve(t *testing.T) {
	s := &Submission{Status: SubmissionStatusPricingProvided}
	err := s.Approve(testNow)
	require.Error(t, err, "approve without pricing")
	assert.True(t, apperrors.IsConflict(err))

	s.Status = SubmissionStatusPendingReview
	require.NoError(t, s.SetPricing(200, "EUR", 7, testNow))
	require.Error(t, s.Approve(testNow), "approve before pricing is provided")

	require.NoError(t, s.UpdateStatus(SubmissionStatusPricingProvided, testNow))
	require.NoError(t, s.Approve(testNow))
	assert.Equal(t, SubmissionStatusApproved, s.Status)
	assert.NotNil(t, s.ApprovedAt)
}

func TestSubmission_Complete(t *testing.T) {
	s := &Submission{Status: SubmissionStatusResultsUploaded}
	require.Error(t, s.Complete(testNow))

	s.Status = SubmissionStatusResultsReviewed
	require.NoError(t, s.Complete(testNow))
	assert.Equal(t, SubmissionStatusCompleted, s.Status)
	assert.NotNil(t, s.CompletedAt)
}

func TestSubmission_CancelTwice(t *testing.T) {
	s := &Submission{Status: SubmissionStatusInProgress}
	require.NoError(t, s.Cancel(testNow))
	assert.Equal(t, SubmissionStatusCancelled, s.Status)

	err := s.Cancel(testNow)
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
	assert.Equal(t, SubmissionStatusCancelled, s.Status)
}

func TestSubmission_CancelFromEveryActiveStatus(t *testing.T) {
	for _, status := range ActiveSubmissionStatuses {
		s := &Submission{Status: status}
		assert.NoError(t, s.Cancel(testNow), "cancel from %s", status)
	}
}

func TestSubmission_RejectAppendsNote(t *testing.T) {
	s := &Submission{Status: SubmissionStatusPendingReview, CRONotes: "Reviewed by lab"}
	require.NoError(t, s.Reject("compound is controlled", testNow))
	assert.Equal(t, SubmissionStatusRejected, s.Status)
	assert.Equal(t, "Reviewed by lab\nRejected: compound is controlled", s.CRONotes)

	s = &Submission{Status: SubmissionStatusDraft}
	assert.True(t, apperrors.IsConflict(s.Reject("no", testNow)))
}

func TestSubmission_AdvanceTo(t *testing.T) {
	s := &Submission{Status: SubmissionStatusInProgress}
	moved, err := s.AdvanceTo(SubmissionStatusResultsUploaded, testNow)
	require.NoError(t, err)
	assert.True(t, moved)

	moved, err = s.AdvanceTo(SubmissionStatusResultsUploaded, testNow)
	require.NoError(t, err)
	assert.False(t, moved, "already at target")

	s.Status = SubmissionStatusCompleted
	moved, err = s.AdvanceTo(SubmissionStatusResultsReviewed, testNow)
	require.NoError(t, err)
	assert.False(t, moved, "never moves backwards")

	s.Status = SubmissionStatusCancelled
	moved, err = s.AdvanceTo(SubmissionStatusResultsUploaded, testNow)
	require.NoError(t, err)
	assert.False(t, moved)

	s.Status = SubmissionStatusApproved
	_, err = s.AdvanceTo(SubmissionStatusResultsUploaded, testNow)
	assert.True(t, apperrors.IsConflict(err), "cannot skip IN_PROGRESS")
}

func TestSubmission_Molecules(t *testing.T) {
	s := draftWithMolecule()

	link, err := s.AddMolecule(11, nil, "10 mM in DMSO")
	require.NoError(t, err)
	assert.Equal(t, uint(11), link.MoleculeID)
	assert.Len(t, s.Molecules, 2)

	_, err = s.AddMolecule(11, nil, "")
	assert.True(t, apperrors.IsConflict(err))
	assert.Len(t, s.Molecules, 2)

	require.NoError(t, s.RemoveMolecule(10))
	assert.False(t, s.HasMolecule(10))
	assert.True(t, apperrors.IsNotFound(s.RemoveMolecule(10)))

	s.Status = SubmissionStatusSubmitted
	_, err = s.AddMolecule(12, nil, "")
	assert.True(t, apperrors.IsConflict(err))
	assert.True(t, apperrors.IsConflict(s.RemoveMolecule(11)))
	assert.True(t, s.HasMolecule(11))
}

// A draft with one molecule and three unsigned documents cannot be submitted
// until all three are signed.
func TestSubmission_EndToEndSubmit(t *testing.T) {
	s := draftWithMolecule()
	s.CROService = CROService{ServiceType: ServiceTypeBindingAssay}
	docs := unsignedBindingAssayDocs()

	checklist := ResolveRequiredDocuments(DefaultDocumentRequirements, s.CROService.ServiceType, docs)
	require.Len(t, checklist, 3)
	require.Error(t, s.Submit(checklist, testNow))
	assert.Equal(t, SubmissionStatusDraft, s.Status)

	for i := range docs {
		require.NoError(t, docs[i].UpdateStatus("SIGNED", testNow))
		assert.True(t, docs[i].IsSigned)
	}

	checklist = ResolveRequiredDocuments(DefaultDocumentRequirements, s.CROService.ServiceType, docs)
	require.NoError(t, s.Submit(checklist, testNow))
	assert.Equal(t, SubmissionStatusSubmitted, s.Status)
	assert.NotNil(t, s.SubmittedAt)
}

package services_test

import (
	"testing"

	"github.com/rxtech-lab/pharmalink/internal/apperrors"
	"github.com/rxtech-lab/pharmalink/internal/models"
	"github.com/rxtech-lab/pharmalink/internal/services"
	"github.com/stretchr/testify/suite"
)

type SubmissionServiceTestSuite struct {
	suite.Suite
	db      services.DBService
	f       *fixtures
	service services.SubmissionService
}

func (suite *SubmissionServiceTestSuite) SetupTest() {
	suite.db = setupTestDB(suite.T())
	suite.f = seedFixtures(suite.T(), suite.db.GetDB())
	suite.service = services.NewSubmissionService(suite.db.GetDB(), services.NewHookService(), nil)
}

func (suite *SubmissionServiceTestSuite) TearDownTest() {
	suite.db.Close()
}

func (suite *SubmissionServiceTestSuite) draft() *models.Submission {
	sub, err := suite.service.CreateSubmission(suite.f.pharma(), services.CreateSubmissionInput{
		Name:           "Kinase selectivity",
		CROServiceID:   suite.f.service.ID,
		Specifications: models.JSON{"temperature": "37C"},
	})
	suite.Require().NoError(err)
	return sub
}

// readyDraft has a molecule and every signed document a binding assay needs.
func (suite *SubmissionServiceTestSuite) readyDraft() *models.Submission {
	sub := suite.draft()
	_, err := suite.service.AddMolecule(suite.f.pharma(), sub.ID, suite.f.molecules[0].ID, floatPtr(10), "10 uM")
	suite.Require().NoError(err)
	for _, docType := range models.DefaultDocumentRequirements[models.ServiceTypeBindingAssay] {
		signedDocument(suite.T(), suite.db.GetDB(), sub.ID, suite.f.pharmaAdmin.ID, docType)
	}
	return sub
}

// priced walks a ready draft to PRICING_PROVIDED.
func (suite *SubmissionServiceTestSuite) priced() *models.Submission {
	sub := suite.readyDraft()
	_, err := suite.service.Submit(suite.f.pharma(), sub.ID)
	suite.Require().NoError(err)
	_, err = suite.service.ProcessAction(suite.f.cro(), sub.ID, models.ActionStartReview, services.ActionParams{})
	suite.Require().NoError(err)
	sub, err = suite.service.SetPricing(suite.f.cro(), sub.ID, 1200, "usd", 14)
	suite.Require().NoError(err)
	return sub
}

func (suite *SubmissionServiceTestSuite) TestCreateSubmission() {
	sub := suite.draft()
	suite.Equal(models.SubmissionStatusDraft, sub.Status)
	suite.Equal(suite.f.pharmaOrg.ID, sub.OrganizationID)
	suite.Equal(suite.f.pharmaAdmin.ID, sub.CreatedByID)

	loaded, err := suite.service.GetSubmission(sub.ID)
	suite.Require().NoError(err)
	suite.Equal("37C", loaded.Specifications["temperature"])
	suite.Equal(models.ServiceTypeBindingAssay, loaded.CROService.ServiceType)

	suite.Run("CRO users cannot create", func() {
		_, err := suite.service.CreateSubmission(suite.f.cro(), services.CreateSubmissionInput{Name: "x", CROServiceID: suite.f.service.ID})
		suite.True(apperrors.IsUnauthorized(err))
	})

	suite.Run("Name is required", func() {
		_, err := suite.service.CreateSubmission(suite.f.pharma(), services.CreateSubmissionInput{Name: "  ", CROServiceID: suite.f.service.ID})
		suite.True(apperrors.IsValidation(err))
	})

	suite.Run("Unknown service", func() {
		_, err := suite.service.CreateSubmission(suite.f.pharma(), services.CreateSubmissionInput{Name: "x", CROServiceID: 999})
		suite.True(apperrors.IsNotFound(err))
	})

	suite.Run("Unknown submission", func() {
		_, err := suite.service.GetSubmission(999)
		suite.True(apperrors.IsNotFound(err))
	})
}

func (suite *SubmissionServiceTestSuite) TestSubmitGuards() {
	sub := suite.draft()

	suite.Run("No molecules", func() {
		_, err := suite.service.Submit(suite.f.pharma(), sub.ID)
		suite.True(apperrors.IsConflict(err))
	})

	_, err := suite.service.AddMolecule(suite.f.pharma(), sub.ID, suite.f.molecules[0].ID, nil, "")
	suite.Require().NoError(err)

	suite.Run("Missing documents", func() {
		_, err := suite.service.Submit(suite.f.pharma(), sub.ID)
		suite.True(apperrors.IsConflict(err))
		missing := apperrors.DetailsOf(err)["missing_documents"]
		suite.ElementsMatch([]models.DocumentType{
			models.DocumentTypeMTA,
			models.DocumentTypeNDA,
			models.DocumentTypeExperimentSpecification,
		}, missing)
	})

	suite.Run("Unsigned document does not count", func() {
		signedDocument(suite.T(), suite.db.GetDB(), sub.ID, suite.f.pharmaAdmin.ID, models.DocumentTypeMTA)
		signedDocument(suite.T(), suite.db.GetDB(), sub.ID, suite.f.pharmaAdmin.ID, models.DocumentTypeNDA)
		pending := signedDocument(suite.T(), suite.db.GetDB(), sub.ID, suite.f.pharmaAdmin.ID, models.DocumentTypeExperimentSpecification)
		suite.Require().NoError(suite.db.GetDB().Model(&pending).Updates(map[string]interface{}{
			"is_signed": false,
			"status":    models.DocumentStatusPendingSignature,
		}).Error)

		_, err := suite.service.Submit(suite.f.pharma(), sub.ID)
		suite.True(apperrors.IsConflict(err))
		suite.Equal([]models.DocumentType{models.DocumentTypeExperimentSpecification}, apperrors.DetailsOf(err)["missing_documents"])

		loaded, err := suite.service.GetSubmission(sub.ID)
		suite.Require().NoError(err)
		suite.Equal(models.SubmissionStatusDraft, loaded.Status)
		suite.Nil(loaded.SubmittedAt)
	})
}

func (suite *SubmissionServiceTestSuite) TestHappyPath() {
	sub := suite.priced()
	suite.Equal(models.SubmissionStatusPricingProvided, sub.Status)
	suite.Require().NotNil(sub.Price)
	suite.Equal(1200.0, *sub.Price)
	suite.Equal("USD", *sub.PriceCurrency)
	suite.Require().NotNil(sub.EstimatedCompletionDate)
	suite.NotNil(sub.SubmittedAt)

	sub, err := suite.service.Approve(suite.f.pharma(), sub.ID)
	suite.Require().NoError(err)
	suite.Equal(models.SubmissionStatusApproved, sub.Status)
	suite.NotNil(sub.ApprovedAt)

	sub, err = suite.service.ProcessAction(suite.f.croTechnician.Actor(), sub.ID, models.ActionStartWork, services.ActionParams{})
	suite.Require().NoError(err)
	suite.Equal(models.SubmissionStatusInProgress, sub.Status)

	for _, next := range []models.SubmissionStatus{models.SubmissionStatusResultsUploaded, models.SubmissionStatusResultsReviewed} {
		sub, err = suite.service.UpdateStatus(suite.f.admin(), sub.ID, next, "")
		suite.Require().NoError(err)
	}

	sub, err = suite.service.Complete(suite.f.pharma(), sub.ID)
	suite.Require().NoError(err)
	suite.Equal(models.SubmissionStatusCompleted, sub.Status)
	suite.NotNil(sub.CompletedAt)

	actions, err := suite.service.AllowedActions(suite.f.pharma(), sub.ID)
	suite.Require().NoError(err)
	suite.Empty(actions)
}

func (suite *SubmissionServiceTestSuite) TestRepricing() {
	sub := suite.priced()

	sub, err := suite.service.SetPricing(suite.f.cro(), sub.ID, 900, "eur", 10)
	suite.Require().NoError(err)
	suite.Equal(models.SubmissionStatusPricingProvided, sub.Status)
	suite.Equal(900.0, *sub.Price)
	suite.Equal("EUR", *sub.PriceCurrency)
	suite.Equal(10, *sub.EstimatedTurnaroundDays)

	suite.Run("Invalid pricing leaves the quote unchanged", func() {
		_, err := suite.service.SetPricing(suite.f.cro(), sub.ID, -1, "EUR", 10)
		suite.True(apperrors.IsValidation(err))
		_, err = suite.service.SetPricing(suite.f.cro(), sub.ID, 100, "EUR", 0)
		suite.True(apperrors.IsValidation(err))
		_, err = suite.service.ProcessAction(suite.f.cro(), sub.ID, models.ActionProvidePricing, services.ActionParams{Currency: "EUR"})
		suite.True(apperrors.IsValidation(err))

		loaded, err := suite.service.GetSubmission(sub.ID)
		suite.Require().NoError(err)
		suite.Equal(900.0, *loaded.Price)
	})

	suite.Run("No pricing after approval", func() {
		_, err := suite.service.Approve(suite.f.pharma(), sub.ID)
		suite.Require().NoError(err)
		_, err = suite.service.SetPricing(suite.f.cro(), sub.ID, 100, "EUR", 5)
		suite.True(apperrors.IsConflict(err))
	})
}

func (suite *SubmissionServiceTestSuite) TestAuthorization() {
	sub := suite.readyDraft()

	tests := []struct {
		name   string
		actor  models.Actor
		action models.SubmissionAction
	}{
		{"CRO cannot submit", suite.f.cro(), models.ActionSubmit},
		{"Other pharma cannot submit", suite.f.outsider(), models.ActionSubmit},
		{"Pharma cannot start review", suite.f.pharma(), models.ActionStartReview},
		{"Other lab cannot cancel", suite.f.otherLab(), models.ActionCancel},
	}
	for _, tt := range tests {
		suite.Run(tt.name, func() {
			_, err := suite.service.ProcessAction(tt.actor, sub.ID, tt.action, services.ActionParams{})
			suite.True(apperrors.IsUnauthorized(err), "got %v", err)
		})
	}

	suite.Run("Scientist of the sponsor may submit", func() {
		got, err := suite.service.Submit(suite.f.scientist(), sub.ID)
		suite.Require().NoError(err)
		suite.Equal(models.SubmissionStatusSubmitted, got.Status)
	})

	suite.Run("Action not available in status", func() {
		_, err := suite.service.Approve(suite.f.pharma(), sub.ID)
		suite.True(apperrors.IsConflict(err))
		details := apperrors.DetailsOf(err)
		suite.Equal(models.SubmissionStatusSubmitted, details["current_status"])
		suite.Equal(models.ActionApprove, details["attempted_action"])
	})

	suite.Run("System admin may act for the CRO", func() {
		got, err := suite.service.ProcessAction(suite.f.admin(), sub.ID, models.ActionStartReview, services.ActionParams{})
		suite.Require().NoError(err)
		suite.Equal(models.SubmissionStatusPendingReview, got.Status)
	})

	suite.Run("Raw status update is admin only", func() {
		_, err := suite.service.UpdateStatus(suite.f.pharma(), sub.ID, models.SubmissionStatusCancelled, "")
		suite.True(apperrors.IsUnauthorized(err))
	})

	suite.Run("Raw status update follows the table", func() {
		_, err := suite.service.UpdateStatus(suite.f.admin(), sub.ID, models.SubmissionStatusCompleted, "")
		suite.True(apperrors.IsConflict(err))
	})

	suite.Run("Unknown action", func() {
		_, err := suite.service.ProcessAction(suite.f.pharma(), sub.ID, models.SubmissionAction("launch"), services.ActionParams{})
		suite.True(apperrors.IsValidation(err))
	})
}

func (suite *SubmissionServiceTestSuite) TestCancelAndReject() {
	suite.Run("Cancel twice", func() {
		sub := suite.draft()
		got, err := suite.service.Cancel(suite.f.pharma(), sub.ID, "")
		suite.Require().NoError(err)
		suite.Equal(models.SubmissionStatusCancelled, got.Status)

		_, err = suite.service.Cancel(suite.f.pharma(), sub.ID, "")
		suite.True(apperrors.IsConflict(err))
	})

	suite.Run("Reject keeps the reason", func() {
		sub := suite.priced()
		got, err := suite.service.Reject(suite.f.pharma(), sub.ID, "too expensive")
		suite.Require().NoError(err)
		suite.Equal(models.SubmissionStatusRejected, got.Status)
		suite.Contains(got.CRONotes, "Rejected: too expensive")
	})

	suite.Run("Draft cannot be rejected", func() {
		sub := suite.draft()
		_, err := suite.service.Reject(suite.f.cro(), sub.ID, "no")
		suite.True(apperrors.IsConflict(err))
	})
}

func (suite *SubmissionServiceTestSuite) TestMolecules() {
	sub := suite.draft()
	molecule := suite.f.molecules[1]

	link, err := suite.service.AddMolecule(suite.f.pharma(), sub.ID, molecule.ID, floatPtr(5), "")
	suite.Require().NoError(err)
	suite.Equal(molecule.ID, link.MoleculeID)
	suite.Equal("MOL-2", link.Molecule.Name)

	suite.Run("Duplicate", func() {
		_, err := suite.service.AddMolecule(suite.f.pharma(), sub.ID, molecule.ID, nil, "")
		suite.True(apperrors.IsConflict(err))
	})

	suite.Run("Unknown molecule", func() {
		_, err := suite.service.AddMolecule(suite.f.pharma(), sub.ID, 999, nil, "")
		suite.True(apperrors.IsNotFound(err))
	})

	suite.Run("Foreign molecule", func() {
		foreign := models.Molecule{Name: "X", Smiles: "C", OrganizationID: suite.f.otherPharmaOrg.ID, CreatedByID: suite.f.otherPharma.ID}
		suite.Require().NoError(suite.db.GetDB().Create(&foreign).Error)
		_, err := suite.service.AddMolecule(suite.f.pharma(), sub.ID, foreign.ID, nil, "")
		suite.True(apperrors.IsUnauthorized(err))
	})

	suite.Run("CRO cannot add", func() {
		_, err := suite.service.AddMolecule(suite.f.cro(), sub.ID, suite.f.molecules[2].ID, nil, "")
		suite.True(apperrors.IsUnauthorized(err))
	})

	suite.Run("Remove", func() {
		suite.Require().NoError(suite.service.RemoveMolecule(suite.f.pharma(), sub.ID, molecule.ID))
		err := suite.service.RemoveMolecule(suite.f.pharma(), sub.ID, molecule.ID)
		suite.True(apperrors.IsNotFound(err))

		loaded, err := suite.service.GetSubmission(sub.ID)
		suite.Require().NoError(err)
		suite.Empty(loaded.Molecules)
	})

	suite.Run("Not editable after submit", func() {
		ready := suite.readyDraft()
		_, err := suite.service.Submit(suite.f.pharma(), ready.ID)
		suite.Require().NoError(err)
		_, err = suite.service.AddMolecule(suite.f.pharma(), ready.ID, suite.f.molecules[3].ID, nil, "")
		suite.True(apperrors.IsConflict(err))
	})
}

func (suite *SubmissionServiceTestSuite) TestUpdateDetails() {
	sub := suite.readyDraft()
	name := "Renamed"
	notes := "Need more compound"

	got, err := suite.service.UpdateDetails(suite.f.pharma(), sub.ID, services.UpdateSubmissionInput{Name: &name})
	suite.Require().NoError(err)
	suite.Equal("Renamed", got.Name)

	_, err = suite.service.UpdateDetails(suite.f.cro(), sub.ID, services.UpdateSubmissionInput{CRONotes: &notes})
	suite.True(apperrors.IsConflict(err), "CRO cannot edit a draft")

	_, err = suite.service.Submit(suite.f.pharma(), sub.ID)
	suite.Require().NoError(err)
	_, err = suite.service.ProcessAction(suite.f.cro(), sub.ID, models.ActionStartReview, services.ActionParams{})
	suite.Require().NoError(err)

	got, err = suite.service.UpdateDetails(suite.f.cro(), sub.ID, services.UpdateSubmissionInput{CRONotes: &notes})
	suite.Require().NoError(err)
	suite.Equal(notes, got.CRONotes)

	_, err = suite.service.UpdateDetails(suite.f.cro(), sub.ID, services.UpdateSubmissionInput{Name: &name})
	suite.True(apperrors.IsUnauthorized(err))

	_, err = suite.service.UpdateDetails(suite.f.pharma(), sub.ID, services.UpdateSubmissionInput{Name: &name})
	suite.True(apperrors.IsConflict(err))
}

func (suite *SubmissionServiceTestSuite) TestListSubmissions() {
	first := suite.draft()
	suite.draft()
	_, err := suite.service.Cancel(suite.f.pharma(), first.ID, "")
	suite.Require().NoError(err)

	tests := []struct {
		name  string
		actor models.Actor
		total int64
	}{
		{"Sponsor sees its submissions", suite.f.pharma(), 2},
		{"Routed CRO sees them", suite.f.cro(), 2},
		{"Admin sees everything", suite.f.admin(), 2},
		{"Other pharma sees nothing", suite.f.outsider(), 0},
		{"Other lab sees nothing", suite.f.otherLab(), 0},
	}
	for _, tt := range tests {
		suite.Run(tt.name, func() {
			page, err := suite.service.ListSubmissions(tt.actor, services.Filter{})
			suite.Require().NoError(err)
			suite.Equal(tt.total, page.Total)
		})
	}

	suite.Run("Filter by status", func() {
		page, err := suite.service.ListSubmissions(suite.f.pharma(), services.Filter{}.
			Where("status", services.OpEq, models.SubmissionStatusCancelled))
		suite.Require().NoError(err)
		suite.Equal(int64(1), page.Total)
		suite.Equal(first.ID, page.Items[0].ID)
	})

	suite.Run("Paging", func() {
		page, err := suite.service.ListSubmissions(suite.f.pharma(), services.Filter{Skip: 1, Limit: 1})
		suite.Require().NoError(err)
		suite.Len(page.Items, 1)
		suite.Equal(2, page.Page)
		suite.Equal(2, page.Pages)
	})

	suite.Run("Unknown field", func() {
		_, err := suite.service.ListSubmissions(suite.f.pharma(), services.Filter{}.Where("price", services.OpGt, 1))
		suite.True(apperrors.IsValidation(err))
	})

	suite.Run("Foreign submission is not readable", func() {
		_, err := suite.service.GetSubmissionForActor(suite.f.outsider(), first.ID)
		suite.True(apperrors.IsUnauthorized(err))
	})
}

func (suite *SubmissionServiceTestSuite) TestRequiredDocumentsAndActions() {
	sub := suite.draft()

	checklist, err := suite.service.GetRequiredDocuments(sub.ID)
	suite.Require().NoError(err)
	suite.Len(checklist, 3)
	for _, item := range checklist {
		suite.False(item.Completed)
		suite.True(item.Required)
	}

	actions, err := suite.service.AllowedActions(suite.f.pharma(), sub.ID)
	suite.Require().NoError(err)
	suite.Equal([]models.SubmissionAction{models.ActionSubmit, models.ActionCancel}, actions)

	actions, err = suite.service.AllowedActions(suite.f.cro(), sub.ID)
	suite.Require().NoError(err)
	suite.Equal([]models.SubmissionAction{models.ActionCancel}, actions)

	_, err = suite.service.AllowedActions(suite.f.otherLab(), sub.ID)
	suite.True(apperrors.IsUnauthorized(err))
}

func (suite *SubmissionServiceTestSuite) TestCustomRequirements() {
	service := services.NewSubmissionService(suite.db.GetDB(), nil, models.RequirementTable{
		models.ServiceTypeBindingAssay: {models.DocumentTypeNDA},
	})
	sub := suite.draft()
	_, err := service.AddMolecule(suite.f.pharma(), sub.ID, suite.f.molecules[0].ID, nil, "")
	suite.Require().NoError(err)
	signedDocument(suite.T(), suite.db.GetDB(), sub.ID, suite.f.pharmaAdmin.ID, models.DocumentTypeNDA)

	got, err := service.Submit(suite.f.pharma(), sub.ID)
	suite.Require().NoError(err)
	suite.Equal(models.SubmissionStatusSubmitted, got.Status)
}

func TestSubmissionServiceTestSuite(t *testing.T) {
	suite.Run(t, new(SubmissionServiceTestSuite))
}

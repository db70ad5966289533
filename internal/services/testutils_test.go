package services_test

import (
	"testing"
	"time"

	"github.com/rxtech-lab/pharmalink/internal/models"
	"github.com/rxtech-lab/pharmalink/internal/services"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) services.DBService {
	t.Helper()
	db, err := services.NewSqliteDBService(":memory:")
	require.NoError(t, err)
	return db
}

// fixtures is a pharma sponsor, a CRO running a binding assay service and an
// unrelated organization of each type.
type fixtures struct {
	pharmaOrg      models.Organization
	croOrg         models.Organization
	otherPharmaOrg models.Organization
	otherCROOrg    models.Organization

	pharmaAdmin     models.User
	pharmaScientist models.User
	croAdmin        models.User
	croTechnician   models.User
	systemAdmin     models.User
	otherPharma     models.User
	otherCRO        models.User

	service   models.CROService
	molecules []models.Molecule
}

func seedFixtures(t *testing.T, db *gorm.DB) *fixtures {
	t.Helper()
	f := &fixtures{
		pharmaOrg:      models.Organization{Name: "Acme Pharma", Type: models.OrganizationTypePharma},
		croOrg:         models.Organization{Name: "Bench Labs", Type: models.OrganizationTypeCRO},
		otherPharmaOrg: models.Organization{Name: "Rival Pharma", Type: models.OrganizationTypePharma},
		otherCROOrg:    models.Organization{Name: "Other Labs", Type: models.OrganizationTypeCRO},
	}
	for _, org := range []*models.Organization{&f.pharmaOrg, &f.croOrg, &f.otherPharmaOrg, &f.otherCROOrg} {
		require.NoError(t, db.Create(org).Error)
	}

	users := []struct {
		user *models.User
		role models.UserRole
		org  uint
	}{
		{&f.pharmaAdmin, models.UserRolePharmaAdmin, f.pharmaOrg.ID},
		{&f.pharmaScientist, models.UserRolePharmaScientist, f.pharmaOrg.ID},
		{&f.croAdmin, models.UserRoleCROAdmin, f.croOrg.ID},
		{&f.croTechnician, models.UserRoleCROTechnician, f.croOrg.ID},
		{&f.systemAdmin, models.UserRoleSystemAdmin, 0},
		{&f.otherPharma, models.UserRolePharmaAdmin, f.otherPharmaOrg.ID},
		{&f.otherCRO, models.UserRoleCROAdmin, f.otherCROOrg.ID},
	}
	for i, u := range users {
		*u.user = models.User{
			Subject:        "sub-" + string(u.role) + "-" + string(rune('a'+i)),
			Email:          string(rune('a'+i)) + "@example.test",
			Role:           u.role,
			OrganizationID: u.org,
		}
		require.NoError(t, db.Create(u.user).Error)
	}

	f.service = models.CROService{
		OrganizationID: f.croOrg.ID,
		Name:           "Kinase binding panel",
		ServiceType:    models.ServiceTypeBindingAssay,
		Currency:       "USD",
		IsActive:       true,
	}
	require.NoError(t, db.Create(&f.service).Error)

	for _, name := range []string{"MOL-1", "MOL-2", "MOL-3", "MOL-4"} {
		m := models.Molecule{
			Name:           name,
			Smiles:         "CCO",
			OrganizationID: f.pharmaOrg.ID,
			CreatedByID:    f.pharmaAdmin.ID,
		}
		require.NoError(t, db.Create(&m).Error)
		f.molecules = append(f.molecules, m)
	}
	return f
}

func (f *fixtures) pharma() models.Actor { return f.pharmaAdmin.Actor() }
func (f *fixtures) cro() models.Actor { return f.croAdmin.Actor() }
func (f *fixtures) admin() models.Actor { return f.systemAdmin.Actor() }
func (f *fixtures) outsider() models.Actor { return f.otherPharma.Actor() }
func (f *fixtures) otherLab() models.Actor { return f.otherCRO.Actor() }
func (f *fixtures) scientist() models.Actor { return f.pharmaScientist.Actor() }

// signedDocument inserts a signed document of docType for the submission.
func signedDocument(t *testing.T, db *gorm.DB, submissionID, uploaderID uint, docType models.DocumentType) models.Document {
	t.Helper()
	now := time.Now()
	doc := models.Document{
		Name:              string(docType) + ".pdf",
		Type:              docType,
		Status:            models.DocumentStatusSigned,
		URL:               services.GenerateDocumentKey(submissionID, string(docType)+".pdf"),
		SignatureRequired: docType.RequiresSignature(),
		IsSigned:          true,
		SignedAt:          &now,
		SubmissionID:      submissionID,
		UploadedByID:      uploaderID,
		UploadedAt:        now,
	}
	require.NoError(t, db.Create(&doc).Error)
	return doc
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int { return &v }

// submissionInStatus creates a submission with the first n fixture molecules
// and walks it through the regular actions until it reaches status.
func submissionInStatus(t *testing.T, db *gorm.DB, f *fixtures, hooks services.HookService, status models.SubmissionStatus, n int) *models.Submission {
	t.Helper()
	svc := services.NewSubmissionService(db, hooks, nil)
	sub, err := svc.CreateSubmission(f.pharma(), services.CreateSubmissionInput{Name: "Screen", CROServiceID: f.service.ID})
	require.NoError(t, err)
	for _, m := range f.molecules[:n] {
		_, err := svc.AddMolecule(f.pharma(), sub.ID, m.ID, nil, "")
		require.NoError(t, err)
	}

	steps := []struct {
		reached models.SubmissionStatus
		run     func() (*models.Submission, error)
	}{
		{models.SubmissionStatusDraft, func() (*models.Submission, error) {
			for _, docType := range models.DefaultDocumentRequirements[f.service.ServiceType] {
				signedDocument(t, db, sub.ID, f.pharmaAdmin.ID, docType)
			}
			return svc.Submit(f.pharma(), sub.ID)
		}},
		{models.SubmissionStatusSubmitted, func() (*models.Submission, error) {
			return svc.ProcessAction(f.cro(), sub.ID, models.ActionStartReview, services.ActionParams{})
		}},
		{models.SubmissionStatusPendingReview, func() (*models.Submission, error) {
			return svc.SetPricing(f.cro(), sub.ID, 500, "USD", 7)
		}},
		{models.SubmissionStatusPricingProvided, func() (*models.Submission, error) {
			return svc.Approve(f.pharma(), sub.ID)
		}},
		{models.SubmissionStatusApproved, func() (*models.Submission, error) {
			return svc.ProcessAction(f.cro(), sub.ID, models.ActionStartWork, services.ActionParams{})
		}},
	}
	for _, step := range steps {
		if sub.Status == status {
			return sub
		}
		require.Equal(t, step.reached, sub.Status)
		sub, err = step.run()
		require.NoError(t, err)
	}
	require.Equal(t, status, sub.Status)
	return sub
}

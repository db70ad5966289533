package services_test

import (
	"testing"

	"github.com/rxtech-lab/pharmalink/internal/apperrors"
	"github.com/rxtech-lab/pharmalink/internal/models"
	"github.com/rxtech-lab/pharmalink/internal/services"
	"github.com/stretchr/testify/suite"
)

type CatalogServiceTestSuite struct {
	suite.Suite
	db        services.DBService
	f         *fixtures
	molecules services.MoleculeService
	catalog   services.CROCatalogService
	users     services.UserService
}

func (suite *CatalogServiceTestSuite) SetupTest() {
	suite.db = setupTestDB(suite.T())
	suite.f = seedFixtures(suite.T(), suite.db.GetDB())
	suite.molecules = services.NewMoleculeService(suite.db.GetDB())
	suite.catalog = services.NewCROCatalogService(suite.db.GetDB())
	suite.users = services.NewUserService(suite.db.GetDB())
}

func (suite *CatalogServiceTestSuite) TearDownTest() {
	suite.db.Close()
}

func (suite *CatalogServiceTestSuite) TestCreateMolecule() {
	mw := 46.07
	molecule, err := suite.molecules.CreateMolecule(suite.f.scientist(), services.CreateMoleculeInput{
		Name:            " Ethanol ",
		Smiles:          "CCO",
		Formula:         "C2H6O",
		MolecularWeight: &mw,
	})
	suite.Require().NoError(err)
	suite.Equal("Ethanol", molecule.Name)
	suite.Equal(suite.f.pharmaOrg.ID, molecule.OrganizationID)
	suite.Equal(suite.f.pharmaScientist.ID, molecule.CreatedByID)

	_, err = suite.molecules.CreateMolecule(suite.f.cro(), services.CreateMoleculeInput{Name: "X", Smiles: "C"})
	suite.True(apperrors.IsUnauthorized(err))

	_, err = suite.molecules.CreateMolecule(suite.f.pharma(), services.CreateMoleculeInput{Name: "X"})
	suite.True(apperrors.IsValidation(err))
}

func (suite *CatalogServiceTestSuite) TestMoleculeVisibility() {
	page, err := suite.molecules.ListMolecules(suite.f.pharma(), services.Filter{})
	suite.Require().NoError(err)
	suite.Equal(int64(4), page.Total)

	page, err = suite.molecules.ListMolecules(suite.f.outsider(), services.Filter{})
	suite.Require().NoError(err)
	suite.Zero(page.Total)

	_, err = suite.molecules.GetMolecule(suite.f.outsider(), suite.f.molecules[0].ID)
	suite.True(apperrors.IsNotFound(err))

	suite.Run("CRO sees molecules of routed submissions", func() {
		submissionInStatus(suite.T(), suite.db.GetDB(), suite.f, services.NewHookService(), models.SubmissionStatusDraft, 2)

		page, err := suite.molecules.ListMolecules(suite.f.cro(), services.Filter{})
		suite.Require().NoError(err)
		suite.Equal(int64(2), page.Total)

		_, err = suite.molecules.GetMolecule(suite.f.cro(), suite.f.molecules[3].ID)
		suite.True(apperrors.IsNotFound(err))

		page, err = suite.molecules.ListMolecules(suite.f.otherLab(), services.Filter{})
		suite.Require().NoError(err)
		suite.Zero(page.Total)
	})

	suite.Run("Filter by name", func() {
		page, err := suite.molecules.ListMolecules(suite.f.pharma(), services.Filter{}.Where("name", services.OpLike, "MOL-3"))
		suite.Require().NoError(err)
		suite.Require().Len(page.Items, 1)
		suite.Equal(suite.f.molecules[2].ID, page.Items[0].ID)
	})
}

func (suite *CatalogServiceTestSuite) TestSetProperty() {
	id := suite.f.molecules[0].ID

	_, err := suite.molecules.SetProperty(suite.f.pharma(), id, "logP", -0.31, "", models.PropertySourceComputed)
	suite.Require().NoError(err)
	_, err = suite.molecules.SetProperty(suite.f.pharma(), id, "logP", -0.18, "", models.PropertySourceComputed)
	suite.Require().NoError(err)
	_, err = suite.molecules.SetProperty(suite.f.pharma(), id, "logP", -0.3, "", models.PropertySourceImported)
	suite.Require().NoError(err)

	molecule, err := suite.molecules.GetMolecule(suite.f.pharma(), id)
	suite.Require().NoError(err)
	suite.Require().Len(molecule.Properties, 2)
	suite.Equal(models.PropertySourceComputed, molecule.Properties[0].Source)
	suite.Equal(-0.18, molecule.Properties[0].Value)

	_, err = suite.molecules.SetProperty(suite.f.pharma(), id, "logP", 1, "", models.PropertySourceExperimental)
	suite.True(apperrors.IsValidation(err))
	_, err = suite.molecules.SetProperty(suite.f.cro(), id, "logP", 1, "", models.PropertySourceComputed)
	suite.True(apperrors.IsUnauthorized(err))
	_, err = suite.molecules.SetProperty(suite.f.outsider(), id, "logP", 1, "", models.PropertySourceComputed)
	suite.True(apperrors.IsNotFound(err))
}

func (suite *CatalogServiceTestSuite) TestCROServices() {
	days := 14
	service, err := suite.catalog.CreateService(suite.f.cro(), services.CreateCROServiceInput{
		Name:                  "Microsomal stability",
		ServiceType:           "adme",
		TypicalTurnaroundDays: &days,
	})
	suite.Require().NoError(err)
	suite.Equal(models.ServiceTypeADME, service.ServiceType)
	suite.Equal("USD", service.Currency)
	suite.True(service.IsActive)

	_, err = suite.catalog.CreateService(suite.f.pharma(), services.CreateCROServiceInput{Name: "X", ServiceType: "ADME"})
	suite.True(apperrors.IsUnauthorized(err))
	_, err = suite.catalog.CreateService(suite.f.cro(), services.CreateCROServiceInput{Name: "X", ServiceType: "CRYSTALLOGRAPHY"})
	suite.True(apperrors.IsValidation(err))

	inactive := false
	_, err = suite.catalog.UpdateService(suite.f.otherLab(), service.ID, services.UpdateCROServiceInput{IsActive: &inactive})
	suite.True(apperrors.IsUnauthorized(err))

	updated, err := suite.catalog.UpdateService(suite.f.cro(), service.ID, services.UpdateCROServiceInput{IsActive: &inactive})
	suite.Require().NoError(err)
	suite.False(updated.IsActive)

	page, err := suite.catalog.ListServices(services.Filter{}.Where("is_active", services.OpEq, true))
	suite.Require().NoError(err)
	suite.Require().Len(page.Items, 1)
	suite.Equal(suite.f.service.ID, page.Items[0].ID)
	suite.Equal("Bench Labs", page.Items[0].Organization.Name)

	_, err = suite.catalog.GetService(999)
	suite.True(apperrors.IsNotFound(err))
}

func (suite *CatalogServiceTestSuite) TestUsers() {
	user, err := suite.users.ResolveUser(suite.f.croAdmin.Subject)
	suite.Require().NoError(err)
	suite.Equal(suite.f.croAdmin.ID, user.ID)
	suite.Equal(models.RoleKindCRO, user.Actor().Role.Kind())

	_, err = suite.users.ResolveUser("unknown")
	suite.True(apperrors.IsNotFound(err))

	org, err := suite.users.CreateOrganization(suite.f.admin(), "New Bio", "pharma")
	suite.Require().NoError(err)
	suite.Equal(models.OrganizationTypePharma, org.Type)

	_, err = suite.users.CreateOrganization(suite.f.pharma(), "Nope", "PHARMA")
	suite.True(apperrors.IsUnauthorized(err))

	created, err := suite.users.CreateUser(suite.f.admin(), services.CreateUserInput{
		Subject: "auth0|new", Email: "new@bio.test", Role: "PHARMA_SCIENTIST", OrganizationID: org.ID,
	})
	suite.Require().NoError(err)
	suite.Equal(org.ID, created.OrganizationID)

	_, err = suite.users.CreateUser(suite.f.admin(), services.CreateUserInput{
		Subject: "auth0|new", Email: "dup@bio.test", Role: "PHARMA_ADMIN", OrganizationID: org.ID,
	})
	suite.True(apperrors.IsConflict(err))

	_, err = suite.users.CreateUser(suite.f.admin(), services.CreateUserInput{
		Subject: "auth0|cro", Email: "cro@bio.test", Role: "CRO_ADMIN", OrganizationID: org.ID,
	})
	suite.True(apperrors.IsValidation(err))

	loaded, err := suite.users.GetUser(created.ID)
	suite.Require().NoError(err)
	suite.Equal("New Bio", loaded.Organization.Name)
}

func TestCatalogServiceTestSuite(t *testing.T) {
	suite.Run(t, new(CatalogServiceTestSuite))
}

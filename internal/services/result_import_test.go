package services_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rxtech-lab/pharmalink/internal/apperrors"
	"github.com/rxtech-lab/pharmalink/internal/models"
	"github.com/rxtech-lab/pharmalink/internal/services"
	"github.com/stretchr/testify/suite"
)

type ResultImportTestSuite struct {
	suite.Suite
	db       services.DBService
	f        *fixtures
	results  services.ResultService
	tasks    services.TaskService
	importer services.ResultImportService
	result   *models.Result
}

func (suite *ResultImportTestSuite) SetupTest() {
	suite.db = setupTestDB(suite.T())
	suite.f = seedFixtures(suite.T(), suite.db.GetDB())
	hooks := services.NewHookService()
	suite.results = services.NewResultService(suite.db.GetDB(), hooks)
	suite.tasks = services.NewTaskService(suite.db.GetDB(), services.TaskOptions{Workers: 1, BaseBackoff: time.Millisecond})
	suite.tasks.Start(context.Background())
	suite.importer = services.NewResultImportService(suite.db.GetDB(), suite.tasks)

	sub := submissionInStatus(suite.T(), suite.db.GetDB(), suite.f, hooks, models.SubmissionStatusInProgress, 3)
	result, err := suite.results.CreateResult(suite.f.cro(), sub.ID, services.CreateResultInput{ProtocolUsed: "SPR"})
	suite.Require().NoError(err)
	suite.result = result
}

func (suite *ResultImportTestSuite) TearDownTest() {
	suite.tasks.Stop()
	suite.db.Close()
}

func (suite *ResultImportTestSuite) headerOptions() services.CSVImportOptions {
	return services.CSVImportOptions{
		HasHeader: true,
		ColumnMapping: map[string]string{
			"compound": services.MoleculeIDColumn,
			"ic50":     "IC50",
			"kd":       "Kd",
		},
		Units: map[string]string{"IC50": "nM", "Kd": "nM"},
	}
}

func (suite *ResultImportTestSuite) properties() []models.ResultProperty {
	result, err := suite.results.GetResult(suite.f.cro(), suite.result.ID)
	suite.Require().NoError(err)
	return result.Properties
}

func (suite *ResultImportTestSuite) TestImportReportsBadRows() {
	data := strings.Join([]string{
		"compound,ic50,kd",
		"MOL-1,12.5,3",
		"MOL-2,40,",
		fmt.Sprintf("%d,7.25,1.5", suite.f.molecules[2].ID),
		"MOL-9,1,1",
	}, "\n")

	summary, err := suite.importer.ImportProperties(suite.f.cro(), suite.result.ID, strings.NewReader(data), suite.headerOptions())
	suite.Require().NoError(err)
	suite.Equal(3, summary.SuccessCount)
	suite.Equal(1, summary.ErrorCount)
	suite.Equal([]string{"row 5: molecule MOL-9 not found"}, summary.Errors)

	props := suite.properties()
	suite.Len(props, 5)
	for _, p := range props {
		suite.Equal("nM", p.Units)
	}
}

func (suite *ResultImportTestSuite) TestRowIsAtomic() {
	_, err := suite.results.AddProperty(suite.f.cro(), suite.result.ID, suite.f.molecules[0].ID, "Kd", 2, "nM")
	suite.Require().NoError(err)

	data := "compound,ic50,kd\nMOL-1,12.5,3\nMOL-2,abc,1\nMOL-3,5,\n"
	summary, err := suite.importer.ImportProperties(suite.f.cro(), suite.result.ID, strings.NewReader(data), suite.headerOptions())
	suite.Require().NoError(err)
	suite.Equal(1, summary.SuccessCount)
	suite.Equal(2, summary.ErrorCount)
	suite.Contains(summary.Errors[0], "row 2:")
	suite.Contains(summary.Errors[0], "already recorded")
	suite.Equal(`row 3: property IC50: invalid number "abc"`, summary.Errors[1])

	// MOL-1 keeps only the manual Kd; the duplicate rolled back its IC50 too
	var names []string
	for _, p := range suite.properties() {
		names = append(names, fmt.Sprintf("%d/%s", p.MoleculeID, p.Name))
	}
	suite.ElementsMatch([]string{
		fmt.Sprintf("%d/Kd", suite.f.molecules[0].ID),
		fmt.Sprintf("%d/IC50", suite.f.molecules[2].ID),
	}, names)
}

func (suite *ResultImportTestSuite) TestWithoutHeader() {
	data := "MOL-1;12.5\nMOL-2;40\n"
	summary, err := suite.importer.ImportProperties(suite.f.cro(), suite.result.ID, strings.NewReader(data), services.CSVImportOptions{
		Delimiter:     ';',
		ColumnMapping: map[string]string{"0": services.MoleculeIDColumn, "1": "IC50"},
	})
	suite.Require().NoError(err)
	suite.Equal(2, summary.SuccessCount)
	suite.Zero(summary.ErrorCount)
	suite.Len(suite.properties(), 2)
}

func (suite *ResultImportTestSuite) TestEmptyRow() {
	data := "compound,ic50,kd\nMOL-1,,\n"
	summary, err := suite.importer.ImportProperties(suite.f.cro(), suite.result.ID, strings.NewReader(data), suite.headerOptions())
	suite.Require().NoError(err)
	suite.Equal(0, summary.SuccessCount)
	suite.Equal([]string{"row 2: no property values"}, summary.Errors)
}

func (suite *ResultImportTestSuite) TestInvalidOptions() {
	tests := []struct {
		name string
		opts services.CSVImportOptions
	}{
		{"no molecule column", services.CSVImportOptions{HasHeader: true, ColumnMapping: map[string]string{"ic50": "IC50"}}},
		{"two molecule columns", services.CSVImportOptions{HasHeader: true, ColumnMapping: map[string]string{
			"a": services.MoleculeIDColumn, "b": services.MoleculeIDColumn, "c": "IC50",
		}}},
		{"no property column", services.CSVImportOptions{HasHeader: true, ColumnMapping: map[string]string{"a": services.MoleculeIDColumn}}},
		{"named column without header", services.CSVImportOptions{ColumnMapping: map[string]string{
			"compound": services.MoleculeIDColumn, "1": "IC50",
		}}},
		{"empty target", services.CSVImportOptions{HasHeader: true, ColumnMapping: map[string]string{
			"compound": services.MoleculeIDColumn, "ic50": " ",
		}}},
	}
	for _, tt := range tests {
		suite.Run(tt.name, func() {
			_, err := suite.importer.ImportProperties(suite.f.cro(), suite.result.ID, strings.NewReader("compound,ic50\n"), tt.opts)
			suite.True(apperrors.IsValidation(err), "got %v", err)
		})
	}

	suite.Run("column missing from header", func() {
		_, err := suite.importer.ImportProperties(suite.f.cro(), suite.result.ID, strings.NewReader("name,ic50\n"), suite.headerOptions())
		suite.True(apperrors.IsValidation(err))
	})

	suite.Run("empty file", func() {
		_, err := suite.importer.ImportProperties(suite.f.cro(), suite.result.ID, strings.NewReader(""), suite.headerOptions())
		suite.True(apperrors.IsValidation(err))
	})
}

func (suite *ResultImportTestSuite) TestAccessAndStatus() {
	data := "compound,ic50,kd\nMOL-1,1,1\n"

	_, err := suite.importer.ImportProperties(suite.f.pharma(), suite.result.ID, strings.NewReader(data), suite.headerOptions())
	suite.True(apperrors.IsUnauthorized(err))

	_, err = suite.results.MarkAsProcessed(suite.f.cro(), suite.result.ID, true)
	suite.Require().NoError(err)
	_, err = suite.importer.ImportProperties(suite.f.cro(), suite.result.ID, strings.NewReader(data), suite.headerOptions())
	suite.True(apperrors.IsConflict(err))
}

func (suite *ResultImportTestSuite) TestAsyncImport() {
	data := []byte("compound,ic50,kd\nMOL-1,12.5,3\nMOL-9,1,1\n")
	task, err := suite.importer.ImportPropertiesAsync(context.Background(), suite.f.cro(), suite.result.ID, data, suite.headerOptions())
	suite.Require().NoError(err)
	suite.Equal(services.TaskKindResultImport, task.Kind)
	suite.Require().NotNil(task.SubmissionID)
	suite.Equal(suite.result.SubmissionID, *task.SubmissionID)

	var done *models.Task
	suite.Require().Eventually(func() bool {
		t, err := suite.tasks.GetTask(task.ID)
		if err != nil {
			return false
		}
		done = t
		return t.Status == models.TaskStatusSucceeded
	}, 2*time.Second, 5*time.Millisecond)
	suite.Equal(float64(1), done.Output["success_count"])
	suite.Equal(float64(1), done.Output["error_count"])
	suite.Len(suite.properties(), 2)

	suite.Run("Rejected before queueing", func() {
		_, err := suite.importer.ImportPropertiesAsync(context.Background(), suite.f.outsider(), suite.result.ID, data, suite.headerOptions())
		suite.True(apperrors.IsUnauthorized(err))

		_, err = suite.importer.ImportPropertiesAsync(context.Background(), suite.f.cro(), suite.result.ID, data, services.CSVImportOptions{})
		suite.True(apperrors.IsValidation(err))
	})
}

func TestResultImportTestSuite(t *testing.T) {
	suite.Run(t, new(ResultImportTestSuite))
}

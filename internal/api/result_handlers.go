package api

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"github.com/rxtech-lab/pharmalink/internal/services"
	"gorm.io/datatypes"
)

type createResultRequest struct {
	Notes        string          `json:"notes"`
	ProtocolUsed string          `json:"protocol_used"`
	Metadata     json.RawMessage `json:"metadata"`
}

type addPropertyRequest struct {
	MoleculeID uint     `json:"molecule_id" validate:"required"`
	Name       string   `json:"name" validate:"required"`
	Value      *float64 `json:"value" validate:"required"`
	Units      string   `json:"units"`
}

type processedRequest struct {
	QualityControlPassed *bool `json:"quality_control_passed" validate:"required"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// importRequest carries the CSV inline. Delimiter is a single character.
type importRequest struct {
	CSV           string            `json:"csv" validate:"required"`
	Delimiter     string            `json:"delimiter"`
	HasHeader     bool              `json:"has_header"`
	ColumnMapping map[string]string `json:"column_mapping" validate:"required,min=1"`
	Units         map[string]string `json:"units"`
}

func (r importRequest) options() (services.CSVImportOptions, error) {
	opts := services.CSVImportOptions{
		HasHeader:     r.HasHeader,
		ColumnMapping: r.ColumnMapping,
		Units:         r.Units,
	}
	if r.Delimiter != "" {
		if utf8.RuneCountInString(r.Delimiter) != 1 {
			return opts, badRequest("delimiter must be a single character")
		}
		opts.Delimiter, _ = utf8.DecodeRuneInString(r.Delimiter)
	}
	return opts, nil
}

func (s *APIServer) handleListResults(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	f, err := parseFilter(c)
	if err != nil {
		return respondError(c, err)
	}
	page, err := s.svc.Results.ListResults(currentActor(c), id, f)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

func (s *APIServer) handleCreateResult(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req createResultRequest
	if err := bindJSON(c, &req, true); err != nil {
		return respondError(c, err)
	}
	input := services.CreateResultInput{
		Notes:        req.Notes,
		ProtocolUsed: req.ProtocolUsed,
	}
	if len(req.Metadata) > 0 {
		input.Metadata = datatypes.JSON(req.Metadata)
	}
	result, err := s.svc.Results.CreateResult(currentActor(c), id, input)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

func (s *APIServer) handleGetResult(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	result, err := s.svc.Results.GetResult(currentActor(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

func (s *APIServer) handleStartResultProcessing(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	result, err := s.svc.Results.StartProcessing(currentActor(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

func (s *APIServer) handleAddResultProperty(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req addPropertyRequest
	if err := bindJSON(c, &req, false); err != nil {
		return respondError(c, err)
	}
	property, err := s.svc.Results.AddProperty(currentActor(c), id, req.MoleculeID, req.Name, *req.Value, req.Units)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(property)
}

// handleImportResultProperties imports inline CSV. With ?async=true the
// import runs on the task queue and the task is returned with 202.
func (s *APIServer) handleImportResultProperties(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req importRequest
	if err := bindJSON(c, &req, false); err != nil {
		return respondError(c, err)
	}
	opts, err := req.options()
	if err != nil {
		return respondError(c, err)
	}

	if c.QueryBool("async", false) {
		task, err := s.svc.Imports.ImportPropertiesAsync(c.UserContext(), currentActor(c), id, []byte(req.CSV), opts)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusAccepted).JSON(task)
	}

	summary, err := s.svc.Imports.ImportProperties(currentActor(c), id, strings.NewReader(req.CSV), opts)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(summary)
}

func (s *APIServer) handleMarkResultProcessed(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req processedRequest
	if err := bindJSON(c, &req, false); err != nil {
		return respondError(c, err)
	}
	result, err := s.svc.Results.MarkAsProcessed(currentActor(c), id, *req.QualityControlPassed)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

func (s *APIServer) handleReviewResult(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	outcome, err := s.svc.Results.MarkAsReviewed(currentActor(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(outcome)
}

func (s *APIServer) handleApplyResult(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	applied, err := s.svc.Results.ApplyToMolecules(currentActor(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"applied_properties": applied})
}

func (s *APIServer) handleRejectResult(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req rejectRequest
	if err := bindJSON(c, &req, true); err != nil {
		return respondError(c, err)
	}
	result, err := s.svc.Results.Reject(currentActor(c), id, req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

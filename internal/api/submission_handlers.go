package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rxtech-lab/pharmalink/internal/models"
	"github.com/rxtech-lab/pharmalink/internal/services"
)

type createSubmissionRequest struct {
	Name           string      `json:"name" validate:"required"`
	CROServiceID   uint        `json:"cro_service_id" validate:"required"`
	Description    string      `json:"description"`
	Specifications models.JSON `json:"specifications"`
}

type updateSubmissionRequest struct {
	Name           *string     `json:"name"`
	Description    *string     `json:"description"`
	Specifications models.JSON `json:"specifications"`
	CRONotes       *string     `json:"cro_notes"`
}

type actionRequest struct {
	Price          *float64 `json:"price" validate:"omitempty,gte=0"`
	Currency       string   `json:"currency" validate:"omitempty,len=3"`
	TurnaroundDays *int     `json:"turnaround_days" validate:"omitempty,gt=0"`
	Reason         string   `json:"reason"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
	Reason string `json:"reason"`
}

type addMoleculeRequest struct {
	MoleculeID    uint     `json:"molecule_id" validate:"required"`
	Concentration *float64 `json:"concentration" validate:"omitempty,gt=0"`
	Notes         string   `json:"notes"`
}

func (s *APIServer) handleListSubmissions(c *fiber.Ctx) error {
	f, err := parseFilter(c)
	if err != nil {
		return respondError(c, err)
	}
	page, err := s.svc.Submissions.ListSubmissions(currentActor(c), f)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

func (s *APIServer) handleCreateSubmission(c *fiber.Ctx) error {
	var req createSubmissionRequest
	if err := bindJSON(c, &req, false); err != nil {
		return respondError(c, err)
	}
	sub, err := s.svc.Submissions.CreateSubmission(currentActor(c), services.CreateSubmissionInput{
		Name:           req.Name,
		CROServiceID:   req.CROServiceID,
		Description:    req.Description,
		Specifications: req.Specifications,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(sub)
}

func (s *APIServer) handleGetSubmission(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	sub, err := s.svc.Submissions.GetSubmissionForActor(currentActor(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(sub)
}

func (s *APIServer) handleUpdateSubmission(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req updateSubmissionRequest
	if err := bindJSON(c, &req, false); err != nil {
		return respondError(c, err)
	}
	sub, err := s.svc.Submissions.UpdateDetails(currentActor(c), id, services.UpdateSubmissionInput{
		Name:           req.Name,
		Description:    req.Description,
		Specifications: req.Specifications,
		CRONotes:       req.CRONotes,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(sub)
}

// handleSetSubmissionStatus is the administrative override; it still obeys
// the transition table.
func (s *APIServer) handleSetSubmissionStatus(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req statusRequest
	if err := bindJSON(c, &req, false); err != nil {
		return respondError(c, err)
	}
	status, err := models.ParseSubmissionStatus(req.Status)
	if err != nil {
		return respondError(c, err)
	}
	sub, err := s.svc.Submissions.UpdateStatus(currentActor(c), id, status, req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(sub)
}

func (s *APIServer) handleSubmissionAction(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	action, err := models.ParseSubmissionAction(c.Params("action"))
	if err != nil {
		return respondError(c, err)
	}
	var req actionRequest
	if err := bindJSON(c, &req, true); err != nil {
		return respondError(c, err)
	}
	sub, err := s.svc.Submissions.ProcessAction(currentActor(c), id, action, services.ActionParams{
		Price:          req.Price,
		Currency:       req.Currency,
		TurnaroundDays: req.TurnaroundDays,
		Reason:         req.Reason,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(sub)
}

func (s *APIServer) handleAllowedActions(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	actions, err := s.svc.Submissions.AllowedActions(currentActor(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"actions": actions})
}

func (s *APIServer) handleRequiredDocuments(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if _, err := s.svc.Submissions.GetSubmissionForActor(currentActor(c), id); err != nil {
		return respondError(c, err)
	}
	checklist, err := s.svc.Submissions.GetRequiredDocuments(id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"documents": checklist,
		"complete":  models.HasRequiredDocuments(checklist),
		"missing":   models.MissingDocumentTypes(checklist),
	})
}

func (s *APIServer) handleSubmissionHistory(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	history, err := s.svc.Submissions.History(currentActor(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"history": history})
}

func (s *APIServer) handleAddSubmissionMolecule(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req addMoleculeRequest
	if err := bindJSON(c, &req, false); err != nil {
		return respondError(c, err)
	}
	link, err := s.svc.Submissions.AddMolecule(currentActor(c), id, req.MoleculeID, req.Concentration, req.Notes)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(link)
}

func (s *APIServer) handleRemoveSubmissionMolecule(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	moleculeID, err := paramID(c, "moleculeId")
	if err != nil {
		return respondError(c, err)
	}
	if err := s.svc.Submissions.RemoveMolecule(currentActor(c), id, moleculeID); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

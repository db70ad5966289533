package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rxtech-lab/pharmalink/internal/models"
	"github.com/rxtech-lab/pharmalink/internal/services"
)

type setPropertyRequest struct {
	Name   string   `json:"name" validate:"required"`
	Value  *float64 `json:"value" validate:"required"`
	Units  string   `json:"units"`
	Source string   `json:"source" validate:"required"`
}

type createOrganizationRequest struct {
	Name string `json:"name" validate:"required"`
	Type string `json:"type" validate:"required"`
}

func (s *APIServer) handleListMolecules(c *fiber.Ctx) error {
	f, err := parseFilter(c)
	if err != nil {
		return respondError(c, err)
	}
	page, err := s.svc.Molecules.ListMolecules(currentActor(c), f)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

func (s *APIServer) handleCreateMolecule(c *fiber.Ctx) error {
	var req services.CreateMoleculeInput
	if err := bindJSON(c, &req, false); err != nil {
		return respondError(c, err)
	}
	molecule, err := s.svc.Molecules.CreateMolecule(currentActor(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(molecule)
}

func (s *APIServer) handleGetMolecule(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	molecule, err := s.svc.Molecules.GetMolecule(currentActor(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(molecule)
}

func (s *APIServer) handleSetMoleculeProperty(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req setPropertyRequest
	if err := bindJSON(c, &req, false); err != nil {
		return respondError(c, err)
	}
	source, err := models.ParsePropertySource(req.Source)
	if err != nil {
		return respondError(c, err)
	}
	property, err := s.svc.Molecules.SetProperty(currentActor(c), id, req.Name, *req.Value, req.Units, source)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(property)
}

func (s *APIServer) handleListCROServices(c *fiber.Ctx) error {
	f, err := parseFilter(c)
	if err != nil {
		return respondError(c, err)
	}
	page, err := s.svc.Catalog.ListServices(f)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

func (s *APIServer) handleCreateCROService(c *fiber.Ctx) error {
	var req services.CreateCROServiceInput
	if err := bindJSON(c, &req, false); err != nil {
		return respondError(c, err)
	}
	service, err := s.svc.Catalog.CreateService(currentActor(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(service)
}

func (s *APIServer) handleGetCROService(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	service, err := s.svc.Catalog.GetService(id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(service)
}

func (s *APIServer) handleUpdateCROService(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req services.UpdateCROServiceInput
	if err := bindJSON(c, &req, false); err != nil {
		return respondError(c, err)
	}
	service, err := s.svc.Catalog.UpdateService(currentActor(c), id, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(service)
}

func (s *APIServer) handleListOrganizations(c *fiber.Ctx) error {
	f, err := parseFilter(c)
	if err != nil {
		return respondError(c, err)
	}
	page, err := s.svc.Users.ListOrganizations(f)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

func (s *APIServer) handleCreateOrganization(c *fiber.Ctx) error {
	var req createOrganizationRequest
	if err := bindJSON(c, &req, false); err != nil {
		return respondError(c, err)
	}
	org, err := s.svc.Users.CreateOrganization(currentActor(c), req.Name, req.Type)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(org)
}

func (s *APIServer) handleCreateUser(c *fiber.Ctx) error {
	var req services.CreateUserInput
	if err := bindJSON(c, &req, false); err != nil {
		return respondError(c, err)
	}
	user, err := s.svc.Users.CreateUser(currentActor(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}

// handleGetUser lets users read themselves; administrators read anyone.
func (s *APIServer) handleGetUser(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	actor := currentActor(c)
	if actor.UserID != id && !actor.Role.IsAdmin() {
		return respondError(c, fiber.NewError(fiber.StatusForbidden, "cannot read other users"))
	}
	user, err := s.svc.Users.GetUser(id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

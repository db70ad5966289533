package services

import (
	"fmt"
	"strings"

	"github.com/rxtech-lab/pharmalink/internal/apperrors"
	"github.com/rxtech-lab/pharmalink/internal/models"
	"gorm.io/gorm"
)

type CreateCROServiceInput struct {
	Name                  string   `json:"name" validate:"required"`
	Description           string   `json:"description"`
	ServiceType           string   `json:"service_type" validate:"required"`
	BasePrice             *float64 `json:"base_price" validate:"omitempty,gte=0"`
	Currency              string   `json:"currency" validate:"omitempty,len=3"`
	TypicalTurnaroundDays *int     `json:"typical_turnaround_days" validate:"omitempty,gt=0"`
}

type UpdateCROServiceInput struct {
	Name                  *string  `json:"name"`
	Description           *string  `json:"description"`
	BasePrice             *float64 `json:"base_price" validate:"omitempty,gte=0"`
	TypicalTurnaroundDays *int     `json:"typical_turnaround_days" validate:"omitempty,gt=0"`
	IsActive              *bool    `json:"is_active"`
}

// CROCatalogService handles the services CRO organizations publish
type CROCatalogService interface {
	CreateService(actor models.Actor, input CreateCROServiceInput) (*models.CROService, error)
	GetService(id uint) (*models.CROService, error)
	ListServices(f Filter) (Page[models.CROService], error)
	UpdateService(actor models.Actor, id uint, input UpdateCROServiceInput) (*models.CROService, error)
}

var croServiceFields = FieldSet{
	"name":            "name",
	"service_type":    "service_type",
	"organization_id": "organization_id",
	"is_active":       "is_active",
	"base_price":      "base_price",
	"created_at":      "created_at",
}

type croCatalogService struct {
	db *gorm.DB
}

// NewCROCatalogService creates a new CROCatalogService
func NewCROCatalogService(db *gorm.DB) CROCatalogService {
	return &croCatalogService{db: db}
}

func (s *croCatalogService) CreateService(actor models.Actor, input CreateCROServiceInput) (*models.CROService, error) {
	const op = "CROCatalogService.CreateService"
	if actor.Role != models.UserRoleCROAdmin {
		return nil, apperrors.Unauthorized(op, "only CRO administrators can publish services")
	}
	serviceType, err := models.ParseServiceType(input.ServiceType)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.Validation(op, "service name is required")
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = "USD"
	}

	service := &models.CROService{
		OrganizationID:        actor.OrganizationID,
		Name:                  name,
		Description:           input.Description,
		ServiceType:           serviceType,
		BasePrice:             input.BasePrice,
		Currency:              currency,
		TypicalTurnaroundDays: input.TypicalTurnaroundDays,
		IsActive:              true,
	}
	if err := s.db.Create(service).Error; err != nil {
		return nil, fmt.Errorf("failed to create CRO service: %w", err)
	}
	return service, nil
}

func (s *croCatalogService) GetService(id uint) (*models.CROService, error) {
	var service models.CROService
	if err := s.db.Preload("Organization").First(&service, id).Error; err != nil {
		return nil, notFoundOr(err, "CROCatalogService.GetService", "CRO service %d not found", id)
	}
	return &service, nil
}

func (s *croCatalogService) ListServices(f Filter) (Page[models.CROService], error) {
	return Paginate[models.CROService](s.db, f, croServiceFields, "name", "Organization")
}

// UpdateService is limited to the owning organization's administrators.
// Deactivating a service does not affect submissions already routed to it.
func (s *croCatalogService) UpdateService(actor models.Actor, id uint, input UpdateCROServiceInput) (*models.CROService, error) {
	const op = "CROCatalogService.UpdateService"
	service, err := s.GetService(id)
	if err != nil {
		return nil, err
	}
	if !actor.Role.IsAdmin() && (actor.Role != models.UserRoleCROAdmin || actor.OrganizationID != service.OrganizationID) {
		return nil, apperrors.Unauthorized(op, "user %d cannot edit CRO service %d", actor.UserID, id)
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperrors.Validation(op, "service name cannot be empty")
		}
		service.Name = name
	}
	if input.Description != nil {
		service.Description = *input.Description
	}
	if input.BasePrice != nil {
		service.BasePrice = input.BasePrice
	}
	if input.TypicalTurnaroundDays != nil {
		service.TypicalTurnaroundDays = input.TypicalTurnaroundDays
	}
	if input.IsActive != nil {
		service.IsActive = *input.IsActive
	}
	if err := s.db.Omit("Organization").Save(service).Error; err != nil {
		return nil, fmt.Errorf("failed to update CRO service: %w", err)
	}
	return service, nil
}

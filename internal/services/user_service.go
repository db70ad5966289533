package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rxtech-lab/pharmalink/internal/apperrors"
	"github.com/rxtech-lab/pharmalink/internal/models"
	"gorm.io/gorm"
)

type CreateUserInput struct {
	Subject        string `json:"subject" validate:"required"`
	Email          string `json:"email" validate:"required,email"`
	Name           string `json:"name"`
	Role           string `json:"role" validate:"required"`
	OrganizationID uint   `json:"organization_id"`
}

// UserService maps identity provider subjects to local users and their
// organizations
type UserService interface {
	ResolveUser(subject string) (*models.User, error)
	GetUser(id uint) (*models.User, error)
	CreateOrganization(actor models.Actor, name string, orgType string) (*models.Organization, error)
	ListOrganizations(f Filter) (Page[models.Organization], error)
	CreateUser(actor models.Actor, input CreateUserInput) (*models.User, error)
}

var organizationFields = FieldSet{
	"name": "name",
	"type": "type",
}

type userService struct {
	db *gorm.DB
}

// NewUserService creates a new UserService
func NewUserService(db *gorm.DB) UserService {
	return &userService{db: db}
}

// ResolveUser finds the local user for a token subject
func (s *userService) ResolveUser(subject string) (*models.User, error) {
	const op = "UserService.ResolveUser"
	if strings.TrimSpace(subject) == "" {
		return nil, apperrors.Validation(op, "subject is required")
	}
	var user models.User
	if err := s.db.Where("subject = ?", subject).First(&user).Error; err != nil {
		return nil, notFoundOr(err, op, "no user for subject %q", subject)
	}
	return &user, nil
}

func (s *userService) GetUser(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.Preload("Organization").First(&user, id).Error; err != nil {
		return nil, notFoundOr(err, "UserService.GetUser", "user %d not found", id)
	}
	return &user, nil
}

func (s *userService) CreateOrganization(actor models.Actor, name string, orgType string) (*models.Organization, error) {
	const op = "UserService.CreateOrganization"
	if !actor.Role.IsAdmin() {
		return nil, apperrors.Unauthorized(op, "only administrators can create organizations")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.Validation(op, "organization name is required")
	}
	t := models.OrganizationType(strings.ToUpper(strings.TrimSpace(orgType)))
	if t != models.OrganizationTypePharma && t != models.OrganizationTypeCRO {
		return nil, apperrors.Validation(op, "unknown organization type %q", orgType)
	}

	org := &models.Organization{Name: name, Type: t}
	if err := s.db.Create(org).Error; err != nil {
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}
	return org, nil
}

func (s *userService) ListOrganizations(f Filter) (Page[models.Organization], error) {
	return Paginate[models.Organization](s.db, f, organizationFields, "name")
}

// CreateUser provisions a user. The role must match the organization type;
// system administrators belong to no organization.
func (s *userService) CreateUser(actor models.Actor, input CreateUserInput) (*models.User, error) {
	const op = "UserService.CreateUser"
	if !actor.Role.IsAdmin() {
		return nil, apperrors.Unauthorized(op, "only administrators can create users")
	}
	role, err := models.ParseUserRole(input.Role)
	if err != nil {
		return nil, err
	}
	subject := strings.TrimSpace(input.Subject)
	if subject == "" || strings.TrimSpace(input.Email) == "" {
		return nil, apperrors.Validation(op, "subject and email are required")
	}

	user := &models.User{
		Subject: subject,
		Email:   strings.TrimSpace(input.Email),
		Name:    strings.TrimSpace(input.Name),
		Role:    role,
	}
	if !role.IsAdmin() {
		var org models.Organization
		if err := s.db.First(&org, input.OrganizationID).Error; err != nil {
			return nil, notFoundOr(err, op, "organization %d not found", input.OrganizationID)
		}
		if (role.IsPharma() && org.Type != models.OrganizationTypePharma) || (role.IsCRO() && org.Type != models.OrganizationTypeCRO) {
			return nil, apperrors.Validation(op, "role %s does not fit a %s organization", role, org.Type)
		}
		user.OrganizationID = org.ID
	}

	var existing models.User
	err = s.db.Where("subject = ?", subject).First(&existing).Error
	if err == nil {
		return nil, apperrors.Conflict(op, "a user with subject %q already exists", subject)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check subject: %w", err)
	}
	if err := s.db.Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

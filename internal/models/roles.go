package models

import (
	"strings"
	"time"

	"github.com/rxtech-lab/pharmalink/internal/apperrors"
)

type OrganizationType string

const (
	OrganizationTypePharma OrganizationType = "PHARMA"
	OrganizationTypeCRO    OrganizationType = "CRO"
)

type UserRole string

const (
	UserRolePharmaAdmin     UserRole = "PHARMA_ADMIN"
	UserRolePharmaScientist UserRole = "PHARMA_SCIENTIST"
	UserRoleCROAdmin        UserRole = "CRO_ADMIN"
	UserRoleCROTechnician   UserRole = "CRO_TECHNICIAN"
	UserRoleSystemAdmin     UserRole = "SYSTEM_ADMIN"
)

var userRoles = []UserRole{
	UserRolePharmaAdmin,
	UserRolePharmaScientist,
	UserRoleCROAdmin,
	UserRoleCROTechnician,
	UserRoleSystemAdmin,
}

// ParseUserRole is the single validation point for role strings.
func ParseUserRole(s string) (UserRole, error) {
	for _, r := range userRoles {
		if string(r) == strings.ToUpper(strings.TrimSpace(s)) {
			return r, nil
		}
	}
	return "", apperrors.Validation("ParseUserRole", "unknown role %q", s)
}

func (r UserRole) IsPharma() bool {
	return strings.HasPrefix(string(r), "PHARMA_")
}

func (r UserRole) IsCRO() bool {
	return strings.HasPrefix(string(r), "CRO_")
}

func (r UserRole) IsAdmin() bool {
	return r == UserRoleSystemAdmin
}

// RoleKind collapses the concrete roles into the party that acts on a submission.
type RoleKind string

const (
	RoleKindPharma RoleKind = "PHARMA"
	RoleKindCRO    RoleKind = "CRO"
	RoleKindAdmin  RoleKind = "ADMIN"
)

func (r UserRole) Kind() RoleKind {
	switch {
	case r.IsPharma():
		return RoleKindPharma
	case r.IsCRO():
		return RoleKindCRO
	default:
		return RoleKindAdmin
	}
}

// Organization is either a pharma sponsor or a CRO lab.
type Organization struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	Name      string           `gorm:"not null" json:"name"`
	Type      OrganizationType `gorm:"not null;index" json:"type"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// User is a local account resolved from the identity provider subject.
type User struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Subject        string    `gorm:"uniqueIndex;not null" json:"subject"`
	Email          string    `gorm:"not null" json:"email"`
	Name           string    `json:"name"`
	Role           UserRole  `gorm:"not null" json:"role"`
	OrganizationID uint      `gorm:"index" json:"organization_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	Organization Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
}

// Actor is the caller identity the workflow rules are evaluated against.
type Actor struct {
	UserID         uint
	Role           UserRole
	OrganizationID uint
}

func (u *User) Actor() Actor {
	return Actor{UserID: u.ID, Role: u.Role, OrganizationID: u.OrganizationID}
}

package models

import (
	"strings"
	"time"

	"github.com/rxtech-lab/pharmalink/internal/apperrors"
)

type ServiceType string

const (
	ServiceTypeBindingAssay     ServiceType = "BINDING_ASSAY"
	ServiceTypeADME             ServiceType = "ADME"
	ServiceTypeToxicity         ServiceType = "TOXICITY"
	ServiceTypeSolubility       ServiceType = "SOLUBILITY"
	ServiceTypePharmacokinetics ServiceType = "PHARMACOKINETICS"
	ServiceTypeCustom           ServiceType = "CUSTOM"
)

var serviceTypes = []ServiceType{
	ServiceTypeBindingAssay,
	ServiceTypeADME,
	ServiceTypeToxicity,
	ServiceTypeSolubility,
	ServiceTypePharmacokinetics,
	ServiceTypeCustom,
}

func ParseServiceType(s string) (ServiceType, error) {
	normalized := strings.ToUpper(strings.TrimSpace(s))
	for _, t := range serviceTypes {
		if string(t) == normalized {
			return t, nil
		}
	}
	return "", apperrors.Validation("ParseServiceType", "unknown service type %q", s)
}

// CROService is an offering published by a CRO organization. Submissions are
// routed to the organization that owns the service.
type CROService struct {
	ID                    uint        `gorm:"primaryKey" json:"id"`
	OrganizationID        uint        `gorm:"not null;index" json:"organization_id"`
	Name                  string      `gorm:"not null" json:"name"`
	Description           string      `json:"description"`
	ServiceType           ServiceType `gorm:"not null" json:"service_type"`
	BasePrice             *float64    `json:"base_price,omitempty"`
	Currency              string      `gorm:"default:USD" json:"currency"`
	TypicalTurnaroundDays *int        `json:"typical_turnaround_days,omitempty"`
	IsActive              bool        `gorm:"default:true" json:"is_active"`
	CreatedAt             time.Time   `json:"created_at"`
	UpdatedAt             time.Time   `json:"updated_at"`

	Organization Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
}

package models

import (
	"strings"
	"time"

	"github.com/rxtech-lab/pharmalink/internal/apperrors"
)

// PropertySource records where a molecule property value came from.
type PropertySource string

const (
	PropertySourceExperimental PropertySource = "EXPERIMENTAL"
	PropertySourceComputed     PropertySource = "COMPUTED"
	PropertySourceImported     PropertySource = "IMPORTED"
)

func ParsePropertySource(s string) (PropertySource, error) {
	source := PropertySource(strings.ToUpper(strings.TrimSpace(s)))
	switch source {
	case PropertySourceExperimental, PropertySourceComputed, PropertySourceImported:
		return source, nil
	}
	return "", apperrors.Validation("ParsePropertySource", "unknown property source %q", s)
}

type Molecule struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Name            string    `gorm:"not null" json:"name"`
	Smiles          string    `gorm:"not null" json:"smiles"`
	InchiKey        string    `gorm:"index" json:"inchi_key"`
	Formula         string    `json:"formula"`
	MolecularWeight *float64  `json:"molecular_weight,omitempty"`
	OrganizationID  uint      `gorm:"not null;index" json:"organization_id"`
	CreatedByID     uint      `gorm:"not null" json:"created_by_id"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	Properties []MoleculeProperty `gorm:"foreignKey:MoleculeID" json:"properties,omitempty"`
}

// MoleculeProperty is the molecule's own property store. One value is kept per
// (molecule, name, source).
type MoleculeProperty struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	MoleculeID uint           `gorm:"not null;uniqueIndex:idx_molecule_property" json:"molecule_id"`
	Name       string         `gorm:"not null;uniqueIndex:idx_molecule_property" json:"name"`
	Source     PropertySource `gorm:"not null;uniqueIndex:idx_molecule_property" json:"source"`
	Value      float64        `json:"value"`
	Units      string         `json:"units"`
	ResultID   *uint          `gorm:"index" json:"result_id,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

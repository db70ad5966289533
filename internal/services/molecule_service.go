package services

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rxtech-lab/pharmalink/internal/apperrors"
	"github.com/rxtech-lab/pharmalink/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CreateMoleculeInput struct {
	Name            string   `json:"name" validate:"required"`
	Smiles          string   `json:"smiles" validate:"required"`
	InchiKey        string   `json:"inchi_key"`
	Formula         string   `json:"formula"`
	MolecularWeight *float64 `json:"molecular_weight" validate:"omitempty,gt=0"`
}

// MoleculeService handles the sponsor's molecule library
type MoleculeService interface {
	CreateMolecule(actor models.Actor, input CreateMoleculeInput) (*models.Molecule, error)
	GetMolecule(actor models.Actor, id uint) (*models.Molecule, error)
	ListMolecules(actor models.Actor, f Filter) (Page[models.Molecule], error)
	SetProperty(actor models.Actor, moleculeID uint, name string, value float64, units string, source models.PropertySource) (*models.MoleculeProperty, error)
}

var moleculeFields = FieldSet{
	"name":       "molecules.name",
	"inchi_key":  "molecules.inchi_key",
	"formula":    "molecules.formula",
	"created_at": "molecules.created_at",
}

type moleculeService struct {
	db *gorm.DB
}

// NewMoleculeService creates a new MoleculeService
func NewMoleculeService(db *gorm.DB) MoleculeService {
	return &moleculeService{db: db}
}

// CreateMolecule adds a molecule to the actor's organization
func (s *moleculeService) CreateMolecule(actor models.Actor, input CreateMoleculeInput) (*models.Molecule, error) {
	const op = "MoleculeService.CreateMolecule"
	if actor.Role.Kind() != models.RoleKindPharma {
		return nil, apperrors.Unauthorized(op, "only pharma users can register molecules")
	}
	name, smiles := strings.TrimSpace(input.Name), strings.TrimSpace(input.Smiles)
	if name == "" || smiles == "" {
		return nil, apperrors.Validation(op, "name and smiles are required")
	}

	molecule := &models.Molecule{
		Name:            name,
		Smiles:          smiles,
		InchiKey:        strings.TrimSpace(input.InchiKey),
		Formula:         strings.TrimSpace(input.Formula),
		MolecularWeight: input.MolecularWeight,
		OrganizationID:  actor.OrganizationID,
		CreatedByID:     actor.UserID,
	}
	if err := s.db.Create(molecule).Error; err != nil {
		return nil, fmt.Errorf("failed to create molecule: %w", err)
	}
	return molecule, nil
}

// GetMolecule returns a molecule with its property store
func (s *moleculeService) GetMolecule(actor models.Actor, id uint) (*models.Molecule, error) {
	const op = "MoleculeService.GetMolecule"
	var molecule models.Molecule
	err := scopeMolecules(s.db, actor).Preload("Properties", func(db *gorm.DB) *gorm.DB {
		return db.Order("name, source")
	}).First(&molecule, id).Error
	if err != nil {
		return nil, notFoundOr(err, op, "molecule %d not found", id)
	}
	return &molecule, nil
}

// ListMolecules returns the molecules the actor can see
func (s *moleculeService) ListMolecules(actor models.Actor, f Filter) (Page[models.Molecule], error) {
	return Paginate[models.Molecule](scopeMolecules(s.db, actor), f, moleculeFields, "molecules.name")
}

// SetProperty stores a computed or imported value. Experimental values only
// come from reviewed results.
func (s *moleculeService) SetProperty(actor models.Actor, moleculeID uint, name string, value float64, units string, source models.PropertySource) (*models.MoleculeProperty, error) {
	const op = "MoleculeService.SetProperty"
	if source != models.PropertySourceComputed && source != models.PropertySourceImported {
		return nil, apperrors.Validation(op, "property source must be %s or %s", models.PropertySourceComputed, models.PropertySourceImported)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.Validation(op, "property name is required")
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, apperrors.Validation(op, "property %s has a non-finite value", name)
	}
	if actor.Role.Kind() != models.RoleKindPharma {
		return nil, apperrors.Unauthorized(op, "only pharma users can edit molecule properties")
	}
	molecule, err := s.GetMolecule(actor, moleculeID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	prop := &models.MoleculeProperty{
		MoleculeID: molecule.ID,
		Name:       name,
		Source:     source,
		Value:      value,
		Units:      strings.TrimSpace(units),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err = s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "molecule_id"}, {Name: "name"}, {Name: "source"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "units", "updated_at"}),
	}).Create(prop).Error
	if err != nil {
		return nil, fmt.Errorf("failed to set molecule property: %w", err)
	}
	return prop, nil
}

// scopeMolecules restricts a molecules query to what actor may see: pharma
// users their organization's library, CRO users the molecules of submissions
// routed to them.
func scopeMolecules(db *gorm.DB, actor models.Actor) *gorm.DB {
	switch actor.Role.Kind() {
	case models.RoleKindPharma:
		return db.Where("molecules.organization_id = ?", actor.OrganizationID)
	case models.RoleKindCRO:
		fresh := db.Session(&gorm.Session{NewDB: true})
		routed := fresh.Model(&models.Submission{}).Select("id").Where("cro_service_id IN (?)",
			fresh.Model(&models.CROService{}).Select("id").Where("organization_id = ?", actor.OrganizationID))
		return db.Where("molecules.id IN (?)",
			fresh.Model(&models.SubmissionMolecule{}).Select("molecule_id").Where("submission_id IN (?)", routed))
	default:
		return db
	}
}

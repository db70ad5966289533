package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rxtech-lab/pharmalink/internal/apperrors"
	"github.com/rxtech-lab/pharmalink/internal/logger"
	"github.com/rxtech-lab/pharmalink/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MoleculeIDColumn is the mapping target naming the molecule column.
const MoleculeIDColumn = "molecule_id"

type CSVImportOptions struct {
	// Delimiter defaults to a comma.
	Delimiter rune `json:"delimiter"`
	HasHeader bool `json:"has_header"`
	// ColumnMapping maps a column to "molecule_id" or to a property name. A
	// column is its header name, or its zero-based index without a header.
	ColumnMapping map[string]string `json:"column_mapping"`
	// Units maps a property name to its units.
	Units map[string]string `json:"units,omitempty"`
}

type ImportSummary struct {
	SuccessCount int      `json:"success_count"`
	ErrorCount   int      `json:"error_count"`
	Errors       []string `json:"errors"`
}

func (s ImportSummary) JSON() models.JSON {
	errs := make([]interface{}, len(s.Errors))
	for i, e := range s.Errors {
		errs[i] = e
	}
	return models.JSON{
		"success_count": s.SuccessCount,
		"error_count":   s.ErrorCount,
		"errors":        errs,
	}
}

// ResultImportService loads result properties from CSV. Rows are imported
// independently: a bad row is reported and the rest of the file continues.
type ResultImportService interface {
	ImportProperties(actor models.Actor, resultID uint, r io.Reader, opts CSVImportOptions) (*ImportSummary, error)
	ImportPropertiesAsync(ctx context.Context, actor models.Actor, resultID uint, data []byte, opts CSVImportOptions) (*models.Task, error)
}

type resultImportService struct {
	results *resultService
	tasks   TaskService
}

func NewResultImportService(db *gorm.DB, tasks TaskService) ResultImportService {
	return &resultImportService{
		results: &resultService{db: db, hooks: NewHookService(), now: time.Now},
		tasks:   tasks,
	}
}

// columnPlan is a validated mapping resolved against the file layout.
type columnPlan struct {
	moleculeIndex int
	properties    map[int]string
}

func (o CSVImportOptions) validate() error {
	const op = "CSVImportOptions.validate"
	moleculeColumns, propertyColumns := 0, 0
	for column, target := range o.ColumnMapping {
		if strings.TrimSpace(target) == "" {
			return apperrors.Validation(op, "column %q is mapped to an empty name", column)
		}
		if target == MoleculeIDColumn {
			moleculeColumns++
		} else {
			propertyColumns++
		}
		if !o.HasHeader {
			if i, err := strconv.Atoi(column); err != nil || i < 0 {
				return apperrors.Validation(op, "column %q must be a zero-based index when the file has no header", column)
			}
		}
	}
	if moleculeColumns != 1 {
		return apperrors.Validation(op, "column mapping needs exactly one %s column, got %d", MoleculeIDColumn, moleculeColumns)
	}
	if propertyColumns == 0 {
		return apperrors.Validation(op, "column mapping has no property columns")
	}
	return nil
}

func (o CSVImportOptions) plan(header []string) (*columnPlan, error) {
	plan := &columnPlan{moleculeIndex: -1, properties: map[int]string{}}
	for column, target := range o.ColumnMapping {
		index := -1
		if o.HasHeader {
			for i, h := range header {
				if strings.TrimSpace(h) == column {
					index = i
					break
				}
			}
			if index < 0 {
				return nil, apperrors.Validation("CSVImportOptions.plan", "column %q is not in the header", column)
			}
		} else {
			index, _ = strconv.Atoi(column)
		}
		if target == MoleculeIDColumn {
			plan.moleculeIndex = index
		} else {
			plan.properties[index] = strings.TrimSpace(target)
		}
	}
	return plan, nil
}

func (s *resultImportService) ImportProperties(actor models.Actor, resultID uint, r io.Reader, opts CSVImportOptions) (*ImportSummary, error) {
	const op = "ResultImportService.ImportProperties"
	if err := opts.validate(); err != nil {
		return nil, err
	}

	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var header []string
	if opts.HasHeader {
		h, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, apperrors.Validation(op, "file is empty")
			}
			return nil, apperrors.Validation(op, "failed to read header: %v", err)
		}
		header = h
	}
	plan, err := opts.plan(header)
	if err != nil {
		return nil, err
	}

	summary := &ImportSummary{Errors: []string{}}
	_, err = s.results.mutate(actor, resultID, op, models.RoleKindCRO, func(tx *gorm.DB, result *models.Result, sub *models.Submission) error {
		if !result.AcceptsProperties() {
			return apperrors.Conflict(op, "result in status %s does not accept properties", result.Status).
				WithDetail("current_status", result.Status)
		}
		lookup, err := newMoleculeLookup(tx, sub)
		if err != nil {
			return err
		}

		for {
			record, err := reader.Read()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				var parseErr *csv.ParseError
				if errors.As(err, &parseErr) {
					summary.fail(fmt.Sprintf("row %d: %v", parseErr.Line, parseErr.Err))
					continue
				}
				return apperrors.Validation(op, "failed to read file: %v", err)
			}
			line, _ := reader.FieldPos(0)
			if rowErr := s.importRow(tx, result, sub, lookup, plan, opts, record); rowErr != "" {
				summary.fail(fmt.Sprintf("row %d: %s", line, rowErr))
				continue
			}
			summary.SuccessCount++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

func (s *ImportSummary) fail(message string) {
	s.ErrorCount++
	s.Errors = append(s.Errors, message)
}

// importRow validates the whole row before writing any of it.
func (s *resultImportService) importRow(tx *gorm.DB, result *models.Result, sub *models.Submission, lookup *moleculeLookup, plan *columnPlan, opts CSVImportOptions, record []string) string {
	if plan.moleculeIndex >= len(record) {
		return "missing molecule column"
	}
	ref := strings.TrimSpace(record[plan.moleculeIndex])
	moleculeID, ok := lookup.resolve(ref)
	if !ok {
		return fmt.Sprintf("molecule %s not found", ref)
	}

	type value struct {
		name  string
		value float64
	}
	var values []value
	for index, name := range plan.properties {
		if index >= len(record) {
			continue
		}
		cell := strings.TrimSpace(record[index])
		if cell == "" {
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return fmt.Sprintf("property %s: invalid number %q", name, cell)
		}
		values = append(values, value{name: name, value: v})
	}
	if len(values) == 0 {
		return "no property values"
	}

	before := len(result.Properties)
	err := tx.Transaction(func(rowTx *gorm.DB) error {
		for _, v := range values {
			if _, err := addResultProperty(rowTx, result, sub, moleculeID, v.name, v.value, opts.Units[v.name]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		result.Properties = result.Properties[:before]
		var appErr *apperrors.Error
		if errors.As(err, &appErr) {
			return appErr.Message
		}
		return err.Error()
	}
	return ""
}

// ImportPropertiesAsync validates the mapping up front, then runs the import
// on the task queue. The task output is the import summary.
func (s *resultImportService) ImportPropertiesAsync(ctx context.Context, actor models.Actor, resultID uint, data []byte, opts CSVImportOptions) (*models.Task, error) {
	const op = "ResultImportService.ImportPropertiesAsync"
	if s.tasks == nil {
		return nil, apperrors.External(op, errors.New("task queue is not configured"))
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	result, sub, err := s.results.load(s.results.db, actor, resultID, op, models.RoleKindCRO)
	if err != nil {
		return nil, err
	}

	return s.tasks.Enqueue(ctx, TaskKindResultImport, &sub.ID, func(ctx context.Context) (models.JSON, error) {
		summary, err := s.ImportProperties(actor, result.ID, bytes.NewReader(data), opts)
		if err != nil {
			return nil, err
		}
		logger.Info(ctx, "result import finished", "result_id", result.ID,
			"success_count", summary.SuccessCount, "error_count", summary.ErrorCount)
		return summary.JSON(), nil
	})
}

// moleculeLookup resolves the molecule column against the submission's
// molecules, by id or by name.
type moleculeLookup struct {
	byID   map[uint]bool
	byName map[string]uint
}

func newMoleculeLookup(tx *gorm.DB, sub *models.Submission) (*moleculeLookup, error) {
	var molecules []models.Molecule
	err := tx.Where("id IN (?)",
		tx.Session(&gorm.Session{NewDB: true}).Model(&models.SubmissionMolecule{}).Select("molecule_id").Where("submission_id = ?", sub.ID)).
		Clauses(clause.OrderBy{Columns: []clause.OrderByColumn{{Column: clause.Column{Name: "id"}}}}).
		Find(&molecules).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load submission molecules: %w", err)
	}
	lookup := &moleculeLookup{byID: map[uint]bool{}, byName: map[string]uint{}}
	for _, m := range molecules {
		lookup.byID[m.ID] = true
		if _, taken := lookup.byName[m.Name]; !taken {
			lookup.byName[m.Name] = m.ID
		}
	}
	return lookup, nil
}

func (l *moleculeLookup) resolve(ref string) (uint, bool) {
	if ref == "" {
		return 0, false
	}
	if id, err := strconv.ParseUint(ref, 10, 64); err == nil {
		return uint(id), l.byID[uint(id)]
	}
	id, ok := l.byName[ref]
	return id, ok
}

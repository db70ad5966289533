package services

import (
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/rxtech-lab/pharmalink/internal/apperrors"
	"gorm.io/gorm"
)

type Operator string

const (
	OpEq   Operator = "eq"
	OpNe   Operator = "ne"
	OpGt   Operator = "gt"
	OpGte  Operator = "gte"
	OpLt   Operator = "lt"
	OpLte  Operator = "lte"
	OpIn   Operator = "in"
	OpLike Operator = "like"
)

var operatorSQL = map[Operator]string{
	OpEq:   "=",
	OpNe:   "<>",
	OpGt:   ">",
	OpGte:  ">=",
	OpLt:   "<",
	OpLte:  "<=",
	OpIn:   "IN",
	OpLike: "LIKE",
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

func ParseOperator(s string) (Operator, error) {
	op := Operator(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := operatorSQL[op]; !ok {
		return "", apperrors.Validation("ParseOperator", "unknown filter operator %q", s)
	}
	return op, nil
}

// Criterion is one comparison against a whitelisted field.
type Criterion struct {
	Field string
	Op    Operator
	Value any
}

// Filter selects and pages a list query.
type Filter struct {
	Criteria []Criterion
	Skip     int
	Limit    int
	OrderBy  string
	Desc     bool
}

// Where returns a copy of f with one more criterion.
func (f Filter) Where(field string, op Operator, value any) Filter {
	f.Criteria = append(append([]Criterion(nil), f.Criteria...), Criterion{Field: field, Op: op, Value: value})
	return f
}

func (f Filter) normalized() Filter {
	if f.Limit <= 0 {
		f.Limit = DefaultPageSize
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
	if f.Skip < 0 {
		f.Skip = 0
	}
	return f
}

// FieldSet maps public filter field names to columns.
type FieldSet map[string]string

// Page is a slice of a list query.
type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Size  int   `json:"size"`
	Pages int   `json:"pages"`
}

func newPage[T any](items []T, total int64, f Filter) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items: items,
		Total: total,
		Page:  f.Skip/f.Limit + 1,
		Size:  f.Limit,
		Pages: int(math.Ceil(float64(total) / float64(f.Limit))),
	}
}

// applyCriteria is the one place filter criteria become SQL.
func applyCriteria(db *gorm.DB, criteria []Criterion, fields FieldSet) (*gorm.DB, error) {
	for _, c := range criteria {
		column, ok := fields[c.Field]
		if !ok {
			return nil, apperrors.Validation("applyCriteria", "field %q cannot be filtered", c.Field)
		}
		sqlOp, ok := operatorSQL[c.Op]
		if !ok {
			return nil, apperrors.Validation("applyCriteria", "unknown filter operator %q", c.Op)
		}

		value := c.Value
		switch c.Op {
		case OpIn:
			kind := reflect.ValueOf(value).Kind()
			if kind != reflect.Slice && kind != reflect.Array {
				return nil, apperrors.Validation("applyCriteria", "operator in on %q needs a list", c.Field)
			}
			db = db.Where(fmt.Sprintf("%s IN ?", column), value)
			continue
		case OpLike:
			s, ok := value.(string)
			if !ok {
				return nil, apperrors.Validation("applyCriteria", "operator like on %q needs a string", c.Field)
			}
			if !strings.Contains(s, "%") {
				s = "%" + s + "%"
			}
			value = s
		}
		db = db.Where(fmt.Sprintf("%s %s ?", column, sqlOp), value)
	}
	return db, nil
}

// orderClause resolves OrderBy against the whitelist, falling back to
// defaultOrder.
func orderClause(f Filter, fields FieldSet, defaultOrder string) (string, error) {
	if f.OrderBy == "" {
		return defaultOrder, nil
	}
	column, ok := fields[f.OrderBy]
	if !ok {
		return "", apperrors.Validation("orderClause", "field %q cannot be sorted", f.OrderBy)
	}
	if f.Desc {
		return column + " DESC", nil
	}
	return column + " ASC", nil
}

// Paginate runs a filtered, ordered and paged query for T. Preloads are
// applied to the item query only.
func Paginate[T any](db *gorm.DB, f Filter, fields FieldSet, defaultOrder string, preloads ...string) (Page[T], error) {
	f = f.normalized()

	query, err := applyCriteria(db.Model(new(T)), f.Criteria, fields)
	if err != nil {
		return Page[T]{}, err
	}
	order, err := orderClause(f, fields, defaultOrder)
	if err != nil {
		return Page[T]{}, err
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return Page[T]{}, fmt.Errorf("failed to count: %w", err)
	}

	itemsQuery := query.Order(order).Offset(f.Skip).Limit(f.Limit)
	for _, p := range preloads {
		itemsQuery = itemsQuery.Preload(p)
	}
	var items []T
	if err := itemsQuery.Find(&items).Error; err != nil {
		return Page[T]{}, fmt.Errorf("failed to list: %w", err)
	}
	return newPage(items, total, f), nil
}

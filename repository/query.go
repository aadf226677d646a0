package repository

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Field names a filterable attribute. Only fields registered for an entity can be queried.
type Field string

const (
	FieldUserID    Field = "user_id"
	FieldCategory  Field = "category"
	FieldCreatedAt Field = "created_at"
	FieldResult    Field = "result_kg_co2e"
)

// Operator is a comparison applied by a Clause.
type Operator string

const (
	OpEq  Operator = "eq"
	OpNeq Operator = "neq"
	OpGt  Operator = "gt"
	OpGte Operator = "gte"
	OpLt  Operator = "lt"
	OpLte Operator = "lte"
	OpIn  Operator = "in"
)

// Clause is one typed predicate: field, operator, value.
type Clause struct {
	Field Field
	Op    Operator
	Value any
}

// QueryFilter is a conjunction of clauses.
type QueryFilter struct {
	Clauses []Clause
}

// NewQueryFilter builds a filter from the given clauses.
func NewQueryFilter(clauses ...Clause) QueryFilter {
	return QueryFilter{Clauses: clauses}
}

// And returns a copy of the filter with extra clauses appended.
func (f QueryFilter) And(clauses ...Clause) QueryFilter {
	out := make([]Clause, 0, len(f.Clauses)+len(clauses))
	out = append(out, f.Clauses...)
	out = append(out, clauses...)
	return QueryFilter{Clauses: out}
}

func Eq(field Field, value any) Clause  { return Clause{Field: field, Op: OpEq, Value: value} }
func Gte(field Field, value any) Clause { return Clause{Field: field, Op: OpGte, Value: value} }
func Lte(field Field, value any) Clause { return Clause{Field: field, Op: OpLte, Value: value} }
func Lt(field Field, value any) Clause  { return Clause{Field: field, Op: OpLt, Value: value} }

func In(field Field, values ...any) Clause {
	return Clause{Field: field, Op: OpIn, Value: values}
}

// calculationColumns maps filterable fields to calculation table columns.
var calculationColumns = map[Field]string{
	FieldUserID:    "user_id",
	FieldCategory:  "category",
	FieldCreatedAt: "created_at",
	FieldResult:    "result_kg_co2e",
}

// applyClauses turns typed clauses into gorm clause expressions bound as parameters.
func applyClauses(db *gorm.DB, columns map[Field]string, filter QueryFilter) (*gorm.DB, error) {
	for _, c := range filter.Clauses {
		name, ok := columns[c.Field]
		if !ok {
			return nil, fmt.Errorf("unsupported filter field %q", c.Field)
		}
		col := clause.Column{Name: name}

		var expr clause.Expression
		switch c.Op {
		case OpEq:
			expr = clause.Eq{Column: col, Value: c.Value}
		case OpNeq:
			expr = clause.Neq{Column: col, Value: c.Value}
		case OpGt:
			expr = clause.Gt{Column: col, Value: c.Value}
		case OpGte:
			expr = clause.Gte{Column: col, Value: c.Value}
		case OpLt:
			expr = clause.Lt{Column: col, Value: c.Value}
		case OpLte:
			expr = clause.Lte{Column: col, Value: c.Value}
		case OpIn:
			values, ok := c.Value.([]any)
			if !ok {
				return nil, fmt.Errorf("operator in on %q requires a value list", c.Field)
			}
			expr = clause.IN{Column: col, Values: values}
		default:
			return nil, fmt.Errorf("unsupported filter operator %q", c.Op)
		}
		db = db.Where(expr)
	}
	return db, nil
}

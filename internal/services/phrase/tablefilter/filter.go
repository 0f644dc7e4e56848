// Package tablefilter evaluates AIP-160 filter expressions against the rows
// of a dynamic table.
package tablefilter

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// FieldType describes a supported filter field type.
type FieldType string

const (
	FieldString FieldType = "string"
	FieldInt    FieldType = "int"
	FieldFloat  FieldType = "float"
	FieldBool   FieldType = "bool"
)

// Fields defines filterable columns and their types.
type Fields map[string]FieldType

// InferFields derives column types from row values. A column holding only
// integral numbers is an int, one holding any fractional number a float, one
// holding only booleans a bool, and anything mixed a string. Columns whose
// names are not valid filter identifiers are skipped.
func InferFields(rows []map[string]any) Fields {
	fields := Fields{}
	for _, row := range rows {
		for name, raw := range row {
			if !validIdent(name) {
				continue
			}
			fields[name] = merge(fields[name], typeOf(raw))
		}
	}
	return fields
}

func typeOf(raw any) FieldType {
	switch v := normalize(raw).(type) {
	case bool:
		return FieldBool
	case int64:
		return FieldInt
	case float64:
		if v == math.Trunc(v) {
			return FieldInt
		}
		return FieldFloat
	default:
		return FieldString
	}
}

func merge(current, next FieldType) FieldType {
	switch {
	case current == "" || current == next:
		return next
	case (current == FieldInt && next == FieldFloat) || (current == FieldFloat && next == FieldInt):
		return FieldFloat
	default:
		return FieldString
	}
}

func validIdent(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	switch strings.ToUpper(name) {
	case "AND", "OR", "NOT":
		return false
	}
	return true
}

// Parse parses an AIP-160 filter expression for the provided fields.
// An empty filter parses to nil, which matches every row.
func Parse(filterStr string, fields Fields) (*expr.Expr, error) {
	if strings.TrimSpace(filterStr) == "" {
		return nil, nil
	}

	decls, err := declarations(fields)
	if err != nil {
		return nil, err
	}

	filter, err := filtering.ParseFilterString(filterStr, decls)
	if err != nil {
		return nil, fmt.Errorf("parse filter: %w", err)
	}

	return filter.CheckedExpr.Expr, nil
}

func declarations(fields Fields) (*filtering.Declarations, error) {
	decls := []filtering.DeclarationOption{
		filtering.DeclareStandardFunctions(),
		filtering.DeclareIdent("true", filtering.TypeBool),
		filtering.DeclareIdent("false", filtering.TypeBool),
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		// A column cannot shadow a boolean literal.
		if _, literal := boolLiterals[name]; literal {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		switch fields[name] {
		case FieldString:
			decls = append(decls, filtering.DeclareIdent(name, filtering.TypeString))
		case FieldInt:
			decls = append(decls, filtering.DeclareIdent(name, filtering.TypeInt))
		case FieldFloat:
			decls = append(decls, filtering.DeclareIdent(name, filtering.TypeFloat))
		case FieldBool:
			decls = append(decls, filtering.DeclareIdent(name, filtering.TypeBool))
		default:
			return nil, fmt.Errorf("unsupported field type for %s", name)
		}
	}

	return filtering.NewDeclarations(decls...)
}

// Match returns the indexes of the rows the filter selects.
func Match(filterStr string, rows []map[string]any) ([]int, error) {
	fields := InferFields(rows)
	parsed, err := Parse(filterStr, fields)
	if err != nil {
		return nil, err
	}
	test, err := compile(parsed)
	if err != nil {
		return nil, err
	}
	var out []int
	for i, row := range rows {
		ok, err := test(RowResolver(row, fields))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		if ok {
			out = append(out, i)
		}
	}
	return out, nil
}

// RowResolver resolves columns of one row, converted to the declared field
// types so comparisons line up with the checked expression.
func RowResolver(row map[string]any, fields Fields) Resolver {
	return func(name string) (any, bool) {
		raw, ok := row[name]
		if !ok || raw == nil {
			return nil, false
		}
		value := normalize(raw)
		switch fields[name] {
		case FieldString:
			return stringOf(value), true
		case FieldFloat:
			if f, ok := toFloat(value); ok {
				return f, true
			}
		}
		return value, true
	}
}

// normalize converts a cell to bool, int64, float64 or string. Numeric
// strings become numbers.
func normalize(raw any) any {
	switch v := raw.(type) {
	case bool, int64, float64, string:
		if s, ok := v.(string); ok {
			if i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
				return i
			}
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
				return f
			}
		}
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case uint:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		return int64(v)
	case float32:
		return float64(v)
	default:
		return fmt.Sprint(v)
	}
}

func stringOf(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

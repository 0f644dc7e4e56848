package tablefilter

import (
	"cmp"
	"fmt"
	"strings"

	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// Resolver returns the value of a column of the row being tested.
type Resolver func(name string) (any, bool)

// predicate tests one row. A column the row lacks never matches.
type predicate func(Resolver) (bool, error)

func always(Resolver) (bool, error) { return true, nil }

// Evaluate tests a parsed filter against one row.
func Evaluate(e *expr.Expr, resolve Resolver) (bool, error) {
	p, err := compile(e)
	if err != nil {
		return false, err
	}
	return p(resolve)
}

// orderings maps comparison functions, in both checked and raw spellings,
// to the test applied to the three-way comparison result.
var orderings = map[string]func(int) bool{
	"_==_": func(c int) bool { return c == 0 },
	"_!=_": func(c int) bool { return c != 0 },
	"_<_":  func(c int) bool { return c < 0 },
	"_<=_": func(c int) bool { return c <= 0 },
	"_>_":  func(c int) bool { return c > 0 },
	"_>=_": func(c int) bool { return c >= 0 },
}

var rawOperators = map[string]string{
	"=": "_==_", "!=": "_!=_", "<": "_<_", "<=": "_<=_", ">": "_>_", ">=": "_>=_",
	"AND": "_&&_", "FUZZY": "_&&_", "OR": "_||_", "NOT": "!_",
}

// compile turns a checked expression into a predicate once, so a table scan
// walks the tree a single time.
func compile(e *expr.Expr) (predicate, error) {
	if e == nil {
		return always, nil
	}
	switch kind := e.ExprKind.(type) {
	case *expr.Expr_IdentExpr:
		name := kind.IdentExpr.Name
		if b, ok := boolLiterals[name]; ok {
			return func(Resolver) (bool, error) { return b, nil }, nil
		}
		return func(resolve Resolver) (bool, error) {
			value, ok := resolve(name)
			if !ok {
				return false, nil
			}
			b, isBool := value.(bool)
			if !isBool {
				return false, fmt.Errorf("column %s is not a bool", name)
			}
			return b, nil
		}, nil
	case *expr.Expr_CallExpr:
		return compileCall(kind.CallExpr)
	default:
		return nil, fmt.Errorf("unsupported expression %T", kind)
	}
}

func compileCall(call *expr.Expr_Call) (predicate, error) {
	fn := call.Function
	if canonical, ok := rawOperators[fn]; ok {
		fn = canonical
	}
	switch fn {
	case "_&&_", "_||_":
		if len(call.Args) != 2 {
			return nil, fmt.Errorf("%s takes 2 arguments", call.Function)
		}
		left, err := compile(call.Args[0])
		if err != nil {
			return nil, err
		}
		right, err := compile(call.Args[1])
		if err != nil {
			return nil, err
		}
		short := fn == "_||_"
		return func(resolve Resolver) (bool, error) {
			ok, err := left(resolve)
			if err != nil || ok == short {
				return ok, err
			}
			return right(resolve)
		}, nil
	case "!_":
		if len(call.Args) != 1 {
			return nil, fmt.Errorf("%s takes 1 argument", call.Function)
		}
		inner, err := compile(call.Args[0])
		if err != nil {
			return nil, err
		}
		return func(resolve Resolver) (bool, error) {
			ok, err := inner(resolve)
			return !ok, err
		}, nil
	case ":":
		return compileColumnTest(call, func(cell, want any) (bool, error) {
			needle := strings.ToLower(stringOf(want))
			return needle == "*" || strings.Contains(strings.ToLower(stringOf(cell)), needle), nil
		})
	}
	if test, ok := orderings[fn]; ok {
		return compileColumnTest(call, func(cell, want any) (bool, error) {
			c, err := compareCells(cell, want)
			if err != nil {
				return false, err
			}
			return test(c), nil
		})
	}
	return nil, fmt.Errorf("unsupported function %s", call.Function)
}

// compileColumnTest handles "column OP constant" calls.
func compileColumnTest(call *expr.Expr_Call, test func(cell, want any) (bool, error)) (predicate, error) {
	if len(call.Args) != 2 {
		return nil, fmt.Errorf("%s takes 2 arguments", call.Function)
	}
	ident := call.Args[0].GetIdentExpr()
	if ident == nil {
		return nil, fmt.Errorf("%s: left side must be a column", call.Function)
	}
	want, err := operandValue(call.Args[1])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", call.Function, err)
	}
	name := ident.Name
	return func(resolve Resolver) (bool, error) {
		cell, ok := resolve(name)
		if !ok {
			return false, nil
		}
		return test(cell, want)
	}, nil
}

// boolLiterals are the identifiers a filter spells booleans with.
var boolLiterals = map[string]bool{"true": true, "false": false}

// operandValue reads the right side of a comparison: a constant or a boolean
// literal.
func operandValue(e *expr.Expr) (any, error) {
	if ident := e.GetIdentExpr(); ident != nil {
		if b, ok := boolLiterals[ident.Name]; ok {
			return b, nil
		}
		return nil, fmt.Errorf("right side must be a constant, got column %s", ident.Name)
	}
	constant := e.GetConstExpr()
	if constant == nil {
		return nil, fmt.Errorf("right side must be a constant")
	}
	return constantValue(constant)
}

func constantValue(c *expr.Constant) (any, error) {
	switch kind := c.ConstantKind.(type) {
	case *expr.Constant_StringValue:
		return kind.StringValue, nil
	case *expr.Constant_Int64Value:
		return kind.Int64Value, nil
	case *expr.Constant_Uint64Value:
		return int64(kind.Uint64Value), nil
	case *expr.Constant_DoubleValue:
		return kind.DoubleValue, nil
	case *expr.Constant_BoolValue:
		return kind.BoolValue, nil
	default:
		return nil, fmt.Errorf("unsupported constant %T", kind)
	}
}

// compareCells orders a normalized cell against a filter constant. Strings
// compare as text; numbers compare numerically; booleans order false first.
func compareCells(cell, want any) (int, error) {
	switch c := cell.(type) {
	case string:
		return strings.Compare(c, stringOf(want)), nil
	case int64, float64:
		l, _ := toFloat(c)
		r, ok := toFloat(want)
		if !ok {
			return 0, fmt.Errorf("cannot compare number with %T", want)
		}
		return cmp.Compare(l, r), nil
	case bool:
		r, ok := want.(bool)
		if !ok {
			return 0, fmt.Errorf("cannot compare bool with %T", want)
		}
		return cmp.Compare(boolRank(c), boolRank(r)), nil
	default:
		return 0, fmt.Errorf("unsupported cell type %T", cell)
	}
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int64:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

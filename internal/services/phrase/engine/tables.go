package engine

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"github.com/louisbranch/sheetphrase/internal/services/phrase/tablefilter"
)

// tableRow is one row of a dynamic table. Tables are maps keyed by row id
// (or slices) whose rows are maps of column values.
type tableRow struct {
	key   string
	cells map[string]any
}

// liveRows returns the rows of table that are not flagged deleted, ordered
// by numeric row id, then lexically.
func liveRows(table any) []tableRow {
	var rows []tableRow
	switch t := table.(type) {
	case map[string]any:
		for key, raw := range t {
			if cells, ok := raw.(map[string]any); ok {
				rows = append(rows, tableRow{key: key, cells: cells})
			}
		}
	case []any:
		for i, raw := range t {
			if cells, ok := raw.(map[string]any); ok {
				rows = append(rows, tableRow{key: strconv.Itoa(i), cells: cells})
			}
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		a, aErr := strconv.Atoi(rows[i].key)
		b, bErr := strconv.Atoi(rows[j].key)
		switch {
		case aErr == nil && bErr == nil:
			return a < b
		case aErr == nil:
			return true
		case bErr == nil:
			return false
		default:
			return rows[i].key < rows[j].key
		}
	})
	live := rows[:0]
	for _, row := range rows {
		if truthy(row.cells["deleted"]) {
			continue
		}
		live = append(live, row)
	}
	return live
}

func truthy(v any) bool {
	switch b := Coerce(v).(type) {
	case nil:
		return false
	case bool:
		return b
	case int:
		return b != 0
	case float64:
		return b != 0
	case string:
		return b != "" && b != "false"
	default:
		return true
	}
}

// looseEqual compares after coercion: numbers numerically, anything else by
// its displayed text.
func looseEqual(a, b any) bool {
	af, aNum := toFloat(a)
	bf, bNum := toFloat(b)
	if aNum && bNum {
		return af == bf
	}
	return FormatValue(Coerce(a)) == FormatValue(Coerce(b))
}

// strictEqual compares without coercing strings: both sides must be text,
// booleans or numbers alike.
func strictEqual(a, b any) bool {
	if isString(a) != isString(b) || isBool(a) != isBool(b) {
		return false
	}
	return looseEqual(a, b)
}

func isString(v any) bool {
	_, ok := v.(string)
	return ok
}

func isBool(v any) bool {
	_, ok := v.(bool)
	return ok
}

// order compares numerically when both sides are numbers, lexically otherwise.
func order(a, b any) int {
	af, aNum := toFloat(a)
	bf, bNum := toFloat(b)
	if aNum && bNum {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
	as, bs := FormatValue(Coerce(a)), FormatValue(Coerce(b))
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	}
	return 0
}

type matcher func(cell, want any) (bool, error)

func comparator(op string) (matcher, error) {
	switch op {
	case "==", "=":
		return func(c, w any) (bool, error) { return looseEqual(c, w), nil }, nil
	case "===":
		return func(c, w any) (bool, error) { return strictEqual(c, w), nil }, nil
	case "!=":
		return func(c, w any) (bool, error) { return !looseEqual(c, w), nil }, nil
	case "!==":
		return func(c, w any) (bool, error) { return !strictEqual(c, w), nil }, nil
	case ">":
		return func(c, w any) (bool, error) { return c != nil && order(c, w) > 0, nil }, nil
	case ">=":
		return func(c, w any) (bool, error) { return c != nil && order(c, w) >= 0, nil }, nil
	case "<":
		return func(c, w any) (bool, error) { return c != nil && order(c, w) < 0, nil }, nil
	case "<=":
		return func(c, w any) (bool, error) { return c != nil && order(c, w) <= 0, nil }, nil
	case "~":
		return func(c, w any) (bool, error) {
			re, err := regexp.Compile(FormatValue(w))
			if err != nil {
				return false, fmt.Errorf("pattern %q: %w", FormatValue(w), err)
			}
			return c != nil && re.MatchString(FormatValue(c)), nil
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown comparison operator %q", errArgs, op)
	}
}

// filterTable(table, target, filter) collects the target column of every
// live row selected by an AIP-160 filter expression.
func (ev *evaluation) filterTable(params ...any) (any, error) {
	if len(params) < 2 {
		return nil, fmt.Errorf("filterTable: %w: want table, target and filter", errArgs)
	}
	key, target := FormatValue(params[0]), FormatValue(params[1])
	filter := FormatValue(optionalArg(params, 2))

	table, ok := ev.s.lookup(key)
	if !ok {
		return nil, unresolvable(key, ev.s)
	}
	rows := liveRows(table)
	cells := make([]map[string]any, len(rows))
	for i, row := range rows {
		cells[i] = row.cells
	}
	matched, err := tablefilter.Match(filter, cells)
	if err != nil {
		return nil, fmt.Errorf("filterTable %s: %w", key, err)
	}
	out := make([]any, 0, len(matched))
	for _, i := range matched {
		value, present := rows[i].cells[target]
		if !present {
			return nil, unresolvable(key+"."+rows[i].key+"."+target, ev.s)
		}
		out = append(out, Coerce(value))
	}
	return out, nil
}

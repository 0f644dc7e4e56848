package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
)

var errArgs = errors.New("invalid arguments")

func (ev *evaluation) functions() []expr.Option {
	return []expr.Option{
		expr.Function(scopeFunc, ev.scopeRef),
		expr.Function("ref", ev.ref),
		expr.Function("sameRow", ev.sameRow),
		expr.Function("sameRowRef", ev.sameRowRef),
		expr.Function("find", ev.find),
		expr.Function("lookup", ev.lookup),
		expr.Function("filterTable", ev.filterTable),
		expr.Function("fetchFromEntity", ev.fetchFromEntity),
		expr.Function("setPropertyInEntity", ev.setPropertyInEntity),
		expr.Function("switchCase", switchCase),
		expr.Function("replace", replaceOnce),
		expr.Function("replaceAll", replaceAll),
		expr.Function("first", first),
		expr.Function("notify", ev.notify),
	}
}

func (ev *evaluation) scopeRef(params ...any) (any, error) {
	path, err := stringArg("reference", params, 0)
	if err != nil {
		return nil, err
	}
	return ev.s.resolve(path)
}

// ref(path[, fallback]) resolves a reference built at runtime. The fallback
// overrides the computation default.
func (ev *evaluation) ref(params ...any) (any, error) {
	path, err := stringArg("ref", params, 0)
	if err != nil {
		return nil, err
	}
	return ev.s.resolve(path, params[1:]...)
}

// rowPath joins column onto the current dynamic-table row reference.
func (ev *evaluation) rowPath(column string) string {
	if ev.ec.opts.Reference == "" {
		return column
	}
	return ev.ec.opts.Reference + "." + column
}

// sameRow(column[, fallback]) resolves column in the current row.
func (ev *evaluation) sameRow(params ...any) (any, error) {
	column, err := stringArg("sameRow", params, 0)
	if err != nil {
		return nil, err
	}
	return ev.s.resolve(ev.rowPath(column), params[1:]...)
}

// sameRowRef(column) returns the path of column in the current row without
// resolving it.
func (ev *evaluation) sameRowRef(params ...any) (any, error) {
	column, err := stringArg("sameRowRef", params, 0)
	if err != nil {
		return nil, err
	}
	return ev.rowPath(column), nil
}

// find(table, target, filterColumn, filterValue) returns the path of target
// in the first live row whose filterColumn equals filterValue.
func (ev *evaluation) find(params ...any) (any, error) {
	if len(params) < 4 {
		return nil, fmt.Errorf("find: %w: want table, target, filter column and value", errArgs)
	}
	key, target, column := FormatValue(params[0]), FormatValue(params[1]), FormatValue(params[2])
	table, ok := ev.s.lookup(key)
	if !ok {
		return nil, unresolvable(key, ev.s)
	}
	for _, row := range liveRows(table) {
		if looseEqual(row.cells[column], params[3]) {
			return key + "." + row.key + "." + target, nil
		}
	}
	return nil, nil
}

// lookup(table, target[, filterColumn, filterValue[, operator]]) collects the
// target column of every live row matching the filter.
func (ev *evaluation) lookup(params ...any) (any, error) {
	if len(params) < 2 {
		return nil, fmt.Errorf("lookup: %w: want at least table and target", errArgs)
	}
	key, target := FormatValue(params[0]), FormatValue(params[1])
	var (
		column string
		want   any
		op     = "=="
	)
	filtered := len(params) >= 4 && params[2] != nil
	if filtered {
		column, want = FormatValue(params[2]), params[3]
	}
	if len(params) >= 5 && params[4] != nil {
		op = FormatValue(params[4])
	}
	match, err := comparator(op)
	if err != nil {
		return nil, fmt.Errorf("lookup: %w", err)
	}

	table, _ := ev.s.lookup(key)
	out := []any{}
	for _, row := range liveRows(table) {
		if filtered {
			ok, err := match(row.cells[column], want)
			if err != nil {
				return nil, fmt.Errorf("lookup: %w", err)
			}
			if !ok {
				continue
			}
		}
		value, present := row.cells[target]
		if !present {
			return nil, unresolvable(key+"."+row.key+"."+target, ev.s)
		}
		out = append(out, Coerce(value))
	}
	return out, nil
}

func (ev *evaluation) entity(token string) (Entity, error) {
	switch token {
	case "self":
		if ev.ec.opts.Trigger != nil {
			return ev.ec.opts.Trigger, nil
		}
		return nil, fmt.Errorf("%w: self", ErrEntityNotFound)
	case "item":
		if ev.ec.opts.Linked != nil {
			return ev.ec.opts.Linked, nil
		}
		return nil, fmt.Errorf("%w: item", ErrEntityNotFound)
	}
	if ev.ec.rt.Entities == nil {
		return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, token)
	}
	return ev.ec.rt.Entities.ResolveEntity(ev.ec.ctx, token, ev.ec.opts.Trigger)
}

// fetchFromEntity(token, formula[, fallback]) computes formula against the
// properties of another entity.
func (ev *evaluation) fetchFromEntity(params ...any) (any, error) {
	token, err := stringArg("fetchFromEntity", params, 0)
	if err != nil {
		return nil, err
	}
	formula, err := stringArg("fetchFromEntity", params, 1)
	if err != nil {
		return nil, err
	}
	fallback := optionalArg(params, 2)

	target, err := ev.entity(token)
	if errors.Is(err, ErrEntityNotFound) {
		ev.ec.rt.logf("fetchFromEntity: %v", err)
		ev.ec.rt.notify(ev.ec.ctx, SeverityWarn, ev.ec.rt.printer().Sprintf(msgEntityMissing, token))
		return Coerce(fallback), nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetchFromEntity %s: %w", token, err)
	}

	child, err := ev.ec.nested(nil)
	if err != nil {
		return nil, err
	}
	child.static = true
	child.props = target.Props()
	child.opts.Trigger = target
	child.opts.Linked = nil
	child.opts.Reference = ""
	child.opts.AvailableKeys = nil
	remote := NewFormula(formula)
	if err := remote.compute(child); err != nil {
		return nil, err
	}
	if remote.Result() == nil {
		return Coerce(fallback), nil
	}
	return Coerce(remote.Result()), nil
}

// setPropertyInEntity(token, property, formula[, fallback]) computes formula
// in the current scope and writes the coerced value into property of the
// resolved entity. It has an external side effect: the write goes through
// Entity.Update and is not visible to this computation.
func (ev *evaluation) setPropertyInEntity(params ...any) (any, error) {
	if ev.ec.static {
		return nil, ErrRequiresInput
	}
	token, err := stringArg("setPropertyInEntity", params, 0)
	if err != nil {
		return nil, err
	}
	property, err := stringArg("setPropertyInEntity", params, 1)
	if err != nil {
		return nil, err
	}
	formula := FormatValue(optionalArg(params, 2))
	fallback := optionalArg(params, 3)

	target, err := ev.entity(token)
	if err != nil {
		return nil, fmt.Errorf("setPropertyInEntity %s: %w", token, err)
	}

	child, err := ev.ec.nested(ev.s.locals)
	if err != nil {
		return nil, err
	}
	computed := NewFormula(formula)
	if err := computed.compute(child); err != nil {
		return nil, err
	}
	value := Coerce(computed.Result())
	if value == nil || value == ErrorSentinel {
		value = Coerce(fallback)
	}
	if err := target.Update(ev.ec.ctx, property, value); err != nil {
		return nil, fmt.Errorf("update %s.%s: %w", target.Name(), property, err)
	}
	return value, nil
}

// switchCase(value, key1, value1, ..., [fallback]) returns the value paired
// with the first key equal to value.
func switchCase(params ...any) (any, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("switchCase: %w: missing value", errArgs)
	}
	subject, rest := params[0], params[1:]
	for i := 0; i+1 < len(rest); i += 2 {
		if looseEqual(subject, rest[i]) {
			return Coerce(rest[i+1]), nil
		}
	}
	if len(rest)%2 == 1 {
		return Coerce(rest[len(rest)-1]), nil
	}
	return nil, nil
}

func replaceOnce(params ...any) (any, error) {
	if len(params) != 3 {
		return nil, fmt.Errorf("replace: %w: want text, old and new", errArgs)
	}
	return strings.Replace(FormatValue(params[0]), FormatValue(params[1]), FormatValue(params[2]), 1), nil
}

func replaceAll(params ...any) (any, error) {
	if len(params) != 3 {
		return nil, fmt.Errorf("replaceAll: %w: want text, old and new", errArgs)
	}
	return strings.ReplaceAll(FormatValue(params[0]), FormatValue(params[1]), FormatValue(params[2])), nil
}

// first(list[, fallback]) returns the first element of list.
func first(params ...any) (any, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("first: %w: missing list", errArgs)
	}
	fallback := optionalArg(params, 1)
	switch list := params[0].(type) {
	case []any:
		if len(list) > 0 && list[0] != nil {
			return Coerce(list[0]), nil
		}
	case nil:
	default:
		return Coerce(list), nil
	}
	return Coerce(fallback), nil
}

// notify(severity, message) sends a notification and yields an empty string.
func (ev *evaluation) notify(params ...any) (any, error) {
	if len(params) != 2 {
		return nil, fmt.Errorf("notify: %w: want severity and message", errArgs)
	}
	severity, err := ParseSeverity(FormatValue(params[0]))
	if err != nil {
		ev.ec.rt.logf("%s", ev.ec.rt.printer().Sprintf(msgUnknownSeverity, FormatValue(params[0])))
		return nil, fmt.Errorf("notify %q: %w", FormatValue(params[0]), err)
	}
	ev.ec.rt.notify(ev.ec.ctx, severity, FormatValue(params[1]))
	return "", nil
}

func stringArg(fn string, params []any, i int) (string, error) {
	if i >= len(params) || params[i] == nil {
		return "", fmt.Errorf("%s: %w: missing argument %d", fn, errArgs, i+1)
	}
	return FormatValue(params[i]), nil
}

func optionalArg(params []any, i int) any {
	if i < len(params) {
		return params[i]
	}
	return nil
}

package engine

import (
	"maps"
	"sort"
	"strconv"
	"strings"
)

// scope is the flattened view one formula evaluates against: text literal
// placeholders, then local variables, then props. Resolved references are
// cached for the duration of the formula.
type scope struct {
	props   map[string]any
	locals  map[string]any
	texts   map[string]string
	cache   map[string]any
	policy  CoercionPolicy
	formula string
}

func newScope(props, locals map[string]any, policy CoercionPolicy) *scope {
	if props == nil {
		props = map[string]any{}
	}
	return &scope{
		props:  props,
		locals: copyMap(locals),
		texts:  map[string]string{},
		cache:  map[string]any{},
		policy: policy,
	}
}

func (s *scope) lookup(path string) (any, bool) {
	if v, ok := s.texts[path]; ok {
		return v, true
	}
	if v, ok := lookupPath(s.locals, path); ok {
		return v, true
	}
	return lookupPath(s.props, path)
}

// resolve looks path up and applies the coercion policy. Text placeholders
// are literals and skip coercion.
func (s *scope) resolve(path string, fallback ...any) (any, error) {
	if v, ok := s.texts[path]; ok {
		return v, nil
	}
	if len(fallback) == 0 {
		if v, ok := s.cache[path]; ok {
			return v, nil
		}
	}
	value, present := s.lookup(path)
	out, err := s.policy.Apply(path, value, present, fallback...)
	if err != nil {
		if u, ok := err.(*UnresolvableError); ok {
			u.Formula = s.formula
			u.Scope = s.snapshot()
		}
		return nil, err
	}
	if len(fallback) == 0 {
		s.cache[path] = out
	}
	return out, nil
}

func (s *scope) setLocal(name string, value any) {
	s.locals[name] = value
	delete(s.cache, name)
}

func (s *scope) require(name string) {
	if s.policy.MustResolve == nil {
		s.policy.MustResolve = map[string]struct{}{}
	}
	s.policy.MustResolve[name] = struct{}{}
}

// snapshot flattens the scope for diagnostics.
func (s *scope) snapshot() map[string]any {
	out := make(map[string]any, len(s.props)+len(s.locals)+len(s.texts))
	maps.Copy(out, s.props)
	maps.Copy(out, s.locals)
	for k, v := range s.texts {
		out[k] = v
	}
	return out
}

// lookupPath walks a dotted path through nested maps and slices. A key that
// itself contains dots wins over descending.
func lookupPath(root any, path string) (any, bool) {
	if path == "" {
		return root, true
	}
	switch node := root.(type) {
	case map[string]any:
		if v, ok := node[path]; ok {
			return v, true
		}
		head, rest, found := strings.Cut(path, ".")
		if !found {
			return nil, false
		}
		child, ok := node[head]
		if !ok {
			return nil, false
		}
		return lookupPath(child, rest)
	case map[string]string:
		v, ok := node[path]
		return v, ok
	case []any:
		head, rest, _ := strings.Cut(path, ".")
		idx, err := strconv.Atoi(head)
		if err != nil || idx < 0 || idx >= len(node) {
			return nil, false
		}
		return lookupPath(node[idx], rest)
	default:
		return nil, false
	}
}

// setPath writes value at a dotted path, creating intermediate maps.
func setPath(root map[string]any, path string, value any) {
	head, rest, found := strings.Cut(path, ".")
	if !found {
		root[path] = value
		return
	}
	child, ok := root[head].(map[string]any)
	if !ok {
		child = map[string]any{}
		root[head] = child
	}
	setPath(child, rest, value)
}

// SetPath is exported for entity implementations that store property bags.
func SetPath(root map[string]any, path string, value any) {
	setPath(root, path, value)
}

func copyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	maps.Copy(out, in)
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package engine

import (
	"context"
	"strings"
)

// Convergence is the outcome of a fixed-point resolution of named formulas.
type Convergence struct {
	// Resolved maps each resolved key to its value.
	Resolved map[string]any
	// Stuck lists the keys still unresolvable when a pass made no progress,
	// usually a circular dependency.
	Stuck []string
	// Failed maps keys whose computation failed for a reason other than an
	// unresolvable reference.
	Failed map[string]error
	// Passes counts the passes run.
	Passes int
}

// Converge repeatedly computes every unresolved formula against base plus
// the values resolved so far, until all resolved or a pass resolves nothing.
// Keys are visited in sorted order and a key resolved in a pass is visible to
// the keys after it. Unresolved keys are must-resolve references, so a
// formula reading one waits for a later pass instead of reading nothing.
func Converge(ctx context.Context, rt *Runtime, base map[string]any, formulas map[string]string, opts Options) (Convergence, error) {
	ctx, span := tracer.Start(ctx, "phrase.converge")
	defer span.End()

	props := CloneProps(base)
	for key := range formulas {
		deletePath(props, key)
	}

	out := Convergence{Resolved: map[string]any{}, Failed: map[string]error{}}
	pending := sortedKeys(formulas)
	for len(pending) > 0 {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		out.Passes++
		var remaining []string
		for _, key := range pending {
			passOpts := opts
			passOpts.AvailableKeys = append(append([]string(nil), opts.AvailableKeys...), pending...)
			phrase := NewPhrase(formulas[key])
			err := phrase.ComputeStatic(ctx, rt, props, passOpts)
			switch {
			case err == nil:
				value := phrase.Value()
				out.Resolved[key] = value
				setPath(props, key, value)
			case IsUnresolvable(err):
				remaining = append(remaining, key)
			case ctx.Err() != nil:
				return out, ctx.Err()
			default:
				out.Failed[key] = err
			}
		}
		if len(remaining) == len(pending) {
			out.Stuck = remaining
			break
		}
		pending = remaining
	}

	if len(out.Stuck) > 0 {
		list := strings.Join(out.Stuck, ", ")
		rt.logf("convergence stuck after %d passes: %s", out.Passes, list)
		rt.notify(ctx, SeverityWarn, rt.printer().Sprintf(msgStuckProperties, list))
	}
	return out, nil
}

// CloneProps deep-copies a property bag: nested maps and lists are copied so
// writes through SetPath on the copy never reach the original.
func CloneProps(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneProps(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

func deletePath(root map[string]any, path string) {
	if _, ok := root[path]; ok {
		delete(root, path)
		return
	}
	head, rest, found := strings.Cut(path, ".")
	if !found {
		return
	}
	if child, ok := root[head].(map[string]any); ok {
		deletePath(child, rest)
	}
}


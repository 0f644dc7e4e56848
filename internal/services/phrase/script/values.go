package script

import (
	"maps"
	"math"
	"slices"

	"github.com/Shopify/go-lua"
)

// maxDepth bounds nested tables in both directions. Lua tables may refer to
// themselves, so results deeper than this come back as nil.
const maxDepth = 32

// stackSlots is the stack room one table level needs while it is walked:
// the table, a key and a value.
const stackSlots = 3

// pushValue pushes an entity property onto the stack. Maps become tables
// with string keys, slices become sequences and unknown types become nil.
func pushValue(state *lua.State, value any) {
	push(state, value, 0)
}

func push(state *lua.State, value any, depth int) {
	if depth > maxDepth || !state.CheckStack(stackSlots) {
		state.PushNil()
		return
	}
	switch v := value.(type) {
	case bool:
		state.PushBoolean(v)
	case string:
		state.PushString(v)
	case int:
		state.PushInteger(v)
	case int64:
		state.PushNumber(float64(v))
	case float64:
		state.PushNumber(v)
	case []string:
		state.CreateTable(len(v), 0)
		for i, s := range v {
			state.PushString(s)
			state.RawSetInt(-2, i+1)
		}
	case []any:
		state.CreateTable(len(v), 0)
		for i, item := range v {
			push(state, item, depth+1)
			state.RawSetInt(-2, i+1)
		}
	case map[string]any:
		state.CreateTable(0, len(v))
		for _, key := range slices.Sorted(maps.Keys(v)) {
			push(state, v[key], depth+1)
			state.SetField(-2, key)
		}
	default:
		state.PushNil()
	}
}

// luaToGo converts the value at index into a phrase value. Integral numbers
// come back as int so they format without a decimal point.
func luaToGo(state *lua.State, index int) any {
	return pull(state, state.AbsIndex(index), 0)
}

func pull(state *lua.State, index, depth int) any {
	switch state.TypeOf(index) {
	case lua.TypeBoolean:
		return state.ToBoolean(index)
	case lua.TypeString:
		s, _ := state.ToString(index)
		return s
	case lua.TypeNumber:
		n, _ := state.ToNumber(index)
		if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
			return int(n)
		}
		return n
	case lua.TypeTable:
		if depth >= maxDepth || !state.CheckStack(stackSlots) {
			return nil
		}
		if n, ok := sequenceLen(state, index); ok {
			out := make([]any, 0, n)
			for i := 1; i <= n; i++ {
				state.RawGetInt(index, i)
				out = append(out, pull(state, state.AbsIndex(-1), depth+1))
				state.Pop(1)
			}
			return out
		}
		out := map[string]any{}
		state.PushNil()
		for state.Next(index) {
			// Only string keys survive; numeric keys of a sparse table drop.
			if state.TypeOf(-2) == lua.TypeString {
				key, _ := state.ToString(-2)
				out[key] = pull(state, state.AbsIndex(-1), depth+1)
			}
			state.Pop(1)
		}
		return out
	default:
		return nil
	}
}

// sequenceLen reports whether the table at index has exactly the keys 1..n
// for some n > 0.
func sequenceLen(state *lua.State, index int) (int, bool) {
	count, highest := 0, 0
	state.PushNil()
	for state.Next(index) {
		key, ok := state.ToNumber(-2)
		if state.TypeOf(-2) != lua.TypeNumber || !ok || key < 1 || key != math.Trunc(key) {
			state.Pop(2)
			return 0, false
		}
		count++
		highest = max(highest, int(key))
		state.Pop(1)
	}
	return count, count > 0 && count == highest
}

// Package script runs %{...}% phrase blocks in a sandboxed Lua state.
//
// Each run gets a fresh state with only the base (minus file and chunk
// loading), string, math and table libraries, plus two globals: self, the
// properties of the triggering entity, and item, the properties of the linked
// entity. Scripts are author-supplied code; servers enable them explicitly.
package script

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Shopify/go-lua"
	"github.com/louisbranch/sheetphrase/internal/services/phrase/engine"
)

const (
	// DefaultInstructionBudget bounds the Lua instructions one script may run.
	DefaultInstructionBudget = 1_000_000
	hookInterval             = 1000
)

// ErrBudgetExceeded indicates a script ran past its instruction budget.
var ErrBudgetExceeded = errors.New("script exceeded its instruction budget")

// ErrScriptPanicked indicates the interpreter failed outside a protected call.
var ErrScriptPanicked = errors.New("script interpreter failed")

// removedGlobals are base functions that reach outside the sandbox.
var removedGlobals = []string{"collectgarbage", "dofile", "load", "loadfile", "print"}

// Runner implements engine.ScriptRunner.
type Runner struct {
	// Budget is the instruction budget per run; zero means the default.
	Budget int
}

// New creates a runner with the default budget.
func New() *Runner {
	return &Runner{Budget: DefaultInstructionBudget}
}

// RunScript evaluates code and returns its value. The code may be a single
// expression ("self.level * 2") or a chunk that returns a value.
func (r *Runner) RunScript(ctx context.Context, code string, trigger, linked engine.Entity) (result any, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer func() {
		if rec := recover(); rec != nil {
			result, err = nil, fmt.Errorf("%w: %v", ErrScriptPanicked, rec)
		}
	}()
	state := newSandbox()
	bindEntity(state, "self", trigger)
	bindEntity(state, "item", linked)

	budget := r.Budget
	if budget <= 0 {
		budget = DefaultInstructionBudget
	}
	var (
		spent   int
		stopped error
	)
	lua.SetDebugHook(state, func(l *lua.State, _ lua.Debug) {
		spent += hookInterval
		if err := ctx.Err(); err != nil {
			stopped = err
			lua.Errorf(l, "%s", err.Error())
		}
		if spent > budget {
			stopped = ErrBudgetExceeded
			lua.Errorf(l, "%s", ErrBudgetExceeded.Error())
		}
	}, lua.MaskCount, hookInterval)

	if err := load(state, code); err != nil {
		return nil, fmt.Errorf("load script: %w", err)
	}
	if err := state.ProtectedCall(0, 1, 0); err != nil {
		if stopped != nil {
			return nil, stopped
		}
		return nil, fmt.Errorf("run script: %w", err)
	}
	return luaToGo(state, -1), nil
}

func newSandbox() *lua.State {
	state := lua.NewState()
	libs := []lua.RegistryFunction{
		{Name: "_G", Function: lua.BaseOpen},
		{Name: "string", Function: lua.StringOpen},
		{Name: "math", Function: lua.MathOpen},
		{Name: "table", Function: lua.TableOpen},
	}
	for _, lib := range libs {
		lua.Require(state, lib.Name, lib.Function, true)
		state.Pop(1)
	}
	for _, name := range removedGlobals {
		state.PushNil()
		state.SetGlobal(name)
	}
	return state
}

// load compiles code as an expression first, then as a chunk.
func load(state *lua.State, code string) error {
	code = strings.TrimSpace(code)
	if err := lua.LoadString(state, "return "+code); err == nil {
		return nil
	}
	state.SetTop(0)
	return lua.LoadString(state, code)
}

func bindEntity(state *lua.State, name string, entity engine.Entity) {
	if entity == nil {
		state.PushNil()
	} else {
		pushValue(state, entity.Props())
	}
	state.SetGlobal(name)
}

package engine

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/conf"
	"github.com/expr-lang/expr/parser"
)

// scopeFunc is the hidden function free references are rewritten to.
const scopeFunc = "__scope"

var assignment = regexp.MustCompile(`^\s*([A-Za-z_$][\w$]*)\s*:=`)

// splitAssignment strips a leading name:= prefix.
func splitAssignment(text string) (name, body string) {
	m := assignment.FindStringSubmatchIndex(text)
	if m == nil {
		return "", text
	}
	return text[m[2]:m[3]], text[m[1]:]
}

// evaluation is one run of the expression evaluator over a formula body.
type evaluation struct {
	ec      *evalContext
	f       *Formula
	s       *scope
	options []expr.Option
	cfg     *conf.Config
	patcher *scopePatcher
}

func (ec *evalContext) evaluate(f *Formula, s *scope, text string) (any, error) {
	text, s.texts = IsolateLiterals(text, s.texts)
	name, body := splitAssignment(text)
	body = strings.TrimSpace(body)

	var result any = ""
	faulted := false
	ev := ec.newEvaluation(f, s)
	if body != "" {
		out, err := ev.run(body)
		if err != nil {
			if perr := ec.fault(f, err); perr != nil {
				return nil, perr
			}
			out = ErrorSentinel
			faulted = true
		}
		result = normalizeResult(out)
	}
	if name != "" {
		f.localVars[name] = result
	}
	if ec.opts.Explain && f.explanation && !faulted && body != "" {
		f.tokens = ev.explain(body, result)
	}
	return result, nil
}

func (ec *evalContext) newEvaluation(f *Formula, s *scope) *evaluation {
	ev := &evaluation{ec: ec, f: f, s: s}
	ev.options = append([]expr.Option{expr.AllowUndefinedVariables()}, ev.functions()...)
	ev.cfg = conf.CreateNew()
	for _, opt := range ev.options {
		opt(ev.cfg)
	}
	ev.patcher = &scopePatcher{reserved: map[string]bool{"$env": true}}
	for name := range ev.cfg.Functions {
		ev.patcher.reserved[name] = true
	}
	return ev
}

// run compiles and runs one expression. Declared let names are left to the
// evaluator; every other free reference reads the scope.
func (ev *evaluation) run(input string) (any, error) {
	tree, err := parser.ParseWithConfig(input, ev.cfg)
	if err != nil {
		return nil, err
	}
	patcher := ev.patcher.with(declaredNames(tree.Node))
	program, err := expr.Compile(input, append(ev.options, expr.Patch(patcher))...)
	if err != nil {
		return nil, err
	}
	return expr.Run(program, map[string]any{})
}

func normalizeResult(v any) any {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int32:
		return int(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}

// scopePatcher rewrites free identifiers and the member chains rooted at
// them into __scope("a.b.c") calls.
type scopePatcher struct {
	reserved map[string]bool
}

func (p *scopePatcher) with(names []string) *scopePatcher {
	if len(names) == 0 {
		return p
	}
	reserved := make(map[string]bool, len(p.reserved)+len(names))
	for k := range p.reserved {
		reserved[k] = true
	}
	for _, name := range names {
		reserved[name] = true
	}
	return &scopePatcher{reserved: reserved}
}

func (p *scopePatcher) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.IdentifierNode:
		if p.reserved[n.Value] {
			return
		}
		ast.Patch(node, scopeCall(n.Value))
	case *ast.MemberNode:
		if n.Method {
			return
		}
		base, ok := scopeCallPath(n.Node)
		if !ok {
			return
		}
		prop, ok := propertyName(n.Property)
		if !ok {
			return
		}
		ast.Patch(node, scopeCall(base+"."+prop))
	}
}

// referencePath reports the dotted path an unpatched node reads from the
// scope, if it is a plain reference.
func (p *scopePatcher) referencePath(node ast.Node) (string, bool) {
	switch n := node.(type) {
	case *ast.IdentifierNode:
		if p.reserved[n.Value] {
			return "", false
		}
		return n.Value, true
	case *ast.MemberNode:
		if n.Method {
			return "", false
		}
		base, ok := p.referencePath(n.Node)
		if !ok {
			return "", false
		}
		prop, ok := propertyName(n.Property)
		if !ok {
			return "", false
		}
		return base + "." + prop, true
	case *ast.ChainNode:
		return p.referencePath(n.Node)
	}
	return "", false
}

func scopeCall(path string) *ast.CallNode {
	return &ast.CallNode{
		Callee:    &ast.IdentifierNode{Value: scopeFunc},
		Arguments: []ast.Node{&ast.StringNode{Value: path}},
	}
}

func scopeCallPath(node ast.Node) (string, bool) {
	call, ok := node.(*ast.CallNode)
	if !ok || len(call.Arguments) != 1 {
		return "", false
	}
	callee, ok := call.Callee.(*ast.IdentifierNode)
	if !ok || callee.Value != scopeFunc {
		return "", false
	}
	arg, ok := call.Arguments[0].(*ast.StringNode)
	if !ok {
		return "", false
	}
	return arg.Value, true
}

func propertyName(node ast.Node) (string, bool) {
	switch prop := node.(type) {
	case *ast.StringNode:
		return prop.Value, true
	case *ast.IntegerNode:
		return strconv.Itoa(prop.Value), true
	}
	return "", false
}

// declaredNames lists the let-bound names of an expression.
func declaredNames(root ast.Node) []string {
	var c declCollector
	ast.Walk(&root, &c)
	return c.names
}

type declCollector struct {
	names []string
}

func (c *declCollector) Visit(node *ast.Node) {
	if decl, ok := (*node).(*ast.VariableDeclaratorNode); ok {
		c.names = append(c.names, decl.Name)
	}
}

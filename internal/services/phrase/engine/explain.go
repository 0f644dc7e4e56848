package engine

import (
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
)

// Token is one node of an explanation tree: what was written, the reference
// or function it names, the value it evaluated to and the sub-evaluations
// that fed it.
type Token struct {
	Display  string  `json:"display"`
	Handle   string  `json:"handle,omitempty"`
	Value    any     `json:"value"`
	Children []Token `json:"children,omitempty"`
}

// explainable lists the functions whose calls appear in explanation trees.
var explainable = map[string]bool{
	"sameRow":     true,
	"ref":         true,
	"find":        true,
	"lookup":      true,
	"filterTable": true,
}

// explain builds the explanation tree of body, whose value is result.
func (ev *evaluation) explain(body string, result any) []Token {
	tree, err := parser.ParseWithConfig(body, ev.cfg)
	if err != nil {
		return nil
	}
	patcher := ev.patcher.with(declaredNames(tree.Node))
	root := Token{Display: body, Value: result, Children: ev.collect(tree.Node, patcher)}
	return []Token{root}
}

// collect returns the explainable tokens under node. Nodes that are not
// explainable pass their children through.
func (ev *evaluation) collect(node ast.Node, p *scopePatcher) []Token {
	if node == nil {
		return nil
	}
	if tok, ok := ev.explainNode(node, p); ok {
		return []Token{tok}
	}
	var out []Token
	for _, child := range childNodes(node) {
		out = appendUnique(out, ev.collect(child, p)...)
	}
	return out
}

func (ev *evaluation) explainNode(node ast.Node, p *scopePatcher) (Token, bool) {
	if path, ok := p.referencePath(node); ok {
		if _, literal := ev.s.texts[path]; literal {
			return Token{}, false
		}
		value, err := ev.s.resolve(path)
		if err != nil {
			value = nil
		}
		return Token{Display: node.String(), Handle: path, Value: value}, true
	}
	call, ok := node.(*ast.CallNode)
	if !ok {
		return Token{}, false
	}
	callee, ok := call.Callee.(*ast.IdentifierNode)
	if !ok || !explainable[callee.Value] {
		return Token{}, false
	}
	display := node.String()
	value, err := ev.run(display)
	if err != nil {
		value = ErrorSentinel
	}
	var children []Token
	for _, arg := range call.Arguments {
		children = appendUnique(children, ev.collect(arg, p)...)
	}
	return Token{Display: display, Handle: callee.Value, Value: normalizeResult(value), Children: children}, true
}

func appendUnique(tokens []Token, more ...Token) []Token {
	for _, tok := range more {
		dup := false
		for _, existing := range tokens {
			if existing.Display == tok.Display {
				dup = true
				break
			}
		}
		if !dup {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// childNodes lists the direct sub-expressions of node in source order.
func childNodes(node ast.Node) []ast.Node {
	switch n := node.(type) {
	case *ast.UnaryNode:
		return []ast.Node{n.Node}
	case *ast.BinaryNode:
		return []ast.Node{n.Left, n.Right}
	case *ast.ChainNode:
		return []ast.Node{n.Node}
	case *ast.MemberNode:
		return []ast.Node{n.Node, n.Property}
	case *ast.SliceNode:
		return []ast.Node{n.Node, n.From, n.To}
	case *ast.CallNode:
		return append([]ast.Node{n.Callee}, n.Arguments...)
	case *ast.BuiltinNode:
		return n.Arguments
	case *ast.PredicateNode:
		return []ast.Node{n.Node}
	case *ast.VariableDeclaratorNode:
		return []ast.Node{n.Value, n.Expr}
	case *ast.SequenceNode:
		return n.Nodes
	case *ast.ConditionalNode:
		return []ast.Node{n.Cond, n.Exp1, n.Exp2}
	case *ast.ArrayNode:
		return n.Nodes
	case *ast.MapNode:
		return n.Pairs
	case *ast.PairNode:
		return []ast.Node{n.Key, n.Value}
	}
	return nil
}

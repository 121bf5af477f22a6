package php

import (
	"github.com/VKCOM/php-parser/pkg/ast"
	"github.com/VKCOM/php-parser/pkg/visitor"
	"github.com/VKCOM/php-parser/pkg/visitor/traverser"
)

// nodeCollector gathers call, construction and return nodes in source order
type nodeCollector struct {
	visitor.Null
	calls   []ast.Vertex
	returns []*ast.StmtReturn
}

func (c *nodeCollector) ExprStaticCall(n *ast.ExprStaticCall) { c.calls = append(c.calls, n) }

func (c *nodeCollector) ExprMethodCall(n *ast.ExprMethodCall) { c.calls = append(c.calls, n) }

func (c *nodeCollector) ExprNullsafeMethodCall(n *ast.ExprNullsafeMethodCall) {
	c.calls = append(c.calls, n)
}

func (c *nodeCollector) ExprFunctionCall(n *ast.ExprFunctionCall) { c.calls = append(c.calls, n) }

func (c *nodeCollector) ExprNew(n *ast.ExprNew) { c.calls = append(c.calls, n) }

func (c *nodeCollector) StmtReturn(n *ast.StmtReturn) { c.returns = append(c.returns, n) }

func collect(node ast.Vertex) *nodeCollector {
	c := &nodeCollector{}
	if node != nil {
		traverser.NewTraverser(c).Traverse(node)
	}
	return c
}

// Calls returns every call or "new" expression below node, outer calls first
func Calls(node ast.Vertex) []ast.Vertex {
	return collect(node).calls
}

// Returns returns every return statement below node
func Returns(node ast.Vertex) []*ast.StmtReturn {
	return collect(node).returns
}

// CallArgs returns the argument expressions of a call or "new" node
func CallArgs(node ast.Vertex) []ast.Vertex {
	switch n := node.(type) {
	case *ast.ExprStaticCall:
		return ArgExprs(n.Args)
	case *ast.ExprMethodCall:
		return ArgExprs(n.Args)
	case *ast.ExprNullsafeMethodCall:
		return ArgExprs(n.Args)
	case *ast.ExprFunctionCall:
		return ArgExprs(n.Args)
	case *ast.ExprNew:
		return ArgExprs(n.Args)
	}
	return nil
}

// Body returns the statement list of a method, closure or arrow function.
// Arrow functions yield their single expression.
func Body(node ast.Vertex) []ast.Vertex {
	switch n := node.(type) {
	case *ast.StmtClassMethod:
		if list, ok := n.Stmt.(*ast.StmtStmtList); ok {
			return list.Stmts
		}
	case *ast.ExprClosure:
		return n.Stmts
	case *ast.ExprArrowFunction:
		return []ast.Vertex{n.Expr}
	case *ast.StmtStmtList:
		return n.Stmts
	}
	return nil
}

// Unwrap strips Argument and parenthesis wrappers
func Unwrap(node ast.Vertex) ast.Vertex {
	for {
		switch n := node.(type) {
		case *ast.Argument:
			node = n.Expr
		case *ast.ExprBrackets:
			node = n.Expr
		default:
			return node
		}
	}
}

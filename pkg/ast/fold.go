package ast

import "github.com/xplshn/ccc/pkg/token"

// FoldConstants evaluates arithmetic and comparison sub-expressions made
// up entirely of literals and substitutes the result before emission.
// Anything touching an identifier, call, dereference or address-of is
// left alone, as is division by a literal zero, so the folded and
// unfolded paths behave identically. Arithmetic wraps to 32 bits, the
// width of the emitted instructions. Runs after type checking; folded
// literals carry the int type their expression had.
func FoldConstants(node *Node) *Node {
	if node == nil {
		return nil
	}

	switch d := node.Data.(type) {
	case ProgramNode:
		for i := range d.Funcs {
			d.Funcs[i] = FoldConstants(d.Funcs[i])
		}
		node.Data = d
	case FuncDeclNode:
		d.Body = FoldConstants(d.Body)
		node.Data = d
	case BlockNode:
		for i := range d.Stmts {
			d.Stmts[i] = FoldConstants(d.Stmts[i])
		}
		node.Data = d
	case VarDeclNode:
		d.Init = FoldConstants(d.Init)
		node.Data = d
	case IfNode:
		d.Cond = FoldConstants(d.Cond)
		d.Then = FoldConstants(d.Then)
		d.Else = FoldConstants(d.Else)
		node.Data = d
	case WhileNode:
		d.Cond = FoldConstants(d.Cond)
		d.Body = FoldConstants(d.Body)
		node.Data = d
	case ReturnNode:
		d.Expr = FoldConstants(d.Expr)
		node.Data = d
	case AssignNode:
		d.Lhs = FoldConstants(d.Lhs)
		d.Rhs = FoldConstants(d.Rhs)
		node.Data = d
	case BinaryOpNode:
		d.Left = FoldConstants(d.Left)
		d.Right = FoldConstants(d.Right)
		node.Data = d
	case UnaryOpNode:
		d.Expr = FoldConstants(d.Expr)
		node.Data = d
	case IndirectionNode:
		d.Expr = FoldConstants(d.Expr)
		node.Data = d
	case AddressOfNode:
		d.LValue = FoldConstants(d.LValue)
		node.Data = d
	case SubscriptNode:
		d.Array = FoldConstants(d.Array)
		d.Index = FoldConstants(d.Index)
		node.Data = d
	case FuncCallNode:
		for i := range d.Args {
			d.Args[i] = FoldConstants(d.Args[i])
		}
		node.Data = d
	}

	switch node.Type {
	case BinaryOp:
		d := node.Data.(BinaryOpNode)
		l, lok := literalValue(d.Left)
		r, rok := literalValue(d.Right)
		if !lok || !rok {
			break
		}
		var res int64
		folded := true
		switch d.Op {
		case token.Plus:
			res = l + r
		case token.Minus:
			res = l - r
		case token.Star:
			res = l * r
		case token.Slash:
			// Lowered as-is; the runtime keeps the trap semantics.
			if r == 0 {
				folded = false
			} else {
				res = l / r
			}
		case token.EqEq:
			if l == r {
				res = 1
			}
		case token.Neq:
			if l != r {
				res = 1
			}
		case token.Lt:
			if l < r {
				res = 1
			}
		case token.Gt:
			if l > r {
				res = 1
			}
		case token.Lte:
			if l <= r {
				res = 1
			}
		case token.Gte:
			if l >= r {
				res = 1
			}
		default:
			folded = false
		}
		if folded {
			return newFoldedNumber(node, res)
		}
	case UnaryOp:
		d := node.Data.(UnaryOpNode)
		if val, ok := literalValue(d.Expr); ok && d.Op == token.Minus {
			return newFoldedNumber(node, -val)
		}
	}

	return node
}

// literalValue narrows to the 32-bit value the emitter would
// materialize, so folding sees the same operands the runtime does.
func literalValue(node *Node) (int64, bool) {
	switch node.Type {
	case Number:
		return int64(int32(node.Data.(NumberNode).Value)), true
	case CharLit:
		return int64(int32(node.Data.(CharLitNode).Value)), true
	}
	return 0, false
}

func newFoldedNumber(orig *Node, value int64) *Node {
	folded := NewNumber(orig.Tok, int64(int32(value)))
	folded.Typ = TypeInt
	folded.Parent = orig.Parent
	return folded
}

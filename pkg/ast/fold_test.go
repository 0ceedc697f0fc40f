package ast

import (
	"testing"

	"github.com/nalgeon/be"
	"github.com/xplshn/ccc/pkg/token"
)

func num(v int64) *Node { return NewNumber(token.Token{}, v) }
func chr(v int64) *Node { return NewCharLit(token.Token{}, v) }
func bin(op token.Type, l, r *Node) *Node {
	return NewBinaryOp(token.Token{}, op, l, r)
}

func foldedValue(t *testing.T, node *Node) int64 {
	t.Helper()
	folded := FoldConstants(node)
	be.Equal(t, folded.Type, Number)
	return folded.Data.(NumberNode).Value
}

func TestFoldArithmetic(t *testing.T) {
	be.Equal(t, foldedValue(t, bin(token.Plus, num(2), num(3))), int64(5))
	be.Equal(t, foldedValue(t, bin(token.Minus, num(2), num(3))), int64(-1))
	be.Equal(t, foldedValue(t, bin(token.Star, num(6), num(7))), int64(42))
	be.Equal(t, foldedValue(t, bin(token.Slash, num(7), num(2))), int64(3))
}

func TestFoldWrapsToThirtyTwoBits(t *testing.T) {
	// 70000 * 70000 exceeds 32 bits; the product keeps its low bits,
	// matching what the emitted mul would compute.
	be.Equal(t, foldedValue(t, bin(token.Star, num(70000), num(70000))), int64(605032704))
	be.Equal(t, foldedValue(t, bin(token.Plus, num(2147483647), num(1))), int64(-2147483648))
	be.Equal(t, foldedValue(t, bin(token.Minus, num(-2147483648), num(1))), int64(2147483647))
	// Oversized operands narrow before comparing.
	be.Equal(t, foldedValue(t, bin(token.Lt, num(4294967296), num(1))), int64(1))
}

func TestFoldComparisons(t *testing.T) {
	be.Equal(t, foldedValue(t, bin(token.EqEq, num(2), num(2))), int64(1))
	be.Equal(t, foldedValue(t, bin(token.Neq, num(2), num(2))), int64(0))
	be.Equal(t, foldedValue(t, bin(token.Lt, num(1), num(2))), int64(1))
	be.Equal(t, foldedValue(t, bin(token.Gt, num(1), num(2))), int64(0))
	be.Equal(t, foldedValue(t, bin(token.Lte, num(2), num(2))), int64(1))
	be.Equal(t, foldedValue(t, bin(token.Gte, num(1), num(2))), int64(0))
}

func TestFoldNested(t *testing.T) {
	// 2 + 3 * 4 folds bottom-up to 14.
	expr := bin(token.Plus, num(2), bin(token.Star, num(3), num(4)))
	be.Equal(t, foldedValue(t, expr), int64(14))
}

func TestFoldUnaryMinus(t *testing.T) {
	expr := NewUnaryOp(token.Token{}, token.Minus, num(5))
	be.Equal(t, foldedValue(t, expr), int64(-5))
}

func TestFoldCharLiterals(t *testing.T) {
	// 'A' + 1 == 66; char literals participate as their byte value.
	be.Equal(t, foldedValue(t, bin(token.Plus, chr(65), num(1))), int64(66))
}

func TestDivisionByZeroNotFolded(t *testing.T) {
	expr := bin(token.Slash, num(1), num(0))
	folded := FoldConstants(expr)
	be.Equal(t, folded.Type, BinaryOp)
}

func TestIdentifierNotFolded(t *testing.T) {
	expr := bin(token.Plus, NewIdent(token.Token{}, "x"), num(1))
	folded := FoldConstants(expr)
	be.Equal(t, folded.Type, BinaryOp)
}

func TestCallNotFolded(t *testing.T) {
	call := NewFuncCall(token.Token{}, NewIdent(token.Token{}, "f"), []*Node{num(1)})
	expr := bin(token.Plus, call, num(1))
	folded := FoldConstants(expr)
	be.Equal(t, folded.Type, BinaryOp)
}

func TestFoldInsideStatements(t *testing.T) {
	ret := NewReturn(token.Token{}, bin(token.Plus, num(40), num(2)))
	body := NewBlock(token.Token{}, []*Node{ret})
	fn := NewFuncDecl(token.Token{}, "main", nil, body, TypeInt)
	prog := NewProgram(token.Token{}, []*Node{fn})

	folded := FoldConstants(prog)
	stmts := folded.Data.(ProgramNode).Funcs[0].Data.(FuncDeclNode).Body.Data.(BlockNode).Stmts
	expr := stmts[0].Data.(ReturnNode).Expr
	be.Equal(t, expr.Type, Number)
	be.Equal(t, expr.Data.(NumberNode).Value, int64(42))
}

func TestFoldedNodeCarriesIntType(t *testing.T) {
	folded := FoldConstants(bin(token.Plus, num(1), num(2)))
	be.Equal(t, folded.Typ, TypeInt)
}

func TestFoldPreservesSubtreesItCannotFold(t *testing.T) {
	// x + (2 * 3) keeps the add but folds the multiplication.
	expr := bin(token.Plus, NewIdent(token.Token{}, "x"), bin(token.Star, num(2), num(3)))
	folded := FoldConstants(expr)
	be.Equal(t, folded.Type, BinaryOp)
	right := folded.Data.(BinaryOpNode).Right
	be.Equal(t, right.Type, Number)
	be.Equal(t, right.Data.(NumberNode).Value, int64(6))
}

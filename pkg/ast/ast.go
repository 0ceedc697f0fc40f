// Package ast defines the types used to represent the Abstract Syntax Tree (AST)
package ast

import (
	"fmt"
	"strings"

	"github.com/xplshn/ccc/pkg/token"
)

// NodeType defines the kind of a node in the AST
type NodeType int

const (
	// Expressions
	Number NodeType = iota
	CharLit
	String
	Ident
	Assign
	BinaryOp
	UnaryOp
	Indirection
	AddressOf
	Subscript
	FuncCall

	// Statements
	Program
	FuncDecl
	VarDecl
	If
	While
	Return
	Block
)

// Node represents a node in the Abstract Syntax Tree
type Node struct {
	Type   NodeType
	Tok    token.Token
	Parent *Node
	Data   interface{}
	Typ    *CType  // Set by the type checker
	Sym    *Symbol // Set by the type checker on Ident nodes
}

// TypeKind defines the kind of a CType
type TypeKind int

const (
	TYPE_INT TypeKind = iota
	TYPE_CHAR
	TYPE_POINTER
	TYPE_ARRAY
	TYPE_FUNC_PTR
)

// CType represents a type in the source type system. Pointer nesting is
// unbounded; an array size is a positive compile-time constant.
type CType struct {
	Kind   TypeKind
	Base   *CType // pointee for pointers, element for arrays
	Size   int64  // element count for arrays
	Params []*CType
	Return *CType
}

// Pre-defined scalar types
var (
	TypeInt  = &CType{Kind: TYPE_INT}
	TypeChar = &CType{Kind: TYPE_CHAR}
)

func NewPointer(base *CType) *CType { return &CType{Kind: TYPE_POINTER, Base: base} }

func NewArray(base *CType, size int64) *CType {
	return &CType{Kind: TYPE_ARRAY, Base: base, Size: size}
}

func NewFuncPtr(params []*CType, ret *CType) *CType {
	return &CType{Kind: TYPE_FUNC_PTR, Params: params, Return: ret}
}

// IsInteger reports whether t participates in arithmetic (int or char).
func (t *CType) IsInteger() bool {
	return t != nil && (t.Kind == TYPE_INT || t.Kind == TYPE_CHAR)
}

// Equal is structural type equality.
func (t *CType) Equal(o *CType) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case TYPE_INT, TYPE_CHAR:
		return true
	case TYPE_POINTER:
		return t.Base.Equal(o.Base)
	case TYPE_ARRAY:
		return t.Size == o.Size && t.Base.Equal(o.Base)
	case TYPE_FUNC_PTR:
		if len(t.Params) != len(o.Params) || !t.Return.Equal(o.Return) {
			return false
		}
		for i := range t.Params {
			if !t.Params[i].Equal(o.Params[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders the type the way it is spelled in diagnostics.
func (t *CType) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case TYPE_INT:
		return "int"
	case TYPE_CHAR:
		return "char"
	case TYPE_POINTER:
		return t.Base.String() + "*"
	case TYPE_ARRAY:
		return fmt.Sprintf("%s[%d]", t.Base, t.Size)
	case TYPE_FUNC_PTR:
		params := make([]string, len(t.Params))
		for i, p := range t.Params {
			params[i] = p.String()
		}
		return fmt.Sprintf("%s (*)(%s)", t.Return, strings.Join(params, ", "))
	}
	return "<unknown>"
}

// StorageKind says where a symbol's value lives.
type StorageKind int

const (
	StorageStack StorageKind = iota // stack slot, addressed via alloca
	StorageFunc                     // named function, addressed via its global
)

// Symbol is the resolved identity of a declared name. The type checker
// creates one per declaration and attaches it to every Ident node that
// refers to it.
type Symbol struct {
	Name    string
	Type    *CType
	Storage StorageKind
}

// --- Node Data Structs ---
type NumberNode struct{ Value int64 }
type CharLitNode struct{ Value int64 }
type StringNode struct{ Value string }
type IdentNode struct{ Name string }
type AssignNode struct{ Lhs, Rhs *Node }
type BinaryOpNode struct {
	Op          token.Type
	Left, Right *Node
}
type UnaryOpNode struct {
	Op   token.Type
	Expr *Node
}
type IndirectionNode struct{ Expr *Node }
type AddressOfNode struct{ LValue *Node }
type SubscriptNode struct{ Array, Index *Node }
type FuncCallNode struct {
	Callee *Node
	Args   []*Node
}
type ProgramNode struct{ Funcs []*Node }
type FuncDeclNode struct {
	Name       string
	Params     []*Node // VarDecl nodes without initializers
	Body       *Node
	ReturnType *CType
}
type VarDeclNode struct {
	Name string
	Type *CType
	Init *Node
}
type IfNode struct{ Cond, Then, Else *Node }
type WhileNode struct{ Cond, Body *Node }
type ReturnNode struct{ Expr *Node }
type BlockNode struct{ Stmts []*Node }

// --- Node Constructors ---

func newNode(tok token.Token, nodeType NodeType, data interface{}, children ...*Node) *Node {
	node := &Node{Type: nodeType, Tok: tok, Data: data}
	for _, child := range children {
		if child != nil {
			child.Parent = node
		}
	}
	return node
}

func NewNumber(tok token.Token, value int64) *Node {
	return newNode(tok, Number, NumberNode{Value: value})
}
func NewCharLit(tok token.Token, value int64) *Node {
	return newNode(tok, CharLit, CharLitNode{Value: value})
}
func NewString(tok token.Token, value string) *Node {
	return newNode(tok, String, StringNode{Value: value})
}
func NewIdent(tok token.Token, name string) *Node {
	return newNode(tok, Ident, IdentNode{Name: name})
}
func NewAssign(tok token.Token, lhs, rhs *Node) *Node {
	return newNode(tok, Assign, AssignNode{Lhs: lhs, Rhs: rhs}, lhs, rhs)
}
func NewBinaryOp(tok token.Token, op token.Type, left, right *Node) *Node {
	return newNode(tok, BinaryOp, BinaryOpNode{Op: op, Left: left, Right: right}, left, right)
}
func NewUnaryOp(tok token.Token, op token.Type, expr *Node) *Node {
	return newNode(tok, UnaryOp, UnaryOpNode{Op: op, Expr: expr}, expr)
}
func NewIndirection(tok token.Token, expr *Node) *Node {
	return newNode(tok, Indirection, IndirectionNode{Expr: expr}, expr)
}
func NewAddressOf(tok token.Token, lvalue *Node) *Node {
	return newNode(tok, AddressOf, AddressOfNode{LValue: lvalue}, lvalue)
}
func NewSubscript(tok token.Token, array, index *Node) *Node {
	return newNode(tok, Subscript, SubscriptNode{Array: array, Index: index}, array, index)
}
func NewFuncCall(tok token.Token, callee *Node, args []*Node) *Node {
	node := newNode(tok, FuncCall, FuncCallNode{Callee: callee, Args: args}, callee)
	for _, arg := range args {
		arg.Parent = node
	}
	return node
}
func NewProgram(tok token.Token, funcs []*Node) *Node {
	node := newNode(tok, Program, ProgramNode{Funcs: funcs})
	for _, f := range funcs {
		f.Parent = node
	}
	return node
}
func NewFuncDecl(tok token.Token, name string, params []*Node, body *Node, returnType *CType) *Node {
	node := newNode(tok, FuncDecl, FuncDeclNode{
		Name: name, Params: params, Body: body, ReturnType: returnType,
	}, body)
	for _, p := range params {
		p.Parent = node
	}
	return node
}
func NewVarDecl(tok token.Token, name string, varType *CType, init *Node) *Node {
	return newNode(tok, VarDecl, VarDeclNode{Name: name, Type: varType, Init: init}, init)
}
func NewIf(tok token.Token, cond, thenBody, elseBody *Node) *Node {
	return newNode(tok, If, IfNode{Cond: cond, Then: thenBody, Else: elseBody}, cond, thenBody, elseBody)
}
func NewWhile(tok token.Token, cond, body *Node) *Node {
	return newNode(tok, While, WhileNode{Cond: cond, Body: body}, cond, body)
}
func NewReturn(tok token.Token, expr *Node) *Node {
	return newNode(tok, Return, ReturnNode{Expr: expr}, expr)
}
func NewBlock(tok token.Token, stmts []*Node) *Node {
	node := newNode(tok, Block, BlockNode{Stmts: stmts})
	for _, s := range stmts {
		if s != nil {
			s.Parent = node
		}
	}
	return node
}

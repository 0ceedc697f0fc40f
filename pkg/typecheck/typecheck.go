// Package typecheck resolves every identifier to a symbol and annotates
// every expression node with its type. It maintains an explicit stack of
// scope frames: one global frame holding functions, one per function
// body and one per nested block. The first diagnostic aborts the walk.
package typecheck

import (
	"github.com/xplshn/ccc/pkg/ast"
	"github.com/xplshn/ccc/pkg/config"
	"github.com/xplshn/ccc/pkg/token"
	"github.com/xplshn/ccc/pkg/util"
)

type scope struct {
	symbols *symbolEntry
	parent  *scope
}

type symbolEntry struct {
	sym  *ast.Symbol
	next *symbolEntry
}

type Checker struct {
	currentScope *scope
	globalScope  *scope
	currentRet   *ast.CType
	cfg          *config.Config
}

func NewChecker(cfg *config.Config) *Checker {
	global := &scope{}
	return &Checker{currentScope: global, globalScope: global, cfg: cfg}
}

func (c *Checker) enterScope() { c.currentScope = &scope{parent: c.currentScope} }
func (c *Checker) exitScope() {
	if c.currentScope.parent != nil {
		c.currentScope = c.currentScope.parent
	}
}

func (c *Checker) findSymbol(name string) *ast.Symbol {
	for s := c.currentScope; s != nil; s = s.parent {
		for e := s.symbols; e != nil; e = e.next {
			if e.sym.Name == name {
				return e.sym
			}
		}
	}
	return nil
}

func (c *Checker) findSymbolInCurrentScope(name string) *ast.Symbol {
	for e := c.currentScope.symbols; e != nil; e = e.next {
		if e.sym.Name == name {
			return e.sym
		}
	}
	return nil
}

func (c *Checker) declare(tok token.Token, name string, typ *ast.CType, storage ast.StorageKind) (*ast.Symbol, error) {
	if c.findSymbolInCurrentScope(name) != nil {
		return nil, util.Errorf(util.DuplicateDeclaration, tok, "redefinition of '%s'", name)
	}
	sym := &ast.Symbol{Name: name, Type: typ, Storage: storage}
	c.currentScope.symbols = &symbolEntry{sym: sym, next: c.currentScope.symbols}
	return sym, nil
}

// Check resolves and type-annotates the whole program. Functions are
// declared up front so bodies may call functions defined later in the
// unit.
func (c *Checker) Check(root *ast.Node) error {
	prog, ok := root.Data.(ast.ProgramNode)
	if !ok {
		return util.Errorf(util.InternalError, root.Tok, "expected a program node at the top level")
	}

	for _, fn := range prog.Funcs {
		decl := fn.Data.(ast.FuncDeclNode)
		paramTypes := make([]*ast.CType, len(decl.Params))
		for i, p := range decl.Params {
			paramTypes[i] = p.Data.(ast.VarDeclNode).Type
		}
		sig := ast.NewFuncPtr(paramTypes, decl.ReturnType)
		sym, err := c.declare(fn.Tok, decl.Name, sig, ast.StorageFunc)
		if err != nil {
			return err
		}
		fn.Sym = sym
		fn.Typ = sig
	}

	for _, fn := range prog.Funcs {
		if err := c.checkFunction(fn); err != nil {
			return err
		}
	}
	return nil
}

func (c *Checker) checkFunction(fn *ast.Node) error {
	decl := fn.Data.(ast.FuncDeclNode)
	c.currentRet = decl.ReturnType
	c.enterScope()
	defer c.exitScope()

	for _, p := range fn.Data.(ast.FuncDeclNode).Params {
		pd := p.Data.(ast.VarDeclNode)
		sym, err := c.declare(p.Tok, pd.Name, pd.Type, ast.StorageStack)
		if err != nil {
			return err
		}
		p.Sym = sym
		p.Typ = pd.Type
	}
	return c.checkStatement(decl.Body)
}

func (c *Checker) checkStatement(node *ast.Node) error {
	switch node.Type {
	case ast.Block:
		c.enterScope()
		defer c.exitScope()
		for _, stmt := range node.Data.(ast.BlockNode).Stmts {
			if err := c.checkStatement(stmt); err != nil {
				return err
			}
		}
		return nil

	case ast.VarDecl:
		return c.checkVarDecl(node)

	case ast.If:
		data := node.Data.(ast.IfNode)
		condType, err := c.checkExpr(data.Cond)
		if err != nil {
			return err
		}
		if !condType.IsInteger() {
			return util.Errorf(util.TypeMismatch, data.Cond.Tok, "condition has type %s, want an integer", condType)
		}
		if err := c.checkStatement(data.Then); err != nil {
			return err
		}
		if data.Else != nil {
			return c.checkStatement(data.Else)
		}
		return nil

	case ast.While:
		data := node.Data.(ast.WhileNode)
		condType, err := c.checkExpr(data.Cond)
		if err != nil {
			return err
		}
		if !condType.IsInteger() {
			return util.Errorf(util.TypeMismatch, data.Cond.Tok, "condition has type %s, want an integer", condType)
		}
		return c.checkStatement(data.Body)

	case ast.Return:
		data := node.Data.(ast.ReturnNode)
		exprType, err := c.checkExpr(data.Expr)
		if err != nil {
			return err
		}
		if !assignable(c.currentRet, exprType) {
			return util.Errorf(util.TypeMismatch, node.Tok, "cannot return %s from a function returning %s", exprType, c.currentRet)
		}
		return nil

	default:
		_, err := c.checkExpr(node)
		return err
	}
}

func (c *Checker) checkVarDecl(node *ast.Node) error {
	data := node.Data.(ast.VarDeclNode)

	if data.Init != nil {
		initType, err := c.checkExpr(data.Init)
		if err != nil {
			return err
		}
		if data.Type.Kind == ast.TYPE_ARRAY {
			return util.Errorf(util.TypeMismatch, node.Tok, "cannot initialize array '%s' with an expression", data.Name)
		}
		if !assignable(data.Type, initType) {
			return util.Errorf(util.TypeMismatch, node.Tok, "cannot initialize %s '%s' with %s", data.Type, data.Name, initType)
		}
	}

	sym, err := c.declare(node.Tok, data.Name, data.Type, ast.StorageStack)
	if err != nil {
		return err
	}
	node.Sym = sym
	node.Typ = data.Type
	return nil
}

// assignable reports whether a value of type src may be stored into a
// destination of type dst. Int and char convert implicitly in both
// directions; an array converts to a pointer to its element type;
// everything else requires an exact structural match.
func assignable(dst, src *ast.CType) bool {
	if dst.IsInteger() && src.IsInteger() {
		return true
	}
	if dst.Kind == ast.TYPE_POINTER && src.Kind == ast.TYPE_ARRAY {
		return dst.Base.Equal(src.Base)
	}
	return dst.Equal(src)
}

// isAddressable reports whether an assignment may write through the
// expression: a named variable, a dereference or an element access.
func isAddressable(node *ast.Node) bool {
	switch node.Type {
	case ast.Ident:
		return node.Sym == nil || node.Sym.Storage != ast.StorageFunc
	case ast.Indirection, ast.Subscript:
		return true
	default:
		return false
	}
}

// hasAddress reports whether address-of applies to the expression.
// Narrower than isAddressable: only a named variable or an element
// access, never a dereference.
func hasAddress(node *ast.Node) bool {
	switch node.Type {
	case ast.Ident:
		return node.Sym == nil || node.Sym.Storage != ast.StorageFunc
	case ast.Subscript:
		return true
	default:
		return false
	}
}

func (c *Checker) checkExpr(node *ast.Node) (*ast.CType, error) {
	typ, err := c.exprType(node)
	if err != nil {
		return nil, err
	}
	node.Typ = typ
	return typ, nil
}

func (c *Checker) exprType(node *ast.Node) (*ast.CType, error) {
	switch node.Type {
	case ast.Number:
		return ast.TypeInt, nil
	case ast.CharLit:
		return ast.TypeChar, nil
	case ast.String:
		return ast.NewPointer(ast.TypeChar), nil

	case ast.Ident:
		name := node.Data.(ast.IdentNode).Name
		sym := c.findSymbol(name)
		if sym == nil {
			return nil, util.Errorf(util.UndefinedSymbol, node.Tok, "use of undeclared identifier '%s'", name)
		}
		node.Sym = sym
		return sym.Type, nil

	case ast.Assign:
		return c.checkAssign(node)

	case ast.BinaryOp:
		return c.checkBinaryOp(node)

	case ast.UnaryOp:
		data := node.Data.(ast.UnaryOpNode)
		operandType, err := c.checkExpr(data.Expr)
		if err != nil {
			return nil, err
		}
		if !operandType.IsInteger() {
			return nil, util.Errorf(util.TypeMismatch, node.Tok, "unary '-' requires an integer operand, got %s", operandType)
		}
		return ast.TypeInt, nil

	case ast.Indirection:
		data := node.Data.(ast.IndirectionNode)
		operandType, err := c.checkExpr(data.Expr)
		if err != nil {
			return nil, err
		}
		if operandType.Kind != ast.TYPE_POINTER {
			return nil, util.Errorf(util.TypeMismatch, node.Tok, "cannot dereference a value of type %s", operandType)
		}
		return operandType.Base, nil

	case ast.AddressOf:
		data := node.Data.(ast.AddressOfNode)
		operandType, err := c.checkExpr(data.LValue)
		if err != nil {
			return nil, err
		}
		if !hasAddress(data.LValue) {
			return nil, util.Errorf(util.TypeMismatch, node.Tok, "cannot take the address of this expression")
		}
		return ast.NewPointer(operandType), nil

	case ast.Subscript:
		data := node.Data.(ast.SubscriptNode)
		baseType, err := c.checkExpr(data.Array)
		if err != nil {
			return nil, err
		}
		indexType, err := c.checkExpr(data.Index)
		if err != nil {
			return nil, err
		}
		if baseType.Kind != ast.TYPE_ARRAY && baseType.Kind != ast.TYPE_POINTER {
			return nil, util.Errorf(util.TypeMismatch, data.Array.Tok, "subscripted value has type %s, want an array or pointer", baseType)
		}
		if !indexType.IsInteger() {
			return nil, util.Errorf(util.TypeMismatch, data.Index.Tok, "array index has type %s, want an integer", indexType)
		}
		return baseType.Base, nil

	case ast.FuncCall:
		return c.checkCall(node)
	}
	return nil, util.Errorf(util.InternalError, node.Tok, "unhandled expression node %d", node.Type)
}

func (c *Checker) checkAssign(node *ast.Node) (*ast.CType, error) {
	data := node.Data.(ast.AssignNode)
	lhsType, err := c.checkExpr(data.Lhs)
	if err != nil {
		return nil, err
	}
	rhsType, err := c.checkExpr(data.Rhs)
	if err != nil {
		return nil, err
	}
	if !isAddressable(data.Lhs) {
		return nil, util.Errorf(util.TypeMismatch, node.Tok, "left side of assignment is not assignable")
	}
	if lhsType.Kind == ast.TYPE_ARRAY {
		return nil, util.Errorf(util.TypeMismatch, node.Tok, "cannot assign to an array")
	}
	if !assignable(lhsType, rhsType) {
		return nil, util.Errorf(util.TypeMismatch, node.Tok, "cannot assign %s to %s", rhsType, lhsType)
	}
	return lhsType, nil
}

func (c *Checker) checkBinaryOp(node *ast.Node) (*ast.CType, error) {
	data := node.Data.(ast.BinaryOpNode)
	leftType, err := c.checkExpr(data.Left)
	if err != nil {
		return nil, err
	}
	rightType, err := c.checkExpr(data.Right)
	if err != nil {
		return nil, err
	}
	// Char promotes to int; both arithmetic and comparison yield int.
	if !leftType.IsInteger() || !rightType.IsInteger() {
		return nil, util.Errorf(util.TypeMismatch, node.Tok, "operator %s requires integer operands, got %s and %s", data.Op, leftType, rightType)
	}
	return ast.TypeInt, nil
}

func (c *Checker) checkCall(node *ast.Node) (*ast.CType, error) {
	data := node.Data.(ast.FuncCallNode)
	if data.Callee.Type != ast.Ident {
		return nil, util.Errorf(util.TypeMismatch, data.Callee.Tok, "called expression is not a function")
	}
	calleeType, err := c.checkExpr(data.Callee)
	if err != nil {
		return nil, err
	}
	if calleeType.Kind != ast.TYPE_FUNC_PTR {
		return nil, util.Errorf(util.TypeMismatch, data.Callee.Tok, "called object has type %s, want a function", calleeType)
	}
	if len(data.Args) != len(calleeType.Params) {
		return nil, util.Errorf(util.ArityError, node.Tok, "call takes %d argument(s), got %d", len(calleeType.Params), len(data.Args))
	}
	for i, arg := range data.Args {
		argType, err := c.checkExpr(arg)
		if err != nil {
			return nil, err
		}
		if !assignable(calleeType.Params[i], argType) {
			return nil, util.Errorf(util.TypeMismatch, arg.Tok, "argument %d has type %s, want %s", i+1, argType, calleeType.Params[i])
		}
	}
	return calleeType.Return, nil
}

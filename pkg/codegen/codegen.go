// Package codegen lowers the type-annotated AST into an ir.Module. Every
// declared variable lives in a stack slot allocated in the function's
// entry block; every read is a load and every write a store. Control
// flow becomes labelled basic blocks, each ending in exactly one
// terminator.
package codegen

import (
	"fmt"

	"github.com/xplshn/ccc/pkg/ast"
	"github.com/xplshn/ccc/pkg/config"
	"github.com/xplshn/ccc/pkg/ir"
	"github.com/xplshn/ccc/pkg/util"
)

type symbol struct {
	name   string
	ctype  *ast.CType
	addr   ir.Value // address of the stack slot; nil for functions
	isFunc bool
	next   *symbol
}

type scope struct {
	symbols *symbol
	parent  *scope
}

// Context carries all per-compilation emission state. Temp and label
// counters are per-function and live here rather than in globals.
type Context struct {
	mod          *ir.Module
	cfg          *config.Config
	currentScope *scope
	currentFunc  *ir.Func
	currentRet   *ast.CType
	currentBlock *ir.BasicBlock
	entryBlock   *ir.BasicBlock
	tempCount    int
	labelCount   int
	strCount     int
	allocaNames  map[string]int
}

func NewContext(cfg *config.Config) *Context {
	return &Context{
		mod: &ir.Module{
			Name:       cfg.ModuleName,
			SourceFile: cfg.SourceFile,
			DataLayout: cfg.DataLayout,
			Triple:     cfg.Triple,
		},
		cfg:          cfg,
		currentScope: &scope{},
	}
}

func (ctx *Context) enterScope() { ctx.currentScope = &scope{parent: ctx.currentScope} }
func (ctx *Context) exitScope() {
	if ctx.currentScope.parent != nil {
		ctx.currentScope = ctx.currentScope.parent
	}
}

func (ctx *Context) findSymbol(name string) *symbol {
	for s := ctx.currentScope; s != nil; s = s.parent {
		for sym := s.symbols; sym != nil; sym = sym.next {
			if sym.name == name {
				return sym
			}
		}
	}
	return nil
}

func (ctx *Context) addSymbol(sym *symbol) {
	sym.next = ctx.currentScope.symbols
	ctx.currentScope.symbols = sym
}

func (ctx *Context) newTemp() *ir.Temp {
	t := &ir.Temp{Name: fmt.Sprintf("t%d", ctx.tempCount)}
	ctx.tempCount++
	return t
}

func (ctx *Context) newBool() *ir.Bool {
	b := &ir.Bool{Name: fmt.Sprintf("t%d", ctx.tempCount)}
	ctx.tempCount++
	return b
}

// newLabelSet reserves one counter value for a related group of labels,
// keeping generated labels unique within the function.
func (ctx *Context) newLabelSet() int {
	n := ctx.labelCount
	ctx.labelCount++
	return n
}

func (ctx *Context) startBlock(label string) {
	block := &ir.BasicBlock{Label: label}
	ctx.currentFunc.Blocks = append(ctx.currentFunc.Blocks, block)
	ctx.currentBlock = block
}

func (ctx *Context) addInstr(instr *ir.Instruction) {
	ctx.currentBlock.Instructions = append(ctx.currentBlock.Instructions, instr)
}

// GenerateIR lowers the program to a Module. The AST is not used after
// this returns.
func (ctx *Context) GenerateIR(root *ast.Node) (*ir.Module, error) {
	prog, ok := root.Data.(ast.ProgramNode)
	if !ok {
		return nil, util.Errorf(util.InternalError, root.Tok, "expected a program node at the top level")
	}

	for _, fn := range prog.Funcs {
		decl := fn.Data.(ast.FuncDeclNode)
		ctx.addSymbol(&symbol{name: decl.Name, ctype: fn.Typ, isFunc: true})
	}
	for _, fn := range prog.Funcs {
		if err := ctx.genFunction(fn); err != nil {
			return nil, err
		}
	}
	return ctx.mod, nil
}

func (ctx *Context) genFunction(node *ast.Node) error {
	decl := node.Data.(ast.FuncDeclNode)
	ctx.tempCount = 0
	ctx.labelCount = 0
	ctx.allocaNames = make(map[string]int)

	retType := irTypeOf(decl.ReturnType)
	fn := &ir.Func{Name: decl.Name, ReturnType: retType}
	for _, p := range decl.Params {
		pd := p.Data.(ast.VarDeclNode)
		fn.Params = append(fn.Params, &ir.Param{
			Name: pd.Name + ".param",
			Typ:  irTypeOf(pd.Type),
		})
	}
	ctx.mod.Funcs = append(ctx.mod.Funcs, fn)
	ctx.currentFunc = fn
	ctx.currentRet = decl.ReturnType
	ctx.startBlock("entry")
	ctx.entryBlock = ctx.currentBlock

	ctx.enterScope()
	defer ctx.exitScope()

	// Parameters are spilled to stack slots; the .param suffix keeps the
	// incoming value from colliding with the slot of a same-named local.
	for i, p := range decl.Params {
		pd := p.Data.(ast.VarDeclNode)
		slotType := irTypeOf(pd.Type)
		addr := ctx.emitAlloca(pd.Name, slotType)
		ctx.addInstr(&ir.Instruction{
			Op:   ir.OpStore,
			Typ:  slotType,
			Args: []ir.Value{&ir.Temp{Name: fn.Params[i].Name}, addr},
		})
		ctx.addSymbol(&symbol{name: pd.Name, ctype: pd.Type, addr: addr})
	}

	if err := ctx.genStatement(decl.Body); err != nil {
		return err
	}

	// Falling off the end of the body returns zero.
	if !ctx.currentBlock.Terminated() {
		zero := ctx.materializeConst(0, retType)
		ctx.addInstr(&ir.Instruction{Op: ir.OpRet, Typ: retType, Args: []ir.Value{zero}})
	}
	return nil
}

func (ctx *Context) genStatement(node *ast.Node) error {
	switch node.Type {
	case ast.Block:
		ctx.enterScope()
		defer ctx.exitScope()
		for _, stmt := range node.Data.(ast.BlockNode).Stmts {
			if ctx.currentBlock.Terminated() {
				util.Warn(ctx.cfg, config.WarnUnreachableCode, stmt.Tok, "statement is unreachable")
				break
			}
			if err := ctx.genStatement(stmt); err != nil {
				return err
			}
		}
		return nil

	case ast.VarDecl:
		return ctx.genVarDecl(node)

	case ast.If:
		return ctx.genIf(node)

	case ast.While:
		return ctx.genWhile(node)

	case ast.Return:
		data := node.Data.(ast.ReturnNode)
		val, err := ctx.genExpr(data.Expr)
		if err != nil {
			return err
		}
		val = ctx.convert(val, data.Expr.Typ, ctx.currentRet)
		ctx.addInstr(&ir.Instruction{
			Op:   ir.OpRet,
			Typ:  ctx.currentFunc.ReturnType,
			Args: []ir.Value{val},
		})
		return nil

	default:
		_, err := ctx.genExpr(node)
		return err
	}
}

func (ctx *Context) genVarDecl(node *ast.Node) error {
	data := node.Data.(ast.VarDeclNode)
	slotType := irTypeOf(data.Type)
	addr := ctx.emitAlloca(data.Name, slotType)
	ctx.addSymbol(&symbol{name: data.Name, ctype: data.Type, addr: addr})

	if data.Init != nil {
		val, err := ctx.genExpr(data.Init)
		if err != nil {
			return err
		}
		val = ctx.convert(val, data.Init.Typ, data.Type)
		ctx.addInstr(&ir.Instruction{
			Op:   ir.OpStore,
			Typ:  slotType,
			Args: []ir.Value{val, addr},
		})
	}
	return nil
}

func (ctx *Context) genIf(node *ast.Node) error {
	data := node.Data.(ast.IfNode)
	cond, err := ctx.genCondition(data.Cond)
	if err != nil {
		return err
	}

	n := ctx.newLabelSet()
	thenLabel := fmt.Sprintf("if.then.%d", n)
	endLabel := fmt.Sprintf("if.end.%d", n)
	elseLabel := endLabel
	if data.Else != nil {
		elseLabel = fmt.Sprintf("if.else.%d", n)
	}
	ctx.addInstr(&ir.Instruction{
		Op:     ir.OpCondBr,
		Args:   []ir.Value{cond},
		Labels: []string{thenLabel, elseLabel},
	})

	ctx.startBlock(thenLabel)
	if err := ctx.genStatement(data.Then); err != nil {
		return err
	}
	if !ctx.currentBlock.Terminated() {
		ctx.addInstr(&ir.Instruction{Op: ir.OpBr, Labels: []string{endLabel}})
	}

	if data.Else != nil {
		ctx.startBlock(elseLabel)
		if err := ctx.genStatement(data.Else); err != nil {
			return err
		}
		if !ctx.currentBlock.Terminated() {
			ctx.addInstr(&ir.Instruction{Op: ir.OpBr, Labels: []string{endLabel}})
		}
	}

	ctx.startBlock(endLabel)
	return nil
}

func (ctx *Context) genWhile(node *ast.Node) error {
	data := node.Data.(ast.WhileNode)
	n := ctx.newLabelSet()
	condLabel := fmt.Sprintf("while.cond.%d", n)
	bodyLabel := fmt.Sprintf("while.body.%d", n)
	endLabel := fmt.Sprintf("while.end.%d", n)

	ctx.addInstr(&ir.Instruction{Op: ir.OpBr, Labels: []string{condLabel}})

	ctx.startBlock(condLabel)
	cond, err := ctx.genCondition(data.Cond)
	if err != nil {
		return err
	}
	ctx.addInstr(&ir.Instruction{
		Op:     ir.OpCondBr,
		Args:   []ir.Value{cond},
		Labels: []string{bodyLabel, endLabel},
	})

	ctx.startBlock(bodyLabel)
	if err := ctx.genStatement(data.Body); err != nil {
		return err
	}
	if !ctx.currentBlock.Terminated() {
		ctx.addInstr(&ir.Instruction{Op: ir.OpBr, Labels: []string{condLabel}})
	}

	ctx.startBlock(endLabel)
	return nil
}

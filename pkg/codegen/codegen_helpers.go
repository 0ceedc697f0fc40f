package codegen

import (
	"fmt"

	"github.com/xplshn/ccc/pkg/ast"
	"github.com/xplshn/ccc/pkg/ir"
	"github.com/xplshn/ccc/pkg/token"
	"github.com/xplshn/ccc/pkg/util"
)

// irTypeOf maps a source type to its IR rendering. Function pointers
// become pointers to function types.
func irTypeOf(ct *ast.CType) *ir.Type {
	switch ct.Kind {
	case ast.TYPE_INT:
		return ir.I32
	case ast.TYPE_CHAR:
		return ir.I8
	case ast.TYPE_POINTER:
		return ir.Pointer(irTypeOf(ct.Base))
	case ast.TYPE_ARRAY:
		return ir.ArrayOf(irTypeOf(ct.Base), ct.Size)
	case ast.TYPE_FUNC_PTR:
		params := make([]*ir.Type, len(ct.Params))
		for i, p := range ct.Params {
			params[i] = irTypeOf(p)
		}
		return ir.Pointer(ir.FuncType(params, irTypeOf(ct.Return)))
	}
	return ir.I32
}

// emitAlloca reserves a stack slot in the entry block, even when the
// declaration sits inside a nested block or loop body. Slots are named
// <var>.addr, with a numeric suffix when shadowing reuses a name.
func (ctx *Context) emitAlloca(name string, typ *ir.Type) ir.Value {
	slotName := name + ".addr"
	if n := ctx.allocaNames[name]; n > 0 {
		slotName = fmt.Sprintf("%s.addr.%d", name, n)
	}
	ctx.allocaNames[name]++

	addr := &ir.Temp{Name: slotName}
	instr := &ir.Instruction{Op: ir.OpAlloca, Typ: typ, Result: addr}

	// Keep the entry block's terminator last if it already has one.
	entry := ctx.entryBlock
	if entry.Terminated() {
		last := len(entry.Instructions) - 1
		entry.Instructions = append(entry.Instructions[:last:last], instr, entry.Instructions[last])
	} else {
		entry.Instructions = append(entry.Instructions, instr)
	}
	return addr
}

// materializeConst renders a literal through the stable add-zero idiom.
// The immediate is narrowed to its 32-bit value; an oversized literal
// wraps here exactly as the 32-bit instructions it feeds would wrap.
func (ctx *Context) materializeConst(value int64, typ *ir.Type) ir.Value {
	result := ctx.newTemp()
	ctx.addInstr(&ir.Instruction{
		Op: ir.OpBin, Name: "add", Typ: typ, Result: result,
		Args: []ir.Value{&ir.Const{Value: 0}, &ir.Const{Value: int64(int32(value))}},
	})
	return result
}

// convert inserts the extension or truncation an int/char boundary
// needs; all other conversions are representation-identical.
func (ctx *Context) convert(val ir.Value, from, to *ast.CType) ir.Value {
	if from == nil || to == nil {
		return val
	}
	if from.Kind == ast.TYPE_CHAR && to.Kind == ast.TYPE_INT {
		result := ctx.newTemp()
		ctx.addInstr(&ir.Instruction{
			Op: ir.OpSExt, Typ: ir.I8, DstType: ir.I32, Result: result,
			Args: []ir.Value{val},
		})
		return result
	}
	if from.Kind == ast.TYPE_INT && to.Kind == ast.TYPE_CHAR {
		result := ctx.newTemp()
		ctx.addInstr(&ir.Instruction{
			Op: ir.OpTrunc, Typ: ir.I32, DstType: ir.I8, Result: result,
			Args: []ir.Value{val},
		})
		return result
	}
	return val
}

// asInt widens a char value to int; int values pass through.
func (ctx *Context) asInt(val ir.Value, from *ast.CType) ir.Value {
	return ctx.convert(val, from, ast.TypeInt)
}

// genCondition lowers an expression used as a branch condition: the
// integer value is compared against zero to produce the i1 the
// conditional branch consumes.
func (ctx *Context) genCondition(node *ast.Node) (ir.Value, error) {
	val, err := ctx.genExpr(node)
	if err != nil {
		return nil, err
	}
	val = ctx.asInt(val, node.Typ)
	cond := ctx.newBool()
	ctx.addInstr(&ir.Instruction{
		Op: ir.OpICmp, Name: "ne", Typ: ir.I32, Result: cond,
		Args: []ir.Value{val, &ir.Const{Value: 0}},
	})
	return cond, nil
}

func icmpPredicate(op token.Type) string {
	switch op {
	case token.EqEq:
		return "eq"
	case token.Neq:
		return "ne"
	case token.Lt:
		return "slt"
	case token.Gt:
		return "sgt"
	case token.Lte:
		return "sle"
	case token.Gte:
		return "sge"
	}
	return ""
}

func binMnemonic(op token.Type) string {
	switch op {
	case token.Plus:
		return "add"
	case token.Minus:
		return "sub"
	case token.Star:
		return "mul"
	case token.Slash:
		return "sdiv"
	}
	return ""
}

func (ctx *Context) genExpr(node *ast.Node) (ir.Value, error) {
	switch node.Type {
	case ast.Number:
		return ctx.materializeConst(node.Data.(ast.NumberNode).Value, ir.I32), nil

	case ast.CharLit:
		return ctx.materializeConst(node.Data.(ast.CharLitNode).Value, ir.I8), nil

	case ast.String:
		return ctx.genString(node.Data.(ast.StringNode).Value), nil

	case ast.Ident:
		return ctx.genIdent(node)

	case ast.Assign:
		return ctx.genAssign(node)

	case ast.BinaryOp:
		return ctx.genBinaryOp(node)

	case ast.UnaryOp:
		data := node.Data.(ast.UnaryOpNode)
		val, err := ctx.genExpr(data.Expr)
		if err != nil {
			return nil, err
		}
		val = ctx.asInt(val, data.Expr.Typ)
		result := ctx.newTemp()
		ctx.addInstr(&ir.Instruction{
			Op: ir.OpBin, Name: "sub", Typ: ir.I32, Result: result,
			Args: []ir.Value{&ir.Const{Value: 0}, val},
		})
		return result, nil

	case ast.Indirection:
		data := node.Data.(ast.IndirectionNode)
		ptr, err := ctx.genExpr(data.Expr)
		if err != nil {
			return nil, err
		}
		result := ctx.newTemp()
		ctx.addInstr(&ir.Instruction{
			Op: ir.OpLoad, Typ: irTypeOf(node.Typ), Result: result,
			Args: []ir.Value{ptr},
		})
		return result, nil

	case ast.AddressOf:
		addr, _, err := ctx.genAddr(node.Data.(ast.AddressOfNode).LValue)
		return addr, err

	case ast.Subscript:
		addr, elem, err := ctx.genAddr(node)
		if err != nil {
			return nil, err
		}
		result := ctx.newTemp()
		ctx.addInstr(&ir.Instruction{
			Op: ir.OpLoad, Typ: irTypeOf(elem), Result: result,
			Args: []ir.Value{addr},
		})
		return result, nil

	case ast.FuncCall:
		return ctx.genCall(node)
	}
	return nil, util.Errorf(util.InternalError, node.Tok, "unhandled expression node %d in emission", node.Type)
}

// genIdent produces the value of a name: a load for scalars and
// pointers, the function's global for function names, and the decayed
// element pointer for arrays.
func (ctx *Context) genIdent(node *ast.Node) (ir.Value, error) {
	sym := ctx.lookup(node)
	if sym == nil {
		return nil, util.Errorf(util.InternalError, node.Tok, "unresolved identifier '%s' reached emission", node.Data.(ast.IdentNode).Name)
	}
	if sym.isFunc {
		return &ir.Global{Name: sym.name}, nil
	}
	if sym.ctype.Kind == ast.TYPE_ARRAY {
		arrType := irTypeOf(sym.ctype)
		result := ctx.newTemp()
		ctx.addInstr(&ir.Instruction{
			Op: ir.OpGEP, Typ: arrType, Result: result,
			Args: []ir.Value{sym.addr, &ir.Const{Value: 0}, &ir.Const{Value: 0}},
		})
		return result, nil
	}
	result := ctx.newTemp()
	ctx.addInstr(&ir.Instruction{
		Op: ir.OpLoad, Typ: irTypeOf(sym.ctype), Result: result,
		Args: []ir.Value{sym.addr},
	})
	return result, nil
}

func (ctx *Context) lookup(node *ast.Node) *symbol {
	if node.Type != ast.Ident {
		return nil
	}
	return ctx.findSymbol(node.Data.(ast.IdentNode).Name)
}

func (ctx *Context) genAssign(node *ast.Node) (ir.Value, error) {
	data := node.Data.(ast.AssignNode)
	addr, destType, err := ctx.genAddr(data.Lhs)
	if err != nil {
		return nil, err
	}
	val, err := ctx.genExpr(data.Rhs)
	if err != nil {
		return nil, err
	}
	val = ctx.convert(val, data.Rhs.Typ, destType)
	ctx.addInstr(&ir.Instruction{
		Op:   ir.OpStore,
		Typ:  irTypeOf(destType),
		Args: []ir.Value{val, addr},
	})
	return val, nil
}

func (ctx *Context) genBinaryOp(node *ast.Node) (ir.Value, error) {
	data := node.Data.(ast.BinaryOpNode)
	left, err := ctx.genExpr(data.Left)
	if err != nil {
		return nil, err
	}
	left = ctx.asInt(left, data.Left.Typ)
	right, err := ctx.genExpr(data.Right)
	if err != nil {
		return nil, err
	}
	right = ctx.asInt(right, data.Right.Typ)

	if pred := icmpPredicate(data.Op); pred != "" {
		cmp := ctx.newBool()
		ctx.addInstr(&ir.Instruction{
			Op: ir.OpICmp, Name: pred, Typ: ir.I32, Result: cmp,
			Args: []ir.Value{left, right},
		})
		// Comparisons are int-valued in the source language.
		result := ctx.newTemp()
		ctx.addInstr(&ir.Instruction{
			Op: ir.OpZExt, Typ: ir.I1, DstType: ir.I32, Result: result,
			Args: []ir.Value{cmp},
		})
		return result, nil
	}

	result := ctx.newTemp()
	ctx.addInstr(&ir.Instruction{
		Op: ir.OpBin, Name: binMnemonic(data.Op), Typ: ir.I32, Result: result,
		Args: []ir.Value{left, right},
	})
	return result, nil
}

// genString interns one global constant per textual occurrence, named
// in first-occurrence order, and yields the address of its first byte.
// Identical literals intentionally never share storage.
func (ctx *Context) genString(value string) ir.Value {
	name := fmt.Sprintf(".str.%d", ctx.strCount)
	ctx.strCount++
	data := append([]byte(value), 0)
	ctx.mod.Strings = append(ctx.mod.Strings, &ir.StringConst{Name: name, Data: data})

	arrType := ir.ArrayOf(ir.I8, int64(len(data)))
	result := ctx.newTemp()
	ctx.addInstr(&ir.Instruction{
		Op: ir.OpGEP, Typ: arrType, Result: result,
		Args: []ir.Value{&ir.Global{Name: name}, &ir.Const{Value: 0}, &ir.Const{Value: 0}},
	})
	return result
}

func (ctx *Context) genCall(node *ast.Node) (ir.Value, error) {
	data := node.Data.(ast.FuncCallNode)
	sym := ctx.lookup(data.Callee)
	if sym == nil {
		return nil, util.Errorf(util.InternalError, data.Callee.Tok, "unresolved callee reached emission")
	}

	var callee ir.Value
	sig := sym.ctype // function-pointer shaped for both cases
	if sym.isFunc {
		callee = &ir.Global{Name: sym.name}
	} else {
		// Indirect call: load the stored function pointer first.
		loaded := ctx.newTemp()
		ctx.addInstr(&ir.Instruction{
			Op: ir.OpLoad, Typ: irTypeOf(sym.ctype), Result: loaded,
			Args: []ir.Value{sym.addr},
		})
		callee = loaded
	}

	args := make([]ir.Value, 0, len(data.Args)+1)
	argTypes := make([]*ir.Type, 0, len(data.Args))
	args = append(args, callee)
	for i, argNode := range data.Args {
		val, err := ctx.genExpr(argNode)
		if err != nil {
			return nil, err
		}
		val = ctx.convert(val, argNode.Typ, sig.Params[i])
		args = append(args, val)
		argTypes = append(argTypes, irTypeOf(sig.Params[i]))
	}

	result := ctx.newTemp()
	ctx.addInstr(&ir.Instruction{
		Op: ir.OpCall, Typ: irTypeOf(sig.Return), Result: result,
		Args: args, ArgTypes: argTypes,
	})
	return result, nil
}

// genAddr computes the address of an lvalue without loading from it,
// returning the address value and the source type of the addressed slot.
func (ctx *Context) genAddr(node *ast.Node) (ir.Value, *ast.CType, error) {
	switch node.Type {
	case ast.Ident:
		sym := ctx.lookup(node)
		if sym == nil || sym.addr == nil {
			return nil, nil, util.Errorf(util.InternalError, node.Tok, "expression is not addressable")
		}
		return sym.addr, sym.ctype, nil

	case ast.Indirection:
		data := node.Data.(ast.IndirectionNode)
		ptr, err := ctx.genExpr(data.Expr)
		if err != nil {
			return nil, nil, err
		}
		return ptr, node.Typ, nil

	case ast.Subscript:
		return ctx.genSubscriptAddr(node)
	}
	return nil, nil, util.Errorf(util.InternalError, node.Tok, "expression is not addressable")
}

// genSubscriptAddr lowers a[i]. Arrays use a two-index address
// computation against the declared array type (base index 0, element
// index i); pointers load the pointer value and index it directly, the
// step scaled by the pointee size.
func (ctx *Context) genSubscriptAddr(node *ast.Node) (ir.Value, *ast.CType, error) {
	data := node.Data.(ast.SubscriptNode)
	idx, err := ctx.genExpr(data.Index)
	if err != nil {
		return nil, nil, err
	}
	idx = ctx.asInt(idx, data.Index.Typ)

	baseType := data.Array.Typ
	if baseType.Kind == ast.TYPE_ARRAY {
		baseAddr, _, err := ctx.genAddr(data.Array)
		if err != nil {
			return nil, nil, err
		}
		result := ctx.newTemp()
		ctx.addInstr(&ir.Instruction{
			Op: ir.OpGEP, Typ: irTypeOf(baseType), Result: result,
			Args: []ir.Value{baseAddr, &ir.Const{Value: 0}, idx},
		})
		return result, baseType.Base, nil
	}

	ptr, err := ctx.genExpr(data.Array)
	if err != nil {
		return nil, nil, err
	}
	result := ctx.newTemp()
	ctx.addInstr(&ir.Instruction{
		Op: ir.OpGEP, Typ: irTypeOf(baseType.Base), Result: result,
		Args: []ir.Value{ptr, idx},
	})
	return result, baseType.Base, nil
}

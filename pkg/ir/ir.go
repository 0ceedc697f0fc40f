// Package ir defines the in-memory form of the emitted module: global
// string constants, functions, basic blocks and instructions. A Module is
// built once by the code generator and is immutable afterwards; the text
// backend only reads it.
package ir

import (
	"fmt"
	"strings"
)

type TypeKind int

const (
	TypeI32 TypeKind = iota
	TypeI8
	TypeI1 // icmp results only; never a storage type
	TypePointer
	TypeArray
	TypeFunc
)

// Type is the IR-level type of a value or memory slot. Function types
// only ever appear behind a pointer.
type Type struct {
	Kind   TypeKind
	Elem   *Type // pointee for pointers, element for arrays
	Len    int64 // element count for arrays
	Params []*Type
	Ret    *Type
}

var (
	I32 = &Type{Kind: TypeI32}
	I8  = &Type{Kind: TypeI8}
	I1  = &Type{Kind: TypeI1}
)

func Pointer(elem *Type) *Type { return &Type{Kind: TypePointer, Elem: elem} }

func ArrayOf(elem *Type, n int64) *Type { return &Type{Kind: TypeArray, Elem: elem, Len: n} }

func FuncType(params []*Type, ret *Type) *Type {
	return &Type{Kind: TypeFunc, Params: params, Ret: ret}
}

// String renders the type in IR syntax: i32, i8, T* per indirection
// level, [N x T] for arrays and RT (T1, T2) for function types.
func (t *Type) String() string {
	switch t.Kind {
	case TypeI32:
		return "i32"
	case TypeI8:
		return "i8"
	case TypeI1:
		return "i1"
	case TypePointer:
		return t.Elem.String() + "*"
	case TypeArray:
		return fmt.Sprintf("[%d x %s]", t.Len, t.Elem)
	case TypeFunc:
		params := make([]string, len(t.Params))
		for i, p := range t.Params {
			params[i] = p.String()
		}
		return fmt.Sprintf("%s (%s)", t.Ret, strings.Join(params, ", "))
	}
	return "void"
}

// Value is anything an instruction can take as an operand.
type Value interface {
	Operand() string
}

// Temp is a function-local virtual register, e.g. %t3 or %x.addr.
type Temp struct{ Name string }

// Global names a function or string constant, e.g. @main or @.str.0.
type Global struct{ Name string }

// Const is a literal operand. Source-level constants are materialized
// through the add-zero idiom; bare Consts appear only inside instructions
// the emitter builds itself (index 0 of a GEP, the add-zero operands).
type Const struct{ Value int64 }

// Bool is an i1 operand produced by icmp and consumed by br/zext.
type Bool struct{ Name string }

func (t *Temp) Operand() string   { return "%" + t.Name }
func (g *Global) Operand() string { return "@" + g.Name }
func (c *Const) Operand() string  { return fmt.Sprintf("%d", c.Value) }
func (b *Bool) Operand() string   { return "%" + b.Name }

type Op int

const (
	OpAlloca Op = iota
	OpStore
	OpLoad
	OpGEP
	OpBin  // add, sub, mul, sdiv; mnemonic in Name
	OpICmp // predicate in Name
	OpSExt
	OpZExt
	OpTrunc
	OpCall
	OpBr
	OpCondBr
	OpRet
)

// Instruction is a single IR operation. Which fields are meaningful
// depends on Op:
//
//	Alloca:  Result = slot address, Typ = allocated type
//	Store:   Args = [value, address], Typ = stored type
//	Load:    Result, Args = [address], Typ = loaded type
//	GEP:     Result, Typ = base (pointed-to) type, Args = [base, indices...]
//	Bin:     Name = mnemonic, Typ = operand type, Args = [lhs, rhs]
//	ICmp:    Name = predicate, Typ = operand type, Args = [lhs, rhs]
//	SExt/ZExt/Trunc: Typ = source type, DstType = destination, Args = [value]
//	Call:    Result, Typ = return type, Args = [callee, args...], ArgTypes per arg
//	Br:      Labels = [target]
//	CondBr:  Args = [i1 condition], Labels = [true, false]
//	Ret:     Typ, Args = [value]
type Instruction struct {
	Op       Op
	Name     string
	Typ      *Type
	DstType  *Type
	Result   Value
	Args     []Value
	ArgTypes []*Type
	Labels   []string
}

// IsTerminator reports whether the instruction ends a basic block.
func (i *Instruction) IsTerminator() bool {
	return i.Op == OpBr || i.Op == OpCondBr || i.Op == OpRet
}

type BasicBlock struct {
	Label        string
	Instructions []*Instruction
}

// Terminated reports whether the block already ends in a terminator.
// Every block of a finished function has exactly one, as its last
// instruction.
func (b *BasicBlock) Terminated() bool {
	n := len(b.Instructions)
	return n > 0 && b.Instructions[n-1].IsTerminator()
}

type Param struct {
	Name string
	Typ  *Type
}

type Func struct {
	Name       string
	ReturnType *Type
	Params     []*Param
	Blocks     []*BasicBlock
}

// StringConst is one global string constant. Data includes the trailing
// null byte, so an empty source literal still occupies one byte.
type StringConst struct {
	Name string
	Data []byte
}

// Module is the complete compilation result, in emission order.
type Module struct {
	Name       string
	SourceFile string
	DataLayout string
	Triple     string
	Strings    []*StringConst
	Funcs      []*Func
}

func (m *Module) FindFunc(name string) *Func {
	for _, f := range m.Funcs {
		if f.Name == name {
			return f
		}
	}
	return nil
}

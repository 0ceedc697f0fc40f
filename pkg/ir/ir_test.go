package ir

import (
	"testing"

	"github.com/nalgeon/be"
)

func TestTypeStrings(t *testing.T) {
	be.Equal(t, I32.String(), "i32")
	be.Equal(t, I8.String(), "i8")
	be.Equal(t, I1.String(), "i1")
	be.Equal(t, Pointer(I32).String(), "i32*")
	be.Equal(t, Pointer(Pointer(I8)).String(), "i8**")
	be.Equal(t, ArrayOf(I32, 3).String(), "[3 x i32]")
	be.Equal(t, Pointer(ArrayOf(I8, 6)).String(), "[6 x i8]*")
}

func TestFuncTypeString(t *testing.T) {
	fn := FuncType([]*Type{I32, I8}, I32)
	be.Equal(t, fn.String(), "i32 (i32, i8)")
	be.Equal(t, Pointer(fn).String(), "i32 (i32, i8)*")
	be.Equal(t, FuncType(nil, I32).String(), "i32 ()")
}

func TestOperands(t *testing.T) {
	be.Equal(t, (&Temp{Name: "t3"}).Operand(), "%t3")
	be.Equal(t, (&Temp{Name: "x.addr"}).Operand(), "%x.addr")
	be.Equal(t, (&Global{Name: "main"}).Operand(), "@main")
	be.Equal(t, (&Global{Name: ".str.0"}).Operand(), "@.str.0")
	be.Equal(t, (&Const{Value: -7}).Operand(), "-7")
	be.Equal(t, (&Bool{Name: "t1"}).Operand(), "%t1")
}

func TestTerminators(t *testing.T) {
	be.True(t, (&Instruction{Op: OpBr}).IsTerminator())
	be.True(t, (&Instruction{Op: OpCondBr}).IsTerminator())
	be.True(t, (&Instruction{Op: OpRet}).IsTerminator())
	be.True(t, !(&Instruction{Op: OpLoad}).IsTerminator())
	be.True(t, !(&Instruction{Op: OpCall}).IsTerminator())
}

func TestBlockTerminated(t *testing.T) {
	block := &BasicBlock{Label: "entry"}
	be.True(t, !block.Terminated())

	block.Instructions = append(block.Instructions, &Instruction{Op: OpAlloca})
	be.True(t, !block.Terminated())

	block.Instructions = append(block.Instructions, &Instruction{Op: OpRet})
	be.True(t, block.Terminated())
}

func TestFindFunc(t *testing.T) {
	mod := &Module{Funcs: []*Func{
		{Name: "add"},
		{Name: "main"},
	}}
	be.Equal(t, mod.FindFunc("main"), mod.Funcs[1])
	be.True(t, mod.FindFunc("missing") == nil)
}

package codegen

import (
	"fmt"
	"strings"

	"github.com/xplshn/ccc/pkg/config"
	"github.com/xplshn/ccc/pkg/ir"
	"github.com/xplshn/ccc/pkg/token"
	"github.com/xplshn/ccc/pkg/util"
)

type llvmBackend struct {
	out *strings.Builder
}

func NewLLVMBackend() Backend { return &llvmBackend{} }

func (b *llvmBackend) GenerateIR(mod *ir.Module, cfg *config.Config) (string, error) {
	var sb strings.Builder
	b.out = &sb

	fmt.Fprintf(b.out, "; ModuleID = '%s'\n", mod.Name)
	fmt.Fprintf(b.out, "source_filename = \"%s\"\n", mod.SourceFile)
	fmt.Fprintf(b.out, "target datalayout = \"%s\"\n", mod.DataLayout)
	fmt.Fprintf(b.out, "target triple = \"%s\"\n\n", mod.Triple)

	for _, s := range mod.Strings {
		fmt.Fprintf(b.out, "@%s = private unnamed_addr constant [%d x i8] c\"%s\"\n",
			s.Name, len(s.Data), escapeBytes(s.Data))
	}
	if len(mod.Strings) > 0 {
		b.out.WriteString("\n")
	}

	for _, fn := range mod.Funcs {
		if err := b.genFunc(fn); err != nil {
			return "", err
		}
	}
	return sb.String(), nil
}

func (b *llvmBackend) genFunc(fn *ir.Func) error {
	params := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = fmt.Sprintf("%s %%%s", p.Typ, p.Name)
	}
	fmt.Fprintf(b.out, "define %s @%s(%s) {\n", fn.ReturnType, fn.Name, strings.Join(params, ", "))

	for _, block := range fn.Blocks {
		if block.Label != "entry" {
			fmt.Fprintf(b.out, "%s:\n", block.Label)
		} else {
			b.out.WriteString("entry:\n")
		}
		for _, instr := range block.Instructions {
			if err := b.genInstr(instr); err != nil {
				return err
			}
		}
	}
	b.out.WriteString("}\n\n")
	return nil
}

func (b *llvmBackend) genInstr(instr *ir.Instruction) error {
	b.out.WriteString("  ")
	switch instr.Op {
	case ir.OpAlloca:
		fmt.Fprintf(b.out, "%s = alloca %s\n", instr.Result.Operand(), instr.Typ)

	case ir.OpStore:
		fmt.Fprintf(b.out, "store %s %s, %s* %s\n",
			instr.Typ, instr.Args[0].Operand(), instr.Typ, instr.Args[1].Operand())

	case ir.OpLoad:
		fmt.Fprintf(b.out, "%s = load %s, %s* %s\n",
			instr.Result.Operand(), instr.Typ, instr.Typ, instr.Args[0].Operand())

	case ir.OpGEP:
		indices := make([]string, len(instr.Args)-1)
		for i, arg := range instr.Args[1:] {
			indices[i] = "i32 " + arg.Operand()
		}
		fmt.Fprintf(b.out, "%s = getelementptr %s, %s* %s, %s\n",
			instr.Result.Operand(), instr.Typ, instr.Typ, instr.Args[0].Operand(),
			strings.Join(indices, ", "))

	case ir.OpBin:
		fmt.Fprintf(b.out, "%s = %s %s %s, %s\n",
			instr.Result.Operand(), instr.Name, instr.Typ,
			instr.Args[0].Operand(), instr.Args[1].Operand())

	case ir.OpICmp:
		fmt.Fprintf(b.out, "%s = icmp %s %s %s, %s\n",
			instr.Result.Operand(), instr.Name, instr.Typ,
			instr.Args[0].Operand(), instr.Args[1].Operand())

	case ir.OpSExt:
		fmt.Fprintf(b.out, "%s = sext %s %s to %s\n",
			instr.Result.Operand(), instr.Typ, instr.Args[0].Operand(), instr.DstType)

	case ir.OpZExt:
		fmt.Fprintf(b.out, "%s = zext %s %s to %s\n",
			instr.Result.Operand(), instr.Typ, instr.Args[0].Operand(), instr.DstType)

	case ir.OpTrunc:
		fmt.Fprintf(b.out, "%s = trunc %s %s to %s\n",
			instr.Result.Operand(), instr.Typ, instr.Args[0].Operand(), instr.DstType)

	case ir.OpCall:
		args := make([]string, len(instr.Args)-1)
		for i, arg := range instr.Args[1:] {
			args[i] = fmt.Sprintf("%s %s", instr.ArgTypes[i], arg.Operand())
		}
		fmt.Fprintf(b.out, "%s = call %s %s(%s)\n",
			instr.Result.Operand(), instr.Typ, instr.Args[0].Operand(), strings.Join(args, ", "))

	case ir.OpBr:
		fmt.Fprintf(b.out, "br label %%%s\n", instr.Labels[0])

	case ir.OpCondBr:
		fmt.Fprintf(b.out, "br i1 %s, label %%%s, label %%%s\n",
			instr.Args[0].Operand(), instr.Labels[0], instr.Labels[1])

	case ir.OpRet:
		fmt.Fprintf(b.out, "ret %s %s\n", instr.Typ, instr.Args[0].Operand())

	default:
		return util.Errorf(util.InternalError, token.Token{}, "unknown instruction op %d", instr.Op)
	}
	return nil
}

// escapeBytes renders string-constant bytes in IR syntax: printable
// ASCII stays literal, everything else becomes \XX hex.
func escapeBytes(data []byte) string {
	var sb strings.Builder
	for _, c := range data {
		if c >= 0x20 && c <= 0x7e && c != '"' && c != '\\' {
			sb.WriteByte(c)
		} else {
			fmt.Fprintf(&sb, "\\%02X", c)
		}
	}
	return sb.String()
}

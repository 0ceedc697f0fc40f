package codegen

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nalgeon/be"
	"github.com/xplshn/ccc/pkg/ast"
	"github.com/xplshn/ccc/pkg/config"
	"github.com/xplshn/ccc/pkg/ir"
	"github.com/xplshn/ccc/pkg/lexer"
	"github.com/xplshn/ccc/pkg/parser"
	"github.com/xplshn/ccc/pkg/typecheck"
)

// compile runs the whole pipeline on src and returns the IR text.
func compile(t *testing.T, src string, optLevel int) string {
	t.Helper()
	cfg := config.NewConfig()
	cfg.OptLevel = optLevel

	toks, err := lexer.NewLexer([]rune(src), 0, cfg).Tokenize()
	be.Err(t, err, nil)
	root, err := parser.NewParser(toks).Parse()
	be.Err(t, err, nil)
	be.Err(t, typecheck.NewChecker(cfg).Check(root), nil)
	if cfg.OptLevel >= 1 {
		root = ast.FoldConstants(root)
	}

	mod, err := NewContext(cfg).GenerateIR(root)
	be.Err(t, err, nil)
	text, err := NewLLVMBackend().GenerateIR(mod, cfg)
	be.Err(t, err, nil)
	return text
}

func generate(t *testing.T, src string) *ir.Module {
	t.Helper()
	cfg := config.NewConfig()
	toks, err := lexer.NewLexer([]rune(src), 0, cfg).Tokenize()
	be.Err(t, err, nil)
	root, err := parser.NewParser(toks).Parse()
	be.Err(t, err, nil)
	be.Err(t, typecheck.NewChecker(cfg).Check(root), nil)
	mod, err := NewContext(cfg).GenerateIR(root)
	be.Err(t, err, nil)
	return mod
}

func TestCompleteModule(t *testing.T) {
	got := compile(t, `
int add(int a, int b) {
    return a + b;
}

int main() {
    return add(5, 3);
}
`, 0)

	want := `; ModuleID = 'ccc_output'
source_filename = "ccc_output"
target datalayout = "e-m:e-p270:32:32-p271:32:32-p272:64:64-i64:64-f80:128-n8:16:32:64-S128"
target triple = "x86_64-unknown-linux-gnu"

define i32 @add(i32 %a.param, i32 %b.param) {
entry:
  %a.addr = alloca i32
  store i32 %a.param, i32* %a.addr
  %b.addr = alloca i32
  store i32 %b.param, i32* %b.addr
  %t0 = load i32, i32* %a.addr
  %t1 = load i32, i32* %b.addr
  %t2 = add i32 %t0, %t1
  ret i32 %t2
}

define i32 @main() {
entry:
  %t0 = add i32 0, 5
  %t1 = add i32 0, 3
  %t2 = call i32 @add(i32 %t0, i32 %t1)
  ret i32 %t2
}

`
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("IR mismatch (-want +got):\n%s", diff)
	}
}

func TestModuleHeader(t *testing.T) {
	got := compile(t, "int main() { return 0; }", 0)
	be.True(t, strings.HasPrefix(got, "; ModuleID = 'ccc_output'\n"))
	be.True(t, strings.Contains(got, `source_filename = "ccc_output"`))
	be.True(t, strings.Contains(got, `target triple = "x86_64-unknown-linux-gnu"`))
	be.True(t, strings.Contains(got, "target datalayout = "))
}

func TestConstantsUseAddZero(t *testing.T) {
	got := compile(t, "int main() { return 7; }", 0)
	be.True(t, strings.Contains(got, "%t0 = add i32 0, 7"))
	be.True(t, strings.Contains(got, "ret i32 %t0"))
}

func TestImplicitReturnZero(t *testing.T) {
	got := compile(t, "int main() { int x = 1; }", 0)
	be.True(t, strings.Contains(got, "add i32 0, 0"))
	be.True(t, strings.Contains(got, "ret i32"))
}

func TestArraySubscript(t *testing.T) {
	got := compile(t, `
int main() {
    int arr[3];
    arr[1] = 20;
    return arr[1];
}
`, 0)
	be.True(t, strings.Contains(got, "%arr.addr = alloca [3 x i32]"))
	// Array indexing goes through the declared array type with a leading
	// zero index.
	be.True(t, strings.Contains(got, "getelementptr [3 x i32], [3 x i32]* %arr.addr, i32 0, i32 %t0"))
	be.True(t, strings.Contains(got, "store i32 %t2, i32* %t1"))
}

func TestPointerSubscript(t *testing.T) {
	got := compile(t, `
int get(int *p) {
    return p[2];
}
`, 0)
	// Pointer indexing loads the pointer and applies a single index.
	be.True(t, strings.Contains(got, "load i32*, i32** %p.addr"))
	be.True(t, strings.Contains(got, "getelementptr i32, i32* %t1, i32 %t0"))
}

func TestArrayDecaysToFirstElementPointer(t *testing.T) {
	got := compile(t, `
int first(int *p) { return p[0]; }
int main() {
    int a[4];
    return first(a);
}
`, 0)
	be.True(t, strings.Contains(got, "getelementptr [4 x i32], [4 x i32]* %a.addr, i32 0, i32 0"))
}

func TestStringConstants(t *testing.T) {
	got := compile(t, `
int use(char *s) { return 0; }
int main() {
    char *a = "hi";
    char *b = "hi";
    return use("x");
}
`, 0)
	// One global per occurrence, numbered in source order, length + NUL,
	// never deduplicated.
	be.True(t, strings.Contains(got, `@.str.0 = private unnamed_addr constant [3 x i8] c"hi\00"`))
	be.True(t, strings.Contains(got, `@.str.1 = private unnamed_addr constant [3 x i8] c"hi\00"`))
	be.True(t, strings.Contains(got, `@.str.2 = private unnamed_addr constant [2 x i8] c"x\00"`))
	be.True(t, strings.Contains(got, "getelementptr [3 x i8], [3 x i8]* @.str.0, i32 0, i32 0"))
}

func TestStringEscaping(t *testing.T) {
	got := compile(t, `
int main() {
    char *s = "a\n\"b";
    return 0;
}
`, 0)
	be.True(t, strings.Contains(got, `c"a\0A\22b\00"`))
}

func TestCharWidening(t *testing.T) {
	got := compile(t, `
int main() {
    char c = 'A';
    int n = c + 1;
    return n;
}
`, 0)
	be.True(t, strings.Contains(got, "add i8 0, 65"))
	be.True(t, strings.Contains(got, "sext i8"))
	be.True(t, strings.Contains(got, "to i32"))
}

func TestIntNarrowing(t *testing.T) {
	got := compile(t, `
int main() {
    int n = 300;
    char c = n;
    return c;
}
`, 0)
	be.True(t, strings.Contains(got, "trunc i32"))
	be.True(t, strings.Contains(got, "to i8"))
}

func TestComparisonYieldsInt(t *testing.T) {
	got := compile(t, `
int main() {
    int x = 1;
    return x < 2;
}
`, 0)
	be.True(t, strings.Contains(got, "icmp slt i32"))
	be.True(t, strings.Contains(got, "zext i1"))
}

func TestIfElseBlocks(t *testing.T) {
	got := compile(t, `
int main() {
    int x = 1;
    if (x) { return 1; } else { return 2; }
}
`, 0)
	be.True(t, strings.Contains(got, "icmp ne i32"))
	be.True(t, strings.Contains(got, "br i1 %t2, label %if.then.0, label %if.else.0"))
	be.True(t, strings.Contains(got, "if.then.0:"))
	be.True(t, strings.Contains(got, "if.else.0:"))
	be.True(t, strings.Contains(got, "if.end.0:"))
}

func TestIfWithoutElseBranchesToEnd(t *testing.T) {
	got := compile(t, `
int main() {
    int x = 1;
    if (x) { x = 2; }
    return x;
}
`, 0)
	be.True(t, strings.Contains(got, "label %if.then.0, label %if.end.0"))
	be.True(t, !strings.Contains(got, "if.else.0"))
}

func TestWhileLoop(t *testing.T) {
	got := compile(t, `
int main() {
    int i = 0;
    while (i < 10) {
        i = i + 1;
    }
    return i;
}
`, 0)
	be.True(t, strings.Contains(got, "br label %while.cond.0"))
	be.True(t, strings.Contains(got, "while.cond.0:"))
	be.True(t, strings.Contains(got, "while.body.0:"))
	be.True(t, strings.Contains(got, "while.end.0:"))
	// The body jumps back to the condition.
	bodyIdx := strings.Index(got, "while.body.0:")
	be.True(t, strings.Contains(got[bodyIdx:], "br label %while.cond.0"))
}

func TestLabelCountersAreUnique(t *testing.T) {
	got := compile(t, `
int main() {
    int x = 1;
    if (x) { x = 2; }
    if (x) { x = 3; }
    while (x) { x = x - 1; }
    return x;
}
`, 0)
	be.True(t, strings.Contains(got, "if.then.0:"))
	be.True(t, strings.Contains(got, "if.then.1:"))
	be.True(t, strings.Contains(got, "while.cond.2:"))
}

func TestNestedAllocasLandInEntry(t *testing.T) {
	got := compile(t, `
int main() {
    int i = 0;
    while (i < 3) {
        int x = i;
        i = x + 1;
    }
    return i;
}
`, 0)
	allocaIdx := strings.Index(got, "%x.addr = alloca i32")
	condIdx := strings.Index(got, "while.cond.0:")
	be.True(t, allocaIdx >= 0)
	be.True(t, allocaIdx < condIdx)
}

func TestShadowedSlotsGetDistinctNames(t *testing.T) {
	got := compile(t, `
int main() {
    int x = 1;
    {
        int x = 2;
        x = 3;
    }
    return x;
}
`, 0)
	be.True(t, strings.Contains(got, "%x.addr = alloca i32"))
	be.True(t, strings.Contains(got, "%x.addr.1 = alloca i32"))
}

func TestIndirectCall(t *testing.T) {
	got := compile(t, `
int id(int x) { return x; }
int main() {
    int (*op)(int) = id;
    return op(7);
}
`, 0)
	be.True(t, strings.Contains(got, "%op.addr = alloca i32 (i32)*"))
	be.True(t, strings.Contains(got, "store i32 (i32)* @id, i32 (i32)** %op.addr"))
	be.True(t, strings.Contains(got, "load i32 (i32)*, i32 (i32)** %op.addr"))
	// The call target is the loaded temp, not a global.
	be.True(t, strings.Contains(got, "call i32 %"))
}

func TestAddressOfAndDereference(t *testing.T) {
	got := compile(t, `
int main() {
    int x = 5;
    int *p = &x;
    *p = 6;
    return *p;
}
`, 0)
	be.True(t, strings.Contains(got, "%p.addr = alloca i32*"))
	be.True(t, strings.Contains(got, "store i32* %x.addr, i32** %p.addr"))
}

func TestUnaryMinusSubtractsFromZero(t *testing.T) {
	got := compile(t, `
int main() {
    int x = 5;
    return -x;
}
`, 0)
	be.True(t, strings.Contains(got, "sub i32 0, %t1"))
}

func TestFoldingChangesEmittedConstant(t *testing.T) {
	unopt := compile(t, "int main() { return 2 + 3 * 4; }", 0)
	be.True(t, strings.Contains(unopt, "mul i32"))

	opt := compile(t, "int main() { return 2 + 3 * 4; }", 1)
	be.True(t, strings.Contains(opt, "add i32 0, 14"))
	be.True(t, !strings.Contains(opt, "mul i32"))
}

func TestFoldedOverflowMatchesRuntimeWrap(t *testing.T) {
	src := "int main() { return 70000 * 70000; }"

	unopt := compile(t, src, 0)
	be.True(t, strings.Contains(unopt, "add i32 0, 70000"))
	be.True(t, strings.Contains(unopt, "mul i32"))

	opt := compile(t, src, 1)
	be.True(t, strings.Contains(opt, "add i32 0, 605032704"))
	be.True(t, !strings.Contains(opt, "4900000000"))
}

func TestOversizedLiteralNarrowsToThirtyTwoBits(t *testing.T) {
	out := compile(t, "int main() { return 4294967296; }", 0)
	be.True(t, strings.Contains(out, "add i32 0, 0"))
	be.True(t, !strings.Contains(out, "4294967296"))

	out = compile(t, "int main() { return 4294967297; }", 0)
	be.True(t, strings.Contains(out, "add i32 0, 1"))
}

func TestEveryBlockEndsInOneTerminator(t *testing.T) {
	mod := generate(t, `
int main() {
    int i = 0;
    while (i < 3) {
        if (i) { i = i + 1; } else { i = i + 2; }
    }
    return i;
}
`)
	for _, fn := range mod.Funcs {
		for _, block := range fn.Blocks {
			be.True(t, block.Terminated())
			for i, instr := range block.Instructions {
				if instr.IsTerminator() {
					be.Equal(t, i, len(block.Instructions)-1)
				}
			}
		}
	}
}

func TestReturnConvertsToFunctionType(t *testing.T) {
	got := compile(t, `
char low(int n) {
    return n;
}
`, 0)
	be.True(t, strings.Contains(got, "define i8 @low(i32 %n.param)"))
	be.True(t, strings.Contains(got, "trunc i32"))
	be.True(t, strings.Contains(got, "ret i8"))
}

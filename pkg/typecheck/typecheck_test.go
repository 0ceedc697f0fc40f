package typecheck

import (
	"testing"

	"github.com/nalgeon/be"
	"github.com/xplshn/ccc/pkg/ast"
	"github.com/xplshn/ccc/pkg/config"
	"github.com/xplshn/ccc/pkg/lexer"
	"github.com/xplshn/ccc/pkg/parser"
	"github.com/xplshn/ccc/pkg/util"
)

func check(t *testing.T, src string) error {
	t.Helper()
	cfg := config.NewConfig()
	toks, err := lexer.NewLexer([]rune(src), 0, cfg).Tokenize()
	be.Err(t, err, nil)
	root, err := parser.NewParser(toks).Parse()
	be.Err(t, err, nil)
	return NewChecker(cfg).Check(root)
}

func checkErr(t *testing.T, src string) *util.Diagnostic {
	t.Helper()
	err := check(t, src)
	be.True(t, err != nil)
	d, ok := err.(*util.Diagnostic)
	be.True(t, ok)
	return d
}

func TestValidProgram(t *testing.T) {
	err := check(t, `
		int add(int a, int b) { return a + b; }
		int main() { return add(5, 3); }
	`)
	be.Err(t, err, nil)
}

func TestUndefinedVariable(t *testing.T) {
	d := checkErr(t, "int main() { return x; }")
	be.Equal(t, d.Kind, util.UndefinedSymbol)
}

func TestUndefinedFunction(t *testing.T) {
	d := checkErr(t, "int main() { return missing(1); }")
	be.Equal(t, d.Kind, util.UndefinedSymbol)
}

func TestForwardCallAllowed(t *testing.T) {
	err := check(t, `
		int main() { return later(1); }
		int later(int x) { return x; }
	`)
	be.Err(t, err, nil)
}

func TestDuplicateVariable(t *testing.T) {
	d := checkErr(t, "int main() { int x; int x; return 0; }")
	be.Equal(t, d.Kind, util.DuplicateDeclaration)
}

func TestDuplicateFunction(t *testing.T) {
	d := checkErr(t, `
		int f() { return 0; }
		int f() { return 1; }
	`)
	be.Equal(t, d.Kind, util.DuplicateDeclaration)
}

func TestShadowingInNestedBlock(t *testing.T) {
	err := check(t, "int main() { int x = 1; { int x = 2; x = 3; } return x; }")
	be.Err(t, err, nil)
}

func TestVariableNotVisibleAfterBlock(t *testing.T) {
	d := checkErr(t, "int main() { { int x = 1; } return x; }")
	be.Equal(t, d.Kind, util.UndefinedSymbol)
}

func TestIntCharConvertImplicitly(t *testing.T) {
	err := check(t, `
		int main() {
			char c = 65;
			int n = c;
			c = n + 1;
			return c;
		}
	`)
	be.Err(t, err, nil)
}

func TestPointerToIntMismatch(t *testing.T) {
	d := checkErr(t, "int main() { int x; int *p = &x; x = p; return 0; }")
	be.Equal(t, d.Kind, util.TypeMismatch)
}

func TestPointerBaseMismatch(t *testing.T) {
	d := checkErr(t, "int main() { int x; char *p = &x; return 0; }")
	be.Equal(t, d.Kind, util.TypeMismatch)
}

func TestDereferenceNonPointer(t *testing.T) {
	d := checkErr(t, "int main() { int x; return *x; }")
	be.Equal(t, d.Kind, util.TypeMismatch)
}

func TestAddressOfLiteral(t *testing.T) {
	d := checkErr(t, "int main() { return *&5; }")
	be.Equal(t, d.Kind, util.TypeMismatch)
}

func TestAddressOfFunction(t *testing.T) {
	d := checkErr(t, `
		int f() { return 0; }
		int main() { return *&f; }
	`)
	be.Equal(t, d.Kind, util.TypeMismatch)
}

func TestAddressOfDereference(t *testing.T) {
	d := checkErr(t, `
		int main() {
			int x = 1;
			int *p = &x;
			int *q = &*p;
			return 0;
		}
	`)
	be.Equal(t, d.Kind, util.TypeMismatch)
}

func TestAssignThroughDereference(t *testing.T) {
	err := check(t, `
		int main() {
			int x = 1;
			int *p = &x;
			*p = 2;
			return x;
		}
	`)
	be.Err(t, err, nil)
}

func TestAssignToArray(t *testing.T) {
	d := checkErr(t, "int main() { int a[3]; int *p; a = p; return 0; }")
	be.Equal(t, d.Kind, util.TypeMismatch)
}

func TestArrayInitializerRejected(t *testing.T) {
	d := checkErr(t, "int main() { int a[3] = 0; return 0; }")
	be.Equal(t, d.Kind, util.TypeMismatch)
}

func TestArrayDecaysToPointer(t *testing.T) {
	err := check(t, `
		int first(int *p) { return p[0]; }
		int main() {
			int a[4];
			int *p = a;
			return first(a);
		}
	`)
	be.Err(t, err, nil)
}

func TestArrayDecayElementMismatch(t *testing.T) {
	d := checkErr(t, "int main() { char a[4]; int *p = a; return 0; }")
	be.Equal(t, d.Kind, util.TypeMismatch)
}

func TestSubscriptNonArray(t *testing.T) {
	d := checkErr(t, "int main() { int x; return x[0]; }")
	be.Equal(t, d.Kind, util.TypeMismatch)
}

func TestSubscriptIndexMustBeInteger(t *testing.T) {
	d := checkErr(t, "int main() { int a[3]; int *p = a; return a[p]; }")
	be.Equal(t, d.Kind, util.TypeMismatch)
}

func TestConditionMustBeInteger(t *testing.T) {
	d := checkErr(t, "int main() { int a[3]; if (a) { return 1; } return 0; }")
	be.Equal(t, d.Kind, util.TypeMismatch)
}

func TestWhileConditionMustBeInteger(t *testing.T) {
	d := checkErr(t, "int main() { int x; int *p = &x; while (p) { return 1; } return 0; }")
	be.Equal(t, d.Kind, util.TypeMismatch)
}

func TestArityMismatch(t *testing.T) {
	d := checkErr(t, `
		int add(int a, int b) { return a + b; }
		int main() { return add(1); }
	`)
	be.Equal(t, d.Kind, util.ArityError)
}

func TestArgumentTypeMismatch(t *testing.T) {
	d := checkErr(t, `
		int deref(int *p) { return *p; }
		int main() { return deref(5); }
	`)
	be.Equal(t, d.Kind, util.TypeMismatch)
}

func TestCallNonFunction(t *testing.T) {
	d := checkErr(t, "int main() { int x; return x(1); }")
	be.Equal(t, d.Kind, util.TypeMismatch)
}

func TestCallThroughFunctionPointer(t *testing.T) {
	err := check(t, `
		int double_it(int x) { return x + x; }
		int main() {
			int (*op)(int) = double_it;
			return op(21);
		}
	`)
	be.Err(t, err, nil)
}

func TestFunctionPointerSignatureMismatch(t *testing.T) {
	d := checkErr(t, `
		int two(int a, int b) { return a + b; }
		int main() {
			int (*op)(int) = two;
			return op(1);
		}
	`)
	be.Equal(t, d.Kind, util.TypeMismatch)
}

func TestReturnTypeMismatch(t *testing.T) {
	d := checkErr(t, "int main() { int x; return &x; }")
	be.Equal(t, d.Kind, util.TypeMismatch)
}

func TestBinaryOpRequiresIntegers(t *testing.T) {
	d := checkErr(t, "int main() { int x; int *p = &x; return p + 1; }")
	be.Equal(t, d.Kind, util.TypeMismatch)
}

func TestUnaryMinusRequiresInteger(t *testing.T) {
	d := checkErr(t, "int main() { int x; int *p = &x; return -p; }")
	be.Equal(t, d.Kind, util.TypeMismatch)
}

func TestAssignToLiteral(t *testing.T) {
	d := checkErr(t, "int main() { 5 = 6; return 0; }")
	be.Equal(t, d.Kind, util.TypeMismatch)
}

func TestStringHasCharPointerType(t *testing.T) {
	err := check(t, `
		int put(char *s) { return *s; }
		int main() { return put("hi"); }
	`)
	be.Err(t, err, nil)
}

func TestExpressionTypesAnnotated(t *testing.T) {
	cfg := config.NewConfig()
	toks, err := lexer.NewLexer([]rune("int main() { char c = 65; return c + 1; }"), 0, cfg).Tokenize()
	be.Err(t, err, nil)
	root, err := parser.NewParser(toks).Parse()
	be.Err(t, err, nil)
	be.Err(t, NewChecker(cfg).Check(root), nil)

	body := root.Data.(ast.ProgramNode).Funcs[0].Data.(ast.FuncDeclNode).Body
	ret := body.Data.(ast.BlockNode).Stmts[1].Data.(ast.ReturnNode)
	// c + 1 promotes to int even though c is char.
	be.Equal(t, ret.Expr.Typ, ast.TypeInt)
	left := ret.Expr.Data.(ast.BinaryOpNode).Left
	be.Equal(t, left.Typ, ast.TypeChar)
}

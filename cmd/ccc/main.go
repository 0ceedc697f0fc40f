package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/xplshn/ccc/pkg/ast"
	"github.com/xplshn/ccc/pkg/cli"
	"github.com/xplshn/ccc/pkg/codegen"
	"github.com/xplshn/ccc/pkg/config"
	"github.com/xplshn/ccc/pkg/lexer"
	"github.com/xplshn/ccc/pkg/parser"
	"github.com/xplshn/ccc/pkg/token"
	"github.com/xplshn/ccc/pkg/typecheck"
	"github.com/xplshn/ccc/pkg/util"
)

func main() {
	app := cli.NewApp("ccc")
	app.Synopsis = "[options] <input.c>"
	app.Description = "A compiler for a small C subset that emits LLVM IR as text. One file in, one module out."
	app.Authors = []string{"xplshn"}
	app.Repository = "<https://github.com/xplshn/ccc>"

	var (
		outFile    string
		optLevel   int
		dumpTokens bool
		dumpAST    bool
		verbose    bool
	)

	fs := app.FlagSet
	fs.String(&outFile, "output", "o", "", "Place the output into <file>.", "file")
	fs.Int(&optLevel, "optimize", "O", 0, "Set the optimization level (0 or 1).", "level")
	fs.Bool(&dumpTokens, "dump-tokens", "", false, "Dump the token stream and exit.")
	fs.Bool(&dumpAST, "dump-ast", "", false, "Dump the syntax tree and exit.")
	fs.Bool(&verbose, "verbose", "v", false, "Narrate the pipeline stages.")

	cfg := config.NewConfig()
	warningFlags := cfg.SetupFlagGroups(fs)

	app.Action = func(inputFiles []string) error {
		if len(inputFiles) != 1 {
			return fmt.Errorf("expected exactly one input file, got %d", len(inputFiles))
		}
		if err := cfg.SetOptLevel(optLevel); err != nil {
			return err
		}
		for i, entry := range warningFlags {
			if entry.Enabled != nil && *entry.Enabled {
				cfg.SetWarning(config.Warning(i), true)
			}
			if entry.Disabled != nil && *entry.Disabled {
				cfg.SetWarning(config.Warning(i), false)
			}
		}

		inputFile := inputFiles[0]
		if outFile == "" {
			outFile = replaceExtension(inputFile, ".ll")
		}
		cfg.SourceFile = inputFile
		cfg.ModuleName = inputFile

		content, err := os.ReadFile(inputFile)
		if err != nil {
			return fmt.Errorf("could not read file '%s': %v", inputFile, err)
		}
		source := []rune(string(content))
		util.SetSourceFiles([]util.SourceFileRecord{{Name: inputFile, Content: source}})

		stage := func(format string, args ...interface{}) {
			if verbose {
				fmt.Printf(format+"\n", args...)
			}
		}

		stage("Tokenizing '%s'...", inputFile)
		tokens, err := lexer.NewLexer(source, 0, cfg).Tokenize()
		if err != nil {
			return err
		}
		if dumpTokens {
			printTokens(tokens)
			return nil
		}

		stage("Parsing tokens into AST...")
		root, err := parser.NewParser(tokens).Parse()
		if err != nil {
			return err
		}

		stage("Type checking...")
		if err := typecheck.NewChecker(cfg).Check(root); err != nil {
			return err
		}

		if cfg.OptLevel >= 1 {
			stage("Folding constants...")
			root = ast.FoldConstants(root)
		}
		if dumpAST {
			printAST(os.Stdout, root, 0)
			return nil
		}

		stage("Creating intermediate representation...")
		mod, err := codegen.NewContext(cfg).GenerateIR(root)
		if err != nil {
			return err
		}
		irText, err := codegen.NewLLVMBackend().GenerateIR(mod, cfg)
		if err != nil {
			return err
		}

		stage("Writing '%s'...", outFile)
		if err := os.WriteFile(outFile, []byte(irText), 0644); err != nil {
			return fmt.Errorf("could not write '%s': %v", outFile, err)
		}
		return nil
	}

	if err := app.Run(os.Args[1:]); err != nil {
		util.Render(os.Stderr, err)
		os.Exit(1)
	}
}

func replaceExtension(path, ext string) string {
	if i := strings.LastIndexByte(path, '.'); i > strings.LastIndexByte(path, '/') {
		return path[:i] + ext
	}
	return path + ext
}

func printTokens(tokens []token.Token) {
	for _, tok := range tokens {
		if tok.Value != "" {
			fmt.Printf("%d:%d\t%s\t%q\n", tok.Line, tok.Column, tok.Type, tok.Value)
		} else {
			fmt.Printf("%d:%d\t%s\n", tok.Line, tok.Column, tok.Type)
		}
	}
}

func printAST(w *os.File, node *ast.Node, depth int) {
	if node == nil {
		return
	}
	indent := strings.Repeat("  ", depth)
	switch d := node.Data.(type) {
	case ast.ProgramNode:
		fmt.Fprintf(w, "%sProgram\n", indent)
		for _, fn := range d.Funcs {
			printAST(w, fn, depth+1)
		}
	case ast.FuncDeclNode:
		fmt.Fprintf(w, "%sFuncDecl %s -> %s\n", indent, d.Name, d.ReturnType)
		for _, p := range d.Params {
			printAST(w, p, depth+1)
		}
		printAST(w, d.Body, depth+1)
	case ast.VarDeclNode:
		fmt.Fprintf(w, "%sVarDecl %s %s\n", indent, d.Name, d.Type)
		printAST(w, d.Init, depth+1)
	case ast.BlockNode:
		fmt.Fprintf(w, "%sBlock\n", indent)
		for _, s := range d.Stmts {
			printAST(w, s, depth+1)
		}
	case ast.IfNode:
		fmt.Fprintf(w, "%sIf\n", indent)
		printAST(w, d.Cond, depth+1)
		printAST(w, d.Then, depth+1)
		printAST(w, d.Else, depth+1)
	case ast.WhileNode:
		fmt.Fprintf(w, "%sWhile\n", indent)
		printAST(w, d.Cond, depth+1)
		printAST(w, d.Body, depth+1)
	case ast.ReturnNode:
		fmt.Fprintf(w, "%sReturn\n", indent)
		printAST(w, d.Expr, depth+1)
	case ast.AssignNode:
		fmt.Fprintf(w, "%sAssign\n", indent)
		printAST(w, d.Lhs, depth+1)
		printAST(w, d.Rhs, depth+1)
	case ast.BinaryOpNode:
		fmt.Fprintf(w, "%sBinaryOp %s\n", indent, d.Op)
		printAST(w, d.Left, depth+1)
		printAST(w, d.Right, depth+1)
	case ast.UnaryOpNode:
		fmt.Fprintf(w, "%sUnaryOp %s\n", indent, d.Op)
		printAST(w, d.Expr, depth+1)
	case ast.IndirectionNode:
		fmt.Fprintf(w, "%sIndirection\n", indent)
		printAST(w, d.Expr, depth+1)
	case ast.AddressOfNode:
		fmt.Fprintf(w, "%sAddressOf\n", indent)
		printAST(w, d.LValue, depth+1)
	case ast.SubscriptNode:
		fmt.Fprintf(w, "%sSubscript\n", indent)
		printAST(w, d.Array, depth+1)
		printAST(w, d.Index, depth+1)
	case ast.FuncCallNode:
		fmt.Fprintf(w, "%sFuncCall\n", indent)
		printAST(w, d.Callee, depth+1)
		for _, a := range d.Args {
			printAST(w, a, depth+1)
		}
	case ast.NumberNode:
		fmt.Fprintf(w, "%sNumber %d\n", indent, d.Value)
	case ast.CharLitNode:
		fmt.Fprintf(w, "%sCharLit %d\n", indent, d.Value)
	case ast.StringNode:
		fmt.Fprintf(w, "%sString %q\n", indent, d.Value)
	case ast.IdentNode:
		fmt.Fprintf(w, "%sIdent %s\n", indent, d.Name)
	}
}

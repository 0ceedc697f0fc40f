// Package util holds the diagnostic machinery shared by every compiler
// stage. A Diagnostic is an ordinary error value; stages hand the first
// one they produce back up the pipeline and stop, so the driver owns the
// process exit and no partial output is ever written.
package util

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xplshn/ccc/pkg/config"
	"github.com/xplshn/ccc/pkg/token"
)

type Kind int

const (
	LexError Kind = iota
	SyntaxError
	UndefinedSymbol
	DuplicateDeclaration
	TypeMismatch
	ArityError
	InternalError
)

var kindNames = map[Kind]string{
	LexError:             "lex error",
	SyntaxError:          "syntax error",
	UndefinedSymbol:      "undefined symbol",
	DuplicateDeclaration: "duplicate declaration",
	TypeMismatch:         "type mismatch",
	ArityError:           "arity error",
	InternalError:        "internal error",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "error"
}

type Diagnostic struct {
	Kind Kind
	Tok  token.Token
	Msg  string
}

func (d *Diagnostic) Error() string {
	filename, line, col := findFileAndLine(d.Tok)
	return fmt.Sprintf("%s:%d:%d: %s: %s", filename, line, col, d.Kind, d.Msg)
}

// Errorf builds the single diagnostic a failed compilation reports.
func Errorf(kind Kind, tok token.Token, format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{Kind: kind, Tok: tok, Msg: fmt.Sprintf(format, args...)}
}

// SourceFileRecord tracks the name and content of a single source file.
type SourceFileRecord struct {
	Name    string
	Content []rune
}

var sourceFiles []SourceFileRecord

// SetSourceFiles stores the source code for all input files so rendered
// diagnostics can show the offending line.
func SetSourceFiles(files []SourceFileRecord) {
	sourceFiles = files
}

func findFileAndLine(tok token.Token) (filename string, line, col int) {
	if tok.FileIndex < 0 || tok.FileIndex >= len(sourceFiles) {
		return "<input>", tok.Line, tok.Column
	}
	return sourceFiles[tok.FileIndex].Name, tok.Line, tok.Column
}

// printSourceLine prints the source line and a caret under the error span.
func printSourceLine(w io.Writer, tok token.Token) {
	if tok.FileIndex < 0 || tok.FileIndex >= len(sourceFiles) || tok.Line == 0 {
		return
	}

	content := sourceFiles[tok.FileIndex].Content
	lineNum := tok.Line
	lineStart := 0
	for i, r := range content {
		if lineNum <= 1 {
			break
		}
		if r == '\n' {
			lineNum--
			lineStart = i + 1
		}
	}

	lineEnd := len(content)
	for i := lineStart; i < len(content); i++ {
		if content[i] == '\n' {
			lineEnd = i
			break
		}
	}

	fmt.Fprintf(w, "  %s\n", string(content[lineStart:lineEnd]))

	if tok.Column < 1 {
		return
	}
	fmt.Fprintf(w, "  %s\033[32m^", strings.Repeat(" ", tok.Column-1))
	if tok.Len > 1 {
		fmt.Fprint(w, strings.Repeat("~", tok.Len-1))
	}
	fmt.Fprintln(w, "\033[0m")
}

// Render writes a diagnostic in the compiler's user-facing format:
// location, kind, message, then the source line with a caret.
func Render(w io.Writer, err error) {
	d, ok := err.(*Diagnostic)
	if !ok {
		fmt.Fprintf(w, "ccc: \033[31merror:\033[0m %v\n", err)
		return
	}
	filename, line, col := findFileAndLine(d.Tok)
	fmt.Fprintf(w, "%s:%d:%d: \033[31m%s:\033[0m %s\n", filename, line, col, d.Kind, d.Msg)
	printSourceLine(w, d.Tok)
}

// Warn prints a warning if it is enabled in the configuration. Warnings
// never abort compilation.
func Warn(cfg *config.Config, wt config.Warning, tok token.Token, format string, args ...interface{}) {
	if cfg == nil || !cfg.IsWarningEnabled(wt) {
		return
	}
	filename, line, col := findFileAndLine(tok)
	warningName := cfg.Warnings[wt].Name
	fmt.Fprintf(os.Stderr, "%s:%d:%d: \033[33mwarning:\033[0m ", filename, line, col)
	fmt.Fprintf(os.Stderr, format, args...)
	fmt.Fprintf(os.Stderr, " [-W%s]\n", warningName)
	printSourceLine(os.Stderr, tok)
}

package lexer

import (
	"testing"

	"github.com/nalgeon/be"
	"github.com/xplshn/ccc/pkg/config"
	"github.com/xplshn/ccc/pkg/token"
	"github.com/xplshn/ccc/pkg/util"
)

func tokenize(t *testing.T, src string) []token.Token {
	t.Helper()
	toks, err := NewLexer([]rune(src), 0, config.NewConfig()).Tokenize()
	be.Err(t, err, nil)
	return toks
}

func tokenizeErr(t *testing.T, src string) *util.Diagnostic {
	t.Helper()
	_, err := NewLexer([]rune(src), 0, config.NewConfig()).Tokenize()
	be.True(t, err != nil)
	d, ok := err.(*util.Diagnostic)
	be.True(t, ok)
	return d
}

func types(toks []token.Token) []token.Type {
	out := make([]token.Type, len(toks))
	for i, tok := range toks {
		out[i] = tok.Type
	}
	return out
}

func TestKeywordsAndIdentifiers(t *testing.T) {
	toks := tokenize(t, "int char if else while return foo _bar x9")
	be.Equal(t, types(toks), []token.Type{
		token.Int, token.Char, token.If, token.Else, token.While, token.Return,
		token.Ident, token.Ident, token.Ident, token.EOF,
	})
	be.Equal(t, toks[6].Value, "foo")
	be.Equal(t, toks[7].Value, "_bar")
	be.Equal(t, toks[8].Value, "x9")
}

func TestOperatorsAndPunctuation(t *testing.T) {
	toks := tokenize(t, "( ) { } [ ] ; , = + - * / & == != < > <= >=")
	be.Equal(t, types(toks), []token.Type{
		token.LParen, token.RParen, token.LBrace, token.RBrace,
		token.LBracket, token.RBracket, token.Semi, token.Comma,
		token.Eq, token.Plus, token.Minus, token.Star, token.Slash,
		token.And, token.EqEq, token.Neq, token.Lt, token.Gt,
		token.Lte, token.Gte, token.EOF,
	})
}

func TestMaximalMunch(t *testing.T) {
	// == must win over = =, <= over < =.
	toks := tokenize(t, "a==b<=c=d")
	be.Equal(t, types(toks), []token.Type{
		token.Ident, token.EqEq, token.Ident, token.Lte,
		token.Ident, token.Eq, token.Ident, token.EOF,
	})
}

func TestNumberLiteral(t *testing.T) {
	toks := tokenize(t, "0 42 1234567890")
	be.Equal(t, toks[0].Value, "0")
	be.Equal(t, toks[1].Value, "42")
	be.Equal(t, toks[2].Value, "1234567890")
}

func TestCharLiteralPlain(t *testing.T) {
	toks := tokenize(t, "'A'")
	be.Equal(t, toks[0].Type, token.CharLit)
	be.Equal(t, toks[0].Value, "65")
}

func TestCharLiteralEscapes(t *testing.T) {
	cases := map[string]string{
		`'\n'`: "10",
		`'\t'`: "9",
		`'\r'`: "13",
		`'\\'`: "92",
		`'\''`: "39",
	}
	for src, want := range cases {
		toks := tokenize(t, src)
		be.Equal(t, toks[0].Type, token.CharLit)
		be.Equal(t, toks[0].Value, want)
	}
}

func TestStringLiteral(t *testing.T) {
	toks := tokenize(t, `"hello"`)
	be.Equal(t, toks[0].Type, token.String)
	be.Equal(t, toks[0].Value, "hello")
}

func TestStringLiteralEscapes(t *testing.T) {
	toks := tokenize(t, `"a\n\t\"b\\"`)
	be.Equal(t, toks[0].Value, "a\n\t\"b\\")
}

func TestEmptyStringLiteral(t *testing.T) {
	toks := tokenize(t, `""`)
	be.Equal(t, toks[0].Type, token.String)
	be.Equal(t, toks[0].Value, "")
}

func TestComments(t *testing.T) {
	toks := tokenize(t, "a // line comment\nb /* block\ncomment */ c")
	be.Equal(t, types(toks), []token.Type{token.Ident, token.Ident, token.Ident, token.EOF})
}

func TestPositions(t *testing.T) {
	toks := tokenize(t, "int\n  foo")
	be.Equal(t, toks[0].Line, 1)
	be.Equal(t, toks[0].Column, 1)
	be.Equal(t, toks[1].Line, 2)
	be.Equal(t, toks[1].Column, 3)
	be.Equal(t, toks[1].Len, 3)
}

func TestUnterminatedString(t *testing.T) {
	d := tokenizeErr(t, `"abc`)
	be.Equal(t, d.Kind, util.LexError)
}

func TestStringMayNotSpanLines(t *testing.T) {
	d := tokenizeErr(t, "\"abc\ndef\"")
	be.Equal(t, d.Kind, util.LexError)
}

func TestEmptyCharLiteral(t *testing.T) {
	d := tokenizeErr(t, "''")
	be.Equal(t, d.Kind, util.LexError)
}

func TestUnterminatedCharLiteral(t *testing.T) {
	d := tokenizeErr(t, "'a")
	be.Equal(t, d.Kind, util.LexError)
}

func TestMultiCharLiteralRejected(t *testing.T) {
	d := tokenizeErr(t, "'ab'")
	be.Equal(t, d.Kind, util.LexError)
}

func TestInvalidEscape(t *testing.T) {
	d := tokenizeErr(t, `'\q'`)
	be.Equal(t, d.Kind, util.LexError)
}

func TestBareBangRejected(t *testing.T) {
	d := tokenizeErr(t, "a ! b")
	be.Equal(t, d.Kind, util.LexError)
}

func TestUnknownCharacter(t *testing.T) {
	d := tokenizeErr(t, "a $ b")
	be.Equal(t, d.Kind, util.LexError)
}

func TestUnterminatedBlockComment(t *testing.T) {
	d := tokenizeErr(t, "a /* never closed")
	be.Equal(t, d.Kind, util.LexError)
}

// Package lexer turns source text into a flat token stream. Whitespace
// and comments are trivia; the first malformed literal or unrecognized
// character aborts the whole scan.
package lexer

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/xplshn/ccc/pkg/config"
	"github.com/xplshn/ccc/pkg/token"
	"github.com/xplshn/ccc/pkg/util"
)

type Lexer struct {
	source    []rune
	fileIndex int
	pos       int
	line      int
	column    int
	cfg       *config.Config
}

func NewLexer(source []rune, fileIndex int, cfg *config.Config) *Lexer {
	return &Lexer{
		source: source, fileIndex: fileIndex, line: 1, column: 1, cfg: cfg,
	}
}

// Tokenize scans the whole input and returns the token stream, including
// the final EOF token.
func (l *Lexer) Tokenize() ([]token.Token, error) {
	var toks []token.Token
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Type == token.EOF {
			return toks, nil
		}
	}
}

func (l *Lexer) Next() (token.Token, error) {
	if err := l.skipTrivia(); err != nil {
		return token.Token{}, err
	}
	startPos, startCol, startLine := l.pos, l.column, l.line

	if l.isAtEnd() {
		return l.makeToken(token.EOF, "", startPos, startCol, startLine), nil
	}

	ch := l.peek()
	if unicode.IsLetter(ch) || ch == '_' {
		l.advance()
		return l.identifierOrKeyword(startPos, startCol, startLine), nil
	}
	if unicode.IsDigit(ch) {
		return l.numberLiteral(startPos, startCol, startLine), nil
	}

	l.advance()
	switch ch {
	case '(':
		return l.makeToken(token.LParen, "", startPos, startCol, startLine), nil
	case ')':
		return l.makeToken(token.RParen, "", startPos, startCol, startLine), nil
	case '{':
		return l.makeToken(token.LBrace, "", startPos, startCol, startLine), nil
	case '}':
		return l.makeToken(token.RBrace, "", startPos, startCol, startLine), nil
	case '[':
		return l.makeToken(token.LBracket, "", startPos, startCol, startLine), nil
	case ']':
		return l.makeToken(token.RBracket, "", startPos, startCol, startLine), nil
	case ';':
		return l.makeToken(token.Semi, "", startPos, startCol, startLine), nil
	case ',':
		return l.makeToken(token.Comma, "", startPos, startCol, startLine), nil
	case '+':
		return l.makeToken(token.Plus, "", startPos, startCol, startLine), nil
	case '-':
		return l.makeToken(token.Minus, "", startPos, startCol, startLine), nil
	case '*':
		return l.makeToken(token.Star, "", startPos, startCol, startLine), nil
	case '/':
		return l.makeToken(token.Slash, "", startPos, startCol, startLine), nil
	case '&':
		return l.makeToken(token.And, "", startPos, startCol, startLine), nil
	case '=':
		return l.matchThen('=', token.EqEq, token.Eq, startPos, startCol, startLine), nil
	case '<':
		return l.matchThen('=', token.Lte, token.Lt, startPos, startCol, startLine), nil
	case '>':
		return l.matchThen('=', token.Gte, token.Gt, startPos, startCol, startLine), nil
	case '!':
		if l.match('=') {
			return l.makeToken(token.Neq, "", startPos, startCol, startLine), nil
		}
		tok := l.makeToken(token.EOF, "", startPos, startCol, startLine)
		return tok, util.Errorf(util.LexError, tok, "unexpected character '!'")
	case '"':
		return l.stringLiteral(startPos, startCol, startLine)
	case '\'':
		return l.charLiteral(startPos, startCol, startLine)
	}

	tok := l.makeToken(token.EOF, "", startPos, startCol, startLine)
	return tok, util.Errorf(util.LexError, tok, "unexpected character '%c'", ch)
}

func (l *Lexer) peek() rune {
	if l.isAtEnd() {
		return 0
	}
	return l.source[l.pos]
}

func (l *Lexer) peekNext() rune {
	if l.pos+1 >= len(l.source) {
		return 0
	}
	return l.source[l.pos+1]
}

func (l *Lexer) advance() rune {
	if l.isAtEnd() {
		return 0
	}
	ch := l.source[l.pos]
	if ch == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	l.pos++
	return ch
}

func (l *Lexer) match(expected rune) bool {
	if l.isAtEnd() || l.source[l.pos] != expected {
		return false
	}
	l.advance()
	return true
}

func (l *Lexer) isAtEnd() bool { return l.pos >= len(l.source) }

func (l *Lexer) makeToken(tokType token.Type, value string, startPos, startCol, startLine int) token.Token {
	return token.Token{
		Type: tokType, Value: value, FileIndex: l.fileIndex,
		Line: startLine, Column: startCol, Len: l.pos - startPos,
	}
}

func (l *Lexer) matchThen(expected rune, thenType, elseType token.Type, sPos, sCol, sLine int) token.Token {
	if l.match(expected) {
		return l.makeToken(thenType, "", sPos, sCol, sLine)
	}
	return l.makeToken(elseType, "", sPos, sCol, sLine)
}

func (l *Lexer) skipTrivia() error {
	for {
		switch l.peek() {
		case ' ', '\t', '\n', '\r':
			l.advance()
		case '/':
			if l.peekNext() == '/' {
				for !l.isAtEnd() && l.peek() != '\n' {
					l.advance()
				}
			} else if l.peekNext() == '*' {
				if err := l.blockComment(); err != nil {
					return err
				}
			} else {
				return nil
			}
		default:
			return nil
		}
	}
}

func (l *Lexer) blockComment() error {
	startTok := l.makeToken(token.EOF, "", l.pos, l.column, l.line)
	l.advance()
	l.advance()
	for !l.isAtEnd() {
		if l.peek() == '*' && l.peekNext() == '/' {
			l.advance()
			l.advance()
			return nil
		}
		l.advance()
	}
	return util.Errorf(util.LexError, startTok, "unterminated block comment")
}

func (l *Lexer) identifierOrKeyword(startPos, startCol, startLine int) token.Token {
	for unicode.IsLetter(l.peek()) || unicode.IsDigit(l.peek()) || l.peek() == '_' {
		l.advance()
	}
	value := string(l.source[startPos:l.pos])
	tok := l.makeToken(token.Ident, value, startPos, startCol, startLine)
	if tokType, isKeyword := token.KeywordMap[value]; isKeyword {
		tok.Type = tokType
		tok.Value = ""
	}
	return tok
}

func (l *Lexer) numberLiteral(startPos, startCol, startLine int) token.Token {
	for unicode.IsDigit(l.peek()) {
		l.advance()
	}
	valueStr := string(l.source[startPos:l.pos])
	tok := l.makeToken(token.Number, valueStr, startPos, startCol, startLine)
	if _, err := strconv.ParseInt(valueStr, 10, 64); err != nil {
		util.Warn(l.cfg, config.WarnOverflow, tok, "integer constant overflow: %s", valueStr)
	}
	return tok
}

// The recognized escapes and their byte values. The same set applies to
// character and string literals; strings additionally accept \".
var escapes = map[rune]int64{
	'n':  10,
	't':  9,
	'r':  13,
	'\\': 92,
	'\'': 39,
}

func (l *Lexer) decodeEscape(inString bool, sPos, sCol, sLine int) (int64, error) {
	if l.isAtEnd() {
		tok := l.makeToken(token.EOF, "", sPos, sCol, sLine)
		return 0, util.Errorf(util.LexError, tok, "unterminated escape sequence")
	}
	c := l.advance()
	if val, ok := escapes[c]; ok {
		return val, nil
	}
	if inString && c == '"' {
		return '"', nil
	}
	tok := l.makeToken(token.EOF, "", sPos, sCol, sLine)
	return 0, util.Errorf(util.LexError, tok, "invalid escape sequence '\\%c'", c)
}

func (l *Lexer) charLiteral(startPos, startCol, startLine int) (token.Token, error) {
	var val int64
	switch {
	case l.isAtEnd() || l.peek() == '\n':
		tok := l.makeToken(token.CharLit, "", startPos, startCol, startLine)
		return tok, util.Errorf(util.LexError, tok, "unterminated character literal")
	case l.peek() == '\'':
		tok := l.makeToken(token.CharLit, "", startPos, startCol, startLine)
		return tok, util.Errorf(util.LexError, tok, "empty character literal")
	case l.peek() == '\\':
		l.advance()
		v, err := l.decodeEscape(false, startPos, startCol, startLine)
		if err != nil {
			return token.Token{}, err
		}
		val = v
	default:
		val = int64(l.advance())
	}

	if !l.match('\'') {
		tok := l.makeToken(token.CharLit, "", startPos, startCol, startLine)
		return tok, util.Errorf(util.LexError, tok, "unterminated character literal")
	}
	tok := l.makeToken(token.CharLit, strconv.FormatInt(val, 10), startPos, startCol, startLine)
	return tok, nil
}

func (l *Lexer) stringLiteral(startPos, startCol, startLine int) (token.Token, error) {
	var sb strings.Builder
	for !l.isAtEnd() {
		c := l.peek()
		if c == '"' {
			l.advance()
			return l.makeToken(token.String, sb.String(), startPos, startCol, startLine), nil
		}
		if c == '\n' {
			break
		}
		if c == '\\' {
			l.advance()
			val, err := l.decodeEscape(true, startPos, startCol, startLine)
			if err != nil {
				return token.Token{}, err
			}
			sb.WriteByte(byte(val))
			continue
		}
		l.advance()
		sb.WriteRune(c)
	}
	tok := l.makeToken(token.String, "", startPos, startCol, startLine)
	return tok, util.Errorf(util.LexError, tok, "unterminated string literal")
}

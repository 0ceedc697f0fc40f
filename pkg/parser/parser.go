// Package parser builds the AST by recursive descent with one token of
// lookahead. There is no error recovery: the first grammar mismatch
// aborts the parse.
package parser

import (
	"strconv"

	"github.com/xplshn/ccc/pkg/ast"
	"github.com/xplshn/ccc/pkg/token"
	"github.com/xplshn/ccc/pkg/util"
)

type Parser struct {
	tokens   []token.Token
	pos      int
	current  token.Token
	previous token.Token
}

// NewParser creates a Parser over a token stream ending in EOF.
func NewParser(tokens []token.Token) *Parser {
	p := &Parser{tokens: tokens}
	if len(tokens) > 0 {
		p.current = p.tokens[0]
	}
	return p
}

func (p *Parser) advance() {
	if p.pos < len(p.tokens) {
		p.previous = p.current
		p.pos++
		if p.pos < len(p.tokens) {
			p.current = p.tokens[p.pos]
		}
	}
}

func (p *Parser) peek() token.Token {
	if p.pos+1 < len(p.tokens) {
		return p.tokens[p.pos+1]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *Parser) check(tokType token.Type) bool { return p.current.Type == tokType }

func (p *Parser) match(tokType token.Type) bool {
	if !p.check(tokType) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) expect(tokType token.Type) error {
	if p.check(tokType) {
		p.advance()
		return nil
	}
	return util.Errorf(util.SyntaxError, p.current, "expected %s, found %s", tokType, p.current.Type)
}

func (p *Parser) syntaxError(format string, args ...interface{}) error {
	return util.Errorf(util.SyntaxError, p.current, format, args...)
}

func (p *Parser) isTypeKeyword() bool {
	return p.check(token.Int) || p.check(token.Char)
}

// Parse consumes the whole stream and returns the Program node.
func (p *Parser) Parse() (*ast.Node, error) {
	progTok := p.current
	var funcs []*ast.Node
	for !p.check(token.EOF) {
		fn, err := p.parseFunctionDef()
		if err != nil {
			return nil, err
		}
		funcs = append(funcs, fn)
	}
	return ast.NewProgram(progTok, funcs), nil
}

// baseType := ('int' | 'char') '*'*
func (p *Parser) parseBaseType() (*ast.CType, error) {
	var typ *ast.CType
	switch {
	case p.match(token.Int):
		typ = ast.TypeInt
	case p.match(token.Char):
		typ = ast.TypeChar
	default:
		return nil, p.syntaxError("expected a type, found %s", p.current.Type)
	}
	for p.match(token.Star) {
		typ = ast.NewPointer(typ)
	}
	return typ, nil
}

// parseFuncPtrSuffix parses the remainder of `T (*name)(T1, T2)` after
// the return type. The '(' '*' prefix has already been consumed.
func (p *Parser) parseFuncPtrSuffix(ret *ast.CType) (string, *ast.CType, error) {
	nameTok := p.current
	if err := p.expect(token.Ident); err != nil {
		return "", nil, err
	}
	if err := p.expect(token.RParen); err != nil {
		return "", nil, err
	}
	if err := p.expect(token.LParen); err != nil {
		return "", nil, err
	}
	var params []*ast.CType
	if !p.check(token.RParen) {
		for {
			pt, err := p.parseBaseType()
			if err != nil {
				return "", nil, err
			}
			params = append(params, pt)
			if !p.match(token.Comma) {
				break
			}
		}
	}
	if err := p.expect(token.RParen); err != nil {
		return "", nil, err
	}
	return nameTok.Value, ast.NewFuncPtr(params, ret), nil
}

// declarator := baseType Ident | baseType '(' '*' Ident ')' '(' TypeList? ')'
func (p *Parser) parseDeclarator() (string, *ast.CType, token.Token, error) {
	typ, err := p.parseBaseType()
	if err != nil {
		return "", nil, token.Token{}, err
	}
	if p.check(token.LParen) && p.peek().Type == token.Star {
		p.advance() // (
		p.advance() // *
		name, fpType, err := p.parseFuncPtrSuffix(typ)
		if err != nil {
			return "", nil, token.Token{}, err
		}
		return name, fpType, p.previous, nil
	}
	nameTok := p.current
	if err := p.expect(token.Ident); err != nil {
		return "", nil, token.Token{}, err
	}
	return nameTok.Value, typ, nameTok, nil
}

// FunctionDef := Type Ident '(' Params? ')' Block
func (p *Parser) parseFunctionDef() (*ast.Node, error) {
	startTok := p.current
	retType, err := p.parseBaseType()
	if err != nil {
		return nil, err
	}
	nameTok := p.current
	if err := p.expect(token.Ident); err != nil {
		return nil, err
	}
	if err := p.expect(token.LParen); err != nil {
		return nil, err
	}

	var params []*ast.Node
	if !p.check(token.RParen) {
		for {
			pname, ptype, ptok, err := p.parseDeclarator()
			if err != nil {
				return nil, err
			}
			params = append(params, ast.NewVarDecl(ptok, pname, ptype, nil))
			if !p.match(token.Comma) {
				break
			}
		}
	}
	if err := p.expect(token.RParen); err != nil {
		return nil, err
	}

	if !p.check(token.LBrace) {
		return nil, p.syntaxError("expected %s, found %s", token.LBrace, p.current.Type)
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return ast.NewFuncDecl(startTok, nameTok.Value, params, body, retType), nil
}

func (p *Parser) parseBlock() (*ast.Node, error) {
	braceTok := p.current
	if err := p.expect(token.LBrace); err != nil {
		return nil, err
	}
	var stmts []*ast.Node
	for !p.check(token.RBrace) && !p.check(token.EOF) {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	if err := p.expect(token.RBrace); err != nil {
		return nil, err
	}
	return ast.NewBlock(braceTok, stmts), nil
}

func (p *Parser) parseStatement() (*ast.Node, error) {
	switch {
	case p.check(token.LBrace):
		return p.parseBlock()
	case p.check(token.If):
		return p.parseIf()
	case p.check(token.While):
		return p.parseWhile()
	case p.check(token.Return):
		return p.parseReturn()
	case p.isTypeKeyword():
		return p.parseVarDecl()
	default:
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(token.Semi); err != nil {
			return nil, err
		}
		return expr, nil
	}
}

// VarDecl := Type Ident ('[' IntLiteral ']')? (';' | '=' Expr ';')
//
//	| Type '(' '*' Ident ')' '(' TypeList? ')' (';' | '=' Expr ';')
func (p *Parser) parseVarDecl() (*ast.Node, error) {
	startTok := p.current
	name, typ, _, err := p.parseDeclarator()
	if err != nil {
		return nil, err
	}

	if typ.Kind != ast.TYPE_FUNC_PTR && p.check(token.LBracket) {
		p.advance()
		sizeTok := p.current
		if err := p.expect(token.Number); err != nil {
			return nil, err
		}
		size, err := strconv.ParseInt(sizeTok.Value, 10, 64)
		if err != nil || size <= 0 {
			return nil, util.Errorf(util.SyntaxError, sizeTok, "array size must be a positive constant")
		}
		if err := p.expect(token.RBracket); err != nil {
			return nil, err
		}
		typ = ast.NewArray(typ, size)
	}

	var init *ast.Node
	if p.match(token.Eq) {
		init, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	if err := p.expect(token.Semi); err != nil {
		return nil, err
	}
	return ast.NewVarDecl(startTok, name, typ, init), nil
}

// If := 'if' '(' Expr ')' Block ('else' Block)?
func (p *Parser) parseIf() (*ast.Node, error) {
	ifTok := p.current
	p.advance()
	if err := p.expect(token.LParen); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expect(token.RParen); err != nil {
		return nil, err
	}
	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	var elseBody *ast.Node
	if p.match(token.Else) {
		elseBody, err = p.parseBlock()
		if err != nil {
			return nil, err
		}
	}
	return ast.NewIf(ifTok, cond, then, elseBody), nil
}

// While := 'while' '(' Expr ')' Block
func (p *Parser) parseWhile() (*ast.Node, error) {
	whileTok := p.current
	p.advance()
	if err := p.expect(token.LParen); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expect(token.RParen); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return ast.NewWhile(whileTok, cond, body), nil
}

func (p *Parser) parseReturn() (*ast.Node, error) {
	retTok := p.current
	p.advance()
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expect(token.Semi); err != nil {
		return nil, err
	}
	return ast.NewReturn(retTok, expr), nil
}

// Expression parsing. Precedence, low to high: assignment, equality,
// relational, additive, multiplicative, unary & * -, postfix call/index.
func getBinaryOpPrecedence(op token.Type) int {
	switch op {
	case token.Star, token.Slash:
		return 13
	case token.Plus, token.Minus:
		return 12
	case token.Lt, token.Gt, token.Lte, token.Gte:
		return 10
	case token.EqEq, token.Neq:
		return 9
	default:
		return -1
	}
}

func (p *Parser) parseExpr() (*ast.Node, error) { return p.parseAssignmentExpr() }

func (p *Parser) parseAssignmentExpr() (*ast.Node, error) {
	left, err := p.parseBinaryExpr(0)
	if err != nil {
		return nil, err
	}
	if p.check(token.Eq) {
		eqTok := p.current
		p.advance()
		right, err := p.parseAssignmentExpr()
		if err != nil {
			return nil, err
		}
		return ast.NewAssign(eqTok, left, right), nil
	}
	return left, nil
}

func (p *Parser) parseBinaryExpr(minPrec int) (*ast.Node, error) {
	left, err := p.parseUnaryExpr()
	if err != nil {
		return nil, err
	}
	for {
		op := p.current.Type
		prec := getBinaryOpPrecedence(op)
		if prec < minPrec {
			return left, nil
		}
		opTok := p.current
		p.advance()
		right, err := p.parseBinaryExpr(prec + 1)
		if err != nil {
			return nil, err
		}
		left = ast.NewBinaryOp(opTok, op, left, right)
	}
}

func (p *Parser) parseUnaryExpr() (*ast.Node, error) {
	tok := p.current
	switch {
	case p.match(token.Star):
		operand, err := p.parseUnaryExpr()
		if err != nil {
			return nil, err
		}
		return ast.NewIndirection(tok, operand), nil
	case p.match(token.And):
		operand, err := p.parseUnaryExpr()
		if err != nil {
			return nil, err
		}
		return ast.NewAddressOf(tok, operand), nil
	case p.match(token.Minus):
		operand, err := p.parseUnaryExpr()
		if err != nil {
			return nil, err
		}
		return ast.NewUnaryOp(tok, token.Minus, operand), nil
	default:
		return p.parsePostfixExpr()
	}
}

func (p *Parser) parsePostfixExpr() (*ast.Node, error) {
	expr, err := p.parsePrimaryExpr()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.current
		if p.match(token.LParen) {
			var args []*ast.Node
			if !p.check(token.RParen) {
				for {
					arg, err := p.parseAssignmentExpr()
					if err != nil {
						return nil, err
					}
					args = append(args, arg)
					if !p.match(token.Comma) {
						break
					}
				}
			}
			if err := p.expect(token.RParen); err != nil {
				return nil, err
			}
			expr = ast.NewFuncCall(tok, expr, args)
		} else if p.match(token.LBracket) {
			index, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expect(token.RBracket); err != nil {
				return nil, err
			}
			expr = ast.NewSubscript(tok, expr, index)
		} else {
			return expr, nil
		}
	}
}

func (p *Parser) parsePrimaryExpr() (*ast.Node, error) {
	tok := p.current
	switch {
	case p.match(token.Number):
		return ast.NewNumber(tok, decimalValue(p.previous.Value)), nil
	case p.match(token.CharLit):
		val, _ := strconv.ParseInt(p.previous.Value, 10, 64)
		return ast.NewCharLit(tok, val), nil
	case p.match(token.String):
		return ast.NewString(tok, p.previous.Value), nil
	case p.match(token.Ident):
		return ast.NewIdent(tok, p.previous.Value), nil
	case p.match(token.LParen):
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(token.RParen); err != nil {
			return nil, err
		}
		return expr, nil
	default:
		return nil, p.syntaxError("expected an expression, found %s", tok.Type)
	}
}

// decimalValue accumulates a digit string with wrapping arithmetic, so
// an oversized literal keeps its low bits instead of clamping. Emission
// narrows the result further to the 32-bit value the instructions use.
func decimalValue(s string) int64 {
	var v uint64
	for i := 0; i < len(s); i++ {
		v = v*10 + uint64(s[i]-'0')
	}
	return int64(v)
}

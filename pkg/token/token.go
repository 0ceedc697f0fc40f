package token

type Type int

const (
	EOF Type = iota
	Ident
	Number
	CharLit
	String
	Int
	Char
	If
	Else
	While
	Return
	LParen
	RParen
	LBrace
	RBrace
	LBracket
	RBracket
	Semi
	Comma
	Eq
	Plus
	Minus
	Star
	Slash
	And
	EqEq
	Neq
	Lt
	Gt
	Lte
	Gte
)

var KeywordMap = map[string]Type{
	"int":    Int,
	"char":   Char,
	"if":     If,
	"else":   Else,
	"while":  While,
	"return": Return,
}

var names = map[Type]string{
	EOF:      "end of file",
	Ident:    "identifier",
	Number:   "integer literal",
	CharLit:  "character literal",
	String:   "string literal",
	Int:      "'int'",
	Char:     "'char'",
	If:       "'if'",
	Else:     "'else'",
	While:    "'while'",
	Return:   "'return'",
	LParen:   "'('",
	RParen:   "')'",
	LBrace:   "'{'",
	RBrace:   "'}'",
	LBracket: "'['",
	RBracket: "']'",
	Semi:     "';'",
	Comma:    "','",
	Eq:       "'='",
	Plus:     "'+'",
	Minus:    "'-'",
	Star:     "'*'",
	Slash:    "'/'",
	And:      "'&'",
	EqEq:     "'=='",
	Neq:      "'!='",
	Lt:       "'<'",
	Gt:       "'>'",
	Lte:      "'<='",
	Gte:      "'>='",
}

func (t Type) String() string {
	if s, ok := names[t]; ok {
		return s
	}
	return "unknown token"
}

// Token is a single lexeme with its source position. Value holds the
// identifier spelling, the decimal digits of a number or character
// literal, or the decoded bytes of a string literal.
type Token struct {
	Type      Type
	Value     string
	FileIndex int
	Line      int
	Column    int
	Len       int
}

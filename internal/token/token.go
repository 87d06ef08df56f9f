package token

// TokenType identifies the lexical class of a token.
type TokenType int

const (
	ILLEGAL TokenType = iota
	EOF

	// Literals and names
	INT      // 123, 0x7f, 0b101, 017, with optional u/l/ll suffixes
	FLOAT    // 1.5, 2e10, 3.0f
	CHAR     // 'a'
	IDENT    // foo, MyClass
	REGISTER // $reg(rax) -- Lexeme holds the register name

	// Arithmetic
	PLUS    // +
	MINUS   // -
	STAR    // * (also dereference)
	SLASH   // /
	PERCENT // %

	// Bitwise
	AMP    // & (also address-of)
	PIPE   // |
	CARET  // ^
	TILDE  // ~
	SHL    // <<
	SHR    // >>

	// Comparison
	EQ // ==
	NE // !=
	LT // <
	GT // >
	LE // <=
	GE // >=

	// Logic
	BANG   // !
	ANDAND // &&
	OROR   // ||

	// Assignment
	ASSIGN // =

	// Structure
	DOT         // .
	ARROW       // ->
	COMMA       // ,
	SEMICOLON   // ;
	COLON       // :
	COLONCOLON  // ::
	QUESTION    // ?
	LPAREN      // (
	RPAREN      // )
	LBRACKET    // [
	RBRACKET    // ]
	LBRACE      // {
	RBRACE      // }

	// Keywords
	TRUE
	FALSE
	AUTO
	IF
	ELSE
	WHILE
	BREAK
	CONST
	VOLATILE
	SIZEOF
	STATIC_CAST
	REINTERPRET_CAST
	AS // Rust cast
	LET
	MUT
)

// Token is a single lexical token with its position in the input.
// Offset is the byte offset of the first character; error reporting
// appends it to messages so users can locate the offending token.
type Token struct {
	Type   TokenType
	Lexeme string
	Line   int
	Column int
	Offset int
}

// IsComparison returns true for the six comparison operators.
func (t Token) IsComparison() bool {
	switch t.Type {
	case EQ, NE, LT, GT, LE, GE:
		return true
	}
	return false
}

var keywords = map[string]TokenType{
	"true":             TRUE,
	"false":            FALSE,
	"auto":             AUTO,
	"if":               IF,
	"else":             ELSE,
	"while":            WHILE,
	"break":            BREAK,
	"const":            CONST,
	"volatile":         VOLATILE,
	"sizeof":           SIZEOF,
	"static_cast":      STATIC_CAST,
	"reinterpret_cast": REINTERPRET_CAST,
	"as":               AS,
	"let":              LET,
	"mut":              MUT,
}

// LookupIdent maps an identifier lexeme to its keyword type, or IDENT.
func LookupIdent(ident string) TokenType {
	if tt, ok := keywords[ident]; ok {
		return tt
	}
	return IDENT
}

var names = map[TokenType]string{
	ILLEGAL: "ILLEGAL", EOF: "EOF",
	INT: "INT", FLOAT: "FLOAT", CHAR: "CHAR", IDENT: "IDENT", REGISTER: "REGISTER",
	PLUS: "+", MINUS: "-", STAR: "*", SLASH: "/", PERCENT: "%",
	AMP: "&", PIPE: "|", CARET: "^", TILDE: "~", SHL: "<<", SHR: ">>",
	EQ: "==", NE: "!=", LT: "<", GT: ">", LE: "<=", GE: ">=",
	BANG: "!", ANDAND: "&&", OROR: "||", ASSIGN: "=",
	DOT: ".", ARROW: "->", COMMA: ",", SEMICOLON: ";", COLON: ":",
	COLONCOLON: "::", QUESTION: "?",
	LPAREN: "(", RPAREN: ")", LBRACKET: "[", RBRACKET: "]", LBRACE: "{", RBRACE: "}",
	TRUE: "true", FALSE: "false", AUTO: "auto", IF: "if", ELSE: "else",
	WHILE: "while", BREAK: "break", CONST: "const", VOLATILE: "volatile",
	SIZEOF: "sizeof", STATIC_CAST: "static_cast", REINTERPRET_CAST: "reinterpret_cast",
	AS: "as", LET: "let", MUT: "mut",
}

// String returns a printable name for the token type.
func (tt TokenType) String() string {
	if n, ok := names[tt]; ok {
		return n
	}
	return "UNKNOWN"
}

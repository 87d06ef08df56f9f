package ast

import (
	"github.com/funvibe/fundbg/internal/token"
)

// Node is the base interface for all AST nodes.
type Node interface {
	TokenLiteral() string
}

// Statement is a Node that represents a statement.
type Statement interface {
	Node
	statementNode()
	GetToken() token.Token
}

// Expression is a Node that represents an expression.
type Expression interface {
	Node
	expressionNode()
	GetToken() token.Token
}

// Program is the root node: one or more ';'-separated statements. A
// plain expression is a Program with a single ExpressionStatement.
type Program struct {
	Statements []Statement
}

func (p *Program) TokenLiteral() string {
	if len(p.Statements) > 0 {
		return p.Statements[0].TokenLiteral()
	}
	return ""
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// ExpressionStatement wraps an expression used as a statement.
type ExpressionStatement struct {
	Token      token.Token
	Expression Expression
}

func (es *ExpressionStatement) statementNode()       {}
func (es *ExpressionStatement) TokenLiteral() string { return es.Token.Lexeme }
func (es *ExpressionStatement) GetToken() token.Token {
	if es == nil {
		return token.Token{}
	}
	return es.Token
}

// DeclarationStatement declares a debugger-local variable:
// auto x = expr (C) or let x = expr (Rust).
type DeclarationStatement struct {
	Token token.Token // the 'auto' or 'let' token
	Name  string
	Value Expression
}

func (ds *DeclarationStatement) statementNode()       {}
func (ds *DeclarationStatement) TokenLiteral() string { return ds.Token.Lexeme }
func (ds *DeclarationStatement) GetToken() token.Token {
	if ds == nil {
		return token.Token{}
	}
	return ds.Token
}

// BlockStatement is a braced statement list.
type BlockStatement struct {
	Token      token.Token // the '{' token
	Statements []Statement
}

func (bs *BlockStatement) statementNode()       {}
func (bs *BlockStatement) TokenLiteral() string { return bs.Token.Lexeme }
func (bs *BlockStatement) GetToken() token.Token {
	if bs == nil {
		return token.Token{}
	}
	return bs.Token
}

// IfStatement: if (cond) { ... } [else { ... } | else if ...].
type IfStatement struct {
	Token token.Token
	Cond  Expression
	Then  *BlockStatement
	Else  Statement // *BlockStatement or *IfStatement, may be nil
}

func (is *IfStatement) statementNode()       {}
func (is *IfStatement) TokenLiteral() string { return is.Token.Lexeme }
func (is *IfStatement) GetToken() token.Token {
	if is == nil {
		return token.Token{}
	}
	return is.Token
}

// WhileStatement: while (cond) { ... }.
type WhileStatement struct {
	Token token.Token
	Cond  Expression
	Body  *BlockStatement
}

func (ws *WhileStatement) statementNode()       {}
func (ws *WhileStatement) TokenLiteral() string { return ws.Token.Lexeme }
func (ws *WhileStatement) GetToken() token.Token {
	if ws == nil {
		return token.Token{}
	}
	return ws.Token
}

// BreakStatement exits the innermost enclosing loop.
type BreakStatement struct {
	Token token.Token
}

func (bs *BreakStatement) statementNode()       {}
func (bs *BreakStatement) TokenLiteral() string { return bs.Token.Lexeme }
func (bs *BreakStatement) GetToken() token.Token {
	if bs == nil {
		return token.Token{}
	}
	return bs.Token
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// IntegerLiteral holds the unparsed spelling; value and type selection
// happen during compilation via StringToNumber so that language rules
// (C vs Rust suffixes) apply.
type IntegerLiteral struct {
	Token token.Token
}

func (il *IntegerLiteral) expressionNode()      {}
func (il *IntegerLiteral) TokenLiteral() string { return il.Token.Lexeme }
func (il *IntegerLiteral) GetToken() token.Token {
	if il == nil {
		return token.Token{}
	}
	return il.Token
}

// FloatLiteral holds an unparsed floating point spelling.
type FloatLiteral struct {
	Token token.Token
}

func (fl *FloatLiteral) expressionNode()      {}
func (fl *FloatLiteral) TokenLiteral() string { return fl.Token.Lexeme }
func (fl *FloatLiteral) GetToken() token.Token {
	if fl == nil {
		return token.Token{}
	}
	return fl.Token
}

// CharLiteral is a character constant; the token lexeme is the decoded
// character.
type CharLiteral struct {
	Token token.Token
}

func (cl *CharLiteral) expressionNode()      {}
func (cl *CharLiteral) TokenLiteral() string { return cl.Token.Lexeme }
func (cl *CharLiteral) GetToken() token.Token {
	if cl == nil {
		return token.Token{}
	}
	return cl.Token
}

// BoolLiteral is true or false.
type BoolLiteral struct {
	Token token.Token
	Value bool
}

func (bl *BoolLiteral) expressionNode()      {}
func (bl *BoolLiteral) TokenLiteral() string { return bl.Token.Lexeme }
func (bl *BoolLiteral) GetToken() token.Token {
	if bl == nil {
		return token.Token{}
	}
	return bl.Token
}

// Identifier names a variable, possibly qualified: a, Foo::bar.
type Identifier struct {
	Token token.Token
	Name  string // full name including :: qualifiers
}

func (id *Identifier) expressionNode()      {}
func (id *Identifier) TokenLiteral() string { return id.Token.Lexeme }
func (id *Identifier) GetToken() token.Token {
	if id == nil {
		return token.Token{}
	}
	return id.Token
}

// RegisterExpression is $reg(name) or $name.
type RegisterExpression struct {
	Token token.Token
	Name  string // lower-case register name
}

func (re *RegisterExpression) expressionNode()      {}
func (re *RegisterExpression) TokenLiteral() string { return re.Token.Lexeme }
func (re *RegisterExpression) GetToken() token.Token {
	if re == nil {
		return token.Token{}
	}
	return re.Token
}

// PrefixExpression is a unary operator application: -x, !x, ~x, *p, &v.
type PrefixExpression struct {
	Token    token.Token // the operator token
	Operator string
	Right    Expression
}

func (pe *PrefixExpression) expressionNode()      {}
func (pe *PrefixExpression) TokenLiteral() string { return pe.Token.Lexeme }
func (pe *PrefixExpression) GetToken() token.Token {
	if pe == nil {
		return token.Token{}
	}
	return pe.Token
}

// InfixExpression is a binary operator application, including
// assignment (operator "=").
type InfixExpression struct {
	Token    token.Token // the operator token
	Operator string
	Left     Expression
	Right    Expression
}

func (ie *InfixExpression) expressionNode()      {}
func (ie *InfixExpression) TokenLiteral() string { return ie.Token.Lexeme }
func (ie *InfixExpression) GetToken() token.Token {
	if ie == nil {
		return token.Token{}
	}
	return ie.Token
}

// TernaryExpression is cond ? then : else.
type TernaryExpression struct {
	Token token.Token // the '?' token
	Cond  Expression
	Then  Expression
	Else  Expression
}

func (te *TernaryExpression) expressionNode()      {}
func (te *TernaryExpression) TokenLiteral() string { return te.Token.Lexeme }
func (te *TernaryExpression) GetToken() token.Token {
	if te == nil {
		return token.Token{}
	}
	return te.Token
}

// IndexExpression is array indexing: a[i].
type IndexExpression struct {
	Token token.Token // the '[' token
	Left  Expression
	Index Expression
}

func (ix *IndexExpression) expressionNode()      {}
func (ix *IndexExpression) TokenLiteral() string { return ix.Token.Lexeme }
func (ix *IndexExpression) GetToken() token.Token {
	if ix == nil {
		return token.Token{}
	}
	return ix.Token
}

// MemberExpression is member access: a.b or p->b.
type MemberExpression struct {
	Token  token.Token // the '.' or '->' token
	Object Expression
	Member string
	Arrow  bool // true for ->
}

func (me *MemberExpression) expressionNode()      {}
func (me *MemberExpression) TokenLiteral() string { return me.Token.Lexeme }
func (me *MemberExpression) GetToken() token.Token {
	if me == nil {
		return token.Token{}
	}
	return me.Token
}

// CastKind distinguishes the explicit cast spellings. Implicit casts
// have no AST node; they are applied by assignment and operator logic.
type CastKind int

const (
	CastCStyle CastKind = iota // (T)x
	CastStatic                 // static_cast<T>(x)
	CastReinterpret            // reinterpret_cast<T>(x)
	CastRustAs                 // x as T
)

func (k CastKind) String() string {
	switch k {
	case CastCStyle:
		return "C cast"
	case CastStatic:
		return "static_cast"
	case CastReinterpret:
		return "reinterpret_cast"
	case CastRustAs:
		return "as"
	}
	return "cast"
}

// CastExpression applies an explicit cast to the operand.
type CastExpression struct {
	Token   token.Token
	Kind    CastKind
	Type    *TypeExpression
	Operand Expression
}

func (ce *CastExpression) expressionNode()      {}
func (ce *CastExpression) TokenLiteral() string { return ce.Token.Lexeme }
func (ce *CastExpression) GetToken() token.Token {
	if ce == nil {
		return token.Token{}
	}
	return ce.Token
}

// SizeofExpression is sizeof(T) or sizeof(expr).
type SizeofExpression struct {
	Token   token.Token
	Type    *TypeExpression // nil when Operand is set
	Operand Expression
}

func (se *SizeofExpression) expressionNode()      {}
func (se *SizeofExpression) TokenLiteral() string { return se.Token.Lexeme }
func (se *SizeofExpression) GetToken() token.Token {
	if se == nil {
		return token.Token{}
	}
	return se.Token
}

// TypeExpression is the syntactic form of a type in a cast: a name plus
// modifier suffixes, e.g. "const Foo*&". Resolution against the symbol
// system happens at evaluation time.
type TypeExpression struct {
	Token token.Token
	// Name is the base type name, e.g. "unsigned int", "Foo::Bar".
	Name string
	// Modifiers apply left to right: each is '*' or '&'.
	Modifiers []byte
	Const     bool
	Volatile  bool
}

func (te *TypeExpression) expressionNode()      {}
func (te *TypeExpression) TokenLiteral() string { return te.Token.Lexeme }
func (te *TypeExpression) GetToken() token.Token {
	if te == nil {
		return token.Token{}
	}
	return te.Token
}

// String reconstructs the type spelling.
func (te *TypeExpression) String() string {
	s := te.Name
	if te.Const {
		s = "const " + s
	}
	if te.Volatile {
		s = "volatile " + s
	}
	for _, m := range te.Modifiers {
		s += string(m)
	}
	return s
}

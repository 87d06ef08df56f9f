package parser

import (
	"fmt"
	"strings"

	"github.com/funvibe/fundbg/internal/ast"
	"github.com/funvibe/fundbg/internal/lexer"
	"github.com/funvibe/fundbg/internal/token"
)

// Operator precedence, lowest first.
const (
	LOWEST = iota
	ASSIGNMENT // = (right associative)
	TERNARY    // ?:
	LOGIC_OR   // ||
	LOGIC_AND  // &&
	BIT_OR     // |
	BIT_XOR    // ^
	BIT_AND    // &
	EQUALITY   // == !=
	RELATIONAL // < > <= >=
	SHIFT      // << >>
	SUM        // + -
	PRODUCT    // * / %
	CAST       // x as T
	PREFIX     // -x !x ~x *p &v
	POSTFIX    // a[i] a.b p->b
)

var precedences = map[token.TokenType]int{
	token.ASSIGN:   ASSIGNMENT,
	token.QUESTION: TERNARY,
	token.OROR:     LOGIC_OR,
	token.ANDAND:   LOGIC_AND,
	token.PIPE:     BIT_OR,
	token.CARET:    BIT_XOR,
	token.AMP:      BIT_AND,
	token.EQ:       EQUALITY,
	token.NE:       EQUALITY,
	token.LT:       RELATIONAL,
	token.GT:       RELATIONAL,
	token.LE:       RELATIONAL,
	token.GE:       RELATIONAL,
	token.SHL:      SHIFT,
	token.SHR:      SHIFT,
	token.PLUS:     SUM,
	token.MINUS:    SUM,
	token.STAR:     PRODUCT,
	token.SLASH:    PRODUCT,
	token.PERCENT:  PRODUCT,
	token.AS:       CAST,
	token.LBRACKET: POSTFIX,
	token.DOT:      POSTFIX,
	token.ARROW:    POSTFIX,
}

// MaxRecursionDepth bounds expression nesting so pathological input
// cannot exhaust the Go stack.
const MaxRecursionDepth = 200

type prefixParseFn func() ast.Expression
type infixParseFn func(ast.Expression) ast.Expression

// Parser builds an expression AST from a token stream.
type Parser struct {
	tokens []token.Token
	pos    int

	curToken  token.Token
	peekToken token.Token

	prefixParseFns map[token.TokenType]prefixParseFn
	infixParseFns  map[token.TokenType]infixParseFn

	depth  int
	errors []error
}

// New creates a parser over an already-tokenized input.
func New(tokens []token.Token) *Parser {
	p := &Parser{tokens: tokens}

	p.prefixParseFns = map[token.TokenType]prefixParseFn{
		token.INT:              p.parseIntegerLiteral,
		token.FLOAT:            p.parseFloatLiteral,
		token.CHAR:             p.parseCharLiteral,
		token.TRUE:             p.parseBoolLiteral,
		token.FALSE:            p.parseBoolLiteral,
		token.IDENT:            p.parseIdentifier,
		token.REGISTER:         p.parseRegister,
		token.MINUS:            p.parsePrefixExpression,
		token.BANG:             p.parsePrefixExpression,
		token.TILDE:            p.parsePrefixExpression,
		token.STAR:             p.parsePrefixExpression,
		token.AMP:              p.parsePrefixExpression,
		token.LPAREN:           p.parseGroupOrCast,
		token.STATIC_CAST:      p.parseNamedCast,
		token.REINTERPRET_CAST: p.parseNamedCast,
		token.SIZEOF:           p.parseSizeof,
	}

	p.infixParseFns = map[token.TokenType]infixParseFn{
		token.PLUS:     p.parseInfixExpression,
		token.MINUS:    p.parseInfixExpression,
		token.STAR:     p.parseInfixExpression,
		token.SLASH:    p.parseInfixExpression,
		token.PERCENT:  p.parseInfixExpression,
		token.AMP:      p.parseInfixExpression,
		token.PIPE:     p.parseInfixExpression,
		token.CARET:    p.parseInfixExpression,
		token.SHL:      p.parseInfixExpression,
		token.SHR:      p.parseInfixExpression,
		token.EQ:       p.parseInfixExpression,
		token.NE:       p.parseInfixExpression,
		token.LT:       p.parseInfixExpression,
		token.GT:       p.parseInfixExpression,
		token.LE:       p.parseInfixExpression,
		token.GE:       p.parseInfixExpression,
		token.ANDAND:   p.parseInfixExpression,
		token.OROR:     p.parseInfixExpression,
		token.ASSIGN:   p.parseAssignExpression,
		token.QUESTION: p.parseTernaryExpression,
		token.LBRACKET: p.parseIndexExpression,
		token.DOT:      p.parseMemberExpression,
		token.ARROW:    p.parseMemberExpression,
		token.AS:       p.parseAsCast,
	}

	// Prime curToken and peekToken.
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses an expression string end to end.
func Parse(input string) (*ast.Program, error) {
	p := New(lexer.New(input).Tokenize())
	return p.ParseProgram()
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	if p.pos < len(p.tokens) {
		p.peekToken = p.tokens[p.pos]
		p.pos++
	} else if len(p.tokens) > 0 {
		p.peekToken = p.tokens[len(p.tokens)-1] // EOF
	}
}

func (p *Parser) curTokenIs(t token.TokenType) bool  { return p.curToken.Type == t }
func (p *Parser) peekTokenIs(t token.TokenType) bool { return p.peekToken.Type == t }

func (p *Parser) peekPrecedence() int {
	if prec, ok := precedences[p.peekToken.Type]; ok {
		return prec
	}
	return LOWEST
}

func (p *Parser) curPrecedence() int {
	if prec, ok := precedences[p.curToken.Type]; ok {
		return prec
	}
	return LOWEST
}

func (p *Parser) expectPeek(t token.TokenType) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.errorf(p.peekToken, "expected %q, got %q", t.String(), p.peekToken.Lexeme)
	return false
}

func (p *Parser) errorf(tok token.Token, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	p.errors = append(p.errors, fmt.Errorf("%s (offset %d)", msg, tok.Offset))
}

// ParseProgram parses a ';'-separated statement sequence.
func (p *Parser) ParseProgram() (*ast.Program, error) {
	program := &ast.Program{}
	for !p.curTokenIs(token.EOF) {
		if p.curTokenIs(token.SEMICOLON) {
			p.nextToken()
			continue
		}
		stmt := p.parseStatement()
		if len(p.errors) > 0 {
			return nil, p.errors[0]
		}
		program.Statements = append(program.Statements, stmt)
		p.nextToken()
		if p.curTokenIs(token.SEMICOLON) {
			p.nextToken()
		}
	}
	if len(program.Statements) == 0 {
		return nil, fmt.Errorf("empty expression")
	}
	return program, nil
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (p *Parser) parseStatement() ast.Statement {
	switch p.curToken.Type {
	case token.AUTO, token.LET:
		return p.parseDeclaration()
	case token.IF:
		return p.parseIfStatement()
	case token.WHILE:
		return p.parseWhileStatement()
	case token.BREAK:
		return &ast.BreakStatement{Token: p.curToken}
	case token.LBRACE:
		return p.parseBlockStatement()
	default:
		stmt := &ast.ExpressionStatement{Token: p.curToken}
		stmt.Expression = p.parseExpression(LOWEST)
		return stmt
	}
}

func (p *Parser) parseDeclaration() ast.Statement {
	decl := &ast.DeclarationStatement{Token: p.curToken}
	if p.curTokenIs(token.LET) && p.peekTokenIs(token.MUT) {
		p.nextToken()
	}
	if !p.expectPeek(token.IDENT) {
		return decl
	}
	decl.Name = p.curToken.Lexeme
	if !p.expectPeek(token.ASSIGN) {
		return decl
	}
	p.nextToken()
	decl.Value = p.parseExpression(LOWEST)
	return decl
}

func (p *Parser) parseIfStatement() ast.Statement {
	stmt := &ast.IfStatement{Token: p.curToken}
	if !p.expectPeek(token.LPAREN) {
		return stmt
	}
	p.nextToken()
	stmt.Cond = p.parseExpression(LOWEST)
	if !p.expectPeek(token.RPAREN) {
		return stmt
	}
	if !p.expectPeek(token.LBRACE) {
		return stmt
	}
	stmt.Then = p.parseBlockStatement()
	if p.peekTokenIs(token.ELSE) {
		p.nextToken()
		if p.peekTokenIs(token.IF) {
			p.nextToken()
			stmt.Else = p.parseIfStatement()
		} else if p.expectPeek(token.LBRACE) {
			stmt.Else = p.parseBlockStatement()
		}
	}
	return stmt
}

func (p *Parser) parseWhileStatement() ast.Statement {
	stmt := &ast.WhileStatement{Token: p.curToken}
	if !p.expectPeek(token.LPAREN) {
		return stmt
	}
	p.nextToken()
	stmt.Cond = p.parseExpression(LOWEST)
	if !p.expectPeek(token.RPAREN) {
		return stmt
	}
	if !p.expectPeek(token.LBRACE) {
		return stmt
	}
	stmt.Body = p.parseBlockStatement()
	return stmt
}

// parseBlockStatement parses '{ stmt; stmt; ... }' with curToken on '{'.
func (p *Parser) parseBlockStatement() *ast.BlockStatement {
	block := &ast.BlockStatement{Token: p.curToken}
	p.nextToken()
	for !p.curTokenIs(token.RBRACE) && !p.curTokenIs(token.EOF) {
		if p.curTokenIs(token.SEMICOLON) {
			p.nextToken()
			continue
		}
		block.Statements = append(block.Statements, p.parseStatement())
		if len(p.errors) > 0 {
			return block
		}
		p.nextToken()
	}
	if !p.curTokenIs(token.RBRACE) {
		p.errorf(p.curToken, "expected \"}\"")
	}
	return block
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (p *Parser) parseExpression(precedence int) ast.Expression {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > MaxRecursionDepth {
		p.errorf(p.curToken, "expression too complex: recursion depth limit exceeded")
		return nil
	}

	prefix := p.prefixParseFns[p.curToken.Type]
	if prefix == nil {
		p.errorf(p.curToken, "unexpected token %q", p.curToken.Lexeme)
		return nil
	}
	leftExp := prefix()
	if leftExp == nil {
		return nil
	}

	for precedence < p.peekPrecedence() {
		infix := p.infixParseFns[p.peekToken.Type]
		if infix == nil {
			return leftExp
		}
		p.nextToken()
		leftExp = infix(leftExp)
		if leftExp == nil {
			return nil
		}
	}
	return leftExp
}

func (p *Parser) parseIntegerLiteral() ast.Expression {
	return &ast.IntegerLiteral{Token: p.curToken}
}

func (p *Parser) parseFloatLiteral() ast.Expression {
	return &ast.FloatLiteral{Token: p.curToken}
}

func (p *Parser) parseCharLiteral() ast.Expression {
	return &ast.CharLiteral{Token: p.curToken}
}

func (p *Parser) parseBoolLiteral() ast.Expression {
	return &ast.BoolLiteral{Token: p.curToken, Value: p.curTokenIs(token.TRUE)}
}

// parseIdentifier handles plain and ::-qualified names.
func (p *Parser) parseIdentifier() ast.Expression {
	ident := &ast.Identifier{Token: p.curToken, Name: p.curToken.Lexeme}
	for p.peekTokenIs(token.COLONCOLON) {
		p.nextToken()
		if !p.expectPeek(token.IDENT) {
			return nil
		}
		ident.Name += "::" + p.curToken.Lexeme
	}
	return ident
}

func (p *Parser) parseRegister() ast.Expression {
	return &ast.RegisterExpression{Token: p.curToken, Name: p.curToken.Lexeme}
}

func (p *Parser) parsePrefixExpression() ast.Expression {
	expression := &ast.PrefixExpression{
		Token:    p.curToken,
		Operator: p.curToken.Lexeme,
	}
	p.nextToken()
	expression.Right = p.parseExpression(PREFIX)
	if expression.Right == nil {
		return nil
	}
	return expression
}

func (p *Parser) parseInfixExpression(left ast.Expression) ast.Expression {
	expression := &ast.InfixExpression{
		Token:    p.curToken,
		Operator: p.curToken.Lexeme,
		Left:     left,
	}
	precedence := p.curPrecedence()
	p.nextToken()
	expression.Right = p.parseExpression(precedence)
	if expression.Right == nil {
		return nil
	}
	return expression
}

// parseAssignExpression is right associative: a = b = c.
func (p *Parser) parseAssignExpression(left ast.Expression) ast.Expression {
	expression := &ast.InfixExpression{
		Token:    p.curToken,
		Operator: p.curToken.Lexeme,
		Left:     left,
	}
	p.nextToken()
	expression.Right = p.parseExpression(ASSIGNMENT - 1)
	if expression.Right == nil {
		return nil
	}
	return expression
}

func (p *Parser) parseTernaryExpression(cond ast.Expression) ast.Expression {
	expression := &ast.TernaryExpression{Token: p.curToken, Cond: cond}
	p.nextToken()
	expression.Then = p.parseExpression(LOWEST)
	if expression.Then == nil {
		return nil
	}
	if !p.expectPeek(token.COLON) {
		return nil
	}
	p.nextToken()
	expression.Else = p.parseExpression(TERNARY - 1)
	if expression.Else == nil {
		return nil
	}
	return expression
}

func (p *Parser) parseIndexExpression(left ast.Expression) ast.Expression {
	expression := &ast.IndexExpression{Token: p.curToken, Left: left}
	p.nextToken()
	expression.Index = p.parseExpression(LOWEST)
	if expression.Index == nil {
		return nil
	}
	if !p.expectPeek(token.RBRACKET) {
		return nil
	}
	return expression
}

func (p *Parser) parseMemberExpression(left ast.Expression) ast.Expression {
	expression := &ast.MemberExpression{
		Token:  p.curToken,
		Object: left,
		Arrow:  p.curTokenIs(token.ARROW),
	}
	if !p.expectPeek(token.IDENT) {
		return nil
	}
	expression.Member = p.curToken.Lexeme
	return expression
}

// parseNamedCast parses static_cast<T>(x) and reinterpret_cast<T>(x).
func (p *Parser) parseNamedCast() ast.Expression {
	expression := &ast.CastExpression{Token: p.curToken}
	if p.curTokenIs(token.STATIC_CAST) {
		expression.Kind = ast.CastStatic
	} else {
		expression.Kind = ast.CastReinterpret
	}
	if !p.expectPeek(token.LT) {
		return nil
	}
	p.nextToken()
	expression.Type = p.parseTypeExpression()
	if expression.Type == nil {
		return nil
	}
	if !p.expectPeek(token.GT) {
		return nil
	}
	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	p.nextToken()
	expression.Operand = p.parseExpression(LOWEST)
	if expression.Operand == nil {
		return nil
	}
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	return expression
}

// parseAsCast parses the Rust spelling: x as T.
func (p *Parser) parseAsCast(left ast.Expression) ast.Expression {
	expression := &ast.CastExpression{
		Token:   p.curToken,
		Kind:    ast.CastRustAs,
		Operand: left,
	}
	p.nextToken()
	expression.Type = p.parseTypeExpression()
	if expression.Type == nil {
		return nil
	}
	return expression
}

func (p *Parser) parseSizeof() ast.Expression {
	expression := &ast.SizeofExpression{Token: p.curToken}
	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	p.nextToken()
	if p.looksLikeType() {
		expression.Type = p.parseTypeExpression()
		if expression.Type == nil {
			return nil
		}
	} else {
		expression.Operand = p.parseExpression(LOWEST)
		if expression.Operand == nil {
			return nil
		}
	}
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	return expression
}

// parseGroupOrCast disambiguates "(expr)" from a C-style cast "(T)x".
// A cast requires the parenthesized tokens to read as a type (builtin
// type words, or a name followed by * or & modifiers) and the token
// after ')' to begin a unary expression. Class-typed C casts without
// modifiers are not recognized; static_cast covers those.
func (p *Parser) parseGroupOrCast() ast.Expression {
	lparen := p.curToken
	p.nextToken()

	if p.looksLikeType() {
		save := p.savePoint()
		typeExpr := p.parseTypeExpression()
		if typeExpr != nil && p.peekTokenIs(token.RPAREN) {
			p.nextToken() // onto ')'
			if p.startsUnary(p.peekToken.Type) {
				cast := &ast.CastExpression{Token: lparen, Kind: ast.CastCStyle, Type: typeExpr}
				p.nextToken()
				cast.Operand = p.parseExpression(PREFIX)
				if cast.Operand == nil {
					return nil
				}
				return cast
			}
		}
		p.restore(save)
	}

	exp := p.parseExpression(LOWEST)
	if exp == nil {
		return nil
	}
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	return exp
}

type savePoint struct {
	pos       int
	curToken  token.Token
	peekToken token.Token
	numErrors int
}

func (p *Parser) savePoint() savePoint {
	return savePoint{pos: p.pos, curToken: p.curToken, peekToken: p.peekToken, numErrors: len(p.errors)}
}

func (p *Parser) restore(s savePoint) {
	p.pos = s.pos
	p.curToken = s.curToken
	p.peekToken = s.peekToken
	p.errors = p.errors[:s.numErrors]
}

// builtinTypeWords are spellings that definitely begin a type.
var builtinTypeWords = map[string]bool{
	"void": true, "bool": true, "char": true, "short": true, "int": true,
	"long": true, "float": true, "double": true, "signed": true, "unsigned": true,
	"int8_t": true, "int16_t": true, "int32_t": true, "int64_t": true,
	"uint8_t": true, "uint16_t": true, "uint32_t": true, "uint64_t": true,
	"size_t": true, "ssize_t": true, "intptr_t": true, "uintptr_t": true,
	"i8": true, "i16": true, "i32": true, "i64": true,
	"u8": true, "u16": true, "u32": true, "u64": true,
	"f32": true, "f64": true, "usize": true, "isize": true,
}

func (p *Parser) looksLikeType() bool {
	switch p.curToken.Type {
	case token.CONST, token.VOLATILE:
		return true
	case token.IDENT:
		if builtinTypeWords[p.curToken.Lexeme] {
			return true
		}
		// "Name*" / "Name&" / "Name::..." also read as types.
		return p.peekTokenIs(token.STAR) || p.peekTokenIs(token.AMP) || p.peekTokenIs(token.COLONCOLON)
	}
	return false
}

// startsUnary reports whether tt can begin a unary expression, used by
// the C-cast heuristic.
func (p *Parser) startsUnary(tt token.TokenType) bool {
	switch tt {
	case token.INT, token.FLOAT, token.CHAR, token.IDENT, token.REGISTER,
		token.TRUE, token.FALSE, token.LPAREN, token.MINUS, token.BANG,
		token.TILDE, token.STAR, token.AMP, token.SIZEOF,
		token.STATIC_CAST, token.REINTERPRET_CAST:
		return true
	}
	return false
}

// parseTypeExpression parses a type spelling with curToken on its first
// token; on success curToken is the last token of the type.
func (p *Parser) parseTypeExpression() *ast.TypeExpression {
	typeExpr := &ast.TypeExpression{Token: p.curToken}

	for p.curTokenIs(token.CONST) || p.curTokenIs(token.VOLATILE) {
		if p.curTokenIs(token.CONST) {
			typeExpr.Const = true
		} else {
			typeExpr.Volatile = true
		}
		p.nextToken()
	}

	if !p.curTokenIs(token.IDENT) {
		p.errorf(p.curToken, "expected type name, got %q", p.curToken.Lexeme)
		return nil
	}

	var words []string
	words = append(words, p.curToken.Lexeme)

	if multiwordTypeStart[p.curToken.Lexeme] {
		// "unsigned long long", "signed char", "long double" etc.
		for p.peekTokenIs(token.IDENT) && builtinTypeWords[p.peekToken.Lexeme] {
			p.nextToken()
			words = append(words, p.curToken.Lexeme)
		}
	} else {
		for p.peekTokenIs(token.COLONCOLON) {
			p.nextToken()
			if !p.expectPeek(token.IDENT) {
				return nil
			}
			words[0] += "::" + p.curToken.Lexeme
		}
	}
	typeExpr.Name = strings.Join(words, " ")

	for {
		if p.peekTokenIs(token.STAR) {
			p.nextToken()
			typeExpr.Modifiers = append(typeExpr.Modifiers, '*')
		} else if p.peekTokenIs(token.AMP) {
			p.nextToken()
			typeExpr.Modifiers = append(typeExpr.Modifiers, '&')
		} else if p.peekTokenIs(token.CONST) || p.peekTokenIs(token.VOLATILE) {
			// "Foo* const" -- qualifier on the pointer itself; accepted
			// and ignored for evaluation purposes.
			p.nextToken()
		} else {
			return typeExpr
		}
	}
}

var multiwordTypeStart = map[string]bool{
	"signed": true, "unsigned": true, "long": true, "short": true,
}

package lexer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/funvibe/fundbg/internal/token"
)

// Lexer tokenizes a single debugger expression. Expressions are one
// logical line; newlines are plain whitespace here.
type Lexer struct {
	input        string
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           rune // current char under examination
	line         int  // current line number
	column       int  // current column number
}

func New(input string) *Lexer {
	l := &Lexer{input: input, line: 1, column: 0}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.column = 0
	}

	if l.readPosition >= len(l.input) {
		l.ch = 0
		l.position = l.readPosition
		l.readPosition++
		l.column++
		return
	}

	r, w := utf8.DecodeRuneInString(l.input[l.readPosition:])
	l.ch = r
	l.position = l.readPosition
	l.readPosition += w
	l.column++
}

func (l *Lexer) peekChar() rune {
	if l.readPosition >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPosition:])
	return r
}

// Tokenize consumes the whole input and returns the token stream,
// terminated by an EOF token.
func (l *Lexer) Tokenize() []token.Token {
	var tokens []token.Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == token.EOF {
			return tokens
		}
	}
}

func (l *Lexer) NextToken() token.Token {
	l.skipWhitespace()

	line, col, off := l.line, l.column, l.position

	var tok token.Token
	switch l.ch {
	case 0:
		return token.Token{Type: token.EOF, Lexeme: "", Line: line, Column: col, Offset: off}
	case '+':
		tok = l.makeToken(token.PLUS, "+")
	case '*':
		tok = l.makeToken(token.STAR, "*")
	case '/':
		tok = l.makeToken(token.SLASH, "/")
	case '%':
		tok = l.makeToken(token.PERCENT, "%")
	case '~':
		tok = l.makeToken(token.TILDE, "~")
	case '^':
		tok = l.makeToken(token.CARET, "^")
	case '.':
		if isDigit(l.peekChar()) {
			return l.readNumber(line, col, off)
		}
		tok = l.makeToken(token.DOT, ".")
	case ',':
		tok = l.makeToken(token.COMMA, ",")
	case ';':
		tok = l.makeToken(token.SEMICOLON, ";")
	case '?':
		tok = l.makeToken(token.QUESTION, "?")
	case '(':
		tok = l.makeToken(token.LPAREN, "(")
	case ')':
		tok = l.makeToken(token.RPAREN, ")")
	case '[':
		tok = l.makeToken(token.LBRACKET, "[")
	case ']':
		tok = l.makeToken(token.RBRACKET, "]")
	case '{':
		tok = l.makeToken(token.LBRACE, "{")
	case '}':
		tok = l.makeToken(token.RBRACE, "}")
	case '-':
		if l.peekChar() == '>' {
			l.readChar()
			tok = l.makeToken(token.ARROW, "->")
		} else {
			tok = l.makeToken(token.MINUS, "-")
		}
	case '=':
		if l.peekChar() == '=' {
			l.readChar()
			tok = l.makeToken(token.EQ, "==")
		} else {
			tok = l.makeToken(token.ASSIGN, "=")
		}
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			tok = l.makeToken(token.NE, "!=")
		} else {
			tok = l.makeToken(token.BANG, "!")
		}
	case '<':
		if l.peekChar() == '=' {
			l.readChar()
			tok = l.makeToken(token.LE, "<=")
		} else if l.peekChar() == '<' {
			l.readChar()
			tok = l.makeToken(token.SHL, "<<")
		} else {
			tok = l.makeToken(token.LT, "<")
		}
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			tok = l.makeToken(token.GE, ">=")
		} else if l.peekChar() == '>' {
			l.readChar()
			tok = l.makeToken(token.SHR, ">>")
		} else {
			tok = l.makeToken(token.GT, ">")
		}
	case '&':
		if l.peekChar() == '&' {
			l.readChar()
			tok = l.makeToken(token.ANDAND, "&&")
		} else {
			tok = l.makeToken(token.AMP, "&")
		}
	case '|':
		if l.peekChar() == '|' {
			l.readChar()
			tok = l.makeToken(token.OROR, "||")
		} else {
			tok = l.makeToken(token.PIPE, "|")
		}
	case ':':
		if l.peekChar() == ':' {
			l.readChar()
			tok = l.makeToken(token.COLONCOLON, "::")
		} else {
			tok = l.makeToken(token.COLON, ":")
		}
	case '$':
		return l.readRegister(line, col, off)
	case '\'':
		return l.readCharLiteral(line, col, off)
	default:
		if isDigit(l.ch) || (l.ch == '.' && isDigit(l.peekChar())) {
			return l.readNumber(line, col, off)
		}
		if isIdentStart(l.ch) {
			return l.readIdentifier(line, col, off)
		}
		tok = l.makeToken(token.ILLEGAL, string(l.ch))
	}

	tok.Line, tok.Column, tok.Offset = line, col, off
	l.readChar()
	return tok
}

func (l *Lexer) makeToken(tt token.TokenType, lexeme string) token.Token {
	return token.Token{Type: tt, Lexeme: lexeme}
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}
}

// readNumber consumes an integer or float literal. The lexeme keeps the
// full spelling including radix prefix and any suffix letters; value and
// type selection happen later in expr.StringToNumber.
func (l *Lexer) readNumber(line, col, off int) token.Token {
	start := l.position
	isFloat := false

	if l.ch == '0' && (l.peekChar() == 'x' || l.peekChar() == 'X' ||
		l.peekChar() == 'b' || l.peekChar() == 'B') {
		l.readChar() // radix letter
		l.readChar()
		for isHexDigit(l.ch) || l.ch == '_' {
			l.readChar()
		}
	} else {
		for isDigit(l.ch) || l.ch == '_' {
			l.readChar()
		}
		if l.ch == '.' && isDigit(l.peekChar()) {
			isFloat = true
			l.readChar()
			for isDigit(l.ch) {
				l.readChar()
			}
		}
		if l.ch == 'e' || l.ch == 'E' {
			next := l.peekChar()
			if isDigit(next) || next == '+' || next == '-' {
				isFloat = true
				l.readChar()
				if l.ch == '+' || l.ch == '-' {
					l.readChar()
				}
				for isDigit(l.ch) {
					l.readChar()
				}
			}
		}
	}

	// Type suffixes: u/U, l/L, f/F and Rust spellings like i32/u64 are
	// consumed as part of the literal.
	for isIdentCont(l.ch) {
		if l.ch == 'f' || l.ch == 'F' {
			isFloat = true
		}
		l.readChar()
	}

	tt := token.INT
	if isFloat {
		tt = token.FLOAT
	}
	return token.Token{Type: tt, Lexeme: l.input[start:l.position], Line: line, Column: col, Offset: off}
}

// readRegister consumes $reg(name) or the shorthand $name.
func (l *Lexer) readRegister(line, col, off int) token.Token {
	l.readChar() // skip '$'
	start := l.position
	for isIdentCont(l.ch) {
		l.readChar()
	}
	word := l.input[start:l.position]

	if word == "reg" && l.ch == '(' {
		l.readChar() // skip '('
		nameStart := l.position
		for isIdentCont(l.ch) {
			l.readChar()
		}
		name := l.input[nameStart:l.position]
		if l.ch != ')' || name == "" {
			return token.Token{Type: token.ILLEGAL, Lexeme: "$reg(" + name, Line: line, Column: col, Offset: off}
		}
		l.readChar() // skip ')'
		return token.Token{Type: token.REGISTER, Lexeme: strings.ToLower(name), Line: line, Column: col, Offset: off}
	}

	if word == "" {
		return token.Token{Type: token.ILLEGAL, Lexeme: "$", Line: line, Column: col, Offset: off}
	}
	return token.Token{Type: token.REGISTER, Lexeme: strings.ToLower(word), Line: line, Column: col, Offset: off}
}

// readCharLiteral consumes 'c' or a simple escape like '\n'. The lexeme
// holds the character itself, not the quotes.
func (l *Lexer) readCharLiteral(line, col, off int) token.Token {
	l.readChar() // skip opening quote
	var c rune
	if l.ch == '\\' {
		l.readChar()
		switch l.ch {
		case 'n':
			c = '\n'
		case 't':
			c = '\t'
		case 'r':
			c = '\r'
		case '0':
			c = 0
		default:
			c = l.ch
		}
	} else {
		c = l.ch
	}
	l.readChar()
	if l.ch != '\'' {
		return token.Token{Type: token.ILLEGAL, Lexeme: string(c), Line: line, Column: col, Offset: off}
	}
	l.readChar() // skip closing quote
	return token.Token{Type: token.CHAR, Lexeme: string(c), Line: line, Column: col, Offset: off}
}

func (l *Lexer) readIdentifier(line, col, off int) token.Token {
	start := l.position
	for isIdentCont(l.ch) {
		l.readChar()
	}
	lexeme := l.input[start:l.position]
	return token.Token{Type: token.LookupIdent(lexeme), Lexeme: lexeme, Line: line, Column: col, Offset: off}
}

func isDigit(ch rune) bool { return ch >= '0' && ch <= '9' }

func isHexDigit(ch rune) bool {
	return isDigit(ch) || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}

func isIdentStart(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch)
}

func isIdentCont(ch rune) bool {
	return isIdentStart(ch) || isDigit(ch)
}

// Package lexer provides lexical analysis for the SQL subset accepted by sqlbridge.
// It tokenizes a statement into keywords, names, literals, positional parameters
// and symbols while keeping byte offsets so callers can quote fragments verbatim.
package lexer

import (
	"fmt"
	"strconv"
	"strings"
)

// Lexer tokenizes a SQL statement.
//
// Lexer instances are not safe for concurrent use; create one per statement.
type Lexer struct {
	source  string     // Statement text
	start   int        // Start position of current token
	current int        // Current position in source
	line    int        // Current line number (1-indexed)
	column  int        // Current column number (1-indexed)
	tokens  []Token    // Collected tokens
	errors  []LexError // Collected errors
}

// New creates a new Lexer for the given statement
func New(source string) *Lexer {
	return &Lexer{
		source:  source,
		start:   0,
		current: 0,
		line:    1,
		column:  1,
		tokens:  make([]Token, 0),
		errors:  make([]LexError, 0),
	}
}

// ScanTokens tokenizes the entire statement and returns tokens and errors.
// The token slice always ends with TOKEN_EOF.
func (l *Lexer) ScanTokens() ([]Token, []LexError) {
	for !l.isAtEnd() {
		l.start = l.current
		l.scanToken()
	}

	l.tokens = append(l.tokens, Token{
		Type:   TOKEN_EOF,
		Lexeme: "",
		Start:  len(l.source),
		End:    len(l.source),
		Line:   l.line,
		Column: l.column,
	})

	return l.tokens, l.errors
}

// Tokenize is a convenience wrapper around New(source).ScanTokens()
func Tokenize(source string) ([]Token, []LexError) {
	return New(source).ScanTokens()
}

//nolint:gocyclo,cyclop // Lexer dispatch function
func (l *Lexer) scanToken() {
	c := l.advance()

	switch {
	case c == ' ' || c == '\r' || c == '\t':
		// Ignore whitespace
	case c == '\n':
		l.line++
		l.column = 1
	case c == '(':
		l.addToken(TOKEN_LPAREN)
	case c == ')':
		l.addToken(TOKEN_RPAREN)
	case c == ',':
		l.addToken(TOKEN_COMMA)
	case c == '*':
		l.addToken(TOKEN_STAR)
	case c == ';':
		l.addToken(TOKEN_SEMICOLON)
	case c == '=':
		l.addToken(TOKEN_EQUALS)
	case c == '!':
		if l.match('=') {
			l.addToken(TOKEN_NEQ)
		} else {
			l.addToken(TOKEN_OTHER)
		}
	case c == '<':
		l.scanLessThanToken()
	case c == '>':
		if l.match('=') {
			l.addToken(TOKEN_GTE)
		} else {
			l.addToken(TOKEN_GT)
		}
	case c == ':':
		if l.match(':') {
			l.addToken(TOKEN_DOUBLE_COLON)
		} else {
			l.addToken(TOKEN_OTHER)
		}
	case c == '-':
		if l.peek() == '-' {
			l.lineComment()
		} else {
			l.addToken(TOKEN_OTHER)
		}
	case c == '/':
		if l.peek() == '*' {
			l.blockComment()
		} else {
			l.addToken(TOKEN_OTHER)
		}
	case c == '.':
		if l.isDigit(l.peek()) {
			l.number()
		} else {
			l.addToken(TOKEN_DOT)
		}
	case c == '$':
		l.param()
	case c == '\'':
		l.string()
	case c == '"':
		l.quotedIdentifier()
	case l.isDigit(c):
		l.number()
	case l.isAlpha(c):
		l.identifier()
	default:
		l.addToken(TOKEN_OTHER)
	}
}

// scanLessThanToken handles <, <= and <>
func (l *Lexer) scanLessThanToken() {
	if l.match('=') {
		l.addToken(TOKEN_LTE)
	} else if l.match('>') {
		l.addToken(TOKEN_NEQ)
	} else {
		l.addToken(TOKEN_LT)
	}
}

// lineComment skips a -- comment up to the end of the line
func (l *Lexer) lineComment() {
	for l.peek() != '\n' && !l.isAtEnd() {
		l.advance()
	}
}

// blockComment skips a /* ... */ comment
func (l *Lexer) blockComment() {
	l.advance() // *
	for !l.isAtEnd() {
		if l.peek() == '*' && l.peekNext() == '/' {
			l.advance()
			l.advance()
			return
		}
		if l.peek() == '\n' {
			l.line++
			l.column = 0
		}
		l.advance()
	}
	l.addError("Unterminated block comment")
}

// param handles $n positional placeholders
func (l *Lexer) param() {
	if !l.isDigit(l.peek()) {
		l.addToken(TOKEN_OTHER)
		return
	}
	for l.isDigit(l.peek()) {
		l.advance()
	}

	index, err := strconv.Atoi(l.source[l.start+1 : l.current])
	if err != nil {
		l.addError(fmt.Sprintf("Invalid parameter: %s", l.source[l.start:l.current]))
		return
	}
	l.addTokenWithLiteral(TOKEN_PARAM, index)
}

// string handles single-quoted string literals; '' is an escaped quote
func (l *Lexer) string() {
	startLine := l.line
	startColumn := l.column - 1
	value := strings.Builder{}

	for !l.isAtEnd() {
		c := l.peek()
		if c == '\'' {
			if l.peekNext() == '\'' {
				l.advance()
				l.advance()
				value.WriteByte('\'')
				continue
			}
			break
		}
		if c == '\n' {
			l.line++
			l.column = 0
		}
		value.WriteByte(l.advance())
	}

	if l.isAtEnd() {
		l.addError(fmt.Sprintf("Unterminated string starting at %d:%d", startLine, startColumn))
		return
	}

	// Consume closing '
	l.advance()

	l.tokens = append(l.tokens, Token{
		Type:    TOKEN_STRING_LITERAL,
		Lexeme:  l.source[l.start:l.current],
		Literal: value.String(),
		Start:   l.start,
		End:     l.current,
		Line:    startLine,
		Column:  startColumn,
	})
}

// quotedIdentifier handles "double quoted" names; "" is an escaped quote
func (l *Lexer) quotedIdentifier() {
	value := strings.Builder{}

	for !l.isAtEnd() {
		c := l.peek()
		if c == '"' {
			if l.peekNext() == '"' {
				l.advance()
				l.advance()
				value.WriteByte('"')
				continue
			}
			break
		}
		value.WriteByte(l.advance())
	}

	if l.isAtEnd() {
		l.addError("Unterminated quoted identifier")
		return
	}

	l.advance()
	l.addTokenWithLiteral(TOKEN_QUOTED_IDENTIFIER, value.String())
}

// number handles integer and decimal literals
func (l *Lexer) number() {
	for l.isDigit(l.peek()) {
		l.advance()
	}

	isFloat := strings.Contains(l.source[l.start:l.current], ".")
	if !isFloat && l.peek() == '.' && l.isDigit(l.peekNext()) {
		isFloat = true
		l.advance()
		for l.isDigit(l.peek()) {
			l.advance()
		}
	}

	lexeme := l.source[l.start:l.current]
	if isFloat {
		value, err := strconv.ParseFloat(lexeme, 64)
		if err != nil {
			l.addError(fmt.Sprintf("Invalid numeric literal: %s", lexeme))
			return
		}
		l.addTokenWithLiteral(TOKEN_NUMBER_LITERAL, value)
		return
	}

	value, err := strconv.ParseInt(lexeme, 10, 64)
	if err != nil {
		l.addError(fmt.Sprintf("Invalid integer literal: %s", lexeme))
		return
	}
	l.addTokenWithLiteral(TOKEN_NUMBER_LITERAL, value)
}

// identifier handles identifiers and keywords
func (l *Lexer) identifier() {
	for l.isAlphaNumeric(l.peek()) {
		l.advance()
	}

	text := l.source[l.start:l.current]
	tokenType, isKeyword := Keywords[strings.ToLower(text)]
	if !isKeyword {
		tokenType = TOKEN_IDENTIFIER
	}
	l.addToken(tokenType)
}

// Helper methods

func (l *Lexer) isAtEnd() bool {
	return l.current >= len(l.source)
}

func (l *Lexer) advance() byte {
	if l.isAtEnd() {
		return 0
	}
	c := l.source[l.current]
	l.current++
	l.column++
	return c
}

func (l *Lexer) match(expected byte) bool {
	if l.isAtEnd() || l.source[l.current] != expected {
		return false
	}
	l.current++
	l.column++
	return true
}

func (l *Lexer) peek() byte {
	if l.isAtEnd() {
		return 0
	}
	return l.source[l.current]
}

func (l *Lexer) peekNext() byte {
	if l.current+1 >= len(l.source) {
		return 0
	}
	return l.source[l.current+1]
}

func (l *Lexer) isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// isAlpha accepts ASCII letters, underscore and any non-ASCII byte so UTF-8
// column names survive tokenization
func (l *Lexer) isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		c == '_' ||
		c >= 0x80
}

func (l *Lexer) isAlphaNumeric(c byte) bool {
	return l.isAlpha(c) || l.isDigit(c)
}

func (l *Lexer) addToken(tokenType TokenType) {
	l.addTokenWithLiteral(tokenType, nil)
}

func (l *Lexer) addTokenWithLiteral(tokenType TokenType, literal interface{}) {
	l.tokens = append(l.tokens, Token{
		Type:    tokenType,
		Lexeme:  l.source[l.start:l.current],
		Literal: literal,
		Start:   l.start,
		End:     l.current,
		Line:    l.line,
		Column:  l.column - (l.current - l.start),
	})
}

// addError records a lexical error and emits a TOKEN_ERROR in its place so the
// parser can mark the surrounding fragment unsupported
func (l *Lexer) addError(message string) {
	end := l.current
	if end > l.start+20 {
		end = l.start + 20
	}
	lexeme := l.source[l.start:end]

	l.errors = append(l.errors, LexError{
		Message: message,
		Line:    l.line,
		Column:  l.column - (l.current - l.start),
		Lexeme:  lexeme,
	})
	l.addToken(TOKEN_ERROR)
}

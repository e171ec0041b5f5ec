package parser

import (
	"fmt"
	"strings"

	"github.com/Julianb233/sierra-fred-carey-sub003/internal/sqlbridge/lexer"
)

// ParseError represents a structural error in a statement. A statement with parse
// errors is never executed.
type ParseError struct {
	Message string
	Line    int
	Column  int
	Token   lexer.Token
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.Token.Type == lexer.TOKEN_EOF {
		return fmt.Sprintf("Parse error at %d:%d: %s (at end of statement)",
			e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("Parse error at %d:%d: %s (near '%s')",
		e.Line, e.Column, e.Message, e.Token.Lexeme)
}

// NewParseError creates a new parse error
func NewParseError(message string, token lexer.Token) ParseError {
	return ParseError{
		Message: message,
		Line:    token.Line,
		Column:  token.Column,
		Token:   token,
	}
}

// Errors joins a list of parse errors into one error value, nil when empty
func Errors(errs []ParseError) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return &errs[0]
	}
	msgs := make([]string, 0, len(errs))
	for i := range errs {
		msgs = append(msgs, errs[i].Error())
	}
	return fmt.Errorf("%d parse errors: %s", len(errs), strings.Join(msgs, "; "))
}

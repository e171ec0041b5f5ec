package lexer

import (
	"fmt"
	"strings"
)

// TokenType represents the type of a token in a SQL statement
type TokenType int

const (
	// TOKEN_EOF marks the end of the token stream.
	TOKEN_EOF TokenType = iota
	// TOKEN_ERROR represents a lexical error encountered during scanning.
	TOKEN_ERROR

	// Statement keywords
	TOKEN_SELECT
	TOKEN_INSERT
	TOKEN_INTO
	TOKEN_VALUES
	TOKEN_UPDATE
	TOKEN_SET
	TOKEN_DELETE
	TOKEN_FROM
	TOKEN_RETURNING

	// Clause keywords
	TOKEN_WHERE
	TOKEN_ORDER
	TOKEN_ASC
	TOKEN_DESC
	TOKEN_LIMIT
	TOKEN_OFFSET
	TOKEN_ON
	TOKEN_AS

	// Expression keywords
	TOKEN_AND
	TOKEN_OR
	TOKEN_NOT
	TOKEN_IS
	TOKEN_NULL
	TOKEN_TRUE
	TOKEN_FALSE
	TOKEN_CASE
	TOKEN_WHEN
	TOKEN_THEN
	TOKEN_ELSE

	// Literals and names
	TOKEN_IDENTIFIER        // user_id, created_at
	TOKEN_QUOTED_IDENTIFIER // "userEmail"
	TOKEN_STRING_LITERAL    // 'active'
	TOKEN_NUMBER_LITERAL    // 42, 3.5
	TOKEN_PARAM             // $1

	// Symbols
	TOKEN_LPAREN       // (
	TOKEN_RPAREN       // )
	TOKEN_COMMA        // ,
	TOKEN_STAR         // *
	TOKEN_DOT          // .
	TOKEN_SEMICOLON    // ;
	TOKEN_EQUALS       // =
	TOKEN_NEQ          // != or <>
	TOKEN_LT           // <
	TOKEN_GT           // >
	TOKEN_LTE          // <=
	TOKEN_GTE          // >=
	TOKEN_DOUBLE_COLON // ::

	// TOKEN_OTHER is any character the grammar has no use for (operators like
	// ||, ~, +). It never aborts a scan; the fragment holding it becomes unsupported.
	TOKEN_OTHER
)

// TokenTypeNames maps token types to their string representations
var TokenTypeNames = map[TokenType]string{
	TOKEN_EOF:               "EOF",
	TOKEN_ERROR:             "ERROR",
	TOKEN_SELECT:            "SELECT",
	TOKEN_INSERT:            "INSERT",
	TOKEN_INTO:              "INTO",
	TOKEN_VALUES:            "VALUES",
	TOKEN_UPDATE:            "UPDATE",
	TOKEN_SET:               "SET",
	TOKEN_DELETE:            "DELETE",
	TOKEN_FROM:              "FROM",
	TOKEN_RETURNING:         "RETURNING",
	TOKEN_WHERE:             "WHERE",
	TOKEN_ORDER:             "ORDER",
	TOKEN_ASC:               "ASC",
	TOKEN_DESC:              "DESC",
	TOKEN_LIMIT:             "LIMIT",
	TOKEN_OFFSET:            "OFFSET",
	TOKEN_ON:                "ON",
	TOKEN_AS:                "AS",
	TOKEN_AND:               "AND",
	TOKEN_OR:                "OR",
	TOKEN_NOT:               "NOT",
	TOKEN_IS:                "IS",
	TOKEN_NULL:              "NULL",
	TOKEN_TRUE:              "TRUE",
	TOKEN_FALSE:             "FALSE",
	TOKEN_CASE:              "CASE",
	TOKEN_WHEN:              "WHEN",
	TOKEN_THEN:              "THEN",
	TOKEN_ELSE:              "ELSE",
	TOKEN_IDENTIFIER:        "IDENTIFIER",
	TOKEN_QUOTED_IDENTIFIER: "QUOTED_IDENTIFIER",
	TOKEN_STRING_LITERAL:    "STRING_LITERAL",
	TOKEN_NUMBER_LITERAL:    "NUMBER_LITERAL",
	TOKEN_PARAM:             "PARAM",
	TOKEN_LPAREN:            "LPAREN",
	TOKEN_RPAREN:            "RPAREN",
	TOKEN_COMMA:             "COMMA",
	TOKEN_STAR:              "STAR",
	TOKEN_DOT:               "DOT",
	TOKEN_SEMICOLON:         "SEMICOLON",
	TOKEN_EQUALS:            "EQUALS",
	TOKEN_NEQ:               "NEQ",
	TOKEN_LT:                "LT",
	TOKEN_GT:                "GT",
	TOKEN_LTE:               "LTE",
	TOKEN_GTE:               "GTE",
	TOKEN_DOUBLE_COLON:      "DOUBLE_COLON",
	TOKEN_OTHER:             "OTHER",
}

// String returns the string representation of a TokenType
func (t TokenType) String() string {
	if name, ok := TokenTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", t)
}

// Token represents a single lexical token of a SQL statement
type Token struct {
	Type    TokenType   // The type of the token
	Lexeme  string      // The raw text of the token
	Literal interface{} // Parsed value: param index, string contents, unquoted identifier
	Start   int         // Byte offset of the first character
	End     int         // Byte offset one past the last character
	Line    int         // Line number (1-indexed)
	Column  int         // Column number (1-indexed)
}

// String returns a string representation of the token
func (t Token) String() string {
	if t.Literal != nil {
		return fmt.Sprintf("%s '%s' (%v) at %d:%d",
			t.Type.String(), t.Lexeme, t.Literal, t.Line, t.Column)
	}
	return fmt.Sprintf("%s '%s' at %d:%d",
		t.Type.String(), t.Lexeme, t.Line, t.Column)
}

// Is reports whether the token is a bare identifier spelled word, ignoring case.
// Contextual words (BY, CONFLICT, DO, NOTHING, NULLS, END, FIRST, LAST,
// COALESCE, NOW) are matched this way so they stay usable as column names.
func (t Token) Is(word string) bool {
	return t.Type == TOKEN_IDENTIFIER && strings.EqualFold(t.Lexeme, word)
}

// Name returns the identifier a name token stands for: the lexeme for bare
// identifiers, the unquoted text for quoted identifiers.
func (t Token) Name() string {
	if t.Type == TOKEN_QUOTED_IDENTIFIER {
		if s, ok := t.Literal.(string); ok {
			return s
		}
	}
	return t.Lexeme
}

// IsName reports whether the token can name a table, column or alias
func (t Token) IsName() bool {
	return t.Type == TOKEN_IDENTIFIER || t.Type == TOKEN_QUOTED_IDENTIFIER
}

// Keywords maps reserved words (lower case) to their token types
var Keywords = map[string]TokenType{
	"select":    TOKEN_SELECT,
	"insert":    TOKEN_INSERT,
	"into":      TOKEN_INTO,
	"values":    TOKEN_VALUES,
	"update":    TOKEN_UPDATE,
	"set":       TOKEN_SET,
	"delete":    TOKEN_DELETE,
	"from":      TOKEN_FROM,
	"returning": TOKEN_RETURNING,
	"where":     TOKEN_WHERE,
	"order":     TOKEN_ORDER,
	"asc":       TOKEN_ASC,
	"desc":      TOKEN_DESC,
	"limit":     TOKEN_LIMIT,
	"offset":    TOKEN_OFFSET,
	"on":        TOKEN_ON,
	"as":        TOKEN_AS,
	"and":       TOKEN_AND,
	"or":        TOKEN_OR,
	"not":       TOKEN_NOT,
	"is":        TOKEN_IS,
	"null":      TOKEN_NULL,
	"true":      TOKEN_TRUE,
	"false":     TOKEN_FALSE,
	"case":      TOKEN_CASE,
	"when":      TOKEN_WHEN,
	"then":      TOKEN_THEN,
	"else":      TOKEN_ELSE,
}

// LexError represents an error encountered during lexical analysis
type LexError struct {
	Message string // Error message
	Line    int    // Line number where error occurred
	Column  int    // Column number where error occurred
	Lexeme  string // The problematic text
}

// Error implements the error interface
func (e LexError) Error() string {
	return fmt.Sprintf("Lexical error at %d:%d: %s (near '%s')",
		e.Line, e.Column, e.Message, e.Lexeme)
}

// IsKeyword checks if a word is a reserved SQL keyword
func IsKeyword(s string) bool {
	_, ok := Keywords[strings.ToLower(s)]
	return ok
}

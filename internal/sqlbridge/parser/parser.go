// Package parser turns tokenized SQL into the typed statement tree in package ast.
//
// Statement structure (keywords, table name, clause order) is parsed by recursive
// descent and any deviation is a ParseError. Clause bodies (projection, WHERE,
// SET, ORDER BY, VALUES) are first split at depth-0 separators and each fragment
// is then classified on its own; a fragment outside the supported grammar becomes
// an Unsupported node rather than a ParseError.
package parser

import (
	"github.com/Julianb233/sierra-fred-carey-sub003/internal/sqlbridge/ast"
	"github.com/Julianb233/sierra-fred-carey-sub003/internal/sqlbridge/lexer"
)

// Parser transforms the tokens of one statement into an ast.Statement
type Parser struct {
	source  string
	tokens  []lexer.Token
	current int
	errors  []ParseError
}

// New tokenizes source and returns a parser positioned at its first token
func New(source string) *Parser {
	tokens, _ := lexer.Tokenize(source)
	return &Parser{
		source:  source,
		tokens:  tokens,
		current: 0,
		errors:  make([]ParseError, 0),
	}
}

// Parse is a convenience wrapper around New(source).Parse()
func Parse(source string) (ast.Statement, []ParseError) {
	return New(source).Parse()
}

// Parse parses a single statement. The statement is nil whenever errors is non-empty.
func (p *Parser) Parse() (ast.Statement, []ParseError) {
	var stmt ast.Statement

	switch {
	case p.match(lexer.TOKEN_INSERT):
		if s := p.parseInsert(); s != nil {
			stmt = s
		}
	case p.match(lexer.TOKEN_SELECT):
		if s := p.parseSelect(); s != nil {
			stmt = s
		}
	case p.match(lexer.TOKEN_UPDATE):
		if s := p.parseUpdate(); s != nil {
			stmt = s
		}
	case p.match(lexer.TOKEN_DELETE):
		if s := p.parseDelete(); s != nil {
			stmt = s
		}
	default:
		p.error(p.peek(), "Expected INSERT, SELECT, UPDATE or DELETE")
		return nil, p.errors
	}

	if len(p.errors) == 0 {
		p.match(lexer.TOKEN_SEMICOLON)
		if !p.isAtEnd() {
			p.error(p.peek(), "Unexpected input after end of statement")
		}
	}

	if len(p.errors) > 0 {
		return nil, p.errors
	}
	return stmt, nil
}

// parseInsert parses INSERT INTO t (cols) VALUES (vals) [ON CONFLICT ...] [RETURNING ...]
func (p *Parser) parseInsert() *ast.InsertStatement {
	if p.consume(lexer.TOKEN_INTO, "Expected INTO after INSERT").Type == lexer.TOKEN_ERROR {
		return nil
	}

	table := p.parseTableName()
	if table == "" {
		return nil
	}

	stmt := &ast.InsertStatement{Table: table}

	if p.consume(lexer.TOKEN_LPAREN, "Expected '(' before insert column list").Type == lexer.TOKEN_ERROR {
		return nil
	}
	stmt.Columns = p.parseNameList()
	if stmt.Columns == nil {
		return nil
	}

	if p.consume(lexer.TOKEN_VALUES, "Expected VALUES").Type == lexer.TOKEN_ERROR {
		return nil
	}
	if p.consume(lexer.TOKEN_LPAREN, "Expected '(' after VALUES").Type == lexer.TOKEN_ERROR {
		return nil
	}
	body := p.collect(func(tok lexer.Token) bool { return tok.Type == lexer.TOKEN_RPAREN })
	if p.consume(lexer.TOKEN_RPAREN, "Expected ')' after insert values").Type == lexer.TOKEN_ERROR {
		return nil
	}
	if p.check(lexer.TOKEN_COMMA) {
		p.error(p.peek(), "Multi-row VALUES lists are not supported")
		return nil
	}

	for _, frag := range split(body, lexer.TOKEN_COMMA) {
		value := p.fragment(frag).value()
		if value == nil {
			stmt.Skipped = append(stmt.Skipped, p.unsupported("values", frag, "unsupported value expression"))
		}
		stmt.Values = append(stmt.Values, value)
	}

	if p.match(lexer.TOKEN_ON) {
		stmt.Conflict = p.parseConflict(stmt)
		if stmt.Conflict == nil {
			return nil
		}
	}

	p.skipReturning()
	return stmt
}

// parseConflict parses the remainder of ON CONFLICT [(cols)] DO NOTHING | DO UPDATE SET ...
func (p *Parser) parseConflict(stmt *ast.InsertStatement) *ast.ConflictClause {
	if p.consumeWord("CONFLICT", "Expected CONFLICT after ON").Type == lexer.TOKEN_ERROR {
		return nil
	}

	clause := &ast.ConflictClause{}
	if p.match(lexer.TOKEN_LPAREN) {
		clause.Target = p.parseNameList()
		if clause.Target == nil {
			return nil
		}
	}

	if p.consumeWord("DO", "Expected DO after ON CONFLICT").Type == lexer.TOKEN_ERROR {
		return nil
	}

	if p.matchWord("NOTHING") {
		clause.Action = ast.ConflictDoNothing
		return clause
	}

	if p.consume(lexer.TOKEN_UPDATE, "Expected NOTHING or UPDATE after DO").Type == lexer.TOKEN_ERROR {
		return nil
	}
	if len(clause.Target) == 0 {
		p.error(p.previous(), "ON CONFLICT DO UPDATE requires a conflict target")
		return nil
	}
	if p.consume(lexer.TOKEN_SET, "Expected SET after DO UPDATE").Type == lexer.TOKEN_ERROR {
		return nil
	}
	clause.Action = ast.ConflictDoUpdate

	body := p.collect(func(tok lexer.Token) bool {
		return tok.Type == lexer.TOKEN_WHERE || tok.Type == lexer.TOKEN_RETURNING || tok.Type == lexer.TOKEN_SEMICOLON
	})
	for _, frag := range split(body, lexer.TOKEN_COMMA) {
		clause.Set = append(clause.Set, p.fragment(frag).assignment(true))
	}

	if p.check(lexer.TOKEN_WHERE) {
		start := p.current
		p.advance()
		cond := p.collect(func(tok lexer.Token) bool {
			return tok.Type == lexer.TOKEN_RETURNING || tok.Type == lexer.TOKEN_SEMICOLON
		})
		frag := p.tokens[start : start+1+len(cond)]
		stmt.Skipped = append(stmt.Skipped, p.unsupported("on conflict", frag, "conditional upsert"))
	}

	return clause
}

// parseSelect parses SELECT proj FROM t [WHERE ...] [ORDER BY ...] [LIMIT x] [OFFSET y]
func (p *Parser) parseSelect() *ast.SelectStatement {
	projection := p.collect(func(tok lexer.Token) bool { return tok.Type == lexer.TOKEN_FROM })
	if len(projection) == 0 {
		p.error(p.peek(), "Expected select list")
		return nil
	}
	if p.consume(lexer.TOKEN_FROM, "Expected FROM after select list").Type == lexer.TOKEN_ERROR {
		return nil
	}

	table := p.parseTableName()
	if table == "" {
		return nil
	}

	stmt := &ast.SelectStatement{Table: table}
	for _, frag := range split(projection, lexer.TOKEN_COMMA) {
		f := p.fragment(frag)
		if f.match(lexer.TOKEN_STAR) && f.isAtEnd() {
			stmt.Star = true
			continue
		}
		if proj := p.fragment(frag).projection(); proj != nil {
			stmt.Columns = append(stmt.Columns, proj)
			continue
		}
		stmt.Skipped = append(stmt.Skipped, p.unsupported("select", frag, "only plain and aliased columns are supported"))
	}

	if p.match(lexer.TOKEN_WHERE) {
		stmt.Where = p.parseWhere(false, lexer.TOKEN_ORDER, lexer.TOKEN_LIMIT, lexer.TOKEN_OFFSET)
		if stmt.Where == nil {
			return nil
		}
	}

	if p.match(lexer.TOKEN_ORDER) {
		if p.consumeWord("BY", "Expected BY after ORDER").Type == lexer.TOKEN_ERROR {
			return nil
		}
		p.parseOrderBy(stmt)
	}

	if !p.parsePagination(stmt) {
		return nil
	}
	return stmt
}

// parseOrderBy parses the ORDER BY list. Conditional (CASE ... END) terms are
// dropped with their direction and NULLS clause.
func (p *Parser) parseOrderBy(stmt *ast.SelectStatement) {
	body := p.collect(func(tok lexer.Token) bool {
		return tok.Type == lexer.TOKEN_LIMIT || tok.Type == lexer.TOKEN_OFFSET || tok.Type == lexer.TOKEN_SEMICOLON
	})
	if len(body) == 0 {
		p.error(p.peek(), "Expected ORDER BY terms")
		return
	}

	for _, frag := range split(body, lexer.TOKEN_COMMA) {
		if len(frag) > 0 && frag[0].Type == lexer.TOKEN_CASE {
			stmt.Skipped = append(stmt.Skipped, p.unsupported("order by", frag, "conditional ordering"))
			continue
		}
		if term := p.fragment(frag).orderTerm(); term != nil {
			stmt.OrderBy = append(stmt.OrderBy, term)
			continue
		}
		stmt.Skipped = append(stmt.Skipped, p.unsupported("order by", frag, "only column ordering is supported"))
	}
}

// parsePagination accepts LIMIT and OFFSET in either order, each at most once
func (p *Parser) parsePagination(stmt *ast.SelectStatement) bool {
	for {
		switch {
		case p.match(lexer.TOKEN_LIMIT):
			if stmt.Limit != nil {
				p.error(p.previous(), "Duplicate LIMIT")
				return false
			}
			if p.peek().Is("ALL") {
				p.advance()
				continue
			}
			stmt.Limit = p.parseCount("LIMIT")
			if stmt.Limit == nil {
				return false
			}
		case p.match(lexer.TOKEN_OFFSET):
			if stmt.Offset != nil {
				p.error(p.previous(), "Duplicate OFFSET")
				return false
			}
			stmt.Offset = p.parseCount("OFFSET")
			if stmt.Offset == nil {
				return false
			}
			if p.peek().Is("ROWS") || p.peek().Is("ROW") {
				p.advance()
			}
		default:
			return true
		}
	}
}

// parseCount parses the operand of LIMIT or OFFSET: a non-negative integer or $n
func (p *Parser) parseCount(clause string) ast.Expr {
	tok := p.peek()
	switch tok.Type {
	case lexer.TOKEN_PARAM:
		p.advance()
		return &ast.Param{Index: tok.Literal.(int)}
	case lexer.TOKEN_NUMBER_LITERAL:
		if n, ok := tok.Literal.(int64); ok {
			p.advance()
			return &ast.NumberLiteral{Value: n}
		}
	}
	p.error(tok, "Expected integer or parameter after "+clause)
	return nil
}

// parseUpdate parses UPDATE t SET assignments WHERE conditions [RETURNING ...]
func (p *Parser) parseUpdate() *ast.UpdateStatement {
	table := p.parseTableName()
	if table == "" {
		return nil
	}
	if p.consume(lexer.TOKEN_SET, "Expected SET after table name").Type == lexer.TOKEN_ERROR {
		return nil
	}

	stmt := &ast.UpdateStatement{Table: table}

	body := p.collect(func(tok lexer.Token) bool {
		return tok.Type == lexer.TOKEN_WHERE || tok.Type == lexer.TOKEN_RETURNING || tok.Type == lexer.TOKEN_SEMICOLON
	})
	if len(body) == 0 {
		p.error(p.peek(), "Expected SET assignments")
		return nil
	}
	for _, frag := range split(body, lexer.TOKEN_COMMA) {
		stmt.Set = append(stmt.Set, p.fragment(frag).assignment(false))
	}

	if p.consume(lexer.TOKEN_WHERE, "Expected WHERE after SET assignments").Type == lexer.TOKEN_ERROR {
		return nil
	}
	stmt.Where = p.parseWhere(true, lexer.TOKEN_ORDER, lexer.TOKEN_LIMIT)
	if stmt.Where == nil {
		return nil
	}

	p.skipReturning()
	return stmt
}

// parseDelete parses DELETE FROM t WHERE conditions [RETURNING ...]
func (p *Parser) parseDelete() *ast.DeleteStatement {
	if p.consume(lexer.TOKEN_FROM, "Expected FROM after DELETE").Type == lexer.TOKEN_ERROR {
		return nil
	}
	table := p.parseTableName()
	if table == "" {
		return nil
	}
	if p.consume(lexer.TOKEN_WHERE, "Expected WHERE after table name").Type == lexer.TOKEN_ERROR {
		return nil
	}

	stmt := &ast.DeleteStatement{Table: table}
	stmt.Where = p.parseWhere(true, lexer.TOKEN_ORDER, lexer.TOKEN_LIMIT)
	if stmt.Where == nil {
		return nil
	}

	p.skipReturning()
	return stmt
}

// parseWhere splits the WHERE body on depth-0 AND and classifies every fragment.
// The body ends at RETURNING, ';', end of input, a clause keyword that cannot
// appear in a condition, or any of the extra terminators. restricted limits the
// accepted forms to equality with a parameter or boolean.
func (p *Parser) parseWhere(restricted bool, terminators ...lexer.TokenType) []ast.Predicate {
	body := p.collect(func(tok lexer.Token) bool {
		switch tok.Type {
		case lexer.TOKEN_RETURNING, lexer.TOKEN_SEMICOLON:
			return true
		}
		for _, t := range terminators {
			if tok.Type == t {
				return true
			}
		}
		return isForeignClause(tok)
	})
	if len(body) == 0 {
		p.error(p.peek(), "Expected condition after WHERE")
		return nil
	}

	predicates := make([]ast.Predicate, 0)
	for _, frag := range split(body, lexer.TOKEN_AND) {
		pred := p.fragment(frag).predicate(restricted)
		if pred == nil {
			reason := "unsupported condition"
			if restricted {
				reason = "only equality with a parameter or boolean is supported"
			}
			pred = &ast.UnsupportedPredicate{Unsupported: p.unsupported("where", frag, reason)}
		}
		predicates = append(predicates, pred)
	}
	return predicates
}

// isForeignClause reports clause words outside the grammar. They end a WHERE body
// so the statement fails structurally instead of being read as part of a condition.
func isForeignClause(tok lexer.Token) bool {
	for _, word := range []string{"GROUP", "HAVING", "WINDOW", "UNION", "INTERSECT", "EXCEPT", "FETCH", "FOR"} {
		if tok.Is(word) {
			return true
		}
	}
	return false
}

// parseTableName parses name or schema.name
func (p *Parser) parseTableName() string {
	if !p.peek().IsName() {
		p.error(p.peek(), "Expected table name")
		return ""
	}
	name := p.advance().Name()
	if p.check(lexer.TOKEN_DOT) {
		p.advance()
		if !p.peek().IsName() {
			p.error(p.peek(), "Expected table name after '.'")
			return ""
		}
		name += "." + p.advance().Name()
	}
	return name
}

// parseNameList parses name, name, ... ) with the opening paren already consumed
func (p *Parser) parseNameList() []string {
	names := make([]string, 0)
	for {
		if !p.peek().IsName() {
			p.error(p.peek(), "Expected column name")
			return nil
		}
		names = append(names, p.advance().Name())
		if !p.match(lexer.TOKEN_COMMA) {
			break
		}
	}
	if p.consume(lexer.TOKEN_RPAREN, "Expected ')' after column list").Type == lexer.TOKEN_ERROR {
		return nil
	}
	return names
}

// skipReturning consumes an optional RETURNING list; all columns always come back
func (p *Parser) skipReturning() {
	if p.match(lexer.TOKEN_RETURNING) {
		p.collect(func(tok lexer.Token) bool { return tok.Type == lexer.TOKEN_SEMICOLON })
	}
}

// collect consumes tokens up to, not including, the first depth-0 token for which
// stop reports true. Parentheses and CASE ... END both open a nesting level.
func (p *Parser) collect(stop func(lexer.Token) bool) []lexer.Token {
	start := p.current
	var n nesting
	for !p.isAtEnd() {
		tok := p.peek()
		if n.depth() == 0 && stop(tok) {
			break
		}
		if !n.enter(tok) {
			break
		}
		p.advance()
	}
	return p.tokens[start:p.current]
}

// split cuts tokens at depth-0 separators. It always returns at least one fragment.
func split(tokens []lexer.Token, sep lexer.TokenType) [][]lexer.Token {
	fragments := make([][]lexer.Token, 0)
	var n nesting
	start := 0
	for i, tok := range tokens {
		if tok.Type == sep && n.depth() == 0 {
			fragments = append(fragments, tokens[start:i])
			start = i + 1
			continue
		}
		n.enter(tok)
	}
	return append(fragments, tokens[start:])
}

// nesting tracks parentheses and CASE ... END blocks. END is a bare word, so it
// only closes a block while a CASE is open.
type nesting struct {
	parens int
	cases  int
}

func (n *nesting) depth() int { return n.parens + n.cases }

// enter updates the nesting for tok. It reports false for a ')' that closes
// nothing.
func (n *nesting) enter(tok lexer.Token) bool {
	switch {
	case tok.Type == lexer.TOKEN_LPAREN:
		n.parens++
	case tok.Type == lexer.TOKEN_CASE:
		n.cases++
	case tok.Type == lexer.TOKEN_RPAREN:
		if n.parens == 0 {
			return false
		}
		n.parens--
	case n.cases > 0 && tok.Is("END"):
		n.cases--
	}
	return true
}

// fragment returns a parser over frag alone, terminated by EOF
func (p *Parser) fragment(frag []lexer.Token) *Parser {
	end := len(p.source)
	if len(frag) > 0 {
		end = frag[len(frag)-1].End
	}
	tokens := make([]lexer.Token, 0, len(frag)+1)
	tokens = append(tokens, frag...)
	tokens = append(tokens, lexer.Token{Type: lexer.TOKEN_EOF, Start: end, End: end})
	return &Parser{source: p.source, tokens: tokens, errors: make([]ParseError, 0)}
}

// unsupported records frag verbatim as a fragment outside the grammar
func (p *Parser) unsupported(clause string, frag []lexer.Token, reason string) *ast.Unsupported {
	return &ast.Unsupported{Clause: clause, Text: p.text(frag), Reason: reason}
}

// text returns the source text spanned by tokens
func (p *Parser) text(tokens []lexer.Token) string {
	if len(tokens) == 0 {
		return ""
	}
	return p.source[tokens[0].Start:tokens[len(tokens)-1].End]
}

// Helper methods

// peek returns the current token without consuming it
func (p *Parser) peek() lexer.Token {
	if len(p.tokens) == 0 {
		return lexer.Token{Type: lexer.TOKEN_EOF}
	}
	if p.current >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.current]
}

// peekAt returns the token offset positions ahead of the current one
func (p *Parser) peekAt(offset int) lexer.Token {
	i := p.current + offset
	if i >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[i]
}

// previous returns the most recently consumed token
func (p *Parser) previous() lexer.Token {
	if len(p.tokens) == 0 || p.current == 0 {
		return lexer.Token{Type: lexer.TOKEN_EOF}
	}
	return p.tokens[p.current-1]
}

// advance consumes the current token and returns it
func (p *Parser) advance() lexer.Token {
	if !p.isAtEnd() {
		p.current++
	}
	return p.previous()
}

// check returns true if the current token matches the given type
func (p *Parser) check(tokenType lexer.TokenType) bool {
	if p.isAtEnd() {
		return false
	}
	return p.peek().Type == tokenType
}

// match consumes the token if it matches any of the given types
func (p *Parser) match(types ...lexer.TokenType) bool {
	for _, t := range types {
		if p.check(t) {
			p.advance()
			return true
		}
	}
	return false
}

// matchWord consumes the token if it is the contextual word
func (p *Parser) matchWord(word string) bool {
	if p.peek().Is(word) {
		p.advance()
		return true
	}
	return false
}

// consumeWord is consume for a contextual word
func (p *Parser) consumeWord(word, message string) lexer.Token {
	if p.peek().Is(word) {
		return p.advance()
	}

	p.error(p.peek(), message)
	return lexer.Token{Type: lexer.TOKEN_ERROR}
}

// consume advances if the next token matches, otherwise reports an error
func (p *Parser) consume(tokenType lexer.TokenType, message string) lexer.Token {
	if p.check(tokenType) {
		return p.advance()
	}

	p.error(p.peek(), message)
	return lexer.Token{Type: lexer.TOKEN_ERROR}
}

// isAtEnd returns true if we've reached the end of the token stream
func (p *Parser) isAtEnd() bool {
	return p.current >= len(p.tokens) || p.tokens[p.current].Type == lexer.TOKEN_EOF
}

// error records a parse error
func (p *Parser) error(token lexer.Token, message string) {
	p.errors = append(p.errors, NewParseError(message, token))
}

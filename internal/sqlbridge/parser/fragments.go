package parser

import (
	"strings"

	"github.com/Julianb233/sierra-fred-carey-sub003/internal/sqlbridge/ast"
	"github.com/Julianb233/sierra-fred-carey-sub003/internal/sqlbridge/lexer"
)

// Fragment classifiers. Each runs on a parser built by fragment() and returns nil
// unless the whole fragment matched.

// value classifies one INSERT value
func (p *Parser) value() ast.Expr {
	var expr ast.Expr

	tok := p.peek()
	switch {
	case tok.Type == lexer.TOKEN_PARAM:
		expr = p.param()
	case tok.Type == lexer.TOKEN_TRUE || tok.Type == lexer.TOKEN_FALSE:
		p.advance()
		expr = &ast.BoolLiteral{Value: tok.Type == lexer.TOKEN_TRUE}
	case tok.Type == lexer.TOKEN_NULL:
		p.advance()
		expr = &ast.NullLiteral{}
	case tok.Type == lexer.TOKEN_NUMBER_LITERAL:
		p.advance()
		expr = &ast.NumberLiteral{Value: tok.Literal}
	case tok.Type == lexer.TOKEN_OTHER && tok.Lexeme == "-" && p.peekAt(1).Type == lexer.TOKEN_NUMBER_LITERAL:
		p.advance()
		expr = &ast.NumberLiteral{Value: negate(p.advance().Literal)}
	case tok.Type == lexer.TOKEN_STRING_LITERAL:
		p.advance()
		expr = &ast.StringLiteral{Value: tok.Literal.(string)}
		p.cast()
	default:
		if p.now() {
			expr = &ast.Now{}
		}
	}

	if expr == nil || !p.isAtEnd() {
		return nil
	}
	return expr
}

// projection classifies one SELECT list item: col, t.col, col AS alias
func (p *Parser) projection() *ast.Projection {
	column, ok := p.column()
	if !ok {
		return nil
	}
	proj := &ast.Projection{Column: column}
	if p.match(lexer.TOKEN_AS) {
		if !p.peek().IsName() {
			return nil
		}
		proj.Alias = p.advance().Name()
	}
	if !p.isAtEnd() {
		return nil
	}
	return proj
}

// orderTerm classifies col [ASC|DESC] [NULLS FIRST|LAST]
func (p *Parser) orderTerm() *ast.OrderTerm {
	column, ok := p.column()
	if !ok {
		return nil
	}
	term := &ast.OrderTerm{Column: column}
	if p.match(lexer.TOKEN_DESC) {
		term.Descending = true
	} else {
		p.match(lexer.TOKEN_ASC)
	}
	if p.matchWord("NULLS") {
		if !p.peek().Is("FIRST") && !p.peek().Is("LAST") {
			return nil
		}
		p.advance()
	}
	if !p.isAtEnd() {
		return nil
	}
	return term
}

// predicate classifies one AND-joined WHERE fragment. Forms are tried in order:
// col = $n, col = bool, col IS NULL, col IS NOT NULL, ($n IS NULL OR col = $n),
// col <op> $n. When restricted only the first two are accepted.
func (p *Parser) predicate(restricted bool) ast.Predicate {
	p.unwrapParens()
	start := p.current

	if pred := p.equality(); pred != nil {
		return pred
	}
	if restricted {
		return nil
	}

	p.current = start
	if pred := p.nullCheck(); pred != nil {
		return pred
	}

	p.current = start
	if pred := p.optionalEqual(); pred != nil {
		return pred
	}

	p.current = start
	return p.comparison()
}

// equality matches col = $n and col = true|false
func (p *Parser) equality() ast.Predicate {
	column, ok := p.column()
	if !ok || !p.match(lexer.TOKEN_EQUALS) {
		return nil
	}

	var value ast.Expr
	switch {
	case p.check(lexer.TOKEN_PARAM):
		value = p.param()
	case p.match(lexer.TOKEN_TRUE):
		value = &ast.BoolLiteral{Value: true}
	case p.match(lexer.TOKEN_FALSE):
		value = &ast.BoolLiteral{Value: false}
	}
	if value == nil || !p.isAtEnd() {
		return nil
	}
	return &ast.Equal{Column: column, Value: value}
}

// nullCheck matches col IS NULL and col IS NOT NULL
func (p *Parser) nullCheck() ast.Predicate {
	column, ok := p.column()
	if !ok || !p.match(lexer.TOKEN_IS) {
		return nil
	}
	negated := p.match(lexer.TOKEN_NOT)
	if !p.match(lexer.TOKEN_NULL) || !p.isAtEnd() {
		return nil
	}
	if negated {
		return &ast.IsNotNull{Column: column}
	}
	return &ast.IsNull{Column: column}
}

// optionalEqual matches $n[::type] IS NULL OR col = $n, with the outer parens
// already removed
func (p *Parser) optionalEqual() ast.Predicate {
	if !p.check(lexer.TOKEN_PARAM) {
		return nil
	}
	index := p.advance().Literal.(int)
	cast := p.cast()

	if !p.match(lexer.TOKEN_IS) || !p.match(lexer.TOKEN_NULL) || !p.match(lexer.TOKEN_OR) {
		return nil
	}

	column, ok := p.column()
	if !ok || !p.match(lexer.TOKEN_EQUALS) || !p.check(lexer.TOKEN_PARAM) {
		return nil
	}
	param := p.param()
	if param.Index != index || !p.isAtEnd() {
		return nil
	}
	return &ast.OptionalEqual{Column: column, Param: param, Cast: cast}
}

// comparison matches col >|>=|<|<= $n
func (p *Parser) comparison() ast.Predicate {
	column, ok := p.column()
	if !ok {
		return nil
	}

	var op ast.CompareOp
	switch {
	case p.match(lexer.TOKEN_GT):
		op = ast.OpGreaterThan
	case p.match(lexer.TOKEN_GTE):
		op = ast.OpGreaterThanOrEqual
	case p.match(lexer.TOKEN_LT):
		op = ast.OpLessThan
	case p.match(lexer.TOKEN_LTE):
		op = ast.OpLessThanOrEqual
	default:
		return nil
	}

	if !p.check(lexer.TOKEN_PARAM) {
		return nil
	}
	param := p.param()
	if !p.isAtEnd() {
		return nil
	}
	return &ast.Compare{Column: column, Op: op, Param: param}
}

// assignment classifies one SET item. Unclassified items come back as
// *ast.SetUnsupported, never nil. EXCLUDED.col is only accepted inside
// ON CONFLICT DO UPDATE.
func (p *Parser) assignment(conflict bool) ast.Assignment {
	miss := func(column, reason string) ast.Assignment {
		return &ast.SetUnsupported{
			Unsupported: &ast.Unsupported{Clause: "set", Text: p.text(p.tokens[:len(p.tokens)-1]), Reason: reason},
			Column:      column,
		}
	}

	column, ok := p.column()
	if !ok || !p.match(lexer.TOKEN_EQUALS) {
		return miss("", "expected column = value")
	}

	var assignment ast.Assignment
	start := p.current
	switch {
	case p.check(lexer.TOKEN_PARAM):
		assignment = &ast.SetParam{Column: column, Param: p.param()}
	case p.match(lexer.TOKEN_TRUE):
		assignment = &ast.SetBool{Column: column, Value: true}
	case p.match(lexer.TOKEN_FALSE):
		assignment = &ast.SetBool{Column: column, Value: false}
	case p.peek().Is("COALESCE"):
		assignment = p.coalesce(column)
	case conflict && p.peek().Is("EXCLUDED"):
		p.advance()
		if p.match(lexer.TOKEN_DOT) && p.peek().IsName() && p.advance().Name() == column {
			assignment = &ast.SetExcluded{Column: column}
		}
	default:
		p.current = start
		if p.now() {
			assignment = &ast.SetNow{Column: column}
		}
	}

	if assignment == nil || !p.isAtEnd() {
		return miss(column, "unsupported assignment")
	}
	return assignment
}

// coalesce matches COALESCE($n, col) where col is the assignment target
func (p *Parser) coalesce(column string) ast.Assignment {
	p.advance()
	if !p.match(lexer.TOKEN_LPAREN) || !p.check(lexer.TOKEN_PARAM) {
		return nil
	}
	param := p.param()
	if !p.match(lexer.TOKEN_COMMA) {
		return nil
	}
	fallback, ok := p.column()
	if !ok || fallback != column || !p.match(lexer.TOKEN_RPAREN) {
		return nil
	}
	return &ast.SetCoalesce{Column: column, Param: param}
}

// now matches NOW() and CURRENT_TIMESTAMP
func (p *Parser) now() bool {
	if p.peek().Is("CURRENT_TIMESTAMP") {
		p.advance()
		return true
	}
	if p.peek().Is("NOW") && p.peekAt(1).Type == lexer.TOKEN_LPAREN && p.peekAt(2).Type == lexer.TOKEN_RPAREN {
		p.advance()
		p.advance()
		p.advance()
		return true
	}
	return false
}

// column reads col or qualifier.col and returns the bare column name
func (p *Parser) column() (string, bool) {
	if !p.peek().IsName() {
		return "", false
	}
	name := p.advance().Name()
	if p.check(lexer.TOKEN_DOT) {
		p.advance()
		if !p.peek().IsName() {
			return "", false
		}
		name = p.advance().Name()
	}
	return name, true
}

// param reads $n with an optional ::type cast. The caller has checked TOKEN_PARAM.
func (p *Parser) param() *ast.Param {
	index := p.advance().Literal.(int)
	p.cast()
	return &ast.Param{Index: index}
}

// cast reads an optional ::type suffix and returns the type text
func (p *Parser) cast() string {
	if !p.match(lexer.TOKEN_DOUBLE_COLON) {
		return ""
	}
	parts := make([]string, 0, 1)
	for p.peek().IsName() {
		parts = append(parts, p.advance().Lexeme)
	}
	if len(parts) == 0 {
		return ""
	}
	// array suffix: text[]
	for p.check(lexer.TOKEN_OTHER) && (p.peek().Lexeme == "[" || p.peek().Lexeme == "]") {
		parts[len(parts)-1] += p.advance().Lexeme
	}
	return strings.Join(parts, " ")
}

// unwrapParens drops one pair of parentheses enclosing the whole fragment
func (p *Parser) unwrapParens() {
	n := len(p.tokens) - 1 // without EOF
	if n < 2 || p.tokens[0].Type != lexer.TOKEN_LPAREN || p.tokens[n-1].Type != lexer.TOKEN_RPAREN {
		return
	}
	depth := 0
	for i := 0; i < n; i++ {
		switch p.tokens[i].Type {
		case lexer.TOKEN_LPAREN:
			depth++
		case lexer.TOKEN_RPAREN:
			depth--
			if depth == 0 && i != n-1 {
				return
			}
		}
	}
	inner := make([]lexer.Token, 0, n-1)
	inner = append(inner, p.tokens[1:n-1]...)
	p.tokens = append(inner, p.tokens[n])
	p.current = 0
}

func negate(v interface{}) interface{} {
	switch n := v.(type) {
	case int64:
		return -n
	case float64:
		return -n
	}
	return v
}

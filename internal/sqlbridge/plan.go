package sqlbridge

import (
	"context"
	"fmt"

	"github.com/spf13/cast"

	"github.com/Julianb233/sierra-fred-carey-sub003/internal/orm/query"
	"github.com/Julianb233/sierra-fred-carey-sub003/internal/sqlbridge/ast"
)

// plan is a translated statement ready to run. A nil builder runs nothing and
// yields no rows. With keepNames set, aliased columns are also returned under
// their own name, as SELECT * already asked for them.
type plan struct {
	builder   *query.Builder
	aliases   map[string]string
	keepNames bool
	warnings  []Warning
}

func (p *plan) warn(clause, fragment, reason string) {
	p.warnings = append(p.warnings, Warning{Clause: clause, Fragment: fragment, Reason: reason})
}

func (p *plan) run(ctx context.Context) ([]map[string]interface{}, error) {
	if p.builder == nil {
		return make([]map[string]interface{}, 0), nil
	}
	rows, err := p.builder.Execute(ctx)
	if err != nil {
		return nil, err
	}
	if len(p.aliases) == 0 {
		return rows, nil
	}
	return renameColumns(rows, p.aliases, p.keepNames), nil
}

// renameColumns copies rows with every key in aliases replaced by its alias.
// keep leaves the original key in place next to the alias.
func renameColumns(rows []map[string]interface{}, aliases map[string]string, keep bool) []map[string]interface{} {
	renamed := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		out := make(map[string]interface{}, len(row))
		for key, value := range row {
			if alias, ok := aliases[key]; ok {
				out[alias] = value
				if !keep {
					continue
				}
			}
			out[key] = value
		}
		renamed = append(renamed, out)
	}
	return renamed
}

// lookup resolves $index against params. ok is false when the parameter was
// not supplied at all.
func lookup(params []interface{}, p *ast.Param) (value interface{}, ok bool) {
	if p == nil || p.Index < 1 || p.Index > len(params) {
		return nil, false
	}
	return params[p.Index-1], true
}

// present reports whether $index was supplied with a non-nil value
func present(params []interface{}, p *ast.Param) bool {
	v, ok := lookup(params, p)
	return ok && v != nil
}

// literal evaluates an INSERT value. ok is false for a parameter that was not
// supplied, which leaves the column out of the row.
func (c *Client) literal(e ast.Expr, params []interface{}) (value interface{}, ok bool) {
	switch v := e.(type) {
	case *ast.Param:
		return lookup(params, v)
	case *ast.BoolLiteral:
		return v.Value, true
	case *ast.NullLiteral:
		return nil, true
	case *ast.NumberLiteral:
		return v.Value, true
	case *ast.StringLiteral:
		return v.Value, true
	case *ast.Now:
		return c.now(), true
	default:
		return nil, false
	}
}

// count resolves a LIMIT or OFFSET expression to a non-negative int
func count(clause string, e ast.Expr, params []interface{}) (int, error) {
	var raw interface{}
	switch v := e.(type) {
	case *ast.NumberLiteral:
		raw = v.Value
	case *ast.Param:
		value, ok := lookup(params, v)
		if !ok || value == nil {
			return 0, fmt.Errorf("%s parameter $%d is not set", clause, v.Index)
		}
		raw = value
	default:
		return 0, fmt.Errorf("%s must be an integer or a parameter", clause)
	}

	n, err := cast.ToIntE(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", clause, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %d", clause, n)
	}
	return n, nil
}

// filter applies one predicate to b. Unsupported predicates were already
// reported and add nothing.
func filter(b *query.Builder, pred ast.Predicate, params []interface{}) {
	switch p := pred.(type) {
	case *ast.Equal:
		switch v := p.Value.(type) {
		case *ast.Param:
			value, _ := lookup(params, v)
			b.Eq(p.Column, value)
		case *ast.BoolLiteral:
			b.Eq(p.Column, v.Value)
		}
	case *ast.IsNull:
		b.Is(p.Column, nil)
	case *ast.IsNotNull:
		b.Not(p.Column, "is", nil)
	case *ast.OptionalEqual:
		if value, ok := lookup(params, p.Param); ok && value != nil {
			b.Eq(p.Column, value)
		}
	case *ast.Compare:
		value, _ := lookup(params, p.Param)
		switch p.Op {
		case ast.OpGreaterThan:
			b.Gt(p.Column, value)
		case ast.OpGreaterThanOrEqual:
			b.Gte(p.Column, value)
		case ast.OpLessThan:
			b.Lt(p.Column, value)
		case ast.OpLessThanOrEqual:
			b.Lte(p.Column, value)
		}
	}
}

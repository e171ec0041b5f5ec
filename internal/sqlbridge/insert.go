package sqlbridge

import (
	"github.com/Julianb233/sierra-fred-carey-sub003/internal/orm/query"
	"github.com/Julianb233/sierra-fred-carey-sub003/internal/sqlbridge/ast"
)

// planInsert builds a plain insert or an upsert. The inserted row is always
// requested back.
func (c *Client) planInsert(s *ast.InsertStatement, params []interface{}) *plan {
	p := &plan{}
	row := c.insertRow(s, params)
	b := c.native.From(s.Table)

	switch {
	case s.Conflict == nil:
		b.Insert(row)
	case s.Conflict.Action == ast.ConflictDoNothing:
		b.Upsert(row, query.UpsertOptions{OnConflict: s.Conflict.Target, IgnoreDuplicates: true})
	default:
		b.Upsert(row, p.conflictUpdate(s.Conflict, row, params))
	}

	p.builder = b.Select()
	return p
}

// insertRow pairs columns with values positionally. Unsupported values and
// parameters that were never supplied leave their column out.
func (c *Client) insertRow(s *ast.InsertStatement, params []interface{}) map[string]interface{} {
	n := len(s.Columns)
	if len(s.Values) < n {
		n = len(s.Values)
	}

	row := make(map[string]interface{}, n)
	for i := 0; i < n; i++ {
		if s.Values[i] == nil {
			continue
		}
		if value, ok := c.literal(s.Values[i], params); ok {
			row[s.Columns[i]] = value
		}
	}
	return row
}

// conflictUpdate derives the DO UPDATE column list. Assignments write the
// incoming row's value for their target; targets the row does not carry are
// reported. COALESCE($n, col) with $n null or missing keeps the stored value.
// Without any readable assignment every non-key column is updated.
func (p *plan) conflictUpdate(conflict *ast.ConflictClause, row map[string]interface{}, params []interface{}) query.UpsertOptions {
	opts := query.UpsertOptions{OnConflict: conflict.Target}

	key := make(map[string]bool, len(conflict.Target))
	for _, col := range conflict.Target {
		key[col] = true
	}

	targets := 0
	for _, a := range conflict.Set {
		if _, unsupported := a.(*ast.SetUnsupported); unsupported {
			continue
		}
		targets++
		if v, ok := a.(*ast.SetCoalesce); ok && !present(params, v.Param) {
			continue
		}
		col := a.Target()
		if key[col] {
			continue
		}
		if _, ok := row[col]; !ok {
			p.warn("on conflict", col, "column is not part of the inserted row")
			continue
		}
		opts.UpdateColumns = append(opts.UpdateColumns, col)
	}

	if targets > 0 && len(opts.UpdateColumns) == 0 {
		opts.IgnoreDuplicates = true
	}
	return opts
}

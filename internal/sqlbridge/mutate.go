package sqlbridge

import (
	"github.com/Julianb233/sierra-fred-carey-sub003/internal/sqlbridge/ast"
)

// planUpdate builds an update of the matched rows. COALESCE assignments whose
// parameter is null or missing are left out of the payload; an empty payload
// runs nothing.
func (c *Client) planUpdate(s *ast.UpdateStatement, params []interface{}) *plan {
	p := &plan{}

	row := make(map[string]interface{}, len(s.Set))
	for _, a := range s.Set {
		switch v := a.(type) {
		case *ast.SetParam:
			if value, ok := lookup(params, v.Param); ok {
				row[v.Column] = value
			}
		case *ast.SetBool:
			row[v.Column] = v.Value
		case *ast.SetCoalesce:
			if present(params, v.Param) {
				row[v.Column], _ = lookup(params, v.Param)
			}
		case *ast.SetNow:
			row[v.Column] = c.now()
		}
	}

	if len(row) == 0 {
		p.warn("set", "", "no column to update")
		return p
	}

	b := c.native.From(s.Table).Update(row)
	for _, pred := range s.Where {
		filter(b, pred, params)
	}
	p.builder = b.Select()
	return p
}

// planDelete builds a delete of the matched rows, returning them
func (c *Client) planDelete(s *ast.DeleteStatement, params []interface{}) *plan {
	b := c.native.From(s.Table).Delete()
	for _, pred := range s.Where {
		filter(b, pred, params)
	}
	return &plan{builder: b.Select()}
}

package sqlbridge

import (
	"fmt"
	"math"

	"github.com/Julianb233/sierra-fred-carey-sub003/internal/orm/query"
	"github.com/Julianb233/sierra-fred-carey-sub003/internal/sqlbridge/ast"
)

// planSelect builds a read. Aliased columns are fetched under their own
// name and renamed once the rows are back. A projection with no column left
// after dropping unsupported items runs nothing.
func (c *Client) planSelect(s *ast.SelectStatement, params []interface{}) (*plan, error) {
	p := &plan{aliases: s.AliasMap(), keepNames: s.Star}
	if !s.Star && len(s.Columns) == 0 {
		p.warn("select", "", "no supported column")
		return p, nil
	}
	b := c.native.From(s.Table)

	columns := s.ColumnNames()
	if s.Star {
		columns = append([]string{"*"}, columns...)
	}
	b.Select(columns...)

	for _, pred := range s.Where {
		filter(b, pred, params)
	}

	for _, term := range s.OrderBy {
		b.Order(term.Column, query.OrderOptions{Ascending: !term.Descending})
	}

	if s.Limit != nil {
		limit, err := count("limit", s.Limit, params)
		if err != nil {
			return nil, err
		}
		offset := 0
		if s.Offset != nil {
			if offset, err = count("offset", s.Offset, params); err != nil {
				return nil, err
			}
		}
		if limit > 0 && offset > math.MaxInt-(limit-1) {
			return nil, fmt.Errorf("offset %d plus limit %d overflows the row range", offset, limit)
		}
		if limit == 0 || offset == 0 {
			b.Limit(limit)
		} else {
			b.Range(offset, offset+limit-1)
		}
	} else if s.Offset != nil {
		p.warn("offset", "", "OFFSET without LIMIT is ignored")
	}

	p.builder = b
	return p, nil
}

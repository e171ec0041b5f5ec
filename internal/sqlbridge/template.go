package sqlbridge

import (
	"strconv"
	"strings"
)

// UnsafeFragment is trusted SQL text spliced into a Template verbatim instead
// of being bound as a parameter. Never build one from user input.
type UnsafeFragment struct {
	SQL string
}

// Unsafe marks s as a trusted fragment
func Unsafe(s string) UnsafeFragment {
	return UnsafeFragment{SQL: s}
}

// Template is SQL text interleaved with values: Strings[0], Values[0],
// Strings[1], Values[1], ... Strings[n].
type Template struct {
	Strings []string
	Values  []interface{}
}

// Tmpl builds a Template from its literal parts and interpolated values
//
//	sqlbridge.Tmpl([]string{"SELECT * FROM users WHERE id = ", " AND active = ", ""}, id, true)
func Tmpl(parts []string, values ...interface{}) Template {
	return Template{Strings: parts, Values: values}
}

// Assemble renders the template as SQL with $n placeholders and the matching
// parameter list. Unsafe fragments are spliced in and consume no placeholder
// number. Values without a following literal part are still bound, in order.
func (t Template) Assemble() (string, []interface{}) {
	var sql strings.Builder
	params := make([]interface{}, 0, len(t.Values))

	for i, part := range t.Strings {
		sql.WriteString(part)
		if i < len(t.Values) {
			writeValue(&sql, &params, t.Values[i])
		}
	}
	for i := len(t.Strings); i < len(t.Values); i++ {
		writeValue(&sql, &params, t.Values[i])
	}

	return sql.String(), params
}

func writeValue(sql *strings.Builder, params *[]interface{}, value interface{}) {
	switch v := value.(type) {
	case UnsafeFragment:
		sql.WriteString(v.SQL)
	case *UnsafeFragment:
		if v != nil {
			sql.WriteString(v.SQL)
		}
	default:
		*params = append(*params, value)
		sql.WriteString("$" + strconv.Itoa(len(*params)))
	}
}

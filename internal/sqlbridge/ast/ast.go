// Package ast defines the typed statement tree produced by the sqlbridge parser.
//
// Every clause the parser could not classify is kept as an Unsupported node
// instead of disappearing, so the executor can decide whether to drop it
// (lenient mode) or refuse the statement (strict mode).
package ast

import "fmt"

// StatementKind identifies the top-level statement type
type StatementKind int

const (
	KindUnsupported StatementKind = iota
	KindInsert
	KindSelect
	KindUpdate
	KindDelete
)

// String returns the SQL keyword of the statement kind
func (k StatementKind) String() string {
	switch k {
	case KindInsert:
		return "INSERT"
	case KindSelect:
		return "SELECT"
	case KindUpdate:
		return "UPDATE"
	case KindDelete:
		return "DELETE"
	default:
		return "UNSUPPORTED"
	}
}

// Statement is implemented by every parsed statement
type Statement interface {
	Kind() StatementKind
	TableName() string
	// Unsupported lists the fragments the parser could not classify
	Unsupported() []*Unsupported
}

// Unsupported records a fragment of the statement outside the supported grammar
type Unsupported struct {
	Clause string // where, set, order by, select, values, on conflict
	Text   string // the fragment as written
	Reason string
}

// String formats the fragment for logs and warnings
func (u *Unsupported) String() string {
	if u.Reason == "" {
		return fmt.Sprintf("%s: %q", u.Clause, u.Text)
	}
	return fmt.Sprintf("%s: %q (%s)", u.Clause, u.Text, u.Reason)
}

// Expressions

// Expr is a value position: an INSERT value or the right-hand side of a predicate
type Expr interface {
	exprNode()
}

// Param is a positional placeholder $Index (1-indexed)
type Param struct {
	Index int
}

// BoolLiteral is TRUE or FALSE
type BoolLiteral struct {
	Value bool
}

// NullLiteral is NULL
type NullLiteral struct{}

// NumberLiteral holds an int64 or float64
type NumberLiteral struct {
	Value interface{}
}

// StringLiteral is a single-quoted string
type StringLiteral struct {
	Value string
}

// Now is NOW() or CURRENT_TIMESTAMP, evaluated at execution time
type Now struct{}

func (*Param) exprNode()         {}
func (*BoolLiteral) exprNode()   {}
func (*NullLiteral) exprNode()   {}
func (*NumberLiteral) exprNode() {}
func (*StringLiteral) exprNode() {}
func (*Now) exprNode()           {}

// Predicates

// CompareOp is a relational operator usable with Compare
type CompareOp int

const (
	OpGreaterThan CompareOp = iota
	OpGreaterThanOrEqual
	OpLessThan
	OpLessThanOrEqual
)

// String returns the SQL spelling of the operator
func (o CompareOp) String() string {
	switch o {
	case OpGreaterThan:
		return ">"
	case OpGreaterThanOrEqual:
		return ">="
	case OpLessThan:
		return "<"
	case OpLessThanOrEqual:
		return "<="
	default:
		return "?"
	}
}

// Predicate is one AND-joined WHERE fragment
type Predicate interface {
	predicateNode()
}

// Equal is `col = $n` or `col = true|false`. Value is *Param or *BoolLiteral.
type Equal struct {
	Column string
	Value  Expr
}

// IsNull is `col IS NULL`
type IsNull struct {
	Column string
}

// IsNotNull is `col IS NOT NULL`
type IsNotNull struct {
	Column string
}

// OptionalEqual is the `($n::TYPE IS NULL OR col = $n)` idiom: no filter when the
// parameter is null, equality otherwise
type OptionalEqual struct {
	Column string
	Param  *Param
	Cast   string // TYPE, empty when the cast is omitted
}

// Compare is `col >|>=|<|<= $n`
type Compare struct {
	Column string
	Op     CompareOp
	Param  *Param
}

// UnsupportedPredicate wraps a WHERE fragment nothing above matched
type UnsupportedPredicate struct {
	*Unsupported
}

func (*Equal) predicateNode()                {}
func (*IsNull) predicateNode()               {}
func (*IsNotNull) predicateNode()            {}
func (*OptionalEqual) predicateNode()        {}
func (*Compare) predicateNode()              {}
func (*UnsupportedPredicate) predicateNode() {}

// Assignments

// Assignment is one SET item of an UPDATE (or ON CONFLICT DO UPDATE)
type Assignment interface {
	assignmentNode()
	Target() string
}

// SetParam is `col = $n`
type SetParam struct {
	Column string
	Param  *Param
}

// SetBool is `col = true|false`
type SetBool struct {
	Column string
	Value  bool
}

// SetCoalesce is `col = COALESCE($n, col)`: write only when the parameter is present
type SetCoalesce struct {
	Column string
	Param  *Param
}

// SetNow is `col = NOW()`
type SetNow struct {
	Column string
}

// SetExcluded is `col = EXCLUDED.col`, only meaningful inside ON CONFLICT DO UPDATE
type SetExcluded struct {
	Column string
}

// SetUnsupported wraps a SET fragment nothing above matched. Column is the
// assignment target when one could be read.
type SetUnsupported struct {
	*Unsupported
	Column string
}

func (*SetParam) assignmentNode()       {}
func (*SetBool) assignmentNode()        {}
func (*SetCoalesce) assignmentNode()    {}
func (*SetNow) assignmentNode()         {}
func (*SetExcluded) assignmentNode()    {}
func (*SetUnsupported) assignmentNode() {}

func (a *SetParam) Target() string       { return a.Column }
func (a *SetBool) Target() string        { return a.Column }
func (a *SetCoalesce) Target() string    { return a.Column }
func (a *SetNow) Target() string         { return a.Column }
func (a *SetExcluded) Target() string    { return a.Column }
func (a *SetUnsupported) Target() string { return a.Column }

// Clauses

// Projection is one SELECT list item
type Projection struct {
	Column string
	Alias  string // empty when not aliased
}

// OrderTerm is one ORDER BY item
type OrderTerm struct {
	Column     string
	Descending bool
}

// ConflictAction selects the ON CONFLICT behaviour
type ConflictAction int

const (
	ConflictDoNothing ConflictAction = iota
	ConflictDoUpdate
)

// String returns the SQL spelling of the action
func (a ConflictAction) String() string {
	if a == ConflictDoUpdate {
		return "DO UPDATE"
	}
	return "DO NOTHING"
}

// ConflictClause is `ON CONFLICT (target) DO NOTHING | DO UPDATE SET ...`
type ConflictClause struct {
	Target []string
	Action ConflictAction
	Set    []Assignment
}

// Statements

// InsertStatement is a single-row INSERT
type InsertStatement struct {
	Table    string
	Columns  []string
	Values   []Expr
	Conflict *ConflictClause
	Skipped  []*Unsupported
}

// SelectStatement is a single-table SELECT
type SelectStatement struct {
	Table   string
	Star    bool
	Columns []*Projection
	Where   []Predicate
	OrderBy []*OrderTerm
	Limit   Expr // *Param or *NumberLiteral, nil when absent
	Offset  Expr // *Param or *NumberLiteral, nil when absent
	Skipped []*Unsupported
}

// UpdateStatement is UPDATE ... SET ... WHERE ...
type UpdateStatement struct {
	Table   string
	Set     []Assignment
	Where   []Predicate
	Skipped []*Unsupported
}

// DeleteStatement is DELETE FROM ... WHERE ...
type DeleteStatement struct {
	Table   string
	Where   []Predicate
	Skipped []*Unsupported
}

func (*InsertStatement) Kind() StatementKind { return KindInsert }
func (*SelectStatement) Kind() StatementKind { return KindSelect }
func (*UpdateStatement) Kind() StatementKind { return KindUpdate }
func (*DeleteStatement) Kind() StatementKind { return KindDelete }

func (s *InsertStatement) TableName() string { return s.Table }
func (s *SelectStatement) TableName() string { return s.Table }
func (s *UpdateStatement) TableName() string { return s.Table }
func (s *DeleteStatement) TableName() string { return s.Table }

func (s *InsertStatement) Unsupported() []*Unsupported {
	if s.Conflict == nil {
		return collect(s.Skipped, nil, nil)
	}
	return collect(s.Skipped, nil, s.Conflict.Set)
}

func (s *SelectStatement) Unsupported() []*Unsupported { return collect(s.Skipped, s.Where, nil) }
func (s *UpdateStatement) Unsupported() []*Unsupported { return collect(s.Skipped, s.Where, s.Set) }
func (s *DeleteStatement) Unsupported() []*Unsupported { return collect(s.Skipped, s.Where, nil) }

// collect gathers structural skips plus unsupported predicate and assignment nodes
func collect(skipped []*Unsupported, where []Predicate, set []Assignment) []*Unsupported {
	out := make([]*Unsupported, 0, len(skipped))
	out = append(out, skipped...)
	for _, p := range where {
		if u, ok := p.(*UnsupportedPredicate); ok {
			out = append(out, u.Unsupported)
		}
	}
	for _, a := range set {
		if u, ok := a.(*SetUnsupported); ok {
			out = append(out, u.Unsupported)
		}
	}
	return out
}

// AliasMap returns underlying column -> requested output name for every aliased
// projection. It is built per call and never shared.
func (s *SelectStatement) AliasMap() map[string]string {
	aliases := make(map[string]string)
	for _, p := range s.Columns {
		if p.Alias != "" {
			aliases[p.Column] = p.Alias
		}
	}
	return aliases
}

// ColumnNames returns the bare column names of the projection
func (s *SelectStatement) ColumnNames() []string {
	names := make([]string, 0, len(s.Columns))
	for _, p := range s.Columns {
		names = append(names, p.Column)
	}
	return names
}

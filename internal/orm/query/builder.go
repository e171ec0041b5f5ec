// Package query provides a fluent, single-table query builder over database/sql.
//
// A Builder is started with Client.From and finished with Execute. Every
// statement it emits is parameterized; table and column names are validated
// and quoted. Mistakes in the chain are collected and reported by ToSQL or
// Execute instead of panicking.
package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// DB is the subset of *sql.DB and *sql.Tx the builder needs
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Client starts builders against one database
type Client struct {
	db      DB
	dialect Dialect
}

// NewClient creates a client emitting SQL for dialect
func NewClient(db DB, dialect Dialect) *Client {
	return &Client{db: db, dialect: dialect}
}

// Dialect returns the client's SQL dialect
func (c *Client) Dialect() Dialect {
	return c.dialect
}

// From starts a builder on table
func (c *Client) From(table string) *Builder {
	return &Builder{
		client:     c,
		table:      table,
		action:     actionSelect,
		conditions: make([]*Condition, 0),
		orderBy:    make([]orderTerm, 0),
		errs:       make([]error, 0),
	}
}

type action int

const (
	actionSelect action = iota
	actionInsert
	actionUpsert
	actionUpdate
	actionDelete
)

// String returns the SQL verb of the action
func (a action) String() string {
	switch a {
	case actionInsert, actionUpsert:
		return "INSERT"
	case actionUpdate:
		return "UPDATE"
	case actionDelete:
		return "DELETE"
	default:
		return "SELECT"
	}
}

// UpsertOptions configures Upsert
type UpsertOptions struct {
	// OnConflict lists the columns of the unique constraint to resolve against
	OnConflict []string
	// IgnoreDuplicates turns the conflict action into DO NOTHING
	IgnoreDuplicates bool
	// UpdateColumns restricts the columns written on conflict. Empty means every
	// row column outside OnConflict.
	UpdateColumns []string
}

// OrderOptions configures Order
type OrderOptions struct {
	Ascending bool
}

type orderTerm struct {
	column    string
	ascending bool
}

// Builder provides a fluent API for building one SQL statement
type Builder struct {
	client *Client
	table  string
	action action

	columns    []string // SELECT projection
	returning  []string // RETURNING list for mutations, nil for none
	row        map[string]interface{}
	upsert     UpsertOptions
	conditions []*Condition
	orderBy    []orderTerm
	limit      *int
	offset     *int

	errs []error
}

// Select sets the projection of a read. After Insert, Upsert, Update or Delete it
// requests the affected rows back instead, like Returning.
func (b *Builder) Select(columns ...string) *Builder {
	if len(columns) == 0 {
		columns = []string{"*"}
	}
	if b.action != actionSelect {
		return b.Returning(columns...)
	}
	b.columns = append(b.columns, columns...)
	return b
}

// Insert turns the builder into a single-row INSERT
func (b *Builder) Insert(row map[string]interface{}) *Builder {
	b.setMutation(actionInsert, row)
	return b
}

// Upsert turns the builder into INSERT ... ON CONFLICT
func (b *Builder) Upsert(row map[string]interface{}, opts UpsertOptions) *Builder {
	b.setMutation(actionUpsert, row)
	b.upsert = opts
	return b
}

// Update turns the builder into an UPDATE writing the columns of row
func (b *Builder) Update(row map[string]interface{}) *Builder {
	b.setMutation(actionUpdate, row)
	return b
}

// Delete turns the builder into a DELETE
func (b *Builder) Delete() *Builder {
	b.setMutation(actionDelete, nil)
	return b
}

func (b *Builder) setMutation(a action, row map[string]interface{}) {
	if b.action != actionSelect {
		b.errs = append(b.errs, fmt.Errorf("cannot %s: builder is already an %s", a.String(), b.action.String()))
		return
	}
	if len(b.columns) > 0 {
		b.errs = append(b.errs, fmt.Errorf("cannot %s after Select", a.String()))
		return
	}
	b.action = a
	b.row = row
}

// Returning requests the affected rows of a mutation
func (b *Builder) Returning(columns ...string) *Builder {
	if len(columns) == 0 {
		columns = []string{"*"}
	}
	b.returning = append(b.returning, columns...)
	return b
}

// Eq adds a column = value filter
func (b *Builder) Eq(column string, value interface{}) *Builder {
	return b.where(column, OpEqual, value)
}

// Neq adds a column != value filter
func (b *Builder) Neq(column string, value interface{}) *Builder {
	return b.where(column, OpNotEqual, value)
}

// Gt adds a column > value filter
func (b *Builder) Gt(column string, value interface{}) *Builder {
	return b.where(column, OpGreaterThan, value)
}

// Gte adds a column >= value filter
func (b *Builder) Gte(column string, value interface{}) *Builder {
	return b.where(column, OpGreaterThanOrEqual, value)
}

// Lt adds a column < value filter
func (b *Builder) Lt(column string, value interface{}) *Builder {
	return b.where(column, OpLessThan, value)
}

// Lte adds a column <= value filter
func (b *Builder) Lte(column string, value interface{}) *Builder {
	return b.where(column, OpLessThanOrEqual, value)
}

// In adds a column IN (values...) filter
func (b *Builder) In(column string, values ...interface{}) *Builder {
	return b.where(column, OpIn, values)
}

// Is adds a column IS NULL|TRUE|FALSE filter; value must be nil or a bool
func (b *Builder) Is(column string, value interface{}) *Builder {
	return b.where(column, OpIs, value)
}

// Not adds the negation of a named operator: eq, neq, gt, gte, lt, lte, is.
// Not("deleted_at", "is", nil) yields deleted_at IS NOT NULL.
func (b *Builder) Not(column string, operator string, value interface{}) *Builder {
	op, ok := operatorNames[strings.ToLower(operator)]
	if !ok {
		b.errs = append(b.errs, fmt.Errorf("unknown operator for Not: %q", operator))
		return b
	}
	negated, ok := op.negate()
	if !ok {
		b.errs = append(b.errs, fmt.Errorf("operator %q cannot be negated", operator))
		return b
	}
	return b.where(column, negated, value)
}

func (b *Builder) where(column string, op Operator, value interface{}) *Builder {
	if b.action == actionInsert || b.action == actionUpsert {
		b.errs = append(b.errs, fmt.Errorf("filters are not allowed on %s", b.action.String()))
		return b
	}
	b.conditions = append(b.conditions, &Condition{Field: column, Operator: op, Value: value})
	return b
}

// Order adds an ORDER BY term. Terms apply in call order; the default is ascending.
func (b *Builder) Order(column string, opts ...OrderOptions) *Builder {
	ascending := true
	if len(opts) > 0 {
		ascending = opts[0].Ascending
	}
	b.orderBy = append(b.orderBy, orderTerm{column: column, ascending: ascending})
	return b
}

// Limit caps the number of rows returned by a read
func (b *Builder) Limit(n int) *Builder {
	if n < 0 {
		b.errs = append(b.errs, fmt.Errorf("limit must not be negative, got %d", n))
		return b
	}
	b.limit = &n
	return b
}

// Range selects rows from..to inclusive (0-indexed), i.e. LIMIT to-from+1 OFFSET from
func (b *Builder) Range(from, to int) *Builder {
	if from < 0 || to < from {
		b.errs = append(b.errs, fmt.Errorf("invalid range %d..%d", from, to))
		return b
	}
	limit := to - from + 1
	b.limit = &limit
	b.offset = &from
	return b
}

// Operation returns the SQL verb the builder will execute
func (b *Builder) Operation() string {
	return b.action.String()
}

// Table returns the target table
func (b *Builder) Table() string {
	return b.table
}

// ToSQL generates the SQL statement and parameter bindings
func (b *Builder) ToSQL() (string, []interface{}, error) {
	if len(b.errs) > 0 {
		return "", nil, &BuildError{Table: b.table, Err: errors.Join(b.errs...)}
	}

	table, err := quoteIdent(b.table)
	if err != nil {
		return "", nil, &BuildError{Table: b.table, Err: err}
	}

	s := &statement{dialect: b.client.dialect, paramCounter: 1, args: make([]interface{}, 0)}

	switch b.action {
	case actionSelect:
		err = b.selectSQL(s, table)
	case actionInsert, actionUpsert:
		err = b.insertSQL(s, table)
	case actionUpdate:
		err = b.updateSQL(s, table)
	case actionDelete:
		err = b.deleteSQL(s, table)
	}
	if err != nil {
		return "", nil, &BuildError{Table: b.table, Err: err}
	}

	return s.sql.String(), s.args, nil
}

// statement accumulates SQL text and bindings
type statement struct {
	sql          strings.Builder
	dialect      Dialect
	paramCounter int
	args         []interface{}
}

func (s *statement) bind(value interface{}) string {
	s.args = append(s.args, value)
	placeholder := s.dialect.Placeholder(s.paramCounter)
	s.paramCounter++
	return placeholder
}

func (b *Builder) selectSQL(s *statement, table string) error {
	columns := b.columns
	if len(columns) == 0 {
		columns = []string{"*"}
	}
	projection, err := quoteList(columns)
	if err != nil {
		return err
	}
	s.sql.WriteString(fmt.Sprintf("SELECT %s FROM %s", projection, table))

	if err := b.whereSQL(s); err != nil {
		return err
	}

	if len(b.orderBy) > 0 {
		terms := make([]string, 0, len(b.orderBy))
		for _, term := range b.orderBy {
			column, err := quoteIdent(term.column)
			if err != nil {
				return err
			}
			dir := "ASC"
			if !term.ascending {
				dir = "DESC"
			}
			terms = append(terms, column+" "+dir)
		}
		s.sql.WriteString(" ORDER BY ")
		s.sql.WriteString(strings.Join(terms, ", "))
	}

	if b.limit != nil {
		s.sql.WriteString(" LIMIT " + s.bind(*b.limit))
	}
	if b.offset != nil {
		s.sql.WriteString(" OFFSET " + s.bind(*b.offset))
	}
	return nil
}

func (b *Builder) insertSQL(s *statement, table string) error {
	columns := sortedKeys(b.row)
	if len(columns) == 0 {
		return ErrEmptyPayload
	}

	quoted, err := quoteList(columns)
	if err != nil {
		return err
	}
	placeholders := make([]string, len(columns))
	for i, col := range columns {
		placeholders[i] = s.bind(b.row[col])
	}
	s.sql.WriteString(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, quoted, strings.Join(placeholders, ", ")))

	if b.action == actionUpsert {
		if err := b.conflictSQL(s, columns); err != nil {
			return err
		}
	}

	return b.returningSQL(s)
}

// conflictSQL writes ON CONFLICT for an upsert
func (b *Builder) conflictSQL(s *statement, columns []string) error {
	target := ""
	if len(b.upsert.OnConflict) > 0 {
		quoted, err := quoteList(b.upsert.OnConflict)
		if err != nil {
			return err
		}
		target = " (" + quoted + ")"
	}

	if b.upsert.IgnoreDuplicates {
		s.sql.WriteString(" ON CONFLICT" + target + " DO NOTHING")
		return nil
	}
	if target == "" {
		return errors.New("upsert without IgnoreDuplicates requires OnConflict columns")
	}

	update := b.upsert.UpdateColumns
	if len(update) == 0 {
		skip := make(map[string]bool, len(b.upsert.OnConflict))
		for _, col := range b.upsert.OnConflict {
			skip[col] = true
		}
		for _, col := range columns {
			if !skip[col] {
				update = append(update, col)
			}
		}
	}
	if len(update) == 0 {
		s.sql.WriteString(" ON CONFLICT" + target + " DO NOTHING")
		return nil
	}

	sets := make([]string, 0, len(update))
	for _, col := range update {
		quoted, err := quoteIdent(col)
		if err != nil {
			return err
		}
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", quoted, quoted))
	}
	s.sql.WriteString(" ON CONFLICT" + target + " DO UPDATE SET " + strings.Join(sets, ", "))
	return nil
}

func (b *Builder) updateSQL(s *statement, table string) error {
	columns := sortedKeys(b.row)
	if len(columns) == 0 {
		return ErrEmptyPayload
	}
	if len(b.conditions) == 0 {
		return ErrMissingFilter
	}

	sets := make([]string, 0, len(columns))
	for _, col := range columns {
		quoted, err := quoteIdent(col)
		if err != nil {
			return err
		}
		sets = append(sets, quoted+" = "+s.bind(b.row[col]))
	}
	s.sql.WriteString(fmt.Sprintf("UPDATE %s SET %s", table, strings.Join(sets, ", ")))

	if err := b.whereSQL(s); err != nil {
		return err
	}
	return b.returningSQL(s)
}

func (b *Builder) deleteSQL(s *statement, table string) error {
	if len(b.conditions) == 0 {
		return ErrMissingFilter
	}
	s.sql.WriteString("DELETE FROM " + table)
	if err := b.whereSQL(s); err != nil {
		return err
	}
	return b.returningSQL(s)
}

func (b *Builder) whereSQL(s *statement) error {
	if len(b.conditions) == 0 {
		return nil
	}
	parts := make([]string, 0, len(b.conditions))
	for _, cond := range b.conditions {
		condSQL, err := conditionToSQL(cond, s.dialect, &s.paramCounter, &s.args)
		if err != nil {
			return fmt.Errorf("failed to build condition: %w", err)
		}
		parts = append(parts, condSQL)
	}
	s.sql.WriteString(" WHERE ")
	s.sql.WriteString(strings.Join(parts, " AND "))
	return nil
}

func (b *Builder) returningSQL(s *statement) error {
	if len(b.returning) == 0 {
		return nil
	}
	list, err := quoteList(b.returning)
	if err != nil {
		return err
	}
	s.sql.WriteString(" RETURNING " + list)
	return nil
}

// Execute runs the statement. Reads and mutations with Returning yield the rows;
// other mutations yield an empty slice. The slice is never nil.
func (b *Builder) Execute(ctx context.Context) ([]map[string]interface{}, error) {
	sqlStr, args, err := b.ToSQL()
	if err != nil {
		return nil, err
	}

	if b.action != actionSelect && len(b.returning) == 0 {
		if _, err := b.client.db.ExecContext(ctx, sqlStr, args...); err != nil {
			return nil, ConvertDBError(err)
		}
		return make([]map[string]interface{}, 0), nil
	}

	rows, err := b.client.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, ConvertDBError(err)
	}
	defer rows.Close()

	results, err := scanRows(rows)
	if err != nil {
		return nil, ConvertDBError(err)
	}
	return results, nil
}

// quoteList quotes and comma-joins identifiers
func quoteList(identifiers []string) (string, error) {
	quoted := make([]string, len(identifiers))
	for i, id := range identifiers {
		q, err := quoteIdent(id)
		if err != nil {
			return "", err
		}
		quoted[i] = q
	}
	return strings.Join(quoted, ", "), nil
}

// sortedKeys returns the row's columns in lexical order so generated SQL is stable
func sortedKeys(row map[string]interface{}) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

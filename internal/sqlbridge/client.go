// Package sqlbridge executes parameterized SQL text through the fluent query
// builder in internal/orm/query.
//
// A statement is classified by its first keyword, parsed into a typed tree and
// replayed as a builder chain. Only single-table INSERT, SELECT, UPDATE and
// DELETE statements with AND-joined predicates are understood. By default
// anything else is dropped with a warning (fail open); Config.Strict turns
// those cases into *UnsupportedError.
package sqlbridge

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/Julianb233/sierra-fred-carey-sub003/internal/orm/query"
	"github.com/Julianb233/sierra-fred-carey-sub003/internal/sqlbridge/ast"
	"github.com/Julianb233/sierra-fred-carey-sub003/internal/sqlbridge/parser"
)

// queryPrefixLen bounds the statement text copied into logs and errors
const queryPrefixLen = 80

// Config holds client options
type Config struct {
	// Logger receives parse-miss warnings and execution failures. Nil disables logging.
	Logger *zap.Logger
	// Strict rejects unsupported statements and fragments instead of dropping them
	Strict bool
	// Now supplies the timestamp written for NOW(). Nil means time.Now.
	Now func() time.Time
}

// DefaultConfig returns the lenient configuration with logging disabled
func DefaultConfig() Config {
	return Config{
		Logger: zap.NewNop(),
		Strict: false,
		Now:    time.Now,
	}
}

// Client translates SQL statements into builder calls. It holds no per-call
// state and is safe for concurrent use.
type Client struct {
	native *query.Client
	logger *zap.Logger
	strict bool
	now    func() time.Time
}

// NewClient creates a client executing against db
func NewClient(db query.DB, dialect query.Dialect, cfg Config) *Client {
	return NewClientWithBuilder(query.NewClient(db, dialect), cfg)
}

// NewClientWithBuilder creates a client driving an existing builder client
func NewClientWithBuilder(native *query.Client, cfg Config) *Client {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Client{
		native: native,
		logger: cfg.Logger,
		strict: cfg.Strict,
		now:    cfg.Now,
	}
}

// Strict reports whether the client rejects unsupported SQL
func (c *Client) Strict() bool {
	return c.strict
}

// SQL assembles t and executes it
func (c *Client) SQL(ctx context.Context, t Template) (*Result, error) {
	text, params := t.Assemble()
	return c.Execute(ctx, text, params)
}

// Execute runs a statement whose $n placeholders refer to params[n-1]
func (c *Client) Execute(ctx context.Context, sqlText string, params []interface{}) (*Result, error) {
	normalized := collapseWhitespace(sqlText)
	kind := Classify(normalized)
	if kind == ast.KindUnsupported {
		return c.rejectStatement(normalized, "statement type is not supported")
	}

	stmt, errs := parser.Parse(sqlText)
	if len(errs) > 0 {
		return c.rejectStatement(normalized, parser.Errors(errs).Error())
	}

	result := emptyResult()
	for _, u := range stmt.Unsupported() {
		result.Warnings = append(result.Warnings, warningFrom(u))
	}

	p, err := c.plan(stmt, params)
	if err == nil {
		result.Warnings = append(result.Warnings, p.warnings...)
		if c.strict && len(result.Warnings) > 0 {
			return nil, &UnsupportedError{Query: prefix(normalized), Warnings: result.Warnings}
		}
		c.logWarnings(stmt, result.Warnings)
		result.Rows, err = p.run(ctx)
	}

	if err != nil {
		c.logger.Error("sqlbridge: query failed",
			zap.String("table", stmt.TableName()),
			zap.String("operation", stmt.Kind().String()),
			zap.Error(err))
		return nil, &ExecError{Table: stmt.TableName(), Operation: stmt.Kind().String(), Err: err}
	}
	return result, nil
}

// plan dispatches to the statement handler
func (c *Client) plan(stmt ast.Statement, params []interface{}) (*plan, error) {
	switch s := stmt.(type) {
	case *ast.InsertStatement:
		return c.planInsert(s, params), nil
	case *ast.SelectStatement:
		return c.planSelect(s, params)
	case *ast.UpdateStatement:
		return c.planUpdate(s, params), nil
	case *ast.DeleteStatement:
		return c.planDelete(s, params), nil
	default:
		return nil, fmt.Errorf("no handler for %s", stmt.Kind())
	}
}

func (c *Client) logWarnings(stmt ast.Statement, warnings []Warning) {
	for _, w := range warnings {
		c.logger.Warn("sqlbridge: fragment not applied",
			zap.String("table", stmt.TableName()),
			zap.String("operation", stmt.Kind().String()),
			zap.String("clause", w.Clause),
			zap.String("fragment", w.Fragment),
			zap.String("reason", w.Reason))
	}
}

// rejectStatement handles a statement that cannot be translated at all
func (c *Client) rejectStatement(normalized, reason string) (*Result, error) {
	c.logger.Warn("sqlbridge: unsupported statement",
		zap.String("query", prefix(normalized)),
		zap.String("reason", reason))

	if c.strict {
		return nil, &UnsupportedError{Query: prefix(normalized), Reason: reason}
	}

	result := emptyResult()
	result.Warnings = append(result.Warnings, Warning{Clause: "statement", Reason: reason})
	return result, nil
}

// Classify returns the statement kind named by the first keyword of sqlText
func Classify(sqlText string) ast.StatementKind {
	trimmed := strings.TrimLeftFunc(sqlText, unicode.IsSpace)
	end := strings.IndexFunc(trimmed, func(r rune) bool { return !unicode.IsLetter(r) })
	if end == -1 {
		end = len(trimmed)
	}

	switch strings.ToUpper(trimmed[:end]) {
	case "INSERT":
		return ast.KindInsert
	case "SELECT":
		return ast.KindSelect
	case "UPDATE":
		return ast.KindUpdate
	case "DELETE":
		return ast.KindDelete
	default:
		return ast.KindUnsupported
	}
}

// collapseWhitespace trims s and folds every whitespace run into one space
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func prefix(s string) string {
	if len(s) <= queryPrefixLen {
		return s
	}
	cut := queryPrefixLen
	// keep the prefix valid UTF-8
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

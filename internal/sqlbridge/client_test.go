package sqlbridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Julianb233/sierra-fred-carey-sub003/internal/orm/query"
	"github.com/Julianb233/sierra-fred-carey-sub003/internal/sqlbridge/ast"
)

var fixedNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func newMockClient(t *testing.T, strict bool) (*Client, sqlmock.Sqlmock, *observer.ObservedLogs) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	core, logs := observer.New(zap.WarnLevel)
	client := NewClient(db, query.Postgres, Config{
		Logger: zap.New(core),
		Strict: strict,
		Now:    func() time.Time { return fixedNow },
	})
	return client, mock, logs
}

func TestClassify(t *testing.T) {
	tests := map[string]ast.StatementKind{
		"  insert into t (a) values ($1)": ast.KindInsert,
		"\n\tSELECT * FROM t":             ast.KindSelect,
		"Update t SET a = $1 WHERE b = $2": ast.KindUpdate,
		"delete from t where id = $1":     ast.KindDelete,
		"WITH x AS (SELECT 1) SELECT 1":   ast.KindUnsupported,
		"SELECTED":                        ast.KindUnsupported,
		"":                                ast.KindUnsupported,
	}
	for source, want := range tests {
		assert.Equal(t, want, Classify(source), source)
	}
}

func TestExecute_SelectWithAliasOrderAndLimit(t *testing.T) {
	client, mock, _ := newMockClient(t, false)

	mock.ExpectQuery(`SELECT "id", "email" FROM "users" WHERE "active" = $1 ORDER BY "created_at" DESC LIMIT $2`).
		WithArgs(true, 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email"}).
			AddRow(5, "e@x.io").
			AddRow(4, "d@x.io"))

	result, err := client.Execute(context.Background(),
		`SELECT id, email AS "userEmail" FROM users WHERE active = true ORDER BY created_at DESC LIMIT 2`, nil)

	require.NoError(t, err)
	require.Len(t, result.Rows, 2)
	for _, row := range result.Rows {
		assert.Contains(t, row, "userEmail")
		assert.NotContains(t, row, "email")
		assert.Contains(t, row, "id")
	}
	assert.Equal(t, "e@x.io", result.Rows[0]["userEmail"])
	assert.Empty(t, result.Warnings)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_SelectPredicates(t *testing.T) {
	client, mock, _ := newMockClient(t, false)

	mock.ExpectQuery(`SELECT * FROM "events" WHERE "user_id" = $1 AND "deleted_at" IS NULL AND "published_at" IS NOT NULL AND "team_id" = $2 AND "created_at" >= $3 AND "score" < $4`).
		WithArgs(7, "team-1", "2026-01-01", 10).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	result, err := client.Execute(context.Background(), `SELECT * FROM events
		WHERE user_id = $1
		AND deleted_at IS NULL
		AND published_at IS NOT NULL
		AND ($2::uuid IS NULL OR team_id = $2)
		AND created_at >= $3
		AND score < $4`, []interface{}{7, "team-1", "2026-01-01", 10})

	require.NoError(t, err)
	assert.NotNil(t, result.Rows)
	assert.Empty(t, result.Rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_OptionalFilterWithNullIsSkipped(t *testing.T) {
	client, mock, _ := newMockClient(t, false)

	mock.ExpectQuery(`SELECT * FROM "tasks" WHERE "done" = $1`).
		WithArgs(false).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	result, err := client.SQL(context.Background(), Tmpl(
		[]string{"SELECT * FROM tasks WHERE (", "::uuid IS NULL OR project_id = $1) AND done = false"},
		nil,
	))

	require.NoError(t, err)
	assert.Len(t, result.Rows, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_Pagination(t *testing.T) {
	client, mock, _ := newMockClient(t, false)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT * FROM "t" ORDER BY "id" ASC LIMIT $1 OFFSET $2`).
		WithArgs(5, 10).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err := client.Execute(ctx, "SELECT * FROM t ORDER BY id LIMIT $1 OFFSET $2", []interface{}{float64(5), int64(10)})
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT * FROM "t" LIMIT $1`).
		WithArgs(0).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err = client.Execute(ctx, "SELECT * FROM t LIMIT 0 OFFSET 4", nil)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT * FROM "t"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	result, err := client.Execute(ctx, "SELECT * FROM t OFFSET 3", nil)
	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "offset", result.Warnings[0].Clause)

	_, err = client.Execute(ctx, "SELECT * FROM t LIMIT $1", []interface{}{"many"})
	var execErr *ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "SELECT", execErr.Operation)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_InsertAlwaysReturnsRows(t *testing.T) {
	client, mock, _ := newMockClient(t, false)

	mock.ExpectQuery(`INSERT INTO "users" ("active", "created_at", "id", "name") VALUES ($1, $2, $3, $4) RETURNING *`).
		WithArgs(true, fixedNow, 1, "Ann").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "active"}).AddRow(1, "Ann", true))

	result, err := client.Execute(context.Background(),
		"INSERT INTO users (id, name, active, created_at) VALUES ($1, $2, true, NOW())",
		[]interface{}{1, "Ann"})

	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "Ann", result.Rows[0]["name"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_InsertOmitsMissingParameters(t *testing.T) {
	client, mock, _ := newMockClient(t, false)

	mock.ExpectQuery(`INSERT INTO "t" ("a") VALUES ($1) RETURNING *`).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"a"}).AddRow(1))

	_, err := client.Execute(context.Background(), "INSERT INTO t (a, b) VALUES ($1, $2)", []interface{}{1})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_InsertOnConflict(t *testing.T) {
	client, mock, _ := newMockClient(t, false)
	ctx := context.Background()

	mock.ExpectQuery(`INSERT INTO "users" ("id", "name") VALUES ($1, $2) ON CONFLICT ("id") DO NOTHING RETURNING *`).
		WithArgs(1, "Ann").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))
	result, err := client.Execute(ctx, "INSERT INTO users (id, name) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING", []interface{}{1, "Ann"})
	require.NoError(t, err)
	assert.Empty(t, result.Rows)

	mock.ExpectQuery(`INSERT INTO "profiles" ("bio", "updated_at", "user_id") VALUES ($1, $2, $3) ON CONFLICT ("user_id") DO UPDATE SET "bio" = EXCLUDED."bio", "updated_at" = EXCLUDED."updated_at" RETURNING *`).
		WithArgs("hi", fixedNow, 9).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(9))
	result, err = client.Execute(ctx, `INSERT INTO profiles (user_id, bio, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET bio = EXCLUDED.bio, updated_at = NOW(), avatar = $3`,
		[]interface{}{9, "hi", "a.png"})
	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "on conflict", result.Warnings[0].Clause)
	assert.Equal(t, "avatar", result.Warnings[0].Fragment)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_UpdateCoalesceAndNow(t *testing.T) {
	client, mock, _ := newMockClient(t, false)
	ctx := context.Background()

	mock.ExpectQuery(`UPDATE "users" SET "updated_at" = $1 WHERE "id" = $2 RETURNING *`).
		WithArgs(fixedNow, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	_, err := client.Execute(ctx, "UPDATE users SET name = COALESCE($1, name), updated_at = NOW() WHERE id = $2", []interface{}{nil, 1})
	require.NoError(t, err)

	mock.ExpectQuery(`UPDATE "users" SET "name" = $1, "role" = $2, "verified" = $3 WHERE "id" = $4 AND "active" = $5 RETURNING *`).
		WithArgs("Bo", nil, true, 1, true).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	result, err := client.Execute(ctx, "UPDATE users SET name = COALESCE($1, name), verified = true, role = $2 WHERE id = $3 AND active = true", []interface{}{"Bo", nil, 1})
	require.NoError(t, err)
	assert.Empty(t, result.Rows)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_UpdateWithNothingToWriteRunsNothing(t *testing.T) {
	client, mock, _ := newMockClient(t, false)

	result, err := client.Execute(context.Background(), "UPDATE users SET name = COALESCE($1, name) WHERE id = $2", []interface{}{nil, 1})

	require.NoError(t, err)
	assert.Empty(t, result.Rows)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "set", result.Warnings[0].Clause)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_DroppedFilterCannotWidenAMutation(t *testing.T) {
	client, mock, _ := newMockClient(t, false)

	_, err := client.Execute(context.Background(), "DELETE FROM users WHERE email LIKE $1", []interface{}{"%@x.io"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, query.ErrMissingFilter), "got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_Delete(t *testing.T) {
	client, mock, _ := newMockClient(t, false)

	mock.ExpectQuery(`DELETE FROM "sessions" WHERE "user_id" = $1 AND "revoked" = $2 RETURNING *`).
		WithArgs(5, true).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2))

	result, err := client.Execute(context.Background(), "DELETE FROM sessions WHERE user_id = $1 AND revoked = true;", []interface{}{5})

	require.NoError(t, err)
	assert.Len(t, result.Rows, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_UnsupportedStatement(t *testing.T) {
	client, mock, logs := newMockClient(t, false)

	result, err := client.Execute(context.Background(), "WITH x AS (SELECT 1) SELECT * FROM x", nil)

	require.NoError(t, err)
	assert.NotNil(t, result.Rows)
	assert.Empty(t, result.Rows)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "statement", result.Warnings[0].Clause)

	entries := logs.FilterMessage("sqlbridge: unsupported statement").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "WITH x AS (SELECT 1) SELECT * FROM x", entries[0].ContextMap()["query"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_ParseMissIsAWarning(t *testing.T) {
	client, mock, _ := newMockClient(t, false)

	result, err := client.Execute(context.Background(), "SELECT id FROM users u JOIN teams t ON t.id = u.team_id", nil)

	require.NoError(t, err)
	assert.Empty(t, result.Rows)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "statement", result.Warnings[0].Clause)
	assert.NotEmpty(t, result.Warnings[0].Reason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_UnsupportedFragmentIsReported(t *testing.T) {
	client, mock, logs := newMockClient(t, false)

	mock.ExpectQuery(`SELECT "id" FROM "users" WHERE "active" = $1`).
		WithArgs(true).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	result, err := client.Execute(context.Background(), "SELECT id FROM users WHERE active = $1 AND email LIKE $2", []interface{}{true, "%a%"})

	require.NoError(t, err)
	assert.Len(t, result.Rows, 1)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, Warning{Clause: "where", Fragment: "email LIKE $2", Reason: result.Warnings[0].Reason}, result.Warnings[0])

	entries := logs.FilterMessage("sqlbridge: fragment not applied").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "users", entries[0].ContextMap()["table"])
	assert.Equal(t, "SELECT", entries[0].ContextMap()["operation"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_EmptyProjectionRunsNothing(t *testing.T) {
	client, mock, _ := newMockClient(t, false)

	result, err := client.Execute(context.Background(), "SELECT DISTINCT team_id FROM users WHERE active = $1", []interface{}{true})

	require.NoError(t, err)
	assert.Empty(t, result.Rows)
	require.Len(t, result.Warnings, 2)
	assert.Equal(t, "select", result.Warnings[0].Clause)
	assert.Equal(t, Warning{Clause: "select", Reason: "no supported column"}, result.Warnings[1])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_StrictRejectsBeforeExecuting(t *testing.T) {
	client, mock, _ := newMockClient(t, true)
	ctx := context.Background()
	assert.True(t, client.Strict())

	_, err := client.Execute(ctx, "SELECT id FROM users WHERE active = $1 AND email LIKE $2", []interface{}{true, "%a%"})
	var unsupported *UnsupportedError
	require.ErrorAs(t, err, &unsupported)
	require.Len(t, unsupported.Warnings, 1)
	assert.Contains(t, err.Error(), "email LIKE $2")

	_, err = client.Execute(ctx, "TRUNCATE users", nil)
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "TRUNCATE users", unsupported.Query)

	_, err = client.Execute(ctx, "UPDATE users SET name = COALESCE($1, name) WHERE id = $2", []interface{}{nil, 1})
	require.ErrorAs(t, err, &unsupported)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_DatabaseErrorsAreClassified(t *testing.T) {
	client, mock, _ := newMockClient(t, false)

	core, logs := observer.New(zap.ErrorLevel)
	client.logger = zap.New(core)

	mock.ExpectQuery(`INSERT INTO "users" ("id") VALUES ($1) RETURNING *`).
		WithArgs(1).
		WillReturnError(&pgconn.PgError{Code: "23505", Detail: "Key (id)=(1) already exists."})

	_, err := client.Execute(context.Background(), "INSERT INTO users (id) VALUES ($1)", []interface{}{1})

	var execErr *ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "users", execErr.Table)
	assert.Equal(t, "INSERT", execErr.Operation)
	assert.True(t, errors.Is(err, query.ErrUniqueViolation))
	assert.True(t, query.IsUniqueViolation(err))

	entries := logs.FilterMessage("sqlbridge: query failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "users", entries[0].ContextMap()["table"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrefix(t *testing.T) {
	short := "SELECT 1"
	assert.Equal(t, short, prefix(short))

	long := "SELECT " + string(make([]byte, 100))
	assert.Len(t, prefix(long), queryPrefixLen+3)

	multibyte := "SELECT '" + "ééééééééééééééééééééééééééééééééééééééééééééééé" + "'"
	got := prefix(multibyte)
	assert.True(t, len(got) <= queryPrefixLen+3)
	assert.Equal(t, "...", got[len(got)-3:])
}

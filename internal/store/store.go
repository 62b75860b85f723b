// internal/store/store.go
package store

import (
	"context"
	"database/sql"
)

// Querier is the subset of database/sql used by the stores. Satisfied by
// *tenant.Scope, *sql.DB, *sql.Conn, and *sql.Tx, which keeps the stores
// testable with sqlmock while production code always passes a tenant scope.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

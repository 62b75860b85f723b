// internal/tenant/scope.go
package tenant

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"esign-engine/internal/common/errors"
)

// schemaNamePattern guards against a registry row smuggling SQL into the
// SET search_path statement. Schema names are provisioned lowercase.
var schemaNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Scope is a single database connection pinned to one tenant's schema.
// Every query issued through the scope resolves unqualified table names
// inside that schema only, so store code never interpolates the tenant.
//
// A Scope is not safe for concurrent use; acquire one per job.
type Scope struct {
	conn   *sql.Conn
	slug   string
	schema string
}

// NewScope acquires a connection from the pool and pins its search_path to
// the tenant's schema. Callers must Close the scope to return the
// connection.
func NewScope(ctx context.Context, db *sql.DB, registry *Registry, slug string) (*Scope, error) {
	schema, err := registry.Resolve(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !schemaNamePattern.MatchString(schema) {
		return nil, errors.NewTenantScopeFailedError(slug, fmt.Errorf("invalid schema name %q", schema))
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, errors.NewTenantScopeFailedError(slug, err)
	}

	// search_path cannot be bound as a parameter; the schema name is
	// validated above.
	if _, err := conn.ExecContext(ctx, fmt.Sprintf(`SET search_path TO %s`, schema)); err != nil {
		conn.Close()
		return nil, errors.NewTenantScopeFailedError(slug, err)
	}

	return &Scope{conn: conn, slug: slug, schema: schema}, nil
}

// Slug returns the tenant slug this scope is pinned to.
func (s *Scope) Slug() string { return s.slug }

func (s *Scope) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return s.conn.QueryContext(ctx, query, args...)
}

func (s *Scope) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return s.conn.QueryRowContext(ctx, query, args...)
}

func (s *Scope) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return s.conn.ExecContext(ctx, query, args...)
}

// BeginTx starts a transaction on the pinned connection.
func (s *Scope) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.conn.BeginTx(ctx, nil)
}

// Close resets the search_path and returns the connection to the pool.
func (s *Scope) Close() error {
	ctx := context.Background()
	s.conn.ExecContext(ctx, `SET search_path TO DEFAULT`)
	return s.conn.Close()
}

// internal/tenant/registry_test.go
package tenant

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Resolve(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM admin\.tenants`).
		WithArgs("acme").
		WillReturnRows(sqlmock.NewRows([]string{"schema_name", "is_active"}).
			AddRow("tenant_acme", true))

	registry := NewRegistry(db, time.Minute)

	schema, err := registry.Resolve(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "tenant_acme", schema)

	// Second resolve is served from cache: no second query expected.
	schema, err = registry.Resolve(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "tenant_acme", schema)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistry_Resolve_Unknown(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM admin\.tenants`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"schema_name", "is_active"}))

	registry := NewRegistry(db, time.Minute)
	_, err = registry.Resolve(context.Background(), "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TENANT_UNKNOWN")
}

func TestRegistry_Resolve_Inactive(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM admin\.tenants`).
		WithArgs("suspended").
		WillReturnRows(sqlmock.NewRows([]string{"schema_name", "is_active"}).
			AddRow("tenant_suspended", false))

	registry := NewRegistry(db, time.Minute)
	_, err = registry.Resolve(context.Background(), "suspended")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TENANT_UNKNOWN")
}

func TestRegistry_Invalidate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM admin\.tenants`).
		WillReturnRows(sqlmock.NewRows([]string{"schema_name", "is_active"}).
			AddRow("tenant_acme", true))
	mock.ExpectQuery(`FROM admin\.tenants`).
		WillReturnRows(sqlmock.NewRows([]string{"schema_name", "is_active"}).
			AddRow("tenant_acme_v2", true))

	registry := NewRegistry(db, time.Minute)

	schema, err := registry.Resolve(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "tenant_acme", schema)

	registry.Invalidate("acme")

	schema, err = registry.Resolve(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "tenant_acme_v2", schema)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewScope_PinsSearchPath(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM admin\.tenants`).
		WillReturnRows(sqlmock.NewRows([]string{"schema_name", "is_active"}).
			AddRow("tenant_acme", true))
	mock.ExpectExec(`SET search_path TO tenant_acme`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`SET search_path TO DEFAULT`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	registry := NewRegistry(db, time.Minute)
	scope, err := NewScope(context.Background(), db, registry, "acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", scope.Slug())
	require.NoError(t, scope.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewScope_RejectsMalformedSchemaName(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM admin\.tenants`).
		WillReturnRows(sqlmock.NewRows([]string{"schema_name", "is_active"}).
			AddRow(`tenant_acme; DROP TABLE documents`, true))

	registry := NewRegistry(db, time.Minute)
	_, err = NewScope(context.Background(), db, registry, "acme")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TENANT_SCOPE_FAILED")
}

func TestSchemaNamePattern(t *testing.T) {
	valid := []string{"tenant_acme", "t1", "acme_corp_2026"}
	invalid := []string{"", "Tenant", "1tenant", "tenant-acme", "tenant acme", `tenant";--`}

	for _, s := range valid {
		assert.True(t, schemaNamePattern.MatchString(s), s)
	}
	for _, s := range invalid {
		assert.False(t, schemaNamePattern.MatchString(s), s)
	}
}

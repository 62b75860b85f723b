// internal/tenant/registry.go
package tenant

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"esign-engine/internal/common/errors"
)

// Registry resolves tenant slugs to their dedicated schema names using the
// admin.tenants table. Resolutions are cached; the cache entry expires so
// newly provisioned tenants become visible without a restart.
type Registry struct {
	db       *sql.DB
	cacheTTL time.Duration

	mu    sync.RWMutex
	cache map[string]cachedTenant
}

type cachedTenant struct {
	schema    string
	expiresAt time.Time
}

// Tenant is one row of the admin registry.
type Tenant struct {
	Slug       string
	SchemaName string
	IsActive   bool
}

func NewRegistry(db *sql.DB, cacheTTL time.Duration) *Registry {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &Registry{
		db:       db,
		cacheTTL: cacheTTL,
		cache:    make(map[string]cachedTenant),
	}
}

// Resolve returns the schema name for a tenant slug. Unknown or inactive
// tenants yield TENANT_UNKNOWN.
func (r *Registry) Resolve(ctx context.Context, slug string) (string, error) {
	r.mu.RLock()
	entry, ok := r.cache[slug]
	r.mu.RUnlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.schema, nil
	}

	var schema string
	var isActive bool
	err := r.db.QueryRowContext(ctx, `
		SELECT schema_name, is_active
		FROM admin.tenants
		WHERE slug = $1`, slug).Scan(&schema, &isActive)
	if err == sql.ErrNoRows {
		return "", errors.NewTenantUnknownError(slug)
	}
	if err != nil {
		return "", errors.NewQueryExecutionFailedError("resolve tenant", err)
	}
	if !isActive {
		return "", errors.NewTenantUnknownError(slug)
	}

	r.mu.Lock()
	r.cache[slug] = cachedTenant{schema: schema, expiresAt: time.Now().Add(r.cacheTTL)}
	r.mu.Unlock()

	return schema, nil
}

// Invalidate drops a cached resolution, forcing the next Resolve to hit the
// registry table.
func (r *Registry) Invalidate(slug string) {
	r.mu.Lock()
	delete(r.cache, slug)
	r.mu.Unlock()
}

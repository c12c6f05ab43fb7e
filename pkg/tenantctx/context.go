// Package tenantctx carries the resolved tenant through request
// contexts and scopes persistence queries to it.
package tenantctx

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// TenantContextKey is the request context key for the resolved tenant ID.
type TenantContextKey struct{}

// WithTenantID stores the tenant ID in the context.
func WithTenantID(ctx context.Context, tenantID snowflake.ID) context.Context {
	return context.WithValue(ctx, TenantContextKey{}, tenantID)
}

// TenantIDFromContext returns the tenant ID from context, if set.
func TenantIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	if ctx == nil {
		return 0, false
	}

	value := ctx.Value(TenantContextKey{})
	switch typed := value.(type) {
	case snowflake.ID:
		return typed, true
	case int64:
		return snowflake.ID(typed), true
	case string:
		parsed, err := snowflake.ParseString(strings.TrimSpace(typed))
		if err == nil {
			return parsed, true
		}
	}
	return 0, false
}

// Scope merges the context tenant ID into a query. The context value
// always wins over any tenant_id an untrusted caller smuggled into the
// base filter, so a request can never read across tenants by parameter
// tampering. Queries without a tenant in context are left untouched.
func Scope(ctx context.Context) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		tenantID, ok := TenantIDFromContext(ctx)
		if !ok || tenantID == 0 {
			return tx
		}
		return tx.Where("tenant_id = ?", tenantID)
	}
}

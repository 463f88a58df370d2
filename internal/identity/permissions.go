package identity

import (
	"context"

	"github.com/go-redis/redis/v8"

	"github.com/rootedapp/portal/internal/cache"
	"github.com/rootedapp/portal/internal/errors"
)

// PermissionChecker answers authorization questions for a principal.
type PermissionChecker interface {
	HasPermission(ctx context.Context, id Identity, code string) (bool, error)
	HasAnyPermission(ctx context.Context, id Identity, codes []string) (bool, error)
	HasAllPermissions(ctx context.Context, id Identity, codes []string) (bool, error)
}

// RedisPermissionChecker reads the per-user permission hash. The Redis cache
// is the single source of truth for permissions; it is populated out-of-band
// by the admin service.
type RedisPermissionChecker struct {
	client *redis.Client
}

var _ PermissionChecker = (*RedisPermissionChecker)(nil)

// NewRedisPermissionChecker creates a checker over the shared Redis client.
func NewRedisPermissionChecker(client *redis.Client) *RedisPermissionChecker {
	return &RedisPermissionChecker{client: client}
}

func permissionKey(userID string) string {
	return cache.Keys("permission").Attr(userID).Build()
}

// HasPermission reports whether the principal holds the permission code.
// Superusers hold every permission.
func (c *RedisPermissionChecker) HasPermission(ctx context.Context, id Identity, code string) (bool, error) {
	if id.Superuser {
		return true, nil
	}
	if id.Anonymous || id.UserID == "" {
		return false, errors.Unauthorized("user not authenticated")
	}
	return c.client.HExists(ctx, permissionKey(id.UserID), code).Result()
}

// HasAnyPermission reports whether the principal holds at least one code.
func (c *RedisPermissionChecker) HasAnyPermission(ctx context.Context, id Identity, codes []string) (bool, error) {
	for _, code := range codes {
		ok, err := c.HasPermission(ctx, id, code)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// HasAllPermissions reports whether the principal holds every code.
func (c *RedisPermissionChecker) HasAllPermissions(ctx context.Context, id Identity, codes []string) (bool, error) {
	for _, code := range codes {
		ok, err := c.HasPermission(ctx, id, code)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// UserPermissions lists all permission codes held by the user.
func (c *RedisPermissionChecker) UserPermissions(ctx context.Context, userID string) ([]string, error) {
	if userID == "" {
		return nil, nil
	}
	return c.client.HKeys(ctx, permissionKey(userID)).Result()
}

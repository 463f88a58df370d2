package middleware

import (
	"net/http"
	"strings"

	"github.com/rootedapp/portal/internal/errors"
	"github.com/rootedapp/portal/internal/httputil"
	"github.com/rootedapp/portal/internal/identity"
	"github.com/rootedapp/portal/pkg/logger"
)

// AuthConfig declares a route's authentication and authorization policy.
// The zero value means: credentials are honored when present, anonymous
// access is allowed, no permissions are required.
type AuthConfig struct {
	// RequireAuth rejects requests without a valid credential.
	RequireAuth bool
	// PermissionCodes the principal must hold. Empty means none required.
	PermissionCodes []string
	// RequireAll demands every code in PermissionCodes; otherwise any one
	// suffices.
	RequireAll bool
	// AdminOnly restricts the route to admin principals.
	AdminOnly bool
}

// Public is the policy for routes open to everyone.
func Public() AuthConfig { return AuthConfig{} }

// Authenticated is the policy for routes that need a signed-in principal.
func Authenticated() AuthConfig { return AuthConfig{RequireAuth: true} }

// RequirePermissions is the policy for routes gated on permission codes.
func RequirePermissions(codes ...string) AuthConfig {
	return AuthConfig{RequireAuth: true, PermissionCodes: codes}
}

// AuthMiddleware resolves the request principal and binds it to the identity
// cell. Every route passes through it; per-route AuthConfig decides whether
// anonymous access is allowed and which permissions are required.
type AuthMiddleware struct {
	verifier identity.Verifier
	checker  identity.PermissionChecker
	logger   *logger.Logger
}

// NewAuthMiddleware creates the identity stage.
func NewAuthMiddleware(verifier identity.Verifier, checker identity.PermissionChecker, log *logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
		checker:  checker,
		logger:   log,
	}
}

// Wrap applies the policy to a single route.
func (m *AuthMiddleware) Wrap(cfg AuthConfig, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := m.resolve(r, cfg)
		if err != nil {
			m.logger.WithError(err).WithFields(map[string]interface{}{
				"path":   r.URL.Path,
				"method": r.Method,
			}).Warn("authentication failed")
			httputil.WriteError(w, err)
			return
		}

		if err := m.authorize(r, cfg, principal); err != nil {
			httputil.WriteError(w, err)
			return
		}

		ctx, tok := identity.Bind(r.Context(), principal)
		defer identity.Reset(tok)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// resolve turns the Authorization header into a principal. A missing or
// invalid credential on a route that allows anonymous access resolves to the
// anonymous principal rather than an error.
func (m *AuthMiddleware) resolve(r *http.Request, cfg AuthConfig) (identity.Identity, error) {
	token, ok := bearerToken(r)
	if !ok {
		if cfg.RequireAuth {
			return identity.Identity{}, errors.Unauthorized("missing bearer token")
		}
		return identity.Anonymous(), nil
	}

	principal, err := m.verifier.Verify(r.Context(), token)
	if err != nil {
		if cfg.RequireAuth {
			return identity.Identity{}, err
		}
		// Optional-auth routes degrade to anonymous on a bad token so a
		// stale credential cannot lock a user out of public content.
		m.logger.WithError(err).WithFields(map[string]interface{}{
			"path": r.URL.Path,
		}).Warn("ignoring invalid credential on public route")
		return identity.Anonymous(), nil
	}
	return principal, nil
}

// authorize enforces the route's permission policy for the principal.
func (m *AuthMiddleware) authorize(r *http.Request, cfg AuthConfig, principal identity.Identity) error {
	if cfg.AdminOnly && !principal.Admin && !principal.Superuser {
		return errors.PermissionDenied("admin access required")
	}

	if len(cfg.PermissionCodes) == 0 {
		return nil
	}

	var (
		allowed bool
		err     error
	)
	if cfg.RequireAll {
		allowed, err = m.checker.HasAllPermissions(r.Context(), principal, cfg.PermissionCodes)
	} else {
		allowed, err = m.checker.HasAnyPermission(r.Context(), principal, cfg.PermissionCodes)
	}
	if err != nil {
		return err
	}
	if !allowed {
		return errors.PermissionDenied("missing required permission").
			WithDetails("required", cfg.PermissionCodes)
	}
	return nil
}

// bearerToken extracts the credential from the Authorization header.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

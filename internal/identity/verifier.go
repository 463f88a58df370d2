package identity

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rootedapp/portal/internal/errors"
)

// Verifier is the boundary to the token-verification collaborator: given a
// credential string it produces a decoded principal or a validation failure.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// Claims is the JWT payload issued by the auth provider.
type Claims struct {
	UID         string `json:"uid"`
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Verified    bool   `json:"verified"`
	Superuser   bool   `json:"is_superuser,omitempty"`
	Admin       bool   `json:"is_admin,omitempty"`
	jwt.RegisteredClaims
}

// Revocations answers whether a credential has been revoked. The Redis-backed
// implementation lives in blacklist.go; tests substitute stubs.
type Revocations interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// JWTVerifier validates HMAC-signed tokens.
type JWTVerifier struct {
	secret      []byte
	revocations Revocations
}

var _ Verifier = (*JWTVerifier)(nil)

// VerifierOption configures a JWTVerifier.
type VerifierOption func(*JWTVerifier)

// WithRevocations makes verification consult a revocation list.
func WithRevocations(r Revocations) VerifierOption {
	return func(v *JWTVerifier) { v.revocations = r }
}

// NewJWTVerifier creates a verifier for tokens signed with the given secret.
func NewJWTVerifier(secret string, opts ...VerifierOption) *JWTVerifier {
	v := &JWTVerifier{secret: []byte(secret)}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify parses and validates the credential and returns the principal.
func (v *JWTVerifier) Verify(ctx context.Context, tokenString string) (Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return Identity{}, errors.InvalidToken(err)
	}
	if !token.Valid {
		return Identity{}, errors.InvalidToken(nil)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.UID == "" {
		return Identity{}, errors.InvalidToken(nil).WithDetails("reason", "missing subject")
	}

	if v.revocations != nil {
		revoked, err := v.revocations.IsRevoked(ctx, tokenString)
		if err != nil {
			return Identity{}, errors.Internal("revocation check failed", err)
		}
		if revoked {
			return Identity{}, errors.InvalidToken(nil).WithDetails("reason", "revoked")
		}
	}

	return Identity{
		UserID:      claims.UID,
		Email:       claims.Email,
		PhoneNumber: claims.PhoneNumber,
		Verified:    claims.Verified,
		Superuser:   claims.Superuser,
		Admin:       claims.Admin,
	}, nil
}

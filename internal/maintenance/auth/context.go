package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey string

const (
	userContextKey contextKey = "user"
)

// Principal is the authenticated caller carried through a request context.
type Principal struct {
	ProfileID uuid.UUID
	Email     string
	TokenID   string
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, userContextKey, p)
}

// PrincipalFromContext returns the caller set by the interceptor or middleware.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(userContextKey).(Principal)
	return p, ok
}

func principalFromClaims(claims jwt.MapClaims) (Principal, error) {
	sub, err := claims.GetSubject()
	if err != nil {
		return Principal{}, err
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return Principal{}, err
	}
	p := Principal{ProfileID: id}
	if email, ok := claims["email"].(string); ok {
		p.Email = email
	}
	if jti, ok := claims["jti"].(string); ok {
		p.TokenID = jti
	}
	return p, nil
}

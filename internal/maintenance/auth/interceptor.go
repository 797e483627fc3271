// Package auth authenticates callers with JWT bearer tokens over gRPC and
// HTTP, and manages accounts and sessions for the maintenance service.
package auth

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// RevocationChecker reports whether a token id was signed out.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Interceptor holds the JWT secret and a map of protected methods.
type Interceptor struct {
	jwtSecret        string
	protectedMethods map[string]bool
	revocations      RevocationChecker
}

// NewAuthInterceptor creates an Interceptor protecting every mutating method of the service.
func NewAuthInterceptor(jwtSecret string, revocations RevocationChecker) *Interceptor {
	protected := map[string]bool{}
	for _, m := range []string{
		"CreateTeam", "AssignMember", "CreateEquipment",
		"CreateRequest", "TransitionRequest", "AssignRequest",
	} {
		protected["/maintenance.v1.MaintenanceService/"+m] = true
	}

	return &Interceptor{
		jwtSecret:        jwtSecret,
		protectedMethods: protected,
		revocations:      revocations,
	}
}

// Unary returns a gRPC unary interceptor for token validation on protected methods.
// Unprotected methods still get a principal when a valid token is present.
func (i *Interceptor) Unary() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			if i.protectedMethods[info.FullMethod] {
				return nil, status.Error(codes.Unauthenticated, "metadata missing")
			}
			return handler(ctx, req)
		}

		tokenString, err := extractTokenFromMetadata(md)
		if err != nil {
			if i.protectedMethods[info.FullMethod] {
				return nil, err
			}
			return handler(ctx, req)
		}

		principal, err := i.authenticate(ctx, tokenString)
		if err != nil {
			return nil, err
		}
		return handler(WithPrincipal(ctx, principal), req)
	}
}

func (i *Interceptor) authenticate(ctx context.Context, tokenString string) (Principal, error) {
	claims, err := validateToken(tokenString, i.jwtSecret)
	if err != nil {
		return Principal{}, status.Errorf(codes.Unauthenticated, "invalid token: %v", err)
	}
	principal, err := principalFromClaims(claims)
	if err != nil {
		return Principal{}, status.Errorf(codes.Unauthenticated, "invalid subject: %v", err)
	}
	if i.revocations != nil && principal.TokenID != "" {
		revoked, err := i.revocations.IsRevoked(ctx, principal.TokenID)
		if err != nil {
			return Principal{}, status.Errorf(codes.Unavailable, "session lookup failed: %v", err)
		}
		if revoked {
			return Principal{}, status.Error(codes.Unauthenticated, "session signed out")
		}
	}
	return principal, nil
}

// extractTokenFromMetadata retrieves a Bearer token from gRPC metadata.
func extractTokenFromMetadata(md metadata.MD) (string, error) {
	authHeaders := md.Get("authorization")
	if len(authHeaders) == 0 {
		return "", status.Error(codes.Unauthenticated, "authorization header missing")
	}

	headerValue := authHeaders[0]
	if !strings.HasPrefix(headerValue, "Bearer ") {
		return "", status.Error(codes.Unauthenticated, "invalid authorization format: missing Bearer prefix")
	}

	tokenString := strings.TrimPrefix(headerValue, "Bearer ")
	if tokenString == "" {
		return "", status.Error(codes.Unauthenticated, "invalid authorization format: empty token")
	}

	return tokenString, nil
}

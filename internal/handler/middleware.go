package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/conex-ia/agentesv2-sub000/internal/service"

	"go.uber.org/zap"
)

type contextKey string

const (
	userUIDKey contextKey = "userUID"
	empresaKey contextKey = "empresaUID"
	roleKey    contextKey = "role"
)

// JWTAuthMiddleware validates Bearer tokens and injects the user and
// tenant identity into the request context. Every protected route reads
// its tenant scope from here, never from the request body.
func JWTAuthMiddleware(authSvc *service.AuthService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("auth: missing token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "Token de autenticação não fornecido")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				logger.Warn("auth: invalid token format",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "Formato de token inválido")
				return
			}

			claims, err := authSvc.ValidateAccessToken(parts[1])
			if err != nil {
				logger.Warn("auth: invalid or expired token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), userUIDKey, claims.Sub)
			ctx = context.WithValue(ctx, empresaKey, claims.Empresa)
			ctx = context.WithValue(ctx, roleKey, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserUIDFromContext extracts the authenticated user uid.
func UserUIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(userUIDKey).(string)
	return v
}

// EmpresaFromContext extracts the authenticated tenant uid.
func EmpresaFromContext(ctx context.Context) string {
	v, _ := ctx.Value(empresaKey).(string)
	return v
}

// RoleFromContext extracts the authenticated role.
func RoleFromContext(ctx context.Context) string {
	v, _ := ctx.Value(roleKey).(string)
	return v
}

// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/responderhq/opschat/internal/model"
)

// ContextKey is a type for context keys.
type ContextKey string

const (
	// UserIDKey is the context key for the authenticated user id.
	UserIDKey ContextKey = "user_id"
	// UserNameKey is the context key for the display name.
	UserNameKey ContextKey = "user_name"
	// RoleKey is the context key for the operational role.
	RoleKey ContextKey = "role"
)

// Claims represents the session JWT claims. Identity is issued by the
// external auth collaborator; this core only verifies and consumes it.
type Claims struct {
	jwt.RegisteredClaims
	Name string `json:"name"`
	Role string `json:"role"`
}

// Auth creates JWT authentication middleware.
func Auth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, `{"error":"missing authorization header"}`, http.StatusUnauthorized)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				http.Error(w, `{"error":"invalid authorization header format"}`, http.StatusUnauthorized)
				return
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !token.Valid || claims.Subject == "" {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, claims.Subject)
			ctx = context.WithValue(ctx, UserNameKey, claims.Name)
			ctx = context.WithValue(ctx, RoleKey, normalizeRole(claims.Role))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func normalizeRole(role string) model.Role {
	switch model.Role(role) {
	case model.RoleAdmin, model.RoleOperator, model.RoleTrainer:
		return model.Role(role)
	}
	return model.RoleMember
}

// GetUserID gets the authenticated user id from context.
func GetUserID(ctx context.Context) string {
	if v := ctx.Value(UserIDKey); v != nil {
		return v.(string)
	}
	return ""
}

// GetActor builds the acting identity from context.
func GetActor(ctx context.Context) model.Actor {
	actor := model.Actor{ID: GetUserID(ctx), Role: model.RoleMember}
	if v := ctx.Value(UserNameKey); v != nil {
		actor.Name = v.(string)
	}
	if v := ctx.Value(RoleKey); v != nil {
		actor.Role = v.(model.Role)
	}
	return actor
}

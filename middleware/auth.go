package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bracketforge/esports-arena/models"
	"github.com/golang-jwt/jwt/v4"
)

type contextKey string

const actorContextKey contextKey = "actor"

const (
	jwtClaimUserID = "user_id"
	jwtClaimRole   = "role"
)

// Authenticator проверяет Bearer-токен и кладёт models.Actor в контекст.
// Всё, что дальше по цепочке, получает уже проверенного принципала.
func Authenticator(jwtSecret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, "missing or malformed authorization header", http.StatusUnauthorized)
				return
			}
			tokenString := strings.TrimPrefix(header, "Bearer ")

			token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
				}
				return jwtSecret, nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				http.Error(w, "invalid token claims", http.StatusUnauthorized)
				return
			}
			actor, err := actorFromClaims(claims)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), actorContextKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRoles пропускает запрос только от актора с одной из перечисленных ролей.
func RequireRoles(roles ...models.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, err := ActorFromContext(r.Context())
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			for _, role := range roles {
				if role == actor.Role {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, "Forbidden", http.StatusForbidden)
		})
	}
}

// ActorFromContext достаёт аутентифицированного актора из контекста запроса.
func ActorFromContext(ctx context.Context) (models.Actor, error) {
	actor, ok := ctx.Value(actorContextKey).(models.Actor)
	if !ok {
		return models.Actor{}, errors.New("actor not found in context")
	}
	return actor, nil
}

func actorFromClaims(claims jwt.MapClaims) (models.Actor, error) {
	userIDClaim, ok := claims[jwtClaimUserID]
	if !ok {
		return models.Actor{}, fmt.Errorf("missing %q claim in token", jwtClaimUserID)
	}
	userIDFloat, ok := userIDClaim.(float64)
	if !ok || userIDFloat != float64(int(userIDFloat)) || int(userIDFloat) <= 0 {
		return models.Actor{}, fmt.Errorf("invalid %q claim in token", jwtClaimUserID)
	}

	roleClaim, ok := claims[jwtClaimRole]
	if !ok {
		return models.Actor{}, fmt.Errorf("missing %q claim in token", jwtClaimRole)
	}
	roleStr, ok := roleClaim.(string)
	if !ok {
		return models.Actor{}, fmt.Errorf("invalid %q claim in token", jwtClaimRole)
	}
	role := models.UserRole(roleStr)
	if !role.Valid() {
		return models.Actor{}, fmt.Errorf("invalid role value in claim: %q", roleStr)
	}

	return models.Actor{UserID: int(userIDFloat), Role: role}, nil
}

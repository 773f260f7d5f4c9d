package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cloudapp/socialforum/models"
	"github.com/cloudapp/socialforum/utils"
)

// ContextPrincipalKey is the key under which the authenticated principal is
// stored in the gin context.
const ContextPrincipalKey = "principal"

// Principal is the authenticated identity of one request. It is derived fresh
// from the bearer token on every request and never persisted.
type Principal struct {
	UserID  uint
	Subject string
	Role    models.Role
}

// IsAdmin reports whether the principal holds the ADMIN role.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == models.RoleAdmin
}

// UserFinder is the user-store lookup the gate needs to re-validate token
// subjects. Implemented by repository.Users.
type UserFinder interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
}

// Authenticate reconstructs request identity from the Authorization header.
// It never rejects a request by itself: a missing, malformed, revoked,
// expired or stale token simply leaves the request unauthenticated and the
// access policy decides what that means for the route. Outcomes are logged
// with the request path; the raw token value is never logged.
func Authenticate(users UserFinder) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		path := ctx.Request.URL.Path

		authHeader := ctx.GetHeader("Authorization")
		if authHeader == "" {
			ctx.Next()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			utils.Sugar.Debugw("malformed authorization header", "path", path)
			ctx.Next()
			return
		}

		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			ctx.Next()
			return
		}

		if utils.IsTokenBlacklisted(tokenString) {
			utils.Sugar.Infow("revoked token presented", "path", path)
			ctx.Next()
			return
		}

		claims, err := utils.ParseToken(tokenString)
		if err != nil {
			utils.Sugar.Infow("token rejected", "path", path, "reason", err)
			ctx.Next()
			return
		}

		// a valid token for a user that no longer exists must not authenticate
		user, err := users.FindByUsername(ctx.Request.Context(), claims.Subject)
		if err != nil {
			utils.Sugar.Infow("token subject no longer exists", "path", path, "subject", claims.Subject)
			ctx.Next()
			return
		}

		ctx.Set(ContextPrincipalKey, &Principal{
			UserID:  user.ID,
			Subject: user.Username,
			Role:    models.ParseRole(claims.Role),
		})
		ctx.Next()
	}
}

// CurrentPrincipal returns the request principal, or nil when the request is
// unauthenticated.
func CurrentPrincipal(ctx *gin.Context) *Principal {
	v, ok := ctx.Get(ContextPrincipalKey)
	if !ok {
		return nil
	}
	p, _ := v.(*Principal)
	return p
}

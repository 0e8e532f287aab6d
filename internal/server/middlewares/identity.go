package middlewares

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openmined/remoteassets/internal/server/handlers/api"
)

const (
	userContextKey = "user"
	AnonymousUser  = "anonymous"
)

var errInvalidCredentials = errors.New("invalid credentials")

// Identity sets the user of the request from basic auth. With no users configured the
// name is trusted as given; requests without credentials are anonymous.
func Identity(users map[string]string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		user, pass, ok := ctx.Request.BasicAuth()
		if !ok || user == "" {
			ctx.Set(userContextKey, AnonymousUser)
			ctx.Next()
			return
		}

		if len(users) > 0 {
			expected, found := users[user]
			if !found || subtle.ConstantTimeCompare([]byte(expected), []byte(pass)) != 1 {
				ctx.Header("WWW-Authenticate", `Basic realm="remoteassets"`)
				api.AbortWithError(ctx, http.StatusUnauthorized, api.CodeAccessDenied, errInvalidCredentials)
				return
			}
		}

		ctx.Set(userContextKey, user)
		ctx.Next()
	}
}

// RequireUser rejects anonymous requests
func RequireUser() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if UserID(ctx) == AnonymousUser {
			ctx.Header("WWW-Authenticate", `Basic realm="remoteassets"`)
			api.AbortWithError(ctx, http.StatusUnauthorized, api.CodeAccessDenied, errors.New("authentication required"))
			return
		}
		ctx.Next()
	}
}

// UserID is the user set by Identity
func UserID(ctx *gin.Context) string {
	if user := ctx.GetString(userContextKey); user != "" {
		return user
	}
	return AnonymousUser
}

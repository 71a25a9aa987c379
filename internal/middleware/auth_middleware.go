package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"shortener/internal/model"
	"shortener/internal/service"
)

const userKey = "current_user"

// RequireAuth resolves the bearer token to a user and stores it in the
// request context. Requests without a valid token never reach the
// handler.
func RequireAuth(auth service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing authorization header",
				"code":  "MISSING_TOKEN",
			})
			return
		}

		tokenStr := strings.TrimPrefix(header, "Bearer ")

		user, err := auth.CurrentUser(c.Request.Context(), tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token",
				"code":  "INVALID_TOKEN",
			})
			return
		}

		c.Set(userKey, user)
		c.Next()
	}
}

// CurrentUser returns the user stored by RequireAuth, or nil when the
// middleware did not run.
func CurrentUser(c *gin.Context) *model.User {
	value, exists := c.Get(userKey)
	if !exists {
		return nil
	}

	user, ok := value.(*model.User)
	if !ok {
		return nil
	}

	return user
}

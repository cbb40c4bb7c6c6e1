package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GinRequireAuth adapts the net/http AuthMiddleware to gin and exposes the
// session under the "userID", "email" and "sessionID" keys.
func GinRequireAuth(auth *AuthMiddleware) gin.HandlerFunc {
	return func(c *gin.Context) {
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c.Request = r
			if s, ok := SessionFromContext(r.Context()); ok {
				c.Set("userID", s.UserID)
				c.Set("email", s.Email)
				c.Set("sessionID", s.SessionID)
			}
			c.Next()
		})

		auth.RequireAuth(next).ServeHTTP(c.Writer, c.Request)

		// the chain already ran, or auth wrote its rejection
		if c.Writer.Written() {
			c.Abort()
		}
	}
}

package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gioe/aiq-sub010/internal/response"
	"golang.org/x/crypto/bcrypt"
)

// HeaderOpsKey carries the operations key on /ops requests.
const HeaderOpsKey = "X-Ops-Key"

// RequireOpsKey gates the operations surface behind a shared key. Only the
// bcrypt hash of the key is configured; the plaintext never leaves the
// operator's shell.
func RequireOpsKey(keyHash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if keyHash == "" {
			// No hash configured means the surface is disabled outright.
			response.AbortFail(c, http.StatusForbidden, response.ErrForbidden)
			return
		}

		key := c.GetHeader(HeaderOpsKey)
		if key == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(keyHash), []byte(key)); err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrOpsKeyInvalid)
			return
		}

		c.Next()
	}
}

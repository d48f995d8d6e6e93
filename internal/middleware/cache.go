package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

// PrivateCache marks the response cacheable by the requesting client only.
// Scored results are immutable once written, so a short TTL is safe, but a
// shared cache must never hold one participant's scores.
func PrivateCache(maxAgeSeconds int) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", fmt.Sprintf("private, max-age=%d", maxAgeSeconds))
		c.Next()
	}
}

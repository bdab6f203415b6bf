package middleware

import (
	"net/http"

	"relief-offline-ledger/pkg/apperror"
	"relief-offline-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// MaxBodySize rejects bodies larger than maxBytes. A declared Content-Length
// over the limit is refused up front; otherwise the reader fails once the
// limit is crossed and binding reports the error.
func MaxBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			response.Error(c, apperror.ErrPayloadTooLarge(maxBytes))
			c.Abort()
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/resell/backend/internal/interfaces/http/dto"
)

// BodyLimit returns a middleware that caps request body size. Marketplace
// webhook payloads are small; anything larger is rejected before binding.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge,
				dto.NewErrorResponse(dto.ErrCodeBadRequest, "request body exceeds maximum allowed size"))
			return
		}

		// Wrap the body with a limited reader for streaming requests
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

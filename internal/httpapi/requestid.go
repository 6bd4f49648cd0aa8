package httpapi

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// requestIDMiddleware stamps every request with a correlation id, carried
// over from the teacher's use of google/uuid for generated identifiers
// (internal/heuristics/llr_engine.go's edge ids) — here set as the
// X-Request-ID response header and included in error responses so a
// client-reported failure can be traced back to one request.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.New().String()
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

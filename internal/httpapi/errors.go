package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rawblock/aml-risk-platform/internal/apperr"
)

// writeError maps an apperr.Kind to the response status the spec's read
// API contract names for it, without leaking the underlying error text
// beyond its message.
func writeError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)

	status := http.StatusInternalServerError
	switch kind {
	case apperr.KindInvalidInput:
		status = http.StatusBadRequest
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindNotReady, apperr.KindTransientStorage:
		status = http.StatusServiceUnavailable
	case apperr.KindBusy:
		status = http.StatusTooManyRequests
	case apperr.KindFatal:
		status = http.StatusInternalServerError
	}

	c.JSON(status, gin.H{"error": err.Error(), "kind": kind.String(), "request_id": c.GetString("request_id")})
}

package api

import (
	"github.com/gin-gonic/gin"

	"github.com/youruser/bannerprint/internal/apperr"
	"github.com/youruser/bannerprint/internal/logging"
)

// writeError maps err to its status and the JSON error body.
func writeError(c *gin.Context, err error) {
	e, ok := apperr.As(err)
	if !ok {
		e = apperr.Internal("unexpected failure", err)
	}
	status := e.HTTPStatus()

	body := gin.H{"error": e.Kind.String(), "message": e.Message}
	if e.Stage != "" {
		body["stage"] = string(e.Stage)
	}
	if e.Details != nil {
		body["details"] = e.Details
	}

	if status >= 500 {
		logging.Error("request failed", "path", c.FullPath(), "request_id", c.GetString(requestIDKey), "status", status, "error", err)
	} else {
		logging.Warn("request rejected", "path", c.FullPath(), "request_id", c.GetString(requestIDKey), "status", status, "error", err)
	}
	c.AbortWithStatusJSON(status, body)
}

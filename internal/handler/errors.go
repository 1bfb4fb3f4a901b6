package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/liveboard/api/internal/syncerr"
)

// respondError maps the engine taxonomy onto HTTP. The code travels in
// the body so clients dispatch on the tag rather than the status text.
func respondError(c *gin.Context, err error) {
	code := syncerr.CodeOf(err)
	if code == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	status := http.StatusConflict
	switch code {
	case syncerr.CodeSessionNotFound:
		status = http.StatusNotFound
	case syncerr.CodeSessionInactive:
		status = http.StatusGone
	case syncerr.CodeUnregisteredParticipant:
		status = http.StatusForbidden
	case syncerr.CodeAllocationExhausted:
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{"error": err.Error(), "code": string(code)})
}

func validRole(role string) bool {
	return role == "teacher" || role == "student"
}

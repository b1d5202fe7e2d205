package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/voicecheck/voicecheck/internal/database"
)

// Health reports service liveness and database connectivity.
func Health(c *gin.Context) {
	status := "ok"
	code := http.StatusOK

	if db, err := database.GetDB().DB(); err != nil || db.Ping() != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{"status": status})
}

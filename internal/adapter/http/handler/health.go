package handler

import (
	"context"
	"net/http"
	"time"

	"vending-payout-console/internal/core/ports"

	"github.com/gin-gonic/gin"
)

// HealthCheck reports connectivity of every infrastructure dependency.
// Any failing dependency degrades the whole service to 503.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		overall := "healthy"
		deps := make(map[string]string, len(checkers))
		for _, checker := range checkers {
			if err := checker.Ping(ctx); err != nil {
				deps[checker.Name()] = "unreachable: " + err.Error()
				overall = "degraded"
				status = http.StatusServiceUnavailable
			} else {
				deps[checker.Name()] = "ok"
			}
		}

		c.JSON(status, gin.H{
			"status":       overall,
			"dependencies": deps,
			"timestamp":    time.Now().UTC(),
		})
	}
}

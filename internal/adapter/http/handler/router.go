package handler

import (
	"vending-payout-console/internal/adapter/http/middleware"
	"vending-payout-console/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	SchedulerSvc   ports.PayoutScheduler
	CalculatorSvc  ports.PayoutCalculator
	PayoutRepo     ports.PayoutRepository
	CredentialSvc  ports.CredentialAdmin
	GatewaySvc     ports.Gateway
	TokenSvc       ports.TokenService
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep — verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// All console routes require a staff token.
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	v1 := r.Group("/api/v1", jwtAuth)

	payoutHandler := NewPayoutHandler(deps.SchedulerSvc, deps.CalculatorSvc, deps.PayoutRepo)
	payouts := v1.Group("/payouts")
	{
		payouts.GET("", payoutHandler.ListHistory)
		payouts.POST("/calculate", payoutHandler.Calculate)
		payouts.POST("/execute", payoutHandler.Execute)
		payouts.POST("/run-scheduled", payoutHandler.RunScheduled)
	}

	scheduleHandler := NewScheduleHandler(deps.SchedulerSvc)
	schedule := v1.Group("/schedule")
	{
		schedule.GET("", scheduleHandler.GetSchedule)
		schedule.PUT("", scheduleHandler.UpdateSchedule)
	}

	credentialHandler := NewCredentialHandler(deps.CredentialSvc)
	v1.PUT("/credentials/:layer", credentialHandler.SaveCredential)

	gatewayHandler := NewGatewayHandler(deps.GatewaySvc)
	v1.POST("/gateway/:method", gatewayHandler.Call)

	return r
}

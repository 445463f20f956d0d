package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/farmreport/internal/server/handlers"
)

// New wires the Gin engine with required routes and middlewares.
func New(reports *handlers.ReportHandler, farms *handlers.FarmHandler, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")
	api.POST("/batches", reports.RunBatch)
	api.GET("/batches/:id", reports.GetBatch)
	api.GET("/batches/:id/farms/:farmId", reports.GetFarmReport)
	api.POST("/batches/:id/farms/:farmId/share", reports.Share)
	api.GET("/share/:token", reports.Shared)

	farm := api.Group("/farms/:farmId")
	farm.GET("/entitlement", farms.GetEntitlement)
	farm.POST("/entitlement", farms.RegisterEntitlement)
	farm.PUT("/schedule-group", farms.UpdateScheduleGroup)
	farm.GET("/forecast", farms.Forecast)
	farm.GET("/forecast-config", farms.GetConfig)
	farm.PUT("/forecast-config", farms.PutConfig)
	farm.POST("/events", farms.RecordEvent)

	if logger != nil {
		logger.Info("router initialized")
	}

	return r
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

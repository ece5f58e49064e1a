package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tank_sales/internal/metrics"
	"tank_sales/internal/tanks"
)

// InitRoutes registers the tank, volume and average sales endpoints on the
// given Gin engine, together with the ping and metrics endpoints.
func InitRoutes(e *gin.Engine, tanksService *tanks.Service, logger *zap.Logger) {
	tankHandler := NewTankHandler(tanksService, logger)
	volumeHandler := NewVolumeHandler(tanksService, logger)

	e.Use(RequestID(), RequestLogger(logger), Metrics())

	tanksGroup := e.Group("/tanks")
	tanksGroup.POST("", tankHandler.handleCreateTank)
	tanksGroup.GET("", tankHandler.handleListTanks)
	tanksGroup.GET("/:tank_id", tankHandler.handleGetTank)
	tanksGroup.PUT("/:tank_id", tankHandler.handleUpdateTank)
	tanksGroup.DELETE("/:tank_id", tankHandler.handleDeleteTank)
	tanksGroup.GET("/:tank_id/average-sales", tankHandler.handleAverageSales)

	volumes := tanksGroup.Group("/:tank_id/volumes")
	volumes.POST("", volumeHandler.handleCreateVolume)
	volumes.GET("", volumeHandler.handleListVolumes)
	volumes.GET("/:volume_id", volumeHandler.handleGetVolume)
	volumes.PATCH("/:volume_id", volumeHandler.handleUpdateVolume)
	volumes.DELETE("/:volume_id", volumeHandler.handleDeleteVolume)

	e.GET("/metrics", gin.WrapH(metrics.Handler()))
	e.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})
}

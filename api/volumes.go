package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tank_sales/internal/tanks"
)

// volumeHandler implements the HTTP handlers for the readings of a tank.
type volumeHandler struct {
	tanksService *tanks.Service
	logger       *zap.Logger
}

// NewVolumeHandler creates a new volume handler.
func NewVolumeHandler(tanksService *tanks.Service, logger *zap.Logger) *volumeHandler {
	return &volumeHandler{
		tanksService: tanksService,
		logger:       logger,
	}
}

type createVolumeRequest struct {
	Volume    *float64   `json:"volume"`
	CreatedAt *time.Time `json:"created_at"`
}

type patchVolumeRequest struct {
	Volume *float64 `json:"volume"`
}

// handleCreateVolume handles POST /tanks/:tank_id/volumes.
func (h *volumeHandler) handleCreateVolume(ctx *gin.Context) {
	tankID, ok := pathID(ctx, "tank_id")
	if !ok {
		return
	}
	var req createVolumeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil || req.Volume == nil {
		h.logger.Warn("failed to bind JSON request", zap.Error(err))
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	reading, err := h.tanksService.CreateReading(ctx.Request.Context(), tankID, *req.Volume, req.CreatedAt)
	if err != nil {
		writeError(ctx, h.logger, err)
		return
	}
	ctx.JSON(http.StatusCreated, reading)
}

func (h *volumeHandler) handleGetVolume(ctx *gin.Context) {
	tankID, ok := pathID(ctx, "tank_id")
	if !ok {
		return
	}
	id, ok := pathID(ctx, "volume_id")
	if !ok {
		return
	}
	reading, err := h.tanksService.GetReading(ctx.Request.Context(), tankID, id)
	if err != nil {
		writeError(ctx, h.logger, err)
		return
	}
	ctx.JSON(http.StatusOK, reading)
}

func (h *volumeHandler) handleListVolumes(ctx *gin.Context) {
	tankID, ok := pathID(ctx, "tank_id")
	if !ok {
		return
	}
	offset, limit, ok := pageParams(ctx)
	if !ok {
		return
	}
	page, err := h.tanksService.ListReadings(ctx.Request.Context(), tankID, offset, limit)
	if err != nil {
		writeError(ctx, h.logger, err)
		return
	}
	ctx.JSON(http.StatusOK, page)
}

// handleUpdateVolume handles PATCH /tanks/:tank_id/volumes/:volume_id.
func (h *volumeHandler) handleUpdateVolume(ctx *gin.Context) {
	tankID, ok := pathID(ctx, "tank_id")
	if !ok {
		return
	}
	id, ok := pathID(ctx, "volume_id")
	if !ok {
		return
	}
	var req patchVolumeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil || req.Volume == nil {
		h.logger.Warn("failed to bind JSON request", zap.Error(err))
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	reading, err := h.tanksService.UpdateReading(ctx.Request.Context(), tankID, id, *req.Volume)
	if err != nil {
		writeError(ctx, h.logger, err)
		return
	}
	ctx.JSON(http.StatusOK, reading)
}

func (h *volumeHandler) handleDeleteVolume(ctx *gin.Context) {
	tankID, ok := pathID(ctx, "tank_id")
	if !ok {
		return
	}
	id, ok := pathID(ctx, "volume_id")
	if !ok {
		return
	}
	if err := h.tanksService.DeleteReading(ctx.Request.Context(), tankID, id); err != nil {
		writeError(ctx, h.logger, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tank_sales/internal/tanks"
)

const defaultPageLimit = 20

// tankHandler holds the tanks service and implements HTTP handlers for tank operations.
type tankHandler struct {
	tanksService *tanks.Service
	logger       *zap.Logger
}

// NewTankHandler creates a new tank handler.
func NewTankHandler(tanksService *tanks.Service, logger *zap.Logger) *tankHandler {
	return &tankHandler{
		tanksService: tanksService,
		logger:       logger,
	}
}

type tankRequest struct {
	Name string `json:"name"`
}

// averageSaleResponse is the JSON form of a daily aggregate.
type averageSaleResponse struct {
	TankID  int64   `json:"tank_id"`
	Date    string  `json:"date"`
	Sales   int     `json:"sales"`
	Total   float64 `json:"total"`
	Average float64 `json:"average"`
}

// writeError maps service errors to HTTP responses.
func writeError(ctx *gin.Context, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, tanks.ErrNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"message": "Item not found."})
	case errors.Is(err, tanks.ErrInvalidName),
		errors.Is(err, tanks.ErrInvalidVolume),
		errors.Is(err, tanks.ErrInvalidTimestamp),
		errors.Is(err, tanks.ErrInvalidPage):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logger.Error("request failed",
			zap.String("path", ctx.FullPath()),
			zap.Error(err),
		)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func pathID(ctx *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(ctx.Param(name), 10, 64)
	if err != nil || id <= 0 {
		ctx.JSON(http.StatusNotFound, gin.H{"message": "Item not found."})
		return 0, false
	}
	return id, true
}

func pageParams(ctx *gin.Context) (offset, limit int, ok bool) {
	var err error
	offset, limit = 0, defaultPageLimit
	if v := ctx.Query("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
			return 0, 0, false
		}
	}
	if v := ctx.Query("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return 0, 0, false
		}
	}
	return offset, limit, true
}

// handleCreateTank handles the POST /tanks endpoint.
func (h *tankHandler) handleCreateTank(ctx *gin.Context) {
	var req tankRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("failed to bind JSON request", zap.Error(err))
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	tank, err := h.tanksService.CreateTank(ctx.Request.Context(), req.Name)
	if err != nil {
		writeError(ctx, h.logger, err)
		return
	}
	ctx.JSON(http.StatusCreated, tank)
}

func (h *tankHandler) handleGetTank(ctx *gin.Context) {
	id, ok := pathID(ctx, "tank_id")
	if !ok {
		return
	}
	tank, err := h.tanksService.GetTank(ctx.Request.Context(), id)
	if err != nil {
		writeError(ctx, h.logger, err)
		return
	}
	ctx.JSON(http.StatusOK, tank)
}

func (h *tankHandler) handleListTanks(ctx *gin.Context) {
	offset, limit, ok := pageParams(ctx)
	if !ok {
		return
	}
	page, err := h.tanksService.ListTanks(ctx.Request.Context(), offset, limit)
	if err != nil {
		writeError(ctx, h.logger, err)
		return
	}
	ctx.JSON(http.StatusOK, page)
}

func (h *tankHandler) handleUpdateTank(ctx *gin.Context) {
	id, ok := pathID(ctx, "tank_id")
	if !ok {
		return
	}
	var req tankRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("failed to bind JSON request", zap.Error(err))
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	tank, err := h.tanksService.UpdateTank(ctx.Request.Context(), id, req.Name)
	if err != nil {
		writeError(ctx, h.logger, err)
		return
	}
	ctx.JSON(http.StatusOK, tank)
}

func (h *tankHandler) handleDeleteTank(ctx *gin.Context) {
	id, ok := pathID(ctx, "tank_id")
	if !ok {
		return
	}
	if err := h.tanksService.DeleteTank(ctx.Request.Context(), id); err != nil {
		writeError(ctx, h.logger, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

// handleAverageSales handles GET /tanks/:tank_id/average-sales.
func (h *tankHandler) handleAverageSales(ctx *gin.Context) {
	id, ok := pathID(ctx, "tank_id")
	if !ok {
		return
	}
	rows, err := h.tanksService.AverageSales(ctx.Request.Context(), id)
	if err != nil {
		writeError(ctx, h.logger, err)
		return
	}

	out := make([]averageSaleResponse, 0, len(rows))
	for _, row := range rows {
		avg, _ := row.Average()
		out = append(out, averageSaleResponse{
			TankID:  row.TankID,
			Date:    row.Date.Format(time.DateOnly),
			Sales:   row.Sales,
			Total:   row.Total.InexactFloat64(),
			Average: avg.InexactFloat64(),
		})
	}
	ctx.JSON(http.StatusOK, gin.H{"items": out})
}

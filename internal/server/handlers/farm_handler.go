package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/farmreport/internal/domain/models"
	"github.com/mamadbah2/farmreport/internal/service/entitlement"
	"github.com/mamadbah2/farmreport/internal/service/forecast"
	"github.com/mamadbah2/farmreport/pkg/kst"
)

const maxPreviewDays = 62

// EntitlementService resolves and updates farm entitlements.
type EntitlementService interface {
	ResolveActive(ctx context.Context, farmID int64, asOf time.Time) (models.EntitlementRecord, bool, error)
	RegisterManual(ctx context.Context, farmID int64, now time.Time) (models.EntitlementRecord, error)
	UpdateScheduleGroup(ctx context.Context, farmID int64, group string, now time.Time) error
}

// ForecastService previews forecasts and manages farm forecast settings.
type ForecastService interface {
	Preview(ctx context.Context, farmID int64, windowStart time.Time, days int) (forecast.Grid, error)
	Config(ctx context.Context, farmID int64) (models.FarmConfig, error)
	SaveConfig(ctx context.Context, cfg models.FarmConfig) error
}

// EventRecorder stores a recorded farm task.
type EventRecorder interface {
	RecordEvent(ctx context.Context, e models.BaseEvent) error
}

// FarmHandler serves per-farm entitlement, forecast and event endpoints.
type FarmHandler struct {
	entitlements EntitlementService
	forecasts    ForecastService
	events       EventRecorder
	logger       *zap.Logger
	now          func() time.Time
}

// NewFarmHandler constructs the farm HTTP adapter.
func NewFarmHandler(entitlements EntitlementService, forecasts ForecastService, events EventRecorder, logger *zap.Logger) *FarmHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FarmHandler{entitlements: entitlements, forecasts: forecasts, events: events, logger: logger, now: time.Now}
}

// GetEntitlement returns the record governing now.
func (h *FarmHandler) GetEntitlement(c *gin.Context) {
	farmID, ok := farmIDParam(c)
	if !ok {
		return
	}

	rec, ok, err := h.entitlements.ResolveActive(c.Request.Context(), farmID, h.now())
	if err != nil {
		abortWithError(c, h.logger, "failed to resolve entitlement", err)
		return
	}
	if !ok {
		abortWithError(c, h.logger, "no active entitlement", entitlement.ErrNoActiveEntitlement)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// RegisterEntitlement registers the farm manually from today.
func (h *FarmHandler) RegisterEntitlement(c *gin.Context) {
	farmID, ok := farmIDParam(c)
	if !ok {
		return
	}

	rec, err := h.entitlements.RegisterManual(c.Request.Context(), farmID, h.now())
	if err != nil {
		abortWithError(c, h.logger, "failed to register entitlement", err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

// UpdateScheduleGroup moves the farm to another weekly run slot.
func (h *FarmHandler) UpdateScheduleGroup(c *gin.Context) {
	farmID, ok := farmIDParam(c)
	if !ok {
		return
	}
	var req scheduleGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	if err := h.entitlements.UpdateScheduleGroup(c.Request.Context(), farmID, req.Group, h.now()); err != nil {
		abortWithError(c, h.logger, "failed to update schedule group", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Forecast previews the farm's task calendar. start defaults to tomorrow
// and days to one week.
func (h *FarmHandler) Forecast(c *gin.Context) {
	farmID, ok := farmIDParam(c)
	if !ok {
		return
	}
	start, err := parseOptionalDate(c.Query("start"), kst.AddDays(kst.Today(h.now()), 1))
	if err != nil {
		badRequest(c, "invalid start date")
		return
	}
	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil || days > maxPreviewDays {
		badRequest(c, "days must be a number up to "+strconv.Itoa(maxPreviewDays))
		return
	}

	grid, err := h.forecasts.Preview(c.Request.Context(), farmID, start, days)
	if err != nil {
		abortWithError(c, h.logger, "failed to project forecast", err)
		return
	}
	c.JSON(http.StatusOK, newForecastResponse(grid))
}

// GetConfig returns the farm's effective forecast configuration.
func (h *FarmHandler) GetConfig(c *gin.Context) {
	farmID, ok := farmIDParam(c)
	if !ok {
		return
	}

	cfg, err := h.forecasts.Config(c.Request.Context(), farmID)
	if err != nil {
		abortWithError(c, h.logger, "failed to load forecast config", err)
		return
	}
	c.JSON(http.StatusOK, toConfigPayload(cfg))
}

// PutConfig replaces the farm's forecast configuration.
func (h *FarmHandler) PutConfig(c *gin.Context) {
	farmID, ok := farmIDParam(c)
	if !ok {
		return
	}
	var payload farmConfigPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	cfg, err := payload.toFarmConfig(farmID)
	if err != nil {
		abortWithError(c, h.logger, "invalid forecast config", err)
		return
	}

	if err := h.forecasts.SaveConfig(c.Request.Context(), cfg); err != nil {
		abortWithError(c, h.logger, "failed to save forecast config", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RecordEvent stores a task the farm has carried out.
func (h *FarmHandler) RecordEvent(c *gin.Context) {
	farmID, ok := farmIDParam(c)
	if !ok {
		return
	}
	var req recordEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if !req.Task.IsValid() {
		badRequest(c, "unknown task type")
		return
	}
	date, err := kst.ParseDate(req.Date)
	if err != nil {
		badRequest(c, "invalid date")
		return
	}

	event := models.BaseEvent{FarmID: farmID, Task: req.Task, Group: req.Group, Date: date, Quantity: req.Quantity}
	if err := h.events.RecordEvent(c.Request.Context(), event); err != nil {
		abortWithError(c, h.logger, "failed to record event", err)
		return
	}
	c.JSON(http.StatusCreated, event)
}

package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/farmreport/internal/domain/models"
	"github.com/mamadbah2/farmreport/internal/service/batch"
	"github.com/mamadbah2/farmreport/internal/service/reporting"
	"github.com/mamadbah2/farmreport/internal/service/sharing"
)

// BatchService runs and loads report batches.
type BatchService interface {
	Run(ctx context.Context, req batch.Request) (batch.Result, error)
	Batch(ctx context.Context, id string) (models.ReportBatch, error)
}

// ReportService reads generated reports.
type ReportService interface {
	Snapshot(ctx context.Context, batchID string, farmID int64) (models.ReportSnapshot, error)
	Panels(ctx context.Context, batchID string, farmID int64) ([]reporting.PanelView, error)
}

// ShareService issues and resolves report share tokens.
type ShareService interface {
	Issue(ctx context.Context, batchID string, farmID int64, now time.Time) (sharing.Share, error)
	Resolve(ctx context.Context, token string, now time.Time) (models.ReportSnapshot, error)
}

// ReportHandler serves batches, generated reports and share links.
type ReportHandler struct {
	batches BatchService
	reports ReportService
	shares  ShareService
	logger  *zap.Logger
	now     func() time.Time
}

// NewReportHandler constructs the report HTTP adapter.
func NewReportHandler(batches BatchService, reports ReportService, shares ShareService, logger *zap.Logger) *ReportHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportHandler{batches: batches, reports: reports, shares: shares, logger: logger, now: time.Now}
}

// RunBatch generates a manual batch and waits for it to finish.
func (h *ReportHandler) RunBatch(c *gin.Context) {
	var req runBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid batch request", zap.Error(err))
		badRequest(c, "invalid request body")
		return
	}
	generatedOn, err := parseOptionalDate(req.GeneratedOn, time.Time{})
	if err != nil {
		badRequest(c, "invalid generated_on")
		return
	}

	result, err := h.batches.Run(c.Request.Context(), batch.Request{
		PeriodType:  req.PeriodType,
		GeneratedOn: generatedOn,
		Trigger:     models.TriggerManual,
		FarmIDs:     req.FarmIDs,
	})
	if err != nil {
		if errors.Is(err, batch.ErrInvalidPeriod) || result.Batch.ID == "" {
			abortWithError(c, h.logger, "failed to run batch", err)
			return
		}
		h.logger.Error("manual batch failed", zap.String("batch_id", result.Batch.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, newBatchResponse(result))
		return
	}

	c.JSON(http.StatusCreated, newBatchResponse(result))
}

// GetBatch returns a batch's progress.
func (h *ReportHandler) GetBatch(c *gin.Context) {
	b, err := h.batches.Batch(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, h.logger, "failed to load batch", err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// GetFarmReport returns one farm's snapshot and decoded panels.
func (h *ReportHandler) GetFarmReport(c *gin.Context) {
	farmID, ok := farmIDParam(c)
	if !ok {
		return
	}
	h.writeReport(c, c.Param("id"), farmID)
}

// Share issues a share token for one farm's report.
func (h *ReportHandler) Share(c *gin.Context) {
	farmID, ok := farmIDParam(c)
	if !ok {
		return
	}

	share, err := h.shares.Issue(c.Request.Context(), c.Param("id"), farmID, h.now())
	if err != nil {
		abortWithError(c, h.logger, "failed to issue share token", err)
		return
	}
	c.JSON(http.StatusCreated, share)
}

// Shared serves the report a share token points to.
func (h *ReportHandler) Shared(c *gin.Context) {
	snapshot, err := h.shares.Resolve(c.Request.Context(), c.Param("token"), h.now())
	if err != nil {
		abortWithError(c, h.logger, "failed to resolve share token", err)
		return
	}
	h.writeReport(c, snapshot.BatchID, snapshot.FarmID)
}

func (h *ReportHandler) writeReport(c *gin.Context, batchID string, farmID int64) {
	ctx := c.Request.Context()
	snapshot, err := h.reports.Snapshot(ctx, batchID, farmID)
	if err != nil {
		abortWithError(c, h.logger, "failed to load report", err)
		return
	}
	views, err := h.reports.Panels(ctx, batchID, farmID)
	if err != nil {
		abortWithError(c, h.logger, "failed to load report panels", err)
		return
	}
	c.JSON(http.StatusOK, newReportResponse(snapshot, views))
}

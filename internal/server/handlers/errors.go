package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/farmreport/internal/service/batch"
	"github.com/mamadbah2/farmreport/internal/service/entitlement"
	"github.com/mamadbah2/farmreport/internal/service/forecast"
	"github.com/mamadbah2/farmreport/internal/service/reporting"
	"github.com/mamadbah2/farmreport/internal/service/sharing"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, batch.ErrBatchNotFound),
		errors.Is(err, reporting.ErrSnapshotNotFound),
		errors.Is(err, sharing.ErrShareNotFound),
		errors.Is(err, entitlement.ErrRecordNotFound),
		errors.Is(err, entitlement.ErrNoActiveEntitlement):
		return http.StatusNotFound
	case errors.Is(err, sharing.ErrShareExpired):
		return http.StatusGone
	case errors.Is(err, reporting.ErrSnapshotExists):
		return http.StatusConflict
	case errors.Is(err, batch.ErrInvalidPeriod),
		errors.Is(err, entitlement.ErrInvalidScheduleGroup),
		errors.Is(err, forecast.ErrInvalidWindow),
		errors.Is(err, forecast.ErrInvalidConfig):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// abortWithError writes err as a JSON body. Server errors are logged and
// their details hidden.
func abortWithError(c *gin.Context, logger *zap.Logger, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error(msg, zap.String("path", c.FullPath()), zap.Error(err))
		c.AbortWithStatusJSON(status, gin.H{"error": msg})
		return
	}
	logger.Debug(msg, zap.Int("status", status), zap.Error(err))
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}

func farmIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("farmId"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid farm id")
		return 0, false
	}
	return id, true
}

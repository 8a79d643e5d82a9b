package handlers

import (
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"

	"github.com/foliobase/foliobase/internal/migrate"
)

// HealthHandler reports process liveness and migration status.
type HealthHandler struct {
	report atomic.Pointer[migrate.Report]
}

// NewHealthHandler creates a HealthHandler with the boot-time migration report.
func NewHealthHandler(report migrate.Report) *HealthHandler {
	h := &HealthHandler{}
	h.report.Store(&report)
	return h
}

// SetReport replaces the stored migration report (e.g. after a manual run).
func (h *HealthHandler) SetReport(report migrate.Report) {
	h.report.Store(&report)
}

// Health handles GET /health. The process serves traffic even when
// migrations are degraded; the report makes that state visible.
func (h *HealthHandler) Health(c *gin.Context) {
	report := h.report.Load()
	status := "ok"
	if report.Error != nil || !report.UpToDate {
		status = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     status,
		"migrations": report,
	})
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/moodyoga/studio-api/internal/service"
	"github.com/moodyoga/studio-api/pkg/response"
)

// DashboardHandler wires HTTP endpoints to the dashboard aggregator.
type DashboardHandler struct {
	dashboards *service.DashboardService
	export     *service.ExportService
}

// NewDashboardHandler creates a new handler.
func NewDashboardHandler(dashboards *service.DashboardService, export *service.ExportService) *DashboardHandler {
	return &DashboardHandler{dashboards: dashboards, export: export}
}

// Dashboard godoc
// @Summary Role dashboard
// @Description Returns the dashboard matching the caller's role
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Dashboard(c *gin.Context) {
	dashboard, err := h.dashboards.ForActor(actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dashboard, nil)
}

// RevenueReport godoc
// @Summary Export revenue report
// @Description Admin only. Downloads confirmed revenue per class as CSV or PDF
// @Tags Dashboard
// @Produce text/csv
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /dashboard/revenue/export [get]
func (h *DashboardHandler) RevenueReport(c *gin.Context) {
	result, err := h.export.RevenueReport(c.Request.Context(), actorFromContext(c), service.ExportFormat(c.Query("format")))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+result.FileName+`"`)
	c.Data(http.StatusOK, result.ContentType, result.Data)
}

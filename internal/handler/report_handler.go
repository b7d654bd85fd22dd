package handler

import (
	"net/http"
	"time"

	"orderfinance/internal/middleware"
	"orderfinance/internal/service"
	"orderfinance/pkg/response"

	"github.com/gin-gonic/gin"
)

type ReportHandler struct {
	reportService service.ReportService
}

func NewReportHandler(reportService service.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

func (h *ReportHandler) RegisterRoutes(router *gin.RouterGroup) {
	reports := router.Group("/api/reports")
	reports.Use(middleware.RequireRole("admin", "manager", "staff"))
	{
		reports.GET("/summary", h.Summary)
		reports.GET("/abc", h.ABCCurve)
	}
}

// reportFilter parses the optional RFC3339 range; zero values fall back to the service defaults
func reportFilter(c *gin.Context) (service.ReportFilter, bool) {
	filter := service.ReportFilter{GroupBy: c.Query("group_by")}
	for _, f := range []struct {
		param string
		dst   *time.Time
	}{
		{"start_date", &filter.StartDate},
		{"end_date", &filter.EndDate},
	} {
		raw := c.Query(f.param)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "invalid "+f.param+" format, expected RFC3339"))
			return filter, false
		}
		*f.dst = t
	}
	return filter, true
}

// Summary aggregates persisted order costs per period
// @Summary      Cost summary
// @Tags         reports
// @Security     BearerAuth
// @Produce      json
// @Param        group_by    query     string  false  "day, week, month, quarter or year (default month)"
// @Param        start_date  query     string  false  "Start Date (RFC3339)"
// @Param        end_date    query     string  false  "End Date (RFC3339)"
// @Success      200  {object}  response.Response{data=model.SummaryResponse}
// @Failure      400  {object}  response.Response
// @Router       /api/reports/summary [get]
func (h *ReportHandler) Summary(c *gin.Context) {
	filter, ok := reportFilter(c)
	if !ok {
		return
	}
	res, err := h.reportService.Summary(c.Request.Context(), middleware.TenantID(c), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// ABCCurve ranks mapped products by sold value
// @Summary      ABC curve
// @Tags         reports
// @Security     BearerAuth
// @Produce      json
// @Param        start_date  query     string  false  "Start Date (RFC3339)"
// @Param        end_date    query     string  false  "End Date (RFC3339)"
// @Success      200  {object}  response.Response{data=[]model.ProductRanking}
// @Failure      400  {object}  response.Response
// @Router       /api/reports/abc [get]
func (h *ReportHandler) ABCCurve(c *gin.Context) {
	filter, ok := reportFilter(c)
	if !ok {
		return
	}
	res, err := h.reportService.ABCCurve(c.Request.Context(), middleware.TenantID(c), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

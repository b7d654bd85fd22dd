package handler

import (
	"net/http"

	"orderfinance/internal/middleware"
	"orderfinance/internal/service"
	"orderfinance/pkg/pagination"
	"orderfinance/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	auditService service.AuditService
}

func NewAuditHandler(auditService service.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/audit-logs")
	group.Use(middleware.RequireRole(editorRoles...))
	{
		group.GET("", h.GetAuditLogs)
	}
}

// GetAuditLogs returns the tenant's audit trail, newest first
// @Summary      Get audit logs
// @Description  Cost calculations carry the evaluation trace in details
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        action     query     string  false  "Filter by action"
// @Param        entity_id  query     string  false  "Filter by entity (order or rule id)"
// @Param        page       query     int     false  "Page number (default 1)"
// @Param        limit      query     int     false  "Number of items per page (default 20, max 500)"
// @Success      200    {object}  response.Response{data=[]service.AuditLogResponse}
// @Router       /api/audit-logs [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	params := pagination.ParseWithMax(c, pagination.MaxAuditLimit)
	filter := service.AuditFilter{Action: c.Query("action"), EntityID: c.Query("entity_id")}

	logs, total, err := h.auditService.GetAuditLogs(c.Request.Context(), middleware.TenantID(c), filter, params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to retrieve audit logs: "+err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, logs, response.Meta{
		Total:      total,
		Page:       params.Page,
		Limit:      params.Limit,
		TotalPages: params.TotalPages(total),
	}))
}

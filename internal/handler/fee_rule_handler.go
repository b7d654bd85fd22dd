package handler

import (
	"net/http"

	"orderfinance/internal/middleware"
	"orderfinance/internal/service"
	"orderfinance/pkg/pagination"
	"orderfinance/pkg/response"

	"github.com/gin-gonic/gin"
)

var editorRoles = []string{"admin", "manager"}

type FeeRuleHandler struct {
	feeRuleService service.FeeRuleService
	costService    service.CostService
}

func NewFeeRuleHandler(feeRuleService service.FeeRuleService, costService service.CostService) *FeeRuleHandler {
	return &FeeRuleHandler{feeRuleService: feeRuleService, costService: costService}
}

func (h *FeeRuleHandler) RegisterRoutes(router *gin.RouterGroup) {
	rules := router.Group("/api/fee-rules")
	{
		rules.GET("", h.GetFeeRules)
		rules.GET("/:id", h.GetFeeRule)
		rules.POST("", middleware.RequireRole(editorRoles...), h.CreateFeeRule)
		rules.PUT("/:id", middleware.RequireRole(editorRoles...), h.UpdateFeeRule)
		rules.DELETE("/:id", middleware.RequireRole(editorRoles...), h.DeleteFeeRule)
	}
}

// GetFeeRules lists the tenant's fee rules in evaluation order
// @Summary      List fee rules
// @Tags         fee-rules
// @Security     BearerAuth
// @Produce      json
// @Param        category     query     string  false  "cost, commission, tax or payment_method"
// @Param        provider     query     string  false  "Provider scope"
// @Param        active_only  query     bool    false  "Only active rules"
// @Param        page         query     int     false  "Page number (default 1)"
// @Param        limit        query     int     false  "Number of items per page (default 20, max 100)"
// @Success      200  {object}  response.Response{data=[]service.FeeRuleResponse}
// @Router       /api/fee-rules [get]
func (h *FeeRuleHandler) GetFeeRules(c *gin.Context) {
	params := pagination.Parse(c)
	filter := service.FeeRuleFilter{
		Category:   c.Query("category"),
		Provider:   c.Query("provider"),
		ActiveOnly: c.Query("active_only") == "true",
	}

	rules, total, err := h.feeRuleService.GetFeeRules(c.Request.Context(), middleware.TenantID(c), filter, params.Page, params.Limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, rules, response.Meta{
		Total:      total,
		Page:       params.Page,
		Limit:      params.Limit,
		TotalPages: params.TotalPages(total),
	}))
}

// GetFeeRule returns one fee rule
// @Summary      Get fee rule
// @Tags         fee-rules
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Fee rule ID"
// @Success      200  {object}  response.Response{data=service.FeeRuleResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/fee-rules/{id} [get]
func (h *FeeRuleHandler) GetFeeRule(c *gin.Context) {
	rule, err := h.feeRuleService.GetFeeRule(c.Request.Context(), middleware.TenantID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, rule))
}

// CreateFeeRule creates a fee rule
// @Summary      Create fee rule
// @Description  Pass recalculate=true to start a tenant-wide recalculation after saving
// @Tags         fee-rules
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        recalculate  query     bool                    false  "Recalculate all orders"
// @Param        request      body      service.FeeRuleRequest  true   "Fee rule"
// @Success      201  {object}  response.Response{data=service.FeeRuleResponse}
// @Failure      400  {object}  response.Response
// @Router       /api/fee-rules [post]
func (h *FeeRuleHandler) CreateFeeRule(c *gin.Context) {
	var req service.FeeRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	rule, err := h.feeRuleService.CreateFeeRule(c.Request.Context(), middleware.TenantID(c), req, middleware.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}

	h.maybeRecalculate(c)
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, rule))
}

// UpdateFeeRule replaces a fee rule
// @Summary      Update fee rule
// @Tags         fee-rules
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id           path      string                  true   "Fee rule ID"
// @Param        recalculate  query     bool                    false  "Recalculate all orders"
// @Param        request      body      service.FeeRuleRequest  true   "Fee rule"
// @Success      200  {object}  response.Response{data=service.FeeRuleResponse}
// @Failure      400  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/fee-rules/{id} [put]
func (h *FeeRuleHandler) UpdateFeeRule(c *gin.Context) {
	var req service.FeeRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	rule, err := h.feeRuleService.UpdateFeeRule(c.Request.Context(), middleware.TenantID(c), c.Param("id"), req, middleware.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}

	h.maybeRecalculate(c)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, rule))
}

// DeleteFeeRule removes a fee rule
// @Summary      Delete fee rule
// @Tags         fee-rules
// @Security     BearerAuth
// @Produce      json
// @Param        id           path      string  true   "Fee rule ID"
// @Param        recalculate  query     bool    false  "Recalculate all orders"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/fee-rules/{id} [delete]
func (h *FeeRuleHandler) DeleteFeeRule(c *gin.Context) {
	if err := h.feeRuleService.DeleteFeeRule(c.Request.Context(), middleware.TenantID(c), c.Param("id"), middleware.UserID(c)); err != nil {
		writeError(c, err)
		return
	}

	h.maybeRecalculate(c)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Fee rule deleted"))
}

func (h *FeeRuleHandler) maybeRecalculate(c *gin.Context) {
	if c.Query("recalculate") != "true" {
		return
	}
	p := h.costService.StartTenantRecalculation(c.Request.Context(), middleware.TenantID(c), middleware.UserID(c))
	c.Header("X-Progress-Reference", p.ReferenceID)
}

package handler

import (
	"net/http"

	"orderfinance/internal/middleware"
	"orderfinance/internal/service"
	"orderfinance/pkg/response"

	"github.com/gin-gonic/gin"
)

type PaymentLinkHandler struct {
	linkService service.PaymentFeeLinkService
}

func NewPaymentLinkHandler(linkService service.PaymentFeeLinkService) *PaymentLinkHandler {
	return &PaymentLinkHandler{linkService: linkService}
}

func (h *PaymentLinkHandler) RegisterRoutes(router *gin.RouterGroup) {
	links := router.Group("/api/orders/:id/payment-links")
	{
		links.GET("", h.GetLinks)
		links.POST("", h.LinkManually)
		links.POST("/auto", h.AutoLink)
		links.DELETE("", h.UnlinkAll)
		links.DELETE("/:method", h.Unlink)
		links.GET("/:method/rules", h.ListLinkableRules)
		links.GET("/:method/rules/:ruleId/compatibility", h.Compatibility)
	}
	router.POST("/api/payment-links/bulk", middleware.RequireRole(editorRoles...), h.BulkRelink)
}

// GetLinks lists the order's payment methods with their linked fee rule
// @Summary      Get payment fee links
// @Tags         payment-links
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Order ID"
// @Success      200  {object}  response.Response{data=[]service.PaymentLinkResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/orders/{id}/payment-links [get]
func (h *PaymentLinkHandler) GetLinks(c *gin.Context) {
	links, err := h.linkService.GetLinks(c.Request.Context(), middleware.TenantID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, links))
}

// LinkManually links one payment method of the order to a fee rule and recalculates
// @Summary      Link payment method to fee rule
// @Description  Compatibility is reported but never blocks the link
// @Tags         payment-links
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                     true  "Order ID"
// @Param        request  body      service.ManualLinkRequest  true  "Method and rule"
// @Success      200  {object}  response.Response{data=service.LinkResult}
// @Failure      400  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/orders/{id}/payment-links [post]
func (h *PaymentLinkHandler) LinkManually(c *gin.Context) {
	var req service.ManualLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.linkService.LinkManually(c.Request.Context(), middleware.TenantID(c), c.Param("id"), req, middleware.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// AutoLink fills the unlinked payment methods of the order with their best rule
// @Summary      Auto-link payment methods
// @Tags         payment-links
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Order ID"
// @Success      200  {object}  response.Response{data=map[string]string}
// @Failure      404  {object}  response.Response
// @Router       /api/orders/{id}/payment-links/auto [post]
func (h *PaymentLinkHandler) AutoLink(c *gin.Context) {
	links, err := h.linkService.AutoLink(c.Request.Context(), middleware.TenantID(c), c.Param("id"), middleware.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, links))
}

// Unlink removes the link of one payment method
// @Summary      Unlink payment method
// @Tags         payment-links
// @Security     BearerAuth
// @Produce      json
// @Param        id      path      string  true  "Order ID"
// @Param        method  path      string  true  "Canonical payment method"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/orders/{id}/payment-links/{method} [delete]
func (h *PaymentLinkHandler) Unlink(c *gin.Context) {
	if err := h.linkService.Unlink(c.Request.Context(), middleware.TenantID(c), c.Param("id"), c.Param("method"), middleware.UserID(c)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Payment method unlinked"))
}

// UnlinkAll clears every link of the order
// @Summary      Unlink all payment methods
// @Tags         payment-links
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Order ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/orders/{id}/payment-links [delete]
func (h *PaymentLinkHandler) UnlinkAll(c *gin.Context) {
	if err := h.linkService.UnlinkAll(c.Request.Context(), middleware.TenantID(c), c.Param("id"), middleware.UserID(c)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Payment methods unlinked"))
}

// ListLinkableRules ranks the active payment rules by compatibility with the method
// @Summary      List linkable fee rules
// @Tags         payment-links
// @Security     BearerAuth
// @Produce      json
// @Param        id      path      string  true  "Order ID"
// @Param        method  path      string  true  "Canonical payment method"
// @Success      200  {object}  response.Response{data=[]service.LinkableRuleResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/orders/{id}/payment-links/{method}/rules [get]
func (h *PaymentLinkHandler) ListLinkableRules(c *gin.Context) {
	rules, err := h.linkService.ListLinkableRules(c.Request.Context(), middleware.TenantID(c), c.Param("id"), c.Param("method"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, rules))
}

// Compatibility scores a single rule against the method
// @Summary      Rule compatibility
// @Tags         payment-links
// @Security     BearerAuth
// @Produce      json
// @Param        id      path      string  true  "Order ID"
// @Param        method  path      string  true  "Canonical payment method"
// @Param        ruleId  path      string  true  "Fee rule ID"
// @Success      200  {object}  response.Response{data=costing.Compatibility}
// @Failure      404  {object}  response.Response
// @Router       /api/orders/{id}/payment-links/{method}/rules/{ruleId}/compatibility [get]
func (h *PaymentLinkHandler) Compatibility(c *gin.Context) {
	res, err := h.linkService.Compatibility(c.Request.Context(), middleware.TenantID(c), c.Param("id"), c.Param("method"), c.Param("ruleId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// BulkRelink links the method to the rule on every tenant order that has it
// @Summary      Bulk relink payment method
// @Description  With async=true the job runs in the background and the pending progress entry is returned
// @Tags         payment-links
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        async    query     bool                       false  "Run in background"
// @Param        request  body      service.BulkRelinkRequest  true   "Method and rule"
// @Success      200  {object}  response.Response{data=object}
// @Success      202  {object}  response.Response{data=progress.Progress}
// @Failure      400  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/payment-links/bulk [post]
func (h *PaymentLinkHandler) BulkRelink(c *gin.Context) {
	var req service.BulkRelinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	tenantID := middleware.TenantID(c)
	if c.Query("async") == "true" {
		p, err := h.linkService.StartBulkRelink(c.Request.Context(), tenantID, req, middleware.UserID(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, response.Success(http.StatusAccepted, p))
		return
	}

	count, err := h.linkService.BulkRelink(c.Request.Context(), tenantID, req, middleware.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"relinked": count,
	}))
}

package handler

import (
	"net/http"

	"orderfinance/internal/middleware"
	"orderfinance/internal/service"
	"orderfinance/pkg/response"

	"github.com/gin-gonic/gin"
)

type CostHandler struct {
	costService service.CostService
}

func NewCostHandler(costService service.CostService) *CostHandler {
	return &CostHandler{costService: costService}
}

func (h *CostHandler) RegisterRoutes(router *gin.RouterGroup) {
	orders := router.Group("/api/orders/:id/costs")
	{
		orders.GET("", h.GetOrderCosts)
		orders.GET("/preview", h.PreviewOrderCosts)
		orders.POST("/calculate", h.CalculateOrderCosts)
	}
	router.POST("/api/recalculations", middleware.RequireRole(editorRoles...), h.StartRecalculation)
}

// GetOrderCosts returns the persisted breakdown of an order
// @Summary      Get order costs
// @Tags         costs
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Order ID"
// @Success      200  {object}  response.Response{data=service.OrderCostsResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/orders/{id}/costs [get]
func (h *CostHandler) GetOrderCosts(c *gin.Context) {
	res, err := h.costService.GetOrderCosts(c.Request.Context(), middleware.TenantID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// CalculateOrderCosts evaluates the order against the current rules and persists the result
// @Summary      Calculate order costs
// @Tags         costs
// @Security     BearerAuth
// @Produce      json
// @Param        id     path      string  true   "Order ID"
// @Param        force  query     bool    false  "Recompute an already calculated order"
// @Success      200  {object}  response.Response{data=service.OrderCostsResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/orders/{id}/costs/calculate [post]
func (h *CostHandler) CalculateOrderCosts(c *gin.Context) {
	force := c.Query("force") == "true"
	res, err := h.costService.CalculateOrderCosts(c.Request.Context(), middleware.TenantID(c), c.Param("id"), force, middleware.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// PreviewOrderCosts evaluates the order without persisting anything
// @Summary      Preview order costs
// @Tags         costs
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Order ID"
// @Success      200  {object}  response.Response{data=service.OrderCostsResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/orders/{id}/costs/preview [get]
func (h *CostHandler) PreviewOrderCosts(c *gin.Context) {
	res, err := h.costService.PreviewOrderCosts(c.Request.Context(), middleware.TenantID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// StartRecalculation queues a recalculation of every order of the tenant
// @Summary      Recalculate tenant orders
// @Description  Returns the pending progress entry; poll /api/progress or listen on /ws
// @Tags         costs
// @Security     BearerAuth
// @Produce      json
// @Success      202  {object}  response.Response{data=progress.Progress}
// @Router       /api/recalculations [post]
func (h *CostHandler) StartRecalculation(c *gin.Context) {
	p := h.costService.StartTenantRecalculation(c.Request.Context(), middleware.TenantID(c), middleware.UserID(c))
	c.JSON(http.StatusAccepted, response.Success(http.StatusAccepted, p))
}

package handler

import (
	"net/http"
	"strconv"

	"orderfinance/internal/middleware"
	"orderfinance/internal/service"
	"orderfinance/pkg/response"

	"github.com/gin-gonic/gin"
)

type ItemMappingHandler struct {
	mappingService service.ItemMappingService
}

func NewItemMappingHandler(mappingService service.ItemMappingService) *ItemMappingHandler {
	return &ItemMappingHandler{mappingService: mappingService}
}

func (h *ItemMappingHandler) RegisterRoutes(router *gin.RouterGroup) {
	items := router.Group("/api/items/:id/add-ons/:index")
	{
		items.POST("/classify", h.ClassifyAddOn)
		items.DELETE("/classify", h.UnclassifyAddOn)
	}
}

func addOnIndex(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "add-on index must be a non-negative integer"))
		return 0, false
	}
	return index, true
}

// ClassifyAddOn maps an add-on of a composite item to a product and reallocates the item's fractions
// @Summary      Classify add-on
// @Tags         item-mappings
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                        true  "Order item ID"
// @Param        index    path      int                           true  "Add-on index"
// @Param        request  body      service.ClassifyAddOnRequest  true  "Product and multiplier"
// @Success      200  {object}  response.Response{data=[]service.ItemMappingResponse}
// @Failure      400  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/items/{id}/add-ons/{index}/classify [post]
func (h *ItemMappingHandler) ClassifyAddOn(c *gin.Context) {
	index, ok := addOnIndex(c)
	if !ok {
		return
	}
	var req service.ClassifyAddOnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	mappings, err := h.mappingService.ClassifyAddOn(c.Request.Context(), middleware.TenantID(c), c.Param("id"), index, req, middleware.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, mappings))
}

// UnclassifyAddOn removes an add-on mapping and reallocates the remaining fractions
// @Summary      Unclassify add-on
// @Tags         item-mappings
// @Security     BearerAuth
// @Produce      json
// @Param        id     path      string  true  "Order item ID"
// @Param        index  path      int     true  "Add-on index"
// @Success      200  {object}  response.Response{data=[]service.ItemMappingResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/items/{id}/add-ons/{index}/classify [delete]
func (h *ItemMappingHandler) UnclassifyAddOn(c *gin.Context) {
	index, ok := addOnIndex(c)
	if !ok {
		return
	}

	mappings, err := h.mappingService.UnclassifyAddOn(c.Request.Context(), middleware.TenantID(c), c.Param("id"), index, middleware.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, mappings))
}

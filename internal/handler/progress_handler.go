package handler

import (
	"net/http"

	"orderfinance/internal/middleware"
	"orderfinance/internal/progress"
	"orderfinance/pkg/response"

	"github.com/gin-gonic/gin"
)

type ProgressHandler struct {
	tracker *progress.Tracker
}

func NewProgressHandler(tracker *progress.Tracker) *ProgressHandler {
	return &ProgressHandler{tracker: tracker}
}

func (h *ProgressHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/progress")
	{
		group.GET("", h.ListProgress)
		group.GET("/:kind/:ref", h.GetProgress)
	}
}

// ListProgress returns the live jobs of the tenant
// @Summary      List progress
// @Tags         progress
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]progress.Progress}
// @Router       /api/progress [get]
func (h *ProgressHandler) ListProgress(c *gin.Context) {
	entries, err := h.tracker.ListByTenant(c.Request.Context(), middleware.TenantID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, entries))
}

// GetProgress returns one job; completed jobs disappear after the grace window
// @Summary      Get progress
// @Tags         progress
// @Security     BearerAuth
// @Produce      json
// @Param        kind  path      string  true  "tenant_recalculation or bulk_relink"
// @Param        ref   path      string  true  "Reference ID"
// @Success      200  {object}  response.Response{data=progress.Progress}
// @Failure      400  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/progress/{kind}/{ref} [get]
func (h *ProgressHandler) GetProgress(c *gin.Context) {
	kind := progress.Kind(c.Param("kind"))
	if kind != progress.KindTenantRecalculation && kind != progress.KindBulkRelink {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "unknown progress kind"))
		return
	}

	p, err := h.tracker.Get(c.Request.Context(), progress.Key{
		TenantID:    middleware.TenantID(c),
		Kind:        kind,
		ReferenceID: c.Param("ref"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, p))
}

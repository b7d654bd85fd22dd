package handler

import (
	"errors"
	"net/http"

	"orderfinance/internal/progress"
	"orderfinance/internal/service"
	"orderfinance/pkg/response"

	"github.com/gin-gonic/gin"
)

// writeError maps service sentinels to HTTP status codes.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrRuleNotFound),
		errors.Is(err, service.ErrItemNotFound),
		errors.Is(err, service.ErrProductNotFound),
		errors.Is(err, service.ErrMappingNotFound),
		errors.Is(err, progress.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrInvalidMethod):
		status = http.StatusBadRequest
	}
	c.JSON(status, response.Error(status, err.Error()))
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
}

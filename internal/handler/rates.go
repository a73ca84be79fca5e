package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"jaudi-finance-backend/internal/common/middleware"
	"jaudi-finance-backend/internal/rates"
)

type RatesHandler struct {
	rates *rates.Service
}

func NewRatesHandler(rateSvc *rates.Service) *RatesHandler {
	return &RatesHandler{rates: rateSvc}
}

func (h *RatesHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/exchange-rates", h.list)
}

func (h *RatesHandler) list(c *gin.Context) {
	result, err := h.rates.CurrentRates(c.Request.Context())
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	respond(c, http.StatusOK, result)
}

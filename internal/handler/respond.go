// Package handler exposes the HTTP surface: auth, transfers, KYC, sync
// controls, rates and notifications. Responses use the same envelope the
// remote API speaks, so clients parse one shape end to end.
package handler

import (
	"github.com/gin-gonic/gin"
)

type successResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

func respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, successResponse{Success: true, Data: data})
}

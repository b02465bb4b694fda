package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yigit/schoolhealth/internal/app/models/dto"
)

// Pinger reports backend reachability
type Pinger func(ctx context.Context) error

// HealthController answers liveness and readiness probes
type HealthController struct {
	ping Pinger
}

// NewHealthController creates a new HealthController. A nil ping always reports healthy.
func NewHealthController(ping Pinger) *HealthController {
	return &HealthController{ping: ping}
}

// Ping is the liveness probe
// @Summary Liveness probe
// @Tags ops
// @Produce json
// @Success 200 {object} dto.APIResponse
// @Router /ping [get]
func (c *HealthController) Ping(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(gin.H{"message": "pong"}, ""))
}

// Healthz is the readiness probe
// @Summary Readiness probe
// @Tags ops
// @Produce json
// @Success 200 {object} dto.APIResponse
// @Failure 503 {object} dto.ErrorResponse "Database unreachable"
// @Router /healthz [get]
func (c *HealthController) Healthz(ctx *gin.Context) {
	if c.ping != nil {
		pingCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
		defer cancel()
		if err := c.ping(pingCtx); err != nil {
			detail := dto.NewErrorDetail(dto.ErrorCodeTransientIO, "Database unreachable").WithDetails(err.Error())
			detail.Retryable = true
			ctx.JSON(http.StatusServiceUnavailable, dto.NewErrorResponse(detail))
			return
		}
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(gin.H{"status": "ok"}, ""))
}

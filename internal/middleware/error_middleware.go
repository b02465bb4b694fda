package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yigit/schoolhealth/internal/app/models/dto"
	"github.com/yigit/schoolhealth/internal/pkg/apperrors"
	"github.com/yigit/schoolhealth/internal/pkg/logger"
	"github.com/yigit/schoolhealth/internal/pkg/observability"
)

// statusByKind maps every error kind onto its HTTP status
var statusByKind = map[apperrors.Kind]int{
	apperrors.KindValidation:        http.StatusBadRequest,
	apperrors.KindInvalidTransition: http.StatusConflict,
	apperrors.KindAlreadyFinalized:  http.StatusConflict,
	apperrors.KindDuplicateResult:   http.StatusConflict,
	apperrors.KindCampaignClosed:    http.StatusConflict,
	apperrors.KindNotFound:          http.StatusNotFound,
	apperrors.KindUnauthorized:      http.StatusForbidden,
	apperrors.KindTransientIO:       http.StatusServiceUnavailable,
	apperrors.KindInternal:          http.StatusInternalServerError,
}

// StatusFor returns the HTTP status HandleAPIError answers err with
func StatusFor(err error) int {
	if status, ok := statusByKind[apperrors.KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// --- Central Error Handling Middleware/Function ---

// HandleAPIError writes the failure envelope for err. Every engine error goes through here.
func HandleAPIError(c *gin.Context, err error) {
	kind := apperrors.KindOf(err)
	status := StatusFor(err)
	detail := dto.NewErrorDetail(dto.ErrorCode(kind), err.Error())

	var custom *apperrors.CustomError
	if errors.As(err, &custom) && custom.Details != nil {
		if field, ok := custom.Details["field"].(string); ok {
			detail = detail.WithField(field)
		}
		detail = detail.WithDetails(custom.Details)
	}

	switch kind {
	case apperrors.KindTransientIO:
		detail.Retryable = true
		detail = detail.WithSeverity(dto.ErrorSeverityWarning)
		logger.Warn().Err(err).Str("path", c.FullPath()).Msg("Transient backend failure")
	case apperrors.KindInternal:
		// never leak internals to the caller
		detail.Message = "Internal server error"
		detail = detail.WithSeverity(dto.ErrorSeverityCritical)
		logger.Error().Err(err).Str("path", c.FullPath()).Str("requestID", c.GetString(RequestIDKey)).Msg("Unhandled error")
		observability.CaptureWithTags(err, map[string]string{
			"route":      c.FullPath(),
			"method":     c.Request.Method,
			"request_id": c.GetString(RequestIDKey),
		})
	default:
		detail = detail.WithSeverity(dto.ErrorSeverityInfo)
	}

	c.JSON(status, dto.NewErrorResponse(detail))
}

// NoRoute answers unknown paths with the envelope instead of gin's plain 404
func NoRoute(c *gin.Context) {
	c.JSON(http.StatusNotFound, dto.NewErrorResponse(
		dto.NewErrorDetail(dto.ErrorCodeRouteMissing, "Route not found").WithDetails(c.Request.URL.Path)))
}

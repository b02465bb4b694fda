package helpers

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yigit/schoolhealth/internal/app/models"
	"github.com/yigit/schoolhealth/internal/pkg/apperrors"
)

// ParseIDParam reads a positive int64 path parameter.
func ParseIDParam(c *gin.Context, name string) (int64, error) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError(name, fmt.Sprintf("%s must be a positive number", name))
	}
	return id, nil
}

// ParseFamilyQuery reads an optional ?family= filter. Blank means every family.
func ParseFamilyQuery(c *gin.Context) (models.Family, error) {
	raw := c.Query("family")
	if raw == "" {
		return "", nil
	}
	return models.ParseFamily(raw)
}

// ParseBoolQuery reads an optional boolean query flag.
func ParseBoolQuery(c *gin.Context, name string) bool {
	v, err := strconv.ParseBool(c.Query(name))
	return err == nil && v
}

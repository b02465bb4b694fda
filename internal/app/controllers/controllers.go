// Package controllers handles HTTP request handling
package controllers

import (
	"github.com/gin-gonic/gin"
	"github.com/yigit/schoolhealth/internal/app/models"
	"github.com/yigit/schoolhealth/internal/middleware"
	"github.com/yigit/schoolhealth/internal/pkg/apperrors"
)

// actorOrAbort returns the authenticated actor, answering with the error envelope when absent
func actorOrAbort(ctx *gin.Context) (models.Actor, bool) {
	actor, ok := middleware.ActorFrom(ctx)
	if !ok {
		middleware.HandleAPIError(ctx, apperrors.ErrUnauthorized)
		return models.Actor{}, false
	}
	return actor, true
}

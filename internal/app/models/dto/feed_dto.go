package dto

import "github.com/yigit/schoolhealth/internal/app/models"

// NotificationFeedResponse is the guardian feed with its display tabs
type NotificationFeedResponse struct {
	Items        []models.NotificationItem `json:"items"`
	Examinations []models.NotificationItem `json:"examinations"`
	Vaccinations []models.NotificationItem `json:"vaccinations"`
}

// LabelTableResponse is the display label table for one locale
type LabelTableResponse struct {
	Locale models.Locale                          `json:"locale" example:"en"`
	Labels map[models.LabelKind]map[string]string `json:"labels"`
}

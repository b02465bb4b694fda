package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/yigit/schoolhealth/internal/app/controllers"
	"github.com/yigit/schoolhealth/internal/app/models"
	"github.com/yigit/schoolhealth/internal/middleware"
)

// Controllers groups every HTTP handler set mounted under /api/v1
type Controllers struct {
	Campaigns     *controllers.CampaignController
	Consents      *controllers.ConsentController
	Results       *controllers.ResultController
	Aggregation   *controllers.AggregationController
	Notifications *controllers.NotificationController
	Health        *controllers.HealthController
}

// SetupRouter configures all application routes
func SetupRouter(router *gin.Engine, c Controllers, authMiddleware *middleware.AuthMiddleware) {
	router.NoRoute(middleware.NoRoute)

	router.GET("/ping", c.Health.Ping)
	router.GET("/healthz", c.Health.Healthz)

	// API version group
	v1 := router.Group("/api/v1")
	v1.GET("/labels", c.Notifications.GetLabels)

	authenticated := v1.Group("")
	authenticated.Use(authMiddleware.JWTAuth())

	staffOnly := authMiddleware.RoleRequired(models.RoleStaff)
	medical := authMiddleware.RoleRequired(models.RoleNurse, models.RoleStaff)

	campaigns := authenticated.Group("/campaigns")
	{
		campaigns.GET("", c.Campaigns.ListCampaigns)
		campaigns.GET("/:id", c.Campaigns.GetCampaign)
		campaigns.POST("", staffOnly, c.Campaigns.CreateCampaign)
		// status edits are narrowed to staff inside the service
		campaigns.PATCH("/:id", medical, c.Campaigns.UpdateCampaign)

		campaigns.POST("/:id/consents", medical, c.Consents.IssueConsent)
		campaigns.GET("/:id/consents", medical, c.Consents.ListCampaignConsents)

		campaigns.POST("/:id/results", medical, c.Results.SubmitResult)
		campaigns.GET("/:id/results", medical, c.Results.ListCampaignResults)
		campaigns.GET("/:id/results/export", staffOnly, c.Results.ExportCampaignResults)

		campaigns.POST("/:id/recompute", staffOnly, c.Aggregation.Recompute)
		campaigns.POST("/reconcile", staffOnly, c.Aggregation.Reconcile)
	}

	consents := authenticated.Group("/consents")
	{
		consents.GET("/:id", c.Consents.GetConsent)
		// guardianship is checked against the roster inside the ledger
		consents.PATCH("/:id", c.Consents.DecideConsent)
	}

	authenticated.GET("/students/:id/consents", c.Consents.ListStudentConsents)

	results := authenticated.Group("/results")
	results.Use(medical)
	{
		results.GET("/:id", c.Results.GetResult)
		results.PATCH("/:id", c.Results.UpdateResult)
		results.DELETE("/:id", staffOnly, c.Results.DeleteResult)
	}

	authenticated.GET("/guardians/:id/notifications", c.Notifications.GetGuardianFeed)
}

package server

import (
	"github.com/OFFIS-RIT/dematel/internal/server/middleware"
	"github.com/OFFIS-RIT/dematel/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	// Respondent routes, guarded by the optional shared key
	e.POST("/api/submissions", routes.SubmitHandler)
	e.POST("/api/transport/decode", routes.DecodeTransportHandler)

	// Admin routes
	surveyRoutes := e.Group("/api/surveys", middleware.AuthMiddleware)
	surveyRoutes.GET("/:survey_id/history", routes.GetHistoryHandler, middleware.RequirePermission(middleware.PermHistoryView))
	surveyRoutes.GET("/:survey_id/report", routes.GetReportHandler, middleware.RequirePermission(middleware.PermReportView))
	surveyRoutes.DELETE("/:survey_id/report", routes.DeleteReportHandler, middleware.RequirePermission(middleware.PermReportDelete))
}

package server

import (
	"net/http"

	"github.com/OFFIS-RIT/lcaexport/backend/internal/server/middleware"
	"github.com/OFFIS-RIT/lcaexport/backend/internal/server/routes"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	apiRoutes.GET("/schema/snapshot", routes.GetSnapshotSchemaHandler)

	// Model routes
	apiRoutes.POST("/models/:id/snapshot", routes.CreateSnapshotHandler, middleware.RequirePermission(middleware.PermModelSnapshot))
	apiRoutes.POST("/models/:id/lcia", routes.SolveModelHandler, middleware.RequirePermission(middleware.PermModelSolve))

	// Export job routes
	apiRoutes.POST("/exports", routes.CreateExportHandler, middleware.RequirePermission(middleware.PermExportCreate))
	apiRoutes.GET("/exports/:id", routes.GetExportHandler, middleware.RequirePermission(middleware.PermExportView))
}

package middleware

import (
	"github.com/OFFIS-RIT/lcaexport/backend/internal/export"
	"github.com/OFFIS-RIT/lcaexport/backend/internal/jobs"
	"github.com/OFFIS-RIT/lcaexport/backend/internal/queue"
	"github.com/OFFIS-RIT/lcaexport/backend/internal/storage"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/labstack/echo/v4"
)

type AppUser struct {
	UserID      string
	Role        string
	Permissions []string
}

// App carries the collaborators shared by all handlers.
type App struct {
	Pipeline  *export.Pipeline
	Jobs      jobs.Store
	Queue     queue.Publisher
	Artifacts storage.ArtifactStore
	// Key validates bearer JWTs. Nil disables JWT auth.
	Key          keyfunc.Keyfunc
	MasterAPIKey string
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return next(&AppContext{c, app, nil})
		}
	}
}

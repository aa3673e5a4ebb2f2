package routes

import (
	"net/http"
	"sync"

	"github.com/OFFIS-RIT/lcaexport/backend/pkg/common"

	"github.com/invopop/jsonschema"
	"github.com/labstack/echo/v4"
)

var snapshotSchema = sync.OnceValue(func() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	s := r.Reflect(&common.Snapshot{})
	s.Title = "LCA model snapshot"
	return s
})

// GetSnapshotSchemaHandler serves the JSON schema of the snapshot document.
func GetSnapshotSchemaHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, snapshotSchema())
}

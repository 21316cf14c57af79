package app

import "github.com/gin-gonic/gin"

// Module is a feature that mounts its own routes. api is the JSON records
// contract under /api; pages is the dashboard group, already behind CSRF and
// the page middleware. Names must be unique within one engine.
type Module interface {
	Name() string
	RegisterRoutes(api *gin.RouterGroup, pages *gin.RouterGroup)
}

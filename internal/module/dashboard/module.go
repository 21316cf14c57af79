// Package dashboard serves the HR admin pages: an overview of every entity,
// one paginated grid per entity with its create and edit forms, and the
// two-step delete confirmation. Pages talk to the records API through the
// crud controllers; the server's answer is the only source of row data.
package dashboard

import "github.com/gin-gonic/gin"

// DashboardModule implements the app.Module interface for the admin pages.
type DashboardModule struct {
	handler *PageHandler
}

// NewModule creates a DashboardModule. Panics if h is nil.
func NewModule(h *PageHandler) *DashboardModule {
	if h == nil {
		panic("dashboard.NewModule: handler must not be nil")
	}
	return &DashboardModule{handler: h}
}

func (m *DashboardModule) Name() string { return "dashboard" }

// RegisterRoutes registers the page routes. The module has no JSON API.
func (m *DashboardModule) RegisterRoutes(_ *gin.RouterGroup, pages *gin.RouterGroup) {
	pages.GET("/", m.handler.Overview)

	g := pages.Group("/:entity")
	g.GET("", m.handler.ListPage)
	g.GET("/rows", m.handler.Rows)
	g.GET("/new", m.handler.NewForm)
	g.POST("/form", m.handler.EditForm)
	g.POST("", m.handler.Create)
	g.PUT("/:id", m.handler.Update)
	g.POST("/:id/confirm-delete", m.handler.ConfirmDelete)
	g.DELETE("/:id", m.handler.Delete)
}

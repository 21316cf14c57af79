// Package records is the reference backend of the REST collection contract.
// All catalog entities share one table; field values are kept as canonical
// JSON next to a lowercased search column.
package records

import "github.com/gin-gonic/gin"

// RecordModule implements the app.Module interface for the records API.
type RecordModule struct {
	handler    *RecordHandler
	middleware []gin.HandlerFunc
}

// NewModule creates a RecordModule. middleware runs in front of every
// collection route. Panics if h is nil.
func NewModule(h *RecordHandler, middleware ...gin.HandlerFunc) *RecordModule {
	if h == nil {
		panic("records.NewModule: handler must not be nil")
	}
	return &RecordModule{handler: h, middleware: middleware}
}

// Name identifies the module.
func (m *RecordModule) Name() string { return "records" }

// RegisterRoutes registers the collection routes under api. The module has
// no pages.
func (m *RecordModule) RegisterRoutes(api *gin.RouterGroup, _ *gin.RouterGroup) {
	g := api.Group("/:entity", m.middleware...)
	g.GET("/list", m.handler.List)
	g.POST("/create", m.handler.Create)
	g.PUT("/update/:id", m.handler.Update)
	g.DELETE("/delete/:id", m.handler.Delete)
}

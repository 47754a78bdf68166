package v1

import (
	"github.com/gin-gonic/gin"

	"tillsync/internal/core/security"
	"tillsync/internal/infrastructure/http/v1/middleware"
)

// ResourceRouteHandler defines the interface for ledger record handlers.
type ResourceRouteHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
}

// RegisterResourceRoutes registers standard CRUD routes for a ledger record type.
// Reads only need a session; create and change/delete are gated separately.
//
// Usage:
//
//	handler := handlers.NewResourceHandler(base, handlers.ResourceOps[...]{...})
//	RegisterResourceRoutes(api.Group("/sales"), handler, security.PermissionRecord, security.PermissionEditLedger)
func RegisterResourceRoutes(group *gin.RouterGroup, handler ResourceRouteHandler, create, change security.Permission) {
	group.GET("", handler.List)
	group.POST("", middleware.RequirePermission(create), handler.Create)
	group.GET("/:id", handler.Get)
	group.PATCH("/:id", middleware.RequirePermission(change), handler.Update)
	group.DELETE("/:id", middleware.RequirePermission(change), handler.Delete)
}

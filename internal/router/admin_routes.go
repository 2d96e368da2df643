package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/gym-management/internal/middleware"
	"github.com/iliyamo/gym-management/internal/model"
)

// registerAdmin installs the back-office routes.  Every successful write
// drops the cached catalogue and dashboard.
func registerAdmin(e *echo.Echo, h Handlers, opt Options, cache echo.MiddlewareFunc) {
	g := e.Group(apiPrefix,
		middleware.JWTAuth(opt.JWTSecret),
		middleware.RequireRole(model.RoleAdmin),
		invalidateCache(opt.Cache, opt.Redis),
	)

	g.GET("/users", h.Users.List)
	g.GET("/users/export", h.Reports.UsersXLSX)
	g.GET("/users/:id", h.Users.Get)
	g.POST("/users", h.Users.Create)
	g.PUT("/users/:id", h.Users.Update)
	g.DELETE("/users/:id", h.Users.Delete)

	g.GET("/admin/trainers", h.Trainers.List)
	g.POST("/trainers", h.Trainers.Create)
	g.PUT("/trainers/:id", h.Trainers.Update)
	g.DELETE("/trainers/:id", h.Trainers.Delete)

	g.POST("/schedules", h.Schedules.Create)
	g.PUT("/schedules/:id", h.Schedules.Update)
	g.DELETE("/schedules/:id", h.Schedules.Delete)

	g.GET("/admin/packages", h.Membership.ListAllPackages)
	g.POST("/packages", h.Membership.CreatePackage)
	g.PUT("/packages/:id", h.Membership.UpdatePackage)
	g.DELETE("/packages/:id", h.Membership.DeletePackage)
	g.PATCH("/member-packages/:id/cancel", h.Membership.CancelMemberPackage)
	g.POST("/member-packages/expire", h.Membership.ExpireDue)

	g.GET("/admin/products", h.Products.ListAll)
	g.POST("/products", h.Products.Create)
	g.PUT("/products/:id", h.Products.Update)
	g.DELETE("/products/:id", h.Products.Delete)

	g.GET("/vouchers", h.Vouchers.List)
	g.GET("/vouchers/:id", h.Vouchers.Get)
	g.POST("/vouchers", h.Vouchers.Create)
	g.PUT("/vouchers/:id", h.Vouchers.Update)
	g.DELETE("/vouchers/:id", h.Vouchers.Delete)

	g.GET("/orders/export", h.Reports.OrdersXLSX)
	g.PATCH("/orders/:id/status", h.Orders.UpdateStatus)

	g.POST("/invoices", h.Invoices.Create)
	g.PATCH("/invoices/:id/status", h.Invoices.UpdateStatus)

	g.GET("/dashboard/stats", h.Reports.Stats, cache)
}

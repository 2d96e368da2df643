package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/gym-management/internal/middleware"
	"github.com/iliyamo/gym-management/internal/model"
)

// registerMember installs the routes of signed-in users.  Handlers scope
// the data to the caller unless the caller is an admin.  Checkout and
// package purchase move stock and voucher usage, so they drop the cached
// catalogue and dashboard like admin writes do.
func registerMember(e *echo.Echo, h Handlers, opt Options) {
	g := e.Group(apiPrefix, middleware.JWTAuth(opt.JWTSecret))
	invalidate := invalidateCache(opt.Cache, opt.Redis)
	g.GET("/me/profile", h.Users.GetProfile)
	g.PUT("/me/profile", h.Users.UpdateProfile)

	g.GET("/orders", h.Orders.List)
	g.GET("/orders/:id", h.Orders.Get)
	g.GET("/invoices", h.Invoices.List)
	g.GET("/invoices/:id", h.Invoices.Get)
	g.GET("/invoices/:id/pdf", h.Reports.InvoicePDF)
	g.GET("/member-packages", h.Membership.ListMemberPackages)
	g.GET("/member-packages/:id", h.Membership.GetMemberPackage)
	g.POST("/vouchers/apply", h.Vouchers.Apply)

	buyers := middleware.RequireRole(model.RoleMember, model.RoleAdmin)
	g.POST("/member-packages", h.Membership.Purchase, buyers, invalidate)

	members := middleware.RequireRole(model.RoleMember)
	g.POST("/orders", h.Orders.Checkout, members, invalidate)
	g.POST("/schedules/:id/enroll", h.Schedules.Enroll, members)
	g.DELETE("/schedules/:id/enroll", h.Schedules.Unenroll, members)
	g.GET("/me/enrollments", h.Schedules.MyEnrollments, members)
}

// registerStaff installs the roster routes shared by trainers and admins.
func registerStaff(e *echo.Echo, h Handlers, jwtSecret string) {
	g := e.Group(apiPrefix,
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleTrainer, model.RoleAdmin),
	)
	g.GET("/me/schedules", h.Schedules.Mine)
	g.GET("/schedules/:id/enrollments", h.Schedules.Roster)
	g.PATCH("/enrollments/:id", h.Schedules.SetEnrollmentStatus)
}

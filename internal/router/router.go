// Package router maps the gym API onto echo.  Every endpoint lives under
// /api/v1 except the health probe.
package router

import (
	"database/sql"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/gym-management/internal/config"
	"github.com/iliyamo/gym-management/internal/handler"
	"github.com/iliyamo/gym-management/internal/middleware"
)

const apiPrefix = "/api/v1"

// invalidateCache is swapped out in tests to see which routes carry it.
var invalidateCache = middleware.InvalidateCache

// Handlers bundles the handlers main builds.
type Handlers struct {
	Auth       *handler.AuthHandler
	Users      *handler.UserHandler
	Trainers   *handler.TrainerHandler
	Schedules  *handler.ScheduleHandler
	Membership *handler.MembershipHandler
	Products   *handler.ProductHandler
	Vouchers   *handler.VoucherHandler
	Orders     *handler.OrderHandler
	Invoices   *handler.InvoiceHandler
	Reports    *handler.ReportHandler
}

// Options carries what the route middleware needs.  A nil Redis client
// turns the cache and the rate limiter into pass-throughs.
type Options struct {
	DB        *sql.DB
	JWTSecret string
	Redis     *redis.Client
	Cache     config.CacheConfig
	RateLimit config.RateLimitConfig
}

// Register installs every route group on e.
func Register(e *echo.Echo, h Handlers, opt Options) {
	e.GET("/healthz", handler.Health(opt.DB))

	cache := middleware.NewRedisCache(opt.Cache, opt.Redis)
	registerPublic(e, h, cache)
	registerAuth(e, h.Auth, opt)
	registerMember(e, h, opt)
	registerStaff(e, h, opt.JWTSecret)
	registerAdmin(e, h, opt, cache)
}

// registerPublic exposes the catalogue to guests.
func registerPublic(e *echo.Echo, h Handlers, cache echo.MiddlewareFunc) {
	g := e.Group(apiPrefix)
	g.GET("/trainers", h.Trainers.List)
	g.GET("/trainers/:id", h.Trainers.Get)
	g.GET("/trainers/:id/schedules", h.Trainers.Schedules)
	g.GET("/schedules", h.Schedules.List)
	g.GET("/schedules/:id", h.Schedules.Get)
	g.GET("/packages", h.Membership.ListPackages, cache)
	g.GET("/packages/:id", h.Membership.GetPackage)
	g.GET("/products", h.Products.List, cache)
	g.GET("/products/:id", h.Products.Get)
}

// registerAuth installs the session endpoints.  The unauthenticated ones
// sit behind the Redis token bucket.
func registerAuth(e *echo.Echo, a *handler.AuthHandler, opt Options) {
	limit := middleware.NewTokenBucket(opt.RateLimit, opt.Redis)
	g := e.Group(apiPrefix + "/auth")
	g.POST("/register", a.Register, limit)
	g.POST("/login", a.Login, limit)
	g.POST("/refresh", a.Refresh, limit)

	authed := e.Group(apiPrefix+"/auth", middleware.JWTAuth(opt.JWTSecret))
	authed.POST("/logout", a.Logout)
	authed.GET("/me", a.Me)
	authed.PUT("/password", a.ChangePassword)
}

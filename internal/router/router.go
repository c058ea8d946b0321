package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/atlasvoyages/gir-availability/internal/config"
	"github.com/atlasvoyages/gir-availability/internal/handler"
	"github.com/atlasvoyages/gir-availability/internal/middleware"
	"github.com/atlasvoyages/gir-availability/internal/model"
)

// RegisterRoutes registers routes that do not require authentication
// on the provided Echo instance.  The health check is used by the load
// balancer; the catalogue and history feeds are read-only and power
// the public site.
func RegisterRoutes(e *echo.Echo, circuits *handler.CircuitHandler) {
	e.GET("/healthz", handler.Health)
	// Public catalogue of published circuits.
	e.GET("/v1/circuits", circuits.ListPublicCircuits)
	// Circuit page, by numeric id or slug.
	e.GET("/v1/circuits/:id", circuits.GetPublicCircuit)
	// Availability history feed behind the circuit page chart.
	e.GET("/v1/circuits/:id/availability/history", circuits.GetHistory)
}

// RegisterAuth registers all authentication-related routes.
// Unauthenticated operations live under /v1/auth, while /v1/me
// requires a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole(model.RoleOperator, model.RoleAgency))
	auth.GET("/me", a.Me)
}

// RegisterAvailability registers the commission and sync endpoints.
// Everything here requires a valid access token; write operations are
// operator-only, while the commission snapshot is also readable by
// agencies checking their terms.  The snapshot GET sits behind the
// redis response cache; a fresh reconciliation shows up within the
// cache TTL.
func RegisterAvailability(e *echo.Echo, jwtSecret string, commission *handler.CommissionHandler, sync *handler.SyncHandler, cacheCfg config.CacheConfig, rdb *redis.Client) {
	g := e.Group("/v1/availability")
	g.Use(middleware.JWTAuth(jwtSecret))

	g.GET("/commission", commission.GetCommission,
		middleware.RequireRole(model.RoleOperator, model.RoleAgency),
		middleware.NewRedisCache(cacheCfg, rdb))
	g.POST("/commission", commission.ConfigureCommission,
		middleware.RequireRole(model.RoleOperator))
	g.POST("/sync", sync.TriggerSync,
		middleware.RequireRole(model.RoleOperator))
	// The cron scheduler authenticates as an operator service account.
	g.GET("/sync", sync.RunBatch,
		middleware.RequireRole(model.RoleOperator))
}

// RegisterManagement registers circuit CRUD, source configuration and
// booking endpoints.  Agencies may place bookings on circuits; every
// other write is operator-only.
func RegisterManagement(e *echo.Echo, jwtSecret string, circuits *handler.CircuitHandler, bookings *handler.BookingHandler) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))

	operator := middleware.RequireRole(model.RoleOperator)

	g.POST("/circuits", circuits.CreateCircuit, operator)
	g.PUT("/circuits/:id", circuits.UpdateCircuit, operator)
	g.DELETE("/circuits/:id", circuits.ArchiveCircuit, operator)
	g.POST("/circuits/:id/sources", circuits.CreateSource, operator)

	g.POST("/circuits/:id/bookings", bookings.CreateBooking,
		middleware.RequireRole(model.RoleAgency))
	g.GET("/circuits/:id/bookings", bookings.ListBookings, operator)
	g.PUT("/bookings/:id/status", bookings.UpdateBookingStatus, operator)
}

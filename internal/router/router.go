// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/khatteland/drikkepress-v2-sub001/internal/config"
	"github.com/khatteland/drikkepress-v2-sub001/internal/handler"
	"github.com/khatteland/drikkepress-v2-sub001/internal/middleware"
)

// RegisterPublic registers routes that require no authentication: the
// health check, public timeslot availability and the gateway webhook.
// The webhook authenticates with its own pre-shared secret rather than
// a user token, so it deliberately bypasses JWT middleware.
func RegisterPublic(e *echo.Echo, timeslots *handler.TimeslotHandler, webhook *handler.WebhookHandler) {
	e.GET("/healthz", handler.Health)
	e.GET("/v1/timeslots/:id", timeslots.Get)
	e.POST("/webhook", webhook.Handle)
}

// RegisterBooking registers the authenticated booking endpoints.  The
// reserve route additionally carries the Redis token bucket because it
// is the one contended operation worth shielding from request floods.
func RegisterBooking(e *echo.Echo, b *handler.BookingHandler, jwtSecret string, rlCfg config.RateLimitConfig, rdb *redis.Client) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))

	g.POST("/reserve", b.Reserve, middleware.NewTokenBucket(rlCfg, rdb))
	g.GET("/status", b.Status)
	g.POST("/refund", b.Refund)
	g.GET("/bookings", b.ListBookings)
}

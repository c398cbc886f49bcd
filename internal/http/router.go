// README: HTTP router registration.
package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"laundry/internal/http/handlers"
	"laundry/internal/http/middleware"
	"laundry/internal/infra"
)

type RouterDeps struct {
	Slots     handlers.SlotsService
	Orders    handlers.OrderService
	Verifier  infra.TokenVerifier
	Readiness map[string]handlers.Pinger
	Limiter   *middleware.RateLimiter
	Log       zerolog.Logger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Logging(deps.Log),
		middleware.Recovery(deps.Log),
	)

	health := handlers.NewHealthHandler(deps.Readiness)
	r.GET("/healthz", health.Live)
	r.GET("/readyz", health.Ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	slotsHandler := handlers.NewSlotsHandler(deps.Slots)
	api.POST("/slots", slotsHandler.Availability)
	api.GET("/slots/dates", slotsHandler.Dates)

	orderHandler := handlers.NewOrderHandler(deps.Orders)
	api.POST("/orders",
		middleware.OptionalAuth(deps.Verifier),
		middleware.RateLimit(deps.Limiter),
		orderHandler.Create,
	)
	api.GET("/orders", middleware.Auth(deps.Verifier), orderHandler.List)
	api.POST("/orders/cancel", middleware.Auth(deps.Verifier), orderHandler.Cancel)

	return r
}

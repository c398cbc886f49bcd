// README: Entry point; loads config, wires stores and services, serves HTTP until signalled.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"laundry/internal/civil"
	"laundry/internal/config"
	"laundry/internal/events"
	httptransport "laundry/internal/http"
	"laundry/internal/http/handlers"
	"laundry/internal/http/middleware"
	"laundry/internal/infra"
	"laundry/internal/metrics"
	"laundry/internal/modules/area"
	"laundry/internal/modules/order"
	"laundry/internal/modules/reservation"
	"laundry/internal/modules/slots"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := infra.NewLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := infra.SetupTracing(ctx, cfg.OTel, "laundry-api")
	if err != nil {
		log.Error().Err(err).Msg("tracing setup failed, continuing without export")
		shutdownTracing = func(context.Context) error { return nil }
	}

	verifier, err := infra.NewTokenVerifier(ctx, cfg.Firebase)
	if err != nil {
		log.Fatal().Err(err).Msg("firebase init")
	}
	if cfg.Firebase.ProjectID == "" {
		log.Warn().Msg("FIREBASE_PROJECT_ID not set; every session token will be rejected")
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres init")
	}
	defer dbPool.Close()

	redisClient, err := infra.NewRedis(ctx, cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable; slot reservations disabled")
		redisClient = nil
	}

	metrics.Register()
	publisher := events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
	defer publisher.Close()

	clock := civil.SystemClock{}
	areaSvc := area.NewService(area.NewStore(dbPool), log)
	slotSvc := slots.NewService(slots.NewStore(dbPool), areaSvc, clock, log).
		WithPickupBuffer(cfg.Slots.SameDayPickupBufferMinutes)

	orderDeps := order.Deps{
		Events:             publisher,
		Clock:              clock,
		Log:                log,
		StandardCancelLead: cfg.StandardCancelLead(),
	}
	readiness := map[string]handlers.Pinger{"postgres": dbPool}
	if redisClient != nil {
		defer redisClient.Close()
		orderDeps.Reservations = reservation.NewService(reservation.NewStore(redisClient), slotSvc)
		readiness["redis"] = handlers.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	orderSvc := order.NewService(order.NewStore(dbPool), orderDeps)

	gin.SetMode(gin.ReleaseMode)
	router := httptransport.NewRouter(httptransport.RouterDeps{
		Slots:     slotSvc,
		Orders:    orderSvc,
		Verifier:  verifier,
		Readiness: readiness,
		Limiter:   middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
		Log:       log,
	})
	server := httptransport.NewServer(cfg.HTTP.Addr, router)

	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("http server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server error")
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}
	flushCtx, cancelFlush := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelFlush()
	_ = shutdownTracing(flushCtx)
	log.Info().Msg("http server stopped")
}

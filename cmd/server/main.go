// Package main is the entry point for the ledger service. It initializes the
// database, cache, and metrics, sets up the HTTP server, and handles graceful
// shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agropay/internal/config"
	"agropay/internal/repositories"
	"agropay/internal/repositories/cache"
	"agropay/internal/routes"
	"agropay/internal/services/ledger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

func main() {
	config.LoadEnv()

	if config.IsProduction() {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	db, err := repositories.Connect(repositories.DBConfigFromEnv())
	if err != nil {
		logrus.WithError(err).Fatal("database connection failed")
	}
	defer func() {
		if err := repositories.Close(db); err != nil {
			logrus.WithError(err).Warn("database close failed")
		}
	}()

	if err := repositories.Migrate(db); err != nil {
		logrus.WithError(err).Fatal("migration failed")
	}

	redisClient := cache.NewRedisClient(&cache.RedisConfig{
		Host:     config.GetEnv("REDIS_HOST", "localhost"),
		Port:     config.GetEnv("REDIS_PORT", "6379"),
		Password: config.GetEnv("REDIS_PASSWORD", ""),
		DB:       config.GetIntEnv("REDIS_DB", 0),
	})
	cacheService := cache.NewCacheService(redisClient, config.GetDurationEnv("CACHE_TTL", 5*time.Minute))
	defer func() {
		if err := cacheService.Close(); err != nil {
			logrus.WithError(err).Warn("redis close failed")
		}
	}()

	// Stale balances must never survive a deploy.
	if err := cacheService.FlushAll(context.Background()); err != nil {
		logrus.WithError(err).Warn("redis flush failed")
	}

	registry := prometheus.NewRegistry()
	metrics := ledger.NewPrometheusMetrics(registry)
	go serveMetrics(registry)

	app := fiber.New(fiber.Config{
		ReadTimeout: config.GetDurationEnv("HTTP_READ_TIMEOUT", 15*time.Second),
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: config.GetEnv("CORS_ORIGINS", "*"),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, Idempotency-Key",
		AllowMethods: "GET,POST,DELETE",
	}))
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	routes.SetupRoutes(app, routes.Deps{
		DB:      db,
		Cache:   cacheService,
		Invalid: cacheService,
		Metrics: metrics,
	})

	go func() {
		addr := ":" + config.GetEnv("PORT", "8080")
		logrus.WithField("addr", addr).Info("server listening")
		if err := app.Listen(addr); err != nil {
			logrus.WithError(err).Fatal("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logrus.WithError(err).Error("shutdown failed")
	}
}

// serveMetrics exposes the Prometheus registry on a separate listener so the
// scrape endpoint never sits behind auth or rate limits.
func serveMetrics(registry *prometheus.Registry) {
	addr := config.GetEnv("METRICS_ADDR", ":9100")
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	logrus.WithField("addr", addr).Info("metrics listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logrus.WithError(err).Error("metrics server stopped")
	}
}

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dom/skillswap/internal/api"
	"github.com/dom/skillswap/internal/config"
	"github.com/dom/skillswap/internal/domain"
	"github.com/dom/skillswap/internal/events"
	"github.com/dom/skillswap/internal/metrics"
	"github.com/dom/skillswap/internal/repository/postgres"
	"github.com/dom/skillswap/internal/service"
	"github.com/dom/skillswap/internal/websocket"
	"gorm.io/gorm/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logLevel := logger.Warn
	if cfg.IsDevelopment() {
		logLevel = logger.Info
	}

	// Initialize database
	db, err := postgres.NewConnection(cfg.DatabaseDriver, cfg.DatabaseURL, logLevel)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	repos := postgres.NewRepositories(db)

	hub := websocket.NewHub()
	go hub.Run()

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.EventsEnabled {
		amqpPublisher := events.NewAMQPPublisher(cfg.AMQPURL, cfg.EventsQueue)
		defer amqpPublisher.Close()
		publisher = amqpPublisher
	}

	m := metrics.New()
	services := service.NewServices(repos, cfg, service.SettlementHooks{
		Notifier:  hub,
		Publisher: publisher,
		Metrics:   m,
	}, log.Default())

	if err := services.Catalog.EnsureCategories(context.Background(), domain.DefaultCategories); err != nil {
		log.Fatalf("failed to seed categories: %v", err)
	}

	rdb := cfg.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}

	router := api.NewRouter(services, api.Deps{Hub: hub, Metrics: m, Redis: rdb}, cfg)

	srv := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server forced to shutdown: %v", err)
	}
	hub.Stop()

	log.Println("Server stopped")
}

package main

import (
	"context"
	_ "embed"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"lendledger/pkg/cache"
	"lendledger/pkg/config"
	"lendledger/pkg/store"
)

//go:embed static/index.html
var indexPage []byte

// newRouter wires the API routes plus the embedded form UI at the root.
func newRouter(server *Server, limiter *RateLimiter) *mux.Router {
	router := mux.NewRouter()

	api := router.PathPrefix("/api/v1").Subrouter()
	if limiter != nil {
		api.Use(func(next http.Handler) http.Handler {
			return rateLimitMiddleware(limiter, next)
		})
	}
	api.HandleFunc("/customers", server.registerCustomerHandler).Methods("POST")
	api.HandleFunc("/customers/{customer_id}/overview", server.customerOverviewHandler).Methods("GET")
	api.HandleFunc("/loans", server.createLoanHandler).Methods("POST")
	api.HandleFunc("/loans/{loan_id}/payments", server.recordPaymentHandler).Methods("POST")
	api.HandleFunc("/loans/{loan_id}/ledger", server.getLedgerHandler).Methods("GET")

	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(indexPage)
	}).Methods("GET")

	return router
}

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	logLevel, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Initialize SQLite store; schema creation runs here, before serving.
	sqliteStore, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		logger.Fatalf("Failed to initialize SQLite store: %v", err)
	}
	defer sqliteStore.Close()

	var responseCache cache.Cache
	if cfg.RedisAddr != "" {
		responseCache = cache.NewRedisCache(cfg.RedisAddr)
		logger.Infof("Using redis cache at %s", cfg.RedisAddr)
	} else {
		responseCache = cache.NewMemoryCache()
	}

	server := NewServer(sqliteStore, responseCache, logger)

	rateLimiter := NewRateLimiter(cfg.RateLimit, cfg.RateWindow)
	defer rateLimiter.Stop()

	router := newRouter(server, rateLimiter)

	addr := fmt.Sprintf(":%s", cfg.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Infof("Starting server on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		// Not Fatalf: the deferred store close must still run.
		logger.Errorf("Server failed: %v", err)
	case <-quit:
		logger.Info("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Errorf("Error during server shutdown: %v", err)
		}
	}
	logger.Info("Server exited")
}

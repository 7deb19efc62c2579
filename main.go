package main

import (
	"context"
	"encoding/json"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/patrickmn/go-cache"
	"github.com/username/rupeefolio/backend/src/config"
	"github.com/username/rupeefolio/backend/src/database"
	"github.com/username/rupeefolio/backend/src/handlers"
	"github.com/username/rupeefolio/backend/src/logger"
	"github.com/username/rupeefolio/backend/src/services"
	"golang.org/x/time/rate"
)

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded", "path", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == config.Cfg.FrontendBaseURL {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Requested-With")
		} else if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)

	logger.L.Info("Rupeefolio backend server starting...")

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	database.RunMigrations(config.Cfg.DatabasePath)

	reportCache := cache.New(services.DefaultCacheExpiration, services.CacheCleanupInterval)

	priceService := services.NewPriceService()
	schemeService := services.NewSchemeService(reportCache)
	marketClock := services.NewMarketClock(config.Cfg.DailyRefreshHour, config.Cfg.DailyRefreshMinute)
	portfolioService := services.NewPortfolioService(priceService, marketClock, reportCache)
	importService := services.NewImportService(schemeService, portfolioService)

	scheduler := services.NewRefreshScheduler(marketClock, portfolioService)
	scheduler.Start()
	defer scheduler.Stop()

	portfolioHandler := handlers.NewPortfolioHandler(portfolioService)
	importHandler := handlers.NewImportHandler(importService)
	alertHandler := handlers.NewAlertHandler()

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(handlers.ContextualLoggerMiddleware)
	r.Use(enableCORS)
	r.Use(rateLimitMiddleware)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "Rupeefolio Backend is running"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/holdings", portfolioHandler.HandleGetHoldings)
		r.Get("/portfolio/stats", portfolioHandler.HandleGetStats)
		r.Post("/portfolio/refresh", portfolioHandler.HandleRefresh)
		r.Get("/portfolio/snapshots", portfolioHandler.HandleGetSnapshots)
		r.Get("/portfolio/export", portfolioHandler.HandleExportCSV)
		r.Post("/import", importHandler.HandleImport)
		r.Get("/alerts", alertHandler.HandleListAlerts)
		r.Post("/alerts/{id}/read", alertHandler.HandleMarkAlertRead)
	})

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // refresh runs two paced passes inline
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.L.Info("Server starting", "address", serverAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			stdlog.Fatalf("Failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.L.Info("Shutting down...")
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.L.Error("Server shutdown failed", "error", err)
	}
}

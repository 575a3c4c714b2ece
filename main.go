package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang/glog"

	"nepse_dashboard/config"
	"nepse_dashboard/controllers"
	"nepse_dashboard/middleware"
	"nepse_dashboard/routes"
	"nepse_dashboard/scheduler"
	"nepse_dashboard/services/marketdata"
	"nepse_dashboard/services/pipeline"
	"nepse_dashboard/services/publisher"
	"nepse_dashboard/services/realtime"
	"nepse_dashboard/services/snapshot"
)

func main() {
	flag.Parse()
	defer glog.Flush()

	glog.Info("==============================================")
	glog.Info("  NEPSE Dashboard - Starting...")
	glog.Info("==============================================")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		glog.Exitf("Configuration error: %v", err)
	}

	// Set Gin mode based on environment
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	quotes, err := marketdata.NewClient(cfg.FetchTimeout, marketdata.WithBaseURL(cfg.QuoteAPIURL))
	if err != nil {
		glog.Exitf("Market data client: %v", err)
	}

	store := snapshot.New()
	cycle := pipeline.NewCycle(quotes, store, pipeline.Config{
		Concurrency: cfg.FetchConcurrency,
		Timeout:     cfg.CycleTimeout,
	})

	jobScheduler, err := scheduler.New(cycle, scheduler.Config{
		Cron:        cfg.Schedule,
		Location:    cfg.Location,
		Symbols:     cfg.Symbols,
		CycleBudget: cfg.CycleTimeout,
		RunOnStart:  cfg.RunOnStart,
	})
	if err != nil {
		glog.Exitf("Scheduler: %v", err)
	}

	hub := realtime.NewHub(store)
	hub.Start()

	var redisPublisher *publisher.Publisher
	if cfg.RedisAddr != "" {
		redisPublisher = publisher.NewRedis(cfg.RedisAddr, cfg.RedisChannel)
		redisPublisher.Start(store)
	}

	stopCleanup := make(chan struct{})
	refreshLimiter := middleware.NewRateLimiter(cfg.RefreshMaxPerWindow, cfg.RefreshWindow)
	refreshLimiter.StartCleanup(10*time.Minute, stopCleanup)

	// Create Gin router
	router := gin.New()

	// Add middlewares
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestLogger())

	// Load HTML templates from embedded filesystem
	if err := routes.LoadTemplates(router, cfg.Location); err != nil {
		glog.Exitf("Could not load templates: %v", err)
	}

	dashboard := controllers.NewDashboardController(store, jobScheduler, hub)
	routes.SetupRoutes(router, dashboard, refreshLimiter)

	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.CycleTimeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	go func() {
		glog.Infof("Server listening on 0.0.0.0:%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			glog.Exitf("Server error: %v", err)
		}
	}()

	if err := jobScheduler.Start(); err != nil {
		glog.Exitf("Scheduler: %v", err)
	}
	glog.Infof("Tracking %v on %q (%s)", cfg.Symbols, cfg.Schedule, cfg.Location)

	// Graceful shutdown
	gracefulShutdown(server, jobScheduler, hub, redisPublisher)
	close(stopCleanup)
}

// corsMiddleware returns a CORS middleware handler
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, X-Requested-With")
		c.Header("Access-Control-Expose-Headers", "X-Snapshot-Version, X-Snapshot-Cycle, X-Snapshot-Updated-At, X-RateLimit-Remaining, Retry-After")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestLogger returns a request logging middleware
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skip logging for health checks to reduce noise
		path := c.Request.URL.Path
		if path == "/health" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		// Only log errors or slow requests
		if c.Writer.Status() >= 400 || duration > 1*time.Second {
			glog.Infof("%s %s %d %v", c.Request.Method, path, c.Writer.Status(), duration)
		} else if glog.V(2) {
			glog.Infof("%s %s %d %v", c.Request.Method, path, c.Writer.Status(), duration)
		}
	}
}

// gracefulShutdown handles graceful shutdown of the server
func gracefulShutdown(server *http.Server, jobScheduler *scheduler.Scheduler, hub *realtime.Hub, redisPublisher *publisher.Publisher) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal
	sig := <-quit
	glog.Infof("Received signal %v, shutting down gracefully...", sig)

	// Stop scheduler first; an in-flight cycle is cancelled and still publishes
	jobScheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(ctx); err != nil {
		glog.Warningf("Server forced to shutdown: %v", err)
	}

	hub.Stop()

	if redisPublisher != nil {
		if err := redisPublisher.Stop(); err != nil {
			glog.Warningf("Redis close: %v", err)
		}
	}

	glog.Info("Server shutdown completed")
}

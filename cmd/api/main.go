package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/gzip"
	_ "github.com/joho/godotenv/autoload"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/sjperalta/fintera-brokerage/docs" // Swagger docs
	"github.com/sjperalta/fintera-brokerage/internal/config"
	"github.com/sjperalta/fintera-brokerage/internal/database"
	"github.com/sjperalta/fintera-brokerage/internal/events"
	"github.com/sjperalta/fintera-brokerage/internal/handlers"
	"github.com/sjperalta/fintera-brokerage/internal/jobs"
	"github.com/sjperalta/fintera-brokerage/internal/middleware"
	"github.com/sjperalta/fintera-brokerage/internal/repository"
	"github.com/sjperalta/fintera-brokerage/internal/services"
	"github.com/sjperalta/fintera-brokerage/internal/storage"
	"github.com/sjperalta/fintera-brokerage/pkg/logger"

	"github.com/gin-gonic/gin"
)

// @title Fintera Brokerage API
// @version 1.0
// @description REST API for the Fintera real-estate brokerage pipeline: listing cycles, offers, deals, commissions and payment schedules
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url http://www.swagger.io/support
// @contact.email support@swagger.io

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Setup(cfg.Environment)

	// Initialize Sentry when DSN is configured
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			TracesSampleRate: 0.2,
			Environment:      cfg.Environment,
		}); err != nil {
			logger.Error("Sentry initialization failed", "error", err)
		} else {
			logger.Info("Sentry initialized")
		}
	}

	if cfg.EnableEmailNotifications && (cfg.ResendAPIKey == "" || cfg.BackofficeEmail == "") {
		logger.Warn("Email notifications enabled but RESEND_API_KEY or BACKOFFICE_EMAIL not set; emails will fail")
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	store, closeStore, err := database.OpenStore(cfg)
	if err != nil {
		logger.Error("Failed to open store", "driver", cfg.DatabaseDriver, "error", err)
		os.Exit(1)
	}

	repos := repository.NewRepositories(store)

	worker := jobs.NewWorker(cfg.WorkerCount)
	logger.Info("Started background worker", "goroutines", cfg.WorkerCount)

	bus := events.NewBus()
	svcs := services.NewServices(repos, bus, worker, cfg, time.Now)

	scheduleJobs(worker, svcs, cfg)

	receipts, err := storage.NewLocalStorage(cfg.StoragePath)
	if err != nil {
		logger.Error("Failed to initialise receipt storage", "path", cfg.StoragePath, "error", err)
		os.Exit(1)
	}

	h := handlers.NewHandlers(svcs, receipts)
	router := setupRouter(h, cfg)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	// Notifications and emails still queued are written before the store closes
	worker.Shutdown()
	logger.Info("Background worker stopped")

	if err := closeStore(); err != nil {
		logger.Error("Failed to close store", "error", err)
	}

	if cfg.SentryDSN != "" {
		sentry.Flush(5 * time.Second)
	}

	logger.Info("Server exited gracefully")
}

func setupRouter(h *handlers.Handlers, cfg *config.Config) *gin.Engine {
	router := gin.New()

	if cfg.SentryDSN != "" {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	h.Register(router.Group("/api/v1"), cfg.JWTSecret)

	return router
}

func scheduleJobs(worker *jobs.Worker, svcs *services.Services, cfg *config.Config) {
	sweep := func(ctx context.Context) error {
		logger.Info("[Job] Sending overdue instalment reminders...")
		return svcs.Job.RunOverdueSweep(ctx)
	}
	if cfg.OverdueSweepOnStart {
		worker.ScheduleEveryImmediate("overdue-sweep", cfg.OverdueSweepInterval, sweep)
	} else {
		worker.ScheduleEvery("overdue-sweep", cfg.OverdueSweepInterval, sweep)
	}

	logger.Info("Scheduled recurring jobs",
		"overdue_sweep_interval", cfg.OverdueSweepInterval.String(),
		"overdue_sweep_on_start", cfg.OverdueSweepOnStart)
}

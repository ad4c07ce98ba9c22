package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "marketplace/api/swagger" // swagger docs
	"marketplace/internal/config"
	"marketplace/internal/database"
	"marketplace/internal/handler"
	"marketplace/internal/logging"
	"marketplace/internal/middleware"
	"marketplace/internal/mirror"
	"marketplace/internal/notify"
	"marketplace/internal/repository"
	"marketplace/internal/service"
	"marketplace/internal/tracing"
	"marketplace/internal/websocket"
	"marketplace/internal/worker"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           Marketplace Approval API
// @version         1.0
// @description     Review queue for supplier/buyer registrations and product listings.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.NewLoader().Load()
	if err != nil {
		logging.Logger.Fatal().Err(err).Msg("invalid configuration")
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: os.Stdout})
	log := logging.Component("api")

	if err := tracing.Init("marketplace-api", cfg.Trace.Output); err != nil {
		log.Warn().Err(err).Msg("tracing disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	log.Info().Str("host", cfg.Database.Host).Msg("connected to PostgreSQL")

	if err := database.SeedRolesAndPermissions(ctx, db); err != nil {
		log.Warn().Err(err).Msg("failed to seed roles and permissions")
	}

	// Set up WebSocket Hub
	wsHub := websocket.NewHub()
	go wsHub.Run(ctx)

	dispatcher, err := newDispatcher(cfg, wsHub)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to compile notification templates")
	}

	sink, err := mirror.New(ctx, cfg.Mirror)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Mirror.Backend).Msg("failed to create mirror sink")
	}
	defer sink.Close()

	// Set up dependencies (Repository -> Service -> Handler)
	tm := repository.NewTransactionManager(db)
	approvalRepo := repository.NewApprovalRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	roleRepo := repository.NewRoleRepository(db)

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		log.Warn().Msg("JWT_SECRET not set, using the development fallback")
		secret = "default_super_secret_key"
	}
	middleware.InitAuth([]byte(secret), roleRepo)

	deps := service.OrchestratorDeps{
		TxManager:     tm,
		Approvals:     approvalRepo,
		Catalog:       repository.NewCatalogRepository(db),
		Roles:         roleRepo,
		Effects:       repository.NewEffectRepository(db),
		Notifications: repository.NewNotificationRepository(db),
		Audit:         auditRepo,
		Mirror:        sink,
		Notifier:      dispatcher,
	}
	if cfg.Redis.Enabled() {
		client := asynq.NewClient(worker.RedisOpt(cfg.Redis))
		defer client.Close()
		inspector := asynq.NewInspector(worker.RedisOpt(cfg.Redis))
		defer inspector.Close()
		deps.Scheduler = worker.NewScheduler(client, inspector)
	} else {
		log.Warn().Msg("REDIS_ADDR not set, incomplete decisions are resumed only on demand")
	}

	orchestrator := service.NewOrchestrator(deps, service.NewOrchestratorConfig(cfg.Orchestrator))
	validationService := service.NewValidationService(tm, approvalRepo, auditRepo)
	approvalService := service.NewApprovalService(tm, approvalRepo, auditRepo, validationService)
	auditService := service.NewAuditService(auditRepo)
	roleService := service.NewRoleService(roleRepo)

	// Initialize Handlers
	approvalHandler := handler.NewApprovalHandler(approvalService, validationService, orchestrator)
	auditHandler := handler.NewAuditHandler(auditService)
	roleHandler := handler.NewRoleHandler(roleService)

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger())

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", middleware.HeaderRequestID}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	// WebSocket endpoint for admin dashboards
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, middleware.GetJWTSecret(), "admin")
	})

	// API Routing
	approvalHandler.RegisterRoutes(router.Group(""))
	auditHandler.RegisterRoutes(router.Group(""))
	roleHandler.RegisterRoutes(router.Group(""))

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// newDispatcher adds the dashboard websocket channel to the configured channels.
func newDispatcher(cfg *config.Config, hub *websocket.Hub) (*notify.Dispatcher, error) {
	d, err := notify.NewFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	dashboard, err := notify.TextTemplates(notify.DashboardTemplates)
	if err != nil {
		return nil, err
	}
	d.Register(websocket.NewChannel(hub), dashboard)
	return d, nil
}

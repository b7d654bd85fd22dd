package main

import (
	"context"
	"flag"
	"net/http"

	_ "orderfinance/api/swagger" // swagger docs
	"orderfinance/internal/config"
	"orderfinance/internal/costing"
	"orderfinance/internal/database"
	"orderfinance/internal/handler"
	"orderfinance/internal/logging"
	"orderfinance/internal/middleware"
	"orderfinance/internal/progress"
	"orderfinance/internal/repository"
	"orderfinance/internal/service"
	"orderfinance/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// @title           Order Finance API
// @version         1.0
// @description     Cost, commission, tax and payment-fee allocation for delivery orders.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}
	if err := logging.Initialize(cfg.Logging); err != nil {
		panic(err)
	}
	defer logging.Sync()
	logger := logging.Logger

	if cfg.Server.JWTSecret == "" {
		logger.Fatal("JWT_SECRET is required")
	}
	secret := []byte(cfg.Server.JWTSecret)

	db, err := database.NewConnection(cfg.Database.DSN(), logging.Named("database"))
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	logger.Info("connected to PostgreSQL")

	engineCfg, err := cfg.Engine.Costing()
	if err != nil {
		logger.Fatal("invalid engine config", zap.Error(err))
	}
	engine := costing.NewEngine(engineCfg)

	// Set up WebSocket Hub
	wsHub := websocket.NewHub(logging.Named("websocket"))
	go wsHub.Run()

	store := progressStore(cfg, logger)
	tracker := progress.NewTracker(store, wsHub, logging.Named("progress"))

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	orderRepo := repository.NewOrderRepository(db)
	ruleRepo := repository.NewFeeRuleRepository(db)
	productRepo := repository.NewProductRepository(db)
	mappingRepo := repository.NewItemMappingRepository(db)

	serviceLogger := logging.Named("service")
	auditService := service.NewAuditService(repository.NewAuditRepository(db), serviceLogger)
	costService := service.NewCostService(engine, orderRepo, ruleRepo, productRepo, tracker, auditService, serviceLogger)
	linkService := service.NewPaymentFeeLinkService(engine, orderRepo, ruleRepo, tracker, auditService, serviceLogger)
	feeRuleService := service.NewFeeRuleService(ruleRepo, auditService, serviceLogger)
	mappingService := service.NewItemMappingService(txManager, mappingRepo, productRepo, auditService, serviceLogger)
	reportService := service.NewReportService(repository.NewReportRepository(db))

	// Set up Gin Router
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logging.Named("http")))

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.AllowOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	// WebSocket endpoint
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, secret)
	})

	// API Routing
	api := router.Group("")
	api.Use(middleware.RequireTenant(secret))
	handler.NewCostHandler(costService).RegisterRoutes(api)
	handler.NewPaymentLinkHandler(linkService).RegisterRoutes(api)
	handler.NewFeeRuleHandler(feeRuleService, costService).RegisterRoutes(api)
	handler.NewItemMappingHandler(mappingService).RegisterRoutes(api)
	handler.NewReportHandler(reportService).RegisterRoutes(api)
	handler.NewAuditHandler(auditService).RegisterRoutes(api)
	handler.NewProgressHandler(tracker).RegisterRoutes(api)

	logger.Info("server listening", zap.String("port", cfg.Server.Port))
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

// progressStore shares progress through Redis when configured, otherwise keeps it in memory.
func progressStore(cfg *config.Config, logger *zap.Logger) progress.Store {
	if cfg.Redis.Addr == "" {
		return progress.NewMemoryStore(cfg.Progress.CompletedGrace)
	}
	store := progress.NewRedisStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Progress.CompletedGrace)
	if err := store.Ping(context.Background()); err != nil {
		logger.Warn("redis unavailable, keeping progress in memory", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		_ = store.Close()
		return progress.NewMemoryStore(cfg.Progress.CompletedGrace)
	}
	return store
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.String("tenant_id", middleware.TenantID(c).String()),
		)
	}
}

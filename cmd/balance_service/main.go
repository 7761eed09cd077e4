package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"balance_service/api"
	"balance_service/internal/client"
	"balance_service/internal/config"
	"balance_service/internal/crypto"
	"balance_service/internal/exchange"
	"balance_service/internal/repository"
	"balance_service/internal/service"
	"balance_service/internal/utils"
	"balance_service/pkg/blockchain"
	"balance_service/pkg/metrics"
	"balance_service/pkg/pool"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(logrus.InfoLevel)

	zapLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize zap logger: %v", err)
	}
	defer zapLogger.Sync()

	slogHandler := zapslog.NewHandler(zapLogger.Core())
	slog.SetDefault(slog.New(slogHandler))

	cfgPath := utils.GetEnv("CONFIG_PATH", "config/config.yaml")
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		log.Warnf("Invalid log level in config: %s. Defaulting to Info.", cfg.Logging.Level)
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	if cfg.Logging.File != "" {
		file, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err == nil {
			log.SetOutput(file)
		} else {
			log.Infof("Failed to log to file, using default stdout: %v", err)
		}
	}

	zapLogger.Info("Configuration loaded", zap.String("path", cfgPath))

	metrics.MustRegisterMetrics()

	// Credential store
	mongoCtx, mongoCancel := context.WithTimeout(context.Background(), 10*time.Second)
	mongoClient, err := mongo.Connect(mongoCtx, options.Client().ApplyURI(cfg.Mongo.URI()))
	mongoCancel()
	if err != nil {
		zapLogger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoClient.Disconnect(disconnectCtx); err != nil {
			zapLogger.Warn("MongoDB disconnect failed", zap.Error(err))
		}
	}()

	if cfg.Encryption.SecretKey == "" {
		zapLogger.Fatal("Encryption secret key is not configured")
	}
	cipher := crypto.NewCipher(cfg.Encryption.SecretKey, zapLogger)

	accountRepo := repository.NewMongoAccountRepository(mongoClient, cfg.Mongo, cipher, zapLogger)
	zapLogger.Info("Account repository initialized",
		zap.String("database", cfg.Mongo.Database), zap.String("collection", cfg.Mongo.Collection))

	// Exchange drivers
	registry := exchange.NewRegistry()
	if err := registry.ValidateMapping(cfg.Exchanges.DriverMapping); err != nil {
		zapLogger.Fatal("Invalid exchange driver mapping", zap.Error(err))
	}

	workers := pool.New(cfg.Exchanges.WorkerPoolSize)
	defer workers.Close()

	fetcher := exchange.NewFetcher(cfg, registry, workers, zapLogger)
	zapLogger.Info("Exchange fetcher initialized", zap.Int("workers", workers.Size()))

	chainFetcher := blockchain.NewChainFetcher(cfg.Chains, zapLogger)
	zapLogger.Info("Chain fetcher initialized", zap.Int("chains", len(cfg.Chains)))

	// Price oracle
	coinGeckoTimeout := time.Duration(cfg.Pricing.CoinGecko.RequestTimeoutMillis) * time.Millisecond
	coinGeckoClient := client.NewCoinGeckoClient(cfg.Pricing.CoinGecko.BaseURL, cfg.Pricing.CoinGecko.APIKey, coinGeckoTimeout, zapLogger)
	priceService := service.NewPriceService(cfg.Pricing.CoinGecko, coinGeckoClient, zapLogger)

	aggregator := service.NewAggregatorService(accountRepo, fetcher, chainFetcher, priceService, cfg.Chains, zapLogger)
	zapLogger.Info("Aggregator service initialized")

	// HTTP server
	router := gin.New()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(corsConfig))

	router.Use(utils.ZapLoggerMiddleware(zapLogger))
	router.Use(gin.Recovery())

	handler := api.NewBalanceHandler(aggregator, accountRepo, cfg, zapLogger)
	api.RegisterBalanceRoutes(router, handler, cfg.API.AuthToken)

	if cfg.Swagger.Enabled {
		api.RegisterSwaggerRoutes(router, cfg.Swagger.Path)
		zapLogger.Info("Swagger UI enabled", zap.String("path", cfg.Swagger.Path+"/index.html"))
	}

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	zapLogger.Info("Prometheus metrics endpoint enabled", zap.String("path", "/metrics"))

	pprofRouter := router.Group("/debug/pprof")
	{
		pprofRouter.GET("/", gin.WrapF(pprof.Index))
		pprofRouter.GET("/cmdline", gin.WrapF(pprof.Cmdline))
		pprofRouter.GET("/profile", gin.WrapF(pprof.Profile))
		pprofRouter.POST("/symbol", gin.WrapF(pprof.Symbol))
		pprofRouter.GET("/symbol", gin.WrapF(pprof.Symbol))
		pprofRouter.GET("/trace", gin.WrapF(pprof.Trace))
		pprofRouter.GET("/allocs", gin.WrapH(pprof.Handler("allocs")))
		pprofRouter.GET("/block", gin.WrapH(pprof.Handler("block")))
		pprofRouter.GET("/goroutine", gin.WrapH(pprof.Handler("goroutine")))
		pprofRouter.GET("/heap", gin.WrapH(pprof.Handler("heap")))
		pprofRouter.GET("/mutex", gin.WrapH(pprof.Handler("mutex")))
		pprofRouter.GET("/threadcreate", gin.WrapH(pprof.Handler("threadcreate")))
	}
	zapLogger.Info("Pprof endpoints enabled under /debug/pprof")

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		zapLogger.Info(fmt.Sprintf("Server starting on port %s", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		zapLogger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exiting")
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/agoralabs/agora/internal/eligibility"
	"github.com/agoralabs/agora/internal/identity"
	"github.com/agoralabs/agora/internal/ledger"
	"github.com/agoralabs/agora/internal/notify"
	"github.com/agoralabs/agora/internal/registry"
	"github.com/agoralabs/agora/internal/registry/handler"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	if err := run(logger); err != nil {
		logger.Fatal("agorad exited with error", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	// ── Configuration ────────────────────────────────────────────────────────
	viper.SetConfigName("agorad")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("configs")
	viper.AddConfigPath(".")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	viper.SetDefault("server.rate_limit_rps", 20)
	viper.SetDefault("server.issuer_url", "")
	viper.SetDefault("auth.token_secret", "")
	viper.SetDefault("auth.token_ttl_seconds", 3600)
	viper.SetDefault("database.url", "")
	viper.SetDefault("webhook.url", "")
	viper.SetDefault("webhook.secret", "")

	if err := viper.ReadInConfig(); err != nil {
		var cfgNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgNotFound) {
			return fmt.Errorf("read config: %w", err)
		}
		logger.Warn("no config file found, using defaults and env vars")
	}

	httpPort := viper.GetInt("server.port")
	issuerURL := viper.GetString("server.issuer_url")
	if issuerURL == "" {
		issuerURL = fmt.Sprintf("http://localhost:%d", httpPort)
	}

	// ── Tokens ───────────────────────────────────────────────────────────────
	secret := viper.GetString("auth.token_secret")
	if secret == "" {
		return fmt.Errorf("auth.token_secret must be set (AUTH_TOKEN_SECRET)")
	}
	tokenTTL := time.Duration(viper.GetInt("auth.token_ttl_seconds")) * time.Second
	tokens := identity.NewTokenIssuer([]byte(secret), issuerURL, tokenTTL)

	// ── Eligibility data sources ─────────────────────────────────────────────
	// Postgres is optional: without it only gate-less conversations can be
	// created; gated ones fail with "gate data source not configured".
	gates := &eligibility.Builder{}
	dbURL := viper.GetString("database.url")
	if dbURL != "" {
		db, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer db.Close()

		if err := db.Ping(context.Background()); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
		logger.Info("connected to postgres")

		gates.Tokens = eligibility.NewPostgresTokenSource(db)
		gates.Native = eligibility.NewPostgresNativeSource(db)
		gates.Names = eligibility.NewPostgresNameSource(db)
	} else {
		logger.Warn("no database configured — eligibility-gated conversations unavailable")
	}

	// ── Event sinks ──────────────────────────────────────────────────────────
	var sink ledger.EventSink = &notify.LogSink{Logger: logger}
	if whURL := viper.GetString("webhook.url"); whURL != "" {
		wh := notify.NewWebhookSink(whURL, viper.GetString("webhook.secret"), logger)
		wh.SetMetricsRecorder(handler.RecordWebhookDelivery)
		sink = notify.MultiSink{sink, wh}
		logger.Info("webhook sink configured", zap.String("url", whURL))
	}

	// ── Registry + handlers ──────────────────────────────────────────────────
	reg := registry.New(gates, sink, logger)
	convHandler := handler.NewConversationHandler(reg, logger)
	auth := handler.AuthRequired(tokens)

	// ── HTTP Router ──────────────────────────────────────────────────────────
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	corsOrigins := viper.GetStringSlice("server.cors_origins")
	router.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: !containsWildcard(corsOrigins),
		MaxAge:           12 * time.Hour,
	}))

	// Request body size limit (1 MB)
	router.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 1<<20)
		c.Next()
	})

	if rps := viper.GetInt("server.rate_limit_rps"); rps > 0 {
		router.Use(handler.RateLimiter(rps, rps*2))
	}

	router.Use(handler.PrometheusMiddleware())
	router.Use(requestLogger(logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", handler.MetricsHandler())

	v1 := router.Group("/api/v1")
	convHandler.Register(v1, auth)

	// ── Serve ────────────────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", httpPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("agorad HTTP listening", zap.Int("port", httpPort))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP listen error", zap.Error(err))
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	<-quit
	logger.Info("shutting down agorad...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}

	logger.Info("agorad stopped")
	return nil
}

// containsWildcard returns true if origins includes "*".
func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return false
}

// requestLogger returns a Gin middleware that logs each request with zap.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

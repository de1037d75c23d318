package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/timeout"
	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/richxcame/visitorguard/internal/provider"
	"github.com/richxcame/visitorguard/internal/visit"
	"github.com/richxcame/visitorguard/pkg/common"
	"github.com/richxcame/visitorguard/pkg/config"
	"github.com/richxcame/visitorguard/pkg/database"
	"github.com/richxcame/visitorguard/pkg/logger"
	"github.com/richxcame/visitorguard/pkg/middleware"
	"github.com/richxcame/visitorguard/pkg/redis"
)

const serviceName = "visitorguard"

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		panic(err)
	}

	if err := logger.Init(cfg.Server.Environment); err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := runMigrations(cfg); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	pool, err := database.NewPostgresPool(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(pool)
	logger.Info("Connected to PostgreSQL database")

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewRedisClient(&cfg.Redis)
		if err != nil {
			// The cache only serves provider lookups; run without it
			logger.Warn("Redis unavailable, provider cache disabled", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
			logger.Info("Connected to Redis")
		}
	}

	var fetcher visit.EventDetailFetcher
	if cfg.Provider.APIKey != "" {
		client, err := provider.NewClient(cfg.Provider, redisClient)
		if err != nil {
			logger.Fatal("Failed to build provider client", zap.Error(err))
		}
		fetcher = client
		logger.Info("Provider event detail lookup enabled", zap.String("region", cfg.Provider.Region))
	} else {
		logger.Warn("FP_SERVER_API_KEY not set, smart signals disabled")
	}

	repo := visit.NewRepository(pool)
	service := visit.NewService(repo, fetcher)
	handler := visit.NewHandler(service)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.Metrics(serviceName))
	router.Use(middleware.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = splitOrigins(cfg.Server.CORSOrigins)
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", middleware.CorrelationIDHeader}
	router.Use(cors.New(corsConfig))

	router.GET("/healthz", common.HealthCheck(serviceName, version, map[string]func() error{
		"postgres": func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return pool.Ping(ctx)
		},
		"provider": func() error {
			if fetcher == nil {
				return errors.New("not configured")
			}
			return nil
		},
	}))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	handler.RegisterRoutes(api, requestTimeout(cfg.Server.RequestTimeout))

	addr := ":" + cfg.Server.Port
	logger.Info("Visitor guard API starting", zap.String("addr", addr))
	if err := router.Run(addr); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}

var version = "dev"

func runMigrations(cfg *config.Config) error {
	m, err := migrate.New("file://migrations", cfg.Database.URL())
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// requestTimeout bounds the whole visit ingestion; the engine itself
// enforces no internal deadlines.
func requestTimeout(seconds int) gin.HandlerFunc {
	d := time.Duration(seconds) * time.Second
	if d <= 0 {
		d = 15 * time.Second
	}
	return timeout.New(
		timeout.WithTimeout(d),
		timeout.WithHandler(func(c *gin.Context) { c.Next() }),
		timeout.WithResponse(func(c *gin.Context) {
			common.ErrorResponse(c, http.StatusGatewayTimeout, "request timed out")
		}),
	)
}

func splitOrigins(origins string) []string {
	var out []string
	for _, part := range strings.Split(origins, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		out = []string{"*"}
	}
	return out
}

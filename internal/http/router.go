package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/mkowalczyk/svchub/internal/auth"
	"github.com/mkowalczyk/svchub/internal/config"
	"github.com/mkowalczyk/svchub/internal/http/handlers"
	"github.com/mkowalczyk/svchub/internal/http/middlewares"
	"github.com/mkowalczyk/svchub/internal/observability"
	"github.com/mkowalczyk/svchub/internal/repo/postgres"
)

const maxBodyBytes = 1 << 20 // 1 MiB

func NewRouter(log *slog.Logger, pool *pgxpool.Pool, rdb *redis.Client, cfg config.Config) *gin.Engine {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)

	// middleware

	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger(log))
	r.Use(otelgin.Middleware("svchub"))
	r.Use(prom.GinHandleMiddleware())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.CORSAllowedOrigins))
	r.Use(middlewares.RequireJSON())
	r.Use(middlewares.MaxBodyBytes(maxBodyBytes))

	// health
	ping := func() error {
		if pool == nil {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		return pool.Ping(ctx)
	}

	h := handlers.NewHealthHandler(ping)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// wire up repositories
	usersRepo := postgres.NewUsersRepo(pool, prom)
	servicesRepo := postgres.NewServicesRepo(pool, prom)

	jwtManager := auth.NewManager(cfg.JWTSecret, cfg.AccessTTL())
	authenticator := auth.NewAuthenticator(usersRepo)

	authHandler := handlers.NewAuthHandler(authenticator, jwtManager)
	servicesHandler := handlers.NewServicesHandler(servicesRepo, usersRepo)

	login := r.Group("/")

	if rdb != nil {
		limiter := middlewares.NewRateLimiter(rdb, 10, time.Minute)
		login.Use(limiter.Middleware(func(c *gin.Context) string {
			return "" // fall back to client IP
		}))
	}

	login.POST("/login", authHandler.Login)

	authMiddleware := middlewares.NewAuthMiddleware(jwtManager)

	protected := r.Group("/")
	protected.Use(authMiddleware.RequireAuth())
	protected.GET("/services", servicesHandler.ListServices)
	protected.GET("/services/:id", servicesHandler.GetServiceByID)

	return r
}

package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/geocoder89/authgate/internal/http/handlers"
	"github.com/geocoder89/authgate/internal/http/middlewares"
	"github.com/geocoder89/authgate/internal/observability"
	"github.com/geocoder89/authgate/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// AuthAPI is everything the gateway needs from the auth service.
type AuthAPI interface {
	handlers.AuthService
	ValidateSession(ctx context.Context, token string) (service.Session, error)
}

type Deps struct {
	Log  *slog.Logger
	Env  string
	Auth AuthAPI
	// Ping backs /readyz; nil means always ready.
	Ping handlers.PingFunc
	// ShuttingDown flips /readyz to 503 during graceful shutdown.
	ShuttingDown func() bool

	// Prom and Gatherer are optional; /metrics is mounted when both are set.
	Prom     *observability.Prom
	Gatherer prometheus.Gatherer

	// ServiceName enables otelgin spans when non-empty.
	ServiceName string

	CORSAllowedOrigins []string
	// TrustedProxies may set the client address via X-Forwarded-For; empty
	// means the peer address is always used.
	TrustedProxies []string
	AuthRateLimit      int
	AuthRateWindow     time.Duration
	MaxBodyBytes       int64
}

func NewRouter(d Deps) *gin.Engine {
	if d.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	log := d.Log
	if log == nil {
		log = slog.Default()
	}

	r := gin.New()

	// the auth rate limiter keys on ClientIP, which must not be client chosen
	if err := r.SetTrustedProxies(d.TrustedProxies); err != nil {
		log.Error("invalid trusted proxies, trusting none", "err", err)
		_ = r.SetTrustedProxies(nil)
	}

	// middleware
	r.Use(gin.Recovery())
	if d.ServiceName != "" {
		r.Use(otelgin.Middleware(d.ServiceName))
	}
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(log))
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORS(d.CORSAllowedOrigins))
	if d.MaxBodyBytes > 0 {
		r.Use(middlewares.MaxBodyBytes(d.MaxBodyBytes))
	}
	r.Use(middlewares.RequireJSON())

	// health
	h := handlers.NewHealthHandler(d.Ping, d.ShuttingDown)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if d.Prom != nil && d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	r.GET("/docs", handlers.SwaggerUI)
	r.GET("/docs/openapi.yaml", handlers.OpenAPISpec)

	// auth
	var limiterOpts []middlewares.RateLimiterOption
	if d.Prom != nil {
		limiterOpts = append(limiterOpts, middlewares.WithLimitedHook(d.Prom.ObserveRateLimited))
	}

	limit, window := d.AuthRateLimit, d.AuthRateWindow
	if limit <= 0 {
		limit = 20
	}
	if window <= 0 {
		window = time.Minute
	}
	limiter := middlewares.NewRateLimiter(limit, window, limiterOpts...)

	authMW := middlewares.NewAuthMiddleware(d.Auth, log)
	authHandler := handlers.NewAuthHandler(d.Auth, middlewares.SessionFromContext, log)

	a := r.Group("/auth")
	{
		a.POST("/signup", limiter.RateLimiterMiddleware(middlewares.KeyByIP), authHandler.SignUp)
		a.POST("/signin", limiter.RateLimiterMiddleware(middlewares.KeyByIP), authHandler.SignIn)
		a.GET("/profile", authMW.RequireAuth(), authHandler.Profile)
		a.POST("/signout", authMW.RequireAuth(), limiter.RateLimiterMiddleware(middlewares.KeyByUserOrIP), authHandler.SignOut)
	}

	return r
}

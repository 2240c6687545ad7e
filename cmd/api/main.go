package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/geocoder89/authgate/internal/auth"
	"github.com/geocoder89/authgate/internal/config"
	"github.com/geocoder89/authgate/internal/db"
	httpx "github.com/geocoder89/authgate/internal/http"
	"github.com/geocoder89/authgate/internal/observability"
	"github.com/geocoder89/authgate/internal/redisclient"
	"github.com/geocoder89/authgate/internal/repo/memory"
	"github.com/geocoder89/authgate/internal/repo/postgres"
	"github.com/geocoder89/authgate/internal/revocation"
	"github.com/geocoder89/authgate/internal/security"
	"github.com/geocoder89/authgate/internal/service"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// Load the config set up
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log := observability.NewLogger(cfg.Env)

	if err := run(cfg, log); err != nil {
		log.Error("api exited", "err", err)
		os.Exit(1)
	}
}

// userStore is the union of what the service and the seeder need.
type userStore interface {
	service.UserStore
	db.SeedStore
}

func run(cfg config.Config, log *slog.Logger) error {
	startCtx, cancel := config.WithTimeout(30 * time.Second)
	defer cancel()

	if cfg.OTel.Enabled {
		shutdownTracer, err := observability.InitTracer(startCtx, observability.TracerConfig{
			ServiceName: cfg.OTel.ServiceName,
			Endpoint:    cfg.OTel.Endpoint,
			Env:         cfg.Env,
			SampleRatio: cfg.OTel.SampleRatio,
		})
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := config.WithTimeout(5 * time.Second)
			defer cancel()
			_ = shutdownTracer(ctx)
		}()
	}

	prom := observability.NewProm(prometheus.DefaultRegisterer)

	// readiness probes, one per backing store
	var pings []func(context.Context) error

	var users userStore
	switch cfg.UserStore {
	case "postgres":
		pool, err := db.NewPool(startCtx, cfg.DBURL(), log)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := db.Migrate(startCtx, pool); err != nil {
			return err
		}

		users = postgres.NewUsersRepo(pool, prom)
		pings = append(pings, pool.Ping)
	default:
		log.Warn("using in-memory user store; accounts are lost on restart")
		users = memory.NewUsersRepo()
	}

	var revoked revocation.Store
	if cfg.Redis.Addr != "" {
		rdb, err := redisclient.New(redisclient.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer rdb.Close()

		if err := rdb.Ping(startCtx); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}

		revoked = revocation.NewRedisStore(rdb.Raw(), cfg.JWT.TTL, prom)
		pings = append(pings, rdb.Ping)
	} else {
		revoked = revocation.NewMemoryStore(cfg.JWT.TTL)
	}

	hasher, err := security.NewHasher(cfg.BcryptCost)
	if err != nil {
		return err
	}

	tokens, err := auth.NewManager(auth.TokenConfig{
		Secret:    []byte(cfg.JWT.Secret),
		TTL:       cfg.JWT.TTL,
		Algorithm: cfg.JWT.Algorithm,
		Issuer:    cfg.JWT.Issuer,
	})
	if err != nil {
		return err
	}

	created, err := db.EnsureSeedUser(startCtx, users, hasher, cfg.Seed)
	if err != nil {
		return fmt.Errorf("seed user: %w", err)
	}
	if created {
		log.Info("seed user created", "email", cfg.Seed.Email)
	}

	svc := service.NewAuth(users, hasher, tokens, log,
		service.WithRevocation(revoked),
		service.WithRecorder(prom),
	)

	var shuttingDown atomic.Bool

	deps := httpx.Deps{
		Log:                log,
		Env:                cfg.Env,
		Auth:               svc,
		Ping:               pingAll(pings),
		ShuttingDown:       shuttingDown.Load,
		Prom:               prom,
		Gatherer:           prometheus.DefaultGatherer,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		TrustedProxies:     cfg.TrustedProxies,
		AuthRateLimit:      cfg.AuthRateLimit,
		AuthRateWindow:     cfg.AuthRateWindow,
		MaxBodyBytes:       cfg.MaxBodyBytes,
	}
	if cfg.OTel.Enabled {
		deps.ServiceName = cfg.OTel.ServiceName
	}

	router := httpx.NewRouter(deps)

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)

	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env, "user_store", cfg.UserStore)
		err := srv.ListenAndServe()

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	case <-stop:
	}

	// fail readiness first so load balancers stop routing here, then close
	// listeners. A second signal skips the wait.
	shuttingDown.Store(true)
	log.Info("draining before shutdown", "drain", cfg.ShutdownDrain)

	if !drain(cfg.ShutdownDrain, stop) {
		log.Warn("second signal, skipping drain")
	}

	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctx, cancel := config.WithTimeout(10 * time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")
	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}

	return nil
}

// drain waits d, or until another signal arrives. It reports whether the
// full period elapsed.
func drain(d time.Duration, stop <-chan os.Signal) bool {
	if d <= 0 {
		return true
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-stop:
		return false
	}
}

func pingAll(pings []func(context.Context) error) func(context.Context) error {
	if len(pings) == 0 {
		return nil
	}

	return func(ctx context.Context) error {
		for _, ping := range pings {
			if err := ping(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

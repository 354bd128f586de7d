// Command agent runs the Xianyu account fleet and its admin API.
//
// @title                       Xianyu Agent Admin API
// @version                     1.0
// @description                 Operator API of the Xianyu account-fleet agent: accounts, reply rules, delivery cards and notification routing.
// @BasePath                    /api/v1
// @securityDefinitions.apikey  AdminToken
// @in                          header
// @name                        X-Admin-Token
// @description                 Admin secret configured with ADMIN_TOKEN.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/xianyu-agent/internal/account"
	"github.com/tbourn/xianyu-agent/internal/cache"
	"github.com/tbourn/xianyu-agent/internal/clock"
	"github.com/tbourn/xianyu-agent/internal/config"
	"github.com/tbourn/xianyu-agent/internal/fleet"
	httpapi "github.com/tbourn/xianyu-agent/internal/http"
	"github.com/tbourn/xianyu-agent/internal/llm"
	"github.com/tbourn/xianyu-agent/internal/market"
	"github.com/tbourn/xianyu-agent/internal/notify"
	"github.com/tbourn/xianyu-agent/internal/observability"
	"github.com/tbourn/xianyu-agent/internal/repo"
	"github.com/tbourn/xianyu-agent/internal/services"
	"github.com/tbourn/xianyu-agent/internal/store"
	"github.com/tbourn/xianyu-agent/internal/sysutil"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		// logger is not configured yet; the default one still writes JSON to stderr
		log.Fatal().Err(err).Msg("config")
	}
	sysutil.SetupLogger(cfg.LogLevel, cfg.LogPretty, os.Stderr)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appVersion := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, appVersion)
	if err != nil {
		log.Fatal().Err(err).Msg("otel")
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}
	st, err := store.New(db, cfg.ItemCacheSize)
	if err != nil {
		log.Fatal().Err(err).Msg("store")
	}

	clk := clock.New()
	confirmed, err := newConfirmCache(ctx, cfg, clk)
	if err != nil {
		log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis")
	}
	defer confirmed.Close()

	mkt := market.New(st, market.Options{
		BaseURL:    cfg.Market.BaseURL,
		UserAgent:  cfg.Market.UserAgent,
		Timeout:    cfg.Market.Timeout,
		RPS:        cfg.Market.RPS,
		Confirmed:  confirmed,
		ConfirmTTL: cfg.Runtime.OrderConfirmCooldown,
		Clock:      clk,
	})

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)

	sink := notify.NewSink(st, clk, cfg.Runtime.NotifyCooldown, cfg.Runtime.NotifyTokenCooldown)
	sink.Observe = metrics.ObserveNotification

	deps := account.Deps{
		Store:    st,
		Market:   mkt,
		Notifier: sink,
		LLM:      llm.NewProvider(64, 60*time.Second),
		Clock:    clk,
		Config:   &cfg,
		Hooks:    metrics.Hooks(),
	}
	if ext := cfg.Triggers.ExternalReply; ext.Enabled {
		deps.External = services.NewHTTPExternalReplier(ext.URL, ext.Timeout)
	}

	fl := fleet.New(st, deps)
	fl.OnRemove = metrics.Forget
	fleetDone := make(chan error, 1)
	go func() { fleetDone <- fl.Run(ctx) }()

	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{
		Fleet: fl,
		DB:    db,
		Items: &services.ItemSync{Store: st, Market: mkt},
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", appVersion).Msg("admin api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("admin api")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	select {
	case err := <-fleetDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("fleet")
		}
	case <-shCtx.Done():
		log.Warn().Msg("fleet did not stop in time")
	}
	if err := shutdownOTel(shCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// newConfirmCache picks Redis when configured so several agent processes
// share the recently-confirmed set; otherwise a process-local TTL map.
func newConfirmCache(ctx context.Context, cfg config.Config, clk clock.Clock) (cache.Cache, error) {
	if cfg.Redis.Addr == "" {
		return cache.NewMemoryCache(clk, time.Minute), nil
	}
	rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
		Addr:      cfg.Redis.Addr,
		Password:  cfg.Redis.Password,
		DB:        cfg.Redis.DB,
		KeyPrefix: "xianyu",
	})
	if err != nil {
		return nil, err
	}
	return rc, nil
}

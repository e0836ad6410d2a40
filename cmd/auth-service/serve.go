package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pribylovaa/clinic-auth-service/internal/cache"
	"github.com/pribylovaa/clinic-auth-service/internal/config"
	"github.com/pribylovaa/clinic-auth-service/internal/hasher"
	"github.com/pribylovaa/clinic-auth-service/internal/metrics"
	"github.com/pribylovaa/clinic-auth-service/internal/service"
	"github.com/pribylovaa/clinic-auth-service/internal/storage/postgres"
	"github.com/pribylovaa/clinic-auth-service/internal/telemetry"
	"github.com/pribylovaa/clinic-auth-service/internal/tokens"
	authhttp "github.com/pribylovaa/clinic-auth-service/internal/transport/http"
	"github.com/pribylovaa/clinic-auth-service/internal/transport/http/handlers"
	"github.com/pribylovaa/clinic-auth-service/migrations"
)

func newServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(parent context.Context, cfg *config.Config) error {
	log := setupLogger(cfg.Env)
	slog.SetDefault(log)
	log.Info("starting application", slog.String("env", cfg.Env))

	// Корневой контекст по сигналам.
	rootCtx, rootCancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	generated, err := cfg.Auth.EnsureSecrets()
	if err != nil {
		log.Error("secrets_generate_failed", slog.String("err", err.Error()))
		return err
	}
	for _, name := range generated {
		log.Warn("jwt_secret_generated",
			slog.String("secret", name),
			slog.String("hint", "tokens will not survive a restart; set the secret explicitly"),
		)
	}

	shutdownTelemetry, err := telemetry.Setup(rootCtx, cfg.Telemetry)
	if err != nil {
		log.Error("telemetry_setup_failed", slog.String("err", err.Error()))
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.Shutdown)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			log.Warn("telemetry_shutdown_failed", slog.String("err", err.Error()))
		}
	}()

	if cfg.DB.MigrateOnStart {
		migCtx, migCancel := context.WithTimeout(rootCtx, time.Minute)
		err := migrations.Up(migCtx, cfg.DB.DatabaseURL)
		migCancel()
		if err != nil {
			log.Error("migrations_failed", slog.String("err", err.Error()))
			return err
		}
		log.Info("migrations_applied")
	}

	// Подключение к БД c таймаутом.
	dbCtx, dbCancel := context.WithTimeout(rootCtx, 10*time.Second)
	str, err := postgres.New(dbCtx, cfg.DB)
	dbCancel()
	if err != nil {
		log.Error("postgres_connect_failed", slog.String("err", err.Error()))
		return err
	}
	defer str.Close()
	log.Info("postgres_connected")

	codec, err := tokens.New(tokens.Options{
		AccessSecret:  cfg.Auth.AccessSecret,
		RefreshSecret: cfg.Auth.RefreshSecret,
		AccessTTL:     cfg.Auth.AccessTokenTTL(),
		RefreshTTL:    cfg.Auth.RefreshTokenTTL(),
		Issuer:        cfg.Auth.Issuer,
		Audience:      cfg.Auth.Audience,
	})
	if err != nil {
		log.Error("token_codec_init_failed", slog.String("err", err.Error()))
		return err
	}

	srvc := service.New(str, codec, hasher.New(cfg.Auth.BcryptCost()))

	if cfg.Redis.RedisURL != "" {
		rctx, rcancel := context.WithTimeout(rootCtx, 5*time.Second)
		pc, err := cache.NewRedisCache(rctx, cfg.Redis.RedisURL, "")
		rcancel()
		if err != nil {
			// Кэш профилей необязателен: сервис работает и без него.
			log.Warn("redis_unavailable", slog.String("err", err.Error()))
		} else {
			defer func() { _ = pc.Close() }()
			srvc.SetProfileCache(pc, cfg.Redis.ProfileTTL)
			log.Info("redis_connected")
		}
	}
	log.Info("service_initialized")

	m := metrics.New()
	var ready atomic.Bool

	handler := authhttp.NewRouter(srvc, authhttp.Options{
		Logger:         log,
		Timeout:        cfg.Timeouts.Service,
		BasePath:       cfg.HTTP.BasePath,
		CookieName:     cfg.Cookie.Name,
		CookieSecure:   cfg.Cookie.Secure,
		CookieSameSite: handlers.ParseSameSite(cfg.Cookie.SameSite),
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		RateLimit: authhttp.RateLimit{
			Requests: cfg.RateLimit.Requests,
			Window:   cfg.RateLimit.Window,
		},
		Metrics: m,
		Ready:   ready.Load,
	})

	// Фоновая очистка просроченных refresh-токенов.
	janitorCtx, janitorCancel := context.WithCancel(rootCtx)
	janitorDone := startRefreshJanitor(janitorCtx, str, log, cfg.Janitor.Period, m.ExpiredTokensDeleted)

	httpAddr := cfg.HTTP.Addr()
	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}

	ln, err := net.Listen("tcp", httpAddr)
	if err != nil {
		log.Error("http_listen_failed", slog.String("addr", httpAddr), slog.String("err", err.Error()))
		janitorCancel()
		<-janitorDone
		return err
	}
	log.Info("http_listen_start", slog.String("addr", httpAddr))

	serveErrCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
		}
		close(serveErrCh)
	}()

	ready.Store(true)
	log.Info("service_ready")

	// Ожидание сигнала завершения или фатальной ошибки сервера.
	var serveErr error
	select {
	case <-rootCtx.Done():
		log.Info("shutdown_requested")
	case serveErr = <-serveErrCh:
		if serveErr != nil {
			log.Error("http_serve_failed", slog.String("err", serveErr.Error()))
		}
	}

	ready.Store(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.Shutdown)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http_shutdown_incomplete", slog.String("err", err.Error()))
	} else {
		log.Info("http_stopped")
	}

	janitorCancel()
	<-janitorDone

	log.Info("service_stopped")
	return serveErr
}

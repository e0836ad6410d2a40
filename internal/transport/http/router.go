package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"

	apierrors "github.com/pribylovaa/clinic-auth-service/internal/errors"
	"github.com/pribylovaa/clinic-auth-service/internal/metrics"
	"github.com/pribylovaa/clinic-auth-service/internal/models"
	"github.com/pribylovaa/clinic-auth-service/internal/service"
	"github.com/pribylovaa/clinic-auth-service/internal/telemetry"
	"github.com/pribylovaa/clinic-auth-service/internal/transport/http/handlers"
	"github.com/pribylovaa/clinic-auth-service/internal/transport/http/middleware"
)

// AuthService - сервисный слой целиком: хендлеры и проверка Bearer-токена.
type AuthService interface {
	Register(ctx context.Context, in service.RegisterInput) (*models.PublicUser, error)
	Login(ctx context.Context, email, password string) (*models.PublicUser, *models.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	Me(ctx context.Context, userID uuid.UUID) (*models.PublicUser, error)
	ValidateAccessToken(ctx context.Context, accessToken string) (uuid.UUID, error)
}

// RateLimit - лимит запросов к /auth на один IP.
type RateLimit struct {
	Requests int
	Window   time.Duration
}

// Options - параметры сборки HTTP-роутера.
type Options struct {
	Logger   *slog.Logger
	Timeout  time.Duration
	BasePath string // например, "/api"; если пустой - роуты регистрируются на корне.

	CookieName     string
	CookieSecure   bool
	CookieSameSite http.SameSite

	AllowedOrigins []string // пустой список отключает CORS
	RateLimit      RateLimit

	Metrics *metrics.Metrics // может быть nil
	Ready   func() bool      // readiness для /healthz; nil - всегда готов
}

// RefreshCookiePath - путь, на который браузер отправляет refresh-cookie.
func (o Options) RefreshCookiePath() string {
	return o.BasePath + "/auth/refresh"
}

// NewRouter собирает http.Handler с chi, мидлварами и маршрутами.
func NewRouter(svc AuthService, opts Options) http.Handler {
	root := chi.NewRouter()

	var (
		reqObs     middleware.RequestObserver
		outcomeObs handlers.OutcomeObserver
	)
	if opts.Metrics != nil {
		reqObs, outcomeObs = opts.Metrics, opts.Metrics
	}

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.Recover(),
		middleware.RequestID(),
		middleware.Logging(opts.Logger),
		middleware.Metrics(reqObs),
		middleware.Timeout(opts.Timeout),
	)

	// Задаются до Route, чтобы подроутеры унаследовали обработчики.
	root.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apierrors.WriteError(w, r, apierrors.ErrNotFound)
	})
	root.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		apierrors.WriteError(w, r, apierrors.ErrMethodNotAllowed)
	})

	registerOperational(root, opts)

	h := handlers.New(svc, handlers.CookieOptions{
		Name:     opts.CookieName,
		Path:     opts.RefreshCookiePath(),
		Secure:   opts.CookieSecure,
		SameSite: opts.CookieSameSite,
	}, outcomeObs)

	auth := func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			if len(opts.AllowedOrigins) > 0 {
				r.Use(corsHandler(opts.AllowedOrigins))
			}
			if opts.RateLimit.Requests > 0 && opts.RateLimit.Window > 0 {
				r.Use(rateLimiter(opts.RateLimit))
			}

			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/refresh", h.Refresh)
			r.With(middleware.AuthBearer(svc)).Get("/me", h.Me)
		})
	}

	if opts.BasePath != "" {
		root.Route(opts.BasePath, auth)
	} else {
		auth(root)
	}

	return middleware.Chain(root, telemetry.Middleware("http.server"))
}

// registerOperational - liveness, readiness и метрики.
func registerOperational(r chi.Router, opts Options) {
	r.Get("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if opts.Ready == nil || opts.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
			return
		}
		http.Error(w, "not ready", http.StatusServiceUnavailable)
	})

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}
}

func corsHandler(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           int((10 * time.Minute).Seconds()),
	})
}

func rateLimiter(rl RateLimit) func(http.Handler) http.Handler {
	return httprate.Limit(rl.Requests, rl.Window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			apierrors.WriteError(w, r, apierrors.ErrRateLimited)
		}),
	)
}

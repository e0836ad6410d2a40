package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/pribylovaa/clinic-auth-service/internal/pkg/log"
)

// Logging кладёт request-scoped логгер в контекст и пишет одну запись на запрос.
// Логгер обогащается request_id, если RequestID стоит раньше в цепочке.
func Logging(base *slog.Logger) Middleware {
	if base == nil {
		base = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := base
			if rid := log.RequestID(r.Context()); rid != "" {
				l = l.With(slog.String("request_id", rid))
			}
			r = r.WithContext(log.Into(r.Context(), l))

			sw := newStatusWriter(w)
			start := time.Now()
			next.ServeHTTP(sw, r)

			l.LogAttrs(r.Context(), slog.LevelInfo, "http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", sw.code()),
				slog.Duration("dur", time.Since(start)),
				slog.Int("bytes", sw.count),
			)
		})
	}
}

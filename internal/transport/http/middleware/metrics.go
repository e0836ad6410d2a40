package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// RequestObserver принимает длительность обработанного запроса.
type RequestObserver interface {
	ObserveRequest(method, route string, status int, dur time.Duration)
	InFlight() func()
}

// Metrics учитывает длительность запросов по шаблону маршрута chi,
// чтобы не плодить метки на каждый уникальный путь.
func Metrics(obs RequestObserver) Middleware {
	return func(next http.Handler) http.Handler {
		if obs == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			done := obs.InFlight()
			defer done()

			sw := newStatusWriter(w)
			start := time.Now()
			next.ServeHTTP(sw, r)

			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil {
				if p := rc.RoutePattern(); p != "" {
					route = p
				}
			}

			obs.ObserveRequest(r.Method, route, sw.code(), time.Since(start))
		})
	}
}

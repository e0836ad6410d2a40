package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	apierrors "github.com/pribylovaa/clinic-auth-service/internal/errors"
	"github.com/pribylovaa/clinic-auth-service/internal/pkg/log"
	"github.com/pribylovaa/clinic-auth-service/internal/service"
)

// capHandler - тестовый slog.Handler: копит attrs последней записи.
type capHandler struct {
	base    []slog.Attr
	lastMsg string
	attrs   map[string]any
	count   int
}

func (h *capHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *capHandler) Handle(_ context.Context, r slog.Record) error {
	out := make(map[string]any, len(h.base)+8)
	for _, a := range h.base {
		out[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		out[a.Key] = a.Value.Any()
		return true
	})

	h.count++
	h.lastMsg = r.Message
	h.attrs = out
	return nil
}

func (h *capHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h.base = append(h.base, attrs...)
	return h
}

func (h *capHandler) WithGroup(string) slog.Handler { return h }

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) apierrors.ErrorResponse {
	t.Helper()
	var env apierrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	return env
}

func TestChain_Order(t *testing.T) {
	t.Parallel()

	var order []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name+"-begin")
				next.ServeHTTP(w, r)
				order = append(order, name+"-end")
			})
		}
	}

	final := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		order = append(order, "handler")
		w.WriteHeader(http.StatusTeapot)
	})

	rr := httptest.NewRecorder()
	Chain(final, mw("m1"), mw("m2")).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, []string{"m1-begin", "m2-begin", "handler", "m2-end", "m1-end"}, order)
	require.Equal(t, http.StatusTeapot, rr.Code)
}

func TestRequestID_GenerateAndPropagate(t *testing.T) {
	t.Parallel()

	var seenHdr, seenCtx string
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenHdr = r.Header.Get("X-Request-Id")
		seenCtx = log.RequestID(r.Context())
	})

	rr := httptest.NewRecorder()
	Chain(h, RequestID()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	id := rr.Header().Get("X-Request-Id")
	require.Len(t, id, 32)
	require.Equal(t, id, seenHdr)
	require.Equal(t, id, seenCtx)
}

func TestRequestID_UsesExisting_RejectsOversized(t *testing.T) {
	t.Parallel()

	h := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "given-id")
	Chain(h, RequestID()).ServeHTTP(rr, req)
	require.Equal(t, "given-id", rr.Header().Get("X-Request-Id"))

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", strings.Repeat("a", 500))
	Chain(h, RequestID()).ServeHTTP(rr, req)
	require.Len(t, rr.Header().Get("X-Request-Id"), 32)
}

func TestLogging_WritesRecordWithRequestID(t *testing.T) {
	t.Parallel()

	ch := &capHandler{}
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Логгер из контекста уже несёт request_id.
		require.NotEqual(t, slog.Default(), log.From(r.Context()))
		_, _ = w.Write([]byte("0123456789"))
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/log", nil)
	req.Header.Set("X-Request-Id", "rid-456")
	Chain(final, RequestID(), Logging(slog.New(ch))).ServeHTTP(rr, req)

	require.Equal(t, 1, ch.count)
	require.Equal(t, "http", ch.lastMsg)
	require.Equal(t, "rid-456", ch.attrs["request_id"])
	require.Equal(t, "/log", ch.attrs["path"])
	require.EqualValues(t, http.StatusOK, ch.attrs["status"])
	require.EqualValues(t, 10, ch.attrs["bytes"])
}

func TestRecover_ConvertsPanicTo500Envelope(t *testing.T) {
	t.Parallel()

	h := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	Chain(h, Recover(), RequestID()).ServeHTTP(rr, req)

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	env := decodeEnvelope(t, rr)
	require.Equal(t, "internal", env.Error.Code)
	require.NotContains(t, env.Error.Message, "boom")
}

func TestRecover_RepanicsAbortHandler(t *testing.T) {
	t.Parallel()

	h := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic(http.ErrAbortHandler) })

	require.PanicsWithValue(t, http.ErrAbortHandler, func() {
		Chain(h, Recover()).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestTimeout_SetsDeadline_WhenAbsent(t *testing.T) {
	t.Parallel()

	var hasDeadline bool
	h := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		_, hasDeadline = r.Context().Deadline()
	})

	Chain(h, Timeout(50*time.Millisecond)).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.True(t, hasDeadline)
}

func TestTimeout_ShortensLaterDeadline(t *testing.T) {
	t.Parallel()

	var childDL time.Time
	h := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		childDL, _ = r.Context().Deadline()
	})

	parent, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(parent)
	Chain(h, Timeout(50*time.Millisecond)).ServeHTTP(httptest.NewRecorder(), req)

	parentDL, _ := parent.Deadline()
	require.True(t, childDL.Before(parentDL))
	require.WithinDuration(t, time.Now().Add(50*time.Millisecond), childDL, time.Second)
}

func TestTimeout_DoesNotOverrideExistingDeadline(t *testing.T) {
	t.Parallel()

	var childDL time.Time
	h := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		childDL, _ = r.Context().Deadline()
	})

	parent, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(parent)
	Chain(h, Timeout(time.Second)).ServeHTTP(httptest.NewRecorder(), req)

	parentDL, _ := parent.Deadline()
	require.Equal(t, parentDL, childDL)
}

type stubValidator struct {
	uid uuid.UUID
	err error
	got string
}

func (s *stubValidator) ValidateAccessToken(_ context.Context, tok string) (uuid.UUID, error) {
	s.got = tok
	return s.uid, s.err
}

func TestAuthBearer(t *testing.T) {
	t.Parallel()

	uid := uuid.New()

	tcs := []struct {
		name       string
		header     string
		validator  *stubValidator
		wantStatus int
		wantToken  string
	}{
		{"missing", "", &stubValidator{uid: uid}, http.StatusUnauthorized, ""},
		{"basic_scheme", "Basic abc", &stubValidator{uid: uid}, http.StatusUnauthorized, ""},
		{"empty_token", "Bearer   ", &stubValidator{uid: uid}, http.StatusUnauthorized, ""},
		{"invalid_token", "Bearer bad", &stubValidator{err: service.ErrInvalidToken}, http.StatusUnauthorized, "bad"},
		{"valid", "Bearer good", &stubValidator{uid: uid}, http.StatusOK, "good"},
		{"scheme_case_insensitive", "bearer good", &stubValidator{uid: uid}, http.StatusOK, "good"},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var seen uuid.UUID
			h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen, _ = UserID(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			Chain(h, AuthBearer(tc.validator)).ServeHTTP(rr, req)

			require.Equal(t, tc.wantStatus, rr.Code)
			require.Equal(t, tc.wantToken, tc.validator.got)
			if tc.wantStatus == http.StatusOK {
				require.Equal(t, uid, seen)
			} else {
				require.Equal(t, "unauthenticated", decodeEnvelope(t, rr).Error.Code)
			}
		})
	}
}

type recObserver struct {
	mu       sync.Mutex
	route    string
	status   int
	inflight int
	peak     int
}

func (o *recObserver) ObserveRequest(_ string, route string, status int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.route, o.status = route, status
}

func (o *recObserver) InFlight() func() {
	o.mu.Lock()
	o.inflight++
	if o.inflight > o.peak {
		o.peak = o.inflight
	}
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		o.inflight--
		o.mu.Unlock()
	}
}

func TestMetrics_UsesRoutePattern(t *testing.T) {
	t.Parallel()

	obs := &recObserver{}
	r := chi.NewRouter()
	r.Use(Metrics(obs))
	r.Get("/users/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/users/42", nil))

	require.Equal(t, "/users/{id}", obs.route)
	require.Equal(t, http.StatusAccepted, obs.status)
	require.Equal(t, 1, obs.peak)
	require.Equal(t, 0, obs.inflight)
}

func TestStatusWriter_DefaultsTo200(t *testing.T) {
	t.Parallel()

	sw := newStatusWriter(httptest.NewRecorder())
	require.Equal(t, http.StatusOK, sw.code())

	_, _ = sw.Write([]byte("abcd"))
	require.Equal(t, http.StatusOK, sw.status)
	require.Equal(t, 4, sw.count)
}

func TestStatusWriter_FirstStatusWins(t *testing.T) {
	t.Parallel()

	sw := newStatusWriter(httptest.NewRecorder())
	sw.WriteHeader(http.StatusCreated)
	sw.WriteHeader(http.StatusInternalServerError)
	require.Equal(t, http.StatusCreated, sw.code())
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	apierrors "github.com/pribylovaa/clinic-auth-service/internal/errors"
	"github.com/pribylovaa/clinic-auth-service/internal/models"
	"github.com/pribylovaa/clinic-auth-service/internal/service"
	"github.com/pribylovaa/clinic-auth-service/internal/transport/http/middleware"
)

type fakeService struct {
	registerIn  service.RegisterInput
	registerErr error

	loginUser *models.PublicUser
	loginPair *models.TokenPair
	loginErr  error

	refreshGot  string
	refreshPair *models.TokenPair
	refreshErr  error

	meUser *models.PublicUser
	meErr  error
	meGot  uuid.UUID
}

func (f *fakeService) Register(_ context.Context, in service.RegisterInput) (*models.PublicUser, error) {
	f.registerIn = in
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return &models.PublicUser{ID: uuid.New(), Email: in.Email, Role: models.RoleUser}, nil
}

func (f *fakeService) Login(context.Context, string, string) (*models.PublicUser, *models.TokenPair, error) {
	return f.loginUser, f.loginPair, f.loginErr
}

func (f *fakeService) Refresh(_ context.Context, tok string) (*models.TokenPair, error) {
	f.refreshGot = tok
	return f.refreshPair, f.refreshErr
}

func (f *fakeService) Me(_ context.Context, id uuid.UUID) (*models.PublicUser, error) {
	f.meGot = id
	return f.meUser, f.meErr
}

type outcomes map[string]int

func (o outcomes) ObserveOutcome(op, outcome string) { o[op+":"+outcome]++ }

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newHandlers(svc AuthService, obs outcomes) *Handlers {
	var o OutcomeObserver
	if obs != nil {
		o = obs
	}
	return New(svc, CookieOptions{
		Name:     "jwt",
		Path:     "/api/auth/refresh",
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
		Now:      func() time.Time { return fixedNow },
	}, o)
}

func post(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func envelope(t *testing.T, rr *httptest.ResponseRecorder) apierrors.ErrorResponse {
	t.Helper()
	var env apierrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	return env
}

func TestRegister_Created(t *testing.T) {
	t.Parallel()

	svc := &fakeService{}
	obs := outcomes{}
	rr := httptest.NewRecorder()

	newHandlers(svc, obs).Register(rr, post(`{"name":"Anna","surname":"Nowak","email":"anna@clinic.pl","password":"password123"}`))

	require.Equal(t, http.StatusCreated, rr.Code)
	require.Empty(t, rr.Result().Cookies(), "registration does not open a session")

	var resp RegisterResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Message)
	require.Equal(t, "anna@clinic.pl", resp.User.Email)
	require.Equal(t, models.RoleUser, resp.User.Role)

	require.Equal(t, service.RegisterInput{Name: "Anna", Surname: "Nowak", Email: "anna@clinic.pl", Password: "password123"}, svc.registerIn)
	require.Equal(t, 1, obs["register:ok"])
	require.NotContains(t, rr.Body.String(), "password")
}

func TestRegister_ValidationErrors(t *testing.T) {
	t.Parallel()

	tcs := []struct {
		name       string
		body       string
		wantFields []string
	}{
		{"bad_email", `{"name":"A","surname":"B","email":"not-an-email","password":"password123"}`, []string{"email"}},
		{"short_password", `{"name":"A","surname":"B","email":"a@b.com","password":"short"}`, []string{"password"}},
		{"blank_names", `{"name":" ","surname":"","email":"a@b.com","password":"password123"}`, []string{"name", "surname"}},
		{"display_name_email", `{"name":"A","surname":"B","email":"Anna <a@b.com>","password":"password123"}`, []string{"email"}},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc := &fakeService{}
			rr := httptest.NewRecorder()
			newHandlers(svc, nil).Register(rr, post(tc.body))

			require.Equal(t, http.StatusBadRequest, rr.Code)
			env := envelope(t, rr)
			require.Equal(t, "invalid_argument", env.Error.Code)
			for _, f := range tc.wantFields {
				require.Contains(t, env.Error.Details, f)
			}
			require.Empty(t, svc.registerIn.Email, "service must not be called")
		})
	}
}

func TestRegister_MalformedBody(t *testing.T) {
	t.Parallel()

	for _, body := range []string{
		`{`,
		`{"name":"A","surname":"B","email":"a@b.com","password":"password123","role":"doctor"}`,
		`{"name":"A","surname":"B","email":"a@b.com","password":"password123"} {}`,
	} {
		rr := httptest.NewRecorder()
		newHandlers(&fakeService{}, nil).Register(rr, post(body))
		require.Equal(t, http.StatusBadRequest, rr.Code, body)
	}
}

func TestRegister_EmailTaken_Conflict(t *testing.T) {
	t.Parallel()

	obs := outcomes{}
	svc := &fakeService{registerErr: service.ErrEmailTaken}
	rr := httptest.NewRecorder()
	newHandlers(svc, obs).Register(rr, post(`{"name":"A","surname":"B","email":"a@b.com","password":"password123"}`))

	require.Equal(t, http.StatusConflict, rr.Code)
	require.Equal(t, "already_exists", envelope(t, rr).Error.Code)
	require.Equal(t, 1, obs["register:already_exists"])
}

func TestLogin_SetsRefreshCookie(t *testing.T) {
	t.Parallel()

	user := &models.PublicUser{ID: uuid.New(), Email: "a@b.com", Role: models.RoleDoctor}
	exp := fixedNow.Add(24 * time.Hour)
	svc := &fakeService{
		loginUser: user,
		loginPair: &models.TokenPair{AccessToken: "access-1", RefreshToken: "refresh-1", RefreshExpiresAt: exp},
	}

	rr := httptest.NewRecorder()
	newHandlers(svc, nil).Login(rr, post(`{"email":"a@b.com","password":"password123"}`))

	require.Equal(t, http.StatusOK, rr.Code)

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "access-1", resp.AccessToken)
	require.Equal(t, user, resp.User)
	require.NotContains(t, rr.Body.String(), "refresh-1")

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	require.Equal(t, "jwt", c.Name)
	require.Equal(t, "refresh-1", c.Value)
	require.True(t, c.HttpOnly)
	require.True(t, c.Secure)
	require.Equal(t, http.SameSiteStrictMode, c.SameSite)
	require.Equal(t, "/api/auth/refresh", c.Path)
	require.Equal(t, 24*60*60, c.MaxAge)
	require.True(t, exp.Equal(c.Expires))
}

func TestLogin_Failures(t *testing.T) {
	t.Parallel()

	tcs := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"bad_credentials", `{"email":"a@b.com","password":"wrong"}`, service.ErrInvalidCredentials, http.StatusUnauthorized, "unauthenticated"},
		{"empty_password", `{"email":"a@b.com","password":""}`, nil, http.StatusBadRequest, "invalid_argument"},
		{"bad_email", `{"email":"nope","password":"x"}`, nil, http.StatusBadRequest, "invalid_argument"},
		{"storage_down", `{"email":"a@b.com","password":"x"}`, errors.New("dial tcp: refused"), http.StatusInternalServerError, "internal"},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			rr := httptest.NewRecorder()
			newHandlers(&fakeService{loginErr: tc.err}, nil).Login(rr, post(tc.body))

			require.Equal(t, tc.wantStatus, rr.Code)
			require.Equal(t, tc.wantCode, envelope(t, rr).Error.Code)
			require.Empty(t, rr.Result().Cookies())
		})
	}
}

func TestRefresh_RotatesCookie(t *testing.T) {
	t.Parallel()

	svc := &fakeService{refreshPair: &models.TokenPair{
		AccessToken:      "access-2",
		RefreshToken:     "refresh-2",
		RefreshExpiresAt: fixedNow.Add(time.Hour),
	}}

	req := post("")
	req.AddCookie(&http.Cookie{Name: "jwt", Value: "refresh-1"})
	rr := httptest.NewRecorder()
	newHandlers(svc, nil).Refresh(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "refresh-1", svc.refreshGot)

	var resp RefreshResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "access-2", resp.AccessToken)

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, "refresh-2", cookies[0].Value)
	require.Equal(t, 3600, cookies[0].MaxAge)
}

func TestRefresh_MissingCookie_Unauthenticated(t *testing.T) {
	t.Parallel()

	obs := outcomes{}
	svc := &fakeService{}
	rr := httptest.NewRecorder()
	newHandlers(svc, obs).Refresh(rr, post(""))

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Empty(t, svc.refreshGot)
	require.Equal(t, 1, obs["refresh:unauthenticated"])
}

func TestRefresh_Rejected_NoCookieSet(t *testing.T) {
	t.Parallel()

	req := post("")
	req.AddCookie(&http.Cookie{Name: "jwt", Value: "replayed"})
	rr := httptest.NewRecorder()
	newHandlers(&fakeService{refreshErr: service.ErrInvalidCredentials}, nil).Refresh(rr, req)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Empty(t, rr.Result().Cookies())
}

func TestMe(t *testing.T) {
	t.Parallel()

	uid := uuid.New()
	user := &models.PublicUser{ID: uid, Email: "a@b.com", Role: models.RoleSecretary}
	svc := &fakeService{meUser: user}

	validator := validatorFunc(func(context.Context, string) (uuid.UUID, error) { return uid, nil })
	h := middleware.AuthBearer(validator)(http.HandlerFunc(newHandlers(svc, nil).Me))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer access")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, uid, svc.meGot)

	var resp MeResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, user, resp.User)
}

func TestMe_WithoutAuthMiddleware_Unauthenticated(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	newHandlers(&fakeService{}, nil).Me(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestParseSameSite(t *testing.T) {
	t.Parallel()

	require.Equal(t, http.SameSiteStrictMode, ParseSameSite(""))
	require.Equal(t, http.SameSiteStrictMode, ParseSameSite("Strict"))
	require.Equal(t, http.SameSiteLaxMode, ParseSameSite("lax"))
	require.Equal(t, http.SameSiteNoneMode, ParseSameSite(" None "))
}

type validatorFunc func(context.Context, string) (uuid.UUID, error)

func (f validatorFunc) ValidateAccessToken(ctx context.Context, tok string) (uuid.UUID, error) {
	return f(ctx, tok)
}

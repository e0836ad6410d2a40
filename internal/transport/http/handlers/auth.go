package handlers

import (
	"net/http"

	apierrors "github.com/pribylovaa/clinic-auth-service/internal/errors"
	"github.com/pribylovaa/clinic-auth-service/internal/service"
	"github.com/pribylovaa/clinic-auth-service/internal/transport/http/middleware"
)

const (
	opRegister = "register"
	opLogin    = "login"
	opRefresh  = "refresh"
	opMe       = "me"
)

// Register - POST /auth/register. Создаёт пользователя, сессию не открывает.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var in RegisterRequest
	if err := decodeStrict(w, r, &in); err != nil {
		h.fail(w, r, opRegister, err)
		return
	}
	if err := in.validate(); err != nil {
		h.fail(w, r, opRegister, err)
		return
	}

	user, err := h.svc.Register(r.Context(), service.RegisterInput{
		Name:     in.Name,
		Surname:  in.Surname,
		Email:    in.Email,
		Password: in.Password,
	})
	if err != nil {
		h.fail(w, r, opRegister, err)
		return
	}

	h.ok(w, opRegister, http.StatusCreated, RegisterResponse{
		Message: "user registered successfully",
		User:    user,
	})
}

// Login - POST /auth/login. Access-токен в теле, refresh-токен в cookie.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in LoginRequest
	if err := decodeStrict(w, r, &in); err != nil {
		h.fail(w, r, opLogin, err)
		return
	}
	if err := in.validate(); err != nil {
		h.fail(w, r, opLogin, err)
		return
	}

	user, pair, err := h.svc.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		h.fail(w, r, opLogin, err)
		return
	}

	http.SetCookie(w, h.cookie.refreshCookie(pair.RefreshToken, pair.RefreshExpiresAt))
	h.ok(w, opLogin, http.StatusOK, LoginResponse{
		Message:     "logged in successfully",
		AccessToken: pair.AccessToken,
		User:        user,
	})
}

// Refresh - POST /auth/refresh. Меняет refresh-cookie на новую пару.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	token, ok := h.cookie.readRefresh(r)
	if !ok {
		h.fail(w, r, opRefresh, apierrors.ErrUnauthenticated)
		return
	}

	pair, err := h.svc.Refresh(r.Context(), token)
	if err != nil {
		h.fail(w, r, opRefresh, err)
		return
	}

	http.SetCookie(w, h.cookie.refreshCookie(pair.RefreshToken, pair.RefreshExpiresAt))
	h.ok(w, opRefresh, http.StatusOK, RefreshResponse{AccessToken: pair.AccessToken})
}

// Me - GET /auth/me. Требует middleware.AuthBearer.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	uid, ok := middleware.UserID(r.Context())
	if !ok {
		h.fail(w, r, opMe, apierrors.ErrUnauthenticated)
		return
	}

	user, err := h.svc.Me(r.Context(), uid)
	if err != nil {
		h.fail(w, r, opMe, err)
		return
	}

	h.ok(w, opMe, http.StatusOK, MeResponse{User: user})
}

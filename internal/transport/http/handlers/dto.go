package handlers

import "github.com/pribylovaa/clinic-auth-service/internal/models"

// RegisterRequest - тело POST /auth/register.
type RegisterRequest struct {
	Name     string `json:"name"`
	Surname  string `json:"surname"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterResponse - ответ на успешную регистрацию.
type RegisterResponse struct {
	Message string             `json:"message"`
	User    *models.PublicUser `json:"user"`
}

// LoginRequest - тело POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse - ответ на успешный вход. Refresh-токен уходит только в cookie.
type LoginResponse struct {
	Message     string             `json:"message"`
	AccessToken string             `json:"accessToken"`
	User        *models.PublicUser `json:"user"`
}

// RefreshResponse - ответ на успешную ротацию.
type RefreshResponse struct {
	AccessToken string `json:"accessToken"`
}

// MeResponse - профиль текущего пользователя.
type MeResponse struct {
	User *models.PublicUser `json:"user"`
}

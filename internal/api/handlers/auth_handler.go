package handlers

import (
	"errors"
	"net/http"

	"marketmaker/internal/api/middleware"
	"marketmaker/internal/service"
)

// AuthenticatorService выпускает JWT по логину/паролю
type AuthenticatorService interface {
	Login(username, password string) (string, error)
}

// AuthHandler отвечает за аутентификацию админ-консоли
//
// Функции:
// - Вход по логину/паролю с выдачей JWT (POST /api/v1/auth/login)
// - Текущий пользователь по токену (GET /api/v1/auth/me)
type AuthHandler struct {
	auth AuthenticatorService
}

// NewAuthHandler создает новый AuthHandler
func NewAuthHandler(auth AuthenticatorService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// LoginRequest - тело запроса входа
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse - ответ с токеном
type LoginResponse struct {
	Token string `json:"token"`
}

// Login проверяет учетные данные и возвращает JWT
// POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	token, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) || errors.Is(err, service.ErrUserInactive) {
			writeError(w, http.StatusUnauthorized, "invalid username or password")
			return
		}
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{Token: token})
}

// MeResponse - данные текущего пользователя
type MeResponse struct {
	UserID   int    `json:"user_id"`
	Username string `json:"username"`
}

// Me возвращает пользователя из клеймов токена
// GET /api/v1/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.UserFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, MeResponse{UserID: claims.UserID, Username: claims.Username})
}

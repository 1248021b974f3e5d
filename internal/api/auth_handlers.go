package api

import (
	"encoding/json"
	"net/http"
	"time"

	"log/slog"

	"github.com/cleancity/cleancity/internal/auth"
	"github.com/cleancity/cleancity/internal/models"
	"github.com/cleancity/cleancity/internal/reports"
)

// AuthHandler handles registration and login requests.
type AuthHandler struct {
	manager *reports.Manager
	config  auth.Config
	logger  *slog.Logger
}

// NewAuthHandler creates a new authentication handler.
func NewAuthHandler(manager *reports.Manager, config auth.Config, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		manager: manager,
		config:  config,
		logger:  logger,
	}
}

// RegisterRequest represents a registration request.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents a login request.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse represents a successful login or registration.
type LoginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      models.User `json:"user"`
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}

	user, err := h.manager.RegisterUser(r.Context(), reports.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	h.respondWithToken(w, user, http.StatusCreated)
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}

	user, err := h.manager.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Warn("failed login attempt", "ip", r.RemoteAddr)
		writeDomainError(w, h.logger, err)
		return
	}

	h.logger.Info("successful login", "user_id", user.ID)
	h.respondWithToken(w, user, http.StatusOK)
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, http.StatusUnauthorized, "UNAUTHORIZED", "missing authentication")
		return
	}

	user, err := h.manager.GetUser(r.Context(), userID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, user)
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, user *models.User, status int) {
	token, err := auth.GenerateToken(user.ID, auth.Role(user.Role), h.config.JWTSecret, h.config.TokenDuration)
	if err != nil {
		h.logger.Error("failed to generate token", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "INTERNAL", "internal server error")
		return
	}

	writeJSON(w, h.logger, status, LoginResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(h.config.TokenDuration),
		User:      *user,
	})
}

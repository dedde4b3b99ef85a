package handlers

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/harishm17/study-buddy-sub001/internal/middleware"
	"github.com/harishm17/study-buddy-sub001/internal/models"
	"github.com/harishm17/study-buddy-sub001/internal/repositories"
	"github.com/harishm17/study-buddy-sub001/internal/utils"
)

// AuthHandler manages authentication endpoints.
type AuthHandler struct {
	users    *repositories.UserRepository
	secret   string
	tokenTTL time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

func NewAuthHandler(users *repositories.UserRepository, secret string, tokenTTL time.Duration, logger *zap.Logger) *AuthHandler {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &AuthHandler{users: users, secret: secret, tokenTTL: tokenTTL, logger: logger, now: time.Now}
}

type authResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// Register handles POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	req := middleware.GetValidatedRequest[*models.RegisterRequest](r)

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	user := &models.User{Email: req.Email, Name: req.Name, PasswordHash: string(hash)}
	if err := h.users.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			utils.JSONError(w, http.StatusConflict, "email_taken", "An account with this email already exists")
			return
		}
		writeError(w, h.logger, err)
		return
	}
	h.logger.Info("user registered", zap.String("user_id", user.ID))
	utils.JSON(w, http.StatusCreated, user)
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	req := middleware.GetValidatedRequest[*models.LoginRequest](r)

	user, err := h.users.GetUserByEmail(r.Context(), req.Email)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		writeError(w, h.logger, err)
		return
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		utils.JSONError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
		return
	}

	token, expires, err := utils.IssueToken(user.ID, h.secret, h.tokenTTL, h.now())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, authResponse{Token: token, ExpiresAt: expires, User: user})
}

// Me handles GET /api/v1/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetUserByID(r.Context(), middleware.UserID(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, user)
}

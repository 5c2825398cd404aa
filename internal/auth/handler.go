package auth

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mediavault/backend/internal/models"
	"github.com/mediavault/backend/pkg/response"
	"github.com/mediavault/backend/pkg/utils"
)

// SignupRequest is the body for POST /auth/signup.
type SignupRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse is the auth response with the session token.
type TokenResponse struct {
	AccessToken string             `json:"access_token"`
	TokenType   string             `json:"token_type"`
	Admin       models.AdminPublic `json:"admin"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	store  Store
	jwt    *JWTService
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(store Store, jwt *JWTService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, jwt: jwt, logger: logger}
}

// Signup handles POST /auth/signup.
func (h *Handler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Unprocessable(c, "invalid request: "+err.Error())
		return
	}
	email := normalizeEmail(req.Email)

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}

	admin, err := h.store.Create(c.Request.Context(), email, hash)
	if errors.Is(err, ErrEmailTaken) {
		response.BadRequest(c, "email already registered")
		return
	}
	if err != nil {
		h.logger.Error("create admin failed", zap.Error(err))
		response.Internal(c, "failed to create account")
		return
	}

	h.respondWithToken(c, admin, true)
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Unprocessable(c, "invalid request: "+err.Error())
		return
	}

	admin, err := h.store.GetByEmail(c.Request.Context(), normalizeEmail(req.Email))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			h.logger.Error("lookup admin failed", zap.Error(err))
			response.Internal(c, "failed to verify credentials")
			return
		}
		response.Unauthorized(c, "invalid credentials")
		return
	}
	if !utils.CheckPassword(req.Password, admin.PasswordHash) {
		response.Unauthorized(c, "invalid credentials")
		return
	}

	h.respondWithToken(c, admin, false)
}

func (h *Handler) respondWithToken(c *gin.Context, admin *models.Admin, created bool) {
	token, err := h.jwt.Generate(admin.ID, admin.Email)
	if err != nil {
		h.logger.Error("generate token failed", zap.Error(err))
		response.Internal(c, "failed to generate token")
		return
	}
	body := TokenResponse{AccessToken: token, TokenType: "bearer", Admin: admin.ToPublic()}
	if created {
		response.Created(c, body)
		return
	}
	response.OK(c, body)
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

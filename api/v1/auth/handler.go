package auth

import (
	"time"

	"github.com/gin-gonic/gin"

	"go_ticketbot/internal/auth"
	"go_ticketbot/internal/config"
	"go_ticketbot/internal/httpx"
)

// LoginRequest represents login request body
type LoginRequest struct {
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents login response data
type LoginResponse struct {
	Token    string `json:"token"`
	ExpireAt string `json:"expireAt"`
}

// Handler holds auth endpoint dependencies
type Handler struct {
	cfg      *config.Config
	sessions *auth.SessionStore
}

// NewHandler creates an auth handler
func NewHandler(cfg *config.Config, sessions *auth.SessionStore) *Handler {
	return &Handler{cfg: cfg, sessions: sessions}
}

// Login checks the shared app password and issues a JWT bound to a
// revocable Redis session.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request body"))
		return
	}

	if !auth.VerifyAppPassword(h.cfg.Auth.AppPassword, req.Password) {
		httpx.FailErr(c, httpx.ErrUnauthorized("invalid password"))
		return
	}

	ttl := time.Duration(h.cfg.Auth.SessionTTLDays) * 24 * time.Hour
	sessionID, err := h.sessions.Create(c.Request.Context(), ttl)
	if err != nil {
		httpx.FailErr(c, httpx.ErrInternalError("failed to create session", err))
		return
	}

	expireAt := time.Now().Add(ttl)
	token, err := auth.GenerateToken(sessionID, expireAt, h.cfg.JWT.Issuer)
	if err != nil {
		httpx.FailErr(c, httpx.ErrInternalError("failed to generate token", err))
		return
	}

	httpx.OK(c, LoginResponse{
		Token:    token,
		ExpireAt: expireAt.Format(time.RFC3339),
	})
}

// Logout revokes the current session
func (h *Handler) Logout(c *gin.Context) {
	sessionID := c.GetString("session_id")
	if sessionID == "" {
		httpx.FailErr(c, httpx.ErrUnauthorized(""))
		return
	}
	if err := h.sessions.Revoke(c.Request.Context(), sessionID); err != nil {
		httpx.FailErr(c, httpx.ErrInternalError("failed to revoke session", err))
		return
	}
	httpx.OKMsg(c, "logged out", nil)
}

// Verify confirms the token is still valid. The middleware has already
// done the work by the time this runs.
func (h *Handler) Verify(c *gin.Context) {
	httpx.OK(c, gin.H{"valid": true})
}

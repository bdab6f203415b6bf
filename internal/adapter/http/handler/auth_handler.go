package handler

import (
	"strings"

	"relief-offline-ledger/internal/adapter/http/dto"
	"relief-offline-ledger/internal/adapter/http/middleware"
	"relief-offline-ledger/internal/core/ports"
	"relief-offline-ledger/pkg/apperror"
	"relief-offline-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// AuthHandler issues the bearer tokens that guard the admin ledger routes.
type AuthHandler struct {
	authSvc ports.AuthService
}

func NewAuthHandler(authSvc ports.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// AdminToken handles POST /api/v1/auth/admin-token.
//
// The password is passed through byte for byte; only the username is trimmed.
// On success the username becomes the audit actor for the login entry.
func (h *AuthHandler) AdminToken(c *gin.Context) {
	var req dto.AdminTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	username := strings.TrimSpace(req.Username)

	token, expiry, err := h.authSvc.AdminLogin(c.Request.Context(), username, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxSubject, username)
	c.Set(middleware.CtxAuditResource, username)
	response.OK(c, dto.TokenResponse{
		Token:  token,
		Expiry: expiry.Unix(),
	})
}

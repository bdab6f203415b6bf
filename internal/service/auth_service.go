package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"relief-offline-ledger/config"
	"relief-offline-ledger/internal/core/ports"
	"relief-offline-ledger/pkg/apperror"
)

// AuthServiceImpl implements ports.AuthService for the single configured admin.
type AuthServiceImpl struct {
	username     string
	passwordHash string
	hashSvc      ports.HashService
	tokenSvc     ports.TokenService
}

// NewAuthService creates a new AuthServiceImpl. An empty password hash
// disables admin login.
func NewAuthService(cfg config.AdminConfig, hashSvc ports.HashService, tokenSvc ports.TokenService) *AuthServiceImpl {
	return &AuthServiceImpl{
		username:     cfg.Username,
		passwordHash: cfg.PasswordHash,
		hashSvc:      hashSvc,
		tokenSvc:     tokenSvc,
	}
}

// AdminLogin validates admin credentials and returns a JWT.
func (s *AuthServiceImpl) AdminLogin(ctx context.Context, username, password string) (string, time.Time, error) {
	if s.passwordHash == "" {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}
	if subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) != 1 {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	valid, err := s.hashSvc.Verify(password, s.passwordHash)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("verify password: %w", err))
	}
	if !valid {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	token, expiry, err := s.tokenSvc.Generate(s.username, ports.RoleAdmin)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}
	return token, expiry, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/makkenzo/license-backoffice/internal/config"
	"github.com/makkenzo/license-backoffice/internal/domain/user"
	"github.com/makkenzo/license-backoffice/internal/ierr"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Claims are carried by admin access tokens. Subject is the user id.
type Claims struct {
	Username  string    `json:"username"`
	Role      user.Role `json:"role"`
	CompanyID string    `json:"company_id,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

type AuthService struct {
	users  user.Repository
	config *config.JWTConfig
	logger *zap.Logger
	now    func() time.Time
}

func NewAuthService(users user.Repository, cfg *config.JWTConfig, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:  users,
		config: cfg,
		logger: logger.Named("AuthService"),
		now:    time.Now,
	}
}

func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	u, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ierr.ErrUserNotFound) {
			s.logger.Info("Login attempt for unknown user", zap.String("username", username))
			return "", ierr.ErrInvalidCredentials
		}
		return "", fmt.Errorf("failed to load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.logger.Info("Password mismatch", zap.String("username", username))
		return "", ierr.ErrInvalidCredentials
	}

	now := s.now().UTC()
	claims := &Claims{
		Username: u.Username,
		Role:     u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			Issuer:    s.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TTL)),
			ID:        uuid.NewString(),
		},
	}
	if u.CompanyID.Valid {
		claims.CompanyID = u.CompanyID.UUID.String()
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", fmt.Errorf("%w: failed signing token: %v", ierr.ErrInternalServer, err)
	}

	s.logger.Info("Issued access token", zap.String("user_id", u.ID.String()), zap.String("role", string(u.Role)))
	return token, nil
}

func (s *AuthService) ValidateToken(ctx context.Context, rawToken string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(
		rawToken,
		&claims,
		func(t *jwt.Token) (any, error) { return []byte(s.config.Secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.config.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		s.logger.Debug("Access token rejected", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ierr.ErrInvalidToken, err)
	}

	if _, err := claims.UserID(); err != nil {
		return nil, fmt.Errorf("%w: subject is not a user id", ierr.ErrTokenInvalidClaims)
	}
	return &claims, nil
}

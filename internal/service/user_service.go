package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/makkenzo/license-backoffice/internal/domain/user"
	"github.com/makkenzo/license-backoffice/internal/ierr"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type UserService struct {
	repo   user.Repository
	logger *zap.Logger
}

func NewUserService(repo user.Repository, logger *zap.Logger) *UserService {
	return &UserService{
		repo:   repo,
		logger: logger.Named("UserService"),
	}
}

type CreateUserInput struct {
	Username  string
	Email     string
	Password  string
	Role      user.Role
	CompanyID *uuid.UUID
}

func (s *UserService) Create(ctx context.Context, in CreateUserInput) (*user.User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ierr.ErrValidation)
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return nil, fmt.Errorf("%w: invalid email address", ierr.ErrValidation)
	}
	if len(in.Password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", ierr.ErrValidation)
	}
	switch in.Role {
	case user.RoleAdmin, user.RoleStaff, user.RoleCustomer:
	default:
		return nil, fmt.Errorf("%w: unknown role %q", ierr.ErrValidation, in.Role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("%w: failed hashing password: %v", ierr.ErrInternalServer, err)
	}

	u := &user.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         in.Role,
	}
	if in.CompanyID != nil {
		u.CompanyID = uuid.NullUUID{UUID: *in.CompanyID, Valid: true}
	}

	if err := s.repo.Create(ctx, u); err != nil {
		s.logger.Warn("Failed to create user", zap.String("username", username), zap.Error(err))
		return nil, err
	}
	s.logger.Info("User created", zap.String("user_id", u.ID.String()), zap.String("role", string(u.Role)))
	return u, nil
}

func (s *UserService) Get(ctx context.Context, id uuid.UUID) (*user.User, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *UserService) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]*user.User, error) {
	return s.repo.ListByCompany(ctx, companyID)
}

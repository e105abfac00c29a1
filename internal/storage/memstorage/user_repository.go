package memstorage

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/makkenzo/license-backoffice/internal/domain/user"
	"github.com/makkenzo/license-backoffice/internal/ierr"
	"golang.org/x/crypto/bcrypt"
)

type UserRepository struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*user.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		users: make(map[uuid.UUID]*user.User),
	}
}

var _ user.Repository = (*UserRepository)(nil)

// SeedAdmin creates an admin account for development runs against the memory driver.
func (r *UserRepository) SeedAdmin(username, password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return r.Create(context.Background(), &user.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        username + "@localhost",
		PasswordHash: string(hashedPassword),
		Role:         user.RoleAdmin,
	})
}

func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if strings.EqualFold(existing.Username, u.Username) {
			return ierr.ErrConflict
		}
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now()
	}
	userCopy := *u
	r.users[u.ID] = &userCopy
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, ierr.ErrUserNotFound
	}
	userCopy := *u
	return &userCopy, nil
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if strings.EqualFold(u.Username, username) {
			userCopy := *u
			return &userCopy, nil
		}
	}
	return nil, ierr.ErrUserNotFound
}

func (r *UserRepository) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*user.User, 0)
	for _, u := range r.users {
		if u.CompanyID.Valid && u.CompanyID.UUID == companyID {
			userCopy := *u
			out = append(out, &userCopy)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Username < out[j].Username
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

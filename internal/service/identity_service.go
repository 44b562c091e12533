package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"wayfare/internal/database"
	"wayfare/internal/domain"
	"wayfare/internal/models"
)

// ErrInvalidCredentials is returned for both unknown emails and wrong
// passwords so login probes cannot tell the two apart.
var ErrInvalidCredentials = errors.New("invalid email or password")

type IdentityService struct {
	store domain.Store
	log   zerolog.Logger
}

func NewIdentityService(store domain.Store, log zerolog.Logger) *IdentityService {
	return &IdentityService{store: store, log: log.With().Str("component", "identity_service").Logger()}
}

func (s *IdentityService) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	switch {
	case name == "":
		return nil, ValidationError{Field: "name", Msg: "required"}
	case email == "" || !strings.Contains(email, "@"):
		return nil, ValidationError{Field: "email", Msg: "must be a valid address"}
	case len(password) < 8:
		return nil, ValidationError{Field: "password", Msg: "must be at least 8 characters"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         models.RoleCustomer,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, database.ErrEmailTaken) {
			return nil, ValidationError{Field: "email", Msg: "already registered"}
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.Info().Str("email", user.Email).Msg("user registered")
	return user, nil
}

func (s *IdentityService) Login(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Wildnerds/korrectNG-sub003/internal/auth"
	"github.com/Wildnerds/korrectNG-sub003/internal/config"
	"github.com/Wildnerds/korrectNG-sub003/internal/domain"
	"github.com/Wildnerds/korrectNG-sub003/internal/repository"
	apperrors "github.com/Wildnerds/korrectNG-sub003/pkg/util"
)

// AuthService handles account registration and login for customers and
// artisans.
type AuthService struct {
	cfg       config.Config
	customers repository.CustomerRepository
	artisans  repository.ArtisanRepository
	tokens    *auth.TokenManager
}

// AuthDependencies bundles repositories for the auth service.
type AuthDependencies struct {
	CustomerRepo repository.CustomerRepository
	ArtisanRepo  repository.ArtisanRepository
}

// NewAuthService constructs the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	return &AuthService{
		cfg:       cfg,
		customers: deps.CustomerRepo,
		artisans:  deps.ArtisanRepo,
		tokens:    auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
	}
}

// TokenManager exposes the shared token manager for middleware wiring.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokens
}

// RegisterInput describes an account registration payload.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Trade    string
}

// LoginResult carries the issued token.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	SubjectID string
}

// RegisterCustomer creates a customer account.
func (s *AuthService) RegisterCustomer(ctx context.Context, input RegisterInput) (*domain.Customer, error) {
	if err := validateRegistration(input.Name, input.Email, input.Password); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(input.Password, s.cfg.Auth.BcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	customer := &domain.Customer{
		Name:         strings.TrimSpace(input.Name),
		Email:        normalizeEmail(input.Email),
		PasswordHash: hash,
		Status:       domain.AccountStatusActive,
	}
	if err := s.customers.Create(ctx, customer); err != nil {
		return nil, translateUniqueEmail(err)
	}
	return customer, nil
}

// RegisterArtisan creates an artisan account.
func (s *AuthService) RegisterArtisan(ctx context.Context, input RegisterInput) (*domain.Artisan, error) {
	if err := validateRegistration(input.Name, input.Email, input.Password); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(input.Password, s.cfg.Auth.BcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	artisan := &domain.Artisan{
		Name:         strings.TrimSpace(input.Name),
		Email:        normalizeEmail(input.Email),
		Trade:        strings.TrimSpace(input.Trade),
		PasswordHash: hash,
		Status:       domain.AccountStatusActive,
	}
	if err := s.artisans.Create(ctx, artisan); err != nil {
		return nil, translateUniqueEmail(err)
	}
	return artisan, nil
}

// LoginCustomer verifies credentials and issues a token.
func (s *AuthService) LoginCustomer(ctx context.Context, email, password string) (*LoginResult, error) {
	customer, err := s.customers.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, err
	}
	if err := auth.ComparePassword(customer.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	if customer.Status != domain.AccountStatusActive {
		return nil, apperrors.NewForbidden("account suspended")
	}
	token, expiresAt, err := s.tokens.GenerateToken(customer.ID, domain.SubjectTypeCustomer)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &LoginResult{Token: token, ExpiresAt: expiresAt, SubjectID: customer.ID}, nil
}

// LoginArtisan verifies credentials and issues a token.
func (s *AuthService) LoginArtisan(ctx context.Context, email, password string) (*LoginResult, error) {
	artisan, err := s.artisans.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, err
	}
	if err := auth.ComparePassword(artisan.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	if artisan.Status != domain.AccountStatusActive {
		return nil, apperrors.NewForbidden("account suspended")
	}
	token, expiresAt, err := s.tokens.GenerateToken(artisan.ID, domain.SubjectTypeArtisan)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &LoginResult{Token: token, ExpiresAt: expiresAt, SubjectID: artisan.ID}, nil
}

func validateRegistration(name, email, password string) error {
	if strings.TrimSpace(name) == "" {
		return apperrors.NewValidationError("name required", nil)
	}
	if !strings.Contains(email, "@") {
		return apperrors.NewValidationError("valid email required", nil)
	}
	if len(password) < 8 {
		return apperrors.NewValidationError("password must be at least 8 characters", nil)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func translateUniqueEmail(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return apperrors.NewConflict("email already registered", nil)
	}
	return err
}

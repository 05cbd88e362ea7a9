package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/Wildnerds/korrectNG-sub003/internal/domain"
	"github.com/Wildnerds/korrectNG-sub003/internal/repository"
	apperrors "github.com/Wildnerds/korrectNG-sub003/pkg/util"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	SubjectType domain.SubjectType
	Customer    *domain.Customer
	Artisan     *domain.Artisan
	AdminID     string
}

// ID returns the subject identifier regardless of subject type.
func (p *Principal) ID() string {
	switch p.SubjectType {
	case domain.SubjectTypeCustomer:
		if p.Customer != nil {
			return p.Customer.ID
		}
	case domain.SubjectTypeArtisan:
		if p.Artisan != nil {
			return p.Artisan.ID
		}
	case domain.SubjectTypeAdmin:
		return p.AdminID
	}
	return ""
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens    *TokenManager
	customers repository.CustomerRepository
	artisans  repository.ArtisanRepository
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, customers repository.CustomerRepository, artisans repository.ArtisanRepository) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, customers: customers, artisans: artisans}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	principal := &Principal{SubjectType: claims.Subject}

	switch claims.Subject {
	case domain.SubjectTypeCustomer:
		customer, err := m.customers.GetByID(c.Context(), claims.SubjectID)
		if err != nil {
			if err == pgx.ErrNoRows {
				return apperrors.NewUnauthorized("customer not found")
			}
			return apperrors.MapError(err)
		}
		if customer.Status != domain.AccountStatusActive {
			return apperrors.NewForbidden("account suspended")
		}
		principal.Customer = customer
	case domain.SubjectTypeArtisan:
		artisan, err := m.artisans.GetByID(c.Context(), claims.SubjectID)
		if err != nil {
			if err == pgx.ErrNoRows {
				return apperrors.NewUnauthorized("artisan not found")
			}
			return apperrors.MapError(err)
		}
		if artisan.Status != domain.AccountStatusActive {
			return apperrors.NewForbidden("account suspended")
		}
		principal.Artisan = artisan
	case domain.SubjectTypeAdmin:
		// Platform staff directory lives outside this service; admin tokens
		// are trusted on the shared signing secret alone.
		principal.AdminID = claims.SubjectID
	default:
		return apperrors.NewUnauthorized("unknown subject")
	}

	c.Locals(principalKey, principal)
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}

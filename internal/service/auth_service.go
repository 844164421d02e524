// Package service holds the business rules between HTTP handlers and repositories.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"keystone/internal/auth"
	"keystone/internal/cache"
	"keystone/internal/middleware"
	"keystone/internal/models"
	"keystone/internal/observability"
	"keystone/internal/repository"
	"keystone/internal/validation"
)

const invalidCredentials = "Invalid credentials"

type AuthService struct {
	users  repository.UserRepository
	tokens *auth.TokenManager
	hasher *auth.PasswordHasher
	cache  *cache.Cache
}

type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	Phone     string
	Name      string
	AvatarURL string
	// TTL is the lifetime of the issued token; it differs per surface.
	TTL time.Duration
}

type LoginInput struct {
	Identifier string
	Password   string
	TTL        time.Duration
}

// AuthResult is returned by register and login.
type AuthResult struct {
	Token string            `json:"token"`
	User  models.PublicUser `json:"user"`
}

func NewAuthService(users repository.UserRepository, tokens *auth.TokenManager, hasher *auth.PasswordHasher, c *cache.Cache) *AuthService {
	return &AuthService{users: users, tokens: tokens, hasher: hasher, cache: c}
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if username == "" || email == "" || in.Password == "" {
		return nil, models.NewValidationError("username, email, and password are required")
	}

	exists, err := s.users.ExistsByUsernameOrEmail(ctx, username, email)
	if err != nil {
		return nil, err
	}
	if exists {
		observability.AuthEvents.WithLabelValues("register", "conflict").Inc()
		return nil, models.NewConflictError("Username or email already in use")
	}

	for _, check := range []error{
		validation.ValidateUsername(username),
		validation.ValidateEmail(email),
		validation.ValidatePassword(in.Password),
	} {
		if check != nil {
			return nil, models.NewValidationError(check.Error())
		}
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Username:  username,
		Email:     email,
		Password:  hash,
		Phone:     strings.TrimSpace(in.Phone),
		Name:      strings.TrimSpace(in.Name),
		AvatarURL: strings.TrimSpace(in.AvatarURL),
	}
	if err := s.users.Create(ctx, user); err != nil {
		observability.AuthEvents.WithLabelValues("register", "error").Inc()
		return nil, err
	}

	result, err := s.issue(user, in.TTL)
	if err != nil {
		return nil, err
	}
	observability.AuthEvents.WithLabelValues("register", "success").Inc()
	middleware.Logger.InfoContext(ctx, "user registered", slog.Uint64("registered_user_id", uint64(user.ID)))
	return result, nil
}

// Login accepts a username or an email as identifier. An unknown identifier and a wrong
// password produce the same error.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	identifier := strings.TrimSpace(in.Identifier)
	if identifier == "" || in.Password == "" {
		return nil, models.NewValidationError("identifier and password are required")
	}

	user, err := s.users.GetByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if user == nil || s.hasher.Compare(user.Password, in.Password) != nil {
		observability.AuthEvents.WithLabelValues("login", "failure").Inc()
		return nil, models.NewUnauthorizedError(invalidCredentials)
	}

	result, err := s.issue(user, in.TTL)
	if err != nil {
		return nil, err
	}
	observability.AuthEvents.WithLabelValues("login", "success").Inc()
	return result, nil
}

// Authenticate verifies a bearer token and rejects revoked ones.
func (s *AuthService) Authenticate(ctx context.Context, raw string) (*auth.Claims, error) {
	claims, err := s.tokens.Verify(raw)
	if err != nil {
		return nil, models.NewUnauthorizedError("Invalid token")
	}
	if s.cache.IsTokenRevoked(ctx, claims.ID) {
		return nil, models.NewUnauthorizedError("Token revoked")
	}
	return claims, nil
}

// Logout revokes the token until it would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, claims *auth.Claims) error {
	if claims == nil {
		return models.NewUnauthorizedError("Invalid token")
	}
	var ttl time.Duration
	if claims.ExpiresAt != nil {
		ttl = claims.ExpiresAt.Sub(s.tokens.Now())
	}
	if err := s.cache.RevokeToken(ctx, claims.ID, ttl); err != nil {
		observability.AuthEvents.WithLabelValues("logout", "error").Inc()
		return models.NewInternalError(err)
	}
	observability.AuthEvents.WithLabelValues("logout", "success").Inc()
	return nil
}

func (s *AuthService) issue(user *models.User, ttl time.Duration) (*AuthResult, error) {
	if ttl <= 0 {
		return nil, models.NewInternalError(errors.New("token ttl not configured"))
	}
	token, err := s.tokens.Issue(user.ID, user.Username, ttl)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &AuthResult{Token: token.Value, User: user.Public()}, nil
}

// ResetPassword replaces the password of the account matching identifier. Tokens issued
// before the reset stay valid until they expire or are logged out.
func (s *AuthService) ResetPassword(ctx context.Context, identifier, password string) (*models.User, error) {
	user, err := s.users.GetByIdentifier(ctx, strings.TrimSpace(identifier))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewNotFoundError("User")
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return nil, err
	}
	observability.AuthEvents.WithLabelValues("password_reset", "success").Inc()
	return user, nil
}

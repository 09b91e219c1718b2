// Package services contains server-side business logic. AuthService
// orchestrates the password hasher, the user store and the token codec into
// the register, login, refresh and verify use cases.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/dmitrijs2005/notematic/internal/common"
	"github.com/dmitrijs2005/notematic/internal/logging"
	"github.com/dmitrijs2005/notematic/internal/server/auth"
	"github.com/dmitrijs2005/notematic/internal/server/models"
	"github.com/dmitrijs2005/notematic/internal/server/repositories/users"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/dmitrijs2005/notematic/internal/server/services"

// AuthResult is returned by every successful authentication use case.
type AuthResult struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type registerInput struct {
	Username string `validate:"required,min=3,max=64,nowhitespace"`
	Email    string `validate:"required,email,max=254"`
	Password string `validate:"required,bcryptlen"`
}

// AuthService is stateless; all dependencies are immutable after
// construction, so a single instance serves concurrent requests.
type AuthService struct {
	users     users.Repository
	hasher    *auth.PasswordHasher
	codec     *auth.TokenCodec
	logger    logging.Logger
	validate  *validator.Validate
	tracer    trace.Tracer
	now       func() time.Time
	dummyHash string
}

// Option customises an AuthService.
type Option func(*AuthService)

// WithNow replaces the clock used for timestamps and token issuance.
func WithNow(now func() time.Time) Option {
	return func(s *AuthService) { s.now = now }
}

// WithTracer replaces the OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(s *AuthService) { s.tracer = t }
}

// NewAuthService wires the service. It precomputes a throwaway digest used to
// equalise the cost of logins for unknown usernames.
func NewAuthService(repo users.Repository, hasher *auth.PasswordHasher, codec *auth.TokenCodec, logger logging.Logger, opts ...Option) (*AuthService, error) {
	s := &AuthService{
		users:    repo,
		hasher:   hasher,
		codec:    codec,
		logger:   logger,
		validate: newValidator(),
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	filler, err := common.MakeRandHexString(16)
	if err != nil {
		return nil, fmt.Errorf("dummy password: %w", err)
	}
	s.dummyHash, err = hasher.Hash(filler)
	if err != nil {
		return nil, fmt.Errorf("dummy hash: %w", err)
	}
	return s, nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("nowhitespace", func(fl validator.FieldLevel) bool {
		return !strings.ContainsFunc(fl.Field().String(), unicode.IsSpace)
	})
	_ = v.RegisterValidation("bcryptlen", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= auth.MaxPasswordBytes
	})
	return v
}

// Register creates an account and signs the user in.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (result *AuthResult, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Register", trace.WithAttributes(attribute.String("user.name", username)))
	defer func() { endSpan(span, err) }()

	in := registerInput{Username: username, Email: email, Password: password}
	if verr := s.validate.Struct(in); verr != nil {
		return nil, fmt.Errorf("%w: %s", common.ErrInvalidInput, describeValidation(verr))
	}

	_, err = s.users.FindByUsername(ctx, username)
	switch {
	case err == nil:
		return nil, common.ErrUsernameTaken
	case !errors.Is(err, common.ErrorNotFound):
		s.logger.Error(ctx, "user lookup failed", "username", username, "error", err)
		return nil, storeError(err)
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, common.ErrInvalidInput) {
			return nil, err
		}
		s.logger.Error(ctx, "password hashing failed", "error", err)
		return nil, common.ErrorInternal
	}

	now := s.now().UTC()
	draft := &models.User{
		Type:         models.UserDocType,
		Username:     username,
		Email:        email,
		PasswordHash: digest,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	user, err := s.users.Create(ctx, draft)
	if err != nil {
		if errors.Is(err, common.ErrStoreConflict) {
			s.logger.Info(ctx, "username claimed concurrently", "username", username)
			return nil, fmt.Errorf("%w: %w", common.ErrUsernameTaken, err)
		}
		s.logger.Error(ctx, "user create failed", "username", username, "error", err)
		return nil, storeError(err)
	}

	span.SetAttributes(attribute.String("user.id", user.ID))
	s.logger.Info(ctx, "user registered", "user_id", user.ID, "username", username)
	return s.generateTokens(ctx, user.ID)
}

// Login checks credentials. Unknown usernames and wrong passwords produce
// the same error and take comparable time.
func (s *AuthService) Login(ctx context.Context, username, password string) (result *AuthResult, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Login", trace.WithAttributes(attribute.String("user.name", username)))
	defer func() { endSpan(span, err) }()

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.hasher.Verify(password, s.dummyHash)
			return nil, common.ErrInvalidCredentials
		}
		s.logger.Error(ctx, "user lookup failed", "username", username, "error", err)
		return nil, storeError(err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		s.logger.Debug(ctx, "password mismatch", "user_id", user.ID)
		return nil, common.ErrInvalidCredentials
	}

	s.logger.Info(ctx, "user logged in", "user_id", user.ID)
	return s.generateTokens(ctx, user.ID)
}

// RefreshToken trades a refresh token for a fresh token pair. The presented
// token is not invalidated and stays usable until its own expiry.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (result *AuthResult, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.RefreshToken")
	defer func() { endSpan(span, err) }()

	claims, err := s.codec.ParseRefresh(refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return nil, common.ErrRefreshTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	span.SetAttributes(attribute.String("user.id", claims.UserID))
	return s.generateTokens(ctx, claims.UserID)
}

// VerifyAccessToken returns the user id carried by a valid access token.
func (s *AuthService) VerifyAccessToken(ctx context.Context, token string) (userID string, err error) {
	_, span := s.tracer.Start(ctx, "AuthService.VerifyAccessToken")
	defer func() { endSpan(span, err) }()

	claims, err := s.codec.ParseAccess(token)
	if err != nil {
		return "", common.ErrInvalidToken
	}
	return claims.UserID(), nil
}

func (s *AuthService) generateTokens(ctx context.Context, userID string) (*AuthResult, error) {
	now := s.now()

	access, err := s.codec.IssueAccess(userID, now)
	if err != nil {
		s.logger.Error(ctx, "access token signing failed", "user_id", userID, "error", err)
		return nil, common.ErrorInternal
	}
	refresh, _, err := s.codec.IssueRefresh(userID, now)
	if err != nil {
		s.logger.Error(ctx, "refresh token signing failed", "user_id", userID, "error", err)
		return nil, common.ErrorInternal
	}

	return &AuthResult{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    auth.TokenType,
		ExpiresIn:    int64(auth.AccessTokenTTL / time.Second),
	}, nil
}

// storeError keeps store sentinels and maps anything else to unavailable.
func storeError(err error) error {
	if errors.Is(err, common.ErrStoreConflict) || errors.Is(err, common.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", common.ErrStoreUnavailable, err)
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, strings.ToLower(fe.Field())+" fails "+fe.Tag())
	}
	return strings.Join(parts, "; ")
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

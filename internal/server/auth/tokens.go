// Package auth implements the credential primitives of the auth server:
// bcrypt password hashing and the codec for the two JWT families (short-lived
// access tokens and long-lived refresh tokens), each signed with its own
// HMAC secret.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/notematic/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// AccessTokenTTL is the lifetime of an access token. The expires_in value
	// reported to clients is derived from it.
	AccessTokenTTL = time.Hour
	// RefreshTokenTTL is the lifetime of a refresh token.
	RefreshTokenTTL = 30 * 24 * time.Hour
	// TokenType is the scheme clients put in front of the access token.
	TokenType = "Bearer"
)

var signingMethod = jwt.SigningMethodHS256

// AccessClaims is the payload of an access token: sub, iat, exp and jti.
type AccessClaims struct {
	jwt.RegisteredClaims
}

// UserID returns the authenticated user, carried in the subject.
func (c *AccessClaims) UserID() string {
	return c.Subject
}

// RefreshClaims is the payload of a refresh token.
type RefreshClaims struct {
	UserID    string `json:"user_id"`
	TokenID   string `json:"token_id"`
	ExpiresAt int64  `json:"expires_at"`
}

// RefreshClaims implements jwt.Claims so the parser checks expires_at.

func (c RefreshClaims) GetExpirationTime() (*jwt.NumericDate, error) {
	if c.ExpiresAt == 0 {
		return nil, nil
	}
	return jwt.NewNumericDate(time.Unix(c.ExpiresAt, 0)), nil
}
func (c RefreshClaims) GetIssuedAt() (*jwt.NumericDate, error)  { return nil, nil }
func (c RefreshClaims) GetNotBefore() (*jwt.NumericDate, error) { return nil, nil }
func (c RefreshClaims) GetIssuer() (string, error)              { return "", nil }
func (c RefreshClaims) GetSubject() (string, error)             { return c.UserID, nil }
func (c RefreshClaims) GetAudience() (jwt.ClaimStrings, error)  { return nil, nil }

// TokenCodec issues and verifies access and refresh tokens. Verification is
// a pure function of the token, the secret and the codec clock.
// A TokenCodec is immutable and safe for concurrent use.
type TokenCodec struct {
	accessSecret  []byte
	refreshSecret []byte
	now           func() time.Time
}

// CodecOption customises a TokenCodec.
type CodecOption func(*TokenCodec)

// WithClock replaces the clock used to check expiry.
func WithClock(now func() time.Time) CodecOption {
	return func(c *TokenCodec) { c.now = now }
}

// NewTokenCodec builds a codec. Both secrets are required and must differ, so
// a leak of one does not compromise the other token family.
func NewTokenCodec(accessSecret, refreshSecret string, opts ...CodecOption) (*TokenCodec, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, errors.New("token secrets must not be empty")
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}
	c := &TokenCodec{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// IssueAccess signs an access token for userID valid from now for AccessTokenTTL.
func (c *TokenCodec) IssueAccess(userID string, now time.Time) (string, error) {
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(AccessTokenTTL)),
			ID:        uuid.NewString(),
		},
	}
	token, err := jwt.NewWithClaims(signingMethod, claims).SignedString(c.accessSecret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return token, nil
}

// IssueRefresh signs a refresh token for userID valid from now for
// RefreshTokenTTL and returns it with its fresh token id.
func (c *TokenCodec) IssueRefresh(userID string, now time.Time) (token string, tokenID string, err error) {
	claims := RefreshClaims{
		UserID:    userID,
		TokenID:   uuid.NewString(),
		ExpiresAt: now.Add(RefreshTokenTTL).Unix(),
	}
	token, err = jwt.NewWithClaims(signingMethod, claims).SignedString(c.refreshSecret)
	if err != nil {
		return "", "", fmt.Errorf("sign refresh token: %w", err)
	}
	return token, claims.TokenID, nil
}

// ParseAccess verifies an access token. Every failure, whether a forged
// signature, a malformed token or an expired one, is reported as
// common.ErrInvalidToken.
func (c *TokenCodec) ParseAccess(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if _, err := c.parse(tokenString, claims, c.accessSecret); err != nil {
		return nil, common.ErrInvalidToken
	}
	if claims.Subject == "" || claims.ExpiresAt == nil || !c.now().Before(claims.ExpiresAt.Time) {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}

// ParseRefresh verifies a refresh token. A token with a valid signature whose
// expiry has passed yields common.ErrTokenExpired; anything else that fails
// yields common.ErrInvalidToken.
func (c *TokenCodec) ParseRefresh(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if _, err := c.parse(tokenString, claims, c.refreshSecret); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}
	if claims.UserID == "" || claims.TokenID == "" {
		return nil, common.ErrInvalidToken
	}
	if !c.now().Before(time.Unix(claims.ExpiresAt, 0)) {
		return nil, common.ErrTokenExpired
	}
	return claims, nil
}

func (c *TokenCodec) parse(tokenString string, claims jwt.Claims, secret []byte) (*jwt.Token, error) {
	return jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
}

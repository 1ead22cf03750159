package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tendant/blog-auth/pkg/domain"
)

// Default token lifetimes
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// TokenKind tags a token with the trust domain it belongs to.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// Claims is the claim set carried by both access and refresh tokens.
type Claims struct {
	jwt.RegisteredClaims
	IsAdmin bool      `json:"isAdmin"`
	Kind    TokenKind `json:"kind"`
}

// UserID parses the subject claim.
func (c *Claims) UserID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, domain.ErrTokenInvalid
	}
	return id, nil
}

// TokenConfig holds signing configuration. Access and refresh tokens are
// signed with independent secrets.
type TokenConfig struct {
	AccessSecret    []byte
	RefreshSecret   []byte
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	Issuer          string
	Clock           func() time.Time
}

// TokenService issues and verifies signed, stateless session tokens.
type TokenService struct {
	config TokenConfig
}

// NewTokenService creates a new token service.
func NewTokenService(config TokenConfig) *TokenService {
	if config.AccessTokenTTL == 0 {
		config.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if config.RefreshTokenTTL == 0 {
		config.RefreshTokenTTL = DefaultRefreshTokenTTL
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	return &TokenService{config: config}
}

// AccessTokenTTL returns the access token TTL.
func (s *TokenService) AccessTokenTTL() time.Duration {
	return s.config.AccessTokenTTL
}

// RefreshTokenTTL returns the refresh token TTL.
func (s *TokenService) RefreshTokenTTL() time.Duration {
	return s.config.RefreshTokenTTL
}

// IssueAccessToken signs a short-lived access token.
func (s *TokenService) IssueAccessToken(userID uuid.UUID, isAdmin bool) (string, time.Time, error) {
	return s.issue(userID, isAdmin, TokenKindAccess)
}

// IssueRefreshToken signs a long-lived refresh token.
func (s *TokenService) IssueRefreshToken(userID uuid.UUID, isAdmin bool) (string, time.Time, error) {
	return s.issue(userID, isAdmin, TokenKindRefresh)
}

// IssuePair signs an access and a refresh token for the same subject.
func (s *TokenService) IssuePair(userID uuid.UUID, isAdmin bool) (*domain.TokenPair, error) {
	access, accessExp, err := s.IssueAccessToken(userID, isAdmin)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := s.IssueRefreshToken(userID, isAdmin)
	if err != nil {
		return nil, err
	}
	return &domain.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Verify checks signature, expiry and kind of a token.
// It returns domain.ErrTokenExpired for a well-formed token past its expiry and
// domain.ErrTokenInvalid for anything else.
func (s *TokenService) Verify(tokenString string, kind TokenKind) (*Claims, error) {
	if tokenString == "" {
		return nil, domain.ErrTokenInvalid
	}
	secret, err := s.secret(kind)
	if err != nil {
		return nil, err
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.config.Clock),
		jwt.WithExpirationRequired(),
	}
	if s.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, domain.ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Kind != kind {
		return nil, domain.ErrTokenInvalid
	}
	if _, err := claims.UserID(); err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *TokenService) issue(userID uuid.UUID, isAdmin bool, kind TokenKind) (string, time.Time, error) {
	secret, err := s.secret(kind)
	if err != nil {
		return "", time.Time{}, err
	}

	ttl := s.config.AccessTokenTTL
	if kind == TokenKindRefresh {
		ttl = s.config.RefreshTokenTTL
	}
	now := s.config.Clock()
	expiresAt := now.Add(ttl)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    s.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		IsAdmin: isAdmin,
		Kind:    kind,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (s *TokenService) secret(kind TokenKind) ([]byte, error) {
	var secret []byte
	switch kind {
	case TokenKindAccess:
		secret = s.config.AccessSecret
	case TokenKindRefresh:
		secret = s.config.RefreshSecret
	}
	if len(secret) == 0 {
		return nil, domain.ErrTokenInvalid
	}
	return secret, nil
}

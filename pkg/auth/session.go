package auth

import (
	"context"
	"errors"
	"time"

	"github.com/tendant/blog-auth/pkg/domain"
)

// Refresh verifies a refresh token and mints a new access token for the same
// subject. The refresh token itself is not rotated.
func (s *Service) Refresh(ctx context.Context, refreshToken string, meta RequestMeta) (string, time.Time, error) {
	claims, err := s.tokens.Verify(refreshToken, TokenKindRefresh)
	if err != nil {
		s.record(ctx, domain.AuditRefreshToken, nil, false, meta, reason(refreshFailure(err)))
		return "", time.Time{}, err
	}
	userID, err := claims.UserID()
	if err != nil {
		return "", time.Time{}, err
	}

	token, expiresAt, err := s.tokens.IssueAccessToken(userID, claims.IsAdmin)
	if err != nil {
		return "", time.Time{}, err
	}

	s.record(ctx, domain.AuditRefreshToken, uuidPtr(userID), true, meta, nil)
	return token, expiresAt, nil
}

// Signout records a sign-out. Tokens are stateless, so there is nothing to
// revoke; the caller clears the cookies. An invalid access token is ignored.
func (s *Service) Signout(ctx context.Context, accessToken string, meta RequestMeta) {
	if accessToken == "" {
		return
	}
	claims, err := s.tokens.Verify(accessToken, TokenKindAccess)
	if err != nil {
		return
	}
	userID, err := claims.UserID()
	if err != nil {
		return
	}
	s.record(ctx, domain.AuditSignout, uuidPtr(userID), true, meta, nil)
}

func refreshFailure(err error) string {
	if errors.Is(err, domain.ErrTokenExpired) {
		return "expired"
	}
	return "invalid"
}

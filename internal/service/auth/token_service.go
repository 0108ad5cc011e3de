// Package auth issues and validates the HS256 bearer tokens that operators
// present to the admin API.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/taskcore/internal/platform/logger"
)

// MinSecretLength is the shortest accepted signing secret.
const MinSecretLength = 32

const operatorTokenType = "operator"

// Claims are the validated contents of an operator token.
type Claims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	ID        string
}

// TokenValidator validates bearer tokens. The admin API middleware depends
// on this rather than on TokenService.
type TokenValidator interface {
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

type operatorClaims struct {
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// TokenService signs and validates operator tokens with a shared secret.
type TokenService struct {
	signingKey []byte
	lifetime   time.Duration
	clockSkew  time.Duration
	timeFunc   func() time.Time
}

// NewTokenService creates a service signing with secret. Tokens it issues
// expire after lifetime.
func NewTokenService(secret string, lifetime time.Duration) (*TokenService, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	if lifetime <= 0 {
		return nil, fmt.Errorf("token lifetime must be positive, got %s", lifetime)
	}
	return &TokenService{
		signingKey: []byte(secret),
		lifetime:   lifetime,
		clockSkew:  2 * time.Minute,
		timeFunc:   time.Now,
	}, nil
}

// GenerateToken signs a token for subject.
func (s *TokenService) GenerateToken(ctx context.Context, subject string) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("token subject is required")
	}
	now := s.timeFunc()

	claims := operatorClaims{
		TokenType: operatorTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.lifetime)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		logger.FromContext(ctx).Error("failed to sign operator token",
			"error", err,
			"subject", subject)
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken verifies the signature and time claims of tokenString.
func (s *TokenService) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	log := logger.FromContext(ctx)
	now := s.timeFunc()

	token, err := jwt.ParseWithClaims(
		tokenString,
		&operatorClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.signingKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithLeeway(s.clockSkew),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			log.Debug("token validation failed: expired", "error", err)
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
			log.Debug("token validation failed: not yet valid", "error", err)
			return nil, ErrTokenNotYetValid
		default:
			log.Debug("token validation failed", "error", err)
			return nil, ErrInvalidToken
		}
	}

	claims, ok := token.Claims.(*operatorClaims)
	if !ok || !token.Valid || claims.TokenType != operatorTokenType || claims.Subject == "" {
		log.Debug("token validation failed: unexpected claims")
		return nil, ErrInvalidToken
	}

	out := &Claims{Subject: claims.Subject, ID: claims.ID}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

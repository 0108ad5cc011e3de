package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-that-is-long-enough-for-testing"

func newTestService(t *testing.T, now time.Time) *TokenService {
	t.Helper()
	svc, err := NewTokenService(testSecret, time.Hour)
	require.NoError(t, err)
	svc.timeFunc = func() time.Time { return now }
	return svc
}

func TestNewTokenService(t *testing.T) {
	_, err := NewTokenService("short", time.Hour)
	assert.ErrorIs(t, err, ErrWeakSecret)

	_, err = NewTokenService(testSecret, 0)
	assert.Error(t, err)
}

func TestGenerateAndValidate(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, issued)
	ctx := context.Background()

	token, err := svc.GenerateToken(ctx, "oncall")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "oncall", claims.Subject)
	assert.Equal(t, issued.Unix(), claims.IssuedAt.Unix())
	assert.Equal(t, issued.Add(time.Hour).Unix(), claims.ExpiresAt.Unix())
	assert.NotEmpty(t, claims.ID)

	_, err = svc.GenerateToken(ctx, "")
	assert.Error(t, err)
}

func TestValidateToken_Failures(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()
	token, err := newTestService(t, issued).GenerateToken(ctx, "oncall")
	require.NoError(t, err)

	other, err := NewTokenService("another-secret-that-is-long-enough-too", time.Hour)
	require.NoError(t, err)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "oncall",
		ExpiresAt: jwt.NewNumericDate(issued.Add(time.Hour)),
	})
	untyped, err := foreign.SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name    string
		svc     *TokenService
		token   string
		wantErr error
	}{
		{"expired", newTestService(t, issued.Add(2*time.Hour)), token, ErrExpiredToken},
		{"issued in the future", newTestService(t, issued.Add(-time.Hour)), token, ErrTokenNotYetValid},
		{"wrong secret", other, token, ErrInvalidToken},
		{"garbage", newTestService(t, issued), "not.a.token", ErrInvalidToken},
		{"missing token type", newTestService(t, issued), untyped, ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.svc.ValidateToken(ctx, tt.token)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

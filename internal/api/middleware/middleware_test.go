package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/taskcore/internal/api/shared"
	"github.com/phrazzld/taskcore/internal/platform/logger"
	"github.com/phrazzld/taskcore/internal/service/auth"
	"github.com/stretchr/testify/assert"
)

type stubValidator struct {
	claims *auth.Claims
	err    error
	got    string
}

func (s *stubValidator) ValidateToken(_ context.Context, token string) (*auth.Claims, error) {
	s.got = token
	return s.claims, s.err
}

func TestAuthenticate(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		validator  *stubValidator
		wantStatus int
		wantBody   string
	}{
		{"missing header", "", &stubValidator{}, http.StatusUnauthorized, "Authorization header required"},
		{"wrong scheme", "Basic abc", &stubValidator{}, http.StatusUnauthorized, "Invalid authorization format"},
		{"empty token", "Bearer ", &stubValidator{}, http.StatusUnauthorized, "Invalid authorization format"},
		{"expired", "Bearer tok", &stubValidator{err: auth.ErrExpiredToken}, http.StatusUnauthorized, "Token expired"},
		{"invalid", "Bearer tok", &stubValidator{err: auth.ErrInvalidToken}, http.StatusUnauthorized, "Invalid token"},
		{"unexpected", "Bearer tok", &stubValidator{err: errors.New("boom")}, http.StatusInternalServerError, "Authentication error"},
		{"valid", "bearer tok", &stubValidator{claims: &auth.Claims{Subject: "oncall"}}, http.StatusOK, "oncall"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				subject, _ := shared.GetSubject(r.Context())
				_, _ = w.Write([]byte(subject))
			})
			h := NewAuthMiddleware(tt.validator).Authenticate(next)

			r := httptest.NewRequest(http.MethodGet, "/api/queue/stats", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}

func TestAuthenticateWithTokenService(t *testing.T) {
	svc, err := auth.NewTokenService("test-secret-that-is-long-enough-for-testing", time.Minute)
	assert.NoError(t, err)
	token, err := svc.GenerateToken(context.Background(), "taskctl")
	assert.NoError(t, err)

	h := NewAuthMiddleware(svc).Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestTrace(t *testing.T) {
	base, buf := logger.NewTestLogger(t)

	var traceID, requestID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID = shared.GetTraceID(r.Context())
		requestID = logger.RequestID(r.Context())
		logger.FromContext(r.Context()).Info("inside handler")
	})

	h := chimw.RequestID(Trace(base)(next))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Len(t, traceID, shared.TraceIDLength*2)
	assert.NotEmpty(t, requestID)

	entries, err := buf.GetLogEntries()
	assert.NoError(t, err)
	if assert.Len(t, entries, 2) {
		assert.Equal(t, "inside handler", entries[1]["msg"])
		assert.Equal(t, traceID, entries[1]["trace_id"])
		assert.Equal(t, requestID, entries[1]["request_id"])
	}
}

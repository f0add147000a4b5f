package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

type MiddlewareSuite struct {
	suite.Suite
	tokens *TokenService
	mw     *Middleware
}

func TestMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(MiddlewareSuite))
}

func (s *MiddlewareSuite) SetupTest() {
	tokens, err := NewTokenService(testSecret, time.Hour)
	s.Require().NoError(err)
	s.tokens = tokens
	s.mw = NewMiddleware(tokens)
}

func (s *MiddlewareSuite) serve(h http.Handler, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/cards", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func (s *MiddlewareSuite) TestAuthenticate() {
	var got Principal
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	h := s.mw.Authenticate(next)

	s.Run("missing header", func() {
		rec := s.serve(h, "")
		s.Equal(http.StatusUnauthorized, rec.Code)
		s.Contains(rec.Body.String(), "UNAUTHORIZED")
	})

	s.Run("wrong scheme", func() {
		rec := s.serve(h, "Basic abc")
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("valid token attaches principal", func() {
		userID := uuid.New()
		token, _, err := s.tokens.Issue(context.Background(), userID, "USER")
		s.Require().NoError(err)

		rec := s.serve(h, "Bearer "+token)
		s.Equal(http.StatusNoContent, rec.Code)
		s.Equal(userID, got.UserID)
		s.Equal("USER", got.Role)
	})
}

func (s *MiddlewareSuite) TestRequireRole() {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h := s.mw.Authenticate(s.mw.RequireRole(next, "ADMIN"))

	s.Run("user is forbidden", func() {
		token, _, err := s.tokens.Issue(context.Background(), uuid.New(), "USER")
		s.Require().NoError(err)

		rec := s.serve(h, "Bearer "+token)
		s.Equal(http.StatusForbidden, rec.Code)
		s.Contains(rec.Body.String(), "FORBIDDEN")
	})

	s.Run("admin passes", func() {
		token, _, err := s.tokens.Issue(context.Background(), uuid.New(), "ADMIN")
		s.Require().NoError(err)

		rec := s.serve(h, "Bearer "+token)
		s.Equal(http.StatusNoContent, rec.Code)
	})

	s.Run("no principal", func() {
		rec := s.serve(s.mw.RequireRole(next, "ADMIN"), "")
		s.Equal(http.StatusUnauthorized, rec.Code)
	})
}

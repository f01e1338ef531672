package admin

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/suite"
)

// AdminMiddlewareSuite covers the invariant "wrong secret never reaches handler".
type AdminMiddlewareSuite struct {
	suite.Suite
	logger *slog.Logger
}

func TestAdminMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(AdminMiddlewareSuite))
}

func (s *AdminMiddlewareSuite) SetupTest() {
	s.logger = slog.Default()
}

func (s *AdminMiddlewareSuite) serve(mw func(http.Handler) http.Handler, header, value string) (*httptest.ResponseRecorder, bool, string) {
	called := false
	actor := ""
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		actor = GetAdminActorID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodPost, "/admin/credits", nil)
	if value != "" {
		req.Header.Set(header, value)
	}
	req.Header.Set("X-Admin-Actor-ID", "ops@example.com")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w, called, actor
}

func (s *AdminMiddlewareSuite) TestAdminToken() {
	s.Run("correct token passes with actor", func() {
		w, called, actor := s.serve(RequireAdminToken("secret", s.logger), HeaderAdminToken, "secret")
		s.True(called)
		s.Equal("ops@example.com", actor)
		s.Equal(http.StatusOK, w.Code)
	})

	s.Run("wrong token is rejected", func() {
		w, called, _ := s.serve(RequireAdminToken("secret", s.logger), HeaderAdminToken, "nope")
		s.False(called)
		s.Equal(http.StatusUnauthorized, w.Code)
	})

	s.Run("empty configured token rejects everything", func() {
		w, called, _ := s.serve(RequireAdminToken("", s.logger), HeaderAdminToken, "")
		s.False(called)
		s.Equal(http.StatusUnauthorized, w.Code)
	})
}

func (s *AdminMiddlewareSuite) TestWebhookSecret() {
	w, called, _ := s.serve(RequireWebhookSecret("whsec", s.logger), HeaderWebhookSecret, "whsec")
	s.True(called)
	s.Equal(http.StatusOK, w.Code)

	w, called, _ = s.serve(RequireWebhookSecret("whsec", s.logger), HeaderAdminToken, "whsec")
	s.False(called, "secret in the wrong header must not authenticate")
	s.Equal(http.StatusUnauthorized, w.Code)
}

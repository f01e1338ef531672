package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "companion/pkg/domain-errors"
)

type amountRequest struct {
	Kind   string `json:"kind"`
	Amount int    `json:"amount"`
}

func (r *amountRequest) Normalize() {
	r.Kind = strings.ToLower(strings.TrimSpace(r.Kind))
}

func (r *amountRequest) Validate() error {
	if r.Kind == "" {
		return errors.New("kind is required")
	}
	if r.Amount <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "amount must be positive")
	}
	return nil
}

type plainRequest struct {
	Note string `json:"note"`
}

func decode[T any](t *testing.T, body string) (*T, *httptest.ResponseRecorder, bool) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	w := httptest.NewRecorder()
	out, ok := DecodeBody[T](w, req, logger, "req-1")
	return out, w, ok
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["error"]
}

func TestDecodeBody(t *testing.T) {
	t.Run("normalizes before validating", func(t *testing.T) {
		out, _, ok := decode[amountRequest](t, `{"kind":"  TOP_UP ","amount":5}`)
		require.True(t, ok)
		assert.Equal(t, "top_up", out.Kind)
		assert.Equal(t, 5, out.Amount)
	})

	t.Run("types without hooks decode as-is", func(t *testing.T) {
		out, _, ok := decode[plainRequest](t, `{"note":"hi"}`)
		require.True(t, ok)
		assert.Equal(t, "hi", out.Note)
	})

	t.Run("malformed json is a bad request", func(t *testing.T) {
		out, w, ok := decode[amountRequest](t, `{kind:}`)
		assert.False(t, ok)
		assert.Nil(t, out)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("empty body is a bad request", func(t *testing.T) {
		_, w, ok := decode[amountRequest](t, ``)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "empty")
	})

	t.Run("trailing objects are rejected", func(t *testing.T) {
		_, w, ok := decode[amountRequest](t, `{"kind":"top_up","amount":1}{"kind":"top_up","amount":1}`)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("oversized body is rejected", func(t *testing.T) {
		body := `{"note":"` + strings.Repeat("x", MaxBodyBytes) + `"}`
		_, w, ok := decode[plainRequest](t, body)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "too large")
	})

	t.Run("plain validation errors become validation_error", func(t *testing.T) {
		_, w, ok := decode[amountRequest](t, `{"amount":5}`)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, DomainCodeToHTTPCode(dErrors.CodeValidation), errorCode(t, w))
	})

	t.Run("domain validation errors keep their code", func(t *testing.T) {
		_, w, ok := decode[amountRequest](t, `{"kind":"top_up","amount":0}`)
		assert.False(t, ok)
		assert.Equal(t, DomainCodeToHTTPCode(dErrors.CodeInvalidInput), errorCode(t, w))
	})
}

func TestPrepareRequest(t *testing.T) {
	req := &amountRequest{Kind: " Rollover ", Amount: 1}
	require.NoError(t, PrepareRequest(req))
	assert.Equal(t, "rollover", req.Kind)

	assert.NoError(t, PrepareRequest(&plainRequest{}))
}

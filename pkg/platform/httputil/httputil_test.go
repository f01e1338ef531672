package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "companion/pkg/domain-errors"
)

func TestWriteErrorMapsCreditCodes(t *testing.T) {
	cases := []struct {
		code   dErrors.Code
		status int
		body   string
	}{
		{dErrors.CodeInsufficientCredits, http.StatusTooManyRequests, "insufficient_credits"},
		{dErrors.CodeUnavailable, http.StatusServiceUnavailable, "storage_unavailable"},
		{dErrors.CodeConflict, http.StatusConflict, "conflict"},
	}
	for _, tc := range cases {
		t.Run(string(tc.code), func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, dErrors.New(tc.code, "msg"))

			assert.Equal(t, tc.status, w.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tc.body, body["error"])
			assert.Equal(t, "msg", body["error_description"])
		})
	}
}

func TestWriteErrorHidesPlainErrors(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, errors.New("pq: connection reset"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection reset")
}

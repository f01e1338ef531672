package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, h *Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	r := chi.NewRouter()
	h.Register(r)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestReadinessReportsEachDependency(t *testing.T) {
	h := New("test")
	h.RegisterCheck("database", func(context.Context) error { return nil })

	w, body := serve(t, h, "/health/ready")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ready", body["status"])

	h.RegisterCheck("redis", func(context.Context) error { return errors.New("connection refused") })
	w, body = serve(t, h, "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "not_ready", body["status"])
	checks := body["checks"].(map[string]any)
	assert.Equal(t, "up", checks["database"].(map[string]any)["status"])
	redis := checks["redis"].(map[string]any)
	assert.Equal(t, "down", redis["status"])
	assert.Equal(t, "connection refused", redis["error"])
}

func TestReadinessRunsChecksConcurrently(t *testing.T) {
	h := New("test")
	release := make(chan struct{})
	started := make(chan struct{}, 2)
	for _, name := range []string{"database", "redis"} {
		h.RegisterCheck(name, func(ctx context.Context) error {
			started <- struct{}{}
			select {
			case <-release:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}
	go func() {
		<-started
		<-started
		close(release)
	}()

	w, body := serve(t, h, "/health/ready")
	assert.Equal(t, http.StatusOK, w.Code, body)
}

func TestReadinessCheckReceivesDeadline(t *testing.T) {
	h := New("test")
	var hadDeadline bool
	h.RegisterCheck("database", func(ctx context.Context) error {
		_, hadDeadline = ctx.Deadline()
		return nil
	})
	serve(t, h, "/health/ready")
	assert.True(t, hadDeadline)
}

func TestLivenessAndStatus(t *testing.T) {
	h := New("staging")
	w, body := serve(t, h, "/health/live")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alive", body["status"])

	_, body = serve(t, h, "/health")
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "staging", body["environment"])
}

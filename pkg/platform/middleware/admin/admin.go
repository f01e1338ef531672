// Package admin guards operator and webhook routes with static shared secrets.
package admin

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"

	"companion/pkg/requestcontext"
)

const (
	// HeaderAdminToken carries the operator token for /admin routes.
	HeaderAdminToken = "X-Admin-Token"
	// HeaderWebhookSecret carries the billing collaborator's shared secret.
	HeaderWebhookSecret = "X-Webhook-Secret"
)

type contextKeyAdminActorID struct{}

// GetAdminActorID retrieves the admin actor identifier from the context.
// Returns empty string if not set or if this is not an admin request.
func GetAdminActorID(ctx context.Context) string {
	if actorID, ok := ctx.Value(contextKeyAdminActorID{}).(string); ok {
		return actorID
	}
	return ""
}

// RequireAdminToken rejects requests whose X-Admin-Token does not match.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return requireSecret(HeaderAdminToken, expectedToken, "admin token required", logger)
}

// RequireWebhookSecret rejects webhook deliveries whose X-Webhook-Secret does not match.
func RequireWebhookSecret(expectedSecret string, logger *slog.Logger) func(http.Handler) http.Handler {
	return requireSecret(HeaderWebhookSecret, expectedSecret, "webhook secret required", logger)
}

func requireSecret(header, expected, description string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			provided := r.Header.Get(header)
			// An unset expected secret must never match an empty header.
			if expected == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
				logger.WarnContext(ctx, "shared secret mismatch",
					"header", header,
					"request_id", requestcontext.RequestID(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
				return
			}

			if actorID := r.Header.Get("X-Admin-Actor-ID"); actorID != "" {
				ctx = context.WithValue(ctx, contextKeyAdminActorID{}, actorID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Package observability provides audit logging helpers for the credits context.
package observability

import (
	"context"
	"log/slog"

	"companion/pkg/requestcontext"
)

// Audit event names.
const (
	EventCreditsGranted          = "credits_granted"
	EventCreditsDebited          = "credits_debited"
	EventCreditsExhausted        = "credits_exhausted"
	EventAllowanceRenewed        = "allowance_renewed"
	EventRenewalSkippedDuplicate = "renewal_skipped_duplicate"
	EventTopUpDuplicate          = "top_up_duplicate"
	EventProActivated            = "pro_activated"
	EventProDeactivated          = "pro_deactivated"
)

// LogAudit writes a structured audit record tagged with log_type=audit and
// the request ID when one is present. A nil logger is a no-op.
func LogAudit(ctx context.Context, logger *slog.Logger, event string, attrs ...any) {
	if logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attrs = append(attrs, "request_id", requestID)
	}
	attrs = append(attrs, "event", event, "log_type", "audit")
	logger.InfoContext(ctx, event, attrs...)
}

package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"companion/internal/credits/models"
	id "companion/pkg/domain"
	dErrors "companion/pkg/domain-errors"
	"companion/pkg/platform/httputil"
	"companion/pkg/platform/middleware/admin"
	request "companion/pkg/platform/middleware/request"
	"companion/pkg/requestcontext"
)

// QuotaService answers admission and display questions.
type QuotaService interface {
	Subscription(ctx context.Context, userID id.UserID) (*models.Subscription, error)
	Allow(ctx context.Context, userID id.UserID, tier models.Tier) (models.AllowResult, error)
	Summarize(ctx context.Context, userID id.UserID, tier models.Tier) (*models.Summary, error)
}

// LedgerService mutates and inspects credit buckets.
type LedgerService interface {
	Debit(ctx context.Context, userID id.UserID, tier models.Tier) (*models.DebitResult, error)
	Grant(ctx context.Context, userID id.UserID, kind models.CreditKind, amount int, periodEnd *time.Time) (*models.CreditBucket, error)
	Buckets(ctx context.Context, userID id.UserID) ([]models.CreditBucket, error)
}

// MessageRecorder persists accepted user messages for the daily counter.
type MessageRecorder interface {
	Record(ctx context.Context, msg *models.ChatMessage) error
}

// FulfillmentService applies billing webhooks exactly once.
type FulfillmentService interface {
	ApplyTopUp(ctx context.Context, purchaseID id.PurchaseID, userID id.UserID, amount int) (bool, error)
	RenewPeriod(ctx context.Context, userID id.UserID, periodEnd time.Time) (bool, error)
	ActivatePro(ctx context.Context, userID id.UserID, periodEnd time.Time) (bool, error)
	Deactivate(ctx context.Context, userID id.UserID) error
}

type Handler struct {
	quota       QuotaService
	ledger      LedgerService
	messages    MessageRecorder
	fulfillment FulfillmentService
	logger      *slog.Logger
}

func New(quota QuotaService, ledger LedgerService, messages MessageRecorder, fulfillment FulfillmentService, logger *slog.Logger) *Handler {
	return &Handler{
		quota:       quota,
		ledger:      ledger,
		messages:    messages,
		fulfillment: fulfillment,
		logger:      logger,
	}
}

// Register mounts the user routes. The caller wraps r with RequireAuth.
func (h *Handler) Register(r chi.Router) {
	r.Get("/me/credits", h.HandleGetCredits)
	r.Post("/me/credits/check", h.HandleCheck)
	r.Post("/me/messages", h.HandleSendMessage)
}

// RegisterWebhooks mounts billing callbacks. The caller wraps r with
// RequireWebhookSecret.
func (h *Handler) RegisterWebhooks(r chi.Router) {
	r.Post("/webhooks/billing/top-up", h.HandleTopUpWebhook)
	r.Post("/webhooks/billing/renewal", h.HandleRenewalWebhook)
	r.Post("/webhooks/billing/activate", h.HandleActivateWebhook)
	r.Post("/webhooks/billing/cancel", h.HandleCancelWebhook)
}

// RegisterAdmin mounts operator routes. The caller wraps r with
// RequireAdminToken.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/credits/{user_id}", h.HandleGetBuckets)
	r.Post("/admin/credits/{user_id}/grant", h.HandleGrant)
}

// HandleGetCredits implements GET /me/credits.
// Output: the plan-specific summary, e.g. { "plan": "free", "used_today": 3, "remaining_today": 7 }
func (h *Handler) HandleGetCredits(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(r)

	userID, err := httputil.RequireUserID(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	sub, err := h.quota.Subscription(ctx, userID)
	if err != nil {
		h.logError(ctx, "failed to resolve subscription", err, requestID)
		httputil.WriteError(w, err)
		return
	}

	summary, err := h.quota.Summarize(ctx, userID, sub.Tier)
	if err != nil {
		h.logError(ctx, "failed to summarize credits", err, requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ToSummaryResponse(summary))
}

// HandleCheck implements POST /me/credits/check.
// Output: { "allowed": true, "tier": "pro" } or { "allowed": false, "reason": "daily_limit", "tier": "free" }
// A storage failure answers 503 with allowed=false.
func (h *Handler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(r)

	userID, err := httputil.RequireUserID(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.admit(ctx, userID)
	if err != nil {
		h.logError(ctx, "admission check failed", err, requestID)
		h.writeAdmissionError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleSendMessage implements POST /me/messages, the gate in front of the
// chat pipeline. Pro messages are debited before they are recorded so a
// lost debit race never leaves an unpaid message behind.
//
// Output: 201 { "message_id": "...", "tier": "pro", "charged": true, "debited_kind": "rollover" }
// Denied: 429 { "error": "...", "reason": "monthly_limit", "tier": "pro" }
func (h *Handler) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(r)

	userID, err := httputil.RequireUserID(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.admit(ctx, userID)
	if err != nil {
		h.logError(ctx, "admission check failed", err, requestID)
		h.writeAdmissionError(w, err)
		return
	}
	if !result.Allowed {
		writeDenied(w, result.Reason, result.Tier)
		return
	}

	debit, err := h.ledger.Debit(ctx, userID, result.Tier)
	if dErrors.HasCode(err, dErrors.CodeInsufficientCredits) {
		writeDenied(w, models.ReasonMonthlyLimit, result.Tier)
		return
	}
	if err != nil {
		h.logError(ctx, "failed to debit message credit", err, requestID)
		httputil.WriteError(w, err)
		return
	}

	msg, err := models.NewChatMessage(userID, models.RoleUser, requestcontext.Now(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.messages.Record(ctx, msg); err != nil {
		h.logger.ErrorContext(ctx, "failed to record message after admission",
			"error", err,
			"charged", debit.Charged,
			"debited_kind", string(debit.Kind),
			"request_id", requestID,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to record message"))
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, &models.MessageAcceptedResponse{
		MessageID:   msg.ID,
		Tier:        result.Tier,
		Charged:     debit.Charged,
		DebitedKind: debit.Kind,
	})
}

// HandleTopUpWebhook implements POST /webhooks/billing/top-up.
// Input: { "purchase_id": "pi_123", "user_id": "...", "amount": 100 }
// Output: { "applied": true, "user_id": "..." }; applied is false for a redelivery.
func (h *Handler) HandleTopUpWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(r)

	req, ok := httputil.DecodeBody[models.TopUpWebhookRequest](w, r, h.logger, requestID)
	if !ok {
		return
	}
	purchaseID, err := id.ParsePurchaseID(req.PurchaseID)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid purchase_id"))
		return
	}
	userID, err := id.ParseUserID(req.UserID)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid user_id"))
		return
	}

	applied, err := h.fulfillment.ApplyTopUp(ctx, purchaseID, userID, req.Amount)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to apply top-up",
			"error", err,
			"purchase_id", purchaseID.String(),
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &models.FulfillmentResponse{Applied: applied, UserID: userID.String()})
}

// HandleRenewalWebhook implements POST /webhooks/billing/renewal.
// Input: { "user_id": "...", "period_end": "2026-05-01T00:00:00Z" }
func (h *Handler) HandleRenewalWebhook(w http.ResponseWriter, r *http.Request) {
	h.handlePeriodWebhook(w, r, "renewal", h.fulfillment.RenewPeriod)
}

// HandleActivateWebhook implements POST /webhooks/billing/activate.
// Input: { "user_id": "...", "period_end": "2026-05-01T00:00:00Z" }
func (h *Handler) HandleActivateWebhook(w http.ResponseWriter, r *http.Request) {
	h.handlePeriodWebhook(w, r, "activation", h.fulfillment.ActivatePro)
}

func (h *Handler) handlePeriodWebhook(w http.ResponseWriter, r *http.Request, event string, apply func(context.Context, id.UserID, time.Time) (bool, error)) {
	ctx := r.Context()
	requestID := request.GetRequestID(r)

	req, ok := httputil.DecodeBody[models.PeriodWebhookRequest](w, r, h.logger, requestID)
	if !ok {
		return
	}
	userID, err := id.ParseUserID(req.UserID)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid user_id"))
		return
	}

	applied, err := apply(ctx, userID, req.PeriodEnd)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to apply billing "+event,
			"error", err,
			"user_id", userID.String(),
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &models.FulfillmentResponse{Applied: applied, UserID: userID.String()})
}

// HandleCancelWebhook implements POST /webhooks/billing/cancel.
// Input: { "user_id": "..." }
func (h *Handler) HandleCancelWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(r)

	req, ok := httputil.DecodeBody[models.CancelWebhookRequest](w, r, h.logger, requestID)
	if !ok {
		return
	}
	userID, err := id.ParseUserID(req.UserID)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid user_id"))
		return
	}

	if err := h.fulfillment.Deactivate(ctx, userID); err != nil {
		h.logError(ctx, "failed to deactivate subscription", err, requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &models.FulfillmentResponse{Applied: true, UserID: userID.String()})
}

// HandleGetBuckets implements GET /admin/credits/{user_id}.
func (h *Handler) HandleGetBuckets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(r)

	userID, ok := h.userIDParam(w, r, requestID)
	if !ok {
		return
	}

	buckets, err := h.ledger.Buckets(ctx, userID)
	if err != nil {
		h.logError(ctx, "failed to list buckets", err, requestID)
		httputil.WriteError(w, err)
		return
	}
	if buckets == nil {
		buckets = []models.CreditBucket{}
	}
	httputil.WriteJSON(w, http.StatusOK, &models.BucketsResponse{
		UserID:  userID.String(),
		Buckets: buckets,
		Total:   models.BalanceOf(buckets).Total(),
	})
}

// HandleGrant implements POST /admin/credits/{user_id}/grant.
// Input: { "kind": "top_up", "amount": 50 } or
// { "kind": "monthly_allowance", "amount": 300, "period_end": "..." }
// Output: the updated bucket.
func (h *Handler) HandleGrant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(r)

	userID, ok := h.userIDParam(w, r, requestID)
	if !ok {
		return
	}
	req, ok := httputil.DecodeBody[models.GrantRequest](w, r, h.logger, requestID)
	if !ok {
		return
	}

	kind := models.CreditKind(req.Kind)
	bucket, err := h.ledger.Grant(ctx, userID, kind, req.Amount, req.PeriodEnd)
	if err != nil {
		h.logError(ctx, "failed to grant credits", err, requestID)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "admin credit grant",
		"user_id", userID.String(),
		"kind", req.Kind,
		"amount", req.Amount,
		"admin_actor", admin.GetAdminActorID(ctx),
		"request_id", requestID,
	)
	httputil.WriteJSON(w, http.StatusOK, bucket)
}

// admit resolves the caller's tier and evaluates admission for it.
func (h *Handler) admit(ctx context.Context, userID id.UserID) (models.AllowResult, error) {
	sub, err := h.quota.Subscription(ctx, userID)
	if err != nil {
		return models.AllowResult{}, err
	}
	return h.quota.Allow(ctx, userID, sub.Tier)
}

// writeAdmissionError fails closed: storage trouble is reported as a denial.
func (h *Handler) writeAdmissionError(w http.ResponseWriter, err error) {
	if dErrors.HasCode(err, dErrors.CodeUnavailable) {
		httputil.WriteJSON(w, http.StatusServiceUnavailable, &models.CheckUnavailableResponse{
			Allowed: false,
			Error:   httputil.DomainCodeToHTTPCode(dErrors.CodeUnavailable),
		})
		return
	}
	httputil.WriteError(w, err)
}

func writeDenied(w http.ResponseWriter, reason models.DenialReason, tier models.Tier) {
	msg := "monthly message credits exhausted"
	if reason == models.ReasonDailyLimit {
		msg = "daily message limit reached"
	}
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.MessageDeniedResponse{
		Error:  msg,
		Reason: reason,
		Tier:   tier,
	})
}

func (h *Handler) userIDParam(w http.ResponseWriter, r *http.Request, requestID string) (id.UserID, bool) {
	raw := chi.URLParam(r, "user_id")
	userID, err := id.ParseUserID(raw)
	if err != nil || userID.IsNil() {
		h.logger.WarnContext(r.Context(), "invalid user_id path parameter",
			"user_id", raw,
			"request_id", requestID,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid user_id"))
		return id.UserID{}, false
	}
	return userID, true
}

func (h *Handler) logError(ctx context.Context, msg string, err error, requestID string) {
	h.logger.ErrorContext(ctx, msg,
		"error", err,
		"code", dErrors.CodeOf(err),
		"request_id", requestID,
	)
}

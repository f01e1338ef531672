package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	dErrors "companion/pkg/domain-errors"
)

// MaxBodyBytes caps every JSON request body. Webhook and admin payloads are
// a handful of fields.
const MaxBodyBytes = 64 * 1024

// Validatable is implemented by request types that support validation.
type Validatable interface {
	Validate() error
}

// Normalizable is implemented by request types that support normalization.
type Normalizable interface {
	Normalize()
}

// PrepareRequest normalizes, then validates, a decoded request.
func PrepareRequest(req any) error {
	if n, ok := req.(Normalizable); ok {
		n.Normalize()
	}
	if v, ok := req.(Validatable); ok {
		return v.Validate()
	}
	return nil
}

// DecodeBody reads a single JSON object of type T from the request body,
// then runs PrepareRequest on it. On failure it writes the error response
// and returns nil, false.
//
//	req, ok := httputil.DecodeBody[models.GrantRequest](w, r, h.logger, requestID)
//	if !ok {
//	    return
//	}
func DecodeBody[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, requestID string) (*T, bool) {
	ctx := r.Context()
	var req T
	if err := decodeSingle(w, r, &req); err != nil {
		logger.WarnContext(ctx, "failed to decode request body",
			"error", err,
			"request_id", requestID,
		)
		WriteError(w, err)
		return nil, false
	}

	if err := PrepareRequest(&req); err != nil {
		logger.WarnContext(ctx, "invalid request",
			"error", err,
			"request_id", requestID,
		)
		var domainErr *dErrors.Error
		if errors.As(err, &domainErr) {
			WriteError(w, err)
		} else {
			WriteError(w, dErrors.New(dErrors.CodeValidation, err.Error()))
		}
		return nil, false
	}
	return &req, true
}

func decodeSingle(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return dErrors.New(dErrors.CodeBadRequest, "request body too large")
		case errors.Is(err, io.EOF):
			return dErrors.New(dErrors.CodeBadRequest, "request body is empty")
		default:
			return dErrors.New(dErrors.CodeBadRequest, "invalid request body")
		}
	}
	if dec.More() {
		return dErrors.New(dErrors.CodeBadRequest, "request body must hold a single JSON object")
	}
	return nil
}

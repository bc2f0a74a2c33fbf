// Package httpx writes JSON responses and the error envelope shared by all
// handlers.
package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/lephuong249/storefront-orders/internal/apperr"
)

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError renders err as {"error", "message", "status"}. Errors that are
// not *apperr.Error become a generic 500 and their text is only logged.
func WriteError(ctx context.Context, w http.ResponseWriter, logger *zap.Logger, err error) {
	e, ok := apperr.As(err)
	if !ok {
		e = apperr.Internal(err)
	}
	if e.Status >= http.StatusInternalServerError && logger != nil {
		logger.Error("request failed",
			zap.String("request_id", middleware.GetReqID(ctx)),
			zap.String("code", string(e.Code)),
			zap.Error(err),
		)
	}

	payload := map[string]any{
		"error":   e.Code,
		"message": e.Message,
		"status":  e.Status,
	}
	if e.Retryable {
		payload["retryable"] = true
		w.Header().Set("Retry-After", strconv.Itoa(1))
	}
	if id := middleware.GetReqID(ctx); id != "" {
		payload["request_id"] = id
	}
	WriteJSON(w, e.Status, payload)
}

// Decode reads a JSON body into dst, rejecting unknown fields.
func Decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.Client(apperr.CodeInvalidInput, "request body is not valid JSON for this endpoint", http.StatusBadRequest)
	}
	return nil
}

// QueryInt parses an optional integer query parameter.
func QueryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, apperr.Client(apperr.CodeInvalidInput, key+" must be an integer", http.StatusBadRequest)
	}
	return n, nil
}

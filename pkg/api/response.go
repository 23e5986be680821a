package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrymomot/usagegate/pkg/environment"
	"github.com/dmitrymomot/usagegate/pkg/principal"
	"github.com/dmitrymomot/usagegate/pkg/quota"
	"github.com/dmitrymomot/usagegate/pkg/subscription"
	"github.com/dmitrymomot/usagegate/pkg/usage"
)

// Response is the JSON envelope of every API response.
type Response struct {
	Data  any          `json:"data,omitempty"`
	Error *ErrorDetail `json:"error,omitempty"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Response{Data: data})
}

// errorStatus maps domain errors to an HTTP status and a stable code.
// Unknown errors are internal and their message is not exposed.
func errorStatus(err error) (int, string, string) {
	switch {
	case errors.Is(err, principal.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated", "authentication required"
	case errors.Is(err, quota.ErrUnknownFeature):
		return http.StatusBadRequest, "unknown_feature", err.Error()
	case errors.Is(err, usage.ErrResetNotAllowed):
		return http.StatusForbidden, "reset_not_allowed", "usage reset is only available in development"
	case errors.Is(err, subscription.ErrInvalidSignature):
		return http.StatusUnauthorized, "invalid_signature", "webhook signature verification failed"
	case errors.Is(err, subscription.ErrMalformedWebhook), errors.Is(err, subscription.ErrMissingUserID):
		return http.StatusBadRequest, "malformed_webhook", err.Error()
	case errors.Is(err, subscription.ErrUnknownPrice):
		return http.StatusUnprocessableEntity, "unknown_price", err.Error()
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

// writeError writes the error envelope. Internal error details are only
// exposed when the request runs in development.
func writeError(w http.ResponseWriter, r *http.Request, err error) int {
	status, code, msg := errorStatus(err)
	if status >= http.StatusInternalServerError && environment.IsDevelopment(r.Context()) {
		msg = err.Error()
	}
	writeJSON(w, status, Response{Error: &ErrorDetail{Code: code, Message: msg}})
	return status
}

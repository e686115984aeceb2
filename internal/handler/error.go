// Package handler contains the HTTP layer: request decoding, response
// encoding, and translation of domain errors to HTTP status codes.
//
// The API speaks JSON only. Error bodies are flat: {"error": "<message>"},
// with extra fields for quota rejections so clients can render usage
// without a follow-up request.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/fabricacollective/amplify/internal/domain"
)

// ErrorResponse writes an error response to the client. It maps domain
// error codes to HTTP status codes; internal details never reach the body.
func ErrorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	// Quota errors carry counters and a dedicated body shape
	if qe, ok := domain.AsQuotaError(err); ok {
		logError(logger, r, err, domain.EQUOTA, qe.Op, http.StatusForbidden)
		writeJSON(w, http.StatusForbidden, map[string]any{
			"error":         "Monthly limit reached",
			"prompts_used":  qe.Used,
			"prompts_limit": qe.Limit,
		})
		return
	}

	code := domain.ErrorCode(err)
	message := domain.ErrorMessage(err)
	op := domain.ErrorOp(err)
	status := ErrorCodeToHTTPStatus(code)

	logError(logger, r, err, code, op, status)
	writeJSONError(w, status, message)
}

// ErrorCodeToHTTPStatus maps domain error codes to HTTP status codes.
func ErrorCodeToHTTPStatus(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest // 400
	case domain.EUNAUTHORIZED:
		return http.StatusUnauthorized // 401
	case domain.EPAYMENT:
		return http.StatusPaymentRequired // 402
	case domain.EFORBIDDEN, domain.EQUOTA:
		return http.StatusForbidden // 403
	case domain.ENOTFOUND:
		return http.StatusNotFound // 404
	case domain.ECONFLICT:
		return http.StatusConflict // 409
	case domain.ERATELIMIT:
		return http.StatusTooManyRequests // 429
	case domain.EUPSTREAM, domain.EINTERNAL:
		// Upstream failures are deliberately indistinguishable from
		// internal ones on the wire; the distinction lives in the logs.
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}

// UnauthorizedResponse is a convenience wrapper for 401 errors.
func UnauthorizedResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	logError(logger, r, nil, domain.EUNAUTHORIZED, "", http.StatusUnauthorized)
	writeJSONError(w, http.StatusUnauthorized, "Unauthorized")
}

// InternalErrorResponse logs the error and returns a generic 500 response.
func InternalErrorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	ErrorResponse(w, r, logger, domain.Internal(err, "", "An unexpected error occurred"))
}

// logError logs the error with a level matched to the status class:
// 5xx is a server problem, 4xx is an expected client error.
func logError(logger *slog.Logger, r *http.Request, err error, code, op string, status int) {
	attrs := []any{
		"code", code,
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
	}
	if err != nil {
		attrs = append(attrs, "error", err.Error())
	}
	if op != "" {
		attrs = append(attrs, "op", op)
	}

	if status >= 500 {
		logger.Error("server error", attrs...)
	} else {
		logger.Info("client error", attrs...)
	}
}

// writeJSONError writes a flat JSON error body.
func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeJSON writes any JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

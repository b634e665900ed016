package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"colabai/sources/tokens"
	"colabai/sources/tracing"
)

const (
	codeBadRequest       = "bad_request"
	codeValidationFailed = "validation_failed"
	codeUnauthorized     = "unauthorized"
	codeNotFound         = "not_found"
	codeRateLimited      = "rate_limited"
	codeInternalError    = "internal_error"
)

var errThrottled = errors.New("too many requests, slow down")

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorHandler writes the response for err and reports true when it recognizes it.
type errorHandler func(w http.ResponseWriter, err error) bool

var errorHandlers = []errorHandler{
	authenticationHandler,
	sentinelHandler(tokens.ErrInvalidUsage, http.StatusBadRequest, codeValidationFailed),
	sentinelHandler(tokens.ErrInvalidPurchase, http.StatusBadRequest, codeValidationFailed),
	sentinelHandler(tokens.ErrInvalidLimit, http.StatusBadRequest, codeValidationFailed),
	sentinelHandler(errUnknownPackage, http.StatusBadRequest, codeValidationFailed),
	sentinelHandler(tokens.ErrLedgerNotInitialized, http.StatusNotFound, codeNotFound),
	sentinelHandler(errThrottled, http.StatusTooManyRequests, codeRateLimited),
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, err.Error())
		return true
	}
}

func authenticationHandler(w http.ResponseWriter, err error) bool {
	if !tokens.IsAuthenticationError(err) {
		return false
	}
	writeError(w, http.StatusUnauthorized, codeUnauthorized, "authentication required")
	return true
}

func handleError(log *tracing.Logger, w http.ResponseWriter, err error) {
	for _, h := range errorHandlers {
		if h(w, err) {
			log.D("Request rejected", tracing.InnerError, err)
			return
		}
	}

	log.E("Request failed", tracing.InnerError, err)
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

package handler

// RESPONSE HELPERS:
// Every procedure answers with one of two envelopes:
//
//	{"result": {"data": <value>}}
//	{"error":  {"code": "NOT_FOUND", "message": "...", "field": "..."}}
//
// The error code is the same string the HTTP status maps to below, so a
// client can branch on either one.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/timekeeper/internal/apperror"
)

// Procedure error codes.
const (
	CodeBadRequest         = "BAD_REQUEST"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeMethodNotSupported = "METHOD_NOT_SUPPORTED"
	CodeInternal           = "INTERNAL_SERVER_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

const internalErrorMessage = "An internal error occurred"

// ErrorBody is the payload under "error".
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ResultResponse wraps a successful procedure result.
type ResultResponse struct {
	Result struct {
		Data any `json:"data"`
	} `json:"result"`
}

// writeJSON sends a JSON response with the given status code.
// Headers and status go out before the body; later header changes are lost.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent, so all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeResult sends a 200 with data in the result envelope.
func writeResult(w http.ResponseWriter, data any) {
	var resp ResultResponse
	resp.Result.Data = data
	writeJSON(w, http.StatusOK, resp)
}

// writeError maps a domain error to its status and procedure code.
//
// errors.Is walks the Unwrap chain, so a service error like
//
//	fmt.Errorf("creating entry: %w", apperror.ValidationFailed(...))
//
// still maps to BAD_REQUEST. Anything that isn't an *AppError is a storage
// or programming failure and is reported with a fixed message so no SQL or
// driver detail reaches the client.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		writeErrorCode(w, http.StatusInternalServerError, CodeInternal, internalErrorMessage, "")
		return
	}

	status, code := errorStatus(err)
	message := appErr.Message
	if status == http.StatusInternalServerError {
		message = internalErrorMessage
	}
	writeErrorCode(w, status, code, message, appErr.Field)
}

// WriteError is writeError for middleware outside this package, such as
// the Gate's rejection writer.
func WriteError(w http.ResponseWriter, err error) {
	writeError(w, err)
}

func writeErrorCode(w http.ResponseWriter, status int, code, message, field string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorBody{
		Code:    code,
		Message: message,
		Field:   field,
	}})
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, CodeBadRequest
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, CodeUnauthorized
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, CodeForbidden
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, CodeConflict
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

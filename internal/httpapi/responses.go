package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nikolayk812/cartstate/internal/logger"
)

const (
	codeValidation = "VALIDATION_ERROR"
	codeNotFound   = "NOT_FOUND"
	codeNotAdded   = "ITEM_NOT_ADDED"
	codeEmptyCart  = "CART_EMPTY"
	codeInternal   = "INTERNAL_ERROR"
)

type successEnvelope struct {
	Data any `json:"data"`
}

type errorEnvelope struct {
	Error apiErrorBody `json:"error"`
}

type apiErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// apiError carries the status and public message of a failed request.
type apiError struct {
	status  int
	code    string
	message string
	details any
	err     error
}

func (e *apiError) Error() string {
	if e.err != nil {
		return e.message + ": " + e.err.Error()
	}
	return e.message
}

func (e *apiError) Unwrap() error {
	return e.err
}

func newAPIError(status int, code, message string, err error) *apiError {
	return &apiError{status: status, code: code, message: message, err: err}
}

func writeSuccess(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, successEnvelope{Data: data})
}

// writeError hides the message of anything that is not an apiError.
func writeError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	var typed *apiError
	if !errors.As(err, &typed) {
		typed = newAPIError(http.StatusInternalServerError, codeInternal, "unexpected error", err)
	}

	if typed.status >= http.StatusInternalServerError {
		logg.Error(logg.WithField(ctx, "error_code", typed.code), "request.error", err)
	} else {
		logg.Debug(logg.WithField(ctx, "error_code", typed.code), "request.rejected")
	}

	writeJSON(w, typed.status, errorEnvelope{Error: apiErrorBody{
		Code:    typed.code,
		Message: typed.message,
		Details: typed.details,
	}})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

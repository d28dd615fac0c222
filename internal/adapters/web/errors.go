package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"procurement-ledger/internal/config"
	"procurement-ledger/internal/core"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeServiceError maps core sentinel errors onto HTTP statuses.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		writeError(w, r, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
	case errors.Is(err, core.ErrEmployeeNotFound),
		errors.Is(err, core.ErrOrderNotFound),
		errors.Is(err, core.ErrShipmentNotFound),
		errors.Is(err, core.ErrGRNNotFound),
		errors.Is(err, core.ErrInvoiceNotFound):
		writeError(w, r, err.Error(), "NOT_FOUND", http.StatusNotFound)
	case errors.Is(err, core.ErrInvalidTransition):
		writeError(w, r, err.Error(), "INVALID_TRANSITION", http.StatusConflict)
	case errors.Is(err, core.ErrInvoiceNotAllowed):
		writeError(w, r, err.Error(), "INVOICE_NOT_ALLOWED", http.StatusUnprocessableEntity)
	case errors.Is(err, core.ErrCategoryNotFound), errors.Is(err, core.ErrProductNotFound):
		writeError(w, r, err.Error(), "UNPROCESSABLE", http.StatusUnprocessableEntity)
	default:
		config.LogError(h.logger, "http", "writeServiceError", r.Method+" "+r.URL.Path,
			logrus.Fields{"request_id": requestIDFromContext(r.Context())}, err)
		writeError(w, r, "internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

// writeJSONStatus writes a JSON response with the given status.
func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

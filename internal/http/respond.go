package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Ugender2729/F1-Mart-sub001/internal/cart"
	"github.com/Ugender2729/F1-Mart-sub001/internal/delivery"
	"github.com/Ugender2729/F1-Mart-sub001/internal/service"
	"github.com/Ugender2729/F1-Mart-sub001/internal/verification"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

var locationCodes = map[delivery.LocationFailure]string{
	delivery.FailurePermissionDenied:    "location_permission_denied",
	delivery.FailurePositionUnavailable: "location_unavailable",
	delivery.FailureTimeout:             "location_timeout",
}

// handleServiceError converts service errors to HTTP status codes.
func handleServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var locErr *delivery.LocationError
	if errors.As(err, &locErr) {
		code, ok := locationCodes[locErr.Reason]
		if !ok {
			code = "location_unavailable"
		}
		respondError(w, http.StatusUnprocessableEntity, code, locErr.Error())
		return
	}

	var (
		status int
		code   string
	)
	switch {
	case errors.Is(err, service.ErrMissingCustomer):
		status, code = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, cart.ErrInvalidQuantity):
		status, code = http.StatusBadRequest, "invalid_quantity"
	case errors.Is(err, cart.ErrInvalidItem):
		status, code = http.StatusBadRequest, "invalid_item"
	case errors.Is(err, cart.ErrStockLimitExceeded):
		status, code = http.StatusBadRequest, "stock_limit_exceeded"
	case errors.Is(err, cart.ErrItemNotFound):
		status, code = http.StatusNotFound, "item_not_found"
	case errors.Is(err, service.ErrEmptyCart):
		status, code = http.StatusBadRequest, "empty_cart"
	case errors.Is(err, delivery.ErrSuperseded):
		status, code = http.StatusConflict, "location_superseded"
	case errors.Is(err, verification.ErrOrderNotFound):
		status, code = http.StatusNotFound, "order_not_found"
	case errors.Is(err, verification.ErrVerificationNotFound):
		status, code = http.StatusNotFound, "verification_not_found"
	case errors.Is(err, verification.ErrInvalidDelivery):
		status, code = http.StatusBadRequest, "invalid_delivery"
	case errors.Is(err, verification.ErrOrderNotDelivered):
		status, code = http.StatusConflict, "order_not_delivered"
	case errors.Is(err, verification.ErrWindowClosed):
		status, code = http.StatusConflict, "verification_window_closed"
	case errors.Is(err, verification.ErrAlreadyResolved):
		status, code = http.StatusConflict, "verification_already_resolved"
	case errors.Is(err, context.DeadlineExceeded):
		status, code = http.StatusGatewayTimeout, "timeout"
	default:
		logger.Error("unhandled service error", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	respondError(w, status, code, err.Error())
}

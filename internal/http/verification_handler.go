package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Ugender2729/F1-Mart-sub001/internal/domain"
	"github.com/Ugender2729/F1-Mart-sub001/internal/verification"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type VerificationAPI interface {
	Open(ctx context.Context, orderID uuid.UUID) (*domain.OrderVerification, error)
	Status(ctx context.Context, orderID uuid.UUID) (*verification.Status, error)
	Verify(ctx context.Context, orderID uuid.UUID, notes string) (*verification.Status, error)
	Dispute(ctx context.Context, orderID uuid.UUID, notes string) (*verification.Status, error)
	Deliver(ctx context.Context, d verification.Delivery) (*domain.OrderVerification, error)
}

type VerificationHandler struct {
	workflow VerificationAPI
	timeout  time.Duration
	logger   *slog.Logger
}

func NewVerificationHandler(workflow VerificationAPI, timeout time.Duration, logger *slog.Logger) *VerificationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &VerificationHandler{workflow: workflow, timeout: timeout, logger: logger}
}

type ResolveRequestDTO struct {
	Notes string `json:"notes"`
}

// DeliveredRequestDTO is the courier's hand-over notice. Every field is optional;
// a missing delivered_at means now.
type DeliveredRequestDTO struct {
	UserID      string          `json:"user_id"`
	Total       decimal.Decimal `json:"total"`
	DeliveredAt *time.Time      `json:"delivered_at"`
}

const maxNotesLength = 2000

// POST /api/v1/orders/{order_id}/delivered
func (h *VerificationHandler) Delivered(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	var req DeliveredRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	d := verification.Delivery{OrderID: orderID, UserID: req.UserID, Total: req.Total}
	if req.DeliveredAt != nil {
		d.DeliveredAt = *req.DeliveredAt
	}

	if _, err := h.workflow.Deliver(ctx, d); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	st, err := h.workflow.Status(ctx, orderID)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, st)
}

// POST /api/v1/orders/{order_id}/verification
func (h *VerificationHandler) Open(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}
	if _, err := h.workflow.Open(ctx, orderID); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	st, err := h.workflow.Status(ctx, orderID)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, st)
}

// GET /api/v1/orders/{order_id}/verification
func (h *VerificationHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}
	st, err := h.workflow.Status(ctx, orderID)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, st)
}

// POST /api/v1/orders/{order_id}/verification/verify
func (h *VerificationHandler) Verify(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, h.workflow.Verify)
}

// POST /api/v1/orders/{order_id}/verification/dispute
func (h *VerificationHandler) Dispute(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, h.workflow.Dispute)
}

func (h *VerificationHandler) resolve(w http.ResponseWriter, r *http.Request,
	action func(context.Context, uuid.UUID, string) (*verification.Status, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	// body is optional
	var req ResolveRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if len(req.Notes) > maxNotesLength {
		respondError(w, http.StatusBadRequest, "notes_too_long", "notes must be at most 2000 characters")
		return
	}

	st, err := action(ctx, orderID, req.Notes)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, st)
}

func parseOrderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	orderID, err := uuid.Parse(chi.URLParam(r, "order_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id must be a UUID")
		return uuid.Nil, false
	}
	return orderID, true
}

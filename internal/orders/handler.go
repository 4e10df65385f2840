package orders

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/storefront-orderflow/internal/cart"
	"github.com/joao-fontenele/storefront-orderflow/internal/domain"
)

type CustomerResolver interface {
	CurrentCustomer(r *http.Request) (*domain.Customer, error)
}

// CartStore is the server-side cart a checkout may be placed from.
type CartStore interface {
	Get(ctx context.Context, cartID string) []domain.CartLine
	Clear(ctx context.Context, cartID string) error
}

type Handler struct {
	checkout  *CheckoutService
	payments  *PaymentService
	customers CustomerResolver
	carts     CartStore
	logger    *slog.Logger
}

func NewHandler(checkout *CheckoutService, payments *PaymentService, customers CustomerResolver,
	carts CartStore, logger *slog.Logger) *Handler {
	return &Handler{
		checkout:  checkout,
		payments:  payments,
		customers: customers,
		carts:     carts,
		logger:    logger,
	}
}

type checkoutRequest struct {
	CheckoutInput
	CartID string `json:"cart_id,omitempty"`
}

type checkoutResponse struct {
	Success    bool   `json:"success"`
	NewAccount bool   `json:"new_account"`
	OrderID    string `json:"order_id"`
}

type checkoutError struct {
	Error           string `json:"error"`
	RedirectToLogin bool   `json:"redirect_to_login,omitempty"`
}

func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	customer, err := h.customers.CurrentCustomer(r)
	if err != nil {
		h.logger.Error("failed to resolve session", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	// Without explicit lines the stored cart is checked out.
	if len(req.Lines) == 0 && req.CartID != "" && h.carts != nil {
		req.Lines = cart.Refs(h.carts.Get(r.Context(), req.CartID))
	}

	result, err := h.checkout.Checkout(r.Context(), customer, req.CheckoutInput)
	if err != nil {
		status, body := checkoutFailure(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("checkout failed", "error", err)
		} else {
			h.logger.Info("checkout rejected", "error", err)
		}
		h.writeJSON(w, status, body)
		return
	}

	if req.CartID != "" && h.carts != nil {
		if err := h.carts.Clear(r.Context(), req.CartID); err != nil {
			h.logger.Warn("failed to clear cart after checkout", "error", err, "order_id", result.OrderID)
		}
	}

	h.writeJSON(w, http.StatusCreated, checkoutResponse{
		Success:    true,
		NewAccount: result.NewAccount,
		OrderID:    result.OrderID,
	})
}

func checkoutFailure(err error) (int, checkoutError) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, checkoutError{Error: err.Error()}
	case errors.Is(err, domain.ErrDuplicateAccount):
		return http.StatusConflict, checkoutError{Error: domain.ErrDuplicateAccount.Error(), RedirectToLogin: true}
	case errors.Is(err, domain.ErrUnknownItem):
		return http.StatusUnprocessableEntity, checkoutError{Error: err.Error()}
	}

	for _, sentinel := range []error{
		domain.ErrAccountCreation,
		domain.ErrCatalogLookup,
		domain.ErrOrderPersistence,
		domain.ErrOrderItemPersistence,
	} {
		if errors.Is(err, sentinel) {
			return http.StatusInternalServerError, checkoutError{Error: sentinel.Error()}
		}
	}
	return http.StatusInternalServerError, checkoutError{Error: "internal server error"}
}

func (h *Handler) HandleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("id")
	if orderID == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxReceiptSize+1<<20)
	file, header, err := r.FormFile("receipt")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "missing receipt file")
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(io.LimitReader(file, MaxReceiptSize+1))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "could not read receipt file")
		return
	}

	result, err := h.payments.ConfirmPayment(r.Context(), orderID, Receipt{Filename: header.Filename, Data: data})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrValidation):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrOrderNotFound):
			h.writeError(w, http.StatusNotFound, domain.ErrOrderNotFound.Error())
		case errors.Is(err, domain.ErrUpload):
			h.logger.Error("failed to upload payment proof", "error", err, "order_id", orderID)
			h.writeError(w, http.StatusBadGateway, domain.ErrUpload.Error())
		case errors.Is(err, domain.ErrSignedURL):
			h.logger.Error("failed to sign payment proof url", "error", err, "order_id", orderID)
			h.writeError(w, http.StatusBadGateway, domain.ErrSignedURL.Error())
		default:
			h.logger.Error("failed to record payment proof", "error", err, "order_id", orderID)
			h.writeError(w, http.StatusInternalServerError, domain.ErrOrderUpdate.Error())
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"success": true, "path": result.Path})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	writeJSON(w, h.logger, status, data)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, h.logger, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

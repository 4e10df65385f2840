package account

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/storefront-orderflow/internal/domain"
)

type CustomerResolver interface {
	CurrentCustomer(r *http.Request) (*domain.Customer, error)
}

type Handler struct {
	service   *Service
	customers CustomerResolver
	logger    *slog.Logger
}

func NewHandler(service *Service, customers CustomerResolver, logger *slog.Logger) *Handler {
	return &Handler{
		service:   service,
		customers: customers,
		logger:    logger,
	}
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	customer, err := h.customers.CurrentCustomer(r)
	if err != nil {
		h.logger.Error("failed to resolve session", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if customer == nil {
		h.writeError(w, http.StatusUnauthorized, "sign in required")
		return
	}

	view, err := h.service.View(r.Context(), customer)
	if err != nil {
		h.logger.Error("failed to load account", "error", err, "customer_id", customer.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, view)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

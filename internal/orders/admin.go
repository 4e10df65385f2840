package orders

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/storefront-orderflow/internal/domain"
)

type AdminStore interface {
	List(ctx context.Context) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error)
}

type AdminHandler struct {
	repo     AdminStore
	accounts AccountCache
	logger   *slog.Logger
}

func NewAdminHandler(repo AdminStore, accounts AccountCache, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		repo:     repo,
		accounts: accounts,
		logger:   logger,
	}
}

func (h *AdminHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	orders, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list orders", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("orders listed", "count", len(orders))
	h.writeJSON(w, http.StatusOK, orders)
}

type updateStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

func (h *AdminHandler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Status.Valid() {
		h.writeError(w, http.StatusBadRequest, "unknown order status")
		return
	}

	order, err := h.repo.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			h.writeError(w, http.StatusConflict, err.Error())
			return
		}
		h.logger.Error("failed to update order status", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, domain.ErrOrderUpdate.Error())
		return
	}

	if order == nil {
		h.writeError(w, http.StatusNotFound, domain.ErrOrderNotFound.Error())
		return
	}

	if err := h.accounts.Invalidate(r.Context(), order.CustomerID); err != nil {
		h.logger.Warn("failed to invalidate account view", "error", err, "customer_id", order.CustomerID)
	}

	h.logger.Info("order status updated", "order_id", order.ID, "status", order.Status)
	h.writeJSON(w, http.StatusOK, order)
}

func (h *AdminHandler) writeJSON(w http.ResponseWriter, status int, data any) {
	writeJSON(w, h.logger, status, data)
}

func (h *AdminHandler) writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, h.logger, status, map[string]string{"error": message})
}

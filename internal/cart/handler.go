package cart

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront-orderflow/internal/domain"
)

var cartIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8,64}$`)

type Handler struct {
	store  *Store
	logger *slog.Logger
}

func NewHandler(store *Store, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: logger,
	}
}

type cartResponse struct {
	Items []domain.CartLine `json:"items"`
	Count int               `json:"count"`
	Total decimal.Decimal   `json:"total"`
}

func newCartResponse(lines []domain.CartLine) cartResponse {
	return cartResponse{Items: lines, Count: Count(lines), Total: Total(lines)}
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}

	h.writeJSON(w, http.StatusOK, newCartResponse(h.store.Get(r.Context(), cartID)))
}

func (h *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}

	var line domain.CartLine
	if err := json.NewDecoder(r.Body).Decode(&line); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if line.ItemID == "" {
		h.writeError(w, http.StatusBadRequest, "missing item id")
		return
	}

	lines, err := h.store.Add(r.Context(), cartID, line)
	if err != nil {
		h.logger.Error("failed to add cart item", "error", err, "cart_id", cartID, "item_id", line.ItemID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, newCartResponse(lines))
}

func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}

	lines, err := h.store.Remove(r.Context(), cartID, r.PathValue("itemID"))
	if err != nil {
		h.logger.Error("failed to remove cart item", "error", err, "cart_id", cartID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, newCartResponse(lines))
}

func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}

	if err := h.store.Clear(r.Context(), cartID); err != nil {
		h.logger.Error("failed to clear cart", "error", err, "cart_id", cartID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, newCartResponse([]domain.CartLine{}))
}

func (h *Handler) cartID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("cartID")
	if !cartIDPattern.MatchString(id) {
		h.writeError(w, http.StatusBadRequest, "invalid cart id")
		return "", false
	}
	return id, true
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

package shipping

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/storefront-orderflow/internal/domain"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

func (h *Handler) HandleTrack(w http.ResponseWriter, r *http.Request) {
	trackingNumber := r.PathValue("trackingNumber")

	info, err := h.service.GetTracking(r.Context(), trackingNumber)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrValidation):
			h.writeError(w, http.StatusBadRequest, "invalid tracking number")
		case errors.Is(err, domain.ErrShipmentNotFound):
			h.writeError(w, http.StatusNotFound, domain.ErrShipmentNotFound.Error())
		default:
			h.logger.Error("failed to get tracking", "error", err, "tracking_number", trackingNumber)
			h.writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, info)
}

func (h *Handler) HandleProcess(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("id")
	if orderID == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	result, err := h.service.Process(r.Context(), orderID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrOrderNotFound):
			h.writeError(w, http.StatusNotFound, domain.ErrOrderNotFound.Error())
		case errors.Is(err, domain.ErrInvalidTransition):
			h.writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, domain.ErrOrderUpdate):
			h.logger.Error("failed to move order to processing", "error", err, "order_id", orderID)
			h.writeError(w, http.StatusInternalServerError, domain.ErrOrderUpdate.Error())
		default:
			h.logger.Error("failed to process order", "error", err, "order_id", orderID)
			h.writeError(w, http.StatusInternalServerError, domain.ErrShipmentCreation.Error())
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"success":           true,
		"tracking_number":   result.TrackingNumber,
		"already_processed": result.AlreadyProcessed,
	})
}

func (h *Handler) HandleAppendEvent(w http.ResponseWriter, r *http.Request) {
	trackingNumber := r.PathValue("trackingNumber")

	var in EventInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	shipment, err := h.service.AppendEvent(r.Context(), trackingNumber, in)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrValidation):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrShipmentNotFound):
			h.writeError(w, http.StatusNotFound, domain.ErrShipmentNotFound.Error())
		default:
			h.logger.Error("failed to append tracking event", "error", err, "tracking_number", trackingNumber)
			h.writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, shipment)
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

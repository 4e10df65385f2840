package email

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Handler is a stand-in for the transactional email provider. It accepts
// the same payload as the real API and records what it would have sent.
type Handler struct {
	apiKey string
	logger *slog.Logger
	delay  func() time.Duration
}

func NewHandler(apiKey string, logger *slog.Logger) *Handler {
	return &Handler{
		apiKey: apiKey,
		logger: logger,
		delay: func() time.Duration {
			return time.Duration(50+rand.Intn(151)) * time.Millisecond
		},
	}
}

type sendResponse struct {
	ID string `json:"id"`
}

func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	if h.apiKey != "" && r.Header.Get("Authorization") != "Bearer "+h.apiKey {
		h.writeError(w, http.StatusUnauthorized, "invalid api key")
		return
	}

	var req Message
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.From == "" || len(req.To) == 0 || req.Subject == "" {
		h.writeError(w, http.StatusUnprocessableEntity, "from, to and subject are required")
		return
	}

	time.Sleep(h.delay())

	id := uuid.New().String()
	h.logger.Info("email sent", "id", id, "to", strings.Join(req.To, ","), "subject", req.Subject)

	h.writeJSON(w, http.StatusOK, sendResponse{ID: id})
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

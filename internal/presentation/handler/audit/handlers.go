package audit

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/musorogski/cucme/internal/domain"
	"github.com/musorogski/cucme/internal/infrastructure/json"
)

const defaultLimit = 50

// Handler exposes the room lifecycle trail for operators.
type Handler struct {
	audits domain.RoomAuditRepository
}

func NewHandler(audits domain.RoomAuditRepository) *Handler {
	return &Handler{
		audits: audits,
	}
}

func (h *Handler) GetRoomAuditLog(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")
	if roomID == "" {
		json.WriteBadRequestError(w, "roomId is required")
		return
	}

	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			json.WriteBadRequestError(w, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	logs, err := h.audits.GetByRoomID(r.Context(), roomID, limit)
	if err != nil {
		json.WriteInternalError(w, err)
		return
	}

	if logs == nil {
		logs = []domain.RoomAuditLog{}
	}

	json.Write(w, http.StatusOK, logs)
}

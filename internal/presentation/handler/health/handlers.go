package health

import (
	"context"
	"net/http"
	"time"

	"github.com/musorogski/cucme/internal/infrastructure/json"
)

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type PingerFunc func(ctx context.Context) error

func (f PingerFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

type Handler struct {
	startTime time.Time
	store     Pinger
}

func NewHandler(store Pinger) *Handler {
	return &Handler{
		startTime: time.Now(),
		store:     store,
	}
}

// GetHealth is the liveness probe: the process is up and serving.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	json.Write(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	})
}

// GetReady is the readiness probe: the room store must answer too.
func (h *Handler) GetReady(w http.ResponseWriter, r *http.Request) {
	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := h.store.Ping(ctx); err != nil {
			json.Write(w, http.StatusServiceUnavailable, healthResponse{
				Status:    "unhealthy",
				Timestamp: time.Now().UTC().Format(time.RFC3339),
				Uptime:    time.Since(h.startTime).Round(time.Second).String(),
			})
			return
		}
	}

	json.Write(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	})
}

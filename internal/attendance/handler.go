package attendance

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"qrscan/pkg/platform/httputil"
)

// Handler exposes recently processed check-ins to the operator console.
type Handler struct {
	worker *Worker
}

func NewHandler(worker *Worker) *Handler {
	return &Handler{worker: worker}
}

// Register registers the attendance routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/attendance/recent", h.handleRecent)
}

func (h *Handler) handleRecent(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"records": h.worker.Recent()})
}

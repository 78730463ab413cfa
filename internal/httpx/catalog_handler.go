package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"stockagg/internal/catalog"
)

type CatalogHandler struct {
	Sync *catalog.Service
}

func (h *CatalogHandler) Register(r *chi.Mux) {
	r.Post("/vendors/sync", h.syncVendors)
}

func (h *CatalogHandler) syncVendors(w http.ResponseWriter, r *http.Request) {
	if err := h.Sync.Sync(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "vendor offers synced"})
}

package conversion

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/SGK112/CRM-sub002/internal/platform/httpx"
	"github.com/SGK112/CRM-sub002/internal/shared"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the conversion route relative to /api/estimates.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/{id}/convert", h.Convert)
}

func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	ident, ok := shared.RequireIdentity(w, r)
	if !ok {
		return
	}
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.Convert(r.Context(), ident, id)
	if err != nil {
		if httpx.StatusOf(err) >= http.StatusInternalServerError {
			h.logger.Error("convert estimate failed", slog.Int64("estimate_id", id), slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

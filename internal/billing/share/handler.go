package share

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/SGK112/CRM-sub002/internal/platform/httpx"
)

// Handler serves /public/estimates. Failures never carry detail.
type Handler struct {
	logger    *slog.Logger
	gateway   *Gateway
	rateLimit int
}

// NewHandler constructs the public handler. rateLimit is requests per
// minute per client IP; zero disables limiting.
func NewHandler(logger *slog.Logger, gateway *Gateway, rateLimit int) *Handler {
	return &Handler{logger: logger, gateway: gateway, rateLimit: rateLimit}
}

func (h *Handler) MountRoutes(r chi.Router) {
	if h.rateLimit > 0 {
		r.Use(httprate.Limit(h.rateLimit, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "")
			}),
		))
	}
	r.Get("/{token}", h.Show)
	r.Get("/{token}/pdf", h.PDF)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	view, err := h.gateway.Lookup(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) PDF(w http.ResponseWriter, r *http.Request) {
	pdf, filename, err := h.gateway.PDF(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.PDF(w, filename, pdf)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "estimate not found")
		return
	}
	h.logger.Error("shared estimate failed", slog.Any("error", err))
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
}

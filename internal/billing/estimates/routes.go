package estimates

import "github.com/go-chi/chi/v5"

// MountRoutes registers estimate routes relative to /api/estimates.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Show)
		r.Put("/", h.Update)
		r.Delete("/", h.Delete)
		r.Post("/recalc", h.Recalc)
		r.Post("/send", h.Send)
		r.Post("/accept", h.Accept)
		r.Post("/reject", h.Reject)
		r.Patch("/status", h.SetStatus)
		r.Get("/pdf", h.PDF)
	})
}

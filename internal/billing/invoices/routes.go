package invoices

import "github.com/go-chi/chi/v5"

// MountRoutes registers invoice routes relative to /api/invoices.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Show)
		r.Put("/", h.Update)
		r.Delete("/", h.Delete)
		r.Post("/send", h.Send)
		r.Post("/payments", h.RecordPayment)
		r.Get("/payments", h.Payments)
		r.Post("/void", h.Void)
		r.Get("/pdf", h.PDF)
	})
}

package invoices

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/SGK112/CRM-sub002/internal/platform/httpx"
	"github.com/SGK112/CRM-sub002/internal/shared"
)

// Handler serves the invoice API.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

type listResponse struct {
	Data       []Invoice         `json:"data"`
	Pagination shared.Pagination `json:"pagination"`
}

type paymentsResponse struct {
	Data []Payment `json:"data"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ident, ok := shared.RequireIdentity(w, r)
	if !ok {
		return
	}
	var req CreateInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.Create(r.Context(), ident, req)
	if err != nil {
		h.fail(w, "create invoice failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ident, ok := shared.RequireIdentity(w, r)
	if !ok {
		return
	}
	req := ListInvoicesRequest{WorkspaceID: ident.WorkspaceID}
	req.Page, req.PerPage = shared.PageFromRequest(r)
	if v := r.URL.Query().Get("status"); v != "" {
		status := Status(v)
		req.Status = &status
	}
	if v := r.URL.Query().Get("client_id"); v != "" {
		clientID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid client_id")
			return
		}
		req.ClientID = &clientID
	}
	items, page, err := h.service.List(r.Context(), req)
	if err != nil {
		h.fail(w, "list invoices failed", err)
		return
	}
	if items == nil {
		items = []Invoice{}
	}
	httpx.JSON(w, http.StatusOK, listResponse{Data: items, Pagination: page})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	ident, id, ok := h.target(w, r)
	if !ok {
		return
	}
	inv, err := h.service.Get(r.Context(), ident.WorkspaceID, id)
	if err != nil {
		h.fail(w, "get invoice failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	ident, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var req UpdateInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.Update(r.Context(), ident.WorkspaceID, id, req)
	if err != nil {
		h.fail(w, "update invoice failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	ident, id, ok := h.target(w, r)
	if !ok {
		return
	}
	res, err := h.service.Send(r.Context(), ident.WorkspaceID, id)
	if err != nil {
		h.fail(w, "send invoice failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	ident, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var req RecordPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.RecordPayment(r.Context(), ident, id, req)
	if err != nil {
		h.fail(w, "record payment failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) Payments(w http.ResponseWriter, r *http.Request) {
	ident, id, ok := h.target(w, r)
	if !ok {
		return
	}
	payments, err := h.service.Payments(r.Context(), ident.WorkspaceID, id)
	if err != nil {
		h.fail(w, "list payments failed", err)
		return
	}
	if payments == nil {
		payments = []Payment{}
	}
	httpx.JSON(w, http.StatusOK, paymentsResponse{Data: payments})
}

func (h *Handler) Void(w http.ResponseWriter, r *http.Request) {
	ident, id, ok := h.target(w, r)
	if !ok {
		return
	}
	inv, err := h.service.Void(r.Context(), ident.WorkspaceID, id)
	if err != nil {
		h.fail(w, "void invoice failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) PDF(w http.ResponseWriter, r *http.Request) {
	ident, id, ok := h.target(w, r)
	if !ok {
		return
	}
	internal, _ := strconv.ParseBool(r.URL.Query().Get("internal"))
	pdf, filename, err := h.service.PDF(r.Context(), ident.WorkspaceID, id, internal)
	if err != nil {
		h.fail(w, "render invoice failed", err)
		return
	}
	httpx.PDF(w, filename, pdf)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ident, id, ok := h.target(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), ident.WorkspaceID, id); err != nil {
		h.fail(w, "delete invoice failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) target(w http.ResponseWriter, r *http.Request) (shared.Identity, int64, bool) {
	ident, ok := shared.RequireIdentity(w, r)
	if !ok {
		return shared.Identity{}, 0, false
	}
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return shared.Identity{}, 0, false
	}
	return ident, id, true
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if httpx.StatusOf(err) >= http.StatusInternalServerError {
		h.logger.Error(msg, slog.Any("error", err))
	} else {
		h.logger.Debug(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

package estimates

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/SGK112/CRM-sub002/internal/platform/httpx"
	"github.com/SGK112/CRM-sub002/internal/shared"
)

// Handler serves the estimate API.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

type listResponse struct {
	Data       []Estimate        `json:"data"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ident, ok := shared.RequireIdentity(w, r)
	if !ok {
		return
	}
	var req CreateEstimateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	est, err := h.service.Create(r.Context(), ident, req)
	if err != nil {
		h.fail(w, "create estimate failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, est)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ident, ok := shared.RequireIdentity(w, r)
	if !ok {
		return
	}
	req := ListEstimatesRequest{WorkspaceID: ident.WorkspaceID}
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
		h.fail(w, "list estimates failed", err)
		return
	}
	if items == nil {
		items = []Estimate{}
	}
	httpx.JSON(w, http.StatusOK, listResponse{Data: items, Pagination: page})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	ident, id, ok := h.target(w, r)
	if !ok {
		return
	}
	est, err := h.service.Get(r.Context(), ident.WorkspaceID, id)
	if err != nil {
		h.fail(w, "get estimate failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, est)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	ident, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var req UpdateEstimateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	est, err := h.service.Update(r.Context(), ident.WorkspaceID, id, req)
	if err != nil {
		h.fail(w, "update estimate failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, est)
}

func (h *Handler) Recalc(w http.ResponseWriter, r *http.Request) {
	ident, id, ok := h.target(w, r)
	if !ok {
		return
	}
	est, err := h.service.Recalc(r.Context(), ident.WorkspaceID, id)
	if err != nil {
		h.fail(w, "recalc estimate failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, est)
}

func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	ident, id, ok := h.target(w, r)
	if !ok {
		return
	}
	res, err := h.service.Send(r.Context(), ident.WorkspaceID, id)
	if err != nil {
		h.fail(w, "send estimate failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) Accept(w http.ResponseWriter, r *http.Request) {
	ident, id, ok := h.target(w, r)
	if !ok {
		return
	}
	res, err := h.service.Accept(r.Context(), ident.WorkspaceID, id)
	if err != nil {
		h.fail(w, "accept estimate failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	ident, id, ok := h.target(w, r)
	if !ok {
		return
	}
	est, err := h.service.Reject(r.Context(), ident.WorkspaceID, id)
	if err != nil {
		h.fail(w, "reject estimate failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, est)
}

func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	ident, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var req SetStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	est, err := h.service.SetStatus(r.Context(), ident.WorkspaceID, id, req.Status)
	if err != nil {
		h.fail(w, "set estimate status failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, est)
}

func (h *Handler) PDF(w http.ResponseWriter, r *http.Request) {
	ident, id, ok := h.target(w, r)
	if !ok {
		return
	}
	pdf, filename, err := h.service.PDF(r.Context(), ident.WorkspaceID, id)
	if err != nil {
		h.fail(w, "render estimate failed", err)
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
		h.fail(w, "delete estimate failed", err)
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

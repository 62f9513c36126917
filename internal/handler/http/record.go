package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sharp-crm/crm-sub000/internal/domain"
	"github.com/sharp-crm/crm-sub000/internal/service"
	"github.com/sharp-crm/crm-sub000/pkg/httputil"
	"github.com/sharp-crm/crm-sub000/pkg/pagination"
	"github.com/sharp-crm/crm-sub000/pkg/validator"
)

// RecordHandler handles HTTP requests for one tenant-scoped entity kind. The
// same handler implementation is mounted once per kind.
type RecordHandler struct {
	service *service.RecordService
	kind    domain.RecordKind
	logger  *slog.Logger
}

// NewRecordHandler creates a record HTTP handler bound to a single kind.
func NewRecordHandler(svc *service.RecordService, kind domain.RecordKind, logger *slog.Logger) *RecordHandler {
	return &RecordHandler{service: svc, kind: kind, logger: logger}
}

// CreateRecordRequest is the JSON request body for record creation.
// Attributes carry the business fields and are stored opaquely.
type CreateRecordRequest struct {
	OwnerID    string         `json:"owner_id" validate:"omitempty,uuid"`
	VisibleTo  []string       `json:"visible_to" validate:"omitempty,dive,uuid"`
	Attributes map[string]any `json:"attributes"`
}

// UpdateRecordRequest is the JSON request body for record updates. Absent
// fields are left unchanged.
type UpdateRecordRequest struct {
	OwnerID    *string        `json:"owner_id" validate:"omitempty,uuid"`
	VisibleTo  *[]string      `json:"visible_to" validate:"omitempty,dive,uuid"`
	Attributes map[string]any `json:"attributes"`
}

// Create handles POST /api/v1/{kind}
func (h *RecordHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	caller := domain.IdentityFromContext(r.Context())
	if caller == nil {
		writeUnauthorized(w, "not authenticated")
		return
	}

	var req CreateRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	rec, err := h.service.Create(r.Context(), caller, h.kind, service.CreateRecordInput{
		OwnerID:    req.OwnerID,
		VisibleTo:  req.VisibleTo,
		Attributes: req.Attributes,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: rec})
}

// List handles GET /api/v1/{kind}
func (h *RecordHandler) List(w http.ResponseWriter, r *http.Request) {
	caller := domain.IdentityFromContext(r.Context())
	if caller == nil {
		writeUnauthorized(w, "not authenticated")
		return
	}

	includeDeleted := r.URL.Query().Get("include_deleted") == "true"
	params := pagination.FromRequest(r)

	records, total, err := h.service.ListByTenant(r.Context(), caller, h.kind, includeDeleted, params)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(records, total, params.Page, params.PerPage))
}

// Get handles GET /api/v1/{kind}/{id}
func (h *RecordHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller := domain.IdentityFromContext(r.Context())
	if caller == nil {
		writeUnauthorized(w, "not authenticated")
		return
	}

	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	rec, err := h.service.GetByID(r.Context(), caller, h.kind, id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: rec})
}

// Update handles PATCH /api/v1/{kind}/{id}
func (h *RecordHandler) Update(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	caller := domain.IdentityFromContext(r.Context())
	if caller == nil {
		writeUnauthorized(w, "not authenticated")
		return
	}

	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req UpdateRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	rec, err := h.service.Update(r.Context(), caller, h.kind, id.String(), service.UpdateRecordInput{
		OwnerID:    req.OwnerID,
		VisibleTo:  req.VisibleTo,
		Attributes: req.Attributes,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: rec})
}

// SoftDelete handles DELETE /api/v1/{kind}/{id}
func (h *RecordHandler) SoftDelete(w http.ResponseWriter, r *http.Request) {
	caller := domain.IdentityFromContext(r.Context())
	if caller == nil {
		writeUnauthorized(w, "not authenticated")
		return
	}

	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.SoftDelete(r.Context(), caller, h.kind, id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: map[string]string{"message": "record has been deleted"},
	})
}

// Restore handles POST /api/v1/{kind}/{id}/restore
func (h *RecordHandler) Restore(w http.ResponseWriter, r *http.Request) {
	caller := domain.IdentityFromContext(r.Context())
	if caller == nil {
		writeUnauthorized(w, "not authenticated")
		return
	}

	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.Restore(r.Context(), caller, h.kind, id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: map[string]string{"message": "record has been restored"},
	})
}

// Purge handles DELETE /api/v1/{kind}/{id}/purge
func (h *RecordHandler) Purge(w http.ResponseWriter, r *http.Request) {
	caller := domain.IdentityFromContext(r.Context())
	if caller == nil {
		writeUnauthorized(w, "not authenticated")
		return
	}

	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.HardDelete(r.Context(), caller, h.kind, id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: map[string]string{"message": "record has been permanently deleted"},
	})
}

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

// UserHandler handles HTTP requests for user administration endpoints.
type UserHandler struct {
	service *service.UserService
	logger  *slog.Logger
}

// NewUserHandler creates a new user administration HTTP handler.
func NewUserHandler(svc *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{service: svc, logger: logger}
}

// CreateUserRequest is the JSON request body for admin-driven user creation.
type CreateUserRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"first_name" validate:"required,min=1,max=100"`
	LastName  string `json:"last_name" validate:"required,min=1,max=100"`
	Phone     string `json:"phone" validate:"omitempty,max=30"`
	Role      string `json:"role" validate:"required,oneof=SUPER_ADMIN ADMIN SALES_MANAGER SALES_REP"`
}

// Create handles POST /api/v1/users
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	caller := domain.IdentityFromContext(r.Context())
	if caller == nil {
		writeUnauthorized(w, "not authenticated")
		return
	}

	var req CreateUserRequest
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

	user, err := h.service.CreateUser(r.Context(), caller, service.CreateUserInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Role:      req.Role,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: user})
}

// List handles GET /api/v1/users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	caller := domain.IdentityFromContext(r.Context())
	if caller == nil {
		writeUnauthorized(w, "not authenticated")
		return
	}

	includeDeleted := r.URL.Query().Get("include_deleted") == "true"
	params := pagination.FromRequest(r)

	users, total, err := h.service.ListTenantUsers(r.Context(), caller, includeDeleted, params)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(users, total, params.Page, params.PerPage))
}

// SoftDelete handles DELETE /api/v1/users/{id}
func (h *UserHandler) SoftDelete(w http.ResponseWriter, r *http.Request) {
	caller := domain.IdentityFromContext(r.Context())
	if caller == nil {
		writeUnauthorized(w, "not authenticated")
		return
	}

	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.SoftDeleteUser(r.Context(), caller, id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: map[string]string{"message": "user has been deleted"},
	})
}

// Restore handles POST /api/v1/users/{id}/restore
func (h *UserHandler) Restore(w http.ResponseWriter, r *http.Request) {
	caller := domain.IdentityFromContext(r.Context())
	if caller == nil {
		writeUnauthorized(w, "not authenticated")
		return
	}

	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.RestoreUser(r.Context(), caller, id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: map[string]string{"message": "user has been restored"},
	})
}

// Purge handles DELETE /api/v1/users/{id}/purge
func (h *UserHandler) Purge(w http.ResponseWriter, r *http.Request) {
	caller := domain.IdentityFromContext(r.Context())
	if caller == nil {
		writeUnauthorized(w, "not authenticated")
		return
	}

	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.HardDeleteUser(r.Context(), caller, id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: map[string]string{"message": "user has been permanently deleted"},
	})
}

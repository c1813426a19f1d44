package catalog

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pelorus-marine/pelorus/internal/access"
	"github.com/pelorus-marine/pelorus/internal/platform/httpx"
	"github.com/pelorus-marine/pelorus/internal/shared"
)

// Handler exposes catalog maintenance endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	guard   access.Middleware
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard access.Middleware) *Handler {
	return &Handler{logger: logger, service: service, guard: guard}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny(shared.PermPermissionsView, shared.PermPermissionsManage))
		r.Get("/", h.list)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAll(shared.PermPermissionsManage))
		r.Post("/", h.createBatch)
		r.Patch("/{id}", h.update)
		r.Post("/{id}/rename", h.rename)
		r.Delete("/{id}", h.delete)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.List(r.Context())
	if err != nil {
		h.fail(w, "list permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": permissionViews(perms)})
}

type createBatchRequest struct {
	Resource    string            `json:"resource"`
	Permissions []PermissionInput `json:"permissions"`
}

func (h *Handler) createBatch(w http.ResponseWriter, r *http.Request) {
	var req createBatchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	created, err := h.service.CreateBatch(r.Context(), h.actor(r), req.Resource, req.Permissions)
	if err != nil {
		var batchErr *BatchError
		if errors.As(err, &batchErr) {
			httpx.ProblemWithFields(w, http.StatusBadRequest, "Validation Failed", batchErr.Error(), batchErr.Rows)
			return
		}
		h.fail(w, "create permissions", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"permissions": permissionViews(created)})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var input UpdateInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	updated, err := h.service.Update(r.Context(), h.actor(r), id, input)
	if err != nil {
		h.fail(w, "update permission", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permission": permissionView(updated)})
}

type renameRequest struct {
	Slug    string `json:"slug"`
	Confirm string `json:"confirm"`
}

func (h *Handler) rename(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req renameRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	result, err := h.service.Rename(r.Context(), h.actor(r), id, req.Slug, req.Confirm)
	if err != nil {
		h.fail(w, "rename permission", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"permission": permissionView(result.Permission),
		"oldSlug":    result.OldSlug,
		"references": result.References,
	})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), h.actor(r), id); err != nil {
		h.fail(w, "delete permission", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) actor(r *http.Request) int64 {
	id, _ := shared.CurrentUserID(r.Context())
	return id
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid permission id")
		return 0, false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if h.logger != nil {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

// PermissionView is the JSON shape of one catalog entry.
type PermissionView struct {
	ID          int64  `json:"id"`
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Resource    string `json:"resource"`
	Status      string `json:"status"`
}

func permissionView(p access.Permission) PermissionView {
	return PermissionView{
		ID:          p.ID,
		Slug:        p.Slug,
		Name:        p.Name,
		Description: p.Description,
		Resource:    p.ResourceID,
		Status:      string(p.Status),
	}
}

func permissionViews(perms []access.Permission) []PermissionView {
	views := make([]PermissionView, 0, len(perms))
	for _, p := range perms {
		views = append(views, permissionView(p))
	}
	return views
}

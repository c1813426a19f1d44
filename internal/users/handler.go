package users

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pelorus-marine/pelorus/internal/access"
	"github.com/pelorus-marine/pelorus/internal/platform/httpx"
	"github.com/pelorus-marine/pelorus/internal/shared"
)

// Handler exposes user administration endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	guard   access.Middleware
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard access.Middleware) *Handler {
	return &Handler{logger: logger, service: service, guard: guard}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny(shared.PermUsersView, shared.PermUsersManage))
		r.Get("/", h.list)
		r.Get("/{id}/permissions", h.matrix)
		r.Get("/{id}/effective", h.effective)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAll(shared.PermUsersManage))
		r.Put("/{id}/role", h.assignRole)
		r.Post("/{id}/permissions/toggle", h.toggle)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context())
	if err != nil {
		h.fail(w, "list users", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": userViews(users)})
}

func (h *Handler) matrix(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	m, err := h.service.PermissionMatrix(r.Context(), id)
	if err != nil {
		h.fail(w, "permission matrix", err)
		return
	}
	httpx.JSON(w, http.StatusOK, matrixView(m))
}

func (h *Handler) effective(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	effective, err := h.service.EffectiveFor(r.Context(), id)
	if err != nil {
		h.fail(w, "effective permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"effective": effective.Slice()})
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var input AssignInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	user, err := h.service.AssignRole(r.Context(), h.actor(r), id, input)
	if err != nil {
		h.fail(w, "assign role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user": userView(user)})
}

type toggleRequest struct {
	Slug string `json:"slug"`
}

func (h *Handler) toggle(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req toggleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	result, err := h.service.Toggle(r.Context(), h.actor(r), id, req.Slug)
	if err != nil {
		h.fail(w, "toggle permission", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"noop":       result.NoOp,
		"state":      string(result.State),
		"additional": result.Override.Additional.Slice(),
		"excluded":   result.Override.Excluded.Slice(),
		"effective":  result.Effective.Slice(),
	})
}

func (h *Handler) actor(r *http.Request) int64 {
	id, _ := shared.CurrentUserID(r.Context())
	return id
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
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

// UserView is the JSON shape of one user row.
type UserView struct {
	ID         int64    `json:"id"`
	Email      string   `json:"email"`
	Name       string   `json:"name"`
	IsActive   bool     `json:"isActive"`
	RoleID     *int64   `json:"role"`
	RoleName   string   `json:"roleName,omitempty"`
	Additional []string `json:"additionalPermissions"`
	Excluded   []string `json:"excludedPermissions"`
}

func userView(u User) UserView {
	return UserView{
		ID:         u.ID,
		Email:      u.Email,
		Name:       u.Name,
		IsActive:   u.IsActive,
		RoleID:     u.RoleID,
		RoleName:   u.RoleName,
		Additional: u.Additional.Slice(),
		Excluded:   u.Excluded.Slice(),
	}
}

func userViews(users []User) []UserView {
	views := make([]UserView, 0, len(users))
	for _, u := range users {
		views = append(views, userView(u))
	}
	return views
}

type matrixEntry struct {
	Slug  string `json:"slug"`
	Name  string `json:"name"`
	State string `json:"state"`
}

func matrixView(m Matrix) map[string]any {
	entries := make([]matrixEntry, 0, len(m.Catalog))
	for _, p := range m.Catalog {
		entries = append(entries, matrixEntry{
			Slug:  p.Slug,
			Name:  p.Name,
			State: string(m.States[p.Slug]),
		})
	}
	view := map[string]any{
		"user":        userView(m.User),
		"permissions": entries,
		"effective":   m.Effective.Slice(),
	}
	if m.Role != nil {
		view["roleName"] = m.Role.Name
		view["superAdmin"] = m.Role.IsSuperAdmin()
	}
	return view
}

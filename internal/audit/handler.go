package audit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pelorus-marine/pelorus/internal/access"
	"github.com/pelorus-marine/pelorus/internal/platform/httpx"
	"github.com/pelorus-marine/pelorus/internal/shared"
)

// Handler exposes the audit timeline endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	guard   access.Middleware
	now     func() time.Time
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard access.Middleware) *Handler {
	return &Handler{logger: logger, service: service, guard: guard, now: time.Now}
}

// MountRoutes registers audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAll(shared.PermAuditView))
		r.Get("/", h.timeline)
		r.Get("/export", h.export)
	})
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	filters := h.parseFilters(r)
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.logger.Error("audit timeline", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"entries": entryViews(result.Rows),
		"paging": map[string]any{
			"page":     result.Paging.Page,
			"pageSize": result.Paging.PageSize,
			"hasNext":  result.Paging.HasNext,
		},
	})
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	filters := h.parseFilters(r)
	rows, err := h.service.Export(r.Context(), filters)
	if err != nil {
		h.logger.Error("audit export", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	data, err := WriteCSV(rows)
	if err != nil {
		h.logger.Error("audit export csv", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="audit-log.csv"`)
	_, _ = w.Write(data)
}

// parseFilters reads query parameters, defaulting to the last 7 days.
func (h *Handler) parseFilters(r *http.Request) TimelineFilters {
	q := r.URL.Query()
	filters := TimelineFilters{
		Entity: q.Get("entity"),
		Action: q.Get("action"),
	}
	if v, err := strconv.ParseInt(q.Get("actor"), 10, 64); err == nil {
		filters.ActorID = v
	}
	if v, err := strconv.Atoi(q.Get("page")); err == nil {
		filters.Page = v
	}
	if v, err := strconv.Atoi(q.Get("pageSize")); err == nil {
		filters.PageSize = v
	}
	if v, err := time.Parse(time.RFC3339, q.Get("from")); err == nil {
		filters.From = v
	}
	if v, err := time.Parse(time.RFC3339, q.Get("to")); err == nil {
		filters.To = v
	}
	if filters.From.IsZero() && filters.To.IsZero() {
		now := h.now()
		filters.To = now
		filters.From = now.Add(-7 * 24 * time.Hour)
	}
	return filters
}

type entryView struct {
	At       time.Time      `json:"at"`
	ActorID  int64          `json:"actorId"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entityId"`
	Meta     map[string]any `json:"meta,omitempty"`
}

func entryViews(rows []TimelineRow) []entryView {
	views := make([]entryView, 0, len(rows))
	for _, row := range rows {
		views = append(views, entryView{
			At:       row.At,
			ActorID:  row.ActorID,
			Action:   row.Action,
			Entity:   row.Entity,
			EntityID: row.EntityID,
			Meta:     row.Meta,
		})
	}
	return views
}

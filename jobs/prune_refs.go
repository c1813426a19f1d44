package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/pelorus-marine/pelorus/internal/jobs"
)

// RefPruner removes every stored reference to a slug.
type RefPruner interface {
	PruneReferences(ctx context.Context, slug string) (int64, error)
}

// SnapshotInvalidator drops the cached catalog snapshot.
type SnapshotInvalidator interface {
	Invalidate(ctx context.Context) error
}

// PruneRefsHandler processes TaskCatalogPruneRefs tasks. Between the
// catalog edit and this job running, the resolver masks the stale slug,
// so retries are harmless.
type PruneRefsHandler struct {
	pruner  RefPruner
	cache   SnapshotInvalidator
	metrics *jobmetrics.Metrics
	logger  *slog.Logger
}

// NewPruneRefsHandler constructs a handler instance. cache and metrics
// may be nil.
func NewPruneRefsHandler(pruner RefPruner, cache SnapshotInvalidator, metrics *jobmetrics.Metrics, logger *slog.Logger) *PruneRefsHandler {
	return &PruneRefsHandler{pruner: pruner, cache: cache, metrics: metrics, logger: logger}
}

// Handle executes one prune run.
func (h *PruneRefsHandler) Handle(ctx context.Context, t *asynq.Task) error {
	var payload PruneRefsPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Slug == "" {
		return asynq.SkipRetry
	}

	tracker := h.metrics.Track("catalog_prune_refs")
	pruned, err := h.pruner.PruneReferences(ctx, payload.Slug)
	if err != nil {
		if h.logger != nil {
			h.logger.Error("prune refs", slog.String("slug", payload.Slug), slog.Any("error", err))
		}
		return tracker.End(err)
	}
	h.metrics.AddPrunedRefs(pruned)

	if h.cache != nil {
		if err := h.cache.Invalidate(ctx); err != nil && h.logger != nil {
			h.logger.Warn("invalidate snapshot after prune", slog.Any("error", err))
		}
	}
	if h.logger != nil {
		h.logger.Info("pruned stale references",
			slog.String("slug", payload.Slug), slog.Int64("rows", pruned))
	}
	return tracker.End(nil)
}

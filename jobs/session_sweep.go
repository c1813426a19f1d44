package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/pelorus-marine/pelorus/internal/jobs"
)

// SessionSweepHandler deletes expired login sessions from postgres. The
// redis copy expires on its own; the postgres rows only exist for audit
// trails and would otherwise grow without bound.
type SessionSweepHandler struct {
	pool    *pgxpool.Pool
	metrics *jobmetrics.Metrics
	logger  *slog.Logger
}

// NewSessionSweepHandler constructs a handler instance.
func NewSessionSweepHandler(pool *pgxpool.Pool, metrics *jobmetrics.Metrics, logger *slog.Logger) *SessionSweepHandler {
	return &SessionSweepHandler{pool: pool, metrics: metrics, logger: logger}
}

// Handle executes one sweep run.
func (h *SessionSweepHandler) Handle(ctx context.Context, _ *asynq.Task) error {
	tracker := h.metrics.Track("session_sweep")
	tag, err := h.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < NOW()`)
	if err != nil {
		if h.logger != nil {
			h.logger.Error("session sweep", slog.Any("error", err))
		}
		return tracker.End(err)
	}
	if h.logger != nil && tag.RowsAffected() > 0 {
		h.logger.Info("swept expired sessions", slog.Int64("rows", tag.RowsAffected()))
	}
	return tracker.End(nil)
}

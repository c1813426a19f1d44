package jobs

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskCatalogPruneRefs removes a retired slug from role baselines and
	// user overrides.
	TaskCatalogPruneRefs = "catalog:prune_refs"
	// TaskSessionSweep purges expired login sessions from postgres.
	TaskSessionSweep = "sessions:sweep"
)

// PruneRefsPayload names the slug whose references must be removed.
type PruneRefsPayload struct {
	Slug string `json:"slug"`
}

// NewPruneRefsTask constructs an Asynq task for reference pruning.
func NewPruneRefsTask(payload PruneRefsPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCatalogPruneRefs, data), nil
}

// NewSessionSweepTask constructs an Asynq task for session cleanup.
func NewSessionSweepTask() *asynq.Task {
	return asynq.NewTask(TaskSessionSweep, nil)
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) (*Client, error) {
	client := asynq.NewClient(redisOpts)
	return &Client{client: client}, nil
}

// EnqueuePrune schedules pruning of one slug. Satisfies the catalog
// service's enqueuer port.
func (c *Client) EnqueuePrune(ctx context.Context, slug string) error {
	task, err := NewPruneRefsTask(PruneRefsPayload{Slug: slug})
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault), asynq.MaxRetry(5))
	return err
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}

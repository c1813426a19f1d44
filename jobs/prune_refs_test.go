package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
)

type stubPruner struct {
	slugs  []string
	pruned int64
	err    error
}

func (s *stubPruner) PruneReferences(ctx context.Context, slug string) (int64, error) {
	s.slugs = append(s.slugs, slug)
	return s.pruned, s.err
}

type stubInvalidator struct {
	calls int
}

func (s *stubInvalidator) Invalidate(ctx context.Context) error {
	s.calls++
	return nil
}

func TestPruneRefsHandler(t *testing.T) {
	pruner := &stubPruner{pruned: 3}
	cache := &stubInvalidator{}
	handler := NewPruneRefsHandler(pruner, cache, nil, nil)

	task, err := NewPruneRefsTask(PruneRefsPayload{Slug: "voyage.chart"})
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	if err := handler.Handle(context.Background(), task); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(pruner.slugs) != 1 || pruner.slugs[0] != "voyage.chart" {
		t.Fatalf("pruned slugs = %v", pruner.slugs)
	}
	if cache.calls != 1 {
		t.Fatalf("snapshot must be invalidated after pruning, calls = %d", cache.calls)
	}
}

func TestPruneRefsHandlerSkipsBadPayload(t *testing.T) {
	pruner := &stubPruner{}
	handler := NewPruneRefsHandler(pruner, nil, nil, nil)

	task := asynq.NewTask(TaskCatalogPruneRefs, []byte(`{`))
	if err := handler.Handle(context.Background(), task); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
	if len(pruner.slugs) != 0 {
		t.Fatalf("no prune may run on a bad payload")
	}
}

func TestPruneRefsHandlerPropagatesError(t *testing.T) {
	pruner := &stubPruner{err: errors.New("boom")}
	handler := NewPruneRefsHandler(pruner, nil, nil, nil)

	task, err := NewPruneRefsTask(PruneRefsPayload{Slug: "voyage.chart"})
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	if err := handler.Handle(context.Background(), task); err == nil {
		t.Fatal("expected error to propagate for retry")
	}
}

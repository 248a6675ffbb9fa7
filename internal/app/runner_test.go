package app_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/edgard/leadscout/internal/app"
	"github.com/edgard/leadscout/internal/extractor"
)

type fakePipeline struct {
	mu      sync.Mutex
	runs    int
	results []extractor.SourceResult
	block   chan struct{}
}

func (f *fakePipeline) Run(context.Context) *extractor.RunReport {
	f.mu.Lock()
	f.runs++
	f.mu.Unlock()

	if f.block != nil {
		<-f.block
	}
	return &extractor.RunReport{ID: "run", Results: f.results}
}

func (f *fakePipeline) runCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTriggerRunEnforcesMinInterval(t *testing.T) {
	t.Parallel()

	pipeline := &fakePipeline{}
	runner := app.NewRunner(pipeline, nil, time.Hour, 3, discardLogger())
	ctx := context.Background()

	if _, err := runner.TriggerRun(ctx); err != nil {
		t.Fatalf("first TriggerRun() error = %v", err)
	}

	_, err := runner.TriggerRun(ctx)
	if !errors.Is(err, app.ErrTooSoon) {
		t.Fatalf("expected ErrTooSoon, got %v", err)
	}
	if pipeline.runCount() != 1 {
		t.Errorf("pipeline ran %d times, want 1", pipeline.runCount())
	}
}

func TestTriggerRunRejectsOverlap(t *testing.T) {
	t.Parallel()

	pipeline := &fakePipeline{block: make(chan struct{})}
	runner := app.NewRunner(pipeline, nil, 0, 3, discardLogger())
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = runner.TriggerRun(ctx)
	}()

	// Wait until the first run is inside the pipeline.
	for pipeline.runCount() == 0 {
		time.Sleep(time.Millisecond)
	}

	_, err := runner.TriggerRun(ctx)
	if !errors.Is(err, app.ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}

	close(pipeline.block)
	<-done
}

func TestTriggerRunAllowsAfterInterval(t *testing.T) {
	t.Parallel()

	pipeline := &fakePipeline{}
	runner := app.NewRunner(pipeline, nil, 0, 3, discardLogger())
	ctx := context.Background()

	if _, err := runner.TriggerRun(ctx); err != nil {
		t.Fatalf("first TriggerRun() error = %v", err)
	}
	if _, err := runner.TriggerRun(ctx); err != nil {
		t.Fatalf("second TriggerRun() error = %v", err)
	}
	if pipeline.runCount() != 2 {
		t.Errorf("pipeline ran %d times, want 2", pipeline.runCount())
	}
}

func TestBackoffAfterFullFailure(t *testing.T) {
	t.Parallel()

	// Every source fails: the effective minimum interval stretches, so an
	// immediate retry within the base interval is rejected for longer.
	pipeline := &fakePipeline{results: []extractor.SourceResult{
		{Source: "PageA", Err: errors.New("boom")},
	}}
	runner := app.NewRunner(pipeline, nil, 50*time.Millisecond, 3, discardLogger())
	ctx := context.Background()

	if _, err := runner.TriggerRun(ctx); err != nil {
		t.Fatalf("TriggerRun() error = %v", err)
	}

	// Base interval elapsed, but the failure doubled the effective wait.
	time.Sleep(60 * time.Millisecond)
	if _, err := runner.TriggerRun(ctx); !errors.Is(err, app.ErrTooSoon) {
		t.Fatalf("expected ErrTooSoon during backoff, got %v", err)
	}

	time.Sleep(60 * time.Millisecond)
	if _, err := runner.TriggerRun(ctx); err != nil {
		t.Fatalf("TriggerRun() after backoff window error = %v", err)
	}
}

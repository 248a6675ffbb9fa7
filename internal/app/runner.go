package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/edgard/leadscout/internal/extractor"
	"github.com/edgard/leadscout/internal/notify"
)

// ErrRunInProgress is returned when a run is triggered while a previous
// one is still executing. Runs never overlap.
var ErrRunInProgress = errors.New("extraction run already in progress")

// ErrTooSoon is returned when a run is triggered before the minimum
// interval since the last attempt has elapsed.
var ErrTooSoon = errors.New("minimum interval since last run not elapsed")

// Pipeline runs a full extraction across all sources. Implemented by
// *extractor.Pipeline.
type Pipeline interface {
	Run(ctx context.Context) *extractor.RunReport
}

// Runner serializes extraction runs and enforces the scheduling policy:
// no overlapping runs, a minimum interval between attempts, and backoff
// after consecutive fully-failed runs. Both the scheduler and the manual
// HTTP trigger go through it.
type Runner struct {
	pipeline    Pipeline
	notifier    *notify.Notifier
	minInterval time.Duration
	maxFailures int
	log         *slog.Logger

	mu          sync.Mutex
	running     bool
	lastAttempt time.Time
	failures    int
}

// NewRunner creates a Runner. maxFailures caps the backoff multiplier
// applied to minInterval after consecutive fully-failed runs.
func NewRunner(pipeline Pipeline, notifier *notify.Notifier, minInterval time.Duration, maxFailures int, log *slog.Logger) *Runner {
	return &Runner{
		pipeline:    pipeline,
		notifier:    notifier,
		minInterval: minInterval,
		maxFailures: maxFailures,
		log:         log.With("component", "runner"),
	}
}

// TriggerRun executes one extraction run if allowed by the policy. The
// returned report covers all sources; per-source failures are inside it.
func (r *Runner) TriggerRun(ctx context.Context) (*extractor.RunReport, error) {
	if err := r.acquire(); err != nil {
		return nil, err
	}
	defer r.release()

	report := r.pipeline.Run(ctx)

	r.recordOutcome(report)
	r.notifier.NotifyRun(ctx, report)

	return report, nil
}

func (r *Runner) acquire() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return ErrRunInProgress
	}

	wait := r.effectiveMinInterval()
	if !r.lastAttempt.IsZero() && time.Since(r.lastAttempt) < wait {
		return ErrTooSoon
	}

	r.running = true
	r.lastAttempt = time.Now()
	return nil
}

func (r *Runner) release() {
	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
}

// effectiveMinInterval stretches the minimum interval after consecutive
// runs in which every source failed, capped at maxFailures multiples.
func (r *Runner) effectiveMinInterval() time.Duration {
	multiplier := r.failures + 1
	if multiplier > r.maxFailures {
		multiplier = r.maxFailures
	}
	return r.minInterval * time.Duration(multiplier)
}

func (r *Runner) recordOutcome(report *extractor.RunReport) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(report.Results) > 0 && len(report.FailedSources()) == len(report.Results) {
		r.failures++
		r.log.Warn("All sources failed this run", "consecutive_failures", r.failures)
		return
	}
	r.failures = 0
}

// Package extractor drives the extraction pipeline: it fetches inbox
// messages per tracked source, applies the phone matcher, and merges the
// resulting candidates into the store.
package extractor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/edgard/leadscout/internal/config"
	"github.com/edgard/leadscout/internal/database"
	"github.com/edgard/leadscout/internal/graph"
	"github.com/edgard/leadscout/internal/phone"
)

// Fetcher retrieves inbox messages for a credential. Satisfied by
// *graph.Client.
type Fetcher interface {
	FetchMessages(ctx context.Context, token string, opts graph.FetchOptions) ([]graph.Message, error)
}

// SourceResult is the outcome for one source within a run. Err is set when
// the fetch failed; candidates accumulated before the failure are still
// merged, so New and Skipped can be non-zero alongside a non-nil Err.
type SourceResult struct {
	Source  string
	New     int
	Skipped int
	Err     error
}

// RunReport summarizes one full extraction run across all sources.
type RunReport struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []SourceResult
}

// TotalNew returns the number of records added across all sources.
func (r *RunReport) TotalNew() int {
	total := 0
	for _, res := range r.Results {
		total += res.New
	}
	return total
}

// TotalSkipped returns the number of duplicate candidates across all
// sources.
func (r *RunReport) TotalSkipped() int {
	total := 0
	for _, res := range r.Results {
		total += res.Skipped
	}
	return total
}

// FailedSources returns the names of sources whose fetch failed.
func (r *RunReport) FailedSources() []string {
	var failed []string
	for _, res := range r.Results {
		if res.Err != nil {
			failed = append(failed, res.Source)
		}
	}
	return failed
}

type seenKey struct {
	createdTime string
	body        string
}

// Pipeline extracts phone candidates from all configured sources. Sources
// are independent: a failure in one never blocks the others. Fetches may
// run concurrently, but every merge is funneled through a single
// serialization point.
type Pipeline struct {
	fetcher     Fetcher
	store       database.Store
	matcher     phone.Matcher
	sources     []config.Source
	fetchOpts   graph.FetchOptions
	concurrency int
	log         *slog.Logger

	// now is replaceable in tests.
	now func() time.Time

	// mergeMu serializes MergeCandidates calls across concurrent source
	// goroutines.
	mergeMu sync.Mutex

	// seen tracks (created_time, body) pairs already scanned per source in
	// this process. Optimization only; the persisted (phone, source) key
	// remains the authoritative dedup mechanism.
	seenMu sync.Mutex
	seen   map[string]map[seenKey]struct{}
}

// NewPipeline creates a Pipeline. Concurrency caps how many sources are
// fetched in parallel; values below 1 mean sequential.
func NewPipeline(
	fetcher Fetcher,
	store database.Store,
	matcher phone.Matcher,
	sources []config.Source,
	fetchOpts graph.FetchOptions,
	concurrency int,
	log *slog.Logger,
) *Pipeline {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pipeline{
		fetcher:     fetcher,
		store:       store,
		matcher:     matcher,
		sources:     sources,
		fetchOpts:   fetchOpts,
		concurrency: concurrency,
		log:         log.With("component", "extractor"),
		now:         time.Now,
		seen:        make(map[string]map[seenKey]struct{}),
	}
}

// Extract fetches the source's inbox and returns one candidate per phone
// match, with provenance. On fetch failure the candidates accumulated from
// messages retrieved before the failure are returned alongside the error.
func (p *Pipeline) Extract(ctx context.Context, source config.Source) ([]database.Candidate, error) {
	opts := p.fetchOpts
	opts.Since = startOfDay(p.now().UTC())

	messages, fetchErr := p.fetcher.FetchMessages(ctx, source.Token, opts)

	var candidates []database.Candidate
	for _, msg := range messages {
		if p.alreadySeen(source.Name, msg) {
			continue
		}

		for _, match := range p.matcher.Match(msg.Body) {
			candidates = append(candidates, database.Candidate{
				Sender:      msg.Sender,
				Body:        msg.Body,
				Phone:       match,
				MessageTime: msg.CreatedTime,
				Source:      source.Name,
			})
		}

		p.markSeen(source.Name, msg)
	}

	return candidates, fetchErr
}

// Run extracts all configured sources, merging each source's candidates as
// it completes. Per-source failures are recorded in the report and never
// abort the run.
func (p *Pipeline) Run(ctx context.Context) *RunReport {
	report := &RunReport{
		ID:        uuid.NewString(),
		StartedAt: p.now().UTC(),
		Results:   make([]SourceResult, len(p.sources)),
	}

	p.log.InfoContext(ctx, "Starting extraction run", "run_id", report.ID, "sources", len(p.sources))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for i, source := range p.sources {
		g.Go(func() error {
			report.Results[i] = p.runSource(gCtx, source)
			return nil
		})
	}
	_ = g.Wait() // Goroutines always return nil; failures live in the report.

	report.FinishedAt = p.now().UTC()
	p.log.InfoContext(ctx, "Extraction run finished",
		"run_id", report.ID,
		"new", report.TotalNew(),
		"skipped", report.TotalSkipped(),
		"failed_sources", report.FailedSources(),
		"duration", report.FinishedAt.Sub(report.StartedAt))

	return report
}

func (p *Pipeline) runSource(ctx context.Context, source config.Source) SourceResult {
	result := SourceResult{Source: source.Name}
	log := p.log.With("source", source.Name)

	candidates, err := p.Extract(ctx, source)
	if err != nil {
		// Skip-and-continue: report the failure, keep partial candidates.
		log.ErrorContext(ctx, "Fetch failed", "error", err, "partial_candidates", len(candidates))
		result.Err = err
	}

	if len(candidates) == 0 {
		return result
	}

	fetchTime := p.now().UTC()

	p.mergeMu.Lock()
	defer p.mergeMu.Unlock()

	// Every fetched candidate is logged, independently of how the merge
	// turns out. Audit writes are best-effort: a failure here never fails
	// or rolls back the merge.
	if auditErr := p.store.AppendAuditEntries(ctx, fetchTime, candidates); auditErr != nil {
		log.WarnContext(ctx, "Audit append failed", "error", auditErr)
	}

	newCount, skipped, mergeErr := p.store.MergeCandidates(ctx, candidates)
	if mergeErr != nil {
		log.ErrorContext(ctx, "Merge failed, store remains at last good snapshot", "error", mergeErr)
		result.Err = mergeErr
		return result
	}
	result.New = newCount
	result.Skipped = skipped

	log.InfoContext(ctx, "Source processed", "candidates", len(candidates), "new", newCount, "skipped", skipped)
	return result
}

func (p *Pipeline) alreadySeen(source string, msg graph.Message) bool {
	p.seenMu.Lock()
	defer p.seenMu.Unlock()

	_, ok := p.seen[source][seenKey{msg.CreatedTime, msg.Body}]
	return ok
}

func (p *Pipeline) markSeen(source string, msg graph.Message) {
	p.seenMu.Lock()
	defer p.seenMu.Unlock()

	if p.seen[source] == nil {
		p.seen[source] = make(map[seenKey]struct{})
	}
	p.seen[source][seenKey{msg.CreatedTime, msg.Body}] = struct{}{}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/latticehq/lattice/internal/curation"
	"github.com/latticehq/lattice/internal/fingerprint"
	"github.com/latticehq/lattice/internal/hooks"
	"github.com/latticehq/lattice/internal/model"
)

// Extractor is the LLM collaborator.
type Extractor interface {
	Extract(ctx context.Context, doc model.Document, allowedTypes []string) ([]model.Entity, model.ExtractionMetadata, error)
}

// Store is the graph persistence collaborator.
type Store interface {
	PersistDocument(ctx context.Context, namespace string, doc model.Document) error
	PersistEntities(ctx context.Context, namespace, docID string, entities []model.Entity) ([]string, error)
	LinkMentions(ctx context.Context, namespace, docID string, entityIDs []string, entities []model.Entity) error
}

// Orchestrator drives documents through extract, normalize, deduplicate, and
// store. One orchestrator serves one Run at a time.
type Orchestrator struct {
	Extractor    Extractor
	Store        Store
	Fingerprints fingerprint.Store
	Hooks        *hooks.Registry
	Curator      *curation.Engine
	Log          *slog.Logger

	events chan model.ProgressEvent
}

func New(extractor Extractor, store Store, fps fingerprint.Store, registry *hooks.Registry, curator *curation.Engine) *Orchestrator {
	if registry == nil {
		registry = hooks.NewRegistry()
		hooks.RegisterDefaults(registry)
	}
	if curator != nil {
		registry.RegisterAfterBatch("deduplicate", func(ctx context.Context, entities []model.Entity) ([]model.MergeProposal, error) {
			return curator.Propose(entities), nil
		})
	}
	return &Orchestrator{
		Extractor:    extractor,
		Store:        store,
		Fingerprints: fps,
		Hooks:        registry,
		Curator:      curator,
		Log:          slog.Default(),
		events:       make(chan model.ProgressEvent, 256),
	}
}

// Events is the per-document status stream. Sends never block: events are
// dropped when the consumer lags. The channel closes when Run returns.
func (o *Orchestrator) Events() <-chan model.ProgressEvent {
	return o.events
}

// docState is the per-document bookkeeping for one batch.
type docState struct {
	doc      model.Document
	status   model.DocStatus
	entities []model.Entity
	meta     model.ExtractionMetadata
	err      error
	started  time.Time
}

// Run processes docs in fixed-size contiguous batches and returns run-level
// statistics. Partial failure never yields an error; only the abort threshold
// and context cancellation do, and even then the partial stats are returned.
func (o *Orchestrator) Run(ctx context.Context, namespace string, docs []model.Document, opts Options) (model.RunStats, error) {
	opts.setDefaults()
	defer close(o.events)

	start := time.Now()
	stats := model.RunStats{
		RunID:     ulid.Make().String(),
		Namespace: namespace,
		DryRun:    opts.DryRun,
	}
	consecutive := 0

	o.Log.Info("pipeline run started",
		"run_id", stats.RunID,
		"namespace", namespace,
		"documents", len(docs),
		"batch_size", opts.BatchSize,
		"dry_run", opts.DryRun,
	)

	for batchStart := 0; batchStart < len(docs); batchStart += opts.BatchSize {
		batchEnd := batchStart + opts.BatchSize
		if batchEnd > len(docs) {
			batchEnd = len(docs)
		}
		batch := docs[batchStart:batchEnd]

		states, abortErr := o.runBatch(ctx, namespace, batch, opts, &stats, &consecutive)
		if abortErr != nil {
			o.markNotAttempted(states, &stats)
			for _, doc := range docs[batchEnd:] {
				stats.NotAttempted++
				o.emit(model.ProgressEvent{DocID: doc.ID(), Status: model.StatusNotAttempted})
			}
			stats.Aborted = true
			stats.Duration = time.Since(start)
			o.Log.Error("pipeline run aborted", "run_id", stats.RunID, "err", abortErr)
			return stats, abortErr
		}
		if err := ctx.Err(); err != nil {
			o.markNotAttempted(states, &stats)
			for range docs[batchEnd:] {
				stats.NotAttempted++
			}
			stats.Aborted = true
			stats.Duration = time.Since(start)
			return stats, err
		}
	}

	stats.Duration = time.Since(start)
	o.Log.Info("pipeline run finished",
		"run_id", stats.RunID,
		"processed", stats.Processed,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"entities", stats.Entities,
		"duration", stats.Duration,
	)
	return stats, nil
}

// runBatch drives one batch end to end. A non-nil abort error (threshold
// reached, or a cancelled merge prompt) terminates the run; states not yet
// terminal at that point were never attempted.
func (o *Orchestrator) runBatch(ctx context.Context, namespace string, batch []model.Document, opts Options, stats *model.RunStats, consecutive *int) ([]*docState, error) {
	states := make([]*docState, len(batch))
	for i, doc := range batch {
		states[i] = &docState{doc: doc, status: model.StatusPending, started: time.Now()}
	}

	// Skip pass: fingerprint lookups stay sequential so their results are
	// attributable before any extraction is issued. Skips are counted here,
	// so an abort later in the batch never loses them.
	for _, st := range states {
		if opts.Force {
			continue
		}
		done, err := o.Fingerprints.HasProcessed(ctx, namespace, st.doc.ID(), st.doc.Fingerprint)
		if err != nil {
			st.err = &model.StoreError{DocID: st.doc.ID(), Err: err}
			continue
		}
		if done {
			st.status = model.StatusSkipped
			stats.Skipped++
			o.emit(model.ProgressEvent{DocID: st.doc.ID(), Status: model.StatusSkipped})
		}
	}

	// With workers > 1 the whole batch's extraction calls are issued up
	// front; in-flight calls run to completion even if a later reduction
	// step aborts. The sequential default extracts inline below, so an
	// abort stops before the next document is attempted.
	concurrent := opts.ExtractWorkers > 1
	if concurrent {
		o.extractBatch(ctx, states, opts)
	}

	// Reduction point: everything below runs on a single goroutine and in
	// input order, so counters and the batch snapshot are race-free.
	var batchEntities []model.Entity
	ranges := make([][2]int, len(states))
	aborted := false

	for i, st := range states {
		if aborted {
			break
		}
		if st.status == model.StatusSkipped {
			continue
		}

		if !concurrent && st.err == nil {
			st.status = model.StatusExtracting
			o.emit(model.ProgressEvent{DocID: st.doc.ID(), Status: model.StatusExtracting})
			st.entities, st.meta, st.err = o.Extractor.Extract(ctx, st.doc, opts.Types)
		}

		if st.err != nil {
			o.failDocument(ctx, st, stats)
			*consecutive++
			if *consecutive >= opts.MaxConsecutiveFailures {
				aborted = true
			}
			continue
		}

		// A successful extraction breaks the failure streak even though
		// persistence happens at the batch boundary.
		*consecutive = 0
		st.status = model.StatusNormalizing
		o.emit(model.ProgressEvent{DocID: st.doc.ID(), Status: model.StatusNormalizing, Entities: len(st.entities)})

		st.entities = filterConfidence(st.entities, opts.MinConfidence)
		for _, w := range o.Hooks.RunBeforeStore(ctx, st.doc, st.entities) {
			o.warn(stats, w)
		}

		from := len(batchEntities)
		batchEntities = append(batchEntities, st.entities...)
		ranges[i] = [2]int{from, len(batchEntities)}
	}

	if aborted {
		return states, model.ErrAbortThreshold
	}

	// Batch boundary: batch hooks, then curation over the full entity set.
	proposals, warnings := o.Hooks.RunAfterBatch(ctx, batchEntities)
	for _, w := range warnings {
		o.warn(stats, w)
	}
	if o.Curator != nil {
		for _, p := range proposals {
			decision, err := o.Curator.Resolve(ctx, p)
			if err != nil {
				return states, err
			}
			if decision.Accept {
				curation.ApplyMerge(batchEntities, p, decision.CanonicalName)
			}
		}
	}

	// Merges were applied to the shared slice; fold them back per document
	// before persistence.
	for i, st := range states {
		if st.status == model.StatusNormalizing {
			st.entities = batchEntities[ranges[i][0]:ranges[i][1]]
		}
	}

	for _, st := range states {
		if st.status != model.StatusNormalizing {
			continue
		}
		if opts.DryRun {
			st.status = model.StatusDryRun
			o.finishDocument(st, stats, consecutive)
			continue
		}

		st.status = model.StatusStoring
		o.emit(model.ProgressEvent{DocID: st.doc.ID(), Status: model.StatusStoring, Entities: len(st.entities)})

		if err := o.persistDocument(ctx, namespace, st); err != nil {
			st.err = err
			o.failDocument(ctx, st, stats)
			*consecutive++
			if *consecutive >= opts.MaxConsecutiveFailures {
				return states, model.ErrAbortThreshold
			}
			continue
		}
		o.finishDocument(st, stats, consecutive)
	}

	return states, nil
}

// extractBatch issues the extraction calls, concurrently when configured.
// Skipped and already-failed documents are left alone.
func (o *Orchestrator) extractBatch(ctx context.Context, states []*docState, opts Options) {
	sem := make(chan struct{}, opts.ExtractWorkers)
	var wg sync.WaitGroup

	for _, st := range states {
		if st.status == model.StatusSkipped || st.err != nil {
			continue
		}
		st.status = model.StatusExtracting
		o.emit(model.ProgressEvent{DocID: st.doc.ID(), Status: model.StatusExtracting})

		wg.Add(1)
		sem <- struct{}{}
		go func(st *docState) {
			defer wg.Done()
			defer func() { <-sem }()
			st.entities, st.meta, st.err = o.Extractor.Extract(ctx, st.doc, opts.Types)
		}(st)
	}
	wg.Wait()
}

// persistDocument stores the document, its entities, and mention links, then
// records the fingerprint. The fingerprint write happens last so an
// interruption leaves the document unrecorded and retryable.
func (o *Orchestrator) persistDocument(ctx context.Context, namespace string, st *docState) error {
	if err := o.Store.PersistDocument(ctx, namespace, st.doc); err != nil {
		return err
	}
	ids, err := o.Store.PersistEntities(ctx, namespace, st.doc.ID(), st.entities)
	if err != nil {
		return err
	}
	if err := o.Store.LinkMentions(ctx, namespace, st.doc.ID(), ids, st.entities); err != nil {
		return err
	}
	if err := o.Fingerprints.Put(ctx, namespace, st.doc.ID(), st.doc.Fingerprint, time.Now().UTC()); err != nil {
		return &model.StoreError{DocID: st.doc.ID(), Err: err}
	}
	return nil
}

func (o *Orchestrator) finishDocument(st *docState, stats *model.RunStats, consecutive *int) {
	terminal := st.status
	if terminal != model.StatusDryRun {
		terminal = model.StatusProcessed
	}
	st.status = model.StatusProcessed
	*consecutive = 0
	stats.Processed++
	stats.Entities += len(st.entities)
	stats.TokensUsed += st.meta.TokensUsed
	for _, ent := range st.entities {
		stats.Relationships += len(ent.Relations)
	}
	o.emit(model.ProgressEvent{
		DocID:    st.doc.ID(),
		Status:   terminal,
		Entities: len(st.entities),
		Elapsed:  time.Since(st.started),
	})
}

func (o *Orchestrator) failDocument(ctx context.Context, st *docState, stats *model.RunStats) {
	st.status = model.StatusFailed
	stats.Failed++
	stats.Failures = append(stats.Failures, model.DocFailure{DocID: st.doc.ID(), Cause: st.err.Error()})
	o.Log.Warn("document failed", "doc_id", st.doc.ID(), "err", st.err)
	for _, w := range o.Hooks.RunOnFailure(ctx, st.doc, st.err) {
		o.warn(stats, w)
	}
	o.emit(model.ProgressEvent{
		DocID:   st.doc.ID(),
		Status:  model.StatusFailed,
		Elapsed: time.Since(st.started),
		Err:     st.err.Error(),
	})
}

func (o *Orchestrator) markNotAttempted(states []*docState, stats *model.RunStats) {
	for _, st := range states {
		if st.status == model.StatusPending || st.status == model.StatusNormalizing || st.status == model.StatusExtracting {
			stats.NotAttempted++
			o.emit(model.ProgressEvent{DocID: st.doc.ID(), Status: model.StatusNotAttempted})
		}
	}
}

func (o *Orchestrator) warn(stats *model.RunStats, herr *model.HookError) {
	stats.Warnings = append(stats.Warnings, herr.Error())
	o.Log.Warn("hook failed", "hook", herr.Hook, "err", herr.Unwrap())
}

func (o *Orchestrator) emit(ev model.ProgressEvent) {
	select {
	case o.events <- ev:
	default:
		// Consumer is lagging or absent; drop rather than stall the run.
	}
}

func filterConfidence(entities []model.Entity, min float64) []model.Entity {
	if min <= 0 {
		return entities
	}
	kept := entities[:0]
	for _, ent := range entities {
		if ent.Confidence >= min {
			kept = append(kept, ent)
		}
	}
	return kept
}

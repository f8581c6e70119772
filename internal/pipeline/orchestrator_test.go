package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticehq/lattice/internal/curation"
	"github.com/latticehq/lattice/internal/model"
)

func doc(id, content string) model.Document {
	return model.Document{SourcePath: id, Title: id, Text: content, Fingerprint: "fp-" + content}
}

func newTestOrchestrator(ex *mockExtractor, st *mockStore, fp *memFingerprints, curator *curation.Engine) *Orchestrator {
	return New(ex, st, fp, nil, curator)
}

func TestRunProcessesAllDocuments(t *testing.T) {
	extractor := &mockExtractor{
		Responses: map[string][]model.Entity{
			"a.html": {{Name: "Kubernetes", Type: "Technology", Confidence: 0.9,
				Relations: []model.Relation{{Target: "Helm", Kind: "DEPLOYED_WITH"}}}},
			"b.html": {{Name: "Helm", Type: "Technology", Confidence: 0.8}},
		},
		Meta: model.ExtractionMetadata{TokensUsed: 100},
	}
	store := newMockStore()
	fps := newMemFingerprints()
	o := newTestOrchestrator(extractor, store, fps, nil)

	docs := []model.Document{doc("a.html", "one"), doc("b.html", "two")}
	stats, err := o.Run(context.Background(), "ns", docs, Options{})

	require.NoError(t, err)
	assert.Equal(t, 2, stats.Processed)
	assert.Equal(t, 0, stats.Failed)
	assert.Equal(t, 2, stats.Entities)
	assert.Equal(t, 1, stats.Relationships)
	assert.Equal(t, 200, stats.TokensUsed)
	assert.Len(t, store.Persisted, 2)
	assert.NotEmpty(t, stats.RunID)
	assert.Positive(t, stats.Duration)
}

func TestSecondRunSkipsUnchangedDocuments(t *testing.T) {
	extractor := &mockExtractor{Responses: map[string][]model.Entity{
		"a.html": {{Name: "X", Type: "Concept", Confidence: 0.9}},
	}}
	store := newMockStore()
	fps := newMemFingerprints()

	docs := []model.Document{doc("a.html", "one"), doc("b.html", "two")}

	o := newTestOrchestrator(extractor, store, fps, nil)
	_, err := o.Run(context.Background(), "ns", docs, Options{})
	require.NoError(t, err)
	firstCalls := len(extractor.Calls)

	o2 := newTestOrchestrator(extractor, store, fps, nil)
	stats, err := o2.Run(context.Background(), "ns", docs, Options{})

	require.NoError(t, err)
	assert.Equal(t, 0, stats.Processed)
	assert.Equal(t, 2, stats.Skipped)
	assert.Len(t, extractor.Calls, firstCalls, "no new extraction calls on an unchanged set")
}

func TestEditedDocumentIsReprocessed(t *testing.T) {
	extractor := &mockExtractor{Responses: map[string][]model.Entity{}}
	store := newMockStore()
	fps := newMemFingerprints()

	docs := []model.Document{doc("a.html", "one"), doc("b.html", "two")}
	o := newTestOrchestrator(extractor, store, fps, nil)
	_, err := o.Run(context.Background(), "ns", docs, Options{})
	require.NoError(t, err)

	docs[0] = doc("a.html", "one-edited")
	o2 := newTestOrchestrator(extractor, store, fps, nil)
	stats, err := o2.Run(context.Background(), "ns", docs, Options{})

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed, "exactly the edited document reprocesses")
	assert.Equal(t, 1, stats.Skipped)
}

func TestForceBypassesFingerprintButStillRecords(t *testing.T) {
	extractor := &mockExtractor{Responses: map[string][]model.Entity{}}
	fps := newMemFingerprints()

	docs := []model.Document{doc("a.html", "one")}
	o := newTestOrchestrator(extractor, newMockStore(), fps, nil)
	_, err := o.Run(context.Background(), "ns", docs, Options{})
	require.NoError(t, err)

	o2 := newTestOrchestrator(extractor, newMockStore(), fps, nil)
	stats, err := o2.Run(context.Background(), "ns", docs, Options{Force: true})

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 0, stats.Skipped)

	ok, err := fps.HasProcessed(context.Background(), "ns", "a.html", docs[0].Fingerprint)
	require.NoError(t, err)
	assert.True(t, ok, "forced run still records the fingerprint")
}

func TestDryRunLeavesNoState(t *testing.T) {
	extractor := &mockExtractor{Responses: map[string][]model.Entity{
		"a.html": {{Name: "X", Type: "Concept", Confidence: 0.9}},
	}}
	store := newMockStore()
	fps := newMemFingerprints()

	docs := []model.Document{doc("a.html", "one")}
	o := newTestOrchestrator(extractor, store, fps, nil)
	dryStats, err := o.Run(context.Background(), "ns", docs, Options{DryRun: true})

	require.NoError(t, err)
	assert.Equal(t, 1, dryStats.Processed, "dry run counts would-be-processed")
	assert.True(t, dryStats.DryRun)
	assert.Empty(t, store.Persisted, "dry run persists nothing")

	// A real run afterwards behaves exactly like a first run would.
	o2 := newTestOrchestrator(extractor, store, fps, nil)
	stats, err := o2.Run(context.Background(), "ns", docs, Options{})

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 0, stats.Skipped, "dry run left no fingerprints behind")
	assert.Len(t, store.Persisted, 1)
}

func TestConfidenceFilterDropsLowScores(t *testing.T) {
	extractor := &mockExtractor{Responses: map[string][]model.Entity{
		"a.html": {
			{Name: "Keep", Type: "Concept", Confidence: 0.9},
			{Name: "Drop", Type: "Concept", Confidence: 0.5},
		},
	}}
	store := newMockStore()
	o := newTestOrchestrator(extractor, store, newMemFingerprints(), nil)

	stats, err := o.Run(context.Background(), "ns", []model.Document{doc("a.html", "one")}, Options{MinConfidence: 0.8})

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Entities)
	require.Len(t, store.Persisted["a.html"].Entities, 1)
	assert.Equal(t, "Keep", store.Persisted["a.html"].Entities[0].Name)
}

func TestAbortThresholdStopsBeforeNextDocument(t *testing.T) {
	extractor := &mockExtractor{
		Errs: map[string]error{
			"a.html": errors.New("timeout"),
			"b.html": errors.New("timeout"),
			"c.html": errors.New("timeout"),
		},
		Responses: map[string][]model.Entity{},
	}
	o := newTestOrchestrator(extractor, newMockStore(), newMemFingerprints(), nil)

	docs := []model.Document{
		doc("a.html", "1"), doc("b.html", "2"), doc("c.html", "3"),
		doc("d.html", "4"), doc("e.html", "5"),
	}
	stats, err := o.Run(context.Background(), "ns", docs, Options{MaxConsecutiveFailures: 3})

	assert.ErrorIs(t, err, model.ErrAbortThreshold)
	assert.True(t, stats.Aborted)
	assert.Equal(t, 3, stats.Failed)
	assert.Equal(t, 2, stats.NotAttempted, "documents after the threshold are not-attempted, not failed")
	assert.NotContains(t, extractor.Calls, "d.html", "run stops before attempting the next document")
	require.Len(t, stats.Failures, 3)
	assert.Equal(t, "a.html", stats.Failures[0].DocID)
	assert.Contains(t, stats.Failures[0].Cause, "timeout")
}

func TestAbortAccountsForSkippedDocuments(t *testing.T) {
	extractor := &mockExtractor{
		Errs: map[string]error{
			"a.html": errors.New("timeout"),
			"b.html": errors.New("timeout"),
		},
		Responses: map[string][]model.Entity{},
	}
	fps := newMemFingerprints()
	require.NoError(t, fps.Put(context.Background(), "ns", "c.html", "fp-3", time.Now()))
	o := newTestOrchestrator(extractor, newMockStore(), fps, nil)

	docs := []model.Document{
		doc("a.html", "1"), doc("b.html", "2"), doc("c.html", "3"), doc("d.html", "4"),
	}
	stats, err := o.Run(context.Background(), "ns", docs, Options{MaxConsecutiveFailures: 2})

	assert.ErrorIs(t, err, model.ErrAbortThreshold)
	assert.Equal(t, 2, stats.Failed)
	assert.Equal(t, 1, stats.Skipped, "a fingerprint-confirmed skip survives a later abort")
	assert.Equal(t, 1, stats.NotAttempted)
	assert.Equal(t, len(docs), stats.Processed+stats.Skipped+stats.Failed+stats.NotAttempted,
		"every document is accounted for")
}

func TestSuccessResetsConsecutiveFailureCounter(t *testing.T) {
	extractor := &mockExtractor{
		Errs: map[string]error{
			"a.html": errors.New("timeout"),
			"b.html": errors.New("timeout"),
			"d.html": errors.New("timeout"),
			"e.html": errors.New("timeout"),
		},
		Responses: map[string][]model.Entity{},
	}
	o := newTestOrchestrator(extractor, newMockStore(), newMemFingerprints(), nil)

	docs := []model.Document{
		doc("a.html", "1"), doc("b.html", "2"), doc("c.html", "3"),
		doc("d.html", "4"), doc("e.html", "5"), doc("f.html", "6"),
	}
	stats, err := o.Run(context.Background(), "ns", docs, Options{MaxConsecutiveFailures: 3})

	require.NoError(t, err, "success at c.html resets the counter; threshold never reached")
	assert.Equal(t, 4, stats.Failed)
	assert.Equal(t, 2, stats.Processed)
	assert.False(t, stats.Aborted)
}

func TestStoreFailureMarksDocumentFailed(t *testing.T) {
	extractor := &mockExtractor{Responses: map[string][]model.Entity{}}
	store := newMockStore()
	store.FailDocs = map[string]error{"a.html": errors.New("constraint violation")}
	fps := newMemFingerprints()
	o := newTestOrchestrator(extractor, store, fps, nil)

	stats, err := o.Run(context.Background(), "ns", []model.Document{doc("a.html", "1"), doc("b.html", "2")}, Options{})

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Processed)

	ok, _ := fps.HasProcessed(context.Background(), "ns", "a.html", "fp-1")
	assert.False(t, ok, "no fingerprint recorded for a failed store")
}

func TestBatchCurationMergesAcrossDocuments(t *testing.T) {
	extractor := &mockExtractor{Responses: map[string][]model.Entity{
		"a.html": {{Name: "PostgreSQL", Type: "Technology", Confidence: 0.9}},
		"b.html": {{Name: "PostgresSQL", Type: "Technology", Confidence: 0.6}},
	}}
	store := newMockStore()
	curator := curation.NewEngine(0.8, false, nil)
	o := newTestOrchestrator(extractor, store, newMemFingerprints(), curator)

	_, err := o.Run(context.Background(), "ns", []model.Document{doc("a.html", "1"), doc("b.html", "2")}, Options{})

	require.NoError(t, err)
	assert.Equal(t, "PostgreSQL", store.Persisted["b.html"].Entities[0].Name,
		"accepted merge renames matching entities before persistence")
}

func TestInteractiveCurationPromptsAndAppliesDecision(t *testing.T) {
	extractor := &mockExtractor{Responses: map[string][]model.Entity{
		"a.html": {{Name: "PostgreSQL", Type: "Technology", Confidence: 0.9}},
		"b.html": {{Name: "PostgresSQL", Type: "Technology", Confidence: 0.6}},
	}}
	store := newMockStore()
	prompt := &mockPrompt{Decision: model.Decision{Accept: true, CanonicalName: "Postgres"}}
	curator := curation.NewEngine(0.8, true, prompt)
	o := newTestOrchestrator(extractor, store, newMemFingerprints(), curator)

	_, err := o.Run(context.Background(), "ns", []model.Document{doc("a.html", "1"), doc("b.html", "2")}, Options{Interactive: true})

	require.NoError(t, err)
	require.Len(t, prompt.Asked, 1)
	assert.Equal(t, "Postgres", store.Persisted["a.html"].Entities[0].Name)
	assert.Equal(t, "Postgres", store.Persisted["b.html"].Entities[0].Name)
}

func TestCancelledPromptAbortsRun(t *testing.T) {
	extractor := &mockExtractor{Responses: map[string][]model.Entity{
		"a.html": {{Name: "PostgreSQL", Type: "Technology", Confidence: 0.9}},
		"b.html": {{Name: "PostgresSQL", Type: "Technology", Confidence: 0.6}},
	}}
	store := newMockStore()
	prompt := &mockPrompt{Err: errors.New("operator cancelled")}
	curator := curation.NewEngine(0.8, true, prompt)
	fps := newMemFingerprints()
	o := newTestOrchestrator(extractor, store, fps, curator)

	stats, err := o.Run(context.Background(), "ns", []model.Document{doc("a.html", "1"), doc("b.html", "2")}, Options{Interactive: true})

	require.Error(t, err)
	assert.NotErrorIs(t, err, model.ErrAbortThreshold)
	assert.True(t, stats.Aborted)
	assert.Empty(t, store.Persisted, "nothing persisted after an aborted curation")
	ok, _ := fps.HasProcessed(context.Background(), "ns", "a.html", "fp-1")
	assert.False(t, ok)
}

func TestExampleScenario(t *testing.T) {
	// Batch of 3 unseen documents, min_confidence 0.8. Doc A yields "K8S"
	// (Technology, 0.9) and "Widget" (Product, 0.5); normalization rewrites
	// K8S to Kubernetes and the confidence filter drops Widget.
	extractor := &mockExtractor{Responses: map[string][]model.Entity{
		"a.html": {
			{Name: "K8S", Type: "Technology", Confidence: 0.9},
			{Name: "Widget", Type: "Product", Confidence: 0.5},
		},
		"b.html": {},
		"c.html": {},
	}}
	store := newMockStore()
	o := newTestOrchestrator(extractor, store, newMemFingerprints(), nil)

	docs := []model.Document{doc("a.html", "1"), doc("b.html", "2"), doc("c.html", "3")}
	stats, err := o.Run(context.Background(), "ns", docs, Options{MinConfidence: 0.8})

	require.NoError(t, err)
	assert.Equal(t, 3, stats.Processed)
	assert.Equal(t, 0, stats.Failed)
	assert.GreaterOrEqual(t, stats.Entities, 1)

	persisted := store.Persisted["a.html"].Entities
	require.Len(t, persisted, 1)
	assert.Equal(t, "Kubernetes", persisted[0].Name)
}

func TestProgressEventsAreEmitted(t *testing.T) {
	extractor := &mockExtractor{Responses: map[string][]model.Entity{
		"a.html": {{Name: "X", Type: "Concept", Confidence: 0.9}},
	}}
	o := newTestOrchestrator(extractor, newMockStore(), newMemFingerprints(), nil)

	done := make(chan []model.ProgressEvent)
	go func() {
		var events []model.ProgressEvent
		for ev := range o.Events() {
			events = append(events, ev)
		}
		done <- events
	}()

	_, err := o.Run(context.Background(), "ns", []model.Document{doc("a.html", "1")}, Options{})
	require.NoError(t, err)

	events := <-done
	var statuses []model.DocStatus
	for _, ev := range events {
		statuses = append(statuses, ev.Status)
	}
	assert.Equal(t, []model.DocStatus{
		model.StatusExtracting,
		model.StatusNormalizing,
		model.StatusStoring,
		model.StatusProcessed,
	}, statuses)
	assert.Equal(t, 1, events[len(events)-1].Entities)
	assert.Positive(t, events[len(events)-1].Elapsed)
}

func TestRunDoesNotBlockWithoutEventConsumer(t *testing.T) {
	responses := make(map[string][]model.Entity)
	var docs []model.Document
	for i := 0; i < 200; i++ {
		id := fmt.Sprintf("doc-%03d.html", i)
		responses[id] = []model.Entity{{Name: "X", Type: "Concept", Confidence: 0.9}}
		docs = append(docs, doc(id, fmt.Sprintf("content-%d", i)))
	}
	o := newTestOrchestrator(&mockExtractor{Responses: responses}, newMockStore(), newMemFingerprints(), nil)

	// Nobody reads Events(); the run must still finish.
	stats, err := o.Run(context.Background(), "ns", docs, Options{BatchSize: 10})

	require.NoError(t, err)
	assert.Equal(t, 200, stats.Processed)
}

func TestConcurrentExtractionReducesToSameStats(t *testing.T) {
	responses := make(map[string][]model.Entity)
	var docs []model.Document
	for i := 0; i < 30; i++ {
		id := fmt.Sprintf("doc-%02d.html", i)
		responses[id] = []model.Entity{{Name: fmt.Sprintf("E%d", i), Type: "Concept", Confidence: 0.9}}
		docs = append(docs, doc(id, fmt.Sprintf("content-%d", i)))
	}
	store := newMockStore()
	o := newTestOrchestrator(&mockExtractor{Responses: responses}, store, newMemFingerprints(), nil)

	stats, err := o.Run(context.Background(), "ns", docs, Options{BatchSize: 10, ExtractWorkers: 4})

	require.NoError(t, err)
	assert.Equal(t, 30, stats.Processed)
	assert.Equal(t, 30, stats.Entities)
	assert.Len(t, store.Persisted, 30)
}

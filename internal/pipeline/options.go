package pipeline

// Options configures one pipeline invocation.
type Options struct {
	// Types restricts extraction to the named entity types. Empty means all.
	Types []string
	// MinConfidence drops entities below this score after extraction.
	MinConfidence float64
	// BatchSize is the number of documents per batch.
	BatchSize int
	// MaxConsecutiveFailures aborts the run once this many documents fail in
	// a row.
	MaxConsecutiveFailures int
	// Interactive enables curation prompting.
	Interactive bool
	// DryRun suppresses persistence and fingerprint recording.
	DryRun bool
	// Force ignores fingerprint matches but still records on success.
	Force bool
	// ExtractWorkers bounds concurrent extraction calls within a batch.
	ExtractWorkers int
}

func (o *Options) setDefaults() {
	if o.BatchSize < 1 {
		o.BatchSize = 20
	}
	if o.MaxConsecutiveFailures < 1 {
		o.MaxConsecutiveFailures = 10
	}
	if o.ExtractWorkers < 1 {
		o.ExtractWorkers = 1
	}
}

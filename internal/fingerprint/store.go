package fingerprint

import (
	"context"
	"time"
)

// Record is the persisted mapping from a namespace-qualified document id to
// its last-processed content hash. Within a namespace there is at most one
// record per document id, written only after a document's full processing
// succeeds.
type Record struct {
	DocID       string    `json:"doc_id"`
	Hash        string    `json:"hash"`
	ProcessedAt time.Time `json:"processed_at"`
}

// Store is the idempotency ledger for the pipeline. HasProcessed returns true
// only when a record exists for (namespace, docID) with a matching hash — a
// changed hash means the source was edited and the document counts as
// unprocessed. Put must be a single atomic upsert so an interrupted run never
// leaves a partial record.
type Store interface {
	HasProcessed(ctx context.Context, namespace, docID, hash string) (bool, error)
	Put(ctx context.Context, namespace, docID, hash string, processedAt time.Time) error
}

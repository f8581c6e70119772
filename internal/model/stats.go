package model

import "time"

// DocStatus is the terminal (or in-flight) state of one document in a run.
type DocStatus string

const (
	StatusPending      DocStatus = "pending"
	StatusSkipped      DocStatus = "skipped"
	StatusExtracting   DocStatus = "extracting"
	StatusNormalizing  DocStatus = "normalizing"
	StatusStoring      DocStatus = "storing"
	StatusDryRun       DocStatus = "dry_run_complete"
	StatusProcessed    DocStatus = "processed"
	StatusFailed       DocStatus = "failed"
	StatusNotAttempted DocStatus = "not_attempted"
)

// DocFailure attributes one failure to one document.
type DocFailure struct {
	DocID string `json:"doc_id"`
	Cause string `json:"cause"`
}

// RunStats is the accumulator for one pipeline invocation. It is owned by the
// orchestrator and returned whether the run completes or aborts.
type RunStats struct {
	RunID         string        `json:"run_id"`
	Namespace     string        `json:"namespace"`
	Processed     int           `json:"processed"`
	Skipped       int           `json:"skipped"`
	Failed        int           `json:"failed"`
	NotAttempted  int           `json:"not_attempted"`
	Entities      int           `json:"entities"`
	Relationships int           `json:"relationships"`
	TokensUsed    int           `json:"tokens_used"`
	Failures      []DocFailure  `json:"failures,omitempty"`
	Warnings      []string      `json:"warnings,omitempty"`
	DryRun        bool          `json:"dry_run"`
	Aborted       bool          `json:"aborted"`
	Duration      time.Duration `json:"duration"`
}

// ProgressEvent is one element of the per-document status stream consumed by
// the caller for display.
type ProgressEvent struct {
	DocID    string        `json:"doc_id"`
	Status   DocStatus     `json:"status"`
	Entities int           `json:"entities"`
	Elapsed  time.Duration `json:"elapsed"`
	Err      string        `json:"err,omitempty"`
}

package hooks

import (
	"context"

	"github.com/latticehq/lattice/internal/model"
)

// Stage identifies where in the pipeline a hook runs.
type Stage int

const (
	// BeforeStore runs per document after extraction and before persistence.
	// Hooks may rewrite entity names, types, and confidence in place.
	BeforeStore Stage = iota
	// AfterBatch runs once per batch over the accumulated entity set and may
	// emit merge proposals.
	AfterBatch
	// OnFailure runs once per failed document, for diagnostics only. It
	// cannot alter the pipeline outcome.
	OnFailure
)

type BeforeStoreFunc func(ctx context.Context, doc model.Document, entities []model.Entity) error

type AfterBatchFunc func(ctx context.Context, entities []model.Entity) ([]model.MergeProposal, error)

type OnFailureFunc func(ctx context.Context, doc model.Document, cause error) error

type namedBeforeStore struct {
	name string
	fn   BeforeStoreFunc
}

type namedAfterBatch struct {
	name string
	fn   AfterBatchFunc
}

type namedOnFailure struct {
	name string
	fn   OnFailureFunc
}

// Registry dispatches named hooks per stage in registration order. A hook
// error becomes a warning; it never aborts the run.
type Registry struct {
	beforeStore []namedBeforeStore
	afterBatch  []namedAfterBatch
	onFailure   []namedOnFailure
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) RegisterBeforeStore(name string, fn BeforeStoreFunc) {
	r.beforeStore = append(r.beforeStore, namedBeforeStore{name: name, fn: fn})
}

func (r *Registry) RegisterAfterBatch(name string, fn AfterBatchFunc) {
	r.afterBatch = append(r.afterBatch, namedAfterBatch{name: name, fn: fn})
}

func (r *Registry) RegisterOnFailure(name string, fn OnFailureFunc) {
	r.onFailure = append(r.onFailure, namedOnFailure{name: name, fn: fn})
}

// RunBeforeStore invokes every before_store hook against the document's
// entities and returns any hook errors as warnings.
func (r *Registry) RunBeforeStore(ctx context.Context, doc model.Document, entities []model.Entity) []*model.HookError {
	var warnings []*model.HookError
	for _, h := range r.beforeStore {
		if err := h.fn(ctx, doc, entities); err != nil {
			warnings = append(warnings, &model.HookError{Hook: h.name, Err: err})
		}
	}
	return warnings
}

// RunAfterBatch invokes every after_batch hook over the batch entity set and
// collects emitted merge proposals.
func (r *Registry) RunAfterBatch(ctx context.Context, entities []model.Entity) ([]model.MergeProposal, []*model.HookError) {
	var proposals []model.MergeProposal
	var warnings []*model.HookError
	for _, h := range r.afterBatch {
		p, err := h.fn(ctx, entities)
		if err != nil {
			warnings = append(warnings, &model.HookError{Hook: h.name, Err: err})
			continue
		}
		proposals = append(proposals, p...)
	}
	return proposals, warnings
}

// RunOnFailure invokes every on_failure hook for a failed document.
func (r *Registry) RunOnFailure(ctx context.Context, doc model.Document, cause error) []*model.HookError {
	var warnings []*model.HookError
	for _, h := range r.onFailure {
		if err := h.fn(ctx, doc, cause); err != nil {
			warnings = append(warnings, &model.HookError{Hook: h.name, Err: err})
		}
	}
	return warnings
}

package curation

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/latticehq/lattice/internal/model"
)

// Prompt is the collaborator that asks a human operator to resolve a merge
// proposal. Calls are blocking and synchronous; a failed or cancelled prompt
// aborts the run.
type Prompt interface {
	AskMerge(ctx context.Context, proposal model.MergeProposal) (model.Decision, error)
}

// Engine detects near-duplicate entity names within a batch and drives their
// resolution.
type Engine struct {
	Threshold   float64
	Interactive bool
	Prompt      Prompt
}

func NewEngine(threshold float64, interactive bool, prompt Prompt) *Engine {
	if threshold == 0 {
		threshold = 0.8
	}
	return &Engine{Threshold: threshold, Interactive: interactive, Prompt: prompt}
}

// Propose groups the batch's entities by type and pairs distinct names whose
// similarity exceeds the threshold. Names already identical after
// normalization are not proposed.
func (e *Engine) Propose(entities []model.Entity) []model.MergeProposal {
	byType := make(map[string][]string)
	seen := make(map[string]bool)
	for _, ent := range entities {
		key := ent.Type + "\x00" + normalizeName(ent.Name)
		if seen[key] {
			continue
		}
		seen[key] = true
		byType[ent.Type] = append(byType[ent.Type], ent.Name)
	}

	var proposals []model.MergeProposal
	for _, typ := range sortedKeys(byType) {
		names := byType[typ]
		for i := 0; i < len(names); i++ {
			for j := i + 1; j < len(names); j++ {
				sim := Similarity(names[i], names[j])
				if sim <= e.Threshold {
					continue
				}
				p := model.MergeProposal{
					EntityType: typ,
					NameA:      names[i],
					NameB:      names[j],
					Similarity: sim,
				}
				p.Suggested = autoCanonical(p, entities)
				proposals = append(proposals, p)
			}
		}
	}
	return proposals
}

// Resolve turns a proposal into a decision: synchronously via the prompt in
// interactive mode, by policy otherwise. Prompt failure is returned to the
// caller as an abort signal.
func (e *Engine) Resolve(ctx context.Context, proposal model.MergeProposal) (model.Decision, error) {
	if e.Interactive {
		if e.Prompt == nil {
			return model.Decision{}, fmt.Errorf("interactive curation requested but no prompt configured")
		}
		decision, err := e.Prompt.AskMerge(ctx, proposal)
		if err != nil {
			return model.Decision{}, fmt.Errorf("merge prompt for %q/%q: %w", proposal.NameA, proposal.NameB, err)
		}
		if decision.Accept && decision.CanonicalName == "" {
			decision.CanonicalName = proposal.Suggested
		}
		return decision, nil
	}
	return model.Decision{Accept: true, CanonicalName: proposal.Suggested}, nil
}

// ApplyMerge rewrites every entity in the batch whose name matches either
// proposed name to the canonical name. Entities are only renamed, never
// deleted, so relationships keyed by name stay valid. Applying the same
// merge twice is a no-op the second time.
func ApplyMerge(entities []model.Entity, proposal model.MergeProposal, canonical string) {
	a, b := normalizeName(proposal.NameA), normalizeName(proposal.NameB)
	for i := range entities {
		n := normalizeName(entities[i].Name)
		if n == a || n == b {
			entities[i].Name = canonical
		}
		for j := range entities[i].Relations {
			t := normalizeName(entities[i].Relations[j].Target)
			if t == a || t == b {
				entities[i].Relations[j].Target = canonical
			}
		}
	}
}

// Curate runs the full detect-resolve-apply cycle over a batch's entities and
// returns the number of accepted merges. An error means the run must abort.
func (e *Engine) Curate(ctx context.Context, entities []model.Entity) (int, error) {
	merged := 0
	for _, proposal := range e.Propose(entities) {
		decision, err := e.Resolve(ctx, proposal)
		if err != nil {
			return merged, err
		}
		if !decision.Accept {
			continue
		}
		ApplyMerge(entities, proposal, decision.CanonicalName)
		merged++
	}
	return merged, nil
}

// autoCanonical picks the higher-confidence entity's name, breaking ties by
// longer name then lexical order.
func autoCanonical(p model.MergeProposal, entities []model.Entity) string {
	confA := maxConfidence(entities, p.NameA)
	confB := maxConfidence(entities, p.NameB)

	switch {
	case confA > confB:
		return p.NameA
	case confB > confA:
		return p.NameB
	case len(p.NameA) > len(p.NameB):
		return p.NameA
	case len(p.NameB) > len(p.NameA):
		return p.NameB
	case strings.Compare(p.NameA, p.NameB) <= 0:
		return p.NameA
	default:
		return p.NameB
	}
}

func maxConfidence(entities []model.Entity, name string) float64 {
	n := normalizeName(name)
	best := 0.0
	for _, ent := range entities {
		if normalizeName(ent.Name) == n && ent.Confidence > best {
			best = ent.Confidence
		}
	}
	return best
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

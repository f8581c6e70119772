package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/latticehq/lattice/internal/model"
)

// TerminalPrompt resolves merge proposals against an interactive operator on
// the terminal. Calls block until the operator answers; EOF aborts the run.
type TerminalPrompt struct {
	in  *bufio.Scanner
	out io.Writer
}

func NewTerminalPrompt(in io.Reader, out io.Writer) *TerminalPrompt {
	return &TerminalPrompt{in: bufio.NewScanner(in), out: out}
}

func (p *TerminalPrompt) AskMerge(ctx context.Context, proposal model.MergeProposal) (model.Decision, error) {
	fmt.Fprintf(p.out, "\nPossible duplicate %s entities (similarity %.2f):\n", proposal.EntityType, proposal.Similarity)
	fmt.Fprintf(p.out, "  [1] %s\n  [2] %s\n", proposal.NameA, proposal.NameB)
	fmt.Fprintf(p.out, "Merge them? [y/N] ")

	answer, err := p.readLine(ctx)
	if err != nil {
		return model.Decision{}, err
	}
	if !strings.EqualFold(answer, "y") && !strings.EqualFold(answer, "yes") {
		return model.Decision{Accept: false}, nil
	}

	fmt.Fprintf(p.out, "Canonical name: 1, 2, or type a new name [suggested: %s] ", proposal.Suggested)
	choice, err := p.readLine(ctx)
	if err != nil {
		return model.Decision{}, err
	}

	canonical := proposal.Suggested
	switch choice {
	case "", "s":
	case "1":
		canonical = proposal.NameA
	case "2":
		canonical = proposal.NameB
	default:
		canonical = choice
	}
	return model.Decision{Accept: true, CanonicalName: canonical}, nil
}

func (p *TerminalPrompt) readLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", err
		}
		return "", fmt.Errorf("input closed while awaiting merge decision")
	}
	return strings.TrimSpace(p.in.Text()), nil
}

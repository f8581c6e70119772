package main

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/latticehq/lattice/internal/curation"
	"github.com/latticehq/lattice/internal/extract"
	"github.com/latticehq/lattice/internal/fingerprint"
	"github.com/latticehq/lattice/internal/graph"
	"github.com/latticehq/lattice/internal/llm"
	"github.com/latticehq/lattice/internal/loader"
	"github.com/latticehq/lattice/internal/model"
	"github.com/latticehq/lattice/internal/pipeline"
	"github.com/latticehq/lattice/internal/schema"
)

func newIngestCmd() *cobra.Command {
	var (
		namespace   string
		types       []string
		minConf     float64
		batchSize   int
		maxFailures int
		interactive bool
		dryRun      bool
		force       bool
	)

	cmd := &cobra.Command{
		Use:   "ingest <folder>",
		Short: "Load an HTML export folder and ingest it into the graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx := cmd.Context()

			docs, err := loader.New().LoadDocuments(args[0])
			if err != nil {
				return err
			}
			if len(docs) == 0 {
				return fmt.Errorf("no HTML documents found under %s", args[0])
			}

			client, err := llm.NewClient(ctx, cfg.LLM)
			if err != nil {
				return err
			}

			var s *schema.Schema
			if cfg.SchemaPath != "" {
				if s, err = schema.Load(cfg.SchemaPath); err != nil {
					return err
				}
			}

			driver, err := graph.NewMemgraphDriver(cfg.Graph.URI, cfg.Graph.User, cfg.Graph.Password)
			if err != nil {
				return err
			}
			defer driver.Close(ctx)
			if err := driver.BuildIndices(ctx); err != nil {
				return err
			}

			fps, closeFPs, err := openFingerprints(driver)
			if err != nil {
				return err
			}
			defer closeFPs()

			var prompt curation.Prompt
			if interactive {
				prompt = NewTerminalPrompt(os.Stdin, os.Stdout)
			}
			curator := curation.NewEngine(cfg.Pipeline.SimilarityThreshold, interactive, prompt)

			orch := pipeline.New(extract.NewExtractor(client, s), graph.NewStore(driver), fps, nil, curator)

			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				renderProgress(orch.Events())
			}()

			opts := pipeline.Options{
				Types:                  types,
				MinConfidence:          minConf,
				BatchSize:              pick(batchSize, cfg.Pipeline.BatchSize),
				MaxConsecutiveFailures: pick(maxFailures, cfg.Pipeline.MaxConsecutiveFailures),
				Interactive:            interactive,
				DryRun:                 dryRun,
				Force:                  force,
				ExtractWorkers:         cfg.Pipeline.ExtractWorkers,
			}
			if minConf == 0 {
				opts.MinConfidence = cfg.Pipeline.MinConfidence
			}

			stats, runErr := orch.Run(ctx, namespace, docs, opts)
			wg.Wait()
			renderSummary(stats)

			if runErr != nil && !errors.Is(runErr, model.ErrAbortThreshold) {
				return runErr
			}
			if errors.Is(runErr, model.ErrAbortThreshold) {
				return fmt.Errorf("run aborted after %d consecutive failures", opts.MaxConsecutiveFailures)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&namespace, "namespace", "n", "default", "namespace to ingest into")
	cmd.Flags().StringSliceVar(&types, "types", nil, "restrict extraction to these entity types")
	cmd.Flags().Float64Var(&minConf, "min-confidence", 0, "drop entities below this confidence")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "documents per batch")
	cmd.Flags().IntVar(&maxFailures, "max-failures", 0, "consecutive failures before aborting")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "resolve merge proposals interactively")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "run everything except persistence")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "reprocess documents even if already ingested")

	return cmd
}

func openFingerprints(driver graph.Driver) (fingerprint.Store, func(), error) {
	if cfg.Fingerprint.Backend == "bolt" {
		store, err := fingerprint.NewBoltStore(cfg.Fingerprint.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	}
	return fingerprint.NewGraphStore(driver), func() {}, nil
}

func renderProgress(events <-chan model.ProgressEvent) {
	for ev := range events {
		switch ev.Status {
		case model.StatusSkipped:
			fmt.Printf("  skip  %s (unchanged)\n", ev.DocID)
		case model.StatusProcessed, model.StatusDryRun:
			fmt.Printf("  ok    %s (%d entities, %s)\n", ev.DocID, ev.Entities, ev.Elapsed.Round(time.Millisecond))
		case model.StatusFailed:
			fmt.Printf("  FAIL  %s: %s\n", ev.DocID, ev.Err)
		case model.StatusNotAttempted:
			fmt.Printf("  --    %s (not attempted)\n", ev.DocID)
		}
	}
}

func renderSummary(stats model.RunStats) {
	fmt.Printf("\nRun %s (%s)\n", stats.RunID, stats.Namespace)
	fmt.Printf("  processed: %d  skipped: %d  failed: %d  not attempted: %d\n",
		stats.Processed, stats.Skipped, stats.Failed, stats.NotAttempted)
	fmt.Printf("  entities: %d  relationships: %d  tokens: %d  duration: %s\n",
		stats.Entities, stats.Relationships, stats.TokensUsed, stats.Duration.Round(time.Millisecond))
	for _, w := range stats.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
	if stats.DryRun {
		fmt.Println("  (dry run: nothing was persisted)")
	}
}

func pick(flag, fallback int) int {
	if flag > 0 {
		return flag
	}
	return fallback
}

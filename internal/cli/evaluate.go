package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-nlpeval/infrastructure/corpus"
	"github.com/ahrav/go-nlpeval/infrastructure/middleware"
	"github.com/ahrav/go-nlpeval/internal/application"
)

func newEvaluateCmd(a *app) *cobra.Command {
	var (
		configPath  string
		corpusPath  string
		outputPath  string
		seed        uint64
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Build models from part of a corpus and score them on the rest",
		Long: `Evaluate splits a labeled corpus into a model-building partition and a
held-out test partition, builds the intent and entity models with the
configured classifier, parses every test expression and writes a report of
the intent and entity mismatches.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := application.LoadRunConfig(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cmd.Flags().Changed("seed") {
				cfg.Evaluation.Seed = &seed
			}
			if cmd.Flags().Changed("concurrency") {
				cfg.Evaluation.Concurrency = concurrency
			}

			c, err := corpus.Load(corpusPath)
			if err != nil {
				return fmt.Errorf("load corpus: %w", err)
			}
			adoptCorpusApplication(&cfg.Evaluation, c, a.logger)

			metrics := middleware.NewPrometheusMetrics()
			if cfg.Metrics.Addr != "" {
				stop := serveMetrics(cfg.Metrics.Addr, metrics.Handler(), a.logger)
				defer stop()
			}

			comps, err := newComponents(cfg.Classifier, deps{metrics: metrics, tp: a.tp, getenv: a.getenv})
			if err != nil {
				return err
			}
			evaluator, err := application.NewEvaluator(comps.builder, comps.parser,
				application.WithLogger(a.logger),
				application.WithMetrics(metrics),
				application.WithTracer(a.tp.Tracer("evaluator")),
			)
			if err != nil {
				return err
			}

			report, err := evaluator.Evaluate(cmd.Context(), cfg.Evaluation, c.Expressions)
			if err != nil {
				return err
			}

			if err := writeReport(cmd.OutOrStdout(), outputPath, report); err != nil {
				return err
			}
			summary := cmd.OutOrStdout()
			if outputPath == "-" {
				summary = cmd.ErrOrStderr()
			}
			printSummary(summary, report)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&configPath, "config", "", "run configuration file (YAML)")
	f.StringVar(&corpusPath, "corpus", "", "labeled corpus file (JSON or YAML)")
	f.StringVarP(&outputPath, "output", "o", "-", `report file, "-" for stdout`)
	f.Uint64Var(&seed, "seed", 0, "seed for the corpus partition (overrides the config)")
	f.IntVar(&concurrency, "concurrency", 0, "parse calls in flight (overrides the config)")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("corpus")
	return cmd
}

// adoptCorpusApplication takes the application named by the corpus when
// the configuration leaves it empty, and warns when the two disagree.
func adoptCorpusApplication(cfg *application.EvaluationConfig, c *corpus.Corpus, logger *slog.Logger) {
	switch {
	case cfg.Application == "":
		cfg.Application = c.Application
	case c.Application != "" && c.Application != cfg.Application:
		logger.Warn("corpus was written for another application",
			"corpus_application", c.Application, "application", cfg.Application)
	}
}

// serveMetrics exposes h on addr under /metrics until the returned stop
// function is called.
func serveMetrics(addr string, h http.Handler, logger *slog.Logger) (stop func()) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("metrics server shutdown failed", "error", err)
		}
	}
}

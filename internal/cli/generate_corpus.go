package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-nlpeval/infrastructure/corpus"
	"github.com/ahrav/go-nlpeval/internal/application"
	"github.com/ahrav/go-nlpeval/internal/domain"
	"github.com/ahrav/go-nlpeval/internal/testutils"
)

func newGenerateCorpusCmd(_ *app) *cobra.Command {
	var (
		size        int
		seed        int64
		outputPath  string
		appName     string
		language    string
		scenario    bool
	)

	cmd := &cobra.Command{
		Use:   "generate-corpus",
		Short: "Write a synthetic labeled corpus",
		Long: `Generate-corpus renders expression templates for greeting, weather,
flight booking and music intents into a labeled corpus with entity spans. The
corpus is synthetic and meant for smoke tests and benchmarks of the
harness, not for judging a real classifier.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if size < 1 && !scenario {
				return fmt.Errorf("size must be positive, got %d", size)
			}
			if !cmd.Flags().Changed("seed") {
				seed = time.Now().UnixNano()
			}

			var expressions []domain.LabeledExpression
			if scenario {
				expressions = testutils.ScenarioCorpus()
			} else {
				expressions = testutils.GenerateCorpus(size, seed)
			}

			c := &corpus.Corpus{
				Application: appName,
				Language:    language,
				Expressions: expressions,
			}
			if err := corpus.Save(outputPath, c); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", success("Generated corpus:"), outputPath)
			fmt.Fprint(out, corpus.ComputeStatistics(expressions))
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVar(&size, "size", 500, "number of expressions to generate")
	f.Int64Var(&seed, "seed", 0, "generator seed (default: time-based)")
	f.StringVarP(&outputPath, "output", "o", "testdata/corpus.json", "output file; .yaml or .yml selects YAML")
	f.StringVar(&appName, "application", "", "application name recorded in the corpus")
	f.StringVar(&language, "language", application.DefaultLanguage, "language tag recorded in the corpus")
	f.BoolVar(&scenario, "scenario", false, "write the fixed 100-expression scenario corpus instead")
	return cmd
}

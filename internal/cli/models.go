package cli

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-nlpeval/infrastructure/corpus"
	"github.com/ahrav/go-nlpeval/infrastructure/middleware"
	"github.com/ahrav/go-nlpeval/infrastructure/store"
	"github.com/ahrav/go-nlpeval/internal/application"
)

func newModelsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Maintain the models stored for applications",
	}
	cmd.AddCommand(newModelsUpdateCmd(a), newModelsShowCmd(a), newModelsPruneCmd(a))
	return cmd
}

// openModelService wires a model service over the SQLite store at path
// using the classifier selected by configPath. The caller closes the
// returned store.
func openModelService(a *app, configPath, storePath string) (*application.RunConfig, *application.ModelService, *store.SQLiteStore, error) {
	cfg, err := application.LoadRunConfig(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	comps, err := newComponents(cfg.Classifier, deps{
		metrics: middleware.NewPrometheusMetrics(),
		tp:      a.tp,
		getenv:  a.getenv,
	})
	if err != nil {
		return nil, nil, nil, err
	}

	st, err := store.NewSQLiteStore(store.SQLiteConfig{Path: storePath}, comps.codec)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open model store: %w", err)
	}
	svc, err := application.NewModelService(comps.builder, st, a.logger)
	if err != nil {
		st.Close()
		return nil, nil, nil, err
	}
	return cfg, svc, st, nil
}

func newModelsUpdateCmd(a *app) *cobra.Command {
	var (
		configPath      string
		corpusPath      string
		storePath       string
		onlyIfNotExists bool
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Build and store the intent and entity models of an application",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, svc, st, err := openModelService(a, configPath, storePath)
			if err != nil {
				return err
			}
			defer st.Close()

			c, err := corpus.Load(corpusPath)
			if err != nil {
				return fmt.Errorf("load corpus: %w", err)
			}

			adoptCorpusApplication(&cfg.Evaluation, c, a.logger)
			bc := cfg.Evaluation.BuildContext()
			bc.OnlyIfNotExists = onlyIfNotExists
			failed, err := svc.UpdateAll(cmd.Context(), bc, c.Expressions)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s (%s) from %d expressions\n",
				success("Models updated:"), bc.Application, bc.Language, len(c.Expressions))
			if len(failed) > 0 {
				fmt.Fprintf(out, "%s %s\n", failure("Entity models failed:"), strings.Join(failed, ", "))
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&configPath, "config", "", "run configuration file (YAML)")
	f.StringVar(&corpusPath, "corpus", "", "labeled corpus file (JSON or YAML)")
	f.StringVar(&storePath, "store", "models.db", "SQLite model store")
	f.BoolVar(&onlyIfNotExists, "only-if-not-exists", false, "skip models that are already stored")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("corpus")
	return cmd
}

func newModelsShowCmd(a *app) *cobra.Command {
	var (
		configPath string
		storePath  string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Load and list the stored models of the configured application",
		Long: `Show decodes the intent model and entity models stored for the
application and language of the run configuration and lists the intents
they cover. It fails when no intent model is stored.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, svc, st, err := openModelService(a, configPath, storePath)
			if err != nil {
				return err
			}
			defer st.Close()

			bc := cfg.Evaluation.BuildContext()
			intentModel, entityModels, err := svc.LoadModels(cmd.Context(), bc)
			if err != nil {
				return err
			}

			intents := slices.Sorted(slices.Values(intentModel.Intents()))
			withEntities := slices.Sorted(maps.Keys(entityModels))
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s (%s)\n", heading("Stored models:"), bc.Application, bc.Language)
			fmt.Fprintf(out, "  intents (%d): %s\n", len(intents), strings.Join(intents, ", "))
			fmt.Fprintf(out, "  entity models (%d): %s\n", len(withEntities), strings.Join(withEntities, ", "))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&configPath, "config", "", "run configuration file (YAML)")
	f.StringVar(&storePath, "store", "models.db", "SQLite model store")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func newModelsPruneCmd(a *app) *cobra.Command {
	var (
		configPath  string
		storePath   string
		keepEntries []string
	)

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete stored models of unknown applications or intents",
		Long: `Prune deletes every stored model whose application is not named by a
--keep flag, and every entity model whose intent is not listed for its
application. Each --keep takes the form application=intent1,intent2.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			keep, err := parseKeep(keepEntries)
			if err != nil {
				return err
			}

			_, svc, st, err := openModelService(a, configPath, storePath)
			if err != nil {
				return err
			}
			defer st.Close()

			removed, err := svc.DeleteOrphans(cmd.Context(), keep)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d\n", success("Models deleted:"), removed)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&configPath, "config", "", "run configuration file (YAML)")
	f.StringVar(&storePath, "store", "models.db", "SQLite model store")
	f.StringArrayVar(&keepEntries, "keep", nil, "application=intent1,intent2 to keep (repeatable)")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

// parseKeep turns application=intent1,intent2 entries into the keep map of
// ModelService.DeleteOrphans. An application without intents keeps only
// its intent model.
func parseKeep(entries []string) (map[string][]string, error) {
	keep := make(map[string][]string, len(entries))
	for _, entry := range entries {
		name, intents, _ := strings.Cut(entry, "=")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("invalid --keep %q: missing application", entry)
		}
		for intent := range strings.SplitSeq(intents, ",") {
			if intent = strings.TrimSpace(intent); intent != "" {
				keep[name] = append(keep[name], intent)
			}
		}
		if _, ok := keep[name]; !ok {
			keep[name] = []string{}
		}
	}
	return keep, nil
}

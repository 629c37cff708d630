package cli

import (
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/fatih/color"

	"github.com/ahrav/go-nlpeval/internal/domain"
)

var (
	success = color.New(color.FgGreen).SprintFunc()
	failure = color.New(color.FgRed).SprintFunc()
	heading = color.New(color.Bold).SprintFunc()
)

// topIntentErrors caps the intents listed in the summary.
const topIntentErrors = 5

// writeReport writes report as indented JSON. A path of "-" writes to
// stdout.
func writeReport(stdout io.Writer, path string, report *domain.EvaluationReport) error {
	w := stdout
	if path != "-" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
		f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			return fmt.Errorf("create report file: %w", err)
		}
		defer f.Close()
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// printSummary prints a human-readable digest of report.
func printSummary(w io.Writer, report *domain.EvaluationReport) {
	count := func(n int) string {
		if n == 0 {
			return success(n)
		}
		return failure(n)
	}

	fmt.Fprintln(w, heading("Evaluation "+report.RunID))
	fmt.Fprintf(w, "  Corpus:         %d expressions\n", report.CorpusSize())
	fmt.Fprintf(w, "  Tested:         %d expressions\n", report.TestedCount())
	fmt.Fprintf(w, "  Build time:     %s\n", report.BuildDuration.Round(time.Millisecond))
	fmt.Fprintf(w, "  Test time:      %s\n", report.TestDuration.Round(time.Millisecond))
	fmt.Fprintf(w, "  Intent errors:  %s (%.1f%%)\n", count(len(report.IntentErrors)), 100*report.IntentErrorRate())
	fmt.Fprintf(w, "  Entity errors:  %s (%.1f%%)\n", count(len(report.EntityErrors)), 100*report.EntityErrorRate())
	fmt.Fprintf(w, "  Accuracy:       %.1f%%\n", 100*report.Accuracy())

	byIntent := report.IntentErrorsByIntent()
	if len(byIntent) == 0 {
		return
	}
	intents := slices.SortedFunc(maps.Keys(byIntent), func(a, b string) int {
		if c := cmp.Compare(byIntent[b], byIntent[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	fmt.Fprintln(w, heading("Most confused intents"))
	for _, intent := range intents[:min(len(intents), topIntentErrors)] {
		fmt.Fprintf(w, "  %-24s %s\n", intent, failure(byIntent[intent]))
	}
}

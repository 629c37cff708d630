package corpus

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/ahrav/go-nlpeval/internal/domain"
)

// Statistics summarizes a corpus.
type Statistics struct {
	// Expressions is the number of expressions.
	Expressions int `json:"expressions"`
	// Intents counts expressions per declared intent.
	Intents map[string]int `json:"intents"`
	// EntityTypes counts annotations per entity type.
	EntityTypes map[string]int `json:"entity_types"`
	// Entities is the total number of annotations.
	Entities int `json:"entities"`
}

// ComputeStatistics counts the expressions, intents and entity
// annotations of expressions.
func ComputeStatistics(expressions []domain.LabeledExpression) Statistics {
	stats := Statistics{
		Expressions: len(expressions),
		Intents:     make(map[string]int),
		EntityTypes: make(map[string]int),
	}
	for _, e := range expressions {
		stats.Intents[e.Intent]++
		for _, ent := range e.Entities {
			stats.EntityTypes[ent.EntityType]++
			stats.Entities++
		}
	}
	return stats
}

// String renders the statistics with intents in name order.
func (s Statistics) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d expressions, %d entities\n", s.Expressions, s.Entities)
	for _, intent := range slices.Sorted(maps.Keys(s.Intents)) {
		fmt.Fprintf(&b, "  %-20s %d\n", intent, s.Intents[intent])
	}
	return b.String()
}

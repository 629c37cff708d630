// Package testutils provides utilities for testing, including scripted
// collaborators and corpus generators. These components are intended for
// internal use within the project's test suites and the corpus generation
// command, and are not part of the public API.
package testutils

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/ahrav/go-nlpeval/internal/domain"
)

// GenerateCorpus creates a labeled corpus of size expressions drawn from
// CorpusTemplates. The seed parameter controls randomization - use
// time.Now().UnixNano() for non-deterministic generation or a fixed value
// for reproducible tests.
func GenerateCorpus(size int, seed int64) []domain.LabeledExpression {
	return GenerateCorpusFromTemplates(size, seed, CorpusTemplates)
}

// GenerateCorpusDefault creates a corpus with a time-based seed.
func GenerateCorpusDefault(size int) []domain.LabeledExpression {
	return GenerateCorpus(size, time.Now().UnixNano())
}

// GenerateCorpusFromTemplates creates size expressions from templates,
// cycling through the templates so every intent is represented.
func GenerateCorpusFromTemplates(size int, seed int64, templates []ExpressionTemplate) []domain.LabeledExpression {
	if size <= 0 || len(templates) == 0 {
		return nil
	}
	rng := rand.New(rand.NewSource(seed))

	corpus := make([]domain.LabeledExpression, 0, size)
	for i := range size {
		corpus = append(corpus, renderTemplate(rng, templates[i%len(templates)]))
	}
	return corpus
}

// renderTemplate fills a template's slots and records each slot's span.
func renderTemplate(rng *rand.Rand, tmpl ExpressionTemplate) domain.LabeledExpression {
	var sb strings.Builder
	var entities []domain.ExpectedEntity

	for _, part := range tmpl.Parts {
		if part.Slot == nil {
			sb.WriteString(part.Literal)
			continue
		}
		value := part.Slot.Values[rng.Intn(len(part.Slot.Values))]
		start := sb.Len()
		sb.WriteString(value)
		entities = append(entities, domain.ExpectedEntity{
			Role:       part.Slot.Role,
			EntityType: part.Slot.EntityType,
			Span:       domain.Span{Start: start, End: sb.Len()},
		})
	}

	return domain.LabeledExpression{
		Text:     sb.String(),
		Intent:   tmpl.Intent,
		Entities: entities,
	}
}

// Intents used by ScenarioCorpus.
const (
	ScenarioIntentA = "intent-a"
	ScenarioIntentB = "intent-b"
)

// ScenarioCity is the entity carried by every intent-B expression of
// ScenarioCorpus.
var ScenarioCity = domain.ExpectedEntity{
	Role:       "city",
	EntityType: TypeLocation,
	Span:       domain.Span{Start: 5, End: 10},
}

// scenarioCities all have five letters so they fill ScenarioCity's span.
var scenarioCities = []string{"Paris", "Tokyo", "Milan", "Cairo", "Seoul"}

// ScenarioCorpus returns 100 expressions: 80 intent-A expressions sharing
// one entity-free text, then 20 intent-B expressions that each mention a
// city at bytes [5,10).
func ScenarioCorpus() []domain.LabeledExpression {
	corpus := make([]domain.LabeledExpression, 0, 100)
	for range 80 {
		corpus = append(corpus, domain.LabeledExpression{Text: "good morning", Intent: ScenarioIntentA})
	}
	for i := range 20 {
		corpus = append(corpus, domain.LabeledExpression{
			Text:     fmt.Sprintf("From %s, trip %d", scenarioCities[i%len(scenarioCities)], i),
			Intent:   ScenarioIntentB,
			Entities: []domain.ExpectedEntity{ScenarioCity},
		})
	}
	return corpus
}

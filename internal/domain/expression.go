// Package domain contains pure, dependency-free domain models and types
// for the evaluation harness.
package domain

import "fmt"

// Span is a half-open byte range [Start, End) into an expression's text.
type Span struct {
	// Start is the offset of the first byte of the entity.
	Start int `json:"start"`

	// End is the offset one past the last byte of the entity.
	End int `json:"end"`
}

// Equal reports whether two spans cover exactly the same range.
// Overlapping but different ranges are not equal.
func (s Span) Equal(other Span) bool { return s.Start == other.Start && s.End == other.End }

// Len returns the number of bytes covered by the span.
func (s Span) Len() int { return s.End - s.Start }

// String renders the span as [start,end).
func (s Span) String() string { return fmt.Sprintf("[%d,%d)", s.Start, s.End) }

// ExpectedEntity is a ground-truth entity annotation on a labeled expression.
// Span well-formedness is guaranteed by the corpus, not checked here.
type ExpectedEntity struct {
	// Role is the part the entity plays in the intent (e.g. "origin").
	Role string `json:"role"`

	// EntityType is the kind of value the entity denotes (e.g. "LOCATION").
	EntityType string `json:"type"`

	// Span locates the entity in the expression text.
	Span Span `json:"span"`
}

// RecognizedEntity is an entity predicted by the inference engine.
type RecognizedEntity struct {
	// Role is the predicted role.
	Role string `json:"role"`

	// EntityType is the predicted entity type.
	EntityType string `json:"type"`

	// Span locates the predicted entity in the parsed text.
	Span Span `json:"span"`

	// Probability is the recognizer's confidence. It never takes part in
	// entity comparison.
	Probability float64 `json:"probability"`
}

// LabeledExpression is one corpus item: a text with its declared intent and
// expected entities. Values are treated as read-only once loaded.
type LabeledExpression struct {
	// Text is the raw natural-language expression.
	Text string `json:"text"`

	// Intent is the declared intent identifier.
	Intent string `json:"intent"`

	// Entities lists the expected entity annotations in order.
	Entities []ExpectedEntity `json:"entities,omitempty"`
}

// ParseResult is what the inference engine returns for one text.
type ParseResult struct {
	// Intent is the predicted intent identifier.
	Intent string `json:"intent"`

	// IntentProbability is the classifier's confidence in Intent.
	IntentProbability float64 `json:"intent_probability"`

	// Entities lists the recognized entities.
	Entities []RecognizedEntity `json:"entities,omitempty"`
}

// ToRecognized converts expected annotations into recognized entities with
// full confidence. It is used by adapters that echo annotations back.
func ToRecognized(expected []ExpectedEntity) []RecognizedEntity {
	if len(expected) == 0 {
		return nil
	}
	out := make([]RecognizedEntity, len(expected))
	for i, e := range expected {
		out[i] = RecognizedEntity{
			Role:        e.Role,
			EntityType:  e.EntityType,
			Span:        e.Span,
			Probability: 1,
		}
	}
	return out
}

// ToExpected drops confidence values and converts recognized entities into
// expected annotations.
func ToExpected(recognized []RecognizedEntity) []ExpectedEntity {
	if len(recognized) == 0 {
		return nil
	}
	out := make([]ExpectedEntity, len(recognized))
	for i, r := range recognized {
		out[i] = ExpectedEntity{Role: r.Role, EntityType: r.EntityType, Span: r.Span}
	}
	return out
}

package classifier

import (
	"strings"
	"unicode/utf8"
)

// FewShotIntentModel holds the labeled examples shown to the language
// model, at most ExamplesPerIntent of them per intent.
type FewShotIntentModel struct {
	Labels   []string  `json:"labels"`
	Examples []Example `json:"examples"`
}

// Intents implements ports.IntentModel.
func (m *FewShotIntentModel) Intents() []string { return m.Labels }

// EntityValue is an entity annotation expressed by its surface text.
type EntityValue struct {
	Role  string `json:"role"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

// EntityExample is a training expression with its entity annotations.
type EntityExample struct {
	Intent   string        `json:"intent"`
	Text     string        `json:"text"`
	Entities []EntityValue `json:"entities"`
}

// FewShotEntityModel holds the annotated examples of one intent.
type FewShotEntityModel struct {
	IntentName string          `json:"intent"`
	Examples   []EntityExample `json:"examples"`
}

// Intent implements ports.EntityModel.
func (m *FewShotEntityModel) Intent() string { return m.IntentName }

// locator finds entity values in a text. Repeated values map to successive
// occurrences, left to right.
type locator struct {
	text string
	used map[string]int
}

func newLocator(text string) *locator {
	return &locator{text: text, used: make(map[string]int)}
}

// find returns the byte range of the next unused occurrence of value on
// word boundaries, matching exactly first and then ignoring case.
func (l *locator) find(value string) (int, int, bool) {
	if value == "" {
		return 0, 0, false
	}
	from := l.used[value]
	matchers := []func(string) bool{
		func(s string) bool { return s == value },
		func(s string) bool { return strings.EqualFold(s, value) },
	}
	for _, match := range matchers {
		for i := from; i+len(value) <= len(l.text); {
			end := i + len(value)
			if match(l.text[i:end]) && atBoundary(l.text, i, end) {
				l.used[value] = end
				return i, end, true
			}
			_, size := utf8.DecodeRuneInString(l.text[i:])
			i += size
		}
	}
	return 0, 0, false
}

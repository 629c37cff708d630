package classifier

import (
	"slices"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/ahrav/go-nlpeval/internal/domain"
	"github.com/ahrav/go-nlpeval/internal/ports"
)

var (
	_ ports.IntentModel = (*BaselineIntentModel)(nil)
	_ ports.EntityModel = (*BaselineEntityModel)(nil)
)

// Example is one normalized training text and its intent.
type Example struct {
	Text   string `json:"text"`
	Intent string `json:"intent"`
}

// BaselineIntentModel classifies a text with the intent of its most
// similar training example. It is immutable once built.
type BaselineIntentModel struct {
	Labels        []string  `json:"labels"`
	Examples      []Example `json:"examples"`
	CaseSensitive bool      `json:"case_sensitive"`

	exact map[string]int
}

// Intents implements ports.IntentModel.
func (m *BaselineIntentModel) Intents() []string { return slices.Clone(m.Labels) }

func (m *BaselineIntentModel) normalize(s string) string {
	if m.CaseSensitive {
		return s
	}
	return foldCaser.String(s)
}

// index prepares the exact-match lookup. It must run before the model is
// shared between goroutines.
func (m *BaselineIntentModel) index() {
	m.exact = make(map[string]int, len(m.Examples))
	for i, ex := range m.Examples {
		if _, ok := m.exact[ex.Text]; !ok {
			m.exact[ex.Text] = i
		}
	}
}

// nearest returns the intent of the example most similar to text and that
// similarity. Ties go to the earliest example.
func (m *BaselineIntentModel) nearest(text string) (string, float64) {
	prepared := m.normalize(text)
	if i, ok := m.exact[prepared]; ok {
		return m.Examples[i].Intent, 1.0
	}

	best, bestScore := -1, -1.0
	for i, ex := range m.Examples {
		if score := similarity(prepared, ex.Text); score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return "", 0
	}
	return m.Examples[best].Intent, bestScore
}

// similarity returns 1 - distance/maxLen over runes, in [0, 1].
func similarity(s1, s2 string) float64 {
	if s1 == s2 {
		return 1.0
	}
	maxLen := max(utf8.RuneCountInString(s1), utf8.RuneCountInString(s2))
	if maxLen == 0 {
		return 1.0
	}
	return max(0, 1.0-float64(levenshtein.ComputeDistance(s1, s2))/float64(maxLen))
}

// GazetteerEntry is one entity value seen in training.
type GazetteerEntry struct {
	Value      string         `json:"value"`
	EntityType string         `json:"type"`
	Roles      map[string]int `json:"roles"`
}

// BaselineEntityModel recognizes the entity values seen while training one
// intent. The word before a value picks its role when that word preceded
// entities in training; otherwise the value's most frequent role wins.
type BaselineEntityModel struct {
	IntentName    string                    `json:"intent"`
	Entries       []GazetteerEntry          `json:"entries"`
	Cues          map[string]map[string]int `json:"cues"`
	CaseSensitive bool                      `json:"case_sensitive"`
}

// Intent implements ports.EntityModel.
func (m *BaselineEntityModel) Intent() string { return m.IntentName }

// recognize finds every non-overlapping occurrence of a known value in
// text, preferring longer values.
func (m *BaselineEntityModel) recognize(text string) []domain.RecognizedEntity {
	entries := slices.Clone(m.Entries)
	sort.SliceStable(entries, func(i, j int) bool { return len(entries[i].Value) > len(entries[j].Value) })

	taken := make([]bool, len(text))
	var found []domain.RecognizedEntity
	for _, entry := range entries {
		for _, start := range m.occurrences(text, entry.Value) {
			end := start + len(entry.Value)
			if slices.Contains(taken[start:end], true) {
				continue
			}
			for i := start; i < end; i++ {
				taken[i] = true
			}
			role, prob := m.pickRole(entry, precedingWord(text, start))
			found = append(found, domain.RecognizedEntity{
				Role:        role,
				EntityType:  entry.EntityType,
				Span:        domain.Span{Start: start, End: end},
				Probability: prob,
			})
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Span.Start < found[j].Span.Start })
	return found
}

// occurrences returns the byte offsets where value occurs in text on word
// boundaries.
func (m *BaselineEntityModel) occurrences(text, value string) []int {
	if value == "" {
		return nil
	}
	var offsets []int
	for i := 0; i+len(value) <= len(text); {
		candidate := text[i : i+len(value)]
		matched := candidate == value || (!m.CaseSensitive && strings.EqualFold(candidate, value))
		if matched && atBoundary(text, i, i+len(value)) {
			offsets = append(offsets, i)
			i += len(value)
			continue
		}
		_, size := utf8.DecodeRuneInString(text[i:])
		i += size
	}
	return offsets
}

func atBoundary(text string, start, end int) bool {
	isWord := func(r rune) bool { return unicode.IsLetter(r) || unicode.IsNumber(r) }
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if isWord(r) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if isWord(r) {
			return false
		}
	}
	return true
}

// pickRole chooses the role of a recognized value and its probability.
// A known cue word overrides the roles the value itself was seen with.
func (m *BaselineEntityModel) pickRole(entry GazetteerEntry, cue string) (string, float64) {
	counts := entry.Roles
	if byCue := m.Cues[cue]; cue != "" && len(byCue) > 0 {
		counts = byCue
	}

	best, bestN, total := "", -1, 0
	for role, n := range counts {
		total += n
		if n > bestN || n == bestN && role < best {
			best, bestN = role, n
		}
	}
	if total == 0 {
		return best, 0
	}
	return best, float64(bestN) / float64(total)
}

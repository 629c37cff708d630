// Package corpus reads and writes labeled corpora. A corpus file is a JSON
// or YAML document, chosen by file extension, holding the expressions to
// evaluate with their intents and entity spans.
package corpus

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-nlpeval/internal/domain"
)

// ErrInvalidCorpus is matched by every error caused by corpus content
// rather than by I/O.
var ErrInvalidCorpus = errors.New("invalid corpus")

// Format is the encoding of a corpus file.
type Format string

// Supported corpus formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatOf returns the format implied by path's extension. Unknown
// extensions are read as JSON.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Corpus is a labeled corpus with optional metadata naming the application
// and language it was written for.
type Corpus struct {
	Application string
	Language    string
	Expressions []domain.LabeledExpression
}

// document is the on-disk layout. Entity spans are flattened into start
// and end offsets.
type document struct {
	Application string       `json:"application,omitempty" yaml:"application,omitempty"`
	Language    string       `json:"language,omitempty" yaml:"language,omitempty"`
	Expressions []expression `json:"expressions" yaml:"expressions"`
}

type expression struct {
	Text     string   `json:"text" yaml:"text"`
	Intent   string   `json:"intent" yaml:"intent"`
	Entities []entity `json:"entities,omitempty" yaml:"entities,omitempty"`
}

type entity struct {
	Role  string `json:"role" yaml:"role"`
	Type  string `json:"type" yaml:"type"`
	Start int    `json:"start" yaml:"start"`
	End   int    `json:"end" yaml:"end"`
}

// Load reads and validates the corpus at path.
func Load(path string) (*Corpus, error) {
	// Clean the path to prevent directory traversal attacks.
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus: %w", err)
	}
	return Parse(data, FormatOf(path))
}

// Parse decodes and validates a corpus document. Content errors match
// ErrInvalidCorpus.
func Parse(data []byte, format Format) (*Corpus, error) {
	jsonData := data
	if format == FormatYAML {
		var raw any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: failed to parse YAML: %w", ErrInvalidCorpus, err)
		}
		converted, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: YAML is not representable as JSON: %w", ErrInvalidCorpus, err)
		}
		jsonData = converted
	}

	var raw any
	if err := json.Unmarshal(jsonData, &raw); err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON: %w", ErrInvalidCorpus, err)
	}
	s, err := schema()
	if err != nil {
		return nil, err
	}
	if err := s.Validate(raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCorpus, err)
	}

	var doc document
	if err := json.NewDecoder(bytes.NewReader(jsonData)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCorpus, err)
	}
	return doc.toCorpus()
}

// toCorpus converts the document and checks that every span delimits a
// slice of its text.
func (d document) toCorpus() (*Corpus, error) {
	c := &Corpus{
		Application: d.Application,
		Language:    d.Language,
		Expressions: make([]domain.LabeledExpression, len(d.Expressions)),
	}
	verr := domain.NewValidationError("corpus")
	for i, e := range d.Expressions {
		expr := domain.LabeledExpression{Text: e.Text, Intent: e.Intent}
		for j, ent := range e.Entities {
			if ent.Start >= ent.End || ent.End > len(e.Text) {
				verr.AddError(fmt.Sprintf("expressions[%d].entities[%d]: span [%d,%d) outside text of %d bytes",
					i, j, ent.Start, ent.End, len(e.Text)))
				continue
			}
			expr.Entities = append(expr.Entities, domain.ExpectedEntity{
				Role:       ent.Role,
				EntityType: ent.Type,
				Span:       domain.Span{Start: ent.Start, End: ent.End},
			})
		}
		c.Expressions[i] = expr
	}
	if verr.HasErrors() {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCorpus, verr)
	}
	return c, nil
}

// Save writes c to path in the format implied by its extension, creating
// parent directories as needed.
func Save(path string, c *Corpus) error {
	data, err := Marshal(c, FormatOf(path))
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write corpus: %w", err)
	}
	return nil
}

// Marshal encodes c in the given format.
func Marshal(c *Corpus, format Format) ([]byte, error) {
	doc := fromCorpus(c)
	if format == FormatYAML {
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("failed to encode YAML: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("failed to encode YAML: %w", err)
		}
		return buf.Bytes(), nil
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}
	return append(data, '\n'), nil
}

func fromCorpus(c *Corpus) document {
	doc := document{
		Application: c.Application,
		Language:    c.Language,
		Expressions: make([]expression, len(c.Expressions)),
	}
	for i, e := range c.Expressions {
		expr := expression{Text: e.Text, Intent: e.Intent}
		for _, ent := range e.Entities {
			expr.Entities = append(expr.Entities, entity{
				Role:  ent.Role,
				Type:  ent.EntityType,
				Start: ent.Span.Start,
				End:   ent.Span.End,
			})
		}
		doc.Expressions[i] = expr
	}
	return doc
}

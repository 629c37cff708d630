// Package classifier provides model builders and parsers that implement
// ports.ModelBuilder and ports.Parser: a deterministic nearest-neighbour
// baseline and a few-shot adapter that prompts a chat model.
package classifier

import (
	"errors"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
)

// Common errors returned by the classifiers in this package.
var (
	// ErrInvalidSpan is returned when a training entity does not delimit a
	// slice of its expression's text.
	ErrInvalidSpan = errors.New("entity span outside expression text")

	// ErrForeignModel is returned when a parser or codec receives a model
	// built by another adapter.
	ErrForeignModel = errors.New("model was not built by this classifier")
)

var (
	// validate is the package-level validator for adapter configuration.
	validate = validator.New()

	// foldCaser is a package-level Unicode case folder for performance.
	foldCaser = cases.Fold()
)

// precedingWord returns the last word of text before byte offset end,
// case folded, or "" when there is none.
func precedingWord(text string, end int) string {
	fields := strings.FieldsFunc(text[:end], func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	if len(fields) == 0 {
		return ""
	}
	return foldCaser.String(fields[len(fields)-1])
}

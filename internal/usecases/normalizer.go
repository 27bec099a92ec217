package usecases

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"ukwikibot/internal/entities"
	"ukwikibot/internal/interfaces"
	"ukwikibot/pkg/log"
)

// Normalizer rewrites genitive phrases ("Володимира Зеленського") into
// their nominative dictionary form ("Володимир Зеленський").
type Normalizer struct {
	analyzer interfaces.MorphologyAnalyzer
}

func NewNormalizer(analyzer interfaces.MorphologyAnalyzer) *Normalizer {
	return &Normalizer{analyzer: analyzer}
}

// Normalize transforms each whitespace-separated word independently. Words
// without a genitive reading, or whose analysis fails, are kept as is.
func (n *Normalizer) Normalize(ctx context.Context, phrase string) string {
	words := strings.Fields(phrase)
	out := make([]string, 0, len(words))
	for _, word := range words {
		out = append(out, n.normalizeWord(ctx, word))
	}

	result := strings.Join(out, " ")
	log.WithRequestID(ctx).WithFields(log.Fields{
		"from": phrase,
		"to":   result,
	}).Debug("[Normalizer.Normalize] transformed phrase")
	return result
}

func (n *Normalizer) normalizeWord(ctx context.Context, word string) string {
	analyses, err := n.analyzer.Analyze(ctx, word)
	if err != nil {
		log.WithRequestID(ctx).WithFields(log.Fields{
			"word":  word,
			"error": err.Error(),
		}).Warn("[Normalizer.normalizeWord] morphology lookup failed")
		return word
	}

	// Least likely reading first: a genitive reading anywhere in the list wins.
	for i := len(analyses) - 1; i >= 0; i-- {
		if analyses[i].Case != entities.CaseGenitive || analyses[i].NormalForm == "" {
			continue
		}
		if startsUpper(word) {
			return capitalize(analyses[i].NormalForm)
		}
		return analyses[i].NormalForm
	}
	return word
}

func startsUpper(word string) bool {
	r, _ := utf8.DecodeRuneInString(word)
	return unicode.IsUpper(r)
}

// capitalize upper-cases the first letter and lower-cases the rest.
func capitalize(word string) string {
	return cases.Title(language.Ukrainian, cases.NoLower).String(strings.ToLower(word))
}

package matcher

import (
	"strings"
	"unicode/utf8"
)

// WordMatcher is the weak name test of the light check stages: the two names
// share at least one word of minimum length that is not a stopword.
type WordMatcher struct {
	minLength int
	stopwords map[string]struct{}
}

// NewWordMatcher creates a word matcher from the matching configuration
func NewWordMatcher(config *MatchingConfig) *WordMatcher {
	if config == nil {
		config = DefaultMatchingConfig()
	}
	stop := make(map[string]struct{}, len(config.Stopwords))
	for _, w := range config.Stopwords {
		stop[strings.ToUpper(strings.TrimSpace(w))] = struct{}{}
	}
	return &WordMatcher{minLength: config.MinWordLength, stopwords: stop}
}

// SharesWord reports whether a word of payer also appears in holder
func (w *WordMatcher) SharesWord(payer, holder string) bool {
	if strings.TrimSpace(payer) == "" || strings.TrimSpace(holder) == "" {
		return false
	}

	holderWords := make(map[string]struct{})
	for _, word := range strings.Fields(holder) {
		holderWords[word] = struct{}{}
	}

	for _, word := range strings.Fields(payer) {
		if utf8.RuneCountInString(word) < w.minLength {
			continue
		}
		if _, stop := w.stopwords[strings.ToUpper(word)]; stop {
			continue
		}
		if _, ok := holderWords[word]; ok {
			return true
		}
	}
	return false
}

// FilterBySharedWord keeps the candidates where any payer name shares a word with the holder name
func FilterBySharedWord(candidates []Candidate, matcher *WordMatcher) []Candidate {
	kept := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		for _, name := range c.Payment.Names {
			if matcher.SharesWord(name, c.Order.Name) {
				kept = append(kept, c)
				break
			}
		}
	}
	return kept
}

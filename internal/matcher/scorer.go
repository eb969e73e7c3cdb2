package matcher

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Scorer computes 0-100 similarity scores between a payer name and an order holder name.
type Scorer struct {
	minScore      int
	minNameLength int
}

// NewScorer creates a scorer from the matching configuration
func NewScorer(config *MatchingConfig) *Scorer {
	if config == nil {
		config = DefaultMatchingConfig()
	}
	return &Scorer{
		minScore:      config.MinScore,
		minNameLength: config.MinNameLength,
	}
}

// MinScore returns the acceptance threshold
func (s *Scorer) MinScore() int {
	return s.minScore
}

// Score returns the maximum of the four metrics. ok is false when either name
// is empty: such rows are excluded, never scored.
func (s *Scorer) Score(a, b string) (score int, ok bool) {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return 0, false
	}

	score = maxInt(TokenSortRatio(a, b), Ratio(a, b))
	if len(strings.Fields(a)) > 1 && len(strings.Fields(b)) > 1 {
		score = maxInt(score, TokenSetRatio(a, b), PartialRatio(a, b))
	}
	return score, true
}

// BestScore returns the highest score of any candidate name against target.
// Names shorter than the configured minimum length are skipped.
func (s *Scorer) BestScore(names []string, target string) (int, bool) {
	best, scored := 0, false
	for _, name := range names {
		name = strings.TrimSpace(name)
		if utf8.RuneCountInString(name) < s.minNameLength {
			continue
		}
		score, ok := s.Score(name, target)
		if !ok {
			continue
		}
		if !scored || score > best {
			best, scored = score, true
		}
	}
	return best, scored
}

// Accepts reports whether at least one name reaches the minimum score against target
func (s *Scorer) Accepts(names []string, target string) (int, bool) {
	best, ok := s.BestScore(names, target)
	return best, ok && best >= s.minScore
}

// Ratio is the normalized edit similarity of the raw strings
func Ratio(a, b string) int {
	longest := maxInt(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 100
	}
	dist := levenshtein.ComputeDistance(a, b)
	return int(math.Round(100 * (1 - float64(dist)/float64(longest))))
}

// TokenSortRatio compares the strings after sorting their tokens alphabetically
func TokenSortRatio(a, b string) int {
	return Ratio(sortedTokens(a), sortedTokens(b))
}

// TokenSetRatio compares the shared tokens against each side's full token set
func TokenSetRatio(a, b string) int {
	setA, setB := tokenSet(a), tokenSet(b)

	var common, onlyA, onlyB []string
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			common = append(common, tok)
		} else {
			onlyA = append(onlyA, tok)
		}
	}
	for tok := range setB {
		if _, ok := setA[tok]; !ok {
			onlyB = append(onlyB, tok)
		}
	}
	sort.Strings(common)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	sect := strings.Join(common, " ")
	combinedA := strings.TrimSpace(sect + " " + strings.Join(onlyA, " "))
	combinedB := strings.TrimSpace(sect + " " + strings.Join(onlyB, " "))

	best := Ratio(combinedA, combinedB)
	if sect != "" {
		best = maxInt(best, Ratio(sect, combinedA), Ratio(sect, combinedB))
	}
	return best
}

// PartialRatio is the best Ratio of the shorter string against every
// equally long window of the longer one.
func PartialRatio(a, b string) int {
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == 0 {
		return 0
	}

	shortStr := string(short)
	best := 0
	for start := 0; start+len(short) <= len(long); start++ {
		r := Ratio(shortStr, string(long[start:start+len(short)]))
		if r > best {
			best = r
			if best == 100 {
				break
			}
		}
	}
	return best
}

func sortedTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(s) {
		set[tok] = struct{}{}
	}
	return set
}

func maxInt(first int, rest ...int) int {
	m := first
	for _, v := range rest {
		if v > m {
			m = v
		}
	}
	return m
}

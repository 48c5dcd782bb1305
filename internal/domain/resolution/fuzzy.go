package resolution

import (
	"strings"
	"sync"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/FACorreiaa/statement-ledger/internal/domain/ledger"
)

// Acceptance thresholds for the approximate stages.
const (
	jaccardThreshold     = 0.8
	levenshteinThreshold = 0.85
)

type fuzzyPattern struct {
	normalized string
	tokens     map[string]bool
	meta       patternMeta
}

// FuzzyMatcher answers cascade stages four and five: token-set overlap for
// reordered descriptions, then Levenshtein similarity for typo-level drift.
// Best match across all patterns wins, not first above threshold.
type FuzzyMatcher struct {
	mu       sync.RWMutex
	patterns []fuzzyPattern
}

// NewFuzzyMatcher builds a matcher from the vendor book.
func NewFuzzyMatcher(vendors []ledger.Vendor) *FuzzyMatcher {
	fm := &FuzzyMatcher{}
	fm.Build(vendors)
	return fm
}

// Build reconstructs the pattern list from the vendor book.
func (fm *FuzzyMatcher) Build(vendors []ledger.Vendor) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	fm.patterns = fm.patterns[:0]
	for _, v := range vendors {
		meta := patternMeta{
			vendorID:      v.ID,
			vendorName:    v.CanonicalName,
			glAccountCode: v.DefaultGLAccount,
			weight:        v.Weight,
		}
		candidates := append([]string{v.CanonicalName}, v.Patterns...)
		for _, pat := range candidates {
			normalized := normalizeKey(pat)
			if normalized == "" {
				continue
			}
			m := meta
			m.pattern = pat
			fm.patterns = append(fm.patterns, fuzzyPattern{
				normalized: normalized,
				tokens:     tokenSet(normalized),
				meta:       m,
			})
		}
	}
}

// MatchTokenSet is cascade stage four: Jaccard similarity over word token
// sets. Catches descriptions whose words arrive reordered or with extras,
// like "PAYPAL *NETFLIX" against "NETFLIX PAYPAL".
func (fm *FuzzyMatcher) MatchTokenSet(description string) *Match {
	fm.mu.RLock()
	defer fm.mu.RUnlock()

	input := tokenSet(normalizeKey(description))
	if len(input) == 0 {
		return nil
	}

	var best *Match
	bestScore, bestWeight := 0.0, -1.0
	for _, p := range fm.patterns {
		score := jaccard(input, p.tokens)
		if score < jaccardThreshold {
			continue
		}
		if score > bestScore || (score == bestScore && p.meta.weight > bestWeight) {
			bestScore, bestWeight = score, p.meta.weight
			best = p.meta.toMatch(score, ledger.StrategyTokenSet)
		}
	}
	return best
}

// MatchLevenshtein is cascade stage five: normalized edit-distance
// similarity. The best score across every pattern is compared against the
// threshold once, so a mediocre early hit cannot shadow a better later one.
func (fm *FuzzyMatcher) MatchLevenshtein(description string) *Match {
	fm.mu.RLock()
	defer fm.mu.RUnlock()

	input := normalizeKey(description)
	if input == "" {
		return nil
	}

	var best *Match
	bestScore := 0.0
	for _, p := range fm.patterns {
		score := levenshteinSimilarity(input, p.normalized)
		if score > bestScore {
			bestScore = score
			best = p.meta.toMatch(score, ledger.StrategyFuzzy)
		}
	}
	if bestScore < levenshteinThreshold {
		return nil
	}
	return best
}

// jaccard is intersection over union of two token sets.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for tok := range a {
		if b[tok] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// levenshteinSimilarity maps edit distance into [0,1], 1 being identical.
// Containment short-circuits high because merchant strings routinely embed
// the vendor name in store-number noise.
func levenshteinSimilarity(s1, s2 string) float64 {
	if s1 == s2 {
		return 1
	}
	if strings.Contains(s1, s2) || strings.Contains(s2, s1) {
		shorter, longer := len(s1), len(s2)
		if shorter > longer {
			shorter, longer = longer, shorter
		}
		return 0.75 + 0.25*float64(shorter)/float64(longer)
	}

	distance := fuzzy.LevenshteinDistance(s1, s2)
	maxLen := len([]rune(s1))
	if l := len([]rune(s2)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 0
	}
	return float64(maxLen-distance) / float64(maxLen)
}

func tokenSet(normalized string) map[string]bool {
	fields := strings.Fields(normalized)
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, "*#.,-")
		if len(f) < 2 {
			continue
		}
		set[f] = true
	}
	return set
}

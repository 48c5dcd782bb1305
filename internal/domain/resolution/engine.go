// Package resolution maps transaction descriptions to vendors through a
// fixed cascade of matching strategies, cheapest and most precise first.
package resolution

import (
	"strings"
	"sync"

	"github.com/cloudflare/ahocorasick"
	"github.com/google/uuid"

	"github.com/FACorreiaa/statement-ledger/internal/domain/ledger"
)

// Confidence assigned by each deterministic stage. Probabilistic stages
// compute their own.
const (
	ConfidenceExact      = 1.0
	ConfidenceHistorical = 0.95
	ConfidenceContains   = 0.9
)

// Match is one cascade hit with its provenance.
type Match struct {
	VendorID      uuid.UUID
	VendorName    string
	GLAccountCode string
	Pattern       string
	Confidence    float64
	Strategy      ledger.Strategy
}

type patternMeta struct {
	vendorID      uuid.UUID
	vendorName    string
	glAccountCode string
	pattern       string
	weight        float64
}

// Engine answers the three deterministic cascade stages: exact pattern
// lookup, learned-pattern containment, and vendor-pattern containment. Each
// containment stage runs its patterns in a single Aho-Corasick pass.
type Engine struct {
	mu sync.RWMutex

	exact map[string]patternMeta

	matcher  *ahocorasick.Matcher
	patterns []string
	metadata []patternMeta

	histMatcher  *ahocorasick.Matcher
	histPatterns []string
	histMetadata []patternMeta
}

// NewEngine builds an engine from the vendor book and the learned patterns.
func NewEngine(vendors []ledger.Vendor, learned []ledger.LearnedPattern) *Engine {
	e := &Engine{}
	e.Build(vendors, learned)
	return e
}

// Build reconstructs all three indexes. Called again whenever vendors or
// learned patterns change.
func (e *Engine) Build(vendors []ledger.Vendor, learned []ledger.LearnedPattern) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.exact = make(map[string]patternMeta)
	e.patterns = nil
	e.metadata = nil
	e.histPatterns = nil
	e.histMetadata = nil

	byVendor := make(map[uuid.UUID]ledger.Vendor, len(vendors))

	for _, v := range vendors {
		byVendor[v.ID] = v
		meta := patternMeta{
			vendorID:      v.ID,
			vendorName:    v.CanonicalName,
			glAccountCode: v.DefaultGLAccount,
			weight:        v.Weight,
		}

		for _, pat := range v.Patterns {
			key := normalizeKey(pat)
			if key == "" {
				continue
			}
			m := meta
			m.pattern = pat
			// First confirmation wins on key collisions.
			if _, exists := e.exact[key]; !exists {
				e.exact[key] = m
			}
			e.patterns = append(e.patterns, key)
			e.metadata = append(e.metadata, m)
		}

		nameKey := normalizeKey(v.CanonicalName)
		if nameKey != "" {
			m := meta
			m.pattern = v.CanonicalName
			if _, exists := e.exact[nameKey]; !exists {
				e.exact[nameKey] = m
			}
			e.patterns = append(e.patterns, nameKey)
			e.metadata = append(e.metadata, m)
		}
	}

	for _, lp := range learned {
		key := normalizeKey(lp.Pattern)
		if key == "" {
			continue
		}
		v, ok := byVendor[lp.VendorID]
		if !ok {
			// Pattern for a deleted vendor. Severed, never matched.
			continue
		}
		e.histPatterns = append(e.histPatterns, key)
		e.histMetadata = append(e.histMetadata, patternMeta{
			vendorID:      lp.VendorID,
			vendorName:    v.CanonicalName,
			glAccountCode: lp.GLAccountCode,
			pattern:       lp.Pattern,
			weight:        lp.Confidence,
		})
	}

	e.matcher = buildMatcher(e.patterns)
	e.histMatcher = buildMatcher(e.histPatterns)
}

func buildMatcher(patterns []string) *ahocorasick.Matcher {
	if len(patterns) == 0 {
		return nil
	}
	bytePatterns := make([][]byte, len(patterns))
	for i, p := range patterns {
		bytePatterns[i] = []byte(p)
	}
	return ahocorasick.NewMatcher(bytePatterns)
}

// MatchExact is cascade stage one: the cleaned description equals a known
// pattern or canonical name.
func (e *Engine) MatchExact(description string) *Match {
	e.mu.RLock()
	defer e.mu.RUnlock()

	meta, ok := e.exact[normalizeKey(description)]
	if !ok {
		return nil
	}
	return meta.toMatch(ConfidenceExact, ledger.StrategyExact)
}

// MatchHistorical is cascade stage two: a pattern the user previously
// confirmed appears inside the description. Containment, not equality, so
// "POS STARBUCKS #221 SEATTLE" replays the confirmation recorded for
// "STARBUCKS #221". When several patterns hit, the longest wins.
func (e *Engine) MatchHistorical(description string) *Match {
	e.mu.RLock()
	defer e.mu.RUnlock()

	meta := bestHit(e.histMatcher, e.histPatterns, e.histMetadata, description)
	if meta == nil {
		return nil
	}
	return meta.toMatch(ConfidenceHistorical, ledger.StrategyHistorical)
}

// MatchContains is cascade stage three: a known pattern appears inside the
// description. When several patterns hit, the longest wins; ties break on
// vendor weight.
func (e *Engine) MatchContains(description string) *Match {
	e.mu.RLock()
	defer e.mu.RUnlock()

	meta := bestHit(e.matcher, e.patterns, e.metadata, description)
	if meta == nil {
		return nil
	}
	return meta.toMatch(ConfidenceContains, ledger.StrategyContains)
}

func bestHit(matcher *ahocorasick.Matcher, patterns []string, metadata []patternMeta, description string) *patternMeta {
	if matcher == nil {
		return nil
	}

	hits := matcher.Match([]byte(normalizeKey(description)))
	if len(hits) == 0 {
		return nil
	}

	best := -1
	for _, idx := range hits {
		if idx < 0 || idx >= len(metadata) {
			continue
		}
		if best < 0 || better(patterns[idx], metadata[idx], patterns[best], metadata[best]) {
			best = idx
		}
	}
	if best < 0 {
		return nil
	}
	return &metadata[best]
}

// PatternCount returns the number of containment patterns loaded.
func (e *Engine) PatternCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.patterns)
}

func better(patA string, metaA patternMeta, patB string, metaB patternMeta) bool {
	if len(patA) != len(patB) {
		return len(patA) > len(patB)
	}
	return metaA.weight > metaB.weight
}

func (m patternMeta) toMatch(confidence float64, strategy ledger.Strategy) *Match {
	return &Match{
		VendorID:      m.vendorID,
		VendorName:    m.vendorName,
		GLAccountCode: m.glAccountCode,
		Pattern:       m.pattern,
		Confidence:    confidence,
		Strategy:      strategy,
	}
}

// normalizeKey collapses case and interior whitespace so lookups survive
// cosmetic differences.
func normalizeKey(s string) string {
	return strings.Join(strings.Fields(strings.ToUpper(strings.TrimSpace(s))), " ")
}

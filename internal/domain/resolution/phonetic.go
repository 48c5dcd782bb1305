package resolution

import (
	"strings"
	"sync"

	"github.com/FACorreiaa/statement-ledger/internal/domain/ledger"
)

const (
	// ConfidencePhonetic is assigned to every phonetic hit. Sound-alike
	// matching is coarse; it ranks below edit distance on purpose.
	ConfidencePhonetic = 0.75

	// minPhoneticKey rejects keys too short to be discriminating. "AMC" and
	// "IMC" encode identically; four code letters is the floor.
	minPhoneticKey = 4
)

// PhoneticMatcher answers cascade stage six: sound-alike vendor names, the
// kind OCR and bank truncation produce ("WALMRT", "WAL MART").
type PhoneticMatcher struct {
	mu   sync.RWMutex
	keys map[string]patternMeta
}

// NewPhoneticMatcher builds a matcher from the vendor book.
func NewPhoneticMatcher(vendors []ledger.Vendor) *PhoneticMatcher {
	pm := &PhoneticMatcher{}
	pm.Build(vendors)
	return pm
}

// Build recomputes phonetic keys for every vendor name and pattern.
func (pm *PhoneticMatcher) Build(vendors []ledger.Vendor) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.keys = make(map[string]patternMeta)
	for _, v := range vendors {
		meta := patternMeta{
			vendorID:      v.ID,
			vendorName:    v.CanonicalName,
			glAccountCode: v.DefaultGLAccount,
			weight:        v.Weight,
		}
		for _, pat := range append([]string{v.CanonicalName}, v.Patterns...) {
			key := PhoneticKey(pat)
			if len(key) < minPhoneticKey {
				continue
			}
			m := meta
			m.pattern = pat
			if existing, ok := pm.keys[key]; !ok || m.weight > existing.weight {
				pm.keys[key] = m
			}
		}
	}
}

// Match encodes the description and looks for a vendor with the same key.
func (pm *PhoneticMatcher) Match(description string) *Match {
	key := PhoneticKey(description)
	if len(key) < minPhoneticKey {
		return nil
	}

	pm.mu.RLock()
	defer pm.mu.RUnlock()

	meta, ok := pm.keys[key]
	if !ok {
		return nil
	}
	return meta.toMatch(ConfidencePhonetic, ledger.StrategyPhonetic)
}

// digraph substitutions applied before the letter map.
var phoneticDigraphs = []struct{ from, to string }{
	{"PH", "F"},
	{"GH", ""},
	{"KN", "N"},
	{"WR", "R"},
	{"CK", "K"},
	{"SCH", "SK"},
	{"TH", "T"},
	{"SH", "X"},
	{"CH", "X"},
}

// PhoneticKey produces a compact metaphone-style code: digraphs collapse,
// soft letters remap, non-leading vowels drop, runs dedupe. Deterministic
// and cheap rather than linguistically complete.
func PhoneticKey(s string) string {
	upper := strings.ToUpper(strings.TrimSpace(s))

	var letters strings.Builder
	for _, r := range upper {
		if r >= 'A' && r <= 'Z' {
			letters.WriteRune(r)
		} else if r == ' ' || r == '*' || r == '#' {
			letters.WriteRune(' ')
		}
	}
	cleaned := strings.Join(strings.Fields(letters.String()), "")
	if cleaned == "" {
		return ""
	}

	for _, d := range phoneticDigraphs {
		cleaned = strings.ReplaceAll(cleaned, d.from, d.to)
	}

	var out []byte
	for i := 0; i < len(cleaned); i++ {
		c := cleaned[i]
		switch c {
		case 'B', 'P':
			c = 'P'
		case 'D', 'T':
			c = 'T'
		case 'C', 'K', 'Q':
			c = 'K'
		case 'G', 'J':
			c = 'J'
		case 'S', 'Z':
			c = 'S'
		case 'F', 'V':
			c = 'F'
		case 'M', 'N':
			c = 'N'
		case 'W', 'Y', 'H':
			continue
		case 'A', 'E', 'I', 'O', 'U':
			if i != 0 {
				continue
			}
		}
		if len(out) > 0 && out[len(out)-1] == c {
			continue
		}
		out = append(out, c)
	}
	return string(out)
}

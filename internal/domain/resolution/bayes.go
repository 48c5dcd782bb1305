package resolution

import (
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/FACorreiaa/statement-ledger/internal/domain/ingest/normalizer"
	"github.com/FACorreiaa/statement-ledger/internal/domain/ledger"
)

const (
	// bayesFloor is the minimum posterior the best vendor must reach.
	bayesFloor = 0.4

	// bayesCeiling caps the reported confidence. A probabilistic guess never
	// outranks a deterministic containment hit.
	bayesCeiling = 0.9
)

type vendorModel struct {
	name          string
	glAccountCode string
	tokenCounts   map[string]int
	totalTokens   int
	docs          int
}

// BayesClassifier answers cascade stage seven: a naive Bayes model over
// description tokens, trained incrementally from confirmed matches. Catches
// vendors whose descriptions share vocabulary without sharing strings.
type BayesClassifier struct {
	mu        sync.RWMutex
	vendors   map[uuid.UUID]*vendorModel
	vocab     map[string]bool
	totalDocs int
}

// NewBayesClassifier builds a classifier seeded from the vendor book and the
// learned pattern history.
func NewBayesClassifier(vendors []ledger.Vendor, learned []ledger.LearnedPattern) *BayesClassifier {
	bc := &BayesClassifier{
		vendors: make(map[uuid.UUID]*vendorModel),
		vocab:   make(map[string]bool),
	}
	for _, v := range vendors {
		for _, pat := range append([]string{v.CanonicalName}, v.Patterns...) {
			bc.train(v.ID, v.CanonicalName, v.DefaultGLAccount, pat)
		}
	}
	byVendor := make(map[uuid.UUID]ledger.Vendor, len(vendors))
	for _, v := range vendors {
		byVendor[v.ID] = v
	}
	for _, lp := range learned {
		v, ok := byVendor[lp.VendorID]
		if !ok {
			continue
		}
		bc.train(lp.VendorID, v.CanonicalName, lp.GLAccountCode, lp.Pattern)
	}
	return bc
}

// Train adds one confirmed observation. Incremental: no rebuild needed after
// a user confirmation.
func (bc *BayesClassifier) Train(vendorID uuid.UUID, vendorName, glAccountCode, description string) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	bc.train(vendorID, vendorName, glAccountCode, description)
}

// Forget drops a vendor's model entirely, for vendor deletion.
func (bc *BayesClassifier) Forget(vendorID uuid.UUID) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	if m, ok := bc.vendors[vendorID]; ok {
		bc.totalDocs -= m.docs
		delete(bc.vendors, vendorID)
	}
}

func (bc *BayesClassifier) train(vendorID uuid.UUID, vendorName, glAccountCode, description string) {
	tokens := normalizer.Tokens(description)
	if len(tokens) == 0 {
		return
	}

	m, ok := bc.vendors[vendorID]
	if !ok {
		m = &vendorModel{
			name:          vendorName,
			glAccountCode: glAccountCode,
			tokenCounts:   make(map[string]int),
		}
		bc.vendors[vendorID] = m
	}
	for _, tok := range tokens {
		m.tokenCounts[tok]++
		m.totalTokens++
		bc.vocab[tok] = true
	}
	m.docs++
	bc.totalDocs++
}

// Match scores every vendor against the description tokens and accepts the
// best posterior when it clears the floor and shares vocabulary with the
// description. Log space with Laplace smoothing; posteriors renormalize
// across vendors before the floor check.
func (bc *BayesClassifier) Match(description string) *Match {
	tokens := normalizer.Tokens(description)
	if len(tokens) == 0 {
		return nil
	}

	bc.mu.RLock()
	defer bc.mu.RUnlock()

	if len(bc.vendors) == 0 || bc.totalDocs == 0 {
		return nil
	}

	vocabSize := float64(len(bc.vocab))
	type scored struct {
		id      uuid.UUID
		m       *vendorModel
		log     float64
		overlap int
	}
	scores := make([]scored, 0, len(bc.vendors))

	for id, m := range bc.vendors {
		logProb := math.Log(float64(m.docs) / float64(bc.totalDocs))
		overlap := 0
		for _, tok := range tokens {
			count := float64(m.tokenCounts[tok])
			if count > 0 {
				overlap++
			}
			logProb += math.Log((count + 1) / (float64(m.totalTokens) + vocabSize))
		}
		scores = append(scores, scored{id: id, m: m, log: logProb, overlap: overlap})
	}

	// Renormalize relative to the max to avoid underflow.
	maxLog := scores[0].log
	for _, s := range scores[1:] {
		if s.log > maxLog {
			maxLog = s.log
		}
	}
	total := 0.0
	for i := range scores {
		scores[i].log = math.Exp(scores[i].log - maxLog)
		total += scores[i].log
	}

	best := scores[0]
	for _, s := range scores[1:] {
		if s.log > best.log {
			best = s
		}
	}
	// The posterior is relative to the other vendors, so with one or two
	// vendors a nonsense description still produces a confident ratio. The
	// winner must have actually seen at least one of the input tokens.
	if best.overlap == 0 {
		return nil
	}

	posterior := best.log / total
	if posterior < bayesFloor {
		return nil
	}

	return &Match{
		VendorID:      best.id,
		VendorName:    best.m.name,
		GLAccountCode: best.m.glAccountCode,
		Confidence:    math.Min(posterior, bayesCeiling),
		Strategy:      ledger.StrategyBayesian,
	}
}

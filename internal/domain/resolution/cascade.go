package resolution

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/statement-ledger/internal/domain/ledger"
)

// AuditEntry records how an approximate stage resolved a transaction.
// Deterministic stages (exact, historical) leave no audit trail: they are
// replays of explicit user decisions.
type AuditEntry struct {
	TransactionID uuid.UUID
	Description   string
	Strategy      ledger.Strategy
	Pattern       string
	VendorID      *uuid.UUID
	Confidence    float64
	At            time.Time
}

// Outcome summarizes one cascade run.
type Outcome struct {
	Resolved           int
	Suspense           int
	ClassifierFailures int
	Audit              []AuditEntry
}

// SuggestionLearner promotes accepted external suggestions into the vendor
// book, so the next run resolves the same description locally.
type SuggestionLearner interface {
	LearnSuggestion(ctx context.Context, vendorName, description, glAccountCode string) (ledger.Vendor, error)
}

// Cascade runs the full resolution pipeline over a batch of transactions.
// Stage order is fixed, cheapest and most precise first; the first stage to
// produce a match wins and later stages never run for that transaction.
type Cascade struct {
	engine   *Engine
	fuzzy    *FuzzyMatcher
	phonetic *PhoneticMatcher
	bayes    *BayesClassifier
	external *BatchClassifier
	learner  SuggestionLearner
	suspense string
	logger   *slog.Logger
	clock    func() time.Time
}

// NewCascade wires the stages together. suspenseCode is the GL account that
// absorbs everything nothing else could place.
func NewCascade(engine *Engine, fuzzy *FuzzyMatcher, phonetic *PhoneticMatcher, bayes *BayesClassifier, external *BatchClassifier, suspenseCode string, logger *slog.Logger) *Cascade {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cascade{
		engine:   engine,
		fuzzy:    fuzzy,
		phonetic: phonetic,
		bayes:    bayes,
		external: external,
		suspense: suspenseCode,
		logger:   logger,
		clock:    time.Now,
	}
}

// WithLearner records successful external classifications as confirmed
// patterns. Without a learner every repeat of a description pays for another
// classifier call.
func (c *Cascade) WithLearner(l SuggestionLearner) *Cascade {
	c.learner = l
	return c
}

// Resolve annotates transactions in place. Local stages run synchronously;
// survivors go to the external classifier in one batched pass; whatever
// remains lands in suspense. Resolve never fails the import: classifier
// outages degrade to suspense bookings.
func (c *Cascade) Resolve(ctx context.Context, txs []ledger.Transaction) ([]ledger.Transaction, Outcome, error) {
	var outcome Outcome

	unresolvedIdx := make([]int, 0, len(txs))
	for i := range txs {
		match := c.resolveLocal(txs[i].DescriptionClean)
		if match == nil {
			unresolvedIdx = append(unresolvedIdx, i)
			continue
		}
		c.apply(&txs[i], match, &outcome)
	}

	if len(unresolvedIdx) > 0 && c.external != nil {
		outcome.ClassifierFailures = c.resolveExternal(ctx, txs, unresolvedIdx, &outcome)
	}

	for i := range txs {
		if txs[i].SourceStrategy != "" {
			continue
		}
		txs[i].Unresolve(c.suspense)
		outcome.Suspense++
	}

	c.logger.Info("cascade finished",
		slog.Int("transactions", len(txs)),
		slog.Int("resolved", outcome.Resolved),
		slog.Int("suspense", outcome.Suspense),
		slog.Int("classifier_failures", outcome.ClassifierFailures))
	return txs, outcome, nil
}

// resolveLocal runs the seven local stages in order.
func (c *Cascade) resolveLocal(description string) *Match {
	if m := c.engine.MatchExact(description); m != nil {
		return m
	}
	if m := c.engine.MatchHistorical(description); m != nil {
		return m
	}
	if m := c.engine.MatchContains(description); m != nil {
		return m
	}
	if m := c.fuzzy.MatchTokenSet(description); m != nil {
		return m
	}
	if m := c.fuzzy.MatchLevenshtein(description); m != nil {
		return m
	}
	if m := c.phonetic.Match(description); m != nil {
		return m
	}
	if c.bayes != nil {
		if m := c.bayes.Match(description); m != nil {
			return m
		}
	}
	return nil
}

func (c *Cascade) resolveExternal(ctx context.Context, txs []ledger.Transaction, unresolvedIdx []int, outcome *Outcome) int {
	// Dedupe descriptions so the API sees each string once.
	seen := map[string]bool{}
	descriptions := make([]string, 0, len(unresolvedIdx))
	for _, i := range unresolvedIdx {
		d := txs[i].DescriptionClean
		if !seen[d] {
			seen[d] = true
			descriptions = append(descriptions, d)
		}
	}

	suggestions, failures, err := c.external.ClassifyAll(ctx, descriptions)
	if err != nil {
		c.logger.Warn("external classification aborted", slog.String("error", err.Error()))
		return failures
	}

	matches := make(map[string]*Match, len(suggestions))
	for _, d := range descriptions {
		s, ok := suggestions[d]
		if !ok {
			continue
		}
		match := s.ToMatch()
		if c.learner != nil {
			vendor, err := c.learner.LearnSuggestion(ctx, s.VendorName, d, s.GLAccountCode)
			if err != nil {
				c.logger.Warn("promote suggestion failed",
					slog.String("vendor", s.VendorName),
					slog.String("error", err.Error()))
			} else {
				match.VendorID = vendor.ID
				match.VendorName = vendor.CanonicalName
				if match.GLAccountCode == "" {
					match.GLAccountCode = vendor.DefaultGLAccount
				}
			}
		}
		matches[d] = match
	}

	for _, i := range unresolvedIdx {
		if m, ok := matches[txs[i].DescriptionClean]; ok {
			c.apply(&txs[i], m, outcome)
		}
	}
	return failures
}

// apply writes the match onto the transaction and audits approximate stages.
func (c *Cascade) apply(tx *ledger.Transaction, match *Match, outcome *Outcome) {
	if match.VendorID != uuid.Nil {
		id := match.VendorID
		tx.VendorID = &id
	}
	tx.GLAccountCode = match.GLAccountCode
	tx.Confidence = match.Confidence
	tx.SourceStrategy = match.Strategy
	outcome.Resolved++

	switch match.Strategy {
	case ledger.StrategyExact, ledger.StrategyHistorical:
		return
	}

	entry := AuditEntry{
		TransactionID: tx.ID,
		Description:   tx.DescriptionClean,
		Strategy:      match.Strategy,
		Pattern:       match.Pattern,
		Confidence:    match.Confidence,
		At:            c.clock(),
	}
	if tx.VendorID != nil {
		entry.VendorID = tx.VendorID
	}
	outcome.Audit = append(outcome.Audit, entry)
}

package main

import (
	"github.com/google/uuid"

	"github.com/FACorreiaa/statement-ledger/internal/domain/learning"
	"github.com/FACorreiaa/statement-ledger/internal/domain/ledger"
	"github.com/FACorreiaa/statement-ledger/internal/domain/resolution"
	"github.com/FACorreiaa/statement-ledger/pkg/cron"
)

// bayesListener feeds learning store mutations into the Bayes model.
type bayesListener struct {
	bayes *resolution.BayesClassifier
}

var _ learning.ChangeListener = (*bayesListener)(nil)

func (l *bayesListener) VendorConfirmed(vendor ledger.Vendor, pattern ledger.LearnedPattern) {
	l.bayes.Train(vendor.ID, vendor.CanonicalName, pattern.GLAccountCode, pattern.Pattern)
}

func (l *bayesListener) VendorDeleted(vendorID uuid.UUID) {
	l.bayes.Forget(vendorID)
}

// engineRebuilder adapts the resolution engine to the scheduler's rebuild
// contract.
type engineRebuilder struct {
	engine *resolution.Engine
}

func (r *engineRebuilder) Rebuild(vendors []ledger.Vendor, patterns []ledger.LearnedPattern) {
	r.engine.Build(vendors, patterns)
}

type fuzzyRebuilder struct {
	fuzzy *resolution.FuzzyMatcher
}

func (r *fuzzyRebuilder) Rebuild(vendors []ledger.Vendor, _ []ledger.LearnedPattern) {
	r.fuzzy.Build(vendors)
}

type phoneticRebuilder struct {
	phonetic *resolution.PhoneticMatcher
}

func (r *phoneticRebuilder) Rebuild(vendors []ledger.Vendor, _ []ledger.LearnedPattern) {
	r.phonetic.Build(vendors)
}

func matcherRebuilders(engine *resolution.Engine, fuzzy *resolution.FuzzyMatcher, phonetic *resolution.PhoneticMatcher) []cron.MatcherRebuilder {
	return []cron.MatcherRebuilder{
		&engineRebuilder{engine: engine},
		&fuzzyRebuilder{fuzzy: fuzzy},
		&phoneticRebuilder{phonetic: phonetic},
	}
}

// matcherListener rebuilds the deterministic matchers when the vendor book
// mutates, so a promoted suggestion or fresh confirmation resolves locally
// without waiting for the nightly rebuild.
type matcherListener struct {
	store      *learning.Store
	rebuilders []cron.MatcherRebuilder
}

var _ learning.ChangeListener = (*matcherListener)(nil)

func (l *matcherListener) VendorConfirmed(ledger.Vendor, ledger.LearnedPattern) {
	l.rebuild()
}

func (l *matcherListener) VendorDeleted(uuid.UUID) {
	l.rebuild()
}

func (l *matcherListener) rebuild() {
	vendors, patterns := l.store.Snapshot()
	for _, r := range l.rebuilders {
		r.Rebuild(vendors, patterns)
	}
}

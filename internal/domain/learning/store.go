// Package learning keeps the feedback loop: confirmed and corrected matches
// become patterns and weights that sharpen future cascade runs.
package learning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/FACorreiaa/statement-ledger/internal/domain/ledger"
)

var (
	ErrVendorNotFound = errors.New("vendor not found")
)

// Reinforcement tuning. Weights saturate at 1.0 so a long confirmation
// streak cannot make a vendor unbeatable forever; corrections always move
// the needle.
const (
	reinforceStep = 0.1
	penaltyStep   = 0.05
	maxWeight     = 1.0

	// newVendorWeight is where a vendor created from a confirmation lands
	// after its first reinforcement. One confirmation is evidence, not a
	// track record.
	newVendorWeight = 0.5
)

// ChangeListener is notified after the store mutates, so matchers can
// rebuild and the Bayes model can train incrementally.
type ChangeListener interface {
	VendorConfirmed(vendor ledger.Vendor, pattern ledger.LearnedPattern)
	VendorDeleted(vendorID uuid.UUID)
}

type vendorState struct {
	mu       sync.Mutex
	vendor   ledger.Vendor
	patterns []ledger.LearnedPattern
}

// Store is the in-memory learning state. The outer map is guarded by an
// RWMutex; each vendor carries its own lock so concurrent confirmations for
// different vendors never serialize.
type Store struct {
	mu      sync.RWMutex
	vendors map[uuid.UUID]*vendorState

	repo      Repository
	listeners []ChangeListener
	logger    *slog.Logger
}

// NewStore builds a store seeded from existing vendors and patterns.
// repo may be nil for a purely in-memory store.
func NewStore(vendors []ledger.Vendor, patterns []ledger.LearnedPattern, repo Repository, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		vendors: make(map[uuid.UUID]*vendorState, len(vendors)),
		repo:    repo,
		logger:  logger,
	}
	for _, v := range vendors {
		s.vendors[v.ID] = &vendorState{vendor: v}
	}
	for _, p := range patterns {
		if vs, ok := s.vendors[p.VendorID]; ok {
			vs.patterns = append(vs.patterns, p)
		}
	}
	return s
}

// Subscribe registers a listener for store mutations. Not safe to call
// concurrently with mutations; wire listeners at startup.
func (s *Store) Subscribe(l ChangeListener) {
	s.listeners = append(s.listeners, l)
}

// Confirm records that the user accepted a match: the raw description
// becomes a learned pattern and the vendor's weight reinforces.
func (s *Store) Confirm(ctx context.Context, vendorID uuid.UUID, description, glAccountCode string) (ledger.LearnedPattern, error) {
	vs, err := s.state(vendorID)
	if err != nil {
		return ledger.LearnedPattern{}, err
	}

	vs.mu.Lock()
	vs.vendor.Weight = capWeight(vs.vendor.Weight + reinforceStep)
	vs.vendor.Patterns = appendUnique(vs.vendor.Patterns, description)
	if glAccountCode == "" {
		glAccountCode = vs.vendor.DefaultGLAccount
	}
	pattern := ledger.LearnedPattern{
		ID:            uuid.New(),
		VendorID:      vendorID,
		Pattern:       description,
		Kind:          ledger.PatternExact,
		GLAccountCode: glAccountCode,
		Confidence:    vs.vendor.Weight,
	}
	vs.patterns = append(vs.patterns, pattern)
	vendor := vs.vendor
	vs.mu.Unlock()

	if s.repo != nil {
		if err := s.repo.SavePattern(ctx, pattern); err != nil {
			return pattern, fmt.Errorf("persist pattern: %w", err)
		}
		if err := s.repo.UpdateVendorWeight(ctx, vendorID, vendor.Weight); err != nil {
			return pattern, fmt.Errorf("persist weight: %w", err)
		}
	}

	for _, l := range s.listeners {
		l.VendorConfirmed(vendor, pattern)
	}
	s.logger.Debug("confirmation recorded",
		slog.String("vendor", vendor.CanonicalName),
		slog.Float64("weight", vendor.Weight))
	return pattern, nil
}

// ConfirmName records a confirmation against a vendor by canonical name,
// creating the vendor when the name is new. A created vendor takes the
// confirmed account as its default and starts at newVendorWeight.
func (s *Store) ConfirmName(ctx context.Context, vendorName, description, glAccountCode string) (ledger.Vendor, ledger.LearnedPattern, error) {
	vendorName = strings.TrimSpace(vendorName)
	if vendorName == "" {
		return ledger.Vendor{}, ledger.LearnedPattern{}, ErrVendorNotFound
	}

	vendorID, ok := s.findByName(vendorName)
	if !ok {
		vendor := ledger.Vendor{
			ID:               uuid.New(),
			CanonicalName:    vendorName,
			DefaultGLAccount: glAccountCode,
			Weight:           newVendorWeight - reinforceStep,
		}
		if err := s.AddVendor(ctx, vendor); err != nil {
			return ledger.Vendor{}, ledger.LearnedPattern{}, err
		}
		vendorID = vendor.ID
		s.logger.Info("vendor created from confirmation",
			slog.String("vendor", vendorName))
	}

	pattern, err := s.Confirm(ctx, vendorID, description, glAccountCode)
	if err != nil {
		return ledger.Vendor{}, ledger.LearnedPattern{}, err
	}
	vendor, err := s.Vendor(vendorID)
	return vendor, pattern, err
}

// LearnSuggestion folds an accepted external classifier suggestion into the
// vendor book so later imports resolve the same description locally.
func (s *Store) LearnSuggestion(ctx context.Context, vendorName, description, glAccountCode string) (ledger.Vendor, error) {
	vendor, _, err := s.ConfirmName(ctx, vendorName, description, glAccountCode)
	return vendor, err
}

// Correct records that the cascade picked the wrong vendor: the wrong vendor
// pays a penalty, the right one gets a confirmation. An unknown right vendor
// is created on the spot, the same as a confirmation by name.
func (s *Store) Correct(ctx context.Context, wrongVendorID uuid.UUID, rightVendorName, description, glAccountCode string) (ledger.LearnedPattern, error) {
	if wrong, err := s.state(wrongVendorID); err == nil {
		wrong.mu.Lock()
		wrong.vendor.Weight -= penaltyStep
		if wrong.vendor.Weight < 0 {
			wrong.vendor.Weight = 0
		}
		weight := wrong.vendor.Weight
		wrong.mu.Unlock()

		if s.repo != nil {
			if err := s.repo.UpdateVendorWeight(ctx, wrongVendorID, weight); err != nil {
				return ledger.LearnedPattern{}, fmt.Errorf("persist penalty: %w", err)
			}
		}
	}

	_, pattern, err := s.ConfirmName(ctx, rightVendorName, description, glAccountCode)
	return pattern, err
}

// DeleteVendor severs the vendor and everything learned from it. Callers
// must then route the vendor's transactions back to suspense; the store only
// owns the learning state.
func (s *Store) DeleteVendor(ctx context.Context, vendorID uuid.UUID) error {
	s.mu.Lock()
	_, ok := s.vendors[vendorID]
	if !ok {
		s.mu.Unlock()
		return ErrVendorNotFound
	}
	delete(s.vendors, vendorID)
	s.mu.Unlock()

	if s.repo != nil {
		if err := s.repo.DeleteVendor(ctx, vendorID); err != nil {
			return fmt.Errorf("delete vendor: %w", err)
		}
	}
	for _, l := range s.listeners {
		l.VendorDeleted(vendorID)
	}
	return nil
}

// AddVendor registers a new vendor, typically promoted from an external
// classifier suggestion during review.
func (s *Store) AddVendor(ctx context.Context, vendor ledger.Vendor) error {
	if vendor.ID == uuid.Nil {
		vendor.ID = uuid.New()
	}

	s.mu.Lock()
	s.vendors[vendor.ID] = &vendorState{vendor: vendor}
	s.mu.Unlock()

	if s.repo != nil {
		if err := s.repo.SaveVendor(ctx, vendor); err != nil {
			return fmt.Errorf("persist vendor: %w", err)
		}
	}
	return nil
}

// Vendor returns a copy of one vendor's current state.
func (s *Store) Vendor(vendorID uuid.UUID) (ledger.Vendor, error) {
	vs, err := s.state(vendorID)
	if err != nil {
		return ledger.Vendor{}, err
	}
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return vs.vendor, nil
}

// Snapshot returns copies of all vendors and learned patterns, for matcher
// rebuilds.
func (s *Store) Snapshot() ([]ledger.Vendor, []ledger.LearnedPattern) {
	s.mu.RLock()
	states := make([]*vendorState, 0, len(s.vendors))
	for _, vs := range s.vendors {
		states = append(states, vs)
	}
	s.mu.RUnlock()

	vendors := make([]ledger.Vendor, 0, len(states))
	var patterns []ledger.LearnedPattern
	for _, vs := range states {
		vs.mu.Lock()
		vendors = append(vendors, vs.vendor)
		patterns = append(patterns, vs.patterns...)
		vs.mu.Unlock()
	}
	return vendors, patterns
}

func (s *Store) findByName(name string) (uuid.UUID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, vs := range s.vendors {
		vs.mu.Lock()
		match := strings.EqualFold(strings.TrimSpace(vs.vendor.CanonicalName), name)
		vs.mu.Unlock()
		if match {
			return id, true
		}
	}
	return uuid.Nil, false
}

func (s *Store) state(vendorID uuid.UUID) (*vendorState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vs, ok := s.vendors[vendorID]
	if !ok {
		return nil, ErrVendorNotFound
	}
	return vs, nil
}

func capWeight(w float64) float64 {
	if w > maxWeight {
		return maxWeight
	}
	return w
}

func appendUnique(patterns []string, pattern string) []string {
	for _, p := range patterns {
		if p == pattern {
			return patterns
		}
	}
	return append(patterns, pattern)
}

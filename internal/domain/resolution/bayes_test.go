package resolution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/statement-ledger/internal/domain/ledger"
)

func TestBayesClassifier_Match(t *testing.T) {
	bc := NewBayesClassifier(testVendors(), testLearned())

	t.Run("shared vocabulary wins", func(t *testing.T) {
		m := bc.Match("STARBUCKS COFFEE SEATTLE")
		require.NotNil(t, m)
		assert.Equal(t, starbucksID, m.VendorID)
		assert.Equal(t, "Starbucks", m.VendorName)
		assert.Equal(t, ledger.StrategyBayesian, m.Strategy)
		assert.GreaterOrEqual(t, m.Confidence, bayesFloor)
		assert.LessOrEqual(t, m.Confidence, bayesCeiling)
	})

	t.Run("unknown vocabulary stays below the floor", func(t *testing.T) {
		assert.Nil(t, bc.Match("ZZZZZ QQQQ"))
	})

	t.Run("single vendor book rejects foreign vocabulary", func(t *testing.T) {
		// With one vendor the renormalized posterior is always 1.0, so the
		// ratio alone would assign anything to it.
		solo := NewBayesClassifier(testVendors()[:1], nil)
		assert.Nil(t, solo.Match("ZZZZZ QQQQ PLUMBING"))
	})

	t.Run("two vendor book rejects foreign vocabulary", func(t *testing.T) {
		pair := NewBayesClassifier(testVendors()[:2], nil)
		assert.Nil(t, pair.Match("ZZZZZ QQQQ PLUMBING"))
	})

	t.Run("empty description", func(t *testing.T) {
		assert.Nil(t, bc.Match(""))
	})
}

func TestBayesClassifier_Train(t *testing.T) {
	bc := NewBayesClassifier(testVendors(), nil)

	// an unfamiliar phrasing trains into the starbucks model
	bc.Train(starbucksID, "Starbucks", "6100", "SBUX MOBILE ORDER")
	bc.Train(starbucksID, "Starbucks", "6100", "SBUX MOBILE ORDER SEATTLE")

	m := bc.Match("SBUX MOBILE ORDER")
	require.NotNil(t, m)
	assert.Equal(t, starbucksID, m.VendorID)
}

func TestBayesClassifier_Forget(t *testing.T) {
	bc := NewBayesClassifier(testVendors(), nil)
	require.NotNil(t, bc.Match("STARBUCKS COFFEE"))

	bc.Forget(starbucksID)

	if m := bc.Match("STARBUCKS COFFEE"); m != nil {
		assert.NotEqual(t, starbucksID, m.VendorID)
	}
}

func TestBayesClassifier_Empty(t *testing.T) {
	bc := NewBayesClassifier(nil, nil)
	assert.Nil(t, bc.Match("STARBUCKS"))
}

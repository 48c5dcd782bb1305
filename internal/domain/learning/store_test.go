package learning

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/statement-ledger/internal/domain/ledger"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingListener struct {
	mu        sync.Mutex
	confirmed []ledger.LearnedPattern
	deleted   []uuid.UUID
}

func (l *recordingListener) VendorConfirmed(_ ledger.Vendor, pattern ledger.LearnedPattern) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.confirmed = append(l.confirmed, pattern)
}

func (l *recordingListener) VendorDeleted(vendorID uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deleted = append(l.deleted, vendorID)
}

func seedVendor(weight float64) ledger.Vendor {
	return ledger.Vendor{
		ID:               uuid.New(),
		CanonicalName:    "Starbucks",
		DefaultGLAccount: "6100",
		Patterns:         []string{"STARBUCKS"},
		Weight:           weight,
	}
}

func TestStore_Confirm(t *testing.T) {
	ctx := context.Background()

	t.Run("reinforces weight and learns the pattern", func(t *testing.T) {
		vendor := seedVendor(0.5)
		s := NewStore([]ledger.Vendor{vendor}, nil, nil, discardLogger())

		pattern, err := s.Confirm(ctx, vendor.ID, "STARBUCKS #221 SEATTLE", "")
		require.NoError(t, err)

		assert.Equal(t, vendor.ID, pattern.VendorID)
		assert.Equal(t, "STARBUCKS #221 SEATTLE", pattern.Pattern)
		assert.Equal(t, ledger.PatternExact, pattern.Kind)
		assert.Equal(t, "6100", pattern.GLAccountCode) // default account fills in
		assert.InDelta(t, 0.6, pattern.Confidence, 0.0001)

		got, err := s.Vendor(vendor.ID)
		require.NoError(t, err)
		assert.InDelta(t, 0.6, got.Weight, 0.0001)
		assert.Contains(t, got.Patterns, "STARBUCKS #221 SEATTLE")
	})

	t.Run("weight saturates at the cap", func(t *testing.T) {
		vendor := seedVendor(0.95)
		s := NewStore([]ledger.Vendor{vendor}, nil, nil, discardLogger())

		for i := 0; i < 3; i++ {
			_, err := s.Confirm(ctx, vendor.ID, "STARBUCKS", "")
			require.NoError(t, err)
		}

		got, err := s.Vendor(vendor.ID)
		require.NoError(t, err)
		assert.Equal(t, 1.0, got.Weight)
	})

	t.Run("repeated confirmation does not duplicate the pattern string", func(t *testing.T) {
		vendor := seedVendor(0.5)
		s := NewStore([]ledger.Vendor{vendor}, nil, nil, discardLogger())

		_, err := s.Confirm(ctx, vendor.ID, "STARBUCKS #221", "")
		require.NoError(t, err)
		_, err = s.Confirm(ctx, vendor.ID, "STARBUCKS #221", "")
		require.NoError(t, err)

		got, err := s.Vendor(vendor.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"STARBUCKS", "STARBUCKS #221"}, got.Patterns)
	})

	t.Run("explicit account overrides the default", func(t *testing.T) {
		vendor := seedVendor(0.5)
		s := NewStore([]ledger.Vendor{vendor}, nil, nil, discardLogger())

		pattern, err := s.Confirm(ctx, vendor.ID, "STARBUCKS CATERING", "6190")
		require.NoError(t, err)
		assert.Equal(t, "6190", pattern.GLAccountCode)
	})

	t.Run("listeners observe the confirmation", func(t *testing.T) {
		vendor := seedVendor(0.5)
		s := NewStore([]ledger.Vendor{vendor}, nil, nil, discardLogger())
		listener := &recordingListener{}
		s.Subscribe(listener)

		_, err := s.Confirm(ctx, vendor.ID, "STARBUCKS #221", "")
		require.NoError(t, err)
		require.Len(t, listener.confirmed, 1)
		assert.Equal(t, vendor.ID, listener.confirmed[0].VendorID)
	})

	t.Run("unknown vendor", func(t *testing.T) {
		s := NewStore(nil, nil, nil, discardLogger())
		_, err := s.Confirm(ctx, uuid.New(), "X", "")
		assert.ErrorIs(t, err, ErrVendorNotFound)
	})
}

func TestStore_ConfirmName(t *testing.T) {
	ctx := context.Background()

	t.Run("known name reinforces the existing vendor", func(t *testing.T) {
		vendor := seedVendor(0.5)
		s := NewStore([]ledger.Vendor{vendor}, nil, nil, discardLogger())

		got, pattern, err := s.ConfirmName(ctx, "  starbucks ", "STARBUCKS #221", "")
		require.NoError(t, err)
		assert.Equal(t, vendor.ID, got.ID)
		assert.Equal(t, vendor.ID, pattern.VendorID)
		assert.InDelta(t, 0.6, got.Weight, 0.0001)
	})

	t.Run("unknown name creates the vendor", func(t *testing.T) {
		s := NewStore(nil, nil, nil, discardLogger())

		got, pattern, err := s.ConfirmName(ctx, "Zigzag Quarry", "ZIGZAG QUARRY INV 42", "6800")
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, got.ID)
		assert.Equal(t, "Zigzag Quarry", got.CanonicalName)
		assert.Equal(t, "6800", got.DefaultGLAccount)
		assert.InDelta(t, newVendorWeight, got.Weight, 0.0001)
		assert.Less(t, got.Weight, 1.0)
		assert.Equal(t, got.ID, pattern.VendorID)
		assert.Equal(t, "6800", pattern.GLAccountCode)

		// a second confirmation finds the created vendor instead of
		// creating a duplicate
		again, _, err := s.ConfirmName(ctx, "zigzag quarry", "ZIGZAG QUARRY INV 43", "")
		require.NoError(t, err)
		assert.Equal(t, got.ID, again.ID)

		vendors, _ := s.Snapshot()
		assert.Len(t, vendors, 1)
	})

	t.Run("empty name", func(t *testing.T) {
		s := NewStore(nil, nil, nil, discardLogger())
		_, _, err := s.ConfirmName(ctx, "  ", "X", "")
		assert.ErrorIs(t, err, ErrVendorNotFound)
	})
}

func TestStore_Correct(t *testing.T) {
	ctx := context.Background()

	wrong := seedVendor(0.5)
	right := ledger.Vendor{
		ID:               uuid.New(),
		CanonicalName:    "Dunkin",
		DefaultGLAccount: "6110",
		Weight:           0.3,
	}
	s := NewStore([]ledger.Vendor{wrong, right}, nil, nil, discardLogger())

	pattern, err := s.Correct(ctx, wrong.ID, "Dunkin", "DUNKIN #99", "")
	require.NoError(t, err)
	assert.Equal(t, right.ID, pattern.VendorID)

	penalized, err := s.Vendor(wrong.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.45, penalized.Weight, 0.0001)

	reinforced, err := s.Vendor(right.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, reinforced.Weight, 0.0001)

	t.Run("penalty floors at zero", func(t *testing.T) {
		floored := seedVendor(0.03)
		s := NewStore([]ledger.Vendor{floored, right}, nil, nil, discardLogger())
		_, err := s.Correct(ctx, floored.ID, "Dunkin", "DUNKIN", "")
		require.NoError(t, err)

		got, err := s.Vendor(floored.ID)
		require.NoError(t, err)
		assert.Zero(t, got.Weight)
	})

	t.Run("unknown right vendor is created", func(t *testing.T) {
		floored := seedVendor(0.5)
		s := NewStore([]ledger.Vendor{floored}, nil, nil, discardLogger())

		pattern, err := s.Correct(ctx, floored.ID, "Zigzag Quarry", "ZIGZAG QUARRY INV 42", "6800")
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, pattern.VendorID)
		assert.Equal(t, "6800", pattern.GLAccountCode)

		created, err := s.Vendor(pattern.VendorID)
		require.NoError(t, err)
		assert.Equal(t, "Zigzag Quarry", created.CanonicalName)
		assert.InDelta(t, newVendorWeight, created.Weight, 0.0001)

		penalized, err := s.Vendor(floored.ID)
		require.NoError(t, err)
		assert.InDelta(t, 0.45, penalized.Weight, 0.0001)
	})
}

func TestStore_DeleteVendor(t *testing.T) {
	ctx := context.Background()

	vendor := seedVendor(0.5)
	patterns := []ledger.LearnedPattern{
		{ID: uuid.New(), VendorID: vendor.ID, Pattern: "STARBUCKS #221", Kind: ledger.PatternExact, Confidence: 0.6},
	}
	s := NewStore([]ledger.Vendor{vendor}, patterns, nil, discardLogger())
	listener := &recordingListener{}
	s.Subscribe(listener)

	require.NoError(t, s.DeleteVendor(ctx, vendor.ID))

	_, err := s.Vendor(vendor.ID)
	assert.ErrorIs(t, err, ErrVendorNotFound)

	vendors, learned := s.Snapshot()
	assert.Empty(t, vendors)
	assert.Empty(t, learned)

	require.Len(t, listener.deleted, 1)
	assert.Equal(t, vendor.ID, listener.deleted[0])

	assert.ErrorIs(t, s.DeleteVendor(ctx, vendor.ID), ErrVendorNotFound)
}

func TestStore_AddVendor(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil, nil, nil, discardLogger())

	vendor := ledger.Vendor{CanonicalName: "Zigzag Quarry", DefaultGLAccount: "6800"}
	require.NoError(t, s.AddVendor(ctx, vendor))

	vendors, _ := s.Snapshot()
	require.Len(t, vendors, 1)
	assert.Equal(t, "Zigzag Quarry", vendors[0].CanonicalName)
	assert.NotEqual(t, uuid.Nil, vendors[0].ID)
}

func TestStore_Snapshot(t *testing.T) {
	ctx := context.Background()
	vendor := seedVendor(0.5)
	s := NewStore([]ledger.Vendor{vendor}, nil, nil, discardLogger())

	_, err := s.Confirm(ctx, vendor.ID, "STARBUCKS #221", "")
	require.NoError(t, err)

	vendors, patterns := s.Snapshot()
	require.Len(t, vendors, 1)
	require.Len(t, patterns, 1)
	assert.Equal(t, vendor.ID, patterns[0].VendorID)
}

func TestStore_ConcurrentConfirms(t *testing.T) {
	ctx := context.Background()
	a := seedVendor(0.0)
	b := ledger.Vendor{ID: uuid.New(), CanonicalName: "Dunkin", DefaultGLAccount: "6110"}
	s := NewStore([]ledger.Vendor{a, b}, nil, nil, discardLogger())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = s.Confirm(ctx, a.ID, "STARBUCKS", "")
		}()
		go func() {
			defer wg.Done()
			_, _ = s.Confirm(ctx, b.ID, "DUNKIN", "")
		}()
	}
	wg.Wait()

	gotA, err := s.Vendor(a.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, gotA.Weight, 0.0001)

	gotB, err := s.Vendor(b.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, gotB.Weight, 0.0001)
}

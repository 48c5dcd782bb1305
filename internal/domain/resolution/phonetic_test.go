package resolution

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/statement-ledger/internal/domain/ledger"
)

func TestPhoneticKey(t *testing.T) {
	t.Run("ocr drift encodes identically", func(t *testing.T) {
		assert.Equal(t, PhoneticKey("WALMART"), PhoneticKey("WALMRT"))
		assert.Equal(t, PhoneticKey("WALMART"), PhoneticKey("WAL MART"))
	})

	t.Run("digraphs collapse", func(t *testing.T) {
		assert.Equal(t, PhoneticKey("PHARMACY"), PhoneticKey("FARMACY"))
	})

	t.Run("case and separators irrelevant", func(t *testing.T) {
		assert.Equal(t, PhoneticKey("walmart"), PhoneticKey("WALMART"))
		assert.Equal(t, PhoneticKey("WAL*MART #4410"), PhoneticKey("WALMART"))
	})

	t.Run("distinct names stay distinct", func(t *testing.T) {
		assert.NotEqual(t, PhoneticKey("WALMART"), PhoneticKey("NETFLIX"))
	})
}

func TestPhoneticMatcher(t *testing.T) {
	walmartID := uuid.New()
	vendors := append(testVendors(), ledger.Vendor{
		ID:               walmartID,
		CanonicalName:    "Walmart",
		DefaultGLAccount: "6400",
		Weight:           0.6,
	})
	pm := NewPhoneticMatcher(vendors)

	t.Run("sound alike match", func(t *testing.T) {
		m := pm.Match("WALMRT")
		require.NotNil(t, m)
		assert.Equal(t, walmartID, m.VendorID)
		assert.Equal(t, ConfidencePhonetic, m.Confidence)
		assert.Equal(t, ledger.StrategyPhonetic, m.Strategy)
	})

	t.Run("short keys rejected", func(t *testing.T) {
		assert.Nil(t, pm.Match("AMC"))
	})

	t.Run("unknown sound", func(t *testing.T) {
		assert.Nil(t, pm.Match("GREENFIELD GROCERS"))
	})
}
